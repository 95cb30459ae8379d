package call

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
	"github.com/krishangoyal12/Video-Chat-Application/internal/transport"
)

// fakeTransport lets tests inject transport events and inspect what was sent.
type fakeTransport struct {
	events chan transport.Event
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []*protocol.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan transport.Event, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-f.closed:
	}
	return nil
}

func (f *fakeTransport) Send(msg *protocol.Message) error {
	select {
	case <-f.closed:
		return transport.ErrClosed
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeTransport) Close() {
	f.once.Do(func() {
		close(f.closed)
		close(f.events)
	})
}

func (f *fakeTransport) emit(ev transport.Event) {
	f.events <- ev
}

func (f *fakeTransport) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) signals(to string, kind protocol.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.Event != protocol.EventSignal || m.To != to {
			continue
		}
		var data protocol.SignalData
		if err := protocol.JSON.DecodeData(m.Data, &data); err == nil && data.Kind == kind {
			n++
		}
	}
	return n
}

// encoded turns a signal into the payload a JSON connection would deliver.
func encoded(t *testing.T, data *protocol.SignalData) protocol.RawData {
	t.Helper()

	raw, err := protocol.JSON.EncodeData(data)
	require.NoError(t, err)
	return raw
}

func (f *fakeTransport) last(event string) *protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Event == event {
			return f.sent[i]
		}
	}
	return nil
}

// loopSession reports Connected once both descriptions are applied, which
// is enough for two orchestrators talking through a real hub.
type loopSession struct {
	mu        sync.Mutex
	events    mesh.SessionEvents
	hasLocal  bool
	hasRemote bool
	announced bool
	closed    bool
	offers    int
}

func (s *loopSession) CreateOffer(bool) (protocol.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return protocol.SessionDescription{}, mesh.ErrSessionClosed
	}
	s.offers++
	return protocol.SessionDescription{Type: "offer", SDP: fmt.Sprintf("v=0 offer %d", s.offers)}, nil
}

func (s *loopSession) CreateAnswer() (protocol.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return protocol.SessionDescription{}, mesh.ErrSessionClosed
	}
	return protocol.SessionDescription{Type: "answer", SDP: "v=0 answer"}, nil
}

func (s *loopSession) SetLocalDescription(protocol.SessionDescription) error {
	return s.apply(func() { s.hasLocal = true })
}

func (s *loopSession) SetRemoteDescription(protocol.SessionDescription) error {
	return s.apply(func() { s.hasRemote = true })
}

func (s *loopSession) apply(fn func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return mesh.ErrSessionClosed
	}
	fn()
	ready := s.hasLocal && s.hasRemote && !s.announced
	if ready {
		s.announced = true
	}
	events := s.events
	s.mu.Unlock()

	if ready {
		mid := "0"
		go func() {
			events.OnICECandidate(protocol.Candidate{Candidate: "candidate:1 1 udp 1 127.0.0.1 9 typ host", SDPMid: &mid})
			events.OnConnectionStateChange(mesh.ConnectionConnected)
		}()
	}
	return nil
}

func (s *loopSession) AddICECandidate(protocol.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return mesh.ErrSessionClosed
	}
	return nil
}

func (s *loopSession) AttachLocalMedia(mesh.LocalMedia) error { return nil }

func (s *loopSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func loopFactory(remoteID string, events mesh.SessionEvents) (mesh.MediaSession, error) {
	return &loopSession{events: events}, nil
}

type stubMedia struct {
	mu      sync.Mutex
	stopped bool
}

func (m *stubMedia) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *stubMedia) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
