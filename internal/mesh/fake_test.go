package mesh

import (
	"errors"
	"fmt"
	"sync"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

// fakeSession records what the orchestrator asked of it.
type fakeSession struct {
	mu     sync.Mutex
	remote string
	events SessionEvents

	offers     int
	restarts   int
	answers    int
	local      []protocol.SessionDescription
	remoteDesc []protocol.SessionDescription
	candidates []protocol.Candidate
	media      []LocalMedia
	closed     bool

	// rejectRemote makes the next SetRemoteDescription fail.
	rejectRemote error

	// gate, when set, blocks CreateOffer until closed.
	gate chan struct{}
}

func (s *fakeSession) CreateOffer(iceRestart bool) (protocol.SessionDescription, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return protocol.SessionDescription{}, ErrSessionClosed
	}
	s.offers++
	if iceRestart {
		s.restarts++
	}
	return protocol.SessionDescription{Type: "offer", SDP: fmt.Sprintf("offer-%d", s.offers)}, nil
}

func (s *fakeSession) CreateAnswer() (protocol.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return protocol.SessionDescription{}, ErrSessionClosed
	}
	if len(s.remoteDesc) == 0 {
		return protocol.SessionDescription{}, errors.New("no remote offer")
	}
	s.answers++
	return protocol.SessionDescription{Type: "answer", SDP: fmt.Sprintf("answer-%d", s.answers)}, nil
}

func (s *fakeSession) SetLocalDescription(desc protocol.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.local = append(s.local, desc)
	return nil
}

func (s *fakeSession) SetRemoteDescription(desc protocol.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := s.rejectRemote; err != nil {
		s.rejectRemote = nil
		return err
	}
	s.remoteDesc = append(s.remoteDesc, desc)
	return nil
}

func (s *fakeSession) AddICECandidate(c protocol.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.candidates = append(s.candidates, c)
	return nil
}

func (s *fakeSession) AttachLocalMedia(m LocalMedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.media = append(s.media, m)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *fakeSession) Stats() SessionStats {
	return SessionStats{Tracks: 1, PacketsReceived: 10, BytesReceived: 1200}
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) counts() (offers, restarts, answers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offers, s.restarts, s.answers
}

func (s *fakeSession) remoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.remoteDesc)
}

func (s *fakeSession) candidateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}

func (s *fakeSession) mediaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.media)
}

// connState fires a connection state change as the engine would.
func (s *fakeSession) connState(state ConnectionState) {
	s.events.OnConnectionStateChange(state)
}

type fakeFactory struct {
	mu       sync.Mutex
	sessions map[string][]*fakeSession

	// prepare, when set, configures every new session before it is used.
	prepare func(*fakeSession)
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{sessions: make(map[string][]*fakeSession)}
}

func (f *fakeFactory) New(remoteID string, events SessionEvents) (MediaSession, error) {
	s := &fakeSession{remote: remoteID, events: events}
	if f.prepare != nil {
		f.prepare(s)
	}

	f.mu.Lock()
	f.sessions[remoteID] = append(f.sessions[remoteID], s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeFactory) count(remoteID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions[remoteID])
}

func (f *fakeFactory) session(remoteID string, i int) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.sessions[remoteID]
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return nil
	}
	return list[i]
}

type sentSignal struct {
	to   string
	data *protocol.SignalData
}

// recorder is a Signaler that keeps every payload and optionally forwards
// it to another orchestrator.
type recorder struct {
	mu      sync.Mutex
	sent    []sentSignal
	from    string
	forward func() *Orchestrator
}

func (r *recorder) Signal(to string, data *protocol.SignalData) error {
	r.mu.Lock()
	r.sent = append(r.sent, sentSignal{to: to, data: data})
	forward := r.forward
	r.mu.Unlock()

	if forward != nil {
		if target := forward(); target != nil {
			target.HandleSignal(r.from, data)
		}
	}
	return nil
}

func (r *recorder) count(to string, kind protocol.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sent {
		if s.to == to && s.data.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeMedia struct {
	mu      sync.Mutex
	stopped bool
}

func (m *fakeMedia) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *fakeMedia) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
