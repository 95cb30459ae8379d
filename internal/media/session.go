package media

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

// Session is a pion peer connection with one audio and one video
// transceiver, both send-receive from the start so local media can be
// swapped in without renegotiating.
type Session struct {
	remoteID string
	pc       *webrtc.PeerConnection
	log      *logrus.Entry

	audio *webrtc.RTPSender
	video *webrtc.RTPSender

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending []webrtc.ICECandidateInit

	tracks  atomic.Int32
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func newSession(e *Engine, remoteID string, events mesh.SessionEvents) (*Session, error) {
	pc, err := e.api.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		remoteID: remoteID,
		pc:       pc,
		log:      e.log.WithField("peer", remoteID),
		ctx:      ctx,
		cancel:   cancel,
	}

	init := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}
	audio, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, init)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}
	video, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, init)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}
	s.audio = audio.Sender()
	s.video = video.Sender()

	// Interceptors only see RTCP that somebody reads.
	go drainRTCP(s.audio)
	go drainRTCP(s.video)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || events.OnICECandidate == nil {
			return
		}
		events.OnICECandidate(fromCandidateInit(c.ToJSON()))
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.WithField("state", state.String()).Debug("peer connection state")
		if events.OnConnectionStateChange != nil {
			events.OnConnectionStateChange(connectionState(state))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.tracks.Add(1)
		if events.OnTrack != nil {
			events.OnTrack(mesh.TrackInfo{
				ID:       track.ID(),
				Kind:     track.Kind().String(),
				Codec:    track.Codec().MimeType,
				StreamID: track.StreamID(),
			})
		}
		go s.sink(track)
	})

	return s, nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// sink consumes a remote track and counts what arrives.
func (s *Session) sink(track *webrtc.TrackRemote) {
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		// Ask for a keyframe right away instead of waiting for the first
		// interval tick.
		err := s.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
		if err != nil {
			s.log.WithError(err).Debug("send pli")
		}
	}

	for {
		if s.ctx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		s.count(pkt)
	}
}

func (s *Session) count(pkt *rtp.Packet) {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(pkt.Payload)))
}

// Stats implements mesh.StatsReporter.
func (s *Session) Stats() mesh.SessionStats {
	return mesh.SessionStats{
		Tracks:          int(s.tracks.Load()),
		PacketsReceived: s.packets.Load(),
		BytesReceived:   s.bytes.Load(),
	}
}

func (s *Session) checkOpen() error {
	if s.closed {
		return mesh.ErrSessionClosed
	}
	return nil
}

func (s *Session) CreateOffer(iceRestart bool) (protocol.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return protocol.SessionDescription{}, err
	}
	offer, err := s.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
	if err != nil {
		return protocol.SessionDescription{}, err
	}
	return fromDescription(offer), nil
}

func (s *Session) CreateAnswer() (protocol.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return protocol.SessionDescription{}, err
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.SessionDescription{}, err
	}
	return fromDescription(answer), nil
}

func (s *Session) SetLocalDescription(desc protocol.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.pc.SetLocalDescription(toDescription(desc))
}

// SetRemoteDescription applies desc and then any candidates that arrived
// before it.
func (s *Session) SetRemoteDescription(desc protocol.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.pc.SetRemoteDescription(toDescription(desc)); err != nil {
		return err
	}

	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.log.WithError(err).Debug("buffered candidate rejected")
		}
	}
	return nil
}

// AddICECandidate applies c, or holds it until a remote description exists.
func (s *Session) AddICECandidate(c protocol.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	init := toCandidateInit(c)
	if s.pc.RemoteDescription() == nil {
		s.pending = append(s.pending, init)
		return nil
	}
	return s.pc.AddICECandidate(init)
}

// AttachLocalMedia sends the captured tracks on this session's senders.
func (s *Session) AttachLocalMedia(m mesh.LocalMedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	local, ok := m.(*LocalMedia)
	if !ok {
		return fmt.Errorf("unsupported local media %T", m)
	}
	if local.Audio != nil {
		if err := s.audio.ReplaceTrack(local.Audio); err != nil {
			return fmt.Errorf("attach audio: %w", err)
		}
	}
	if local.Video != nil {
		if err := s.video.ReplaceTrack(local.Video); err != nil {
			return fmt.Errorf("attach video: %w", err)
		}
	}
	return nil
}

// Close releases the peer connection. Every later call fails with
// mesh.ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	s.cancel()
	return s.pc.Close()
}

func connectionState(state webrtc.PeerConnectionState) mesh.ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateConnecting:
		return mesh.ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return mesh.ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return mesh.ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return mesh.ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return mesh.ConnectionClosed
	default:
		return mesh.ConnectionNew
	}
}

func fromDescription(d webrtc.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}

func toDescription(d protocol.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}

func fromCandidateInit(c webrtc.ICECandidateInit) protocol.Candidate {
	return protocol.Candidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func toCandidateInit(c protocol.Candidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
