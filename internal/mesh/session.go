package mesh

import "github.com/krishangoyal12/Video-Chat-Application/internal/protocol"

// ConnectionState is the transport state reported by a media session.
type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNew:
		return "new"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionFailed:
		return "failed"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TrackInfo describes a remote track that started arriving.
type TrackInfo struct {
	ID       string
	Kind     string
	Codec    string
	StreamID string
}

// SessionStats are inbound counters for one session.
type SessionStats struct {
	Tracks          int
	PacketsReceived uint64
	BytesReceived   uint64
}

// StatsReporter is implemented by sessions that count inbound media. Stats
// must be safe to call from any goroutine.
type StatsReporter interface {
	Stats() SessionStats
}

// LocalMedia is the local capture shared by every session.
type LocalMedia interface {
	Stop()
}

// MediaSession is one point-to-point media session with a remote
// participant. Implementations must reject every call after Close with
// ErrSessionClosed.
type MediaSession interface {
	CreateOffer(iceRestart bool) (protocol.SessionDescription, error)
	CreateAnswer() (protocol.SessionDescription, error)
	SetLocalDescription(desc protocol.SessionDescription) error
	SetRemoteDescription(desc protocol.SessionDescription) error
	AddICECandidate(c protocol.Candidate) error
	AttachLocalMedia(m LocalMedia) error
	Close() error
}

// SessionEvents are the callbacks a session fires. They may be invoked from
// any goroutine.
type SessionEvents struct {
	OnICECandidate          func(protocol.Candidate)
	OnTrack                 func(TrackInfo)
	OnConnectionStateChange func(ConnectionState)
}

// SessionFactory creates a fresh session for a remote participant.
type SessionFactory func(remoteID string, events SessionEvents) (MediaSession, error)

// Signaler delivers negotiation payloads to a remote participant through the
// signaling server.
type Signaler interface {
	Signal(to string, data *protocol.SignalData) error
}
