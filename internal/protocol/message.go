package protocol

// Message is the single frame exchanged over the websocket in both
// directions. Which fields are set depends on Event.
type Message struct {
	Event  string `json:"event"`
	RoomID string `json:"room_id,omitempty"`
	ID     string `json:"id,omitempty"`

	// Users is only set on all-users. An empty roster still goes out as
	// an empty list.
	Users []string `json:"users,omitzero"`

	To   string  `json:"to,omitempty"`
	From string  `json:"from,omitempty"`
	Data RawData `json:"data,omitempty"`

	Error string `json:"error,omitempty"`
}

// Event names, as they appear on the wire.
const (
	// server -> client
	EventConnect          = "connect"
	EventAllUsers         = "all-users"
	EventUserJoined       = "user-joined"
	EventUserDisconnected = "user-disconnected"
	EventError            = "error"

	// client -> server
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"

	// client -> server, relayed server -> client
	EventSignal = "signal"
)

// Kind tells the receiving orchestrator how to interpret a signal.
type Kind string

const (
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
)

// SignalData is the negotiation payload this client puts in a signal's
// data. Other clients may send other shapes; the server relays whatever
// it gets.
type SignalData struct {
	Kind        Kind                `json:"kind"`
	Description *SessionDescription `json:"sdp,omitempty"`
	Candidate   *Candidate          `json:"candidate,omitempty"`
}

// SessionDescription is an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate mirrors the browser RTCIceCandidateInit dictionary so web and
// CLI participants can share a room.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Offer builds the signal data for an SDP offer.
func Offer(desc SessionDescription) *SignalData {
	return &SignalData{Kind: KindOffer, Description: &desc}
}

// Answer builds the signal data for an SDP answer.
func Answer(desc SessionDescription) *SignalData {
	return &SignalData{Kind: KindAnswer, Description: &desc}
}

// CandidateSignal builds the signal data for a trickled ICE candidate.
func CandidateSignal(c Candidate) *SignalData {
	return &SignalData{Kind: KindCandidate, Candidate: &c}
}
