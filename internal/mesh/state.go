package mesh

// State is the negotiation state of one remote participant.
type State int

const (
	StateIdle State = iota
	StateOfferSent
	StateOfferReceived
	StateStable
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateStable:
		return "stable"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CallStatus is the aggregate state shown to the user.
type CallStatus string

const (
	StatusWaiting    CallStatus = "waiting"
	StatusConnecting CallStatus = "connecting"
	StatusConnected  CallStatus = "connected"
	StatusFailed     CallStatus = "failed"
)

// IsOfferer reports whether local sends the offer to remote. Both sides
// evaluate it with swapped arguments and always disagree, so exactly one of
// them offers.
func IsOfferer(local, remote string) bool {
	return local > remote
}

// deriveStatus folds peer states into a call status.
func deriveStatus(states []State) CallStatus {
	if len(states) == 0 {
		return StatusWaiting
	}

	pending := false
	for _, s := range states {
		switch s {
		case StateConnected:
			return StatusConnected
		case StateIdle, StateOfferSent, StateOfferReceived, StateStable:
			pending = true
		}
	}

	if pending {
		return StatusConnecting
	}
	return StatusFailed
}
