package mesh

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOutstandingOffer means an answer arrived while no offer was
	// waiting for one.
	ErrNoOutstandingOffer = errors.New("no outstanding offer")

	// ErrSessionClosed is returned by sessions after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnknownKind means a signal carried a kind this client does not
	// understand.
	ErrUnknownKind = errors.New("unknown signal kind")

	// ErrMalformedSignal means a signal lacked the payload its kind requires.
	ErrMalformedSignal = errors.New("malformed signal")
)

// NegotiationError wraps a failed negotiation step with the peer it
// concerned.
type NegotiationError struct {
	Op   string
	Peer string
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
