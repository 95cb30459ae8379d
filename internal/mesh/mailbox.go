package mesh

import (
	"sync"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

type eventKind int

const (
	evStart eventKind = iota
	evSignal
	evLocalCandidate
	evConnState
	evTrack
	evTimer
	evAttachMedia
)

type timerKind int

const (
	timerNegotiation timerKind = iota
	timerRecovery
	timerRecreate
)

func (k timerKind) String() string {
	switch k {
	case timerNegotiation:
		return "negotiation"
	case timerRecovery:
		return "recovery"
	default:
		return "recreate"
	}
}

// event is one unit of work for a peer goroutine.
type event struct {
	kind eventKind

	// generation of the session that produced a session callback, or the
	// sequence number of the timer that fired.
	seq uint64

	initiate  bool
	signal    *protocol.SignalData
	candidate protocol.Candidate
	conn      ConnectionState
	track     TrackInfo
	timer     timerKind
	media     LocalMedia
}

// mailbox is an unbounded FIFO. Posting never blocks, so session callbacks
// and the signaling reader cannot stall on a busy peer.
type mailbox struct {
	mu     sync.Mutex
	items  []event
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(ev event) {
	m.mu.Lock()
	m.items = append(m.items, ev)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}
