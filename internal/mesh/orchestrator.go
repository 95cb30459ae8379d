// Package mesh negotiates one media session with every other participant
// of a room.
//
// Each remote participant gets its own goroutine and ordered mailbox. Signals,
// session callbacks and timers for a participant are applied in arrival
// order; different participants never wait for each other.
package mesh

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Factory  SessionFactory
	Signaler Signaler
	Logger   *logrus.Entry

	// RecoveryTimeout bounds how long an ICE restart may take before the
	// session is replaced.
	RecoveryTimeout time.Duration

	// RecreateDelay is the pause between closing a failed session and
	// building its replacement.
	RecreateDelay time.Duration

	// NegotiationTimeout replaces sessions that never connect. Zero
	// disables it.
	NegotiationTimeout time.Duration

	// OnChange is called after any peer changes state. It runs on peer
	// goroutines and must not block.
	OnChange func()
}

// DefaultConfig returns the recovery timings used in production.
func DefaultConfig() Config {
	return Config{
		RecoveryTimeout:    10 * time.Second,
		RecreateDelay:      2 * time.Second,
		NegotiationTimeout: 30 * time.Second,
	}
}

// Orchestrator tracks one PeerNegotiation per remote participant.
type Orchestrator struct {
	cfg Config
	log *logrus.Entry

	mu       sync.Mutex
	localID  string
	peers    map[string]*peer
	departed map[string]struct{}
	met      map[string]struct{}
	media    LocalMedia
	hungUp   bool

	wg         sync.WaitGroup
	recoveries atomic.Int64
}

// New creates an orchestrator. Factory and Signaler are required.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		cfg:      cfg,
		log:      cfg.Logger,
		peers:    make(map[string]*peer),
		departed: make(map[string]struct{}),
		met:      make(map[string]struct{}),
	}
}

// LocalID returns the connection id the orchestrator negotiates as.
func (o *Orchestrator) LocalID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.localID
}

// SetLocalID sets the id assigned by the signaling server. A new id means
// the previous connection is gone, so every negotiation is dropped.
func (o *Orchestrator) SetLocalID(id string) {
	o.mu.Lock()
	previous := o.localID
	o.localID = id
	o.mu.Unlock()

	if previous != "" && previous != id {
		o.log.WithFields(logrus.Fields{"old": previous, "new": id}).Info("local id changed, resetting peers")
		o.Reset()
	}
}

// HandleRoster starts negotiating with everyone already in the room.
func (o *Orchestrator) HandleRoster(ids []string) {
	for _, id := range ids {
		o.HandleJoin(id)
	}
}

// HandleJoin starts negotiating with a participant that just joined.
func (o *Orchestrator) HandleJoin(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.hungUp || id == "" || id == o.localID {
		return
	}
	delete(o.departed, id)
	if _, ok := o.peers[id]; ok {
		return
	}
	o.addPeer(id, true)
}

// HandleLeave drops the negotiation with a departed participant.
func (o *Orchestrator) HandleLeave(id string) {
	o.mu.Lock()
	p := o.peers[id]
	delete(o.peers, id)
	o.departed[id] = struct{}{}
	o.mu.Unlock()

	if p != nil {
		p.log.Info("peer left")
		p.stop()
	}
	o.changed()
}

// HandleSignal routes an incoming negotiation payload to its peer.
func (o *Orchestrator) HandleSignal(from string, data *protocol.SignalData) {
	if data == nil {
		o.log.WithField("from", from).Warn("signal without data")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	logger := o.log.WithFields(logrus.Fields{"from": from, "kind": data.Kind})
	if o.hungUp {
		return
	}
	if o.localID == "" {
		logger.Warn("signal before connect, ignoring")
		return
	}
	if _, gone := o.departed[from]; gone {
		logger.Debug("signal from departed peer")
		return
	}

	p, ok := o.peers[from]
	if !ok {
		if data.Kind == protocol.KindAnswer {
			logger.Debug("answer from unknown peer")
			return
		}
		p = o.addPeer(from, false)
	}
	p.post(event{kind: evSignal, signal: data})
}

// addPeer must be called with o.mu held.
func (o *Orchestrator) addPeer(id string, initiate bool) *peer {
	p := newPeer(o, id, IsOfferer(o.localID, id))
	o.peers[id] = p
	o.met[id] = struct{}{}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		p.run()
	}()
	p.post(event{kind: evStart, initiate: initiate})

	p.log.Info("tracking peer")
	return p
}

// SetLocalMedia attaches capture to every existing and future session.
func (o *Orchestrator) SetLocalMedia(m LocalMedia) {
	o.mu.Lock()
	if o.hungUp {
		o.mu.Unlock()
		m.Stop()
		return
	}
	o.media = m
	peers := o.peerList()
	o.mu.Unlock()

	for _, p := range peers {
		p.post(event{kind: evAttachMedia, media: m})
	}
}

func (o *Orchestrator) localMedia() LocalMedia {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.media
}

// Reset closes every negotiation but keeps local media, for when the
// signaling connection came back under a new id.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	peers := o.peerList()
	o.peers = make(map[string]*peer)
	o.mu.Unlock()

	for _, p := range peers {
		p.stop()
	}
	o.changed()
}

// Hangup closes every negotiation and stops local capture. Sessions are
// released in the background; use Wait to block until they are.
func (o *Orchestrator) Hangup() {
	o.mu.Lock()
	if o.hungUp {
		o.mu.Unlock()
		return
	}
	o.hungUp = true
	peers := o.peerList()
	o.peers = make(map[string]*peer)
	media := o.media
	o.media = nil
	o.mu.Unlock()

	for _, p := range peers {
		p.stop()
	}
	if media != nil {
		media.Stop()
	}
	o.log.WithField("peers", len(peers)).Info("hung up")
	o.changed()
}

// Wait blocks until every peer goroutine has released its session.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("peers still closing"), ctx.Err())
	}
}

// Peers returns snapshots sorted by remote id.
func (o *Orchestrator) Peers() []PeerSnapshot {
	o.mu.Lock()
	peers := o.peerList()
	o.mu.Unlock()

	out := make([]PeerSnapshot, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out
}

// Status derives the aggregate call status from the current peers.
func (o *Orchestrator) Status() CallStatus {
	peers := o.Peers()
	states := make([]State, len(peers))
	for i, p := range peers {
		states[i] = p.State
	}
	return deriveStatus(states)
}

// Met returns how many distinct participants were negotiated with.
func (o *Orchestrator) Met() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.met)
}

// Recoveries returns how many times a media connection was lost.
func (o *Orchestrator) Recoveries() int {
	return int(o.recoveries.Load())
}

func (o *Orchestrator) peerList() []*peer {
	list := make([]*peer, 0, len(o.peers))
	for _, p := range o.peers {
		list = append(list, p)
	}
	return list
}

func (o *Orchestrator) changed() {
	if o.cfg.OnChange != nil {
		o.cfg.OnChange()
	}
}
