package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

// PeerSnapshot is a read-only copy of one negotiation for display.
type PeerSnapshot struct {
	RemoteID   string
	State      State
	Offerer    bool
	Tracks     int
	Recoveries int
	Stats      SessionStats
}

// peer drives the negotiation with one remote participant. Everything below
// the snapshot block is owned by the run goroutine.
type peer struct {
	o        *Orchestrator
	remoteID string
	offerer  bool
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	box    *mailbox
	done   chan struct{}

	snapMu sync.Mutex
	snap   PeerSnapshot
	stats  StatsReporter

	session    MediaSession
	generation uint64
	state      State
	negotiated bool
	connected  bool
	recovering bool

	timer    *time.Timer
	timerSeq uint64
}

func newPeer(o *Orchestrator, remoteID string, offerer bool) *peer {
	ctx, cancel := context.WithCancel(context.Background())
	p := &peer{
		o:        o,
		remoteID: remoteID,
		offerer:  offerer,
		log: o.log.WithFields(logrus.Fields{
			"peer":    remoteID,
			"offerer": offerer,
		}),
		ctx:    ctx,
		cancel: cancel,
		box:    newMailbox(),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
	p.snap = PeerSnapshot{RemoteID: remoteID, State: StateIdle, Offerer: offerer}
	return p
}

func (p *peer) post(ev event) {
	p.box.post(ev)
}

func (p *peer) stop() {
	p.cancel()
}

func (p *peer) snapshot() PeerSnapshot {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()

	s := p.snap
	if p.stats != nil {
		s.Stats = p.stats.Stats()
	}
	return s
}

func (p *peer) run() {
	defer close(p.done)
	defer p.teardown()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.box.notify:
			for _, ev := range p.box.drain() {
				if p.ctx.Err() != nil {
					return
				}
				p.handle(ev)
			}
		}
	}
}

func (p *peer) handle(ev event) {
	switch ev.kind {
	case evStart:
		p.start(ev.initiate)

	case evSignal:
		p.handleSignal(ev.signal)

	case evLocalCandidate:
		if ev.seq == p.generation && p.session != nil {
			p.signal(protocol.CandidateSignal(ev.candidate))
		}

	case evConnState:
		if ev.seq == p.generation && p.session != nil {
			p.handleConnState(ev.conn)
		}

	case evTrack:
		if ev.seq == p.generation {
			p.log.WithFields(logrus.Fields{"kind": ev.track.Kind, "codec": ev.track.Codec}).Info("remote track")
			p.update(func(s *PeerSnapshot) { s.Tracks++ })
		}

	case evTimer:
		if ev.seq == p.timerSeq {
			p.handleTimer(ev.timer)
		}

	case evAttachMedia:
		if p.session != nil {
			if err := p.session.AttachLocalMedia(ev.media); err != nil {
				p.fail("attach media", err)
			}
		}
	}
}

func (p *peer) start(initiate bool) {
	if err := p.ensureSession(); err != nil {
		return
	}
	if initiate && p.offerer && p.state == StateIdle {
		p.sendOffer(false)
	}
}

// ensureSession creates a session if the peer has none.
func (p *peer) ensureSession() error {
	if p.session != nil {
		return nil
	}

	p.generation++
	gen := p.generation

	session, err := p.o.cfg.Factory(p.remoteID, SessionEvents{
		OnICECandidate: func(c protocol.Candidate) {
			p.post(event{kind: evLocalCandidate, seq: gen, candidate: c})
		},
		OnTrack: func(t TrackInfo) {
			p.post(event{kind: evTrack, seq: gen, track: t})
		},
		OnConnectionStateChange: func(s ConnectionState) {
			p.post(event{kind: evConnState, seq: gen, conn: s})
		},
	})
	if err != nil {
		p.fail("create session", err)
		p.setState(StateFailed)
		return err
	}

	p.session = session
	p.negotiated = false
	p.connected = false
	p.recovering = false

	if media := p.o.localMedia(); media != nil {
		if err := session.AttachLocalMedia(media); err != nil {
			p.fail("attach media", err)
		}
	}

	p.snapMu.Lock()
	p.stats, _ = session.(StatsReporter)
	p.snapMu.Unlock()

	p.setState(StateIdle)
	if d := p.o.cfg.NegotiationTimeout; d > 0 {
		p.arm(timerNegotiation, d)
	}
	return nil
}

func (p *peer) closeSession() {
	p.disarm()
	if p.session == nil {
		return
	}

	if err := p.session.Close(); err != nil {
		p.log.WithError(err).Debug("close session")
	}
	p.session = nil
	// Callbacks from the released session are now stale.
	p.generation++
	p.negotiated = false
	p.connected = false
	p.recovering = false

	p.snapMu.Lock()
	p.stats = nil
	p.snapMu.Unlock()
}

func (p *peer) teardown() {
	p.closeSession()
	p.setState(StateClosed)
}

func (p *peer) sendOffer(iceRestart bool) {
	offer, err := p.session.CreateOffer(iceRestart)
	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.fail("create offer", err)
		return
	}

	if err := p.session.SetLocalDescription(offer); err != nil {
		p.fail("set local offer", err)
		return
	}
	if p.ctx.Err() != nil {
		return
	}

	p.setState(StateOfferSent)
	p.signal(protocol.Offer(offer))
}

func (p *peer) handleSignal(data *protocol.SignalData) {
	switch data.Kind {
	case protocol.KindOffer:
		if data.Description == nil {
			p.fail("apply offer", ErrMalformedSignal)
			return
		}
		p.handleOffer(*data.Description)

	case protocol.KindAnswer:
		if data.Description == nil {
			p.fail("apply answer", ErrMalformedSignal)
			return
		}
		p.handleAnswer(*data.Description)

	case protocol.KindCandidate:
		if data.Candidate == nil {
			p.fail("add candidate", ErrMalformedSignal)
			return
		}
		p.handleCandidate(*data.Candidate)

	default:
		p.fail("dispatch signal", fmt.Errorf("%w %q", ErrUnknownKind, data.Kind))
	}
}

func (p *peer) handleOffer(offer protocol.SessionDescription) {
	if p.state == StateOfferSent && p.offerer {
		p.log.Debug("ignoring competing offer")
		return
	}

	// An offer during the recreate delay builds the new session right away.
	if err := p.ensureSession(); err != nil {
		return
	}

	err := p.session.SetRemoteDescription(offer)
	if err != nil && p.negotiated {
		p.log.WithError(err).Info("offer rejected by current session, recreating")
		p.closeSession()
		if err := p.ensureSession(); err != nil {
			return
		}
		err = p.session.SetRemoteDescription(offer)
	}
	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.fail("apply offer", err)
		return
	}
	p.setState(StateOfferReceived)

	answer, err := p.session.CreateAnswer()
	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.fail("create answer", err)
		return
	}
	if err := p.session.SetLocalDescription(answer); err != nil {
		p.fail("set local answer", err)
		return
	}
	if p.ctx.Err() != nil {
		return
	}

	p.negotiated = true
	p.settle()
	p.signal(protocol.Answer(answer))
}

func (p *peer) handleAnswer(answer protocol.SessionDescription) {
	if p.state != StateOfferSent || p.session == nil {
		p.log.WithError(&NegotiationError{Op: "apply answer", Peer: p.remoteID, Err: ErrNoOutstandingOffer}).
			WithField("state", p.state).Debug("ignoring answer")
		return
	}

	err := p.session.SetRemoteDescription(answer)
	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.fail("apply answer", err)
		return
	}

	p.negotiated = true
	p.settle()
}

func (p *peer) handleCandidate(c protocol.Candidate) {
	if p.session == nil {
		p.log.Debug("dropping candidate, no session")
		return
	}
	if err := p.session.AddICECandidate(c); err != nil {
		p.fail("add candidate", err)
	}
}

// settle moves a finished offer/answer exchange to Stable, or straight to
// Connected when the transport already is.
func (p *peer) settle() {
	if p.connected {
		p.setState(StateConnected)
		return
	}
	p.setState(StateStable)
}

func (p *peer) handleConnState(s ConnectionState) {
	p.log.WithField("connection", s).Debug("connection state")

	switch s {
	case ConnectionConnected:
		p.connected = true
		p.recovering = false
		p.disarm()
		if p.state != StateOfferSent && p.state != StateOfferReceived {
			p.setState(StateConnected)
		}

	case ConnectionFailed, ConnectionDisconnected:
		p.connected = false
		if p.recovering {
			return
		}
		p.recover()
	}
}

// recover tries an ICE restart and bounds how long the session may take to
// come back before it is replaced.
func (p *peer) recover() {
	stable := p.state == StateStable || p.state == StateConnected

	p.recovering = true
	p.setState(StateFailed)
	p.update(func(s *PeerSnapshot) { s.Recoveries++ })
	p.o.recoveries.Add(1)
	p.log.Warn("media connection lost, recovering")

	p.arm(timerRecovery, p.o.cfg.RecoveryTimeout)

	if p.offerer && stable {
		p.sendOffer(true)
	}
}

func (p *peer) handleTimer(kind timerKind) {
	switch kind {
	case timerNegotiation, timerRecovery:
		p.log.WithField("timer", kind).Warn("session did not connect in time, recreating")
		p.closeSession()
		p.setState(StateFailed)
		p.arm(timerRecreate, p.o.cfg.RecreateDelay)

	case timerRecreate:
		if p.session != nil {
			return
		}
		if err := p.ensureSession(); err != nil {
			return
		}
		if p.offerer {
			p.sendOffer(false)
		}
	}
}

func (p *peer) arm(kind timerKind, d time.Duration) {
	p.disarm()
	seq := p.timerSeq
	p.timer = time.AfterFunc(d, func() {
		p.post(event{kind: evTimer, seq: seq, timer: kind})
	})
}

func (p *peer) disarm() {
	p.timerSeq++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *peer) signal(data *protocol.SignalData) {
	if p.ctx.Err() != nil {
		return
	}
	if err := p.o.cfg.Signaler.Signal(p.remoteID, data); err != nil {
		p.fail("send "+string(data.Kind), err)
	}
}

func (p *peer) fail(op string, err error) {
	p.log.WithError(&NegotiationError{Op: op, Peer: p.remoteID, Err: err}).Warn("negotiation step failed")
}

func (p *peer) setState(s State) {
	if p.state == s {
		return
	}
	p.log.WithFields(logrus.Fields{"from": p.state, "to": s}).Debug("state change")
	p.state = s
	p.update(func(snap *PeerSnapshot) { snap.State = s })
}

func (p *peer) update(fn func(*PeerSnapshot)) {
	p.snapMu.Lock()
	fn(&p.snap)
	p.snapMu.Unlock()
	p.o.changed()
}
