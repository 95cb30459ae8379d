// Package call runs one participant: it keeps the signaling connection up,
// feeds server events into the negotiation orchestrator and reports a
// summary when the call ends.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
	"github.com/krishangoyal12/Video-Chat-Application/internal/transport"
)

// Transport is the signaling connection. *transport.Client implements it.
type Transport interface {
	Run(ctx context.Context) error
	Send(msg *protocol.Message) error
	Events() <-chan transport.Event
	Close()
}

// Options configure a Call.
type Options struct {
	RoomID    string
	Transport Transport
	Factory   mesh.SessionFactory

	// Codec must match the transport's; signal payloads are encoded and
	// decoded with it. Defaults to JSON.
	Codec protocol.Codec

	// Media is attached to every session. Nil joins receive-only.
	Media mesh.LocalMedia

	// Negotiation carries the recovery timings; its Factory, Signaler and
	// Logger are filled in by New.
	Negotiation mesh.Config

	// OnChange fires whenever the connection or a peer changes. It must
	// not block.
	OnChange func()

	Logger *logrus.Entry
}

// Snapshot is the state of the call at one instant, for display.
type Snapshot struct {
	RoomID    string
	LocalID   string
	Connected bool
	Status    mesh.CallStatus
	Peers     []mesh.PeerSnapshot
	Elapsed   time.Duration
	LastError string
}

// Summary describes a finished call.
type Summary struct {
	RoomID     string
	Duration   time.Duration
	PeersMet   int
	Recoveries int
	Reconnects int
}

// Call is one participant in one room.
type Call struct {
	opts      Options
	log       *logrus.Entry
	orch      *mesh.Orchestrator
	transport Transport
	started   time.Time

	connected  atomic.Bool
	everUp     atomic.Bool
	reconnects atomic.Int32

	mu      sync.Mutex
	lastErr string
	ended   time.Time

	hangupOnce sync.Once
}

// signaler sends negotiation payloads through the signaling connection.
type signaler struct {
	t     Transport
	codec protocol.Codec
}

func (s signaler) Signal(to string, data *protocol.SignalData) error {
	raw, err := s.codec.EncodeData(data)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return s.t.Send(&protocol.Message{Event: protocol.EventSignal, To: to, Data: raw})
}

// New wires a call. Nothing happens until Run.
func New(opts Options) *Call {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Codec == nil {
		opts.Codec = protocol.JSON
	}

	c := &Call{
		opts:      opts,
		log:       logger.WithField("room", opts.RoomID),
		transport: opts.Transport,
		started:   time.Now(),
	}

	cfg := opts.Negotiation
	cfg.Factory = opts.Factory
	cfg.Signaler = signaler{t: opts.Transport, codec: opts.Codec}
	cfg.Logger = c.log.WithField("component", "mesh")
	cfg.OnChange = c.changed
	c.orch = mesh.New(cfg)

	if opts.Media != nil {
		c.orch.SetLocalMedia(opts.Media)
	}
	return c
}

// Run keeps the call going until ctx is done, Hangup is called or the
// transport gives up reconnecting.
func (c *Call) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.transport.Run(ctx)
	})
	g.Go(func() error {
		for ev := range c.transport.Events() {
			c.handle(ev)
		}
		return nil
	})

	err := g.Wait()
	c.orch.Hangup()
	c.finish()
	return err
}

func (c *Call) handle(ev transport.Event) {
	switch ev.Type {
	case transport.EventConnected:
		if c.everUp.Swap(true) {
			c.reconnects.Add(1)
		}
		c.connected.Store(true)
		c.setError("")
		c.log.WithFields(logrus.Fields{"id": ev.ID, "attempt": ev.Attempt}).Info("connected to signaling server")

		c.orch.SetLocalID(ev.ID)
		if err := c.transport.Send(&protocol.Message{Event: protocol.EventJoinRoom, RoomID: c.opts.RoomID}); err != nil {
			c.log.WithError(err).Warn("join room")
		}

	case transport.EventDisconnected:
		c.connected.Store(false)
		c.setError(errString(ev.Err))
		c.log.WithError(ev.Err).Warn("signaling connection lost")
		// Server state for the old connection is gone; every peer must be
		// renegotiated under the next id.
		c.orch.Reset()

	case transport.EventConnectError:
		c.setError(errString(ev.Err))
		c.log.WithError(ev.Err).WithField("attempt", ev.Attempt).Warn("connect error")

	case transport.EventMessage:
		c.dispatch(ev.Message)
	}
	c.changed()
}

func (c *Call) dispatch(msg *protocol.Message) {
	if msg == nil {
		return
	}

	switch msg.Event {
	case protocol.EventAllUsers:
		c.log.WithField("users", len(msg.Users)).Debug("room roster")
		c.orch.HandleRoster(msg.Users)
	case protocol.EventUserJoined:
		c.orch.HandleJoin(msg.ID)
	case protocol.EventUserDisconnected:
		c.orch.HandleLeave(msg.ID)
	case protocol.EventSignal:
		var data protocol.SignalData
		if err := c.opts.Codec.DecodeData(msg.Data, &data); err != nil {
			c.log.WithError(err).WithField("from", msg.From).Warn("dropping undecodable signal")
			return
		}
		c.orch.HandleSignal(msg.From, &data)
	case protocol.EventError:
		c.setError(msg.Error)
		c.log.WithField("error", msg.Error).Warn("server error")
	default:
		c.log.WithField("event", msg.Event).Debug("ignoring event")
	}
}

// Hangup leaves the room, closes every session and stops local media. It
// returns once sessions are released or ctx is done.
func (c *Call) Hangup(ctx context.Context) error {
	var err error
	c.hangupOnce.Do(func() {
		c.orch.Hangup()

		sendErr := c.transport.Send(&protocol.Message{Event: protocol.EventLeaveRoom, RoomID: c.opts.RoomID})
		if sendErr != nil && !errors.Is(sendErr, transport.ErrNotConnected) && !errors.Is(sendErr, transport.ErrClosed) {
			c.log.WithError(sendErr).Debug("leave room")
		}
		c.transport.Close()

		err = c.orch.Wait(ctx)
		c.finish()
		c.log.Info("call ended")
	})
	return err
}

func (c *Call) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended.IsZero() {
		c.ended = time.Now()
	}
}

// Snapshot returns the current call state.
func (c *Call) Snapshot() Snapshot {
	c.mu.Lock()
	lastErr := c.lastErr
	c.mu.Unlock()

	return Snapshot{
		RoomID:    c.opts.RoomID,
		LocalID:   c.orch.LocalID(),
		Connected: c.connected.Load(),
		Status:    c.orch.Status(),
		Peers:     c.orch.Peers(),
		Elapsed:   c.elapsed(),
		LastError: lastErr,
	}
}

// Summary reports totals for the call so far.
func (c *Call) Summary() Summary {
	return Summary{
		RoomID:     c.opts.RoomID,
		Duration:   c.elapsed(),
		PeersMet:   c.orch.Met(),
		Recoveries: c.orch.Recoveries(),
		Reconnects: int(c.reconnects.Load()),
	}
}

func (c *Call) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ended.IsZero() {
		return c.ended.Sub(c.started)
	}
	return time.Since(c.started)
}

func (c *Call) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

func (c *Call) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
