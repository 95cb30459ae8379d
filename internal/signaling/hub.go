package signaling

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

// ErrHubStopped is returned by queries issued after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// Options tune connection keepalive and registry housekeeping.
type Options struct {
	// Time allowed to write a frame to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong from the peer.
	PongWait time.Duration

	// Send pings to the peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum frame size allowed from the peer.
	MaxMessageSize int64

	// Outbound queue length per connection. A client that lets it fill up
	// is evicted.
	SendBuffer int

	// ReapInterval is how often stale connections are swept. Zero disables
	// the reaper.
	ReapInterval time.Duration

	// StaleAfter is how long a connection may stay silent before the
	// reaper treats it as abandoned.
	StaleAfter time.Duration

	// GhostEviction evicts room members sharing the joiner's fingerprint.
	GhostEviction bool
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       30 * time.Second,
		PingPeriod:     15 * time.Second,
		MaxMessageSize: 64 * 1024, // enough for SDP with many candidates
		SendBuffer:     256,
		ReapInterval:   60 * time.Second,
		StaleAfter:     45 * time.Second,
		GhostEviction:  true,
	}
}

// Stats is a read-only view of the registry for health checks.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type envelope struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the room registry and signal relay. A single goroutine (Run) owns
// every room and connection record, so a join's roster capture, insertion
// and broadcast can never interleave with another join or leave.
type Hub struct {
	opts Options
	log  *logrus.Entry
	now  func() time.Time

	rooms   map[string]*Room
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan envelope
	activity   chan *Client
	queries    chan func()
	done       chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub(opts Options, logger *logrus.Entry) *Hub {
	return &Hub{
		opts:       opts,
		log:        logger,
		now:        time.Now,
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan envelope),
		activity:   make(chan *Client, 64),
		queries:    make(chan func()),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main processing loop and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	var reap <-chan time.Time
	if h.opts.ReapInterval > 0 {
		ticker := time.NewTicker(h.opts.ReapInterval)
		defer ticker.Stop()
		reap = ticker.C
	}

	defer func() {
		for _, c := range h.clients {
			h.closeClient(c)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case env := <-h.inbound:
			h.handleMessage(env.client, env.msg)

		case c := <-h.activity:
			if h.clients[c.ID] == c {
				c.LastActivity = h.now()
			}

		case fn := <-h.queries:
			fn()

		case <-reap:
			h.reap(h.now())
		}
	}
}

// Register hands a freshly upgraded connection to the hub. It reports false
// when the hub is no longer running.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(c *Client, msg *protocol.Message) {
	select {
	case h.inbound <- envelope{client: c, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) touch(c *Client) {
	select {
	case h.activity <- c:
	case <-h.done:
	default:
		// A busy hub will see the next frame or pong soon enough.
	}
}

// query runs fn on the hub goroutine and waits for it.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}

	select {
	case h.queries <- wrapped:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Stats returns room and connection counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := h.query(ctx, func() {
		s = Stats{Rooms: len(h.rooms), Connections: len(h.clients)}
	})
	return s, err
}

// Members returns the sorted connection ids in a room, or nil when the room
// does not exist.
func (h *Hub) Members(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := h.query(ctx, func() {
		if room, ok := h.rooms[roomID]; ok {
			ids = room.memberIDs("")
		}
	})
	return ids, err
}

func (h *Hub) handleRegister(c *Client) {
	c.LastActivity = h.now()
	h.clients[c.ID] = c

	h.log.WithFields(logrus.Fields{
		"conn":  c.ID,
		"addr":  c.Fingerprint.Address,
		"codec": c.Codec.Name(),
	}).Info("client connected")

	h.send(c, &protocol.Message{Event: protocol.EventConnect, ID: c.ID})
}

func (h *Hub) handleUnregister(c *Client) {
	if h.clients[c.ID] != c {
		// Already evicted or reaped.
		return
	}

	h.log.WithField("conn", c.ID).Info("client disconnected")
	h.leave(c)
	delete(h.clients, c.ID)
	h.closeClient(c)
}

func (h *Hub) handleMessage(c *Client, msg *protocol.Message) {
	if h.clients[c.ID] != c {
		return
	}
	c.LastActivity = h.now()

	switch msg.Event {
	case protocol.EventJoinRoom:
		h.join(c, msg.RoomID)

	case protocol.EventLeaveRoom:
		h.leave(c)

	case protocol.EventSignal:
		h.relay(c, msg)

	default:
		h.log.WithFields(logrus.Fields{
			"conn":  c.ID,
			"event": msg.Event,
		}).Warn("unknown event")
	}
}

func (h *Hub) join(c *Client, roomID string) {
	logger := h.log.WithFields(logrus.Fields{"conn": c.ID, "room": roomID})

	if roomID == "" {
		logger.Warn("join rejected: empty room id")
		h.send(c, &protocol.Message{Event: protocol.EventError, Error: "room id is required"})
		return
	}

	if c.RoomID == roomID {
		// Joining twice only repeats the roster.
		h.send(c, &protocol.Message{
			Event: protocol.EventAllUsers,
			Users: h.rooms[roomID].memberIDs(c.ID),
		})
		return
	}

	if c.RoomID != "" {
		h.leave(c)
	}

	if room, ok := h.rooms[roomID]; ok && h.opts.GhostEviction {
		for _, member := range room.Members {
			if member.Fingerprint.Matches(c.Fingerprint) {
				h.evict(member, "ghost")
			}
		}
	}

	roster := []string{}
	room, ok := h.rooms[roomID]
	if ok {
		roster = room.memberIDs("")
	}

	// The joiner only becomes a member once its roster is queued. If that
	// evicts it, the room never hears of it.
	h.send(c, &protocol.Message{Event: protocol.EventAllUsers, Users: roster})
	if c.closed {
		return
	}

	if !ok {
		room = newRoom(roomID)
		h.rooms[roomID] = room
		logger.Info("room created")
	}
	room.Members[c.ID] = c
	c.RoomID = roomID

	for _, id := range roster {
		if member, ok := room.Members[id]; ok {
			h.send(member, &protocol.Message{Event: protocol.EventUserJoined, ID: c.ID})
		}
	}

	logger.WithField("members", len(room.Members)).Info("joined room")
}

// leave removes c from its room, if any. Calling it again is a no-op.
func (h *Hub) leave(c *Client) {
	if c.RoomID == "" {
		return
	}

	roomID := c.RoomID
	c.RoomID = ""

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room.Members, c.ID)

	logger := h.log.WithFields(logrus.Fields{"conn": c.ID, "room": roomID})
	if len(room.Members) == 0 {
		delete(h.rooms, roomID)
		logger.Info("room deleted")
		return
	}

	logger.WithField("members", len(room.Members)).Info("left room")
	for _, member := range room.Members {
		h.send(member, &protocol.Message{Event: protocol.EventUserDisconnected, ID: c.ID})
	}
}

// relay forwards a signal to its addressee with its payload undecoded.
// Signals to connections that are gone are dropped; the sender learns
// about departures from user-disconnected, not from the relay.
func (h *Hub) relay(from *Client, msg *protocol.Message) {
	target, ok := h.clients[msg.To]
	if !ok {
		h.log.WithFields(logrus.Fields{"from": from.ID, "to": msg.To}).Debug("signal dropped: recipient gone")
		return
	}

	data, err := protocol.Transcode(msg.Data, from.Codec, target.Codec)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"from": from.ID, "to": msg.To}).Warn("signal dropped: payload not transcodable")
		return
	}

	h.send(target, &protocol.Message{
		Event: protocol.EventSignal,
		From:  from.ID,
		Data:  data,
	})
}

// evict removes a connection from the registry and closes its transport.
func (h *Hub) evict(c *Client, reason string) {
	if h.clients[c.ID] != c {
		return
	}

	h.log.WithFields(logrus.Fields{
		"conn":   c.ID,
		"room":   c.RoomID,
		"reason": reason,
	}).Warn("evicting connection")

	delete(h.clients, c.ID)
	h.leave(c)
	h.closeClient(c)
}

func (h *Hub) reap(now time.Time) {
	cutoff := now.Add(-h.opts.StaleAfter)
	for _, c := range h.clients {
		if c.LastActivity.Before(cutoff) {
			h.evict(c, "stale")
		}
	}
}

// send queues msg for c without ever blocking the hub.
func (h *Hub) send(c *Client, msg *protocol.Message) {
	if c.closed {
		return
	}

	select {
	case c.Send <- msg:
	default:
		h.evict(c, "slow consumer")
	}
}

func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
