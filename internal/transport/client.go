// Package transport keeps a participant connected to the signaling server
// and reports connection lifecycle changes as events.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

var (
	// ErrReconnectExhausted is returned by Run once every reconnection
	// attempt has failed.
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")

	// ErrNotConnected is returned by Send while no connection is up.
	ErrNotConnected = errors.New("not connected to signaling server")

	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport closed")
)

// EventType classifies transport events.
type EventType int

const (
	// EventConnected carries the connection id assigned by the server.
	EventConnected EventType = iota
	// EventDisconnected reports the loss of an established connection.
	EventDisconnected
	// EventConnectError reports a failed connection attempt.
	EventConnectError
	// EventMessage carries one server message.
	EventMessage
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventConnectError:
		return "connect_error"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is delivered on the Events channel in the order things happened.
type Event struct {
	Type    EventType
	ID      string
	Message *protocol.Message
	Err     error

	// Attempt is the reconnection attempt that produced the event, zero for
	// the first connection.
	Attempt int
}

// Options configure a Client.
type Options struct {
	// URL of the signaling websocket, for example ws://localhost:8000/ws.
	URL string

	Codec        protocol.Codec
	SessionToken string
	UserAgent    string

	ReconnectAttempts int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	DialTimeout       time.Duration

	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration

	// Resolve overrides host resolution, mostly for tests. Lookup is used
	// when nil.
	Resolve Resolver

	Logger *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.Codec == nil {
		o.Codec = protocol.JSON
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.Resolve == nil {
		o.Resolve = Lookup
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
}

const maxMessageSize = 64 * 1024

// Client manages the websocket connection to the signaling server.
type Client struct {
	opts Options
	log  *logrus.Entry

	events   chan Event
	outgoing chan *protocol.Message

	mu        sync.Mutex
	connected bool

	closing   chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client. Nothing is dialed until Run.
func NewClient(opts Options) *Client {
	opts.setDefaults()
	return &Client{
		opts:     opts,
		log:      opts.Logger,
		events:   make(chan Event, 64),
		outgoing: make(chan *protocol.Message, 256),
		closing:  make(chan struct{}),
	}
}

// Events returns the lifecycle and message stream. It is closed when Run
// returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run connects and keeps reconnecting until ctx is done, Close is called or
// the reconnection budget runs out.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	retry := 0
	for {
		established, err := c.connectOnce(ctx, retry)
		if c.stopping(ctx) {
			return nil
		}

		if established {
			retry = 0
			c.log.WithError(err).Warn("connection lost")
			c.emit(ctx, Event{Type: EventDisconnected, Err: err})
		} else {
			c.log.WithError(err).WithField("attempt", retry).Warn("connect failed")
			c.emit(ctx, Event{Type: EventConnectError, Err: err, Attempt: retry})
		}

		if retry >= c.opts.ReconnectAttempts {
			if err == nil {
				return ErrReconnectExhausted
			}
			return fmt.Errorf("%w: %w", ErrReconnectExhausted, err)
		}
		retry++

		delay := c.backoff(retry)
		c.log.WithFields(logrus.Fields{"attempt": retry, "delay": delay}).Info("reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-c.closing:
			timer.Stop()
			return nil
		}
	}
}

// backoff doubles the base delay per attempt up to the configured ceiling.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.opts.ReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if c.opts.MaxReconnectDelay > 0 && delay >= c.opts.MaxReconnectDelay {
			return c.opts.MaxReconnectDelay
		}
	}
	if c.opts.MaxReconnectDelay > 0 && delay > c.opts.MaxReconnectDelay {
		return c.opts.MaxReconnectDelay
	}
	return delay
}

func (c *Client) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Send queues msg for the current connection.
func (c *Client) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closing:
		return ErrClosed
	default:
	}

	if !c.connected {
		return ErrNotConnected
	}

	select {
	case c.outgoing <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close flushes queued messages, says goodbye to the server and stops Run.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	case <-c.closing:
		// Nobody is obliged to read after Close.
	}
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	q := u.Query()
	q.Set("codec", c.opts.Codec.Name())
	if c.opts.SessionToken != "" {
		q.Set("session", c.opts.SessionToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.dialURL()
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.DialTimeout,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			ip, err := c.opts.Resolve(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("dns lookup failed: %w", err)
			}

			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
		},
	}

	header := http.Header{}
	if c.opts.UserAgent != "" {
		header.Set("User-Agent", c.opts.UserAgent)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, target, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

// connectOnce dials, waits for the welcome and pumps frames until the
// connection drops. established reports whether the welcome arrived.
func (c *Client) connectOnce(ctx context.Context, attempt int) (established bool, err error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.opts.DialTimeout))

	welcome, err := c.read(conn)
	if err != nil {
		return false, fmt.Errorf("waiting for welcome: %w", err)
	}
	if welcome.Event != protocol.EventConnect || welcome.ID == "" {
		return false, fmt.Errorf("unexpected first message %q", welcome.Event)
	}

	// Anything still queued belongs to the previous connection.
	c.drainOutgoing()
	c.setConnected(true)
	defer c.setConnected(false)

	c.log.WithField("id", welcome.ID).Info("connected to signaling server")
	c.emit(ctx, Event{Type: EventConnected, ID: welcome.ID, Attempt: attempt})

	conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx, conn, stop)
	}()

	err = c.readPump(ctx, conn)
	close(stop)
	<-writerDone
	return true, err
}

func (c *Client) read(conn *websocket.Conn) (*protocol.Message, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg protocol.Message
	if err := c.opts.Codec.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// readPump reads messages until the connection fails.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg protocol.Message
		if err := c.opts.Codec.Unmarshal(data, &msg); err != nil {
			c.log.WithError(err).Warn("dropping malformed frame")
			continue
		}

		c.emit(ctx, Event{Type: EventMessage, Message: &msg})
	}
}

// writePump writes queued messages and periodic pings. On Close it flushes
// the queue and sends a close frame.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.outgoing:
			if err := c.write(conn, msg); err != nil {
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-c.closing:
			c.flush(conn)
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return

		case <-ctx.Done():
			conn.Close()
			return

		case <-stop:
			return
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := c.opts.Codec.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("encode failed")
		return nil
	}

	frameType := websocket.TextMessage
	if c.opts.Codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return conn.WriteMessage(frameType, data)
}

func (c *Client) flush(conn *websocket.Conn) {
	for {
		select {
		case msg := <-c.outgoing:
			if err := c.write(conn, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) drainOutgoing() {
	for {
		select {
		case <-c.outgoing:
		default:
			return
		}
	}
}
