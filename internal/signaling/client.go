package signaling

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
)

// Fingerprint identifies the human behind a connection well enough to spot
// a reload that raced the teardown of the previous connection.
type Fingerprint struct {
	Address string
	Agent   string

	// Token is an optional client-chosen session token. When either side
	// carries one, it is the only thing compared.
	Token string
}

// Matches reports whether two fingerprints belong to the same participant.
func (f Fingerprint) Matches(other Fingerprint) bool {
	if f.Token != "" || other.Token != "" {
		return f.Token == other.Token
	}
	return f.Address != "" && f.Address == other.Address && f.Agent == other.Agent
}

// Client is a wrapper for a single websocket connection (one participant).
// Everything except Conn is owned by the hub goroutine once registered.
type Client struct {
	// ID is the connection id announced to the client in the connect event.
	ID string

	Hub   *Hub
	Conn  *websocket.Conn
	Codec protocol.Codec

	Fingerprint Fingerprint

	// RoomID is the room the client joined, empty when it is in none.
	RoomID string

	// LastActivity is refreshed on every inbound frame and pong.
	LastActivity time.Time

	// Send is the buffered outbound queue drained by WritePump.
	Send chan *protocol.Message

	closed bool
}

// NewClient creates a client bound to hub. The connection id must be unique
// for the lifetime of the process.
func NewClient(hub *Hub, id string, conn *websocket.Conn, codec protocol.Codec, fp Fingerprint) *Client {
	return &Client{
		ID:          id,
		Hub:         hub,
		Conn:        conn,
		Codec:       codec,
		Fingerprint: fp,
		Send:        make(chan *protocol.Message, hub.opts.SendBuffer),
	}
}

func (c *Client) logger() *logrus.Entry {
	return c.Hub.log.WithField("conn", c.ID)
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregisterClient(c)
		c.Conn.Close()
	}()

	opts := c.Hub.opts
	c.Conn.SetReadLimit(opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		c.Hub.touch(c)
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().WithError(err).Warn("read failed")
			}
			return
		}

		var msg protocol.Message
		if err := c.Codec.Unmarshal(data, &msg); err != nil {
			c.logger().WithError(err).Warn("dropping malformed frame")
			continue
		}

		c.Hub.dispatch(c, &msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	opts := c.Hub.opts
	ticker := time.NewTicker(opts.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.Codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				// The hub closed the channel: left, evicted or reaped.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.Codec.Marshal(msg)
			if err != nil {
				c.logger().WithError(err).Error("encode failed")
				continue
			}
			if err := c.Conn.WriteMessage(frameType, data); err != nil {
				c.logger().WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
