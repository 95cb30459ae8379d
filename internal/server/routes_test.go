package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/krishangoyal12/Video-Chat-Application/internal/logging"
	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
	"github.com/krishangoyal12/Video-Chat-Application/internal/signaling"
)

type testClient struct {
	t     *testing.T
	conn  *websocket.Conn
	codec protocol.Codec
	id    string
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *signaling.Hub) {
	t.Helper()

	logger := logging.NewTestLogger(t)
	hub := signaling.NewHub(signaling.DefaultOptions(), logger.WithField("component", "hub"))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	opts.Logger = logger.WithField("component", "http")
	ts := httptest.NewServer(Routes(hub, opts))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, hub
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dial connects and consumes the connect welcome.
func dial(t *testing.T, ts *httptest.Server, query string, codec protocol.Codec) *testClient {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, query), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := &testClient{t: t, conn: conn, codec: codec}
	t.Cleanup(func() { conn.Close() })

	welcome := c.Read()
	if welcome.Event != protocol.EventConnect || welcome.ID == "" {
		t.Fatalf("expected connect with an id, got %+v", welcome)
	}
	c.id = welcome.ID
	return c
}

func (c *testClient) Send(msg *protocol.Message) {
	c.t.Helper()

	data, err := c.codec.Marshal(msg)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	if err := c.conn.WriteMessage(frameType, data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// ReadRaw returns the next frame as it came off the wire.
func (c *testClient) ReadRaw() []byte {
	c.t.Helper()

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return data
}

func (c *testClient) Read() *protocol.Message {
	c.t.Helper()

	data := c.ReadRaw()
	var msg protocol.Message
	if err := c.codec.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("unmarshal: %v", err)
	}
	return &msg
}

func (c *testClient) Join(room string) *protocol.Message {
	c.t.Helper()

	c.Send(&protocol.Message{Event: protocol.EventJoinRoom, RoomID: room})
	msg := c.Read()
	if msg.Event != protocol.EventAllUsers {
		c.t.Fatalf("expected all-users, got %+v", msg)
	}
	return msg
}

func TestJoinAndRelayOverWebsocket(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	a := dial(t, ts, "session=a", protocol.JSON)
	b := dial(t, ts, "session=b&codec=msgpack", protocol.Msgpack)

	if roster := a.Join("abc123"); len(roster.Users) != 0 {
		t.Errorf("first member expected empty roster, got %v", roster.Users)
	}

	roster := b.Join("abc123")
	if len(roster.Users) != 1 || roster.Users[0] != a.id {
		t.Errorf("expected roster [%s], got %v", a.id, roster.Users)
	}

	joined := a.Read()
	if joined.Event != protocol.EventUserJoined || joined.ID != b.id {
		t.Errorf("expected user-joined %s, got %+v", b.id, joined)
	}

	offer := protocol.Offer(protocol.SessionDescription{Type: "offer", SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n"})
	raw, err := a.codec.EncodeData(offer)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	a.Send(&protocol.Message{Event: protocol.EventSignal, To: b.id, Data: raw})

	relayed := b.Read()
	if relayed.Event != protocol.EventSignal || relayed.From != a.id {
		t.Fatalf("expected signal from %s, got %+v", a.id, relayed)
	}
	var got protocol.SignalData
	if err := b.codec.DecodeData(relayed.Data, &got); err != nil {
		t.Fatalf("decode relayed payload: %v", err)
	}
	if got.Kind != protocol.KindOffer || got.Description == nil || got.Description.SDP != offer.Description.SDP {
		t.Errorf("payload altered in transit: %+v", got)
	}
}

func TestEmptyRosterIsSentAsList(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	a := dial(t, ts, "session=a", protocol.JSON)
	a.Send(&protocol.Message{Event: protocol.EventJoinRoom, RoomID: "abc123"})

	frame := string(a.ReadRaw())
	if frame != `{"event":"all-users","users":[]}` {
		t.Errorf("unexpected first-join frame %s", frame)
	}
}

func TestRelayForwardsDataUntouched(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	a := dial(t, ts, "session=a", protocol.JSON)
	b := dial(t, ts, "session=b", protocol.JSON)

	data := `{"kind":"offer","payload":{"type":"offer","sdp":"v=0"},"meta":{"n":[1,2.5,true,null]}}`
	frame := `{"event":"signal","to":"` + b.id + `","data":` + data + `}`
	if err := a.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var relayed struct {
		Event string          `json:"event"`
		From  string          `json:"from"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b.ReadRaw(), &relayed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if relayed.Event != protocol.EventSignal || relayed.From != a.id {
		t.Fatalf("expected signal from %s, got %+v", a.id, relayed)
	}
	if string(relayed.Data) != data {
		t.Errorf("data changed in transit:\n got %s\nwant %s", relayed.Data, data)
	}
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	ts, hub := newTestServer(t, Options{})

	a := dial(t, ts, "session=a", protocol.JSON)
	b := dial(t, ts, "session=b", protocol.JSON)
	a.Join("abc123")
	b.Join("abc123")
	a.Read()

	a.conn.Close()

	left := b.Read()
	if left.Event != protocol.EventUserDisconnected || left.ID != a.id {
		t.Errorf("expected user-disconnected %s, got %+v", a.id, left)
	}

	ids, err := hub.Members(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != b.id {
		t.Errorf("expected room {%s}, got %v", b.id, ids)
	}
}

func TestReloadEvictsPreviousConnection(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	old := dial(t, ts, "session=same-tab", protocol.JSON)
	other := dial(t, ts, "session=other", protocol.JSON)
	old.Join("abc123")
	other.Join("abc123")
	old.Read()

	fresh := dial(t, ts, "session=same-tab", protocol.JSON)
	roster := fresh.Join("abc123")
	if len(roster.Users) != 1 || roster.Users[0] != other.id {
		t.Errorf("expected roster [%s], got %v", other.id, roster.Users)
	}

	if msg := other.Read(); msg.Event != protocol.EventUserDisconnected || msg.ID != old.id {
		t.Errorf("expected ghost %s to be announced, got %+v", old.id, msg)
	}
	if msg := other.Read(); msg.Event != protocol.EventUserJoined || msg.ID != fresh.id {
		t.Errorf("expected user-joined %s, got %+v", fresh.id, msg)
	}

	old.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := old.conn.ReadMessage(); err == nil {
		t.Error("expected the evicted connection to be closed")
	}
}

func TestHealthReportsCounts(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	a := dial(t, ts, "", protocol.JSON)
	a.Join("room-1")
	dial(t, ts, "", protocol.JSON)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status      string `json:"status"`
		Rooms       int    `json:"rooms"`
		Connections int    `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Rooms != 1 || body.Connections != 2 {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestUnknownCodecRejected(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "codec=xml"), nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", resp)
	}
}

func TestAllowedOrigins(t *testing.T) {
	ts, _ := newTestServer(t, Options{AllowedOrigins: []string{"https://call.example.com"}})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header); err == nil {
		t.Error("expected foreign origin to be refused")
	}

	header.Set("Origin", "https://call.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
	if err != nil {
		t.Fatalf("expected allowed origin to connect: %v", err)
	}
	conn.Close()
}

func TestClientAddress(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if got := clientAddress(r, false); got != "192.0.2.10" {
		t.Errorf("without proxy trust expected remote host, got %s", got)
	}
	if got := clientAddress(r, true); got != "203.0.113.5" {
		t.Errorf("with proxy trust expected first forwarded hop, got %s", got)
	}
}

func TestForgedForwardedForIgnoredByDefault(t *testing.T) {
	victim := httptest.NewRequest(http.MethodGet, "/ws", nil)
	victim.RemoteAddr = "192.0.2.10:51234"
	victim.Header.Set("User-Agent", "Mozilla/5.0 Firefox/130.0")

	attacker := httptest.NewRequest(http.MethodGet, "/ws", nil)
	attacker.RemoteAddr = "198.51.100.7:40000"
	attacker.Header.Set("User-Agent", "Mozilla/5.0 Firefox/130.0")
	attacker.Header.Set("X-Forwarded-For", "192.0.2.10")

	var opts Options
	if fingerprint(victim, opts.TrustProxy).Matches(fingerprint(attacker, opts.TrustProxy)) {
		t.Error("a forged X-Forwarded-For must not match another participant")
	}
	if !fingerprint(victim, true).Matches(fingerprint(attacker, true)) {
		t.Error("with proxy trust the forwarded address is taken as given")
	}
}
