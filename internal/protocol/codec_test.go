package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONFieldNames(t *testing.T) {
	idx := uint16(0)
	payload, err := JSON.EncodeData(CandidateSignal(Candidate{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host",
		SDPMLineIndex: &idx,
	}))
	if err != nil {
		t.Fatalf("encode data: %v", err)
	}
	msg := &Message{Event: EventSignal, To: "peer-b", Data: payload}

	data, err := JSON.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	raw := string(data)
	for _, want := range []string{`"event":"signal"`, `"to":"peer-b"`, `"kind":"candidate"`, `"sdpMLineIndex":0`} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected %s in %s", want, raw)
		}
	}
	for _, absent := range []string{`"room_id"`, `"users"`} {
		if strings.Contains(raw, absent) {
			t.Errorf("%s should be omitted: %s", absent, raw)
		}
	}
}

func TestEmptyRosterEncodesAsList(t *testing.T) {
	data, err := JSON.Marshal(&Message{Event: EventAllUsers, Users: []string{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"event":"all-users","users":[]}` {
		t.Errorf("unexpected frame %s", data)
	}
}

func TestRawDataPassesThrough(t *testing.T) {
	payload := `{"kind":"offer","payload":{"type":"offer","sdp":"v=0"}}`
	frame := `{"event":"signal","from":"peer-a","data":` + payload + `}`

	var msg Message
	if err := JSON.Unmarshal([]byte(frame), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(msg.Data) != payload {
		t.Errorf("data changed on decode: %s", msg.Data)
	}

	out, err := JSON.Marshal(&msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != frame {
		t.Errorf("frame changed on re-encode:\n got %s\nwant %s", out, frame)
	}

	packedData, err := Msgpack.EncodeData(map[string]any{"kind": "offer", "extra": []any{int64(1), "x"}})
	if err != nil {
		t.Fatalf("encode data: %v", err)
	}
	packed, err := Msgpack.Marshal(&Message{Event: EventSignal, Data: packedData})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var unpacked Message
	if err := Msgpack.Unmarshal(packed, &unpacked); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(unpacked.Data, packedData) {
		t.Errorf("msgpack data changed: %x != %x", unpacked.Data, packedData)
	}
}

func TestTranscode(t *testing.T) {
	in := RawData(`{"kind":"candidate","candidate":{"candidate":"candidate:1","sdpMLineIndex":1},"extra":{"ratio":0.5}}`)

	packed, err := Transcode(in, JSON, Msgpack)
	if err != nil {
		t.Fatalf("json to msgpack: %v", err)
	}
	var data SignalData
	if err := Msgpack.DecodeData(packed, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Kind != KindCandidate || data.Candidate == nil || data.Candidate.SDPMLineIndex == nil || *data.Candidate.SDPMLineIndex != 1 {
		t.Fatalf("unexpected candidate: %+v", data)
	}

	back, err := Transcode(packed, Msgpack, JSON)
	if err != nil {
		t.Fatalf("msgpack to json: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(back, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if extra, ok := generic["extra"].(map[string]any); !ok || extra["ratio"] != 0.5 {
		t.Errorf("unknown fields lost: %s", back)
	}

	if same, err := Transcode(in, JSON, JSON); err != nil || !bytes.Equal(same, in) {
		t.Errorf("same codec should pass through, got %s %v", same, err)
	}
	if _, err := Transcode(RawData(`{"kind":`), JSON, Msgpack); err == nil {
		t.Error("expected error for a truncated payload")
	}
}

func TestMsgpackKeepsSignalPayload(t *testing.T) {
	payload, err := Msgpack.EncodeData(Offer(SessionDescription{Type: "offer", SDP: "v=0\r\n"}))
	if err != nil {
		t.Fatalf("encode data: %v", err)
	}

	data, err := Msgpack.Marshal(&Message{Event: EventSignal, From: "peer-a", Data: payload})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Message
	if err := Msgpack.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var signal SignalData
	if err := Msgpack.DecodeData(out.Data, &signal); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out.From != "peer-a" || signal.Kind != KindOffer || signal.Description == nil {
		t.Fatalf("unexpected message: %+v %+v", out, signal)
	}
	if signal.Description.SDP != "v=0\r\n" {
		t.Errorf("SDP mangled: %q", signal.Description.SDP)
	}
	if err := Msgpack.DecodeData(nil, &signal); err != ErrNoData {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestCodecByName(t *testing.T) {
	if c, err := CodecByName(""); err != nil || c.Name() != "json" {
		t.Errorf("empty name should select json, got %v %v", c, err)
	}
	if c, err := CodecByName("msgpack"); err != nil || !c.Binary() {
		t.Errorf("msgpack should be binary, got %v %v", c, err)
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected error for unknown codec")
	}
}
