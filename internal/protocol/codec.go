package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns a Message into a websocket frame and back.
type Codec interface {
	// Name is the value accepted by the ?codec= query parameter.
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	Marshal(msg *Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error

	// EncodeData and DecodeData convert a signal payload to and from the
	// form it takes inside a frame of this codec.
	EncodeData(v any) (RawData, error)
	DecodeData(data RawData, v any) error
}

var (
	// JSON is the default codec and the only one browsers speak.
	JSON Codec = jsonCodec{}

	// Msgpack packs the same fields in binary frames. Struct fields keep
	// their json tags so both codecs agree on names.
	Msgpack Codec = msgpackCodec{}
)

// CodecByName resolves a codec from its query-string name. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// ErrNoData is returned when decoding a signal that carries no payload.
var ErrNoData = errors.New("signal has no data")

// Transcode re-encodes a payload received with from so it can be written
// with to. Payloads pass through untouched when both sides share a codec.
func Transcode(data RawData, from, to Codec) (RawData, error) {
	if len(data) == 0 || from.Name() == to.Name() {
		return data, nil
	}

	var v any
	if err := from.DecodeData(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", from.Name(), err)
	}
	out, err := to.EncodeData(normalize(v))
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", to.Name(), err)
	}
	return out, nil
}

// normalize turns JSON numbers into integers where they fit, so a value
// such as sdpMLineIndex still decodes into an integer field after a trip
// through msgpack.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
	}
	return v
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg *Message) error {
	return json.Unmarshal(data, msg)
}

func (jsonCodec) EncodeData(v any) (RawData, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return RawData(data), nil
}

func (jsonCodec) DecodeData(data RawData, v any) error {
	if len(data) == 0 {
		return ErrNoData
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Marshal(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, msg *Message) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(msg)
}

func (msgpackCodec) EncodeData(v any) (RawData, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return RawData(buf.Bytes()), nil
}

func (msgpackCodec) DecodeData(data RawData, v any) error {
	if len(data) == 0 {
		return ErrNoData
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
