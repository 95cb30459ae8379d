package protocol

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// RawData is a signal payload kept in the encoding of the frame it came
// in. The server forwards it without decoding; only clients look inside,
// through Codec.DecodeData.
type RawData []byte

var jsonNull = []byte("null")

// MarshalJSON returns d as is. d must already be JSON.
func (d RawData) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return jsonNull, nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw value.
func (d *RawData) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*d = nil
		return nil
	}
	*d = append((*d)[:0], data...)
	return nil
}

// EncodeMsgpack writes d as is. d must already be msgpack.
func (d RawData) EncodeMsgpack(enc *msgpack.Encoder) error {
	if len(d) == 0 {
		return enc.EncodeNil()
	}
	return msgpack.RawMessage(d).EncodeMsgpack(enc)
}

// DecodeMsgpack keeps the next value undecoded.
func (d *RawData) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeRaw()
	if err != nil {
		return err
	}
	if len(raw) == 1 && raw[0] == msgpcode.Nil {
		*d = nil
		return nil
	}
	*d = RawData(raw)
	return nil
}
