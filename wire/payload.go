// Package wire defines the bencoded records exchanged between nodes,
// both as DHT mutable-item values and as direct UDP ping/pong payloads
// (spec §3/§4.5/§6).
package wire

import (
	"bytes"
	"errors"

	bencode "github.com/jackpal/bencode-go"
)

// MaxPingBytes is the hard cap on an encoded direct-ping packet's
// mm-specific payload (spec §4.3).
const MaxPingBytes = 1400

// MmPayload is the wire record carried either as a DHT mutable-item
// value or piggybacked inside a direct UDP ping.
type MmPayload struct {
	ID    uint64 `bencode:"id"`
	From  []byte `bencode:"from"`
	Pong  int    `bencode:"pong"`
	Salt  []byte `bencode:"salt,omitempty"`
	Chunk []byte `bencode:"chunk,omitempty"`
}

// IsPong reports whether this payload is a pong (an ack of a ping).
func (p MmPayload) IsPong() bool { return p.Pong == 1 }

// pingArgs is the bencoded "a" dictionary of a ping query.
type pingArgs struct {
	MM MmPayload `bencode:"mm"`
}

// PingQuery is the outer bencoded dictionary of a direct ping/pong,
// shaped like `{"a":{"mm":...},"q":"ping","y":"q"}`. The DHT library
// this is handed to inserts its own "t" transaction id and node id
// into "a"; this type only owns the mm-specific sub-fields.
type PingQuery struct {
	Y string   `bencode:"y"`
	Q string   `bencode:"q"`
	A pingArgs `bencode:"a"`
}

// NewPingQuery wraps payload into the ping/pong envelope.
func NewPingQuery(payload MmPayload) PingQuery {
	return PingQuery{
		Y: "q",
		Q: "ping",
		A: pingArgs{MM: payload},
	}
}

// Payload returns the mm payload carried by this query.
func (q PingQuery) Payload() MmPayload {
	return q.A.MM
}

// Encode bencodes q and enforces the MaxPingBytes hard cap.
func Encode(q PingQuery) ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, q); err != nil {
		return nil, err
	}
	if buf.Len() > MaxPingBytes {
		return nil, errors.New("wire: encoded ping exceeds 1400-byte cap")
	}
	return buf.Bytes(), nil
}

// Decode parses a bencoded ping/pong packet.
func Decode(raw []byte) (PingQuery, error) {
	var q PingQuery
	if err := bencode.Unmarshal(bytes.NewReader(raw), &q); err != nil {
		return PingQuery{}, err
	}
	return q, nil
}

// EncodeValue bencodes a payload on its own, for storage as a DHT
// mutable-item value (spec §6). Unlike Encode, it carries no ping/pong
// envelope and is not subject to MaxPingBytes.
func EncodeValue(p MmPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue parses a DHT mutable-item value back into a payload.
func DecodeValue(raw []byte) (MmPayload, error) {
	var p MmPayload
	if err := bencode.Unmarshal(bytes.NewReader(raw), &p); err != nil {
		return MmPayload{}, err
	}
	return p, nil
}
