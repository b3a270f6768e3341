// Package key holds the peer identity type shared by every mm2p2p
// component. Actual elliptic-curve key generation is an external
// collaborator's concern; this package only wraps, validates and
// encodes the 32-byte public key handed to it.
package key

import (
	"bytes"
	"encoding/hex"
	"errors"
)

// Size is the length in bytes of a peer public key.
const Size = 32

// ErrZeroed is returned wherever the core rejects an all-zero peer key.
var ErrZeroed = errors.New("key: zeroed peer key")

// Peer is the 32-byte public key identifying a node. The core treats it
// as an opaque routing address: it never interprets the curve the key
// belongs to.
type Peer [Size]byte

// FromBytes builds a Peer from a slice, rejecting anything but exactly
// Size bytes.
func FromBytes(b []byte) (Peer, error) {
	var p Peer
	if len(b) != Size {
		return p, errors.New("key: peer key must be 32 bytes")
	}
	copy(p[:], b)
	return p, nil
}

// FromHex parses a hex-encoded peer key.
func FromHex(s string) (Peer, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Peer{}, err
	}
	return FromBytes(b)
}

// IsZero reports whether p is the all-zero key, which the public API
// must reject for both the local identity and any `send` destination.
func (p Peer) IsZero() bool {
	return p == Peer{}
}

// Validate returns ErrZeroed if p is the zero key.
func (p Peer) Validate() error {
	if p.IsZero() {
		return ErrZeroed
	}
	return nil
}

// Bytes returns a copy of the underlying 32 bytes.
func (p Peer) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, p[:])
	return b
}

// String returns the lowercase hex encoding of p.
func (p Peer) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalText implements encoding.TextMarshaler so a Peer can be used
// directly as a TOML/JSON config value.
func (p Peer) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Peer) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Equal reports whether p and o are the same key.
func (p Peer) Equal(o Peer) bool {
	return bytes.Equal(p[:], o[:])
}
