package chunk

import (
	"bytes"
	"errors"
)

// MaxChunks is the largest number of chunks a payload may be split
// into; it bounds the 1-byte chunk-index range to [1, 253].
const MaxChunks = 253

// MaxBody is the largest number of application bytes carried by a
// non-first chunk, before the trailing CRC-32 is appended.
const MaxBody = 992

// ErrSaltHasZeroByte is returned when a subject-salt contains a 0x00
// byte, which is reserved because the salt is concatenated with a
// 1-byte chunk index and may cross NUL-terminated interop boundaries.
var ErrSaltHasZeroByte = errors.New("chunk: subject-salt must not contain a zero byte")

// Salt is an application-chosen byte tag identifying a message slot
// between a sender and a receiver.
type Salt []byte

// NewSalt validates and wraps a subject-salt.
func NewSalt(b []byte) (Salt, error) {
	if bytes.IndexByte(b, 0x00) >= 0 {
		return nil, ErrSaltHasZeroByte
	}
	out := make(Salt, len(b))
	copy(out, b)
	return out, nil
}

// FullSalt is subject_salt ‖ chunk_index_byte, chunk_index_byte in [1,253].
func (s Salt) FullSalt(index byte) ([]byte, error) {
	if index < 1 || index > MaxChunks {
		return nil, errors.New("chunk: index out of range [1,253]")
	}
	full := make([]byte, len(s)+1)
	copy(full, s)
	full[len(s)] = index
	return full, nil
}

// SplitFullSalt splits a full salt into its subject-salt and 1-based
// chunk index, as done by the direct-ping inbound handler (spec §4.5).
func SplitFullSalt(full []byte) (Salt, byte, error) {
	if len(full) < 2 {
		return nil, 0, errors.New("chunk: full salt too short")
	}
	index := full[len(full)-1]
	if index < 1 {
		return nil, 0, errors.New("chunk: chunk index must be >= 1")
	}
	s, err := NewSalt(full[:len(full)-1])
	if err != nil {
		return nil, 0, err
	}
	return s, index, nil
}

// String returns the salt rendered for logging.
func (s Salt) String() string {
	return string(s)
}
