// Package chunk implements the payload chunking/reassembly codec: a
// leading chunk-count byte is prepended to the payload, and the whole
// buffer is split into ≤992-byte bodies, each trailed by a 4-byte
// big-endian CRC-32 (IEEE) computed over the chunk index, the body,
// the sender's peer key and the subject-salt. Chunk #1 therefore always
// carries the total chunk count as its first byte, so the receiver
// never needs out-of-band framing to know when reassembly is done.
//
// Per-chunk (rather than streaming) CRCs let the receiving side verify
// and retry a single missing or corrupt chunk without invalidating
// chunks it already has.
package chunk

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// ErrTooManyChunks is returned by Encode when the payload would need
// more than MaxChunks chunks.
var ErrTooManyChunks = errors.New("chunk: payload requires more than 253 chunks")

// ErrShortChunk is returned by Decode when the wire chunk is too short
// to contain a checksum plus at least one body byte.
var ErrShortChunk = errors.New("chunk: chunk shorter than checksum size plus one body byte")

// ErrChecksumMismatch is returned by Decode when the recomputed CRC-32
// does not match the trailing checksum.
var ErrChecksumMismatch = errors.New("chunk: checksum mismatch")

const checksumSize = 4

// NumberOfChunks returns how many chunks a payload of length n will be
// split into, counting the leading chunk-count byte that gets
// prepended to the payload before splitting (minimum 1, so that even
// an empty payload carries a count-byte chunk).
func NumberOfChunks(n int) int {
	total := n + 1
	return (total + MaxBody - 1) / MaxBody
}

// Encode splits payload into wire-ready chunks (body ‖ CRC32). The
// chunk-count byte is prepended to payload before splitting, so it
// occupies the first byte of chunk #1 and, for payloads whose length
// is a multiple of MaxBody, pushes the trailing bytes into an extra
// chunk rather than growing chunk #1 past MaxBody. peerKey is the
// sender's identity and subjectSalt the logical message slot; both
// participate in every chunk's checksum so a chunk cannot be replayed
// under a different salt or misattributed to a different sender.
func Encode(payload, peerKey []byte, subjectSalt Salt) ([][]byte, error) {
	n := NumberOfChunks(len(payload))
	if n > MaxChunks {
		return nil, ErrTooManyChunks
	}

	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, byte(n))
	buf = append(buf, payload...)

	chunks := make([][]byte, n)
	for i := 1; i <= n; i++ {
		start := (i - 1) * MaxBody
		end := start + MaxBody
		if end > len(buf) {
			end = len(buf)
		}
		body := buf[start:end]

		sum := checksum(byte(i), body, peerKey, subjectSalt)
		wire := make([]byte, len(body)+checksumSize)
		copy(wire, body)
		binary.BigEndian.PutUint32(wire[len(body):], sum)
		chunks[i-1] = wire
	}
	return chunks, nil
}

// Decode verifies and strips a single wire chunk's checksum, returning
// its body and (for index 1) the advertised total chunk count.
func Decode(wire []byte, index byte, peerKey []byte, subjectSalt Salt) (body []byte, numberOfChunks *byte, err error) {
	if len(wire) < checksumSize+1 {
		return nil, nil, ErrShortChunk
	}

	body = wire[:len(wire)-checksumSize]
	want := binary.BigEndian.Uint32(wire[len(wire)-checksumSize:])
	got := checksum(index, body, peerKey, subjectSalt)
	if got != want {
		return nil, nil, ErrChecksumMismatch
	}

	if index == 1 {
		n := body[0]
		body = body[1:]
		return body, &n, nil
	}
	return body, nil, nil
}

func checksum(index byte, body, peerKey []byte, subjectSalt Salt) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte{index})
	h.Write(body)
	h.Write(peerKey)
	h.Write(subjectSalt)
	return h.Sum32()
}
