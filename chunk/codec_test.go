package chunk

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func reassemble(t *testing.T, wireChunks [][]byte, peerKey []byte, salt Salt) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i, w := range wireChunks {
		body, _, err := Decode(w, byte(i+1), peerKey, salt)
		require.NoError(t, err)
		buf.Write(body)
	}
	return append([]byte{}, buf.Bytes()...)
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	salt, err := NewSalt([]byte("s1"))
	require.NoError(t, err)
	peerKey := testKey()

	for _, size := range []int{0, 1, 991, 992, 993, 3000, 251*992 - 1} {
		payload := make([]byte, size)
		_, _ = rand.Read(payload)

		wireChunks, err := Encode(payload, peerKey, salt)
		require.NoError(t, err)

		got := reassemble(t, wireChunks, peerKey, salt)
		require.Equal(t, payload, got)
	}
}

func TestChunkSizeBoundary(t *testing.T) {
	salt, err := NewSalt([]byte("s1"))
	require.NoError(t, err)
	peerKey := testKey()

	cases := []struct {
		size   int
		chunks int
	}{
		{991, 1},
		{992, 2},
		{993, 2},
	}
	for _, c := range cases {
		wireChunks, err := Encode(make([]byte, c.size), peerKey, salt)
		require.NoError(t, err)
		require.Lenf(t, wireChunks, c.chunks, "size %d", c.size)
	}
}

func TestEncodeRejectsOverlargePayload(t *testing.T) {
	salt, err := NewSalt([]byte("s1"))
	require.NoError(t, err)
	peerKey := testKey()

	_, err = Encode(make([]byte, 300000), peerKey, salt)
	require.ErrorIs(t, err, ErrTooManyChunks)
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	salt, err := NewSalt([]byte("s1"))
	require.NoError(t, err)
	peerKey := testKey()

	wireChunks, err := Encode([]byte("hello world"), peerKey, salt)
	require.NoError(t, err)
	require.Len(t, wireChunks, 1)

	corrupted := append([]byte{}, wireChunks[0]...)
	corrupted[len(corrupted)-1] ^= 0xFF

	_, _, err = Decode(corrupted, 1, peerKey, salt)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestNewSaltRejectsZeroByte(t *testing.T) {
	_, err := NewSalt([]byte{'a', 0x00, 'b'})
	require.ErrorIs(t, err, ErrSaltHasZeroByte)
}

func TestFullSaltRoundtrip(t *testing.T) {
	salt, err := NewSalt([]byte("subject"))
	require.NoError(t, err)

	full, err := salt.FullSalt(1)
	require.NoError(t, err)

	gotSalt, gotIndex, err := SplitFullSalt(full)
	require.NoError(t, err)
	require.Equal(t, salt, gotSalt)
	require.Equal(t, byte(1), gotIndex)

	_, err = salt.FullSalt(254)
	require.Error(t, err)
}
