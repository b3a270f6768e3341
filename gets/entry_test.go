package gets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baselayer-io/KomodoPlatform/chunk"
)

func TestEntryReassemblyHappyPath(t *testing.T) {
	salt, err := chunk.NewSalt([]byte("s1"))
	require.NoError(t, err)

	e := NewEntry(salt)
	e.ensureSlot(1)
	e.AdmitChunk(1, 1, []byte("hel"))
	e.SetNumberOfChunks(2)
	require.False(t, e.Complete())

	e.AdmitChunk(2, 1, []byte("lo"))
	require.True(t, e.Complete())
	require.Equal(t, []byte("hello"), e.Reassemble())
}

func TestEntryHigherSeqAuthWins(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	e := NewEntry(salt)
	e.SetNumberOfChunks(1)

	e.AdmitChunk(1, 5, []byte("new"))
	e.AdmitChunk(1, 3, []byte("stale")) // lower seq_auth: discarded
	require.Equal(t, []byte("new"), e.Chunks[0].Payload)

	e.AdmitChunk(1, 7, []byte("newer"))
	require.Equal(t, []byte("newer"), e.Chunks[0].Payload)
}

func TestEntryChunkCountGrowthPreservesSlots(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	e := NewEntry(salt)
	e.ensureSlot(2)
	e.AdmitChunk(2, 1, []byte("late-arriving"))

	e.SetNumberOfChunks(3)
	require.Len(t, e.Chunks, 3)
	require.Equal(t, []byte("late-arriving"), e.Chunks[1].Payload)
	require.Nil(t, e.Chunks[0].Payload)
	require.Nil(t, e.Chunks[2].Payload)
}

func TestAdmitChunkRejectsOutOfBoundsIndex(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	e := NewEntry(salt)
	e.SetNumberOfChunks(1)

	require.True(t, e.AdmitChunk(1, 1, []byte("hi")))
	require.False(t, e.AdmitChunk(2, 2, []byte("bogus")))

	require.Len(t, e.Chunks, 1)
	require.True(t, e.Complete())
	require.Equal(t, []byte("hi"), e.Reassemble())
}

func TestEntrySubscribersNotify(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	e := NewEntry(salt)

	ch := make(chan struct{}, 1)
	e.Subscribe(42, ch)
	require.True(t, e.HasSubscribers())

	e.NotifyAll()
	select {
	case <-ch:
	default:
		t.Fatal("expected notification")
	}

	e.Unsubscribe(42)
	require.False(t, e.HasSubscribers())
}
