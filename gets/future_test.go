package gets

import (
	"context"
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/baselayer-io/KomodoPlatform/chunk"
)

type fakeCommander struct {
	gets     []GetCmd
	dropGets []DropGetCmd
}

func (f *fakeCommander) SubmitGet(c GetCmd)         { f.gets = append(f.gets, c) }
func (f *fakeCommander) SubmitDropGet(c DropGetCmd) { f.dropGets = append(f.dropGets, c) }

func TestRecvFutureResolvesOnceCachePublished(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	fc := NewFetchedCache(16, 0, clock.NewFakeClock())
	cmd := &fakeCommander{}

	f := NewRecvFuture(salt, AlwaysAccept, fc, cmd)

	ready, _ := f.Poll()
	require.False(t, ready)
	require.Len(t, cmd.gets, 1)

	fc.Publish(salt, []byte("hello"))
	ready, payload := f.Poll()
	require.True(t, ready)
	require.Equal(t, []byte("hello"), payload)
}

func TestRecvFutureRejectsViaValidator(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	fc := NewFetchedCache(16, 0, clock.NewFakeClock())
	cmd := &fakeCommander{}

	rejectAll := func([]byte) bool { return false }
	f := NewRecvFuture(salt, rejectAll, fc, cmd)

	fc.Publish(salt, []byte("hello"))
	ready, _ := f.Poll()
	require.False(t, ready)
}

func TestRecvFutureAwaitWakesOnNotify(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	fc := NewFetchedCache(16, 0, clock.NewFakeClock())
	cmd := &fakeCommander{}
	f := NewRecvFuture(salt, AlwaysAccept, fc, cmd)

	_, _ = f.Poll() // registers and captures f.notify

	go func() {
		time.Sleep(10 * time.Millisecond)
		fc.Publish(salt, []byte("async"))
		f.notify <- struct{}{}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	payload, err := f.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("async"), payload)
}

func TestRecvFutureDropSendsDropGet(t *testing.T) {
	salt, _ := chunk.NewSalt([]byte("s1"))
	fc := NewFetchedCache(16, 0, clock.NewFakeClock())
	cmd := &fakeCommander{}
	f := NewRecvFuture(salt, AlwaysAccept, fc, cmd)

	_, _ = f.Poll()
	f.Drop()
	require.Len(t, cmd.dropGets, 1)
	require.Equal(t, f.frid, cmd.dropGets[0].Frid)
}
