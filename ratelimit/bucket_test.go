package ratelimit

import (
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestBucketDecays(t *testing.T) {
	fake := clock.NewFakeClock()
	b := NewBucket(fake)

	for i := 0; i < 5; i++ {
		b.Increment()
	}
	require.InDelta(t, 5.0, b.Ops(), 0.001)

	fake.Advance(1 * time.Second)
	require.InDelta(t, 0.0, b.Ops(), 0.001)
}

func TestBucketAllowThreshold(t *testing.T) {
	fake := clock.NewFakeClock()
	b := NewBucket(fake)

	for i := 0; i < 10; i++ {
		b.Increment()
	}
	require.True(t, b.Allow(10))
	require.False(t, b.Allow(9))
}

func TestRegistryIsPerSeed(t *testing.T) {
	fake := clock.NewFakeClock()
	r := NewRegistry(fake)

	a := r.For([]byte("seed-a"))
	b := r.For([]byte("seed-b"))
	a.Increment()

	require.InDelta(t, 1.0, a.Ops(), 0.001)
	require.InDelta(t, 0.0, b.Ops(), 0.001)
	require.Same(t, a, r.For([]byte("seed-a")))
}
