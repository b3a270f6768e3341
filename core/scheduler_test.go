package core_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/common/log"
	"github.com/baselayer-io/KomodoPlatform/core"
	"github.com/baselayer-io/KomodoPlatform/dht"
	"github.com/baselayer-io/KomodoPlatform/gets"
	"github.com/baselayer-io/KomodoPlatform/key"
)

func testPeer(b byte) key.Peer {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	p, err := key.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return p
}

func TestInitializeRejectsZeroKey(t *testing.T) {
	_, err := core.Initialize(key.Peer{})
	require.ErrorIs(t, err, key.ErrZeroed)
}

func TestSendRecvRoundTripViaDHT(t *testing.T) {
	network := dht.NewMockNetwork()
	mockA := network.NewNode("127.0.0.1", 9001)
	mockB := network.NewNode("127.0.0.1", 9002)

	keyA := testPeer(0xAA)
	keyB := testPeer(0xBB)

	ctxA, err := core.Initialize(keyA, core.WithPrimitive(func(log.Logger) dht.Primitive { return mockA }))
	require.NoError(t, err)
	defer ctxA.Stop()

	ctxB, err := core.Initialize(keyB, core.WithPrimitive(func(log.Logger) dht.Primitive { return mockB }))
	require.NoError(t, err)
	defer ctxB.Stop()

	subject, err := chunk.NewSalt([]byte("round-trip"))
	require.NoError(t, err)
	payload := []byte("hello peer B")

	handle, err := ctxA.Send(keyB, subject, payload)
	require.NoError(t, err)
	defer handle.Close()

	// Give ctxA's scheduler a tick to drain the Send command and issue
	// the DHT put before ctxB starts polling for it.
	time.Sleep(250 * time.Millisecond)

	future := ctxB.Recv(subject, gets.AlwaysAccept)
	awaitCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := future.Await(awaitCtx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestInvestigatePeerSucceeds(t *testing.T) {
	network := dht.NewMockNetwork()
	mockA := network.NewNode("127.0.0.1", 9101)
	mockB := network.NewNode("127.0.0.1", 9102)

	keyA := testPeer(0xCC)
	keyB := testPeer(0xDD)

	ctxA, err := core.Initialize(keyA, core.WithPrimitive(func(log.Logger) dht.Primitive { return mockA }))
	require.NoError(t, err)
	defer ctxA.Stop()

	ctxB, err := core.Initialize(keyB, core.WithPrimitive(func(log.Logger) dht.Primitive { return mockB }))
	require.NoError(t, err)
	defer ctxB.Stop()

	err = ctxA.InvestigatePeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9102})
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
}
