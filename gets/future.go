package gets

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/baselayer-io/KomodoPlatform/chunk"
)

// Validator decides whether a reassembled payload satisfies the
// caller's recv (spec §4.6: "validator predicate").
type Validator func([]byte) bool

// AlwaysAccept is a Validator that accepts any payload.
func AlwaysAccept([]byte) bool { return true }

// GetCmd is sent on the first poll of a RecvFuture to ask the
// Scheduler to start (or join) reassembly for Salt, subscribing Frid
// to be woken on Notify.
type GetCmd struct {
	Salt   chunk.Salt
	Frid   uint64
	Notify chan struct{}
}

// DropGetCmd unsubscribes Frid from Salt's reassembly, sent when a
// RecvFuture is dropped.
type DropGetCmd struct {
	Salt chunk.Salt
	Frid uint64
}

// Commander is the narrow slice of the Scheduler's command channel a
// RecvFuture needs: submitting Get/DropGet without touching the Gets
// Registry directly, which stays private to the Scheduler (spec §5).
type Commander interface {
	SubmitGet(GetCmd)
	SubmitDropGet(DropGetCmd)
}

// RecvFuture is the subscriber future recv() returns. It has no
// reactor requirement: the Scheduler wakes it by sending on Notify
// whenever the subject-salt it's waiting on reassembles (spec §4.4/§9).
type RecvFuture struct {
	salt      chunk.Salt
	validator Validator
	cache     *FetchedCache
	cmd       Commander

	frid       uint64
	notify     chan struct{}
	registered bool
	dropped    bool
}

// NewRecvFuture returns a future waiting on salt, ready to satisfy
// validator once the fetched cache holds an accepted payload.
func NewRecvFuture(salt chunk.Salt, validator Validator, cache *FetchedCache, cmd Commander) *RecvFuture {
	if validator == nil {
		validator = AlwaysAccept
	}
	return &RecvFuture{salt: salt, validator: validator, cache: cache, cmd: cmd}
}

func randomFrid() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// Poll performs one non-blocking check: on the first call it
// registers the subscription with the Scheduler; on every call it
// consults the fetched cache. It returns (true, payload) once an
// accepted payload is available.
func (f *RecvFuture) Poll() (bool, []byte) {
	if f.dropped {
		return false, nil
	}
	if !f.registered {
		f.frid = randomFrid()
		f.notify = make(chan struct{}, 1)
		f.cmd.SubmitGet(GetCmd{Salt: f.salt, Frid: f.frid, Notify: f.notify})
		f.registered = true
	}

	payload, ok := f.cache.Get(f.salt)
	if !ok || !f.validator(payload) {
		return false, nil
	}
	return true, payload
}

// Await blocks (without requiring a reactor) until Poll is ready or
// ctx is done.
func (f *RecvFuture) Await(ctx context.Context) ([]byte, error) {
	for {
		ready, payload := f.Poll()
		if ready {
			return payload, nil
		}
		select {
		case <-f.notify:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Drop unsubscribes the future, sending DropGet to the Scheduler. The
// underlying GetsEntry is retained (other subscribers, or future
// recv() calls, may still need it).
func (f *RecvFuture) Drop() {
	if f.dropped || !f.registered {
		f.dropped = true
		return
	}
	f.dropped = true
	f.cmd.SubmitDropGet(DropGetCmd{Salt: f.salt, Frid: f.frid})
}
