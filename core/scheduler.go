package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/common/log"
	"github.com/baselayer-io/KomodoPlatform/dht"
	"github.com/baselayer-io/KomodoPlatform/gets"
	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/ratelimit"
	"github.com/baselayer-io/KomodoPlatform/transport"
	"github.com/baselayer-io/KomodoPlatform/wire"

	clock "github.com/jonboulle/clockwork"
)

// ErrSchedulerStopped is returned by Scheduler entry points once Stop
// has been called.
var ErrSchedulerStopped = errors.New("core: scheduler stopped")

// Scheduler is the single goroutine that owns the DHT primitive, the
// Trans Registry and the Gets Registry (spec §4.1/§5): every other
// goroutine reaches it only through cmdCh, never by touching its state
// directly.
type Scheduler struct {
	cfg      *Config
	logger   log.Logger
	clock    clock.Clock
	localKey key.Peer

	primitive dht.Primitive
	trans     *transport.Registry
	getsReg   *gets.Registry
	fetched   *gets.FetchedCache
	rates     *ratelimit.Registry

	statePath string

	cmdCh    chan interface{}
	stopping chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	boot       *bootMachine
	nextID     uint64
	lastSaveAt time.Time
}

func newScheduler(cfg *Config, localKey key.Peer) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		logger:    cfg.logger,
		clock:     cfg.clock,
		localKey:  localKey,
		primitive: cfg.primitiveFactory(cfg.logger),
		trans:     transport.NewRegistry(),
		getsReg:   gets.NewRegistry(),
		fetched:   gets.NewFetchedCache(cfg.fetchedCacheSize, cfg.fetchedCacheTTL, cfg.clock),
		rates:     ratelimit.NewRegistry(cfg.clock),
		statePath: persistencePath(cfg.dbDir),
		cmdCh:     make(chan interface{}, 256),
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
		boot:      newBootMachine(cfg.clock.Now()),
	}
}

// run is the Scheduler's event loop (spec §4.1): on every ~100ms tick
// it drains DHT alerts, advances the boot state machine, services at
// most one queued command, then runs the retransmit and gets
// scheduler passes before persisting state if due.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	defer s.shutdown()

	if data, err := loadState(s.statePath); err != nil {
		s.logger.Warnw("failed to read persisted dht state", "error", err)
	} else if data != nil {
		if err := s.primitive.LoadState(data); err != nil {
			s.logger.Warnw("failed to load persisted dht state", "error", err)
		}
	}
	if err := s.primitive.Init(ctx, s.cfg.netID, false); err != nil {
		s.logger.Errorw("dht primitive init failed", "error", err)
	}

	enabled := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopping:
			return
		default:
		}

		now := s.clock.Now()

		bootstrapSeen := false
		s.primitive.Alerts(func(a dht.Alert) {
			if a.Kind == dht.AlertBootstrapComplete {
				bootstrapSeen = true
			}
			s.handleAlert(a)
		})
		s.boot.Advance(now, bootstrapSeen)

		if !enabled && s.boot.State() != BootDelayed {
			if err := s.primitive.Enable(); err != nil {
				s.logger.Errorw("dht primitive enable failed", "error", err)
			}
			enabled = true
		}

		select {
		case cmd, ok := <-s.cmdCh:
			if !ok {
				return
			}
			s.dispatch(cmd)
		case <-s.clock.After(DefaultPollInterval):
		case <-ctx.Done():
			return
		case <-s.stopping:
			return
		}

		s.retransmitPass(now)
		s.getsSchedulerPass(now)
		s.fetched.Sweep()
		s.getsReg.PruneCompleted()
		globalShuttles.sweep(now, DefaultShuttleTTL)
		s.maybePersist(now)
	}
}

func (s *Scheduler) dispatch(cmd interface{}) {
	switch v := cmd.(type) {
	case PutCmd:
		s.handlePut(v)
	case PingCmd:
		s.handlePing(v)
	case gets.GetCmd:
		s.handleGetCmd(v)
	case gets.DropGetCmd:
		s.handleDropGetCmd(v)
	default:
		s.logger.Warnw("scheduler received unknown command type")
	}
}

// maybePersist saves DHT state DefaultSaveAfterBootstrap after
// bootstrap completes, and every DefaultSaveInterval afterwards (spec
// §6).
func (s *Scheduler) maybePersist(now time.Time) {
	if s.boot.State() != BootBootstrapped {
		return
	}
	due := s.lastSaveAt.IsZero()
	if due {
		due = now.Sub(s.boot.BootstrappedAt()) >= DefaultSaveAfterBootstrap
	} else {
		due = now.Sub(s.lastSaveAt) >= DefaultSaveInterval
	}
	if !due {
		return
	}

	data, err := s.primitive.SaveState()
	if err != nil {
		s.logger.Warnw("dht save state failed", "error", err)
		return
	}
	if err := saveStateAtomic(s.statePath, data); err != nil {
		s.logger.Warnw("dht state persist failed", "error", err, "path", s.statePath)
		return
	}
	s.lastSaveAt = now
}

// shutdown persists a final snapshot of the DHT state and closes the
// primitive, reporting both failures together rather than losing one
// to the other (mirrors drand's client.Close aggregating multiple
// watchers' close errors).
func (s *Scheduler) shutdown() {
	var errs *multierror.Error
	if s.boot.State() == BootBootstrapped {
		if data, err := s.primitive.SaveState(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("save state: %w", err))
		} else if err := saveStateAtomic(s.statePath, data); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("persist state: %w", err))
		}
	}
	if err := s.primitive.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close primitive: %w", err))
	}
	if errs.ErrorOrNil() != nil {
		s.logger.Warnw("scheduler shutdown errors", "error", errs.ErrorOrNil())
	}
}

func (s *Scheduler) nextPingID() uint64 {
	return atomic.AddUint64(&s.nextID, 1)
}

// Stop signals the event loop to exit and blocks until it does, or
// StopTimeout elapses.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopping) })
	select {
	case <-s.done:
	case <-s.clock.After(StopTimeout):
		s.logger.Warnw("scheduler did not stop within timeout")
	}
}

// Put enqueues a PutCmd and blocks for the Scheduler's acknowledgement
// (spec §4.6's `send`, driven through the command channel rather than
// touching the Trans Registry from the caller's goroutine).
func (s *Scheduler) Put(dest key.Peer, subject chunk.Salt, payload []byte) (*transport.SendHandle, error) {
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	result := make(chan PutResult, 1)
	select {
	case s.cmdCh <- PutCmd{Dest: dest, Subject: subject, Payload: payload, Result: result}:
	case <-s.done:
		return nil, ErrSchedulerStopped
	}
	select {
	case r := <-result:
		return r.Handle, r.Err
	case <-s.done:
		return nil, ErrSchedulerStopped
	}
}

// Ping enqueues a one-shot discovery ping (spec §4.6's `investigate_peer`).
func (s *Scheduler) Ping(addr *net.UDPAddr) error {
	select {
	case s.cmdCh <- PingCmd{Addr: addr}:
		return nil
	case <-s.done:
		return ErrSchedulerStopped
	}
}

// SubmitGet implements gets.Commander.
func (s *Scheduler) SubmitGet(c gets.GetCmd) {
	select {
	case s.cmdCh <- c:
	case <-s.done:
	}
}

// SubmitDropGet implements gets.Commander.
func (s *Scheduler) SubmitDropGet(c gets.DropGetCmd) {
	select {
	case s.cmdCh <- c:
	case <-s.done:
	}
}

func (s *Scheduler) handlePut(v PutCmd) {
	chunks, err := chunk.Encode(v.Payload, s.localKey.Bytes(), v.Subject)
	if err != nil {
		if v.Result != nil {
			v.Result <- PutResult{Err: err}
		}
		return
	}

	payloads := make([]wire.MmPayload, len(chunks))
	for i, body := range chunks {
		full, ferr := v.Subject.FullSalt(byte(i + 1))
		if ferr != nil {
			if v.Result != nil {
				v.Result <- PutResult{Err: ferr}
			}
			return
		}
		payloads[i] = wire.MmPayload{
			ID:    s.nextPingID(),
			From:  s.localKey.Bytes(),
			Salt:  full,
			Chunk: body,
		}
	}

	_, handle := s.trans.NewSendPackage(v.Dest, payloads)
	if v.Result != nil {
		v.Result <- PutResult{Handle: handle}
	}
}

func (s *Scheduler) handlePing(v PingCmd) {
	payload := wire.MmPayload{ID: s.nextPingID(), From: s.localKey.Bytes()}
	s.trans.NewDiscoveryPackage(transport.ToAddr(v.Addr), payload)
}
