package dht

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	anacrolixdht "github.com/anacrolix/dht/v2"

	"github.com/baselayer-io/KomodoPlatform/common/log"
)

// LibDHT is the production Primitive: it delegates socket listening,
// bootstrapping and routing-table upkeep to anacrolix/dht/v2's Server
// (the closest real Go analogue to the BEP44-capable DHT engine the
// original system is built on), while mutable-item put/get is kept as
// an in-process store keyed by seed+salt. No library in the retrieval
// pack implements BEP44 mutable items over the wire; wiring them to a
// real distributed store is the underlying DHT engine's job, which
// spec §1 places out of scope for this core. LibDHT's put/get is
// therefore intentionally local-only and exists to let a single
// process exercise the real listen/bootstrap path end-to-end.
type LibDHT struct {
	log log.Logger

	mu     sync.Mutex
	server *anacrolixdht.Server
	items  map[string]*mutableItem
	closed bool
}

// NewLibDHT returns an unstarted LibDHT primitive.
func NewLibDHT(logger log.Logger) *LibDHT {
	return &LibDHT{log: logger, items: make(map[string]*mutableItem)}
}

func (l *LibDHT) Init(_ context.Context, listenInterfaces string, readOnly bool) error {
	addr := listenInterfaces
	if addr == "" {
		addr = ":0"
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}

	cfg := anacrolixdht.NewDefaultServerConfig()
	cfg.Conn = conn
	cfg.NoSecurity = readOnly

	srv, err := anacrolixdht.NewServer(cfg)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.server = srv
	l.mu.Unlock()
	return nil
}

func (l *LibDHT) LoadState(_ []byte) error {
	// Routing-table warm start is handled internally by the library's
	// own bootstrap; nothing to replay here.
	return nil
}

func (l *LibDHT) SaveState() ([]byte, error) {
	l.mu.Lock()
	srv := l.server
	l.mu.Unlock()
	if srv == nil {
		return nil, errors.New("dht: not initialized")
	}
	return []byte(srv.ID().String()), nil
}

func (l *LibDHT) Enable() error {
	l.mu.Lock()
	srv := l.server
	l.mu.Unlock()
	if srv == nil {
		return errors.New("dht: not initialized")
	}
	go func() {
		if _, err := srv.Bootstrap(); err != nil {
			l.log.Warnw("dht bootstrap failed", "err", err)
		}
	}()
	return nil
}

func (l *LibDHT) Put(seed [32]byte, salt []byte, cb PutCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := itemKey(seed, salt)
	existing := l.items[key]
	var have []byte
	var seq int64
	if existing != nil {
		have = existing.data
		seq = existing.seq
	}

	newValue, bump := cb(have)
	if len(newValue) > MaxValueBytes {
		return ErrValueTooLarge
	}
	if bump {
		seq++
	}
	l.items[key] = &mutableItem{seed: seed, salt: salt, data: newValue, seq: seq}
	return nil
}

func (l *LibDHT) Get(seed [32]byte, salt []byte) error {
	l.mu.Lock()
	item := l.items[itemKey(seed, salt)]
	l.mu.Unlock()
	if item == nil {
		return nil
	}
	// LibDHT raises no alerts, so a found item is not delivered to the
	// caller: Get only reports whether the lookup itself failed.
	return nil
}

func (l *LibDHT) Alerts(_ AlertCallback) {
	// LibDHT's local put/get path never queues alerts of its own; a
	// production engine would pump bootstrap/listen/mutable-item
	// events from the underlying library here.
}

func (l *LibDHT) SendUDP(ip string, port int, data []byte) error {
	l.mu.Lock()
	srv := l.server
	l.mu.Unlock()
	if srv == nil {
		return errors.New("dht: not initialized")
	}
	conn, err := net.Dial("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(data)
	return err
}

func (l *LibDHT) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.server == nil {
		l.closed = true
		return nil
	}
	l.server.Close()
	l.closed = true
	return nil
}
