package core

import (
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/baselayer-io/KomodoPlatform/common/log"
	"github.com/baselayer-io/KomodoPlatform/dht"
)

// Default timing constants, named exactly as spec §4.1/§4.3/§4.4 describe them.
const (
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultPutRetryInterval   = 20 * time.Second
	DefaultChunkRestartAfter  = 4 * time.Second
	DefaultSaveInterval       = 600 * time.Second
	DefaultSaveAfterBootstrap = 20 * time.Second
	DefaultShuttleTTL         = 600 * time.Second
	DefaultFetchedCacheTTL    = 0 // spec §9's open question: unbounded by default, override via WithFetchedCacheTTL
	StopTimeout               = 3 * time.Second

	RateLimitPing     = 33
	RateLimitGet      = 10
	RateLimitPutRetry = 1
)

// Option configures a Config via the functional-options pattern (as
// drand's core.Config does).
type Option func(*Config)

// Config holds everything needed to bring up a Scheduler.
type Config struct {
	netID            string
	preferredPort    int
	sessionID        string
	dbDir            string
	logger           log.Logger
	clock            clock.Clock
	primitiveFactory func(log.Logger) dht.Primitive
	fetchedCacheTTL  time.Duration
	fetchedCacheSize int
}

// NewConfig returns a Config with sane defaults, then applies opts.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		logger: log.DefaultLogger(),
		clock:  clock.NewRealClock(),
		primitiveFactory: func(l log.Logger) dht.Primitive {
			return dht.NewLibDHT(l)
		},
		fetchedCacheTTL: DefaultFetchedCacheTTL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithNetID sets the swarm/network identifier used when listening.
func WithNetID(id string) Option { return func(c *Config) { c.netID = id } }

// WithPreferredPort sets the UDP port to request from the DHT primitive.
func WithPreferredPort(port int) Option { return func(c *Config) { c.preferredPort = port } }

// WithSessionID stores session_id on the context. Spec §9: accepted
// but never transmitted to peers.
func WithSessionID(id string) Option { return func(c *Config) { c.sessionID = id } }

// WithDBDir sets the fallback directory for DHT state persistence.
func WithDBDir(dir string) Option { return func(c *Config) { c.dbDir = dir } }

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) Option { return func(c *Config) { c.logger = l } }

// WithClock overrides the real clock, primarily for tests.
func WithClock(cl clock.Clock) Option { return func(c *Config) { c.clock = cl } }

// WithPrimitive overrides the DHT primitive constructor, primarily to
// plug in dht.Mock for tests.
func WithPrimitive(factory func(log.Logger) dht.Primitive) Option {
	return func(c *Config) { c.primitiveFactory = factory }
}

// WithFetchedCacheTTL bounds how long a reassembled payload stays in
// the fetched cache before it is swept (spec §9's open question).
func WithFetchedCacheTTL(ttl time.Duration) Option {
	return func(c *Config) { c.fetchedCacheTTL = ttl }
}

// WithFetchedCacheSize bounds how many distinct subject-salts the
// fetched cache retains.
func WithFetchedCacheSize(n int) Option {
	return func(c *Config) { c.fetchedCacheSize = n }
}
