package swrcache

import (
	"strings"
	"sync/atomic"
	"time"
)

// GlobalConfig is the process-wide default configuration consulted whenever
// a call site's Policy leaves a field unset. Replace it via Configure; never
// mutate a GlobalConfig obtained from the engine in place.
type GlobalConfig struct {
	Serializer Serializer

	DefaultHardTTL time.Duration
	DefaultSoftTTL time.Duration

	ExpirationJitterFraction float64

	KeyPrefix string

	KeyLockEvictionWindow time.Duration

	MaxPayloadBytes          int // 0 means unbounded
	SkipCachingNullOrDefault bool

	LockWaitTimeout time.Duration // 0 means wait indefinitely
}

// SetDefaults fills zero-valued fields with sensible defaults, mirroring the
// reference engine's EngineConfig.SetDefaults.
func (c *GlobalConfig) SetDefaults() {
	if c.Serializer == nil {
		c.Serializer = &JSONSerializer{}
	}
	if c.DefaultHardTTL == 0 {
		c.DefaultHardTTL = 24 * time.Hour
	}
	if c.DefaultSoftTTL == 0 {
		c.DefaultSoftTTL = 5 * time.Minute
	}
	if c.KeyLockEvictionWindow == 0 {
		c.KeyLockEvictionWindow = 5 * time.Minute
	}
	c.ExpirationJitterFraction = clampJitterFraction(c.ExpirationJitterFraction)
}

// Policy carries per-call overrides. A nil field falls through to
// GlobalConfig; Policy itself may be nil, meaning "use GlobalConfig for
// everything and write plain payloads" (the policy-less variant).
type Policy struct {
	SoftTTL                  *time.Duration
	HardTTL                  *time.Duration
	MaxStaleOnFailure        *time.Duration
	EarlyRefreshWindow       *time.Duration
	ExpirationJitterFraction *float64
	LockWaitTimeout          *time.Duration
	MaxPayloadBytes          *int
	SkipCachingNullOrDefault *bool
}

func (p *Policy) softTTL(cfg *GlobalConfig) time.Duration {
	if p != nil && p.SoftTTL != nil {
		return *p.SoftTTL
	}
	return cfg.DefaultSoftTTL
}

func (p *Policy) hardTTL(cfg *GlobalConfig) time.Duration {
	if p != nil && p.HardTTL != nil {
		return *p.HardTTL
	}
	return cfg.DefaultHardTTL
}

func (p *Policy) earlyRefreshWindow() time.Duration {
	if p != nil && p.EarlyRefreshWindow != nil {
		return *p.EarlyRefreshWindow
	}
	return 0
}

func (p *Policy) jitterFraction(cfg *GlobalConfig) float64 {
	if p != nil && p.ExpirationJitterFraction != nil {
		return clampJitterFraction(*p.ExpirationJitterFraction)
	}
	return cfg.ExpirationJitterFraction
}

func (p *Policy) lockWaitTimeout(cfg *GlobalConfig) time.Duration {
	if p != nil && p.LockWaitTimeout != nil {
		return *p.LockWaitTimeout
	}
	return cfg.LockWaitTimeout
}

func (p *Policy) maxPayloadBytes(cfg *GlobalConfig) int {
	if p != nil && p.MaxPayloadBytes != nil {
		return *p.MaxPayloadBytes
	}
	return cfg.MaxPayloadBytes
}

func (p *Policy) skipCachingNullOrDefault(cfg *GlobalConfig) bool {
	if p != nil && p.SkipCachingNullOrDefault != nil {
		return *p.SkipCachingNullOrDefault
	}
	return cfg.SkipCachingNullOrDefault
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSerializer overrides the default Serializer.
func WithSerializer(s Serializer) Option {
	return func(e *Engine) {
		if s != nil {
			e.serializer = s
		}
	}
}

// WithTTLCalculator sets the TTLCalculator consulted after each successful
// compute, overriding the Expiration Planner's policy-derived split.
func WithTTLCalculator(c TTLCalculator) Option {
	return func(e *Engine) {
		if c != nil {
			e.ttlCalculator = c
		}
	}
}

// WithValueTransformer installs a Transform/Restore hook.
func WithValueTransformer(t ValueTransformer) Option {
	return func(e *Engine) {
		if t != nil {
			e.valueTransformer = t
		}
	}
}

// WithMetrics installs a CacheMetrics sink.
func WithMetrics(m CacheMetrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithMaxConcurrentRefreshes bounds the number of background refreshes that
// may be in flight at once.
func WithMaxConcurrentRefreshes(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxConcurrentRefreshes = max
		}
	}
}

// WithRefreshTimeout bounds how long a single compute call, foreground or
// background, is allowed to run.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.refreshTimeout = timeout
		}
	}
}

// WithConfig installs the GlobalConfig the engine starts with.
func WithConfig(cfg GlobalConfig) Option {
	return func(e *Engine) {
		cfg.SetDefaults()
		e.config.Store(&cfg)
	}
}

// effectiveKey applies the configured key prefix: an empty or
// whitespace-only prefix is treated as no prefix.
func effectiveKey(cfg *GlobalConfig, key string) string {
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		return key
	}
	return cfg.KeyPrefix + key
}

// Configure atomically replaces the engine's GlobalConfig by applying
// mutator to a clone of the current one, then rebuilds the lock pool against
// the new KeyLockEvictionWindow. In-flight calls holding a handle from the
// old pool are unaffected; only new Rent calls see the new pool.
func (e *Engine) Configure(mutator func(*GlobalConfig)) {
	current := e.config.Load()
	next := *current
	mutator(&next)
	next.SetDefaults()
	e.config.Store(&next)

	newPool := NewLockPool(next.KeyLockEvictionWindow)
	old := e.lockPool.Swap(newPool)
	if old != nil {
		old.Stop()
	}
}

// currentConfig returns the live GlobalConfig. Safe to call concurrently
// with Configure.
func (e *Engine) currentConfig() *GlobalConfig {
	return e.config.Load()
}

// configAtomic is a thin wrapper so Engine can hold *GlobalConfig behind an
// atomic.Pointer without exposing the generic type in the public API.
type configAtomic = atomic.Pointer[GlobalConfig]

// lockPoolAtomic likewise hides atomic.Pointer[LockPool] from callers.
type lockPoolAtomic = atomic.Pointer[LockPool]
