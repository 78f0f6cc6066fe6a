package swrcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// backgroundAcquireTimeout bounds how long a background refresh waits for
// the gate before giving up — it is a liveness check, not a real wait: if
// someone else holds the gate, they are already doing the refresh.
const backgroundAcquireTimeout = 500 * time.Millisecond

// ComputeFunc produces the fresh value for a cache miss or expired entry.
// It must be idempotent and safe to call concurrently with itself across
// different keys; the engine runs at most one gated invocation per key at a
// time. A caller whose lock wait times out with no stale value to serve
// computes without the gate, concurrently with the gate holder, and does
// not store the result.
type ComputeFunc func(ctx context.Context) (interface{}, error)

// Engine drives the lookup, stale-while-revalidate decision, and
// lock-guarded recompute-and-store protocol on top of a Backend.
type Engine struct {
	backend Backend
	logger  Logger

	config   configAtomic
	lockPool lockPoolAtomic

	serializer       Serializer
	ttlCalculator    TTLCalculator
	valueTransformer ValueTransformer
	metrics          CacheMetrics

	maxConcurrentRefreshes int
	refreshTimeout         time.Duration
	currentRefreshes       atomic.Int32

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	shutdownOnce   sync.Once
}

// NewEngine constructs an Engine with default configuration.
func NewEngine(backend Backend, logger Logger) (*Engine, error) {
	return NewEngineWithOptions(backend, logger)
}

// NewEngineWithOptions constructs an Engine, applying opts over the default
// configuration.
func NewEngineWithOptions(backend Backend, logger Logger, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	e := &Engine{
		backend:                backend,
		logger:                 logger.Named("Engine"),
		serializer:              &JSONSerializer{},
		valueTransformer:        &NoOpValueTransformer{},
		metrics:                 NoOpMetrics{},
		maxConcurrentRefreshes:  1000,
		refreshTimeout:          30 * time.Second,
		shutdownCtx:             shutdownCtx,
		shutdownCancel:          shutdownCancel,
	}

	defaultCfg := &GlobalConfig{}
	defaultCfg.SetDefaults()
	e.config.Store(defaultCfg)
	e.lockPool.Store(NewLockPool(defaultCfg.KeyLockEvictionWindow))

	for _, o := range opts {
		o(e)
	}

	if cfg := e.config.Load(); e.serializer != nil {
		cfg.Serializer = e.serializer
	}

	e.logger.Info("engine initialised",
		Duration("defaultHardTTL", e.config.Load().DefaultHardTTL),
		Duration("defaultSoftTTL", e.config.Load().DefaultSoftTTL),
		Int("maxConcurrentRefreshes", e.maxConcurrentRefreshes))

	return e, nil
}

// GetOrCreate resolves key, computing and storing a fresh value when the
// cache is cold, expired, or undecodable. policy and options may both be
// nil. out receives the decoded value.
func (e *Engine) GetOrCreate(ctx context.Context, key string, out interface{}, compute ComputeFunc, policy *Policy, options *EntryOptions) error {
	if compute == nil {
		return ErrNilCompute
	}
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	start := time.Now()
	defer func() { e.metrics.RecordLatency("get_or_create", time.Since(start)) }()

	cfg := e.currentConfig()
	ekey := effectiveKey(cfg, key)

	raw, err := e.backend.Get(ctx, ekey)
	switch {
	case errors.Is(err, ErrMiss):
		e.metrics.RecordMiss(key)
		return e.lockPath(ctx, key, ekey, out, compute, policy, options, cfg, nil)

	case err != nil:
		getErr := &BackendError{Op: "Get", Key: key, Err: err}
		e.metrics.RecordError(key, getErr)
		return getErr
	}

	decoded, envSoft, isEnvelope, decodeErr := e.decodePayload(raw, out)
	if decodeErr != nil {
		cerr := &CorruptionError{Key: key, Err: decodeErr}
		e.logger.Warn("corrupted payload on hit, self-healing", String("key", key), Error(cerr))
		e.metrics.RecordError(key, cerr)
		if remErr := e.backend.Remove(ctx, ekey); remErr != nil {
			e.logger.Warn("remove after corruption failed", String("key", key), Error(remErr))
		}
		return e.lockPath(ctx, key, ekey, out, compute, policy, options, cfg, nil)
	}

	if !isEnvelope {
		// Plain payload: no SWR semantics, always fresh as written.
		e.metrics.RecordHit(key, "fresh")
		return e.restoreInto(ctx, key, decoded, out)
	}

	softTTL := policy.softTTL(cfg)
	hardTTL := policy.hardTTL(cfg)
	now := time.Now()
	createdAt := envSoft.Add(-softTTL)
	hardExpire := createdAt.Add(hardTTL)

	switch {
	case !now.After(envSoft): // fresh
		e.metrics.RecordHit(key, "fresh")
		if window := policy.earlyRefreshWindow(); window > 0 && hardExpire.Sub(now) <= window {
			e.spawnBackgroundRefresh(key, ekey, compute, policy, options, cfg)
		}
		return e.restoreInto(ctx, key, decoded, out)

	case !now.After(hardExpire): // stale, serveable
		e.metrics.RecordHit(key, "stale")
		e.spawnBackgroundRefresh(key, ekey, compute, policy, options, cfg)
		return e.restoreInto(ctx, key, decoded, out)

	default: // hard-expired
		fallback := decoded
		return e.lockPath(ctx, key, ekey, out, compute, policy, options, cfg, &fallback)
	}
}

// decodePayload attempts envelope decode, then plain decode, writing the
// inner value into a fresh interface{} slot (not directly into out, since
// the caller may still need the raw decoded value for the stale-fallback
// path on hard-expiry).
func (e *Engine) decodePayload(raw []byte, out interface{}) (decoded interface{}, softExpire time.Time, isEnvelope bool, err error) {
	if env, ok := TryDecodeEnvelope(e.serializer, raw); ok {
		var v interface{}
		if derr := DecodeEnvelopeValue(e.serializer, env, &v); derr == nil {
			return v, env.softExpireTime(), true, nil
		}
	}

	var v interface{}
	if derr := DecodePlain(e.serializer, raw, &v); derr == nil {
		return v, time.Time{}, false, nil
	}

	return nil, time.Time{}, false, fmt.Errorf("swrcache: undecodable payload")
}

// restoreInto runs the ValueTransformer's Restore hook on decoded, then
// assigns the result into out via the serializer's round trip (decoded is
// already a generic interface{}, so we re-marshal/unmarshal to respect out's
// concrete type).
func (e *Engine) restoreInto(ctx context.Context, key string, decoded interface{}, out interface{}) error {
	restored, err := e.valueTransformer.Restore(ctx, key, decoded)
	if err != nil {
		return fmt.Errorf("swrcache: restore failed for key %q: %w", key, err)
	}
	if out == nil {
		return nil
	}
	data, err := e.serializer.Marshal(restored)
	if err != nil {
		return fmt.Errorf("swrcache: re-marshal after restore failed for key %q: %w", key, err)
	}
	return e.serializer.Unmarshal(data, out)
}

// lockPath rents the gate, tries to acquire it within the policy's
// lockWaitTimeout, double-checks the backend, and either serves the
// double-checked hit or recomputes and stores.
func (e *Engine) lockPath(ctx context.Context, key, ekey string, out interface{}, compute ComputeFunc, policy *Policy, options *EntryOptions, cfg *GlobalConfig, fallback *interface{}) error {
	pool := e.lockPool.Load()
	handle := pool.Rent(ekey)
	defer pool.Return(handle)

	waitStart := time.Now()
	acquired := pool.Acquire(ctx, handle, policy.lockWaitTimeout(cfg))
	e.metrics.RecordLatency("lock_wait", time.Since(waitStart))

	if !acquired {
		if err := ctx.Err(); err != nil {
			return err
		}
		// TimeoutFallback: serve the last-known payload if we have one;
		// otherwise compute but do not store.
		if fallback != nil {
			return e.restoreInto(ctx, key, *fallback, out)
		}
		val, err := e.safeCompute(ctx, key, compute)
		if err != nil {
			return err
		}
		return e.assignComputed(ctx, key, val, out)
	}
	defer pool.Release(handle)

	// Double-check: a peer may have populated or refreshed the entry while
	// we waited for the gate.
	raw, err := e.backend.Get(ctx, ekey)
	if err == nil {
		decoded, softExpire, isEnvelope, decodeErr := e.decodePayload(raw, out)
		if decodeErr == nil {
			if !isEnvelope {
				e.metrics.RecordHit(key, "fresh")
				return e.restoreInto(ctx, key, decoded, out)
			}
			if !time.Now().After(softExpire) {
				e.metrics.RecordHit(key, "fresh")
				return e.restoreInto(ctx, key, decoded, out)
			}
		}
	} else if !errors.Is(err, ErrMiss) {
		getErr := &BackendError{Op: "Get", Key: key, Err: err}
		e.metrics.RecordError(key, getErr)
		return getErr
	}

	val, err := e.safeCompute(ctx, key, compute)
	if err != nil {
		if fallback != nil {
			e.logger.Warn("compute failed, serving stale fallback", String("key", key), Error(err))
			return e.restoreInto(ctx, key, *fallback, out)
		}
		return err
	}

	if err := e.storeComputed(ctx, key, ekey, val, policy, options, cfg); err != nil {
		e.logger.Warn("store after compute failed", String("key", key), Error(err))
	}
	return e.assignComputed(ctx, key, val, out)
}

// safeCompute invokes compute under panic containment, converting both
// panics and returned errors into *ComputeError.
func (e *Engine) safeCompute(ctx context.Context, key string, compute ComputeFunc) (val interface{}, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stack := captureStack()
			e.logger.Error("compute panicked",
				String("key", key), Any("panic", r), Stack(stack))
			err = &ComputeError{Key: key, Err: fmt.Errorf("panic: %v", r)}
		}
		e.metrics.RecordLatency("compute", time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, e.refreshTimeout)
	defer cancel()

	v, cerr := compute(ctx)
	if cerr != nil {
		return nil, &ComputeError{Key: key, Err: cerr}
	}
	return v, nil
}

// assignComputed serializes val and unmarshals it into out, matching the
// round-trip the caller would see from a stored-then-decoded value.
func (e *Engine) assignComputed(ctx context.Context, key string, val interface{}, out interface{}) error {
	if out == nil {
		return nil
	}
	stored, err := e.valueTransformer.Transform(ctx, key, val)
	if err != nil {
		return fmt.Errorf("swrcache: transform failed for key %q: %w", key, err)
	}
	transformed, err := e.valueTransformer.Restore(ctx, key, stored)
	if err != nil {
		return fmt.Errorf("swrcache: restore failed for key %q: %w", key, err)
	}
	data, err := e.serializer.Marshal(transformed)
	if err != nil {
		return fmt.Errorf("swrcache: marshal failed for key %q: %w", key, err)
	}
	return e.serializer.Unmarshal(data, out)
}

// storeComputed applies the ValueTransformer, TTL calculation, and Envelope
// Codec, then writes through to the backend. When policy is nil the write
// is plain (the policy-less variant).
func (e *Engine) storeComputed(ctx context.Context, key, ekey string, val interface{}, policy *Policy, options *EntryOptions, cfg *GlobalConfig) error {
	transformed, err := e.valueTransformer.Transform(ctx, key, val)
	if err != nil {
		return fmt.Errorf("swrcache: transform failed for key %q: %w", key, err)
	}

	if policy.skipCachingNullOrDefault(cfg) && isZeroValue(transformed) {
		return nil
	}

	hardTTL, softTTL := policy.hardTTL(cfg), policy.softTTL(cfg)
	if e.ttlCalculator != nil {
		if h, s, terr := e.ttlCalculator.CalculateTTL(key, transformed); terr == nil {
			hardTTL, softTTL = h, s
		}
	}

	var payload []byte
	if policy == nil {
		payload, err = e.serializer.Marshal(transformed)
	} else {
		payload, err = EncodeEnvelope(e.serializer, transformed, time.Now().Add(softTTL))
	}
	if err != nil {
		return fmt.Errorf("swrcache: encode failed for key %q: %w", key, err)
	}

	if max := policy.maxPayloadBytes(cfg); max > 0 && len(payload) > max {
		e.logger.Debug("payload exceeds maxPayloadBytes, not caching",
			String("key", key), Int("size", len(payload)), Int("max", max))
		return nil
	}

	jf := policy.jitterFraction(cfg)
	opts := planExpiration(options, hardTTL, jf)

	if err := e.backend.Set(ctx, ekey, payload, *opts); err != nil {
		setErr := &BackendError{Op: "Set", Key: key, Err: err}
		e.metrics.RecordError(key, setErr)
		return setErr
	}
	return nil
}

// isZeroValue reports whether v is the zero value for its dynamic type.
func isZeroValue(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case int:
		return t == 0
	case int64:
		return t == 0
	case bool:
		return !t
	default:
		return reflect.ValueOf(v).IsZero()
	}
}

// spawnBackgroundRefresh fires a fire-and-forget refresh for key if the
// concurrency budget allows it. The refresh gives up when it cannot take
// key's gate within backgroundAcquireTimeout. Errors are swallowed after
// logging; the caller's cancellation is never observed.
func (e *Engine) spawnBackgroundRefresh(key, ekey string, compute ComputeFunc, policy *Policy, options *EntryOptions, cfg *GlobalConfig) {
	newCount := e.currentRefreshes.Add(1)
	if int(newCount) > e.maxConcurrentRefreshes {
		e.currentRefreshes.Add(-1)
		e.logger.Debug("skip background refresh - concurrency limit",
			String("key", key), Int32("current", newCount-1))
		return
	}

	e.metrics.RecordHit(key, "refresh_started")

	go func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic in background refresh",
					String("key", key), Any("panic", r), Stack(captureStack()))
			}
			e.currentRefreshes.Add(-1)
			e.logger.Debug("background refresh finished",
				String("key", key), Duration("duration", time.Since(start)))
		}()

		pool := e.lockPool.Load()
		handle := pool.Rent(ekey)
		defer pool.Return(handle)

		ctx, cancel := context.WithTimeout(e.shutdownCtx, e.refreshTimeout)
		defer cancel()

		if !pool.Acquire(ctx, handle, backgroundAcquireTimeout) {
			e.logger.Debug("skip background refresh - gate held", String("key", key))
			return
		}
		defer pool.Release(handle)

		val, err := e.safeCompute(ctx, key, compute)
		if err != nil {
			e.logger.Debug("background refresh compute failed", String("key", key), Error(err))
			return
		}

		if err := e.storeComputed(ctx, key, ekey, val, policy, options, cfg); err != nil {
			e.logger.Warn("background refresh store failed", String("key", key), Error(err))
			return
		}
		e.metrics.RecordHit(key, "refresh_completed")
	}()
}

// Shutdown cancels every background refresh's context, waits (bounded) for
// currentRefreshes to drain, and stops the lock pool's sweeper exactly once.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.logger.Info("shutting down engine")
		e.shutdownCancel()

		timeout := time.NewTimer(5 * time.Second)
		defer timeout.Stop()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-timeout.C:
				if remaining := e.currentRefreshes.Load(); remaining > 0 {
					e.logger.Warn("shutdown timeout with refreshes still running", Int32("remaining", remaining))
				}
				e.lockPool.Load().Stop()
				return
			case <-ticker.C:
				if e.currentRefreshes.Load() == 0 {
					e.logger.Info("all background refreshes completed")
					e.lockPool.Load().Stop()
					return
				}
			}
		}
	})
}
