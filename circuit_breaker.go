package swrcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker wraps an Engine, tripping to a fail-fast state both
// globally and per-key when compute failures (as opposed to LockTimeout or
// Corruption, which the Engine already handles internally) exceed a
// threshold.
type CircuitBreaker struct {
	engine *Engine

	failureThreshold int32
	successThreshold int32
	timeout          time.Duration

	state            atomic.Int32
	failures         atomic.Int32
	successes        atomic.Int32
	lastFailureTime  atomic.Int64
	halfOpenRequests atomic.Int32
	maxHalfOpenReqs  int32

	keyBreakers     sync.Map // map[string]*keyCircuitBreaker
	keyBreakerMutex sync.Mutex
	keyBreakerLRU   *lru.Cache[string, *keyCircuitBreaker]
	maxKeyBreakers  int
}

type keyCircuitBreaker struct {
	key             string
	failures        atomic.Int32
	lastFailureTime atomic.Int64
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Engine           *Engine
	FailureThreshold int32
	SuccessThreshold int32
	Timeout          time.Duration
	MaxHalfOpenReqs  int32
	MaxKeyBreakers   int
}

// NewCircuitBreaker constructs a CircuitBreaker wrapping cfg.Engine.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxHalfOpenReqs == 0 {
		cfg.MaxHalfOpenReqs = 3
	}
	if cfg.MaxKeyBreakers == 0 {
		cfg.MaxKeyBreakers = 10000
	}

	lruCache, _ := lru.New[string, *keyCircuitBreaker](cfg.MaxKeyBreakers)

	return &CircuitBreaker{
		engine:           cfg.Engine,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		maxHalfOpenReqs:  cfg.MaxHalfOpenReqs,
		maxKeyBreakers:   cfg.MaxKeyBreakers,
		keyBreakerLRU:    lruCache,
	}
}

// GetOrCreate wraps Engine.GetOrCreate with circuit breaker protection: a
// tripped circuit returns ErrCircuitOpen without touching the backend or
// calling compute.
func (cb *CircuitBreaker) GetOrCreate(ctx context.Context, key string, out interface{}, compute ComputeFunc, policy *Policy, options *EntryOptions) error {
	if !cb.canExecute() {
		return ErrCircuitOpen
	}
	if !cb.canExecuteKey(key) {
		return ErrCircuitOpen
	}

	if cb.getState() == CircuitHalfOpen {
		current := cb.halfOpenRequests.Add(1)
		if current > cb.maxHalfOpenReqs {
			cb.halfOpenRequests.Add(-1)
			return ErrCircuitOpen
		}
		defer cb.halfOpenRequests.Add(-1)
	}

	err := cb.engine.GetOrCreate(ctx, key, out, compute, policy, options)
	switch {
	case err == nil:
		cb.recordSuccess(key)
	case countsAgainstBreaker(err):
		cb.recordFailure(key)
	}
	return err
}

// countsAgainstBreaker reports whether err is a failure of the thing the
// breaker actually protects: the caller-supplied compute function. A
// BackendError means the backend is unhealthy, which corruption handling
// and the backend's own retry/timeout settings already cover; a lock-wait
// timeout is not an error at all (the Engine falls back to a stale value or
// an unstored compute), and a wait cut short by cancellation surfaces as the
// caller's own context error. Tripping the breaker on either would fail
// requests fast for a problem the breaker cannot do anything about.
func countsAgainstBreaker(err error) bool {
	var computeErr *ComputeError
	return errors.As(err, &computeErr)
}

func (cb *CircuitBreaker) getState() CircuitState { return CircuitState(cb.state.Load()) }
func (cb *CircuitBreaker) setState(s CircuitState) { cb.state.Store(int32(s)) }

func (cb *CircuitBreaker) canExecute() bool {
	switch cb.getState() {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(time.Unix(0, cb.lastFailureTime.Load())) > cb.timeout {
			cb.setState(CircuitHalfOpen)
			cb.successes.Store(0)
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) canExecuteKey(key string) bool {
	val, ok := cb.keyBreakers.Load(key)
	if !ok {
		return true
	}
	kb := val.(*keyCircuitBreaker)
	if kb.failures.Load() >= cb.failureThreshold {
		if time.Since(time.Unix(0, kb.lastFailureTime.Load())) > cb.timeout {
			kb.failures.Store(0)
			return true
		}
		return false
	}
	return true
}

func (cb *CircuitBreaker) recordFailure(key string) {
	failures := cb.failures.Add(1)
	cb.lastFailureTime.Store(time.Now().UnixNano())

	switch cb.getState() {
	case CircuitClosed:
		if failures >= cb.failureThreshold {
			cb.setState(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
		cb.failures.Store(0)
	}

	cb.recordKeyFailure(key)
}

func (cb *CircuitBreaker) recordSuccess(key string) {
	cb.resetKeyBreaker(key)

	switch cb.getState() {
	case CircuitHalfOpen:
		if cb.successes.Add(1) >= cb.successThreshold {
			cb.setState(CircuitClosed)
			cb.failures.Store(0)
			cb.successes.Store(0)
		}
	case CircuitClosed:
		cb.failures.Store(0)
	}
}

// GetState reports the breaker's current state as a human-readable string.
func (cb *CircuitBreaker) GetState() string {
	switch cb.getState() {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Reset forces the breaker back to closed and clears all per-key state.
func (cb *CircuitBreaker) Reset() {
	cb.setState(CircuitClosed)
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.halfOpenRequests.Store(0)

	cb.keyBreakerMutex.Lock()
	cb.keyBreakers.Range(func(key, _ interface{}) bool {
		cb.keyBreakers.Delete(key)
		return true
	})
	cb.keyBreakerLRU.Purge()
	cb.keyBreakerMutex.Unlock()
}

func (cb *CircuitBreaker) recordKeyFailure(key string) {
	cb.keyBreakerMutex.Lock()
	defer cb.keyBreakerMutex.Unlock()

	if kb, exists := cb.keyBreakerLRU.Get(key); exists {
		kb.failures.Add(1)
		kb.lastFailureTime.Store(time.Now().UnixNano())
		return
	}

	kb := &keyCircuitBreaker{key: key}
	kb.failures.Store(1)
	kb.lastFailureTime.Store(time.Now().UnixNano())

	cb.keyBreakerLRU.Add(key, kb)
	cb.keyBreakers.Store(key, kb)
}

func (cb *CircuitBreaker) resetKeyBreaker(key string) {
	if val, ok := cb.keyBreakers.Load(key); ok {
		kb := val.(*keyCircuitBreaker)
		kb.failures.Store(0)
	}
}
