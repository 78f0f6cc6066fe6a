package swrcache

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// BadgerConfig configures the embedded-KV Backend implementation. Defaults
// are tuned for small, latency-sensitive payloads rather than storage
// efficiency.
type BadgerConfig struct {
	Dir      string
	ValueDir string

	SyncWrites bool

	Compression        options.CompressionType
	ZSTDCompressionLvl int

	DetectConflicts bool

	ValueThreshold int
	MemTableSize   int64
	IndexCacheSize int64
	BlockCacheSize int64
	MaxTableSize   int64
	NumCompactors  int

	ValueLogFileSize int64

	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger badger.Logger
}

// DefaultBadgerConfig returns a configuration tuned for small read-through
// cache payloads: no compression, large memtables to absorb write bursts,
// and aggressive value-log GC.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:      dir,
		ValueDir: dir,

		SyncWrites: false,

		Compression: options.None,

		DetectConflicts: false,

		ValueThreshold: 4 << 10,
		MemTableSize:   256 << 20,
		MaxTableSize:   128 << 20,

		IndexCacheSize: 0,
		BlockCacheSize: 0,

		NumCompactors: runtime.GOMAXPROCS(0),

		ValueLogFileSize: 1 << 30,

		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.8,
	}
}

// BadgerBackend implements Backend on top of an embedded badger.DB.
type BadgerBackend struct {
	db             *badger.DB
	gcInterval     time.Duration
	gcDiscardRatio float64

	closeOnce sync.Once
	wg        sync.WaitGroup
	closed    atomic.Bool
	doneCh    chan struct{}
}

var _ Backend = (*BadgerBackend)(nil)
var _ BatchWriter = (*BadgerBackend)(nil)

// NewBadgerBackend opens (or creates) a badger database at cfg.Dir and
// starts its value-log GC loop. Open is blocking; ctx can abort the wait.
func NewBadgerBackend(ctx context.Context, cfg BadgerConfig) (*BadgerBackend, error) {
	opts := badger.
		DefaultOptions(cfg.Dir).
		WithValueDir(cfg.ValueDir).
		WithSyncWrites(cfg.SyncWrites).
		WithCompression(cfg.Compression).
		WithZSTDCompressionLevel(cfg.ZSTDCompressionLvl).
		WithDetectConflicts(cfg.DetectConflicts).
		WithMemTableSize(cfg.MemTableSize).
		WithIndexCacheSize(cfg.IndexCacheSize).
		WithBlockCacheSize(cfg.BlockCacheSize).
		WithBaseTableSize(cfg.MaxTableSize).
		WithNumCompactors(cfg.NumCompactors).
		WithValueLogFileSize(cfg.ValueLogFileSize).
		WithValueThreshold(int64(cfg.ValueThreshold)).
		WithChecksumVerificationMode(options.NoVerification)

	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	}

	type openResult struct {
		db  *badger.DB
		err error
	}
	resCh := make(chan openResult, 1)
	go func() {
		db, err := badger.Open(opts)
		resCh <- openResult{db: db, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		b := &BadgerBackend{
			db:             r.db,
			gcInterval:     cfg.GCInterval,
			gcDiscardRatio: cfg.GCDiscardRatio,
			doneCh:         make(chan struct{}),
		}
		b.wg.Add(1)
		go b.runValueLogGC()
		return b, nil
	}
}

// Size-tiered buffer pools, reused across Get calls to reduce allocation
// churn under high request rates.
var (
	smallBufPool = sync.Pool{
		New: func() any {
			b := make([]byte, 0, 4<<10)
			return &b
		},
	}
	mediumBufPool = sync.Pool{
		New: func() any {
			b := make([]byte, 0, 32<<10)
			return &b
		},
	}
	largeBufPool = sync.Pool{
		New: func() any {
			b := make([]byte, 0, 128<<10)
			return &b
		},
	}
)

func getBufferFromPool(sizeHint int) (*[]byte, func()) {
	switch {
	case sizeHint <= 4<<10:
		bufPtr := smallBufPool.Get().(*[]byte)
		*bufPtr = (*bufPtr)[:0]
		return bufPtr, func() { smallBufPool.Put(bufPtr) }
	case sizeHint <= 32<<10:
		bufPtr := mediumBufPool.Get().(*[]byte)
		*bufPtr = (*bufPtr)[:0]
		return bufPtr, func() { mediumBufPool.Put(bufPtr) }
	default:
		bufPtr := largeBufPool.Get().(*[]byte)
		*bufPtr = (*bufPtr)[:0]
		return bufPtr, func() { largeBufPool.Put(bufPtr) }
	}
}

// Get retrieves the raw bytes stored under key, returning ErrMiss if absent.
func (b *BadgerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrMiss
			}
			return err
		}

		bufPtr, release := getBufferFromPool(int(item.ValueSize()))
		defer release()

		if err := item.Value(func(v []byte) error {
			*bufPtr = append(*bufPtr, v...)
			return nil
		}); err != nil {
			return err
		}

		out = append(out[:0], (*bufPtr)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores value under key, converting EntryOptions into a badger TTL via
// effectiveRelativeTTL. A *badger.WriteBatch found in ctx (via
// WithWriteBatch) is used instead of an individual transaction, supporting
// the Bulk Fan-Out component's batched writes.
func (b *BadgerBackend) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ttl := effectiveRelativeTTL(&opts, time.Now())

	if wb, ok := ctx.Value(batchCtxKey{}).(*badger.WriteBatch); ok && wb != nil {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e.WithTTL(ttl)
		}
		return wb.SetEntry(e)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Remove deletes key. A missing key is treated as success, per Backend's contract.
func (b *BadgerBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close stops the GC loop and closes the underlying database. Idempotent.
func (b *BadgerBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.doneCh)
		b.wg.Wait()
		err = b.db.Close()
	})
	return err
}

// runValueLogGC periodically reclaims value-log space, backing off when GC
// keeps failing and doing less work once it has been quiescent for a while.
func (b *BadgerBackend) runValueLogGC() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.gcInterval)
	defer ticker.Stop()

	var (
		consecutiveSuccesses int
		consecutiveFailures  int
		backoffDelay         time.Duration
	)

	for {
		select {
		case <-ticker.C:
			successInRound := false
			gcAttempts := 0

			maxAttempts := 3
			if consecutiveSuccesses > 5 {
				maxAttempts = 1
			}

			for gcAttempts < maxAttempts {
				if err := b.db.RunValueLogGC(b.gcDiscardRatio); err != nil {
					if err == badger.ErrNoRewrite {
						if gcAttempts > 0 {
							consecutiveSuccesses++
							consecutiveFailures = 0
						}
						break
					}

					consecutiveFailures++
					consecutiveSuccesses = 0
					if consecutiveFailures > 3 {
						backoffDelay = time.Second * time.Duration(consecutiveFailures)
						if backoffDelay > 30*time.Second {
							backoffDelay = 30 * time.Second
						}
						time.Sleep(backoffDelay)
					}
					break
				}

				successInRound = true
				gcAttempts++
				time.Sleep(100 * time.Millisecond)
			}

			if successInRound {
				consecutiveSuccesses++
				consecutiveFailures = 0
			}

		case <-b.doneCh:
			return
		}
	}
}

// batchCtxKey is the context key WithWriteBatch stores a *badger.WriteBatch
// under, letting a GetOrCreateMany fan-out share one write batch across the
// calls that are given the returned context.
type batchCtxKey struct{}

// WithWriteBatch attaches wb to ctx so BadgerBackend.Set writes through it
// instead of opening an individual transaction per call.
func WithWriteBatch(ctx context.Context, wb *badger.WriteBatch) context.Context {
	return context.WithValue(ctx, batchCtxKey{}, wb)
}

// badgerWriteBatch adapts *badger.WriteBatch to BatchHandle.
type badgerWriteBatch struct {
	wb *badger.WriteBatch
}

func (h *badgerWriteBatch) Flush() error { return h.wb.Flush() }
func (h *badgerWriteBatch) Cancel()      { h.wb.Cancel() }

// NewBatch opens a badger write batch and attaches it to ctx via
// WithWriteBatch. Badger's WriteBatch is safe to share across goroutines,
// so GetOrCreateMany can hand the returned context to every key in a
// fan-out and flush once at the end.
func (b *BadgerBackend) NewBatch(ctx context.Context) (BatchHandle, context.Context) {
	wb := b.db.NewWriteBatch()
	return &badgerWriteBatch{wb: wb}, WithWriteBatch(ctx, wb)
}
