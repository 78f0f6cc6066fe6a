package swrcache

import "context"

// Backend is the distributed cache transport the engine reads through. It is
// intentionally byte-oriented and opaque to SWR semantics — envelope framing,
// TTL interpretation, and staleness decisions all live above this interface
// in the Engine and the Envelope Codec.
//
// Implementations must be safe for concurrent use. Get must return ErrMiss
// (or an error satisfying errors.Is(err, ErrMiss)) when the key does not
// exist; any other non-nil error is treated as BackendTransient.
type Backend interface {
	// Get retrieves the raw bytes stored for key, or ErrMiss if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, honoring the lifetime hints in opts.
	// A zero EntryOptions means "no TTL / backend default".
	Set(ctx context.Context, key string, value []byte, opts EntryOptions) error

	// Remove deletes key. Implementations must treat a missing key as success.
	Remove(ctx context.Context, key string) error

	// Close releases backend resources. Safe to call multiple times.
	Close() error
}

// BatchHandle represents an in-flight batch of writes opened by a
// BatchWriter. Flush commits everything written through it so far; Cancel
// discards it without committing.
type BatchHandle interface {
	Flush() error
	Cancel()
}

// BatchWriter is implemented by a Backend that can fold multiple Set calls
// into a single underlying commit. GetOrCreateMany type-asserts the
// configured Backend against this interface and, when it's satisfied,
// shares one batch across an entire fan-out instead of opening one
// transaction per key.
type BatchWriter interface {
	// NewBatch opens a batch and derives a context from ctx that Set
	// calls must be made with for their writes to land in the batch
	// instead of an individual transaction.
	NewBatch(ctx context.Context) (BatchHandle, context.Context)
}
