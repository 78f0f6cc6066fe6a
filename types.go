package swrcache

import (
	"context"
	"time"
)

// Serializer converts values to and from the bytes the Backend stores.
// Implementations must be safe for concurrent use.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// TTLCalculator lets the soft/hard TTL split vary by key or by the freshly
// computed value, overriding the Expiration Planner's policy-derived
// defaults when present.
type TTLCalculator interface {
	// CalculateTTL returns (hardTTL, softTTL, error). A non-nil error falls
	// back to the policy/config-derived split.
	CalculateTTL(key string, value interface{}) (time.Duration, time.Duration, error)
}

// ValueTransformer hooks the write and read paths between compute/decode and
// the Envelope Codec. Transform runs on the freshly computed value before
// encoding; Restore runs on the decoded value before it is returned to the
// caller. Both must be idempotent and context-aware.
type ValueTransformer interface {
	Transform(ctx context.Context, key string, value interface{}) (interface{}, error)
	Restore(ctx context.Context, key string, value interface{}) (interface{}, error)
}
