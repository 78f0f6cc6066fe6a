package swrcache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func BenchmarkLockPool_RentReturn(b *testing.B) {
	pool := NewLockPool(5 * time.Minute)
	b.Cleanup(pool.Stop)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h := pool.Rent("K")
		pool.Return(h)
	}
}

func BenchmarkLockPool_AcquireRelease(b *testing.B) {
	pool := NewLockPool(5 * time.Minute)
	b.Cleanup(pool.Stop)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h := pool.Rent("K")
		pool.Acquire(ctx, h, 0)
		pool.Release(h)
		pool.Return(h)
	}
}

func BenchmarkLockPool_ParallelDistinctKeys(b *testing.B) {
	pool := NewLockPool(5 * time.Minute)
	b.Cleanup(pool.Stop)

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			i++
			h := pool.Rent(strconv.Itoa(i))
			pool.Return(h)
		}
	})
}

func BenchmarkEnvelope_EncodeDecode(b *testing.B) {
	ser := &JSONSerializer{}
	soft := time.Now().Add(time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		raw, err := EncodeEnvelope(ser, "a reasonably sized benchmark payload value", soft)
		if err != nil {
			b.Fatal(err)
		}
		env, ok := TryDecodeEnvelope(ser, raw)
		if !ok {
			b.Fatal("expected envelope decode to succeed")
		}
		var v string
		if err := DecodeEnvelopeValue(ser, env, &v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetOrCreate_FreshHit(b *testing.B) {
	backend := NewMemoryBackend()
	eng, err := NewEngineWithOptions(backend, NewNoOpLogger())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(eng.Shutdown)

	compute := func(ctx context.Context) (interface{}, error) { return "warm-value", nil }
	var out string
	if err := eng.GetOrCreate(context.Background(), "K", &out, compute, &Policy{}, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var v string
		if err := eng.GetOrCreate(context.Background(), "K", &v, compute, &Policy{}, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetOrCreateMany_FreshHits(b *testing.B) {
	backend := NewMemoryBackend()
	eng, err := NewEngineWithOptions(backend, NewNoOpLogger())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(eng.Shutdown)

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	computeFor := func(key string) ComputeFunc {
		return func(ctx context.Context) (interface{}, error) { return key, nil }
	}
	if _, err := eng.GetOrCreateMany(context.Background(), keys, computeFor, 4, &Policy{}, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := eng.GetOrCreateMany(context.Background(), keys, computeFor, 4, &Policy{}, nil); err != nil {
			b.Fatal(err)
		}
	}
}
