package swrcache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonFast = jsoniter.ConfigFastest

// JSONSerializer implements JSON serialization via jsoniter's fastest config,
// trading strict spec compliance for throughput on the engine's hot path.
type JSONSerializer struct{}

func (j *JSONSerializer) Marshal(v interface{}) ([]byte, error) {
	return jsonFast.Marshal(v)
}

func (j *JSONSerializer) Unmarshal(data []byte, v interface{}) error {
	return jsonFast.Unmarshal(data, v)
}

// GobSerializer implements Go-native binary serialization via encoding/gob.
// More compact than JSON for complex Go structures, at the cost of
// cross-language interoperability.
type GobSerializer struct{}

func (g *GobSerializer) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *GobSerializer) Unmarshal(data []byte, v interface{}) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}

// CompressedSerializer decorates another Serializer with gzip compression,
// for payloads where backend storage cost outweighs the CPU overhead.
type CompressedSerializer struct {
	Inner Serializer
	Level int
}

func NewCompressedSerializer(inner Serializer) *CompressedSerializer {
	return &CompressedSerializer{Inner: inner, Level: gzip.DefaultCompression}
}

func (c *CompressedSerializer) Marshal(v interface{}) ([]byte, error) {
	data, err := c.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *CompressedSerializer) Unmarshal(data []byte, v interface{}) error {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return c.Inner.Unmarshal(decompressed, v)
}

// DefaultTTLCalculator returns the same (ttl, staleTTL) pair for every key,
// the Expiration Planner's static strategy.
type DefaultTTLCalculator struct {
	TTL      time.Duration
	StaleTTL time.Duration
}

func (d *DefaultTTLCalculator) CalculateTTL(key string, value interface{}) (time.Duration, time.Duration, error) {
	return d.TTL, d.StaleTTL, nil
}

// DynamicTTLCalculator delegates TTL selection to a user function, letting
// TTL vary by key pattern or computed value (e.g. content size).
type DynamicTTLCalculator struct {
	Calculator func(key string, value interface{}) (ttl time.Duration, staleTTL time.Duration, err error)
}

func (d *DynamicTTLCalculator) CalculateTTL(key string, value interface{}) (time.Duration, time.Duration, error) {
	if d.Calculator == nil {
		return 0, 0, fmt.Errorf("swrcache: dynamic TTL calculator function not set")
	}
	return d.Calculator(key, value)
}

// NoOpValueTransformer is the pass-through ValueTransformer, used when no
// Transform/Restore hook is configured.
type NoOpValueTransformer struct{}

func (n *NoOpValueTransformer) Transform(ctx context.Context, key string, value interface{}) (interface{}, error) {
	return value, nil
}

func (n *NoOpValueTransformer) Restore(ctx context.Context, key string, value interface{}) (interface{}, error) {
	return value, nil
}
