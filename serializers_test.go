package swrcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serializerPayload struct {
	Name  string
	Count int
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	t.Parallel()
	s := &JSONSerializer{}

	data, err := s.Marshal(serializerPayload{Name: "a", Count: 3})
	require.NoError(t, err)

	var out serializerPayload
	require.NoError(t, s.Unmarshal(data, &out))
	assert.Equal(t, serializerPayload{Name: "a", Count: 3}, out)
}

func TestGobSerializer_RoundTrip(t *testing.T) {
	t.Parallel()
	s := &GobSerializer{}

	data, err := s.Marshal(serializerPayload{Name: "b", Count: 7})
	require.NoError(t, err)

	var out serializerPayload
	require.NoError(t, s.Unmarshal(data, &out))
	assert.Equal(t, serializerPayload{Name: "b", Count: 7}, out)
}

func TestCompressedSerializer_RoundTrip(t *testing.T) {
	t.Parallel()
	c := NewCompressedSerializer(&JSONSerializer{})

	data, err := c.Marshal(serializerPayload{Name: "compressed", Count: 99})
	require.NoError(t, err)

	var out serializerPayload
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, serializerPayload{Name: "compressed", Count: 99}, out)
}

func TestCompressedSerializer_UnmarshalRejectsUncompressedData(t *testing.T) {
	t.Parallel()
	c := NewCompressedSerializer(&JSONSerializer{})

	var out serializerPayload
	err := c.Unmarshal([]byte(`{"Name":"a"}`), &out)
	assert.Error(t, err)
}

func TestDefaultTTLCalculator_ReturnsConfiguredPair(t *testing.T) {
	t.Parallel()
	calc := &DefaultTTLCalculator{TTL: time.Hour, StaleTTL: 5 * time.Minute}

	ttl, stale, err := calc.CalculateTTL("any-key", "any-value")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)
	assert.Equal(t, 5*time.Minute, stale)
}

func TestDynamicTTLCalculator_DelegatesToFunction(t *testing.T) {
	t.Parallel()
	calc := &DynamicTTLCalculator{
		Calculator: func(key string, value interface{}) (time.Duration, time.Duration, error) {
			if key == "big" {
				return time.Hour, time.Minute, nil
			}
			return time.Minute, 10 * time.Second, nil
		},
	}

	ttl, stale, err := calc.CalculateTTL("big", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)
	assert.Equal(t, time.Minute, stale)
}

func TestDynamicTTLCalculator_NilFunctionIsError(t *testing.T) {
	t.Parallel()
	calc := &DynamicTTLCalculator{}

	_, _, err := calc.CalculateTTL("k", nil)
	assert.Error(t, err)
}

func TestNoOpValueTransformer_TransformAndRestoreArePassthrough(t *testing.T) {
	t.Parallel()
	var tr NoOpValueTransformer

	transformed, err := tr.Transform(context.Background(), "k", "value")
	require.NoError(t, err)
	assert.Equal(t, "value", transformed)

	restored, err := tr.Restore(context.Background(), "k", "value")
	require.NoError(t, err)
	assert.Equal(t, "value", restored)
}

func TestCompressedSerializer_UnmarshalPropagatesInnerError(t *testing.T) {
	t.Parallel()
	c := NewCompressedSerializer(&failingSerializer{err: errors.New("inner boom")})

	data, err := c.Marshal("x")
	require.NoError(t, err)

	var out string
	err = c.Unmarshal(data, &out)
	assert.Error(t, err)
}

type failingSerializer struct {
	err error
}

func (f *failingSerializer) Marshal(v interface{}) ([]byte, error) {
	return []byte("placeholder"), nil
}

func (f *failingSerializer) Unmarshal(data []byte, v interface{}) error {
	return f.err
}
