package swrcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_SetGetRemove(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), EntryOptions{}))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, b.Remove(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryBackend_RemoveMissingKeyIsSuccess(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	assert.NoError(t, b.Remove(context.Background(), "never-existed"))
}

func TestMemoryBackend_ExpiresEntries(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	rel := 20 * time.Millisecond

	require.NoError(t, b.Set(context.Background(), "k", []byte("v"), EntryOptions{AbsoluteExpirationRelativeToNow: &rel}))

	_, err := b.Get(context.Background(), "k")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = b.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryBackend_GetReturnsACopy(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	require.NoError(t, b.Set(context.Background(), "k", []byte("v"), EntryOptions{}))

	got, err := b.Get(context.Background(), "k")
	require.NoError(t, err)
	got[0] = 'X'

	got2, err := b.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got2), "mutating a returned slice must not affect stored state")
}
