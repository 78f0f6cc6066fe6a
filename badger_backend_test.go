package swrcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerBackend(t *testing.T) *BadgerBackend {
	t.Helper()
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.GCInterval = time.Hour

	b, err := NewBadgerBackend(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerBackend_SetGetRemove(t *testing.T) {
	b := newTestBadgerBackend(t)
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

func TestBadgerBackend_RemoveMissingKeyIsSuccess(t *testing.T) {
	b := newTestBadgerBackend(t)
	assert.NoError(t, b.Remove(context.Background(), "never-existed"))
}

func TestBadgerBackend_ExpiresEntriesViaTTL(t *testing.T) {
	b := newTestBadgerBackend(t)
	rel := 30 * time.Millisecond

	require.NoError(t, b.Set(context.Background(), "k", []byte("v"), EntryOptions{AbsoluteExpirationRelativeToNow: &rel}))

	_, err := b.Get(context.Background(), "k")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	_, err = b.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestBadgerBackend_CloseIsIdempotent(t *testing.T) {
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.GCInterval = time.Hour
	b, err := NewBadgerBackend(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestBadgerBackend_WithWriteBatchUsesSharedBatch(t *testing.T) {
	b := newTestBadgerBackend(t)

	wb := b.db.NewWriteBatch()
	ctx := WithWriteBatch(context.Background(), wb)

	require.NoError(t, b.Set(ctx, "batched-1", []byte("a"), EntryOptions{}))
	require.NoError(t, b.Set(ctx, "batched-2", []byte("b"), EntryOptions{}))
	require.NoError(t, wb.Flush())

	got, err := b.Get(context.Background(), "batched-1")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestBadgerBackend_ContextCancellationIsRespected(t *testing.T) {
	b := newTestBadgerBackend(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Get(ctx, "k")
	assert.Error(t, err)

	err = b.Set(ctx, "k", []byte("v"), EntryOptions{})
	assert.Error(t, err)
}

func TestBadgerBackend_ImplementsBackend(t *testing.T) {
	var _ Backend = (*BadgerBackend)(nil)
}
