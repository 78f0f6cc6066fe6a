package swrcache

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ComputeFuncFor produces the ComputeFunc for a single key during a bulk
// fan-out call.
type ComputeFuncFor func(key string) ComputeFunc

// GetOrCreateMany resolves keys concurrently, each via a single-key
// GetOrCreate call, preserving input order in the returned slice. An empty
// keys slice returns an empty, non-nil slice without doing any work.
//
// maxConcurrency<=0 defaults to runtime.NumCPU(). On any individual failure,
// GetOrCreateMany returns the first error once all outstanding work has
// settled; errgroup's WithContext cancels peers' contexts as soon as one
// fails.
//
// When the Engine's Backend implements BatchWriter, every store triggered
// by this call shares one batch, flushed once after the whole fan-out
// settles successfully (and cancelled, discarding any buffered writes, if
// the fan-out fails) instead of each key committing its own transaction.
func (e *Engine) GetOrCreateMany(ctx context.Context, keys []string, computeFor ComputeFuncFor, maxConcurrency int, policy *Policy, options *EntryOptions) ([]interface{}, error) {
	if len(keys) == 0 {
		return []interface{}{}, nil
	}

	degree := maxConcurrency
	if degree <= 0 {
		degree = runtime.NumCPU()
	}
	if degree > len(keys) {
		degree = len(keys)
	}
	if degree < 1 {
		degree = 1
	}

	results := make([]interface{}, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(degree)

	var batch BatchHandle
	if bw, ok := e.backend.(BatchWriter); ok {
		batch, gctx = bw.NewBatch(gctx)
	}

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			var out interface{}
			if err := e.GetOrCreate(gctx, key, &out, computeFor(key), policy, options); err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	err := g.Wait()
	if batch != nil {
		if err != nil {
			batch.Cancel()
		} else if ferr := batch.Flush(); ferr != nil {
			err = &BackendError{Op: "BulkSet", Key: "many", Err: ferr}
		}
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}
