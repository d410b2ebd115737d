// Package async runs functions in goroutines and collects their results.
//
// Go starts a single computation and returns a Future. Map fans a function out
// over a slice with a concurrency limit and returns results in input order:
//
//	results := async.Map(ctx, ids, 8, func(ctx context.Context, _ int, id uuid.UUID) string {
//	    return lookup(ctx, id)
//	})
package async

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

var ErrNilFunc = errors.New("async: nil function")

// Future is the eventual result of a computation started with Go.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Go runs fn(ctx, param) in a new goroutine. When ctx is already cancelled,
// fn is not called and the future completes with ctx's error.
func Go[T, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}
	if fn == nil {
		f.err = ErrNilFunc
		close(f.done)
		return f
	}

	go func() {
		defer close(f.done)
		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx, param)
	}()
	return f
}

// Await blocks until the computation finishes or ctx is done.
func (f *Future[U]) Await(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// Done reports whether the computation finished without blocking.
func (f *Future[U]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// WaitAll awaits every future and returns their results in order along with
// all errors joined.
func WaitAll[U any](ctx context.Context, futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var errs []error
	for i, f := range futures {
		res, err := f.Await(ctx)
		results[i] = res
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Map calls fn for every item with at most limit calls running at once and
// returns the results in input order. fn receives the item index. Items not
// yet started when ctx is cancelled are skipped and keep the zero value.
// A limit below 1 runs items one at a time.
func Map[T, U any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) U) []U {
	results := make([]U, len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(int64(limit))
	futures := make([]*Future[struct{}], 0, len(items))
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		futures = append(futures, Go(ctx, i, func(ctx context.Context, i int) (struct{}, error) {
			defer sem.Release(1)
			results[i] = fn(ctx, i, item)
			return struct{}{}, nil
		}))
	}

	// wait on a context that cannot be cancelled: started items must finish
	// before results is returned
	_, _ = WaitAll(context.WithoutCancel(ctx), futures...)
	return results
}
