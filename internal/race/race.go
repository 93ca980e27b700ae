package race

import (
	"context"
	"sync/atomic"
)

type outcome[T any] struct {
	val T
	err error
}

// Run calls fn in its own goroutine and returns the first of fn's result or
// ctx being done.
//
// If ctx wins, Run returns ctx.Err() immediately and fn keeps running in the
// background; when it eventually succeeds, release (if non-nil) is called with
// the value it produced. fn is expected to observe ctx and return promptly
// once it is done.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error), release func(T)) (T, error) {
	var settled atomic.Bool
	done := make(chan outcome[T], 1)

	go func() {
		v, err := fn(ctx)
		if !settled.CompareAndSwap(false, true) {
			// Lost to ctx; nobody will read this value.
			if err == nil && release != nil {
				release(v)
			}
			return
		}
		done <- outcome[T]{val: v, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		if settled.CompareAndSwap(false, true) {
			var zero T
			return zero, ctx.Err()
		}
		// fn settled first and is about to deliver.
		o := <-done
		return o.val, o.err
	}
}
