package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelled 句柄已被取消，批量结果不再投递给该句柄
var ErrCancelled = errors.New("batch: handle cancelled")

// Future 单次投递的异步结果
type Future[T any] struct {
	once      sync.Once
	done      chan struct{}
	cancelled atomic.Bool

	val T
	err error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve 只有第一次调用生效，返回本次调用是否完成了投递
func (f *Future[T]) resolve(v T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done 结果可用时关闭
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await 等待结果或 ctx 结束。ctx 结束不会取消批量本身。
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel 取消句柄。已下发到后端的操作继续执行，结果被丢弃；
// 尚未下发的非原子分块不再执行。
func (f *Future[T]) Cancel() {
	var zero T
	if f.resolve(zero, ErrCancelled) {
		f.cancelled.Store(true)
	}
}

func (f *Future[T]) Cancelled() bool { return f.cancelled.Load() }
