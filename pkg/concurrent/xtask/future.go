package xtask

import (
	"context"
	"sync/atomic"
)

// Unit 是无结果任务的占位结果类型。
// 只关心完成与否、不产出值的任务使用 Future[Unit]。
type Unit struct{}

// futureState 是 Promise 与 Future 共享的底层状态。
// val/err 仅由赢得 completed CAS 的一方写入，且写入先于 close(done)；
// 读侧经 <-done 建立 happens-before，无需加锁。
type futureState[T any] struct {
	done      chan struct{}
	completed atomic.Bool
	val       T
	err       error
}

// Promise 持有结果的完成权，由任务的执行方使用。
// 零值不可用，必须通过 [NewPromise] 创建。
type Promise[T any] struct {
	s *futureState[T]
}

// Future 持有结果的等待权，由任务的提交方使用。
// 零值不可用，必须通过 [NewPromise] 创建。
type Future[T any] struct {
	s *futureState[T]
}

// NewPromise 创建一对共享底层状态的 Promise/Future。
func NewPromise[T any]() (*Promise[T], *Future[T]) {
	s := &futureState[T]{done: make(chan struct{})}
	return &Promise[T]{s: s}, &Future[T]{s: s}
}

// Complete 写入结果并唤醒所有等待方，仅首次调用生效。
// 返回是否由本次调用完成；后续调用的 val/err 被丢弃。
func (p *Promise[T]) Complete(val T, err error) bool {
	if !p.s.completed.CompareAndSwap(false, true) {
		return false
	}
	p.s.val = val
	p.s.err = err
	close(p.s.done)
	return true
}

// Wait 阻塞等待结果。
// 结果就绪时返回 Complete 写入的值与错误；ctx 先行取消时返回 ctx 的错误。
// 两者同时就绪时优先返回结果。ctx 为 nil 返回 [ErrNilContext]。
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	// 结果已就绪时不受 ctx 状态影响，直接返回。
	select {
	case <-f.s.done:
		return f.s.val, f.s.err
	default:
	}
	select {
	case <-f.s.done:
		return f.s.val, f.s.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done 返回结果就绪时关闭的 channel，可用于 select 组合。
func (f *Future[T]) Done() <-chan struct{} {
	return f.s.done
}

// Result 非阻塞读取结果。
// 结果尚未就绪时返回 [ErrNotReady]。
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.s.done:
		return f.s.val, f.s.err
	default:
		var zero T
		return zero, ErrNotReady
	}
}
