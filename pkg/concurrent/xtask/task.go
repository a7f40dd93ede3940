package xtask

import (
	"context"
	"sync/atomic"
)

// Task 是一次性任务句柄。
// 拷贝共享同一消费状态：Invoke 与 Abandon 在整个句柄族上合计最多生效一次。
// 零值不可用，必须通过 [New] 创建。
type Task struct {
	fn        func(context.Context)
	onAbandon func(error)
	consumed  *atomic.Bool
}

// New 创建任务句柄。
// fn 为 nil 时返回 [ErrNilFunc]。
func New(fn func(context.Context), opts ...Option) (Task, error) {
	if fn == nil {
		return Task{}, ErrNilFunc
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return Task{
		fn:        fn,
		onAbandon: o.onAbandon,
		consumed:  &atomic.Bool{},
	}, nil
}

// Invoke 执行任务函数，最多生效一次。
// 已被 Invoke 或 Abandon 消费后返回 [ErrConsumed]；
// 零值句柄返回 [ErrEmpty]；ctx 为 nil 返回 [ErrNilContext]，且不消费句柄。
// 任务函数的 panic 不在此处恢复，原样向上传播。
func (t Task) Invoke(ctx context.Context) error {
	if t.consumed == nil {
		return ErrEmpty
	}
	if ctx == nil {
		return ErrNilContext
	}
	if !t.consumed.CompareAndSwap(false, true) {
		return ErrConsumed
	}
	t.fn(ctx)
	return nil
}

// Abandon 丢弃任务：句柄尚未被消费时标记为已消费，并以 cause 触发
// WithOnAbandon 回调。返回是否由本次调用完成丢弃；零值句柄返回 false。
func (t Task) Abandon(cause error) bool {
	if t.consumed == nil {
		return false
	}
	if !t.consumed.CompareAndSwap(false, true) {
		return false
	}
	if t.onAbandon != nil {
		t.onAbandon(cause)
	}
	return true
}

// Valid 报告句柄是否仍可执行（非零值且未被消费）。
// 并发场景下结果仅供参考：返回 true 后句柄仍可能被其他拷贝抢先消费。
func (t Task) Valid() bool {
	return t.consumed != nil && !t.consumed.Load()
}
