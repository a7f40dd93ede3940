package xpool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/taskkit/pkg/concurrent/xdeque"
	"github.com/omeyang/taskkit/pkg/concurrent/xqueue"
	"github.com/omeyang/taskkit/pkg/concurrent/xtask"
	"github.com/omeyang/taskkit/pkg/lifecycle/xrun"
	"github.com/omeyang/taskkit/pkg/observability/xmetrics"
)

// Pool 是工作窃取调度池。
// 必须通过 [New] 创建；零值不可用。
type Pool struct {
	opts options

	global *xqueue.Queue[xtask.Task]
	locals []*xdeque.Deque[xtask.Task]

	group *xrun.Group

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	// stealSeed 为外部捐赠者（RunPending）提供轮转的窃取起点。
	stealSeed atomic.Uint64

	submitted atomic.Uint64
	completed atomic.Uint64
	stolen    atomic.Uint64
	panics    atomic.Uint64
	abandoned atomic.Uint64
}

var _ io.Closer = (*Pool)(nil)

// Stats 是调度池的累计计数快照。
// 各字段独立读取，跨字段不构成一致性快照。
type Stats struct {
	// Submitted 是成功入队的任务数。
	Submitted uint64
	// Completed 是执行完毕的任务数（含返回错误与 panic 恢复的任务）。
	Completed uint64
	// Stolen 是经窃取路径转移执行权的任务数。
	Stolen uint64
	// Panics 是 panic 后被恢复的任务数（Completed 的子集）。
	Panics uint64
	// Abandoned 是未执行即被丢弃的任务数（池关闭排空）。
	Abandoned uint64
}

// New 创建并启动调度池。
// worker goroutine 随即启动并进入调度循环；配置无效时返回相应的
// 哨兵错误，不启动任何 goroutine。
func New(opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if o.workers < 1 || o.workers > maxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, o.workers)
	}
	if o.spin < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSpin, o.spin)
	}
	if o.parkInterval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParkInterval, o.parkInterval)
	}

	p := &Pool{
		opts:   o,
		global: xqueue.New[xtask.Task](),
		locals: make([]*xdeque.Deque[xtask.Task], o.workers),
		done:   make(chan struct{}),
	}
	for i := range p.locals {
		p.locals[i] = xdeque.New[xtask.Task]()
	}

	// worker 统一挂在 xrun.Group 下：每个 worker 在任何退出路径上
	// 都被 Wait 汇合恰好一次，关闭收尾据此判定排空时机。
	group, _ := xrun.NewGroup(context.Background(),
		xrun.WithLogger(o.logger),
		xrun.WithName(o.name),
	)
	p.group = group
	for i := range o.workers {
		group.GoWithName(fmt.Sprintf("worker-%d", i), func(ctx context.Context) error {
			return p.worker(ctx, i)
		})
	}

	o.logger.Debug("xpool: pool started",
		slog.String("pool", o.name),
		slog.Int("workers", o.workers),
	)
	return p, nil
}

// Submit 提交任务，返回承载结果的 Future。
//
// fn 由某个 worker（或 RunPending 的捐赠方）以调度 ctx 调用；
// 其返回值与错误经 Future 交付，panic 被恢复为 *xtask.PanicError。
// ctx 携带本池 worker 身份时任务进入该 worker 的本地队列，
// 否则进入全局队列。Submit 永不阻塞。
//
// Go 的方法不支持类型参数，故 Submit 是包级泛型函数。
func Submit[T any](p *Pool, ctx context.Context, fn func(context.Context) (T, error)) (*xtask.Future[T], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if fn == nil {
		return nil, ErrNilFunc
	}
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	promise, future := xtask.NewPromise[T]()

	wrapped := func(tctx context.Context) {
		start := time.Now()
		val, err := protect(tctx, fn)
		elapsed := time.Since(start)

		status := xmetrics.StatusOK
		var pe *xtask.PanicError
		switch {
		case errors.As(err, &pe):
			status = xmetrics.StatusPanic
			p.panics.Add(1)
			p.opts.logger.Error("xpool: task panic recovered",
				slog.String("pool", p.opts.name),
				slog.Any("panic", pe.Value),
				slog.String("stack", string(pe.Stack)),
			)
		case err != nil:
			status = xmetrics.StatusError
		}

		// 计数与观测先于 Complete：等待方被唤醒时统计已包含本任务。
		p.completed.Add(1)
		p.opts.observer.TaskCompleted(tctx, status, elapsed)
		promise.Complete(val, err)
	}

	task, err := xtask.New(wrapped, xtask.WithOnAbandon(func(cause error) {
		p.abandoned.Add(1)
		p.opts.observer.TaskCompleted(context.Background(), xmetrics.StatusAbandoned, 0)
		var zero T
		promise.Complete(zero, cause)
	}))
	if err != nil {
		return nil, err
	}

	route := xmetrics.RouteGlobal
	if ref := workerRefFrom(ctx); ref != nil && ref.pool == p {
		route = xmetrics.RouteLocal
		p.locals[ref.idx].Push(task)
		// 入队后复查关闭标志：与 Close 竞争失败时队列可能不再被消费，
		// 主动丢弃以便立即报告。丢弃失败说明任务已被 worker 抢到，照常交付。
		if p.closed.Load() && task.Abandon(ErrPoolClosed) {
			return nil, ErrPoolClosed
		}
	} else {
		if err := p.global.Push(task); err != nil {
			return nil, ErrPoolClosed
		}
	}

	p.submitted.Add(1)
	p.opts.observer.TaskSubmitted(ctx, route)
	return future, nil
}

// Go 提交只关心完成与否的任务，是 Submit 的便捷包装。
func (p *Pool) Go(ctx context.Context, fn func(context.Context) error) (*xtask.Future[xtask.Unit], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return Submit(p, ctx, func(tctx context.Context) (xtask.Unit, error) {
		return xtask.Unit{}, fn(tctx)
	})
}

// protect 执行任务函数并把 panic 恢复为 *xtask.PanicError。
func protect[T any](ctx context.Context, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xtask.NewPanicError(r)
		}
	}()
	return fn(ctx)
}

// Close 关闭调度池并阻塞到收尾完成。
//
// 依次：拒绝新提交、取消调度 ctx、关闭全局队列、汇合全部 worker、
// 丢弃遗留任务（其 Future 以 ErrPoolClosed 结束）。幂等。
// 不可在任务函数内调用，否则死锁。
func (p *Pool) Close() error {
	p.beginShutdown()
	<-p.done
	return nil
}

// Shutdown 与 Close 相同，但等待受 ctx 限制。
// ctx 先到期时返回 ctx 的错误，后台收尾继续进行，
// 可通过 Done 等待最终完成。ctx 为 nil 返回 ErrNilContext。
func (p *Pool) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.beginShutdown()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 返回关闭收尾完成时关闭的 channel。
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

func (p *Pool) beginShutdown() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.opts.logger.Debug("xpool: pool closing", slog.String("pool", p.opts.name))

		// 取消调度 ctx：ctx 感知的任务可提前收尾，停驻中的 worker 被唤醒。
		p.group.Cancel(nil)
		// 关闭全局队列：停驻在 WaitAndPop 上的 worker 立即返回 ErrClosed。
		_ = p.global.Close()

		go func() {
			// worker 全部退出后队列不再被消费，此时排空才不会与执行竞争。
			_ = p.group.Wait()
			p.drainAbandoned()
			p.opts.logger.Debug("xpool: pool closed",
				slog.String("pool", p.opts.name),
				slog.Uint64("abandoned", p.abandoned.Load()),
			)
			close(p.done)
		}()
	})
}

// drainAbandoned 丢弃关闭后仍滞留在各队列中的任务。
// 仅在全部 worker 退出后调用，此时本池不再有其他消费者。
func (p *Pool) drainAbandoned() {
	for {
		task, ok := p.global.TryPop()
		if !ok {
			break
		}
		task.Abandon(ErrPoolClosed)
	}
	for _, d := range p.locals {
		for {
			task, ok := d.TrySteal()
			if !ok {
				break
			}
			task.Abandon(ErrPoolClosed)
		}
	}
}

// Workers 返回 worker 数量。
func (p *Pool) Workers() int {
	return len(p.locals)
}

// Stats 返回累计计数快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Stolen:    p.stolen.Load(),
		Panics:    p.panics.Load(),
		Abandoned: p.abandoned.Load(),
	}
}
