package xpool

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/omeyang/taskkit/pkg/concurrent/xtask"
)

// workerKey 是调度 ctx 中 worker 身份的键。
type workerKey struct{}

// workerRef 标识一个 worker：所属池与本地队列下标。
// 池指针用于身份比对，防止任务函数把 ctx 带进另一个池时误判本地路由。
type workerRef struct {
	pool *Pool
	idx  int
}

func workerRefFrom(ctx context.Context) *workerRef {
	ref, _ := ctx.Value(workerKey{}).(*workerRef)
	return ref
}

// WorkerIndex 返回 ctx 所携带的 worker 下标。
// 仅当 ctx 源自某个 Pool 的任务调度（任务函数收到的 ctx 及其派生）时
// ok 为 true；外部 goroutine 的 ctx 返回 (0, false)。
func WorkerIndex(ctx context.Context) (idx int, ok bool) {
	if ctx == nil {
		return 0, false
	}
	ref := workerRefFrom(ctx)
	if ref == nil {
		return 0, false
	}
	return ref.idx, true
}

// worker 是调度循环：每个迭代读一次关闭标志，按本地→全局→窃取的
// 顺序取任务，空转时先让出再停驻。
func (p *Pool) worker(ctx context.Context, idx int) error {
	wctx := context.WithValue(ctx, workerKey{}, &workerRef{pool: p, idx: idx})

	idle := 0
	for {
		if p.closed.Load() {
			return nil
		}
		if p.runPending(wctx, idx) {
			idle = 0
			continue
		}
		idle++
		if idle <= p.opts.spin {
			runtime.Gosched()
			continue
		}
		if p.park(wctx, idle) {
			idle = 0
		}
	}
}

// park 让空闲 worker 限时停驻在全局队列上，返回是否取到并执行了任务。
//
// 停驻时长从 parkStep 起随连续空转线性增长，封顶 parkInterval：
// 刚空闲时醒得勤（同伴队列的新任务很快被窃取发现），持续空闲后
// 以上限周期轮询。全局队列的 Push 与关闭都会即时唤醒停驻者。
func (p *Pool) park(ctx context.Context, idle int) bool {
	d := time.Duration(idle-p.opts.spin) * parkStep
	if d <= 0 || d > p.opts.parkInterval {
		d = p.opts.parkInterval
	}

	pctx, cancel := context.WithTimeout(ctx, d)
	task, err := p.global.WaitAndPop(pctx)
	cancel()
	if err != nil {
		// 超时、池关闭或调度 ctx 取消；外层循环复查关闭标志。
		return false
	}
	p.invoke(ctx, task)
	return true
}

// RunPending 执行一个待调度任务（若有），返回是否执行了任务。
//
// 供池外调用方捐赠自己的 goroutine：在任务内等待另一个池内任务的
// Future 时，循环调用 RunPending 可避免所有 worker 都在等待而无人
// 执行的死锁。ctx 携带本池 worker 身份时先查其本地队列；外部
// ctx（含 nil，视同 context.Background()）从全局队列与轮转窃取取任务。
// 池关闭后恒返回 false。
func (p *Pool) RunPending(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.closed.Load() {
		return false
	}
	idx := -1
	if ref := workerRefFrom(ctx); ref != nil && ref.pool == p {
		idx = ref.idx
	}
	return p.runPending(ctx, idx)
}

// runPending 是单个调度步。idx 为本池 worker 下标，捐赠方为 -1。
// 顺序：本地弹出 → 全局弹出 → 从起点顺时针窃取，每个同伴一次。
func (p *Pool) runPending(ctx context.Context, idx int) bool {
	if idx >= 0 {
		if task, ok := p.locals[idx].TryPop(); ok {
			p.invoke(ctx, task)
			return true
		}
	}

	if task, ok := p.global.TryPop(); ok {
		p.invoke(ctx, task)
		return true
	}

	n := len(p.locals)
	start, tries := idx, n-1
	if idx < 0 {
		// 捐赠方没有固定下标，用轮转种子错开窃取起点。
		start, tries = int(p.stealSeed.Add(1)%uint64(n)), n
	}
	for i := 1; i <= tries; i++ {
		victim := (start + i) % n
		task, ok := p.locals[victim].TrySteal()
		if !ok {
			continue
		}
		p.stolen.Add(1)
		p.opts.observer.TaskStolen(ctx)
		p.invoke(ctx, task)
		return true
	}
	return false
}

// invoke 执行取到的任务。
// 与关闭期 Abandon 竞争落败的任务返回 ErrConsumed，属预期情况。
func (p *Pool) invoke(ctx context.Context, task xtask.Task) {
	if err := task.Invoke(ctx); err != nil {
		p.opts.logger.Debug("xpool: task skipped",
			slog.String("pool", p.opts.name),
			slog.Any("reason", err),
		)
	}
}
