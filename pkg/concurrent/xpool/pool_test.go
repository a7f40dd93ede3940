package xpool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/taskkit/pkg/concurrent/xtask"
	"github.com/omeyang/taskkit/pkg/observability/xmetrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitUntil 轮询等待条件成立，超时则使测试失败。
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		runtime.Gosched()
	}
}

// fakeObserver 记录观测回调，测试用。
type fakeObserver struct {
	mu        sync.Mutex
	submitted map[xmetrics.Route]int
	completed map[xmetrics.Status]int
	stolen    int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{
		submitted: make(map[xmetrics.Route]int),
		completed: make(map[xmetrics.Status]int),
	}
}

func (f *fakeObserver) TaskSubmitted(_ context.Context, route xmetrics.Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted[route]++
}

func (f *fakeObserver) TaskCompleted(_ context.Context, status xmetrics.Status, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[status]++
}

func (f *fakeObserver) TaskStolen(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stolen++
}

func (f *fakeObserver) snapshot() (map[xmetrics.Route]int, map[xmetrics.Status]int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := make(map[xmetrics.Route]int, len(f.submitted))
	for k, v := range f.submitted {
		sub[k] = v
	}
	com := make(map[xmetrics.Status]int, len(f.completed))
	for k, v := range f.completed {
		com[k] = v
	}
	return sub, com, f.stolen
}

func TestNew_Defaults(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, runtime.GOMAXPROCS(0), p.Workers())
}

func TestNew_NilOptionIgnored(t *testing.T) {
	p, err := New(nil, WithWorkers(2))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, 2, p.Workers())
}

func TestNew_InvalidWorkers(t *testing.T) {
	for _, n := range []int{0, -1, maxWorkers + 1} {
		p, err := New(WithWorkers(n))
		assert.ErrorIs(t, err, ErrInvalidWorkers, "workers=%d", n)
		assert.Nil(t, p)
	}
}

func TestNew_InvalidSpin(t *testing.T) {
	p, err := New(WithSpin(-1))
	assert.ErrorIs(t, err, ErrInvalidSpin)
	assert.Nil(t, p)
}

func TestNew_InvalidParkInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Millisecond} {
		p, err := New(WithParkInterval(d))
		assert.ErrorIs(t, err, ErrInvalidParkInterval, "parkInterval=%v", d)
		assert.Nil(t, p)
	}
}

func TestSubmit_Basic(t *testing.T) {
	p, err := New(WithWorkers(4))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	fut, err := Submit(p, context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)

	v, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmit_NilContext(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	//nolint:staticcheck // 故意传 nil 验证防御行为
	fut, err := Submit(p, nil, func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrNilContext)
	assert.Nil(t, fut)
}

func TestSubmit_NilFunc(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	fut, err := Submit[int](p, context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilFunc)
	assert.Nil(t, fut)

	gfut, err := p.Go(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilFunc)
	assert.Nil(t, gfut)
}

func TestSubmit_AfterClose(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	fut, err := Submit(p, context.Background(), func(context.Context) (int, error) {
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Nil(t, fut)
}

func TestSubmit_ExactlyOnce(t *testing.T) {
	const tasks = 1000

	p, err := New(WithWorkers(4))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	var executed atomic.Int64
	futs := make([]*xtask.Future[xtask.Unit], 0, tasks)
	for range tasks {
		fut, err := p.Go(context.Background(), func(context.Context) error {
			executed.Add(1)
			return nil
		})
		require.NoError(t, err)
		futs = append(futs, fut)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, fut := range futs {
		_, err := fut.Wait(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(tasks), executed.Load())

	stats := p.Stats()
	assert.Equal(t, uint64(tasks), stats.Submitted)
	assert.Equal(t, uint64(tasks), stats.Completed)
	assert.Zero(t, stats.Panics)
	assert.Zero(t, stats.Abandoned)
}

func TestSubmit_TaskError(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	wantErr := errors.New("task failed")
	fut, err := Submit(p, context.Background(), func(context.Context) (string, error) {
		return "", wantErr
	})
	require.NoError(t, err)

	v, err := fut.Wait(context.Background())
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, v)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestSubmit_PanicRecovery(t *testing.T) {
	p, err := New(WithWorkers(1), WithLogger(discardLogger()))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	fut, err := Submit(p, context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})
	require.NoError(t, err)

	_, err = fut.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, xtask.ErrPanic)

	var pe *xtask.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	// worker 必须在 panic 后存活
	fut2, err := Submit(p, context.Background(), func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	v, err := fut2.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Panics)
	assert.Equal(t, uint64(2), stats.Completed)
}

func TestWorkerIndex(t *testing.T) {
	p, err := New(WithWorkers(2))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	// 外部 ctx 不携带 worker 身份
	_, ok := WorkerIndex(context.Background())
	assert.False(t, ok)
	_, ok = WorkerIndex(nil) //nolint:staticcheck // 故意传 nil 验证防御行为
	assert.False(t, ok)

	fut, err := Submit(p, context.Background(), func(ctx context.Context) (int, error) {
		idx, ok := WorkerIndex(ctx)
		if !ok {
			return -1, errors.New("no worker identity in task ctx")
		}
		return idx, nil
	})
	require.NoError(t, err)

	idx, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 2)
}

func TestSubmit_LocalRoute(t *testing.T) {
	obs := newFakeObserver()
	p, err := New(WithWorkers(2), WithObserver(obs))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	// 外部提交走全局队列；任务内用调度 ctx 再提交则走本地队列。
	fut, err := Submit(p, context.Background(), func(ctx context.Context) (int, error) {
		inner, err := Submit(p, ctx, func(context.Context) (int, error) {
			return 1, nil
		})
		if err != nil {
			return 0, err
		}
		v, err := inner.Wait(ctx)
		return v + 1, err
	})
	require.NoError(t, err)

	v, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	sub, _, _ := obs.snapshot()
	assert.Equal(t, 1, sub[xmetrics.RouteGlobal])
	assert.Equal(t, 1, sub[xmetrics.RouteLocal])
}

func TestSubmit_CrossPoolRoutesGlobal(t *testing.T) {
	obsA := newFakeObserver()
	obsB := newFakeObserver()

	pa, err := New(WithWorkers(1), WithName("pool-a"), WithObserver(obsA))
	require.NoError(t, err)
	defer func() { _ = pa.Close() }()
	pb, err := New(WithWorkers(1), WithName("pool-b"), WithObserver(obsB))
	require.NoError(t, err)
	defer func() { _ = pb.Close() }()

	// pa 的任务带着自己的调度 ctx 向 pb 提交：身份不属于 pb，必须走全局队列。
	fut, err := Submit(pa, context.Background(), func(ctx context.Context) (int, error) {
		inner, err := Submit(pb, ctx, func(context.Context) (int, error) {
			return 5, nil
		})
		if err != nil {
			return 0, err
		}
		return inner.Wait(ctx)
	})
	require.NoError(t, err)

	v, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	subB, _, _ := obsB.snapshot()
	assert.Equal(t, 1, subB[xmetrics.RouteGlobal])
	assert.Zero(t, subB[xmetrics.RouteLocal])
}

func TestStats_StealAccounting(t *testing.T) {
	const subtasks = 50

	p, err := New(WithWorkers(2))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	// 父任务占住自己的 worker 并把子任务全部压进本地队列后干等：
	// 子任务只能经另一个 worker 窃取执行。
	parent, err := p.Go(context.Background(), func(ctx context.Context) error {
		futs := make([]*xtask.Future[xtask.Unit], 0, subtasks)
		for range subtasks {
			fut, err := p.Go(ctx, func(context.Context) error { return nil })
			if err != nil {
				return err
			}
			futs = append(futs, fut)
		}
		for _, fut := range futs {
			if _, err := fut.Wait(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = parent.Wait(ctx)
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, uint64(subtasks), stats.Stolen)
	assert.Equal(t, uint64(subtasks+1), stats.Completed)
	assert.Equal(t, uint64(subtasks+1), stats.Submitted)
}

func TestRunPending_DonationFromTask(t *testing.T) {
	// 单 worker 池：父任务等待子任务时必须捐赠自己，否则死锁。
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	parent, err := p.Go(context.Background(), func(ctx context.Context) error {
		inner, err := Submit(p, ctx, func(context.Context) (int, error) {
			return 9, nil
		})
		if err != nil {
			return err
		}
		for {
			select {
			case <-inner.Done():
				v, err := inner.Result()
				if err != nil {
					return err
				}
				if v != 9 {
					return errors.New("unexpected inner result")
				}
				return nil
			default:
			}
			if !p.RunPending(ctx) {
				runtime.Gosched()
			}
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = parent.Wait(ctx)
	require.NoError(t, err)
}

func TestRunPending_ExternalDonor(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	// 占住唯一的 worker
	started := make(chan struct{})
	blocker := make(chan struct{})
	blocked, err := p.Go(context.Background(), func(context.Context) error {
		close(started)
		<-blocker
		return nil
	})
	require.NoError(t, err)
	<-started

	// worker 已被占住，该任务必然滞留在全局队列
	var ran atomic.Bool
	fut, err := p.Go(context.Background(), func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)

	// 外部 goroutine 捐赠执行
	deadline := time.Now().Add(5 * time.Second)
	for !p.RunPending(context.Background()) {
		if time.Now().After(deadline) {
			t.Fatal("RunPending never found the queued task")
		}
		runtime.Gosched()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = fut.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, ran.Load())

	close(blocker)
	_, err = blocked.Wait(ctx)
	require.NoError(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	p, err := New(WithWorkers(2))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.NoError(t, p.Shutdown(context.Background()))

	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after Close returns")
	}
}

func TestClose_AbandonsQueued(t *testing.T) {
	const queued = 20

	p, err := New(WithWorkers(1))
	require.NoError(t, err)

	// 占住唯一的 worker，让后续任务滞留在全局队列
	started := make(chan struct{})
	blocker := make(chan struct{})
	blocked, err := p.Go(context.Background(), func(context.Context) error {
		close(started)
		<-blocker
		return nil
	})
	require.NoError(t, err)
	<-started

	futs := make([]*xtask.Future[xtask.Unit], 0, queued)
	for range queued {
		fut, err := p.Go(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
		futs = append(futs, fut)
	}

	closeDone := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closeDone)
	}()

	// 确认关闭标志已置位再放行 blocker：worker 在下一个迭代退出，
	// 不会再消费滞留任务。
	waitUntil(t, 5*time.Second, p.closed.Load)
	close(blocker)

	select {
	case <-closeDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = blocked.Wait(ctx)
	require.NoError(t, err)

	// 滞留任务的 Future 必须以 ErrPoolClosed 结束，不允许悬挂
	for _, fut := range futs {
		_, err := fut.Wait(ctx)
		assert.ErrorIs(t, err, ErrPoolClosed)
	}

	stats := p.Stats()
	assert.Equal(t, uint64(queued), stats.Abandoned)
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestShutdown_Timeout(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)

	started := make(chan struct{})
	blocker := make(chan struct{})
	_, err = p.Go(context.Background(), func(context.Context) error {
		close(started)
		<-blocker
		return nil
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 放行后后台收尾继续完成
	close(blocker)
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pool never finished shutdown")
	}

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdown_NilContext(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.ErrorIs(t, p.Shutdown(nil), ErrNilContext) //nolint:staticcheck // 故意传 nil 验证防御行为
}

func TestRunPending_ClosedPool(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.False(t, p.RunPending(context.Background()))
}

func TestPool_ConcurrentSubmitters(t *testing.T) {
	const (
		producers = 8
		perProd   = 200
	)

	p, err := New(WithWorkers(4))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	var sum atomic.Int64
	var wg sync.WaitGroup
	futs := make(chan *xtask.Future[xtask.Unit], producers*perProd)

	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range perProd {
				fut, err := p.Go(context.Background(), func(context.Context) error {
					sum.Add(int64(j%7) + 1)
					return nil
				})
				assert.NoError(t, err)
				futs <- fut
			}
		}()
	}
	wg.Wait()
	close(futs)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for fut := range futs {
		_, err := fut.Wait(ctx)
		require.NoError(t, err)
	}

	stats := p.Stats()
	assert.Equal(t, uint64(producers*perProd), stats.Submitted)
	assert.Equal(t, uint64(producers*perProd), stats.Completed)
	assert.Positive(t, sum.Load())
}

func TestPool_SubmitCloseRace(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过竞争压力测试")
	}

	const producers = 4

	p, err := New(WithWorkers(2))
	require.NoError(t, err)

	var wg sync.WaitGroup
	perProducer := make([][]*xtask.Future[xtask.Unit], producers)
	stop := make(chan struct{})

	for i := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				fut, err := p.Go(context.Background(), func(context.Context) error { return nil })
				if err != nil {
					assert.ErrorIs(t, err, ErrPoolClosed)
					return
				}
				perProducer[i] = append(perProducer[i], fut)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())
	close(stop)
	wg.Wait()

	// 每个成功提交的 Future 必须有结果：正常完成或 ErrPoolClosed，绝不悬挂。
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var completed, abandoned int
	for _, futs := range perProducer {
		for _, fut := range futs {
			_, err := fut.Wait(ctx)
			switch {
			case err == nil:
				completed++
			case errors.Is(err, ErrPoolClosed):
				abandoned++
			default:
				t.Fatalf("unexpected future error: %v", err)
			}
		}
	}
	t.Logf("completed: %d, abandoned: %d", completed, abandoned)

	stats := p.Stats()
	assert.Equal(t, uint64(completed), stats.Completed)
	assert.Equal(t, uint64(abandoned), stats.Abandoned)
}

func TestObserver_Callbacks(t *testing.T) {
	obs := newFakeObserver()
	p, err := New(WithWorkers(2), WithObserver(obs), WithLogger(discardLogger()))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	okFut, err := Submit(p, context.Background(), func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	errFut, err := Submit(p, context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("nope")
	})
	require.NoError(t, err)
	panicFut, err := Submit(p, context.Background(), func(context.Context) (int, error) { panic("x") })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = okFut.Wait(ctx)
	_, _ = errFut.Wait(ctx)
	_, _ = panicFut.Wait(ctx)

	sub, com, _ := obs.snapshot()
	assert.Equal(t, 3, sub[xmetrics.RouteGlobal])
	assert.Equal(t, 1, com[xmetrics.StatusOK])
	assert.Equal(t, 1, com[xmetrics.StatusError])
	assert.Equal(t, 1, com[xmetrics.StatusPanic])
}

func TestPool_TaskCtxCanceledOnClose(t *testing.T) {
	p, err := New(WithWorkers(1))
	require.NoError(t, err)

	started := make(chan struct{})
	fut, err := p.Go(context.Background(), func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)

	<-started
	require.NoError(t, p.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = fut.Wait(ctx)
	assert.NoError(t, err)
}
