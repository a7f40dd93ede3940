package xpool

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
)

func BenchmarkSubmit(b *testing.B) {
	pool, err := New(WithWorkers(4))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := pool.Go(ctx, func(context.Context) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSubmit_Local(b *testing.B) {
	pool, err := New(WithWorkers(1))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()

	// 基准运行在池外，手工构造 worker 身份以覆盖本地队列路由路径。
	ctx := context.WithValue(context.Background(), workerKey{}, &workerRef{pool: pool, idx: 0})

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := pool.Go(ctx, func(context.Context) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSubmit_Parallel(b *testing.B) {
	pool, err := New(WithWorkers(runtime.GOMAXPROCS(0)))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()

	ctx := context.Background()
	var failed atomic.Int64
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := pool.Go(ctx, func(context.Context) error { return nil }); err != nil {
				failed.Add(1)
			}
		}
	})
	if n := failed.Load(); n > 0 {
		b.Fatalf("submit failed %d times", n)
	}
}

// BenchmarkSubmitAndWait 测量提交到结果就绪的完整往返。
func BenchmarkSubmitAndWait(b *testing.B) {
	pool, err := New(WithWorkers(4))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		fut, err := Submit(pool, ctx, func(context.Context) (int, error) { return 1, nil })
		if err != nil {
			b.Fatal(err)
		}
		if _, err := fut.Wait(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRunPending_Empty(b *testing.B) {
	pool, err := New(WithWorkers(2))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		pool.RunPending(ctx)
	}
}

func BenchmarkRunPending_Execute(b *testing.B) {
	pool, err := New(WithWorkers(1))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()

	// 占住唯一的 worker，保证任务由捐赠方执行
	release := make(chan struct{})
	started := make(chan struct{})
	if _, err := pool.Go(context.Background(), func(ctx context.Context) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}); err != nil {
		b.Fatal(err)
	}
	<-started
	defer close(release)

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := pool.Go(ctx, func(context.Context) error { return nil }); err != nil {
			b.Fatal(err)
		}
		if !pool.RunPending(ctx) {
			b.Fatal("no pending task")
		}
	}
}

// BenchmarkLifecycle 测量 New→Go(N)→Close 完整生命周期开销。
func BenchmarkLifecycle(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for b.Loop() {
		pool, err := New(WithWorkers(2))
		if err != nil {
			b.Fatal(err)
		}
		for range 10 {
			if _, err := pool.Go(ctx, func(context.Context) error { return nil }); err != nil {
				b.Fatal(err)
			}
		}
		if err := pool.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
