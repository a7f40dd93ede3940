package xtask

import (
	"context"
	"testing"
)

func BenchmarkNewAndInvoke(b *testing.B) {
	ctx := context.Background()
	fn := func(_ context.Context) {}

	b.ReportAllocs()
	for b.Loop() {
		task, err := New(fn)
		if err != nil {
			b.Fatal(err)
		}
		if err := task.Invoke(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPromiseComplete(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		p, f := NewPromise[int]()
		p.Complete(1, nil)
		if _, err := f.Result(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFutureWait_Ready(b *testing.B) {
	ctx := context.Background()
	p, f := NewPromise[int]()
	p.Complete(1, nil)

	b.ReportAllocs()
	for b.Loop() {
		if _, err := f.Wait(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
