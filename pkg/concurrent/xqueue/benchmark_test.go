package xqueue

import (
	"context"
	"testing"
)

func BenchmarkPush(b *testing.B) {
	q := New[int]()

	b.ReportAllocs()
	for b.Loop() {
		if err := q.Push(1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPushTryPop(b *testing.B) {
	q := New[int]()

	b.ReportAllocs()
	for b.Loop() {
		if err := q.Push(1); err != nil {
			b.Fatal(err)
		}
		if _, ok := q.TryPop(); !ok {
			b.Fatal("pop after push must succeed")
		}
	}
}

func BenchmarkWaitAndPop_Hot(b *testing.B) {
	// 数据常驻时 WaitAndPop 走不等待的快路径。
	q := New[int]()
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		if err := q.Push(1); err != nil {
			b.Fatal(err)
		}
		if _, err := q.WaitAndPop(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPushPop_Parallel(b *testing.B) {
	q := New[int]()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := q.Push(1); err != nil {
				b.Fatal(err)
			}
			q.TryPop()
		}
	})
}
