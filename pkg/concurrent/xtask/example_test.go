package xtask_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/taskkit/pkg/concurrent/xtask"
)

func ExampleNew() {
	task, err := xtask.New(func(_ context.Context) {
		fmt.Println("task ran")
	})
	if err != nil {
		panic(err)
	}

	if err := task.Invoke(context.Background()); err != nil {
		panic(err)
	}

	// 第二次执行被拒绝
	err = task.Invoke(context.Background())
	fmt.Println("second invoke:", errors.Is(err, xtask.ErrConsumed))
	// Output:
	// task ran
	// second invoke: true
}

func ExampleNewPromise() {
	promise, future := xtask.NewPromise[int]()

	go func() {
		promise.Complete(21*2, nil)
	}()

	v, err := future.Wait(context.Background())
	if err != nil {
		panic(err)
	}
	fmt.Println("result:", v)
	// Output:
	// result: 42
}

func ExampleTask_Abandon() {
	promise, future := xtask.NewPromise[int]()

	// 调度器关闭时未执行的任务通过 Abandon 让等待方立即失败。
	task, err := xtask.New(func(_ context.Context) {
		promise.Complete(1, nil)
	}, xtask.WithOnAbandon(func(cause error) {
		promise.Complete(0, cause)
	}))
	if err != nil {
		panic(err)
	}

	task.Abandon(errors.New("scheduler closed"))

	_, err = future.Wait(context.Background())
	fmt.Println("wait error:", err)
	// Output:
	// wait error: scheduler closed
}
