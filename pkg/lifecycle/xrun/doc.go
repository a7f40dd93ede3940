// Package xrun 提供基于 errgroup + context 的进程生命周期管理。
//
// # 概述
//
// xrun 基于 Go 官方扩展库 [errgroup] 构建，提供：
//   - 多服务并发运行和协调关闭（调度池的 worker 组也运行其上）
//   - 信号处理（SIGINT、SIGTERM 等）
//   - 结构化日志记录
//
// # 核心概念
//
// 基于 context 的协调：当任一服务返回错误或收到终止信号时，
// context 会被取消，所有服务应该监听 ctx.Done() 并优雅退出。
//
// # 快速开始
//
//	err := xrun.Run(context.Background(),
//	    func(ctx context.Context) error {
//	        for {
//	            select {
//	            case <-ctx.Done():
//	                return ctx.Err()
//	            case job := <-jobs:
//	                process(job)
//	            }
//	        }
//	    },
//	)
//
// 使用 Group 管理一组命名 goroutine：
//
//	g, ctx := xrun.NewGroup(ctx, xrun.WithName("pool"))
//	for i := range workers {
//	    g.GoWithName(fmt.Sprintf("worker-%d", i), runWorker)
//	}
//	if err := g.Wait(); err != nil {
//	    log.Fatal(err)
//	}
//
// # 错误处理
//
// Wait() 的错误处理遵循以下规则：
//   - 服务返回非 nil、非 context.Canceled 的错误时，Wait() 直接返回该错误
//   - 错误是 context.Canceled 时，通过 causeCtx 判断取消来源：
//     Group 被主动取消（Cancel() 或父 context）则过滤并返回显式 cause（如有）；
//     取消来自服务内部则不过滤，原样返回
//   - 所有服务返回 nil 但存在显式 Cancel(cause) 时，Wait() 仍返回该 cause
//
// 信号退出示例：
//
//	err := xrun.Run(ctx, myService)
//	var sigErr *xrun.SignalError
//	if errors.As(err, &sigErr) {
//	    log.Printf("received signal: %v", sigErr.Signal)
//	}
//
// # 设计决策
//
// 1. 基于 context 的协调：所有服务通过 context 感知取消信号，
//    使用 context.WithCancelCause 保留取消原因。
//
// 2. errgroup 单错误语义：errgroup.Wait() 仅返回第一个非 nil 错误。
//    第一个服务失败时，其他服务会通过 context 取消收到通知；
//    如需收集所有错误，应在服务内部记录日志。
//
// 3. 信号处理：Run/RunServices 及其 WithOptions 变体自动注册信号监听
//    （默认 SIGHUP、SIGINT、SIGTERM、SIGQUIT），收到信号时通过
//    Cancel(&SignalError{Signal: sig}) 传播退出原因。
//    可通过 WithSignals 自定义，或 WithoutSignalHandler 完全禁用。
//    直接使用 NewGroup 时不包含信号处理，需要自行管理。
//
// 4. 无全局关闭钩子：关闭逻辑应内聚在各服务的 ctx.Done() 处理中，
//    不提供 OnShutdown 等回调注册机制，避免回调排序与错误传播的复杂性。
//
// 5. context.Canceled 过滤策略：Wait() 使用 causeCtx（独立于 errgroup
//    context）判断 context.Canceled 的来源，服务内部产生的取消错误
//    （如下游 RPC 取消）不会被误过滤。
//
// [errgroup]: https://pkg.go.dev/golang.org/x/sync/errgroup
package xrun
