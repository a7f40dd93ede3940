package xmetrics

import (
	"context"
	"time"
)

// Route 表示任务提交时进入的队列。
type Route string

const (
	// RouteLocal 表示任务由 worker 提交，进入其本地队列。
	RouteLocal Route = "local"
	// RouteGlobal 表示任务由外部 goroutine 提交，进入全局队列。
	RouteGlobal Route = "global"
)

// Status 表示任务的结束状态。
type Status string

const (
	// StatusOK 表示任务正常完成。
	StatusOK Status = "ok"
	// StatusError 表示任务返回错误。
	StatusError Status = "error"
	// StatusPanic 表示任务 panic 后被恢复。
	StatusPanic Status = "panic"
	// StatusAbandoned 表示任务未执行即被丢弃（如池关闭时排空）。
	StatusAbandoned Status = "abandoned"
)

// PoolObserver 定义调度池观测接口。
// 实现必须是并发安全的；所有方法都运行在调度热路径上，应保持轻量。
type PoolObserver interface {
	// TaskSubmitted 在任务成功入队时调用。
	TaskSubmitted(ctx context.Context, route Route)
	// TaskCompleted 在任务结束时调用（含 panic 与被丢弃的任务）。
	// 被丢弃的任务 elapsed 为 0。
	TaskCompleted(ctx context.Context, status Status, elapsed time.Duration)
	// TaskStolen 在任务经窃取路径转移执行权时调用。
	TaskStolen(ctx context.Context)
}

// NoopPoolObserver 是空实现，所有方法不做任何处理。
type NoopPoolObserver struct{}

var _ PoolObserver = NoopPoolObserver{}

// TaskSubmitted 空实现。
func (NoopPoolObserver) TaskSubmitted(context.Context, Route) {}

// TaskCompleted 空实现。
func (NoopPoolObserver) TaskCompleted(context.Context, Status, time.Duration) {}

// TaskStolen 空实现。
func (NoopPoolObserver) TaskStolen(context.Context) {}
