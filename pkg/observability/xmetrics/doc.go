// Package xmetrics 提供调度池的可观测性接口。
//
// # 设计理念
//
// xmetrics 仅定义最小化接口 [PoolObserver]：调度代码只依赖接口，
// 不感知具体后端；默认实现基于 OpenTelemetry metrics，
// 兼容主流可观测栈。不需要观测时用 [NoopPoolObserver]，零开销。
//
// # 使用示例
//
//	obs, _ := xmetrics.NewOTelPoolObserver(xmetrics.WithPoolName("render"))
//	pool, _ := xpool.New(xpool.WithObserver(obs))
//
// # 指标命名
//
// 统一指标：
//   - taskkit.pool.tasks.submitted（按 route 区分 local/global）
//   - taskkit.pool.tasks.completed（按 status 区分 ok/error/panic/abandoned）
//   - taskkit.pool.tasks.stolen
//   - taskkit.pool.task.duration（秒，按 status 区分）
//
// 统一属性：route / status / pool（设置了 WithPoolName 时）。
//
// 设计决策: 只做 metrics 不做 per-task tracing：
//   - 任务粒度可达微秒级，span 的创建/结束开销与任务本身同量级
//   - 调度池是进程内组件，没有跨进程传播上下文的需要
package xmetrics
