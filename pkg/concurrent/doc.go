// Package concurrent 提供进程内并发调度相关的子包。
//
// 子包列表：
//   - xtask: 一次性任务句柄与 Promise/Future 结果传递
//   - xqueue: 双锁阻塞并发队列（MPMC）
//   - xdeque: 工作窃取双端队列（owner/thief 两端分离）
//   - xpool: 固定 worker 数的工作窃取调度池
//
// 设计原则：
//   - 纯进程内语义，不依赖任何外部系统
//   - 所有阻塞操作接受 context.Context
//   - 错误通过显式返回值传递，panic 在任务边界被恢复
package concurrent
