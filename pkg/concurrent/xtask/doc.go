// Package xtask 提供一次性任务句柄与 Promise/Future 结果传递原语。
//
// Task 是一个各拷贝共享消费状态的一次性句柄：无论 Invoke 还是 Abandon，
// 整个句柄族只有一次生效机会。典型用法是把闭包包进 Task 后交给调度器，
// 调度器既可能执行它（Invoke），也可能在关闭时丢弃它（Abandon），
// 两条路径互斥且各自幂等。
//
// Promise/Future 把"产出结果"与"等待结果"拆成两个只读视角：
// Promise 持有完成权（Complete 首次调用生效），Future 持有等待权
// （Wait/Done/Result）。两者共享同一底层状态，通过 channel close
// 建立 happens-before，读侧无锁。
//
// # 注意事项
//
//   - Task 的零值不可用，Invoke 返回 [ErrEmpty]
//   - Invoke 不做 panic 恢复，任务函数的 panic 会原样向上传播；
//     需要隔离 panic 的调用方（如调度池）应自行 recover 并包装为 [PanicError]
//   - Complete 之后再调用 Complete 返回 false，结果以首次为准
//   - Wait 在 ctx 取消时返回 ctx 的错误，但任务本身可能仍会完成
//
// # 设计决策
//
// 设计决策: Task 以值类型暴露、内部共享指针状态：
//   - 句柄在队列间流转时按值拷贝最自然，拷贝共享同一消费标记，
//     保证"最多执行一次"跨拷贝成立
//   - 不提供 Clone/Move 之类的所有权 API，Go 没有移动语义，
//     一次性约束由原子标记而非类型系统保证
//
// Promise 与 Future 分离而非单一类型：
//   - 生产方只应持有完成权，消费方只应持有等待权，
//     分离后误用（消费方自行 Complete）在类型层面即被排除
package xtask
