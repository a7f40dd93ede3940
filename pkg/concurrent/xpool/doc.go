// Package xpool 提供基于工作窃取的固定规模调度池。
//
// Pool 由一个全局队列（xqueue）和每 worker 一个本地双端队列（xdeque）组成，
// 没有中心调度协程：空闲 worker 自行从同伴的本地队列窃取任务。
// 支持以下特性：
//   - 可配置的 worker 数量（[1, 65536]，默认 runtime.GOMAXPROCS(0)）
//   - Submit 返回 Future，任务结果/错误/panic 延迟到等待方
//   - worker 内提交走本地队列（LIFO，缓存友好），外部提交走全局队列（FIFO）
//   - 空闲策略：有限次让出（WithSpin）后在全局队列上限时停驻（WithParkInterval）
//   - panic 恢复（单个任务失败不影响 worker，含堆栈跟踪日志）
//   - RunPending 捐赠调用方 goroutine 参与调度（防止池内等待死锁）
//   - 优雅关闭：Close/Shutdown(ctx)/Done()，未执行任务的 Future 以
//     ErrPoolClosed 结束，不留下永久阻塞的等待方
//   - 可注入日志（WithLogger）与观测实现（WithObserver）
//
// # 任务获取顺序
//
// 每个调度步按固定顺序尝试：本地队列弹出 → 全局队列弹出 → 从
// (自身下标+1) mod N 开始轮询窃取，每个同伴尝试一次。本地优先保证
// 派生任务的缓存局部性，全局队列保证外部提交的 FIFO 公平性，窃取
// 起点错开避免所有空闲 worker 挤向同一个受害者。
//
// # 注意事项
//
//   - Submit 永不阻塞；池关闭后返回 ErrPoolClosed
//   - 任务函数收到的 ctx 是调度 ctx（携带 worker 身份、随池关闭取消），
//     不是 Submit 时传入的 ctx；业务超时应由任务函数自行管理
//   - 在任务内等待另一个池内任务的 Future 时，应循环调用 RunPending
//     捐赠本 worker，否则 worker 全部阻塞时会死锁
//   - Close/Shutdown 不可在任务函数内调用，否则死锁
//   - 跨队列不保证全局顺序：先提交的任务可能因窃取晚于后提交的执行
//   - 关闭不保证排空：已出队的任务执行完毕，仍在队列中的任务被丢弃，
//     其 Future 以 ErrPoolClosed 结束
//
// # 关闭策略
//
// Close 等价于 Shutdown(context.Background())，阻塞到所有 worker 退出、
// 遗留任务排空为止。Shutdown(ctx) 支持超时：ctx 到期即返回 ctx 错误，
// 后台收尾继续进行，可通过 Done() 等待最终完成。关闭标志为原子量，
// worker 每个调度迭代读取一次，最多滞后一个迭代观察到。
//
// # 设计决策
//
// 设计决策: worker 身份经 ctx 传递而非 goroutine 本地存储：
//   - Go 不提供 goroutine-local storage，经 runtime 栈解析取 goroutine id
//     属于 hack 且有性能损耗
//   - 任务函数收到的 ctx 携带 workerRef（池指针 + 下标），Submit 据此
//     判定本地/全局路由；池指针比对防止任务跨池提交时误入他池本地队列
//
// 设计决策: 空闲 worker 停驻在全局队列的条件变量上而非纯自旋：
//   - 纯 yield 自旋在空池时白耗 CPU；限时 WaitAndPop 让外部提交瞬时唤醒
//   - 停驻带超时（线性退避，封顶 WithParkInterval），保证同伴本地队列中
//     的任务最迟一个停驻周期内被窃取发现
//
// 设计决策: Submit 返回 (*Future, error) 而非仅 Future：
//   - 池关闭是提交时即可判定的终态错误，立即返回比经 Future 延迟返回
//     更利于调用方分流
//   - 提交成功后的失败（panic、关闭排空）一律经 Future 传递
package xpool
