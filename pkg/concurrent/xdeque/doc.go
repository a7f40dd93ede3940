// Package xdeque 提供工作窃取双端队列。
//
// Deque 面向"单 owner 多 thief"的调度场景：owner 在队首 Push/TryPop
// （后进先出，刚提交的任务缓存尚热），其他 goroutine 用 TrySteal 从队尾
// 窃取最早入队的元素，与 owner 的操作端相对，把争用降到最低。
//
// 所有方法都在同一把互斥锁下执行，因此任何 goroutine 调用任何方法都是
// 安全的；owner/thief 的端别之分是调度约定而非安全约束，由调用方维护。
//
// # 注意事项
//
//   - 队列无界，Push 不失败；容量随元素数量自动扩缩
//   - TryPop/TrySteal 均为非阻塞，空队列返回 ok == false
//   - 元素弹出后对应槽位会被清零，不延长元素的可达生命期
//
// # 设计决策
//
// 设计决策: 单把互斥锁而非 Chase-Lev 等无锁算法：
//   - 临界区只有几次下标运算与一次赋值，持锁时间以纳秒计
//   - 无锁双端队列的 owner/thief 内存序推理极易出错，
//     在窃取本就低频的负载下收益无法覆盖复杂度
//   - 环形缓冲让两端操作均为 O(1)，扩缩容摊还 O(1)
package xdeque
