// Package xqueue 提供双锁阻塞并发队列（MPMC、无界、FIFO）。
//
// Queue 采用"单链表 + 永久哨兵节点"结构：tail 永远指向一个不含数据的
// 哨兵，队列判空即 head == tail 的指针相等。Push 只持 tailMu（填充当前
// 哨兵并链入新哨兵），Pop 只持 headMu（摘下 head 节点，判空时在其内
// 瞬时加 tailMu 读 tail），生产者与消费者在队列非空时互不排队。
//
// # 注意事项
//
//   - 队列无界，Push 不阻塞；背压需由调用方自行施加
//   - WaitAndPop 在队列为空时阻塞，ctx 取消或 Close 时返回错误
//   - Close 后 Push 返回 [ErrClosed]；WaitAndPop/TryPop 仍优先弹出
//     存量数据，排空后 WaitAndPop 才返回 [ErrClosed]（排空语义）
//   - 与 Close 并发的 Push 可能竞态成功，该数据仍可被正常弹出
//   - Len 为 O(n)（遍历链表），仅用于诊断，勿在热路径调用
//
// # 设计决策
//
// 设计决策: head/tail 双锁而非单锁：
//   - 队列非空时 Push 与 Pop 触碰的是不同节点，分锁后互不排队
//   - 哨兵节点保证"单元素队列"时两端操作的也是不同节点
//     （head 指向数据节点，tail 指向哨兵），不存在同节点竞争
//   - 判空需读 tail，在 headMu 内瞬时加 tailMu 读取，两锁获取顺序
//     恒为 headMu -> tailMu，无死锁环
//
// 设计决策: 等待者计数 + 锁交接（lock handoff）唤醒：
//   - Push 仅持 tailMu，而等待者在 headMu 下检查谓词。若 Push 在
//     "谓词判空之后、Wait 注册之前"的窗口发出 Signal，该次唤醒丢失，
//     等待者在无后续 Push 时永久沉睡
//   - 修复：Push 在发现 waiters > 0 时先获取 headMu 再 Signal。
//     此刻任何等待者要么已在 Wait 中注册（Signal 可达），要么仍持有
//     headMu（本次获取排在其 Wait 注册之后），窗口被关闭
//   - waiters == 0 的快路径完全不触碰 headMu，保留双锁的并发收益
package xqueue
