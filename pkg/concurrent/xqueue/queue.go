package xqueue

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// node 是链表节点。tail 指向的节点是哨兵：val 为零值、next 为 nil；
// Push 把数据写入当前哨兵并在其后链入新哨兵。
type node[T any] struct {
	val  T
	next *node[T]
}

// Queue 是双锁阻塞并发队列。多生产者多消费者安全，FIFO，无界。
// 零值不可用，必须通过 [New] 创建。
type Queue[T any] struct {
	headMu   sync.Mutex // 保护 head
	head     *node[T]
	notEmpty *sync.Cond // 关联 headMu

	tailMu sync.Mutex // 保护 tail 及尾部链接
	tail   *node[T]

	// waiters 统计正在 WaitAndPop 中等待的 goroutine 数。
	// Push 据此决定是否需要锁交接唤醒（见包文档）。
	waiters atomic.Int64
	closed  atomic.Bool
}

var _ io.Closer = (*Queue[any])(nil)

// New 创建空队列。
func New[T any]() *Queue[T] {
	sentinel := &node[T]{}
	q := &Queue[T]{
		head: sentinel,
		tail: sentinel,
	}
	q.notEmpty = sync.NewCond(&q.headMu)
	return q
}

// Push 入队。队列已关闭时返回 [ErrClosed]。
// 与 Close 并发调用时可能竞态成功，该数据仍可被正常弹出。
func (q *Queue[T]) Push(v T) error {
	if q.closed.Load() {
		return ErrClosed
	}
	// 新哨兵在临界区外分配，缩短持锁时间。
	sentinel := &node[T]{}

	q.tailMu.Lock()
	if q.closed.Load() {
		q.tailMu.Unlock()
		return ErrClosed
	}
	q.tail.val = v
	q.tail.next = sentinel
	q.tail = sentinel
	q.tailMu.Unlock()

	q.wake(false)
	return nil
}

// wake 唤醒等待者。无人等待时为纯原子读快路径；
// 有等待者时先获取 headMu 关闭"谓词判空后、Wait 注册前"的丢失窗口，
// 再在锁内发出通知（见包文档的锁交接说明）。
func (q *Queue[T]) wake(all bool) {
	if q.waiters.Load() == 0 {
		return
	}
	q.headMu.Lock()
	if all {
		q.notEmpty.Broadcast()
	} else {
		q.notEmpty.Signal()
	}
	q.headMu.Unlock()
}

// TryPop 非阻塞出队。队列为空时 ok 为 false。
// 关闭后仍可弹出存量数据。
func (q *Queue[T]) TryPop() (v T, ok bool) {
	q.headMu.Lock()
	defer q.headMu.Unlock()
	if q.head == q.loadTail() {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// WaitAndPop 阻塞出队。队列为空时等待，直到有数据、ctx 取消或队列关闭。
// ctx 取消返回 ctx 的错误；队列关闭且存量排空后返回 [ErrClosed]；
// ctx 为 nil 返回 [ErrNilContext]。存量数据优先于关闭状态返回。
func (q *Queue[T]) WaitAndPop(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if ctx.Done() != nil {
		// 取消时用与 Push 相同的锁交接方式广播，
		// 确保处于注册窗口内的本 goroutine 不会错过唤醒。
		stop := context.AfterFunc(ctx, func() {
			q.headMu.Lock()
			q.notEmpty.Broadcast()
			q.headMu.Unlock()
		})
		defer stop()
	}

	q.headMu.Lock()
	defer q.headMu.Unlock()
	q.waiters.Add(1)
	defer q.waiters.Add(-1)

	for {
		if q.head != q.loadTail() {
			return q.popLocked(), nil
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if q.closed.Load() {
			return zero, ErrClosed
		}
		q.notEmpty.Wait()
	}
}

// Empty 报告队列当前是否为空。
// 结果是瞬时快照，并发场景下仅供参考。
func (q *Queue[T]) Empty() bool {
	q.headMu.Lock()
	defer q.headMu.Unlock()
	return q.head == q.loadTail()
}

// Len 返回队列当前长度。O(n) 遍历，仅用于诊断与测试。
func (q *Queue[T]) Len() int {
	q.headMu.Lock()
	defer q.headMu.Unlock()
	tail := q.loadTail()
	n := 0
	for nd := q.head; nd != tail; nd = nd.next {
		n++
	}
	return n
}

// Closed 报告队列是否已关闭。
func (q *Queue[T]) Closed() bool {
	return q.closed.Load()
}

// Close 关闭队列并唤醒所有等待者。幂等，重复调用返回 nil。
// 关闭后 Push 被拒绝；存量数据仍可弹出（排空语义见包文档）。
func (q *Queue[T]) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	q.wake(true)
	return nil
}

// loadTail 在 tailMu 下读取 tail 快照。
// 调用方可能已持有 headMu；获取顺序恒为 headMu -> tailMu。
func (q *Queue[T]) loadTail() *node[T] {
	q.tailMu.Lock()
	t := q.tail
	q.tailMu.Unlock()
	return t
}

// popLocked 摘下 head 节点并返回其数据。
// 调用方必须持有 headMu 且已确认 head != tail。
func (q *Queue[T]) popLocked() T {
	n := q.head
	q.head = n.next
	return n.val
}
