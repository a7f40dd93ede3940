package xdeque

import "sync"

// Deque 是工作窃取双端队列。owner 端为队首，thief 端为队尾。
// 零值不可用，必须通过 [New] 创建。
type Deque[T any] struct {
	mu   sync.Mutex
	buf  []T
	head int // 队首元素下标；元素占据 head..head+n-1（模 len(buf)）
	n    int
}

// New 创建空双端队列。
func New[T any](opts ...Option) *Deque[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Deque[T]{
		buf: make([]T, o.capacity),
	}
}

// Push 在队首入队（owner 端）。
func (d *Deque[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == len(d.buf) {
		d.resize(len(d.buf) * 2)
	}
	d.head = (d.head - 1 + len(d.buf)) % len(d.buf)
	d.buf[d.head] = v
	d.n++
}

// TryPop 从队首非阻塞出队（owner 端，后进先出）。
// 队列为空时 ok 为 false。
func (d *Deque[T]) TryPop() (v T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		var zero T
		return zero, false
	}
	v = d.buf[d.head]
	var zero T
	d.buf[d.head] = zero
	d.head = (d.head + 1) % len(d.buf)
	d.n--
	d.maybeShrink()
	return v, true
}

// TrySteal 从队尾非阻塞窃取最早入队的元素（thief 端）。
// 队列为空时 ok 为 false。
func (d *Deque[T]) TrySteal() (v T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		var zero T
		return zero, false
	}
	idx := (d.head + d.n - 1) % len(d.buf)
	v = d.buf[idx]
	var zero T
	d.buf[idx] = zero
	d.n--
	d.maybeShrink()
	return v, true
}

// Len 返回当前元素数量。
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// Empty 报告队列当前是否为空。
// 结果是瞬时快照，并发场景下仅供参考。
func (d *Deque[T]) Empty() bool {
	return d.Len() == 0
}

// maybeShrink 在占用率低于 1/4 时把容量减半，避免突发后内存滞留。
// 调用方必须持有 mu。
func (d *Deque[T]) maybeShrink() {
	if len(d.buf) > defaultCapacity && d.n*4 <= len(d.buf) {
		d.resize(max(len(d.buf)/2, defaultCapacity))
	}
}

// resize 重建缓冲并把元素搬到下标 0 起的连续区间。
// 调用方必须持有 mu，且保证 newCap >= d.n。
func (d *Deque[T]) resize(newCap int) {
	newBuf := make([]T, newCap)
	if d.head+d.n <= len(d.buf) {
		copy(newBuf, d.buf[d.head:d.head+d.n])
	} else {
		k := copy(newBuf, d.buf[d.head:])
		copy(newBuf[k:], d.buf[:d.n-k])
	}
	d.buf = newBuf
	d.head = 0
}
