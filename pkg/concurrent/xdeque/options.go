package xdeque

// defaultCapacity 初始环形缓冲容量，也是缩容下限。
const defaultCapacity = 8

// Option 定义 Deque 可选配置函数类型。
type Option func(*options)

type options struct {
	capacity int
}

func defaultOptions() options {
	return options{
		capacity: defaultCapacity,
	}
}

// WithCapacity 设置初始容量，用于已知突发规模的场景减少早期扩容。
// n <= 0 时忽略，保持默认值。
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
