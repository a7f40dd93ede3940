package xtask

// Option 定义 Task 可选配置函数类型。
type Option func(*options)

type options struct {
	onAbandon func(error)
}

// WithOnAbandon 设置任务被丢弃时的回调。
// 任务未被执行而被 Abandon 时以丢弃原因调用一次；
// 典型用途是把关联 Future 以失败完成，避免等待方永久阻塞。
// 回调在 Abandon 的调用 goroutine 上同步执行。传入 nil 将被忽略。
func WithOnAbandon(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onAbandon = fn
		}
	}
}
