package xpool

import "errors"

var (
	// ErrPoolClosed 表示调度池已关闭。
	// 关闭后的 Submit 返回此错误；关闭时仍在队列中的任务，
	// 其 Future 也以此错误结束。
	ErrPoolClosed = errors.New("xpool: pool is closed")

	// ErrNilContext 表示 context 参数为 nil。
	ErrNilContext = errors.New("xpool: nil context")

	// ErrNilFunc 表示任务函数为 nil。
	ErrNilFunc = errors.New("xpool: task function cannot be nil")

	// ErrInvalidWorkers 表示 worker 数量超出 [1, 65536]。
	ErrInvalidWorkers = errors.New("xpool: invalid worker count")

	// ErrInvalidSpin 表示自旋次数为负数。
	ErrInvalidSpin = errors.New("xpool: invalid spin count")

	// ErrInvalidParkInterval 表示停驻时长不为正数。
	ErrInvalidParkInterval = errors.New("xpool: invalid park interval")
)
