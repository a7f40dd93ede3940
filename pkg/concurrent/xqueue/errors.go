package xqueue

import "errors"

var (
	// ErrClosed 表示队列已关闭。
	// Close 后 Push 返回此错误；WaitAndPop 在存量数据排空后返回此错误。
	ErrClosed = errors.New("xqueue: queue is closed")

	// ErrNilContext 表示 context 参数为 nil。
	ErrNilContext = errors.New("xqueue: nil context")
)
