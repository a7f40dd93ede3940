package xtask

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrNilFunc 表示任务函数为 nil。
	// New 的 fn 参数为 nil 时返回此错误。
	ErrNilFunc = errors.New("xtask: task function cannot be nil")

	// ErrEmpty 表示任务句柄为零值，不持有任何函数。
	ErrEmpty = errors.New("xtask: empty task")

	// ErrConsumed 表示任务已被执行或丢弃。
	// Invoke 第二次及后续调用时返回此错误。
	ErrConsumed = errors.New("xtask: task already consumed")

	// ErrNilContext 表示 context 参数为 nil。
	ErrNilContext = errors.New("xtask: nil context")

	// ErrNotReady 表示 Future 尚未完成。
	// Result 在 Done 关闭前调用时返回此错误。
	ErrNotReady = errors.New("xtask: future not ready")

	// ErrPanic 表示任务函数 panic。
	// [PanicError] 包装此错误，可用 errors.Is(err, ErrPanic) 判断。
	ErrPanic = errors.New("xtask: task panicked")
)

// PanicError 携带从任务函数恢复的 panic 值与捕获时的调用栈。
// 由执行侧（如调度池）在 recover 后构造，经 Promise 传递给等待方。
type PanicError struct {
	// Value 是 recover() 返回的原始值。
	Value any
	// Stack 是 recover 时刻的 goroutine 调用栈（runtime/debug.Stack 输出）。
	Stack []byte
}

// NewPanicError 构造 PanicError 并捕获当前调用栈。
// 应在 recover 返回非 nil 的 defer 中立即调用，此时栈仍含 panic 现场。
func NewPanicError(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

// Error 实现 error 接口。
func (e *PanicError) Error() string {
	return fmt.Sprintf("xtask: task panicked: %v", e.Value)
}

// Unwrap 返回 [ErrPanic]，支持 errors.Is 判断。
func (e *PanicError) Unwrap() error {
	return ErrPanic
}
