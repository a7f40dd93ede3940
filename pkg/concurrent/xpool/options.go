package xpool

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/omeyang/taskkit/pkg/observability/xmetrics"
)

const (
	// maxWorkers 是 worker 数量上限。
	maxWorkers = 65536

	// defaultSpin 是停驻前的默认让出次数。
	defaultSpin = 64

	// defaultParkInterval 是默认停驻时长上限。
	defaultParkInterval = time.Millisecond

	// parkStep 是停驻时长的线性退避步长。
	parkStep = 50 * time.Microsecond
)

// Option 定义 Pool 可选配置函数类型。
type Option func(*options)

type options struct {
	workers      int
	spin         int
	parkInterval time.Duration
	name         string
	logger       *slog.Logger
	observer     xmetrics.PoolObserver
}

func defaultOptions() options {
	return options{
		workers:      runtime.GOMAXPROCS(0),
		spin:         defaultSpin,
		parkInterval: defaultParkInterval,
		name:         "xpool",
		logger:       slog.Default(),
		observer:     xmetrics.NoopPoolObserver{},
	}
}

// WithWorkers 设置 worker 数量，有效范围 [1, 65536]。
// 默认 runtime.GOMAXPROCS(0)，即可用的硬件并行度。
// 超出范围时 New 返回 ErrInvalidWorkers。
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithSpin 设置 worker 空转时停驻前的 runtime.Gosched 让出次数。
// 默认 64。负数时 New 返回 ErrInvalidSpin；0 表示空转即停驻。
// 调大可降低突发负载下的唤醒延迟，代价是空闲期多耗 CPU。
func WithSpin(n int) Option {
	return func(o *options) {
		o.spin = n
	}
}

// WithParkInterval 设置空闲 worker 单次停驻的时长上限。
// 默认 1ms。不为正数时 New 返回 ErrInvalidParkInterval。
// 停驻中的 worker 会被全局队列的提交即时唤醒；此上限只决定
// 同伴本地队列中的任务最迟多久被窃取发现。
func WithParkInterval(d time.Duration) Option {
	return func(o *options) {
		o.parkInterval = d
	}
}

// WithName 设置池名称，用于在多实例场景下区分日志来源。
// 默认为 "xpool"。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger 设置自定义日志记录器。
// 默认使用 slog.Default()。传入 nil 将被忽略，保持使用默认值。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 注入调度观测实现（如 xmetrics.NewOTelPoolObserver 的返回值）。
// 默认不观测。传入 nil 将被忽略。
func WithObserver(obs xmetrics.PoolObserver) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
