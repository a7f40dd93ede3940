package xmetrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInstrumentationName = "github.com/omeyang/taskkit/xmetrics"

	metricTasksSubmitted = "taskkit.pool.tasks.submitted"
	metricTasksCompleted = "taskkit.pool.tasks.completed"
	metricTasksStolen    = "taskkit.pool.tasks.stolen"
	metricTaskDuration   = "taskkit.pool.task.duration"
)

type otelConfig struct {
	instrumentationName string
	poolName            string
	meterProvider       metric.MeterProvider
}

// Option 定义 OTel PoolObserver 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithPoolName 设置池名称，作为 pool 属性附加到全部指标上，
// 用于多池进程中区分数据来源。默认不附加。
func WithPoolName(name string) Option {
	return func(cfg *otelConfig) {
		cfg.poolName = name
	}
}

// WithMeterProvider 设置 MeterProvider。
// 默认使用全局 Provider。传入 nil 将被忽略。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelPoolObserver 创建基于 OpenTelemetry metrics 的 PoolObserver。
func NewOTelPoolObserver(opts ...Option) (PoolObserver, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	submitted, err := meter.Int64Counter(
		metricTasksSubmitted,
		metric.WithDescription("tasks accepted into a queue"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateCounter, err)
	}

	completed, err := meter.Int64Counter(
		metricTasksCompleted,
		metric.WithDescription("tasks finished, by status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateCounter, err)
	}

	stolen, err := meter.Int64Counter(
		metricTasksStolen,
		metric.WithDescription("tasks moved between workers by stealing"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateCounter, err)
	}

	duration, err := meter.Float64Histogram(
		metricTaskDuration,
		metric.WithDescription("task execution duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateHistogram, err)
	}

	var base []attribute.KeyValue
	if cfg.poolName != "" {
		base = []attribute.KeyValue{attribute.String("pool", cfg.poolName)}
	}

	return &otelPoolObserver{
		submitted: submitted,
		completed: completed,
		stolen:    stolen,
		duration:  duration,
		base:      base,
	}, nil
}

type otelPoolObserver struct {
	submitted metric.Int64Counter
	completed metric.Int64Counter
	stolen    metric.Int64Counter
	duration  metric.Float64Histogram
	base      []attribute.KeyValue // 附加到全部指标的公共属性
}

// TaskSubmitted 记录一次任务入队。
func (o *otelPoolObserver) TaskSubmitted(ctx context.Context, route Route) {
	attrs := o.withBase(attribute.String("route", string(route)))
	o.submitted.Add(metricsCtx(ctx), 1, metric.WithAttributes(attrs...))
}

// TaskCompleted 记录一次任务结束。
func (o *otelPoolObserver) TaskCompleted(ctx context.Context, status Status, elapsed time.Duration) {
	attrs := o.withBase(attribute.String("status", string(status)))
	mctx := metricsCtx(ctx)
	o.completed.Add(mctx, 1, metric.WithAttributes(attrs...))
	o.duration.Record(mctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// TaskStolen 记录一次窃取。
func (o *otelPoolObserver) TaskStolen(ctx context.Context) {
	o.stolen.Add(metricsCtx(ctx), 1, metric.WithAttributes(o.base...))
}

func (o *otelPoolObserver) withBase(kv attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(o.base)+1)
	attrs = append(attrs, o.base...)
	return append(attrs, kv)
}

// metricsCtx 返回用于记录指标的 context。
// 使用不可取消的 context，确保任务 context 已取消/超时的场景下
// 指标仍能正确记录；失败路径的可观测性恰恰最重要。
func metricsCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
