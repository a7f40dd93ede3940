package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/time/rate"

	"github.com/omeyang/taskkit/pkg/concurrent/xpool"
	"github.com/omeyang/taskkit/pkg/concurrent/xtask"
	"github.com/omeyang/taskkit/pkg/config/xconf"
	"github.com/omeyang/taskkit/pkg/lifecycle/xrun"
	"github.com/omeyang/taskkit/pkg/observability/xmetrics"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示参数错误，run() 将其映射为退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 判断是否为 CLI 框架自身产生的解析错误
// （未知 flag、非法取值、未知命令）。
// urfave/cli 未导出这类错误的类型，只能按消息特征识别。
func isCLIUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "flag provided but not defined") ||
		strings.Contains(msg, "flag needs an argument") ||
		strings.Contains(msg, "invalid value") ||
		strings.Contains(msg, "No help topic for")
}

// runConfig 是 run 命令的全部负载参数。
// 优先级：命令行参数 > 配置文件 > defaultRunConfig 的默认值。
type runConfig struct {
	Pool  poolSettings  `koanf:"pool"`
	Bench benchSettings `koanf:"bench"`
}

// poolSettings 对应 xpool.New 的构建参数。
type poolSettings struct {
	Name         string        `koanf:"name"`
	Workers      int           `koanf:"workers"`
	Spin         int           `koanf:"spin"`
	ParkInterval time.Duration `koanf:"park_interval"`
}

// benchSettings 控制负载的形态。
type benchSettings struct {
	// Rate 是每秒提交次数上限，0 表示不限速。
	Rate int `koanf:"rate"`
	// Duration 是压测时长。
	Duration time.Duration `koanf:"duration"`
	// Submitters 是并发提交任务的 goroutine 数量。
	Submitters int `koanf:"submitters"`
	// TaskWork 是单个任务模拟的计算耗时，0 表示空任务。
	TaskWork time.Duration `koanf:"task_work"`
	// ReportInterval 是进度日志间隔，0 表示关闭。
	ReportInterval time.Duration `koanf:"report_interval"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		Pool: poolSettings{
			Name:         "poolbench",
			Workers:      runtime.GOMAXPROCS(0),
			Spin:         64,
			ParkInterval: time.Millisecond,
		},
		Bench: benchSettings{
			Duration:   10 * time.Second,
			Submitters: 4,
		},
	}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createRunCommand(),
		createSpinCommand(),
	}
}

// createRunCommand 创建 run 子命令（持续负载）。
func createRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "按配置驱动持续负载，结束后输出统计与指标汇总",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（YAML 或 JSON，按扩展名识别）",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "worker 数量（默认取 GOMAXPROCS）",
			},
			&cli.IntFlag{
				Name:    "rate",
				Aliases: []string{"r"},
				Usage:   "每秒提交次数上限，0 表示不限速",
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "压测时长",
			},
			&cli.IntFlag{
				Name:    "submitters",
				Aliases: []string{"k"},
				Usage:   "并发提交任务的 goroutine 数量",
			},
			&cli.DurationFlag{
				Name:  "task-work",
				Usage: "单个任务模拟的计算耗时，0 表示空任务",
			},
			&cli.DurationFlag{
				Name:  "report-interval",
				Usage: "进度日志间隔，0 表示关闭",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadBenchConfig(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			applyRunFlags(&cfg, cmd)
			return cmdRun(ctx, cfg, newLogger(cmd.Bool("verbose")))
		},
	}
}

// createSpinCommand 创建 spin 子命令（冒烟验证）。
func createSpinCommand() *cli.Command {
	return &cli.Command{
		Name:    "spin",
		Aliases: []string{"s"},
		Usage:   "冒烟模式：任务在池内派生子任务并等待其结果",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Usage:   "外层任务数量",
				Value:   64,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "worker 数量（默认取 GOMAXPROCS）",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			workers := cmd.Int("workers")
			if workers == 0 {
				workers = runtime.GOMAXPROCS(0)
			}
			return cmdSpin(ctx, workers, cmd.Int("tasks"), newLogger(cmd.Bool("verbose")))
		},
	}
}

// loadBenchConfig 返回默认负载参数，path 非空时叠加配置文件内容。
// 文件中省略的字段保持默认值。
func loadBenchConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()
	if path == "" {
		return cfg, nil
	}
	c, err := xconf.New(path)
	if err != nil {
		return runConfig{}, err
	}
	if err := c.Unmarshal("", &cfg); err != nil {
		return runConfig{}, err
	}
	return cfg, nil
}

// applyRunFlags 将显式给出的命令行参数覆盖到配置上。
func applyRunFlags(cfg *runConfig, cmd *cli.Command) {
	if cmd.IsSet("workers") {
		cfg.Pool.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("rate") {
		cfg.Bench.Rate = cmd.Int("rate")
	}
	if cmd.IsSet("duration") {
		cfg.Bench.Duration = cmd.Duration("duration")
	}
	if cmd.IsSet("submitters") {
		cfg.Bench.Submitters = cmd.Int("submitters")
	}
	if cmd.IsSet("task-work") {
		cfg.Bench.TaskWork = cmd.Duration("task-work")
	}
	if cmd.IsSet("report-interval") {
		cfg.Bench.ReportInterval = cmd.Duration("report-interval")
	}
}

// validateRunConfig 校验负载参数。
// 池参数（workers/spin/park_interval）由 xpool.New 自行校验，
// 经 poolConfigError 映射为同样的参数错误退出码。
func validateRunConfig(cfg runConfig) error {
	if cfg.Bench.Rate < 0 {
		return &usageError{msg: fmt.Sprintf("rate 不能为负数，当前为 %d", cfg.Bench.Rate)}
	}
	if cfg.Bench.Duration <= 0 {
		return &usageError{msg: fmt.Sprintf("duration 必须为正数，当前为 %v", cfg.Bench.Duration)}
	}
	if cfg.Bench.Submitters < 1 {
		return &usageError{msg: fmt.Sprintf("submitters 必须为正数，当前为 %d", cfg.Bench.Submitters)}
	}
	if cfg.Bench.TaskWork < 0 {
		return &usageError{msg: fmt.Sprintf("task_work 不能为负数，当前为 %v", cfg.Bench.TaskWork)}
	}
	if cfg.Bench.ReportInterval < 0 {
		return &usageError{msg: fmt.Sprintf("report_interval 不能为负数，当前为 %v", cfg.Bench.ReportInterval)}
	}
	return nil
}

// validateSpinArgs 校验 spin 命令参数。
func validateSpinArgs(tasks int) error {
	if tasks < 1 {
		return &usageError{msg: fmt.Sprintf("tasks 必须为正数，当前为 %d", tasks)}
	}
	return nil
}

// poolConfigError 将 xpool 的配置类哨兵错误映射为参数错误（退出码 2），
// 其余错误包装后原样上抛。
func poolConfigError(err error) error {
	if errors.Is(err, xpool.ErrInvalidWorkers) ||
		errors.Is(err, xpool.ErrInvalidSpin) ||
		errors.Is(err, xpool.ErrInvalidParkInterval) {
		return &usageError{msg: err.Error()}
	}
	return fmt.Errorf("构建调度池失败: %w", err)
}

// cmdRun 驱动持续负载：按配置构建池，多个提交者以限定速率提交任务，
// 到时或收到信号后输出池统计与 OTel 指标汇总。
func cmdRun(ctx context.Context, cfg runConfig, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRunConfig(cfg); err != nil {
		return err
	}

	runID := uuid.New().String()
	logger = logger.With(slog.String("run_id", runID))

	// ManualReader 在进程内聚合指标，结束时一次性导出到 stderr。
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("meter provider shutdown failed", slog.Any("error", err))
		}
	}()

	observer, err := xmetrics.NewOTelPoolObserver(
		xmetrics.WithMeterProvider(provider),
		xmetrics.WithPoolName(cfg.Pool.Name),
	)
	if err != nil {
		return fmt.Errorf("构建指标观测器失败: %w", err)
	}

	pool, err := xpool.New(
		xpool.WithName(cfg.Pool.Name),
		xpool.WithWorkers(cfg.Pool.Workers),
		xpool.WithSpin(cfg.Pool.Spin),
		xpool.WithParkInterval(cfg.Pool.ParkInterval),
		xpool.WithLogger(logger),
		xpool.WithObserver(observer),
	)
	if err != nil {
		return poolConfigError(err)
	}

	logger.Info("bench starting",
		slog.Int("workers", cfg.Pool.Workers),
		slog.Int("submitters", cfg.Bench.Submitters),
		slog.Int("rate", cfg.Bench.Rate),
		slog.Duration("duration", cfg.Bench.Duration),
	)

	// 压测时长通过 deadline 表达：到时后所有提交者随 ctx 结束，
	// xrun.Run 返回 DeadlineExceeded 即为正常收尾。
	benchCtx, cancel := context.WithTimeout(ctx, cfg.Bench.Duration)
	defer cancel()

	// 所有提交者共享限速器，整体速率不随 submitters 变化。
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Bench.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Bench.Rate), 1)
	}

	task := benchTask(cfg.Bench.TaskWork)
	services := make([]func(context.Context) error, 0, cfg.Bench.Submitters+1)
	for range cfg.Bench.Submitters {
		services = append(services, submitLoop(pool, limiter, task))
	}
	if cfg.Bench.ReportInterval > 0 {
		services = append(services, xrun.Ticker(cfg.Bench.ReportInterval, false, func(context.Context) error {
			s := pool.Stats()
			logger.Info("bench progress",
				slog.Uint64("submitted", s.Submitted),
				slog.Uint64("completed", s.Completed),
				slog.Uint64("stolen", s.Stolen),
			)
			return nil
		}))
	}

	started := time.Now()
	err = xrun.RunWithOptions(benchCtx, []xrun.Option{
		xrun.WithName("poolbench"),
		xrun.WithLogger(logger),
	}, services...)

	var sigErr *xrun.SignalError
	switch {
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		// 到时正常结束
	case errors.As(err, &sigErr):
		logger.Info("bench interrupted", slog.String("signal", sigErr.Signal.String()))
	default:
		_ = pool.Close()
		return fmt.Errorf("负载运行失败: %w", err)
	}
	elapsed := time.Since(started)

	// 先关闭排空剩余任务再取统计，Abandoned 才包含未执行的尾部任务。
	if err := pool.Close(); err != nil {
		return fmt.Errorf("关闭调度池失败: %w", err)
	}

	printSummary(os.Stdout, runID, elapsed, pool.Stats())

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		return fmt.Errorf("采集指标失败: %w", err)
	}
	printMetrics(os.Stderr, rm)

	return nil
}

// submitLoop 返回单个提交者服务：以限定速率持续向池提交任务，
// ctx 结束或池关闭时退出。
func submitLoop(pool *xpool.Pool, limiter *rate.Limiter, task func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			// 限速器在 ctx 到点或剩余窗口不足一个发放周期时返回错误，
			// 两种情况都意味着压测窗口结束；以 ctx 状态为准回报。
			if err := limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if _, err := pool.Go(ctx, task); err != nil {
				if errors.Is(err, xpool.ErrPoolClosed) {
					return nil
				}
				return err
			}
		}
	}
}

// benchTask 构造模拟任务。work 为 0 时任务为空操作，
// 否则忙等 work 时长，近似固定量的 CPU 计算。
func benchTask(work time.Duration) func(context.Context) error {
	if work <= 0 {
		return func(context.Context) error { return nil }
	}
	return func(ctx context.Context) error {
		deadline := time.Now().Add(work)
		for time.Now().Before(deadline) {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	}
}

// cmdSpin 冒烟验证：N 个外层任务各自在池内提交一个子任务并等待其结果。
// 池内提交走本地队列；外层任务占用 worker 期间通过 RunPending 捐出执行权，
// 因此 workers=1 时也不会互相等死。
func cmdSpin(ctx context.Context, workers, tasks int, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateSpinArgs(tasks); err != nil {
		return err
	}

	pool, err := xpool.New(
		xpool.WithName("spin"),
		xpool.WithWorkers(workers),
		xpool.WithLogger(logger),
	)
	if err != nil {
		return poolConfigError(err)
	}
	defer func() { _ = pool.Close() }()

	futs := make([]*xtask.Future[int], 0, tasks)
	for i := range tasks {
		fut, err := xpool.Submit(pool, ctx, func(taskCtx context.Context) (int, error) {
			inner, err := xpool.Submit(pool, taskCtx, func(context.Context) (int, error) {
				return i, nil
			})
			if err != nil {
				return 0, err
			}
			// 子任务可能还在本任务所属 worker 的本地队列里，
			// 等待期间持续捐出执行权。
			for {
				v, err := inner.Result()
				if !errors.Is(err, xtask.ErrNotReady) {
					return v, err
				}
				pool.RunPending(taskCtx)
			}
		})
		if err != nil {
			return fmt.Errorf("提交任务失败: %w", err)
		}
		futs = append(futs, fut)
	}

	sum := 0
	for _, fut := range futs {
		v, err := fut.Wait(ctx)
		if err != nil {
			return fmt.Errorf("任务执行失败: %w", err)
		}
		sum += v
	}

	if want := tasks * (tasks - 1) / 2; sum != want {
		fmt.Fprintf(os.Stderr, "spin failed: 累计值 %d，期望 %d\n", sum, want)
		return &exitError{code: 1}
	}

	if err := pool.Close(); err != nil {
		return fmt.Errorf("关闭调度池失败: %w", err)
	}

	stats := pool.Stats()
	if got, want := stats.Completed, uint64(2*tasks); got != want {
		fmt.Fprintf(os.Stderr, "spin failed: 完成数 %d，期望 %d\n", got, want)
		return &exitError{code: 1}
	}

	fmt.Printf("spin ok: tasks=%d workers=%d sum=%d stolen=%d\n",
		tasks, workers, sum, stats.Stolen)
	return nil
}

// newLogger 构造输出到 stderr 的文本日志记录器。
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// printSummary 输出本次压测的池统计。
func printSummary(w io.Writer, runID string, elapsed time.Duration, stats xpool.Stats) {
	throughput := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		throughput = float64(stats.Completed) / secs
	}
	stealRate := 0.0
	if stats.Completed > 0 {
		stealRate = float64(stats.Stolen) / float64(stats.Completed) * 100
	}
	fmt.Fprintf(w, "run:        %s\n", runID)
	fmt.Fprintf(w, "elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "submitted:  %d\n", stats.Submitted)
	fmt.Fprintf(w, "completed:  %d (%.0f/s)\n", stats.Completed, throughput)
	fmt.Fprintf(w, "stolen:     %d (%.1f%%)\n", stats.Stolen, stealRate)
	fmt.Fprintf(w, "panics:     %d\n", stats.Panics)
	fmt.Fprintf(w, "abandoned:  %d\n", stats.Abandoned)
}

// printMetrics 将 ManualReader 聚合的指标逐条输出，
// 计数器输出数据点取值，直方图输出次数与总耗时。
func printMetrics(w io.Writer, rm metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s%s = %d\n", m.Name, formatAttrs(dp.Attributes), dp.Value)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s%s count=%d sum=%.3fs\n", m.Name, formatAttrs(dp.Attributes), dp.Count, dp.Sum)
				}
			}
		}
	}
}

// formatAttrs 将属性集格式化为 {k=v,k=v}，空集返回空串。
func formatAttrs(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, set.Len())
	for _, kv := range set.ToSlice() {
		parts = append(parts, fmt.Sprintf("%s=%s", kv.Key, kv.Value.Emit()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号取消应用 context（负载运行期间 xrun 的信号服务
// 同时收到同一信号并走优雅关闭），第二次信号强制退出
// （退出码 130 = 128 + SIGINT）。当收尾阻塞时，用户可通过再次 Ctrl+C 强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh) // 回收订阅
		os.Exit(130)       // 第二次信号: 强制退出
	}()
}
