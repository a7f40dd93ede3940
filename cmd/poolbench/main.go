// poolbench 是 taskkit 调度池的压测与冒烟工具。
//
// 用法:
//
//	poolbench [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	--verbose      输出调试日志
//
// 命令:
//
//	run            按配置驱动持续负载，结束后输出统计与指标汇总
//	spin           冒烟模式：任务在池内派生子任务并等待其结果
//	help           显示帮助信息
//
// run 命令说明:
//
//	负载参数优先级：命令行参数 > 配置文件 > 内置默认值。
//	配置文件为 YAML 或 JSON（按扩展名识别），结构如下:
//
//	  pool:
//	    name: ingest
//	    workers: 8
//	    spin: 64
//	    park_interval: 1ms
//	  bench:
//	    rate: 10000
//	    duration: 30s
//	    submitters: 4
//	    task_work: 50us
//	    report_interval: 1s
//
//	池统计汇总输出到 stdout，OTel 指标明细输出到 stderr。
//	收到 SIGINT/SIGTERM 时提前结束并照常输出汇总；
//	再次发送信号则强制退出（退出码 130）。
//
// 退出码:
//
//	0: 执行成功
//	1: 执行失败（池构建失败、spin 校验失败等）
//	2: 参数错误（无效数值、未知命令等）
//
// 示例:
//
//	poolbench run                              # 默认参数压测 10s
//	poolbench run -c bench.yaml                # 从配置文件读取负载参数
//	poolbench run -r 50000 -d 1m -k 8          # 命令行覆盖速率/时长/提交者数量
//	poolbench run --report-interval 1s         # 每秒输出一次进度日志
//	poolbench spin -n 256                      # 冒烟验证
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "poolbench",
		Usage:   "taskkit 调度池压测与冒烟工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "输出调试日志",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"TaskKit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			// ExitCoder 错误（如未知命令）的消息需在此输出，
			// 替代 HandleExitCoder 的默认 os.Exit 行为。
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
		Description: `poolbench 对 xpool 调度池施加可控负载，用于回归调度行为
和评估不同参数组合下的吞吐表现。

run 命令以限定速率持续提交任务，到时后输出池统计与 OTel 指标汇总；
spin 命令做一次确定性的冒烟验证：任务在池内派生子任务并等待其结果，
覆盖本地队列提交与 RunPending 执行权捐出两条路径。`,
	}
}

func run() int {
	// 容器环境下按 CPU 配额修正 GOMAXPROCS，
	// worker 数量的默认值取 GOMAXPROCS，需与实际可用核数一致。
	_, _ = maxprocs.Set()

	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置信号处理
	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			// ExitErrHandler 或 flag 解析器已向 stderr 输出错误详情，此处仅设置退出码
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
