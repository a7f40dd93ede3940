package xrun

import "context"

// Service 定义可管理的服务接口。
//
// 实现此接口的服务可以使用 RunServices 统一管理。
type Service interface {
	// Run 启动服务，阻塞直到 ctx 被取消或发生错误。
	// 当 ctx 被取消时，应该优雅关闭并返回。
	Run(ctx context.Context) error
}

// ServiceFunc 将函数转换为 Service 接口。
type ServiceFunc func(ctx context.Context) error

// Run 实现 Service 接口。
func (f ServiceFunc) Run(ctx context.Context) error {
	if f == nil {
		return ErrNilFunc
	}
	return f(ctx)
}

// addServices 将服务列表注册到 Group，nil service 返回 ErrNilService。
func addServices(g *Group, services []Service) {
	for _, svc := range services {
		if svc == nil {
			g.Go(func(ctx context.Context) error { return ErrNilService })
			continue
		}
		g.Go(svc.Run)
	}
}

// RunServices 运行多个 Service，监听信号并协调关闭。
//
// 普通函数可通过 ServiceFunc 适配为 Service 接口：
//
//	svc := xrun.ServiceFunc(func(ctx context.Context) error { ... })
//
// 示例：
//
//	err := xrun.RunServices(ctx,
//	    loadProducer,
//	    statsReporter,
//	)
func RunServices(ctx context.Context, services ...Service) error {
	return runGroup(ctx, nil, func(g *Group) {
		addServices(g, services)
	})
}

// RunServicesWithOptions 与 RunServices 相同，但支持配置选项。
//
// 示例：
//
//	err := xrun.RunServicesWithOptions(ctx, []xrun.Option{
//	    xrun.WithName("poolbench"),
//	    xrun.WithSignals([]os.Signal{syscall.SIGINT, syscall.SIGTERM}),
//	}, loadProducer, statsReporter)
func RunServicesWithOptions(ctx context.Context, opts []Option, services ...Service) error {
	return runGroup(ctx, opts, func(g *Group) {
		addServices(g, services)
	})
}
