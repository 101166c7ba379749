package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"poa/internal/assets"
	brcfg "poa/internal/config"
	"poa/internal/execution"
	"poa/internal/gateway/notifier"
	"poa/internal/logger"
	"poa/internal/registry"
	"poa/internal/scheduler"
	webhookhttp "poa/internal/transport/http/webhook"
)

// App 负责应用级编排：webhook 服务 + 定时资产报告。
type App struct {
	cfg       *brcfg.Config
	registry  *registry.Registry
	exec      *execution.Service
	http      *webhookhttp.Server
	reporter  *assets.Reporter
	notifier  notifier.Notifier
	scheduler *scheduler.AlignedScheduler
	cleanup   func()
	Summary   *StartupSummary
}

func newApp(
	cfg *brcfg.Config,
	reg *registry.Registry,
	exec *execution.Service,
	srv *webhookhttp.Server,
	rep *assets.Reporter,
	notify notifier.Notifier,
	sched *scheduler.AlignedScheduler,
	summary *StartupSummary,
) *App {
	return &App{
		cfg:       cfg,
		registry:  reg,
		exec:      exec,
		http:      srv,
		reporter:  rep,
		notifier:  notify,
		scheduler: sched,
		Summary:   summary,
	}
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	a, cleanup, err := buildAppWithWire(cfg)
	if err != nil {
		return nil, err
	}
	a.cleanup = cleanup
	return a, nil
}

// Run 启动 webhook 服务与资产报告调度，ctx 取消后返回。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("webhook http server error: %w", err)
		}
		return nil
	})
	if a.scheduler != nil {
		group.Go(func() error {
			a.scheduler.Start(ctx, reportTask(a.reporter, a.notifier))
			return nil
		})
	}
	return group.Wait()
}

// Close releases the store. Safe to call twice.
func (a *App) Close() {
	if a == nil || a.cleanup == nil {
		return
	}
	a.cleanup()
	a.cleanup = nil
}

// Reporter exposes the asset reporter for one-shot runs.
func (a *App) Reporter() *assets.Reporter {
	if a == nil {
		return nil
	}
	return a.reporter
}

func (a *App) Notifier() notifier.Notifier {
	if a == nil {
		return nil
	}
	return a.notifier
}

// Orders exposes the execution service (tests and replay).
func (a *App) Orders() *execution.Service {
	if a == nil {
		return nil
	}
	return a.exec
}

// Server returns the webhook server without binding a port.
func (a *App) Server() *webhookhttp.Server {
	if a == nil {
		return nil
	}
	return a.http
}
