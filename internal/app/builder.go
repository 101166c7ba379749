package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poa/internal/assets"
	brcfg "poa/internal/config"
	"poa/internal/execution"
	"poa/internal/fx"
	"poa/internal/gateway/binance"
	"poa/internal/gateway/cryptorest"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/kis"
	"poa/internal/gateway/notifier"
	"poa/internal/logger"
	"poa/internal/order"
	"poa/internal/registry"
	"poa/internal/scheduler"
	"poa/internal/store/gormstore"
	webhookhttp "poa/internal/transport/http/webhook"
	"poa/internal/venue"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func provideStore(cfg *brcfg.Config) (*gormstore.GormStore, func(), error) {
	st, err := gormstore.NewGormStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Warnf("关闭数据库失败: %v", err)
		}
	}, nil
}

// venueSettings maps the indexed credential config onto the adapter factory.
func venueSettings(cfg *brcfg.Config, st *gormstore.GormStore) registry.Settings {
	s := registry.Settings{
		Crypto:      make(map[venue.ID]registry.CryptoVenue, len(cfg.Venues)),
		Brokers:     make(map[int]kis.Config, len(cfg.Brokers)),
		HTTPTimeout: seconds(cfg.Registry.HTTPTimeoutSeconds),
	}
	if st != nil {
		s.Tokens = st
	}
	for name, v := range cfg.Venues {
		id, err := venue.Parse(name)
		if err != nil || !id.IsCrypto() {
			continue
		}
		s.Crypto[id] = registry.CryptoVenue{
			Credentials: cryptorest.Credentials{Key: v.Key, Secret: v.Secret, Passphrase: v.Passphrase},
			BaseURL:     v.BaseURL,
			RatePerSec:  v.RatePerSec,
		}
		if id == venue.Binance {
			s.Binance = binance.Config{FuturesBaseURL: v.FuturesBaseURL}
		}
	}
	for _, b := range cfg.Brokers {
		s.Brokers[b.Index] = kis.Config{
			Index:         b.Index,
			AppKey:        b.Key,
			AppSecret:     b.Secret,
			AccountNumber: b.AccountNumber,
			AccountCode:   b.AccountCode,
			BaseURL:       b.BaseURL,
			RatePerSec:    b.RatePerSec,
		}
	}
	return s
}

func provideRegistry(cfg *brcfg.Config, st *gormstore.GormStore) *registry.Registry {
	return registry.New(registry.NewFactory(venueSettings(cfg, st)),
		registry.WithInitTimeout(seconds(cfg.Registry.InitTimeoutSeconds)),
		registry.WithBreaker(exchange.BreakerConfig{
			Threshold: cfg.Registry.BreakerThreshold,
			Cooldown:  seconds(cfg.Registry.BreakerCooldownSeconds),
		}),
	)
}

func provideRates(cfg *brcfg.Config) *fx.Resolver {
	return fx.NewResolver(fx.Config{
		EximAuthKey: cfg.FX.EximAuthKey,
		EximURL:     cfg.FX.EximURL,
		NaverURL:    cfg.FX.NaverURL,
		Fallback:    decimal.NewFromFloat(cfg.FX.Fallback),
		CacheTTL:    seconds(cfg.FX.CacheTTLSeconds),
		Timeout:     seconds(cfg.FX.TimeoutSeconds),
	})
}

func provideAggregator(cfg *brcfg.Config, reg *registry.Registry, rates *fx.Resolver) *assets.Aggregator {
	return assets.NewAggregator(reg, rates, assets.Config{
		TopN:         cfg.Report.TopN,
		VenueTimeout: seconds(cfg.Report.VenueTimeoutSeconds),
		Concurrency:  cfg.Report.Concurrency,
	})
}

func provideReporter(agg *assets.Aggregator, reg *registry.Registry) *assets.Reporter {
	return assets.NewReporter(agg, reg)
}

func provideNotifier(cfg *brcfg.Config) notifier.Notifier {
	var out notifier.Multi
	if tg := cfg.Notify.Telegram; tg.Enabled {
		out = append(out, notifier.NewTelegram(tg.BotToken, tg.ChatID))
	}
	if dc := cfg.Notify.Discord; dc.Enabled {
		out = append(out, notifier.NewDiscord(dc.WebhookURL))
	}
	if len(out) == 0 {
		return notifier.Nop{}
	}
	return out
}

func provideNormalizer(cfg *brcfg.Config) *order.Normalizer {
	return order.NewNormalizer(cfg.Security.Password)
}

func provideExecution(n *order.Normalizer, reg *registry.Registry, st *gormstore.GormStore, notify notifier.Notifier) *execution.Service {
	opts := execution.Options{Notifier: notify}
	if st != nil {
		opts.Journal = st
	}
	return execution.NewService(n, reg, opts)
}

func provideHTTPServer(cfg *brcfg.Config, exec *execution.Service, rep *assets.Reporter, n *order.Normalizer) (*webhookhttp.Server, error) {
	return webhookhttp.NewServer(webhookhttp.ServerConfig{
		Addr:           cfg.App.HTTPAddr,
		Orders:         exec,
		Assets:         rep,
		Auth:           n,
		Whitelist:      cfg.Security.Whitelist,
		TrustedProxies: cfg.Security.TrustedProxies,
	})
}

func provideScheduler(cfg *brcfg.Config) *scheduler.AlignedScheduler {
	if !cfg.Report.Enabled {
		return nil
	}
	s := scheduler.NewAlignedScheduler(cfg.Report.IntervalDuration(), seconds(cfg.Report.OffsetSeconds))
	s.Name = "asset-report"
	s.Location = cfg.App.Location()
	s.RunImmediately = cfg.Report.RunImmediately
	return s
}

func provideSummary(cfg *brcfg.Config, reg *registry.Registry, notify notifier.Notifier) *StartupSummary {
	s := &StartupSummary{
		HTTPAddr:  cfg.App.HTTPAddr,
		Whitelist: cfg.Security.Whitelist,
		Venues:    reg.Configured(),
		StorePath: cfg.Store.Path,
		Notify:    describeNotifier(cfg),
	}
	if cfg.Report.Enabled {
		s.Report = fmt.Sprintf("every %s (%s) top_n=%d", cfg.Report.Interval, cfg.App.Timezone, cfg.Report.TopN)
	}
	return s
}

func describeNotifier(cfg *brcfg.Config) string {
	var parts []string
	if cfg.Notify.Telegram.Enabled {
		parts = append(parts, "telegram")
	}
	if cfg.Notify.Discord.Enabled {
		parts = append(parts, "discord")
	}
	return strings.Join(parts, ", ")
}

// reportTask runs one aggregation and pushes it to every channel.
func reportTask(rep *assets.Reporter, notify notifier.Notifier) func(context.Context) {
	return func(ctx context.Context) {
		report := rep.Report(ctx)
		logger.Infof("资产报告完成: %d 个交易所, %d 个失败", len(report.Entries), len(report.Failures))
		if err := notify.Notify(ctx, notifier.AssetReport(report)); err != nil {
			logger.Warnf("资产报告推送失败: %v", err)
		}
	}
}
