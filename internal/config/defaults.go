package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv          = "prod"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":8000"
	defaultAppLogPath      = "logs/poa.log"
	defaultAppTimezone     = "Asia/Seoul"
	defaultInitTimeout     = 20
	defaultHTTPTimeout     = 15
	defaultBreakerTrip     = 5
	defaultBreakerCooldown = 30
	defaultFXFallback      = 1350
	defaultFXCacheTTL      = 600
	defaultFXTimeout       = 10
	defaultReportInterval  = "6h"
	defaultReportTopN      = 5
	defaultReportTimeout   = 30
	defaultReportWorkers   = 16
	defaultStorePath       = "data/poa.db"
)

// DefaultWhitelist is TradingView's published alert source addresses.
var DefaultWhitelist = []string{
	"52.89.214.238",
	"34.212.75.30",
	"54.218.53.128",
	"52.32.178.7",
	"127.0.0.1",
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Security.applyDefaults(keys)
	c.Registry.applyDefaults(keys)
	c.FX.applyDefaults(keys)
	c.Report.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.normalizeVenues()
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.timezone", &a.Timezone, defaultAppTimezone),
	)
}

func (s *SecurityConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys, fieldDefault{
		key:   "security.whitelist",
		need:  func() bool { return len(s.Whitelist) == 0 },
		apply: func() { s.Whitelist = append([]string(nil), DefaultWhitelist...) },
	})
	s.Whitelist = trimList(s.Whitelist)
	s.TrustedProxies = trimList(s.TrustedProxies)
}

func (r *RegistryConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("registry.init_timeout_seconds", &r.InitTimeoutSeconds, defaultInitTimeout),
		intFieldDefault("registry.http_timeout_seconds", &r.HTTPTimeoutSeconds, defaultHTTPTimeout),
		intFieldDefault("registry.breaker_threshold", &r.BreakerThreshold, defaultBreakerTrip),
		intFieldDefault("registry.breaker_cooldown_seconds", &r.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (f *FXConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "fx.fallback",
			need:  func() bool { return f.Fallback <= 0 },
			apply: func() { f.Fallback = defaultFXFallback },
		},
		intFieldDefault("fx.cache_ttl_seconds", &f.CacheTTLSeconds, defaultFXCacheTTL),
		intFieldDefault("fx.timeout_seconds", &f.TimeoutSeconds, defaultFXTimeout),
	)
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("report.enabled", &r.Enabled, true),
		stringFieldDefault("report.interval", &r.Interval, defaultReportInterval),
		intFieldDefault("report.top_n", &r.TopN, defaultReportTopN),
		intFieldDefault("report.venue_timeout_seconds", &r.VenueTimeoutSeconds, defaultReportTimeout),
		intFieldDefault("report.concurrency", &r.Concurrency, defaultReportWorkers),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultStorePath))
}

// normalizeVenues lower-cases venue keys and drops entries without credentials.
func (c *Config) normalizeVenues() {
	if len(c.Venues) == 0 {
		return
	}
	out := make(map[string]VenueConfig, len(c.Venues))
	for name, v := range c.Venues {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || !v.hasCredentials() {
			continue
		}
		v.Key = strings.TrimSpace(v.Key)
		v.Secret = strings.TrimSpace(v.Secret)
		v.Passphrase = strings.TrimSpace(v.Passphrase)
		out[name] = v
	}
	c.Venues = out
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func trimList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
