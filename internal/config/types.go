package config

import "strings"

// Config 是 POA 的主配置载体。
type Config struct {
	App      AppConfig              `toml:"app"`
	Security SecurityConfig         `toml:"security"`
	Venues   map[string]VenueConfig `toml:"venues"`
	Brokers  []BrokerConfig         `toml:"brokers"`
	Registry RegistryConfig         `toml:"registry"`
	FX       FXConfig               `toml:"fx"`
	Report   ReportConfig           `toml:"report"`
	Notify   NotifyConfig           `toml:"notify"`
	Store    StoreConfig            `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	// Timezone drives report alignment and timestamps.
	Timezone string `toml:"timezone"`
}

// SecurityConfig guards the webhook.
type SecurityConfig struct {
	Password       string   `toml:"password"`
	Whitelist      []string `toml:"whitelist"`
	TrustedProxies []string `toml:"trusted_proxies"`
}

// VenueConfig 是单个加密货币交易所的凭证，键为小写交易所名（upbit、okx…）。
type VenueConfig struct {
	Key            string  `toml:"key"`
	Secret         string  `toml:"secret"`
	Passphrase     string  `toml:"passphrase"`
	BaseURL        string  `toml:"base_url"`
	FuturesBaseURL string  `toml:"futures_base_url"`
	RatePerSec     float64 `toml:"rate_per_sec"`
}

func (v VenueConfig) hasCredentials() bool {
	return strings.TrimSpace(v.Key) != "" || strings.TrimSpace(v.Secret) != ""
}

// BrokerConfig is one brokerage sub-account, addressed as BROKER<Index>.
type BrokerConfig struct {
	Index         int     `toml:"index"`
	Key           string  `toml:"key"`
	Secret        string  `toml:"secret"`
	AccountNumber string  `toml:"account_number"`
	AccountCode   string  `toml:"account_code"`
	BaseURL       string  `toml:"base_url"`
	RatePerSec    float64 `toml:"rate_per_sec"`
}

type RegistryConfig struct {
	InitTimeoutSeconds     int `toml:"init_timeout_seconds"`
	HTTPTimeoutSeconds     int `toml:"http_timeout_seconds"`
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

type FXConfig struct {
	EximAuthKey     string  `toml:"exim_auth_key"`
	EximURL         string  `toml:"exim_url"`
	NaverURL        string  `toml:"naver_url"`
	Fallback        float64 `toml:"fallback"`
	CacheTTLSeconds int     `toml:"cache_ttl_seconds"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// ReportConfig 控制定时资产报告。
type ReportConfig struct {
	Enabled             bool   `toml:"enabled"`
	Interval            string `toml:"interval"`
	OffsetSeconds       int    `toml:"offset_seconds"`
	RunImmediately      bool   `toml:"run_immediately"`
	TopN                int    `toml:"top_n"`
	VenueTimeoutSeconds int    `toml:"venue_timeout_seconds"`
	Concurrency         int    `toml:"concurrency"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

type StoreConfig struct {
	// Path of the sqlite file holding brokerage tokens and the order journal.
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
