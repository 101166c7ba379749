package config

import (
	"fmt"
	"strings"
	"time"

	"poa/internal/scheduler"
	"poa/internal/venue"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if strings.TrimSpace(c.Security.Password) == "" {
		return fmt.Errorf("security.password (PASSWORD) cannot be empty")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone invalid: %w", err)
	}
	if err := c.validateVenues(); err != nil {
		return err
	}
	if err := c.validateBrokers(); err != nil {
		return err
	}
	if err := c.Registry.validate(); err != nil {
		return err
	}
	if err := c.Report.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateVenues() error {
	for name := range c.Venues {
		id, err := venue.Parse(name)
		if err != nil || !id.IsCrypto() {
			return fmt.Errorf("venues.%s is not a supported exchange", name)
		}
	}
	return nil
}

func (c *Config) validateBrokers() error {
	seen := make(map[int]bool, len(c.Brokers))
	for _, b := range c.Brokers {
		if b.Index < 1 || b.Index > venue.MaxBrokerIndex {
			return fmt.Errorf("brokers index %d must be within 1..%d", b.Index, venue.MaxBrokerIndex)
		}
		if seen[b.Index] {
			return fmt.Errorf("brokers index %d configured twice", b.Index)
		}
		seen[b.Index] = true
	}
	return nil
}

func (r *RegistryConfig) validate() error {
	if r.InitTimeoutSeconds <= 0 {
		return fmt.Errorf("registry.init_timeout_seconds must be > 0")
	}
	if r.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("registry.http_timeout_seconds must be > 0")
	}
	return nil
}

func (r *ReportConfig) validate() error {
	if _, ok := scheduler.ParseInterval(r.Interval); !ok {
		return fmt.Errorf("report.interval %q invalid, use e.g. 6h, 30m or 1d (minimum 1m)", r.Interval)
	}
	if r.OffsetSeconds < 0 {
		return fmt.Errorf("report.offset_seconds must be >= 0")
	}
	if r.TopN <= 0 {
		return fmt.Errorf("report.top_n must be > 0")
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("report.concurrency must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	if n.Discord.Enabled && strings.TrimSpace(n.Discord.WebhookURL) == "" {
		return fmt.Errorf("discord notification enabled but missing webhook_url")
	}
	return nil
}

// IntervalDuration returns the parsed report interval.
func (r ReportConfig) IntervalDuration() time.Duration {
	d, _ := scheduler.ParseInterval(r.Interval)
	return d
}

// Location returns the configured zone, UTC when it cannot be loaded.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
