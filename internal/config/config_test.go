package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFromEnvOnly(t *testing.T) {
	cfg, err := LoadWithEnv("", envOf(map[string]string{
		"PASSWORD":            "pw",
		"PORT":                "8080",
		"WHITELIST":           `["1.2.3.4", "127.0.0.1"]`,
		"DISCORD_WEBHOOK_URL": "https://discord.example/hook",
		"UPBIT_KEY":           "uk",
		"UPBIT_SECRET":        "us",
		"OKX_KEY":             "ok",
		"OKX_SECRET":          "os",
		"OKX_PASSPHRASE":      "op",
		"KIS2_KEY":            "k2",
		"KIS2_SECRET":         "s2",
		"KIS2_ACCOUNT_NUMBER": "12345678",
		"KIS2_ACCOUNT_CODE":   "01",
		"KIS7_KEY":            "k7",
	}))
	require.NoError(t, err)

	assert.Equal(t, "pw", cfg.Security.Password)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, []string{"1.2.3.4", "127.0.0.1"}, cfg.Security.Whitelist)
	assert.True(t, cfg.Notify.Discord.Enabled)
	assert.Equal(t, VenueConfig{Key: "uk", Secret: "us"}, cfg.Venues["upbit"])
	assert.Equal(t, "op", cfg.Venues["okx"].Passphrase)

	require.Len(t, cfg.Brokers, 2)
	assert.Equal(t, 2, cfg.Brokers[0].Index)
	assert.Equal(t, "01", cfg.Brokers[0].AccountCode)
	assert.Equal(t, 7, cfg.Brokers[1].Index)
	assert.Empty(t, cfg.Brokers[1].Secret)

	assert.Equal(t, "6h", cfg.Report.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Report.IntervalDuration())
	assert.True(t, cfg.Report.Enabled)
	assert.Equal(t, 5, cfg.Report.TopN)
	assert.Equal(t, 16, cfg.Report.Concurrency)
	assert.Equal(t, float64(1350), cfg.FX.Fallback)
	assert.Equal(t, "Asia/Seoul", cfg.App.Timezone)
}

func TestLoadRequiresPassword(t *testing.T) {
	_, err := LoadWithEnv("", envOf(nil))
	assert.ErrorContains(t, err, "security.password")
}

func TestLoadFileWithIncludeAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "venues.yaml", `
venues:
  BYBIT:
    key: fk
    secret: fs
  bithumb:
    key: ""
brokers:
  - index: 3
    key: k3
    secret: s3
    account_number: "87654321"
    account_code: "22"
`)
	main := writeFile(t, dir, "poa.yaml", `
include:
  - venues.yaml
app:
  log_level: debug
  timezone: UTC
security:
  password: from-file
  whitelist: []
report:
  enabled: false
  interval: 30m
  top_n: 3
`)
	cfg, err := LoadWithEnv(main, envOf(map[string]string{"BYBIT_KEY": "env-key", "KIS3_SECRET": "env-s3"}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "from-file", cfg.Security.Password)
	assert.Empty(t, cfg.Security.Whitelist, "explicit empty whitelist is kept")
	assert.False(t, cfg.Report.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Report.IntervalDuration())
	assert.Equal(t, 3, cfg.Report.TopN)

	assert.Equal(t, "env-key", cfg.Venues["bybit"].Key)
	assert.Equal(t, "fs", cfg.Venues["bybit"].Secret)
	_, ok := cfg.Venues["bithumb"]
	assert.False(t, ok, "venue without credentials is dropped")

	require.Len(t, cfg.Brokers, 1)
	assert.Equal(t, "env-s3", cfg.Brokers[0].Secret)
	assert.Equal(t, "87654321", cfg.Brokers[0].AccountNumber)
}

func TestDefaultWhitelist(t *testing.T) {
	cfg, err := LoadWithEnv("", envOf(map[string]string{"PASSWORD": "pw"}))
	require.NoError(t, err)
	assert.Equal(t, DefaultWhitelist, cfg.Security.Whitelist)
}

func TestValidationErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown venue": "security:\n  password: x\nvenues:\n  ftx:\n    key: a\n",
		"broker range":  "security:\n  password: x\nbrokers:\n  - index: 51\n    key: a\n",
		"dup broker":    "security:\n  password: x\nbrokers:\n  - index: 1\n    key: a\n  - index: 1\n    key: b\n",
		"bad interval":  "security:\n  password: x\nreport:\n  interval: 6x\n",
		"telegram":      "security:\n  password: x\nnotify:\n  telegram:\n    enabled: true\n",
		"timezone":      "security:\n  password: x\napp:\n  timezone: Mars/Olympus\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := writeFile(t, dir, "c.yaml", body)
			_, err := LoadWithEnv(p, envOf(nil))
			assert.Error(t, err)
		})
	}
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := LoadWithEnv(filepath.Join(dir, "a.yaml"), envOf(nil))
	assert.ErrorContains(t, err, "include cycle")
}

func TestIncludeLayering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.yaml", "app:\n  log_level: debug\n  timezone: UTC\nreport:\n  top_n: 2\n")
	writeFile(t, dir, "a.yaml", "include: [common.yaml]\nreport:\n  top_n: 3\n")
	writeFile(t, dir, "b.yaml", "include: [common.yaml]\nreport:\n  concurrency: 9\n")
	main := writeFile(t, dir, "main.yaml", "include: [a.yaml, b.yaml]\nsecurity:\n  password: x\napp:\n  log_level: warn\n")

	layers, err := readLayers(main)
	require.NoError(t, err)
	var names []string
	for _, l := range layers {
		names = append(names, filepath.Base(l.file))
		assert.NotContains(t, l.settings, "include")
	}
	assert.Equal(t, []string{"common.yaml", "a.yaml", "b.yaml", "main.yaml"}, names)

	cfg, err := LoadWithEnv(main, envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, "UTC", cfg.App.Timezone)
	assert.Equal(t, 3, cfg.Report.TopN)
	assert.Equal(t, 9, cfg.Report.Concurrency)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a , b ,"))
	assert.Equal(t, []string{"x"}, parseList(`["x", ""]`))
}

func TestLoadDotEnvSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", "POA_TEST_DOTENV=hello\n")
	t.Cleanup(func() { os.Unsetenv("POA_TEST_DOTENV") })
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), p))
	assert.Equal(t, "hello", os.Getenv("POA_TEST_DOTENV"))
}
