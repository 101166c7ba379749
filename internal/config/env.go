package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"poa/internal/venue"
)

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped and variables already exported win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// applyEnv overlays the deployment environment variables onto c:
//
//	PASSWORD, WHITELIST, PORT, DISCORD_WEBHOOK_URL, EXIM_AUTH_KEY
//	<VENUE>_KEY, <VENUE>_SECRET, <VENUE>_PASSPHRASE
//	KIS<N>_KEY, KIS<N>_SECRET, KIS<N>_ACCOUNT_NUMBER, KIS<N>_ACCOUNT_CODE  (N = 1..50)
//
// A set variable replaces the file value; an empty one is ignored.
func applyEnv(c *Config, lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PASSWORD"); ok {
		c.Security.Password = v
	}
	if v, ok := get("WHITELIST"); ok {
		c.Security.Whitelist = parseList(v)
	}
	if v, ok := get("PORT"); ok {
		c.App.HTTPAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := get("DISCORD_WEBHOOK_URL"); ok {
		c.Notify.Discord.WebhookURL = v
		c.Notify.Discord.Enabled = true
	}
	if v, ok := get("EXIM_AUTH_KEY"); ok {
		c.FX.EximAuthKey = v
	}

	for _, id := range venue.Crypto {
		prefix := string(id) + "_"
		name := strings.ToLower(string(id))
		vc := c.Venues[name]
		changed := false
		if v, ok := get(prefix + "KEY"); ok {
			vc.Key, changed = v, true
		}
		if v, ok := get(prefix + "SECRET"); ok {
			vc.Secret, changed = v, true
		}
		if v, ok := get(prefix + "PASSPHRASE"); ok {
			vc.Passphrase, changed = v, true
		}
		if changed {
			if c.Venues == nil {
				c.Venues = make(map[string]VenueConfig)
			}
			c.Venues[name] = vc
		}
	}

	brokers := make(map[int]BrokerConfig, len(c.Brokers))
	for _, b := range c.Brokers {
		brokers[b.Index] = b
	}
	anyEnv := false
	for n := 1; n <= venue.MaxBrokerIndex; n++ {
		prefix := "KIS" + strconv.Itoa(n) + "_"
		b := brokers[n]
		changed := false
		if v, ok := get(prefix + "KEY"); ok {
			b.Key, changed = v, true
		}
		if v, ok := get(prefix + "SECRET"); ok {
			b.Secret, changed = v, true
		}
		if v, ok := get(prefix + "ACCOUNT_NUMBER"); ok {
			b.AccountNumber, changed = v, true
		}
		if v, ok := get(prefix + "ACCOUNT_CODE"); ok {
			b.AccountCode, changed = v, true
		}
		if changed {
			b.Index = n
			brokers[n] = b
			anyEnv = true
		}
	}
	if !anyEnv {
		return
	}
	idx := make([]int, 0, len(brokers))
	for n := range brokers {
		idx = append(idx, n)
	}
	sort.Ints(idx)
	out := make([]BrokerConfig, 0, len(idx))
	for _, n := range idx {
		out = append(out, brokers[n])
	}
	c.Brokers = out
}

// parseList accepts a JSON array or a comma separated list.
func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return trimList(arr)
		}
	}
	return trimList(strings.Split(raw, ","))
}
