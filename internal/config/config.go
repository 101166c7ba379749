package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the YAML file at path (with its include list), overlays the
// process environment and applies defaults. An empty path loads from the
// environment alone.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
//
// Layers, later wins: included files in order, the file itself, then the
// environment. Defaults only fill keys no file set explicitly.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if strings.TrimSpace(path) != "" {
		layers, err := readLayers(path)
		if err != nil {
			return nil, err
		}
		for _, l := range layers {
			if err := v.MergeConfigMap(l.settings); err != nil {
				return nil, fmt.Errorf("merging config %s: %w", l.file, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	set := make(keySet)
	for _, k := range v.AllKeys() {
		set.mark(k)
	}

	applyEnv(&cfg, lookup)
	cfg.applyDefaults(set)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type layer struct {
	file     string
	settings map[string]any
}

// readLayers reads path and, depth first, every file it includes. Included
// files come before the file naming them; a file included twice is read once.
func readLayers(path string) ([]layer, error) {
	var (
		out      []layer
		done     = make(map[string]bool)
		visiting = make(map[string]bool)
	)
	var walk func(string) error
	walk = func(p string) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if visiting[abs] {
			return fmt.Errorf("include cycle detected: %s", abs)
		}
		if done[abs] {
			return nil
		}
		visiting[abs] = true

		v := viper.New()
		v.SetConfigFile(abs)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file failed (%s): %w", abs, err)
		}
		for _, inc := range v.GetStringSlice("include") {
			if inc = strings.TrimSpace(inc); inc == "" {
				continue
			}
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(abs), inc)
			}
			if err := walk(inc); err != nil {
				return err
			}
		}

		delete(visiting, abs)
		done[abs] = true
		settings := v.AllSettings()
		delete(settings, "include")
		out = append(out, layer{file: abs, settings: settings})
		return nil
	}
	if err := walk(path); err != nil {
		return nil, err
	}
	return out, nil
}
