// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package config loads service configuration from an optional YAML file
// with command-line flag overrides.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Store backend names accepted by Config.Store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the runtime configuration for the keyfold service.
type Config struct {
	Listen        string `koanf:"listen"`
	MetricsListen string `koanf:"metrics-listen"`
	Store         string `koanf:"store"`
	DatabaseURL   string `koanf:"database-url"`
	LogFormat     string `koanf:"log-format"`
}

// Load builds a Config from the optional YAML file at path, overlaid
// with values from flags. Flags changed on the command line win over the
// file; flag defaults fill in anything neither source sets.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// posflag only overrides file values for flags that were
		// actually set, so file values survive untouched defaults.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen address must not be empty")
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").
				Errorf("database-url is required when store is %q", StorePostgres)
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("store", c.Store).
			Errorf("store must be %q or %q", StoreMemory, StorePostgres)
	}

	switch c.LogFormat {
	case "", "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log-format", c.LogFormat).
			Errorf(`log-format must be "json" or "text"`)
	}

	return nil
}
