// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads Gatehouse configuration from defaults, an optional
// YAML config file, and command-line flags, in that order of precedence
// (flags win).
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values.
const (
	DefaultHTTPAddr    = "localhost:8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultControlAddr = "127.0.0.1:9101"
	DefaultLogFormat   = "json"
	DefaultCookieName  = "gatehouse_session"
)

// Config holds the runtime configuration for the Gatehouse server.
type Config struct {
	// HTTPAddr is the listen address for the web server.
	HTTPAddr string `koanf:"http_addr"`

	// MetricsAddr is the listen address for the metrics/health server.
	// Empty disables the observability server.
	MetricsAddr string `koanf:"metrics_addr"`

	// ControlAddr is the listen address for the admin control gRPC server.
	// Empty disables the control server.
	ControlAddr string `koanf:"control_addr"`

	// DatabaseURL is the PostgreSQL connection string. Falls back to the
	// DATABASE_URL environment variable when not set in file or flags.
	DatabaseURL string `koanf:"database_url"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`

	// CookieName is the session cookie name.
	CookieName string `koanf:"cookie_name"`

	// CookieSecure marks the session cookie Secure (HTTPS-only deployments).
	CookieSecure bool `koanf:"cookie_secure"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		HTTPAddr:    DefaultHTTPAddr,
		MetricsAddr: DefaultMetricsAddr,
		ControlAddr: DefaultControlAddr,
		LogFormat:   DefaultLogFormat,
		CookieName:  DefaultCookieName,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the given flag set (nil to skip flag overrides).
// DATABASE_URL from the environment fills DatabaseURL when nothing else set it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Flag names use dashes; config keys use underscores. Passing k lets
		// unchanged flag defaults yield to values already loaded from file.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return cfg, nil
}

// Validate checks that the configuration is usable for serving.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required (set DATABASE_URL or configure it)")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.CookieName == "" {
		return oops.Code("CONFIG_INVALID").Errorf("cookie_name is required")
	}
	return nil
}
