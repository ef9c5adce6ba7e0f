package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "MCP_BRIDGE"

	flagConfig        = "config"
	flagListen        = "listen"
	flagPrefix        = "prefix"
	flagMetricsListen = "metrics-listen"
	flagLogLevel      = "log-level"
	flagLogFormat     = "log-format"
	flagServerName    = "server-name"
	flagServerVersion = "server-version"
	flagInstructions  = "instructions"
	flagMaxBodyBytes  = "max-body-bytes"
	flagStdio         = "stdio"
)

type config struct {
	Listen        string `mapstructure:"listen"`
	Prefix        string `mapstructure:"prefix"`
	MetricsListen string `mapstructure:"metrics-listen"`
	LogLevel      string `mapstructure:"log-level"`
	LogFormat     string `mapstructure:"log-format"`
	ServerName    string `mapstructure:"server-name"`
	ServerVersion string `mapstructure:"server-version"`
	Instructions  string `mapstructure:"instructions"`
	MaxBodyBytes  int64  `mapstructure:"max-body-bytes"`
	Stdio         bool   `mapstructure:"stdio"`
}

// bindFlags declares the command line flags on fs and makes them, their MCP_BRIDGE_*
// environment variables and an optional config file visible through v.
func bindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String(flagConfig, "", "Path to a config file (yaml, json or toml)")
	fs.String(flagListen, "127.0.0.1:3003", "Address the SSE and message endpoints listen on")
	fs.String(flagPrefix, "", "Path prefix of every endpoint, e.g. /mcp")
	fs.String(flagMetricsListen, "", "Address the prometheus metrics endpoint listens on; disabled when empty")
	fs.String(flagLogLevel, "info", "Log level: debug, info, warn or error")
	fs.String(flagLogFormat, "text", "Log format: text or json")
	fs.String(flagServerName, "mcp-bridge", "Server name announced by initialize")
	fs.String(flagServerVersion, "1.0.0", "Server version announced by initialize")
	fs.String(flagInstructions, "", "Instructions announced by initialize")
	fs.Int64(flagMaxBodyBytes, 10<<20, "Maximum size of a POSTed message in bytes")
	fs.Bool(flagStdio, false, "Serve a single session on stdin/stdout instead of listening")

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	if path := v.GetString(flagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	var errs []error
	if !c.Stdio && strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.MetricsListen != "" && c.MetricsListen == c.Listen {
		errs = append(errs, fmt.Errorf("metrics-listen must differ from listen (%s)", c.Listen))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.ServerName == "" {
		errs = append(errs, errors.New("server-name must not be empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max-body-bytes must be positive, got %d", c.MaxBodyBytes))
	}
	return errors.Join(errs...)
}

func (c config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c config) logger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
