package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/notifier"
	"github.com/newthinker/perftrack/internal/router"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Archive    ArchiveConfig             `mapstructure:"archive"`
	Bars       BarsConfig                `mapstructure:"bars"`
	Summary    SummaryConfig             `mapstructure:"summary"`
	Simulation SimulationConfig          `mapstructure:"simulation"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Groups     []core.Group              `mapstructure:"groups"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Notifiers  []notifier.Config         `mapstructure:"notifiers"`
	Notify     router.Config             `mapstructure:"notify"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig selects the signal store backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`  // "document", "sqlite", "postgres" or "memory"
	Document string         `mapstructure:"document"` // archive key of the signals log
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig holds the blob storage where documents are kept.
type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// BarsConfig controls the local Parquet bar archive.
type BarsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type SummaryConfig struct {
	Path string `mapstructure:"path"` // archive key of the performance document
}

type SimulationConfig struct {
	EntrySlippage  float64 `mapstructure:"entry_slippage"`
	ExitSlippage   float64 `mapstructure:"exit_slippage"`
	MaxHoldingBars int     `mapstructure:"max_holding_bars"`
}

// ProviderConfig configures the price history source of one universe.
type ProviderConfig struct {
	Source       string `mapstructure:"source"` // "yahoo", "alpaca" or "binance"
	LookbackDays int    `mapstructure:"lookback_days"`
	Quote        string `mapstructure:"quote"` // binance quote asset
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	APISecret    string `mapstructure:"api_secret"`
	Feed         string `mapstructure:"feed"` // alpaca data feed, e.g. "iex"
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	Textfile string `mapstructure:"textfile"` // node-exporter textfile written after each run
}

// Load reads configuration from file and fills unset values from Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if len(cfg.Groups) == 0 {
		cfg.Groups = DefaultGroups()
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.document", d.Storage.Document)
	v.SetDefault("storage.sqlite.path", d.Storage.SQLite.Path)
	v.SetDefault("storage.postgres.max_conns", d.Storage.Postgres.MaxConns)
	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("bars.dir", d.Bars.Dir)
	v.SetDefault("summary.path", d.Summary.Path)
	v.SetDefault("simulation.entry_slippage", d.Simulation.EntrySlippage)
	v.SetDefault("simulation.exit_slippage", d.Simulation.ExitSlippage)
	v.SetDefault("simulation.max_holding_bars", d.Simulation.MaxHoldingBars)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("notify.notify_on", []string{string(core.StatusActive), string(core.StatusClosed)})
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:  "document",
			Document: "signals_log.json",
			SQLite:   SQLiteConfig{Path: "data/signals.db"},
			Postgres: PostgresConfig{MaxConns: 4},
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "data",
		},
		Bars: BarsConfig{
			Dir: "data/bars",
		},
		Summary: SummaryConfig{
			Path: "performance_summary.json",
		},
		Simulation: SimulationConfig{
			EntrySlippage:  1.001,
			ExitSlippage:   0.999,
			MaxHoldingBars: 10,
		},
		Providers: DefaultProviders(),
		Groups:    DefaultGroups(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Notify: router.DefaultConfig(),
	}
}

// DefaultProviders returns yahoo for sp500 and binance for crypto.
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		string(core.UniverseSP500):  {Source: "yahoo", LookbackDays: 730},
		string(core.UniverseCrypto): {Source: "binance", LookbackDays: 200, Quote: "USDT"},
	}
}

// DefaultGroups returns the four groups reported by the dashboard.
func DefaultGroups() []core.Group {
	return []core.Group{
		{Universe: core.UniverseSP500, Strategy: "phoenix"},
		{Universe: core.UniverseSP500, Strategy: "pullback"},
		{Universe: core.UniverseCrypto, Strategy: "phoenix"},
		{Universe: core.UniverseCrypto, Strategy: "pullback"},
	}
}

// HasGroup reports whether g is one of the configured groups.
func (c *Config) HasGroup(g core.Group) bool {
	for _, cg := range c.Groups {
		if cg == g {
			return true
		}
	}
	return false
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Storage.Backend {
	case "document", "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.sqlite.path required when backend is sqlite"))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.postgres.dsn required when backend is postgres"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Archive.Type {
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive.path required for localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive.s3.bucket required for s3"))
		}
	case "memory":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	if c.Summary.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("summary.path required"))
	}
	if c.Bars.Enabled && c.Bars.Dir == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("bars.dir required when bars are enabled"))
	}

	// Simulation validation
	if c.Simulation.EntrySlippage <= 0 || c.Simulation.ExitSlippage <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage factors must be positive, got %f/%f",
				c.Simulation.EntrySlippage, c.Simulation.ExitSlippage))
	}
	if c.Simulation.MaxHoldingBars < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_holding_bars must be at least 1, got %d", c.Simulation.MaxHoldingBars))
	}

	if len(c.Groups) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one group required"))
	}
	for _, g := range c.Groups {
		if g.Universe == "" || g.Strategy == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("group %q incomplete", g.Key()))
		}
		if _, ok := c.Providers[string(g.Universe)]; !ok {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("no provider configured for universe %s", g.Universe))
		}
	}

	for universe, p := range c.Providers {
		switch p.Source {
		case "yahoo", "binance":
		case "alpaca":
			if p.APIKey == "" || p.APISecret == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("alpaca api_key and api_secret required for universe %s", universe))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown provider source %q for universe %s", p.Source, universe))
		}
		if p.LookbackDays < 1 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("lookback_days must be positive for universe %s", universe))
		}
	}

	for _, st := range c.Notify.NotifyOn {
		switch st {
		case core.StatusActive, core.StatusClosed:
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("notify.notify_on: unsupported status %q", st))
		}
	}
	for i, n := range c.Notifiers {
		switch n.Type {
		case "webhook":
			if n.StringParam("url") == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("notifiers[%d]: webhook url required", i))
			}
		case "telegram":
			if n.StringParam("bot_token") == "" || n.StringParam("chat_id") == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("notifiers[%d]: telegram bot_token and chat_id required", i))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("notifiers[%d]: unknown type %q", i, n.Type))
		}
	}

	return nil
}
