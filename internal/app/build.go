package app

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/perftrack/internal/collector"
	"github.com/newthinker/perftrack/internal/collector/alpaca"
	"github.com/newthinker/perftrack/internal/collector/crypto/binance"
	"github.com/newthinker/perftrack/internal/collector/yahoo"
	"github.com/newthinker/perftrack/internal/config"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/notifier"
	"github.com/newthinker/perftrack/internal/notifier/telegram"
	"github.com/newthinker/perftrack/internal/notifier/webhook"
	"github.com/newthinker/perftrack/internal/storage/archive"
	"github.com/newthinker/perftrack/internal/storage/signal"
)

// OpenArchive opens the document archive named by cfg.
func OpenArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	return archive.New(archive.Config{
		Type: cfg.Type,
		Path: cfg.Path,
		S3: archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		},
	})
}

// OpenStore opens the signal store backend. The returned close func is
// never nil.
func OpenStore(ctx context.Context, cfg config.StorageConfig, docs archive.Storage) (signal.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", "document":
		return signal.NewDocumentStore(docs, cfg.Document), noop, nil
	case "memory":
		return signal.NewMemoryStore(), noop, nil
	case "sqlite":
		s, err := signal.NewSQLiteStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := signal.NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, noop, err
		}
		return s, func() error { s.Close(); return nil }, nil
	default:
		return nil, noop, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage backend %q", cfg.Backend))
	}
}

// NewProvider creates the price history provider described by cfg.
func NewProvider(cfg config.ProviderConfig) (collector.Provider, error) {
	switch cfg.Source {
	case "yahoo":
		if cfg.BaseURL != "" {
			return yahoo.NewWithBaseURL(cfg.BaseURL), nil
		}
		return yahoo.New(), nil
	case "binance":
		if cfg.BaseURL != "" {
			return binance.NewWithBaseURL(cfg.BaseURL, cfg.Quote), nil
		}
		return binance.New(cfg.Quote), nil
	case "alpaca":
		return alpaca.New(alpaca.Options{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
			Feed:      cfg.Feed,
		}), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown provider source %q", cfg.Source))
	}
}

// NewProviderRegistry registers one provider per configured universe and
// returns the lookback of each.
func NewProviderRegistry(providers map[string]config.ProviderConfig) (*collector.Registry, map[core.Universe]time.Duration, error) {
	reg := collector.NewRegistry()
	lookback := make(map[core.Universe]time.Duration, len(providers))
	for name, pc := range providers {
		p, err := NewProvider(pc)
		if err != nil {
			return nil, nil, fmt.Errorf("universe %s: %w", name, err)
		}
		u := core.Universe(name)
		reg.Register(u, p)
		if pc.LookbackDays > 0 {
			lookback[u] = time.Duration(pc.LookbackDays) * 24 * time.Hour
		}
	}
	return reg, lookback, nil
}

// NewNotifiers builds and registers one notifier per config entry.
func NewNotifiers(cfgs []notifier.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for _, cfg := range cfgs {
		var n notifier.Notifier
		switch cfg.Type {
		case "webhook":
			n = &webhook.Webhook{}
		case "telegram":
			n = telegram.New("", "")
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier type %q", cfg.Type))
		}
		if err := n.Init(cfg); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return reg, nil
}
