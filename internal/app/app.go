package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/backtest"
	"github.com/newthinker/perftrack/internal/collector"
	"github.com/newthinker/perftrack/internal/config"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/metrics"
	"github.com/newthinker/perftrack/internal/router"
	"github.com/newthinker/perftrack/internal/storage/archive"
	"github.com/newthinker/perftrack/internal/storage/bars"
	"github.com/newthinker/perftrack/internal/storage/signal"
)

// App owns the storage, providers and run driver built from a config
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
	archive archive.Storage
	store   signal.Store
	history *collector.History
	runner  *Runner
	closers []func() error

	runMu sync.Mutex // serializes runs

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	lastReport *Report
	lastErr    error
}

// New builds an App from cfg. reg may be nil when metrics are not exported.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg *metrics.Registry) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	docs, err := OpenArchive(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	store, closeStore, err := OpenStore(ctx, cfg.Storage, docs)
	if err != nil {
		return nil, fmt.Errorf("opening signal store: %w", err)
	}

	providers, lookback, err := NewProviderRegistry(cfg.Providers)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	opts := collector.HistoryOptions{
		Lookback: lookback,
		Logger:   logger,
	}
	if reg != nil {
		opts.Metrics = reg
	}
	if cfg.Bars.Enabled {
		barArchive, err := bars.NewArchive(cfg.Bars.Dir)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("opening bar archive: %w", err)
		}
		opts.Archive = barArchive
	}
	history := collector.NewHistory(providers, opts)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: reg,
		archive: docs,
		store:   store,
		history: history,
		closers: []func() error{closeStore},
	}

	runnerCfg := RunnerConfig{
		Store: store,
		Bars:  history,
		Simulator: backtest.NewSimulator(backtest.Params{
			EntrySlippage:  cfg.Simulation.EntrySlippage,
			ExitSlippage:   cfg.Simulation.ExitSlippage,
			MaxHoldingBars: cfg.Simulation.MaxHoldingBars,
		}),
		Groups:      cfg.Groups,
		Archive:     docs,
		SummaryPath: cfg.Summary.Path,
		Logger:      logger,
	}
	if reg != nil {
		runnerCfg.Metrics = reg
	}
	if len(cfg.Notifiers) > 0 {
		notifiers, err := NewNotifiers(cfg.Notifiers)
		if err != nil {
			_ = closeStore()
			return nil, err
		}
		runnerCfg.Notifier = router.New(cfg.Notify, notifiers, logger)
	}
	a.runner = NewRunner(runnerCfg)

	return a, nil
}

// Store returns the signal store.
func (a *App) Store() signal.Store { return a.store }

// Archive returns the document archive holding the summary.
func (a *App) Archive() archive.Storage { return a.archive }

// Runner returns the run driver.
func (a *App) Runner() *Runner { return a.runner }

// Slippage returns the friction factors recorded on new signals.
func (a *App) Slippage() core.Slippage {
	return a.runner.cfg.Simulator.Params().Slippage()
}

// RunOnce performs a single evaluation pass. Concurrent calls are serialized.
func (a *App) RunOnce(ctx context.Context) (*Report, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	report, err := a.runner.Run(ctx)

	a.mu.Lock()
	a.lastErr = err
	if err == nil {
		a.lastReport = report
	}
	a.mu.Unlock()

	if a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if werr := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); werr != nil {
			a.logger.Warn("writing metrics textfile failed",
				zap.String("path", a.cfg.Metrics.Textfile), zap.Error(werr))
		}
	}
	return report, err
}

// Start runs immediately and then every interval until ctx is done or Stop
// is called. Run failures are logged and the loop continues.
func (a *App) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		cancel()
	}()

	a.logger.Info("scheduler starting", zap.Duration("interval", interval))
	a.runScheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			a.runScheduled(ctx)
		}
	}
}

func (a *App) runScheduled(ctx context.Context) {
	if _, err := a.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// Stop stops the scheduling loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// LastReport returns the report of the last successful run, if any.
func (a *App) LastReport() *Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReport
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"running":   a.running,
		"backend":   a.cfg.Storage.Backend,
		"groups":    len(a.cfg.Groups),
		"providers": len(a.cfg.Providers),
	}
	if a.lastReport != nil {
		stats["last_run_id"] = a.lastReport.RunID
		stats["last_run_at"] = a.lastReport.FinishedAt
	}
	if a.lastErr != nil {
		stats["last_error"] = a.lastErr.Error()
	}
	return stats
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
