// Package router filters run transitions before they reach the notifiers.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/notifier"
)

// Config holds router configuration
type Config struct {
	// NotifyOn lists the statuses whose transitions are delivered.
	NotifyOn []core.TradeStatus `mapstructure:"notify_on"`
	// Groups restricts delivery to these group keys. Empty means all.
	Groups []string `mapstructure:"groups"`
	// MinAbsR drops closed trades whose |R| is below the threshold.
	MinAbsR float64 `mapstructure:"min_abs_r"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		NotifyOn: []core.TradeStatus{core.StatusActive, core.StatusClosed},
	}
}

// Router routes transitions to notifiers with filtering
type Router struct {
	cfg      Config
	registry *notifier.Registry
	logger   *zap.Logger
	statuses map[core.TradeStatus]bool
	groups   map[string]bool
}

// New creates a new transition router
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.NotifyOn) == 0 {
		cfg.NotifyOn = DefaultConfig().NotifyOn
	}

	r := &Router{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		statuses: make(map[core.TradeStatus]bool, len(cfg.NotifyOn)),
		groups:   make(map[string]bool, len(cfg.Groups)),
	}
	for _, s := range cfg.NotifyOn {
		r.statuses[s] = true
	}
	for _, g := range cfg.Groups {
		r.groups[g] = true
	}
	return r
}

// NotifyAll filters events and sends the remainder to every notifier.
func (r *Router) NotifyAll(ctx context.Context, events []notifier.Event) map[string]error {
	filtered := make([]notifier.Event, 0, len(events))
	for _, ev := range events {
		if r.passesFilters(ev) {
			filtered = append(filtered, ev)
		}
	}

	if len(filtered) == 0 || r.registry == nil {
		r.logger.Debug("no transitions routed", zap.Int("total", len(events)))
		return nil
	}

	errs := r.registry.NotifyAll(ctx, filtered)

	r.logger.Info("transitions routed",
		zap.Int("total", len(events)),
		zap.Int("filtered", len(filtered)),
		zap.Int("notifiers", r.registry.Len()),
		zap.Int("errors", len(errs)),
	)

	return errs
}

// passesFilters checks if an event passes all configured filters
func (r *Router) passesFilters(ev notifier.Event) bool {
	if !r.statuses[ev.Signal.Status()] {
		return false
	}

	if len(r.groups) > 0 && !r.groups[ev.Signal.Group().Key()] {
		return false
	}

	if ev.Closed() && r.cfg.MinAbsR > 0 {
		abs := ev.R
		if abs < 0 {
			abs = -abs
		}
		if abs < r.cfg.MinAbsR {
			return false
		}
	}

	return true
}
