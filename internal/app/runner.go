package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/backtest"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/logger"
	"github.com/newthinker/perftrack/internal/notifier"
	"github.com/newthinker/perftrack/internal/storage/archive"
	"github.com/newthinker/perftrack/internal/storage/signal"
)

// Skip reasons reported for signals a run could not advance
const (
	SkipMalformed    = "malformed"
	SkipUnconfigured = "unconfigured_group"
	SkipInvalidStop  = "invalid_stop"
	SkipNoProvider   = "no_provider"
	SkipNoData       = "no_data"
	SkipFetchFailed  = "fetch_failed"
	SkipRejected     = "rejected"
)

// maxEntryGap is the longest market closure between a signal day and the
// next bar that still counts as the next session.
const maxEntryGap = 7 * 24 * time.Hour

// BarSource serves the daily history of one ticker, reaching back to since
type BarSource interface {
	Bars(ctx context.Context, universe core.Universe, ticker string, since time.Time) ([]core.Bar, error)
}

// resetter is implemented by sources that cache between calls
type resetter interface {
	Reset()
}

// reloader is implemented by stores that cache the signals between runs
type reloader interface {
	Reload(ctx context.Context) error
}

// Recorder receives run metrics. *metrics.Registry implements it.
type Recorder interface {
	RecordRun(status string, duration float64, finishedUnix float64)
	RecordTransition(status string)
	RecordSkip(reason string)
	RecordUpdateFailure()
	SetGroupStats(group string, trades int, expectancyR float64)
}

// Notifier delivers the transitions of a run. Satisfied by *notifier.Registry.
type Notifier interface {
	NotifyAll(ctx context.Context, events []notifier.Event) map[string]error
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, float64, float64) {}
func (nopRecorder) RecordTransition(string)            {}
func (nopRecorder) RecordSkip(string)                  {}
func (nopRecorder) RecordUpdateFailure()               {}
func (nopRecorder) SetGroupStats(string, int, float64) {}

// RunnerConfig wires a Runner
type RunnerConfig struct {
	Store       signal.Store
	Bars        BarSource
	Simulator   *backtest.Simulator
	Groups      []core.Group
	Archive     archive.Storage
	SummaryPath string
	Metrics     Recorder // optional
	Notifier    Notifier // optional
	Logger      *zap.Logger
	Now         func() time.Time
}

// Report describes what one run did
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Signals        int                      `json:"signals"`
	AlreadyClosed  int                      `json:"already_closed"`
	Unchanged      int                      `json:"unchanged"`
	Transitions    map[core.TradeStatus]int `json:"transitions"`
	Skipped        map[string]int           `json:"skipped"`
	UpdateFailures int                      `json:"update_failures"`

	Summary backtest.Summary `json:"summary"`
}

// Updated returns the number of records written back.
func (r *Report) Updated() int {
	n := 0
	for _, c := range r.Transitions {
		n += c
	}
	return n
}

// Runner performs one evaluation pass over the signal store
type Runner struct {
	cfg RunnerConfig
	log *zap.Logger
}

// NewRunner creates a Runner. A nil Simulator uses the default parameters.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Simulator == nil {
		cfg.Simulator = backtest.NewSimulator(backtest.DefaultParams())
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg, log: logger.OrNop(cfg.Logger)}
}

// Run advances every open signal against fresh bars, writes each changed
// record back on its own and publishes the performance summary.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       uuid.New().String(),
		StartedAt:   r.cfg.Now(),
		Transitions: make(map[core.TradeStatus]int),
		Skipped:     make(map[string]int),
	}
	log := logger.ForRun(r.log, report.RunID)

	if rs, ok := r.cfg.Bars.(resetter); ok {
		rs.Reset()
	}

	report, err := r.run(ctx, log, report)
	finished := r.cfg.Now()
	status := "success"
	if err != nil {
		status = "error"
	}
	r.cfg.Metrics.RecordRun(status, finished.Sub(report.StartedAt).Seconds(), float64(finished.Unix()))
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return nil, err
	}

	report.FinishedAt = finished
	log.Info("run complete",
		zap.Int("signals", report.Signals),
		zap.Int("updated", report.Updated()),
		zap.Int("unchanged", report.Unchanged),
		zap.Any("skipped", report.Skipped),
		zap.Int("update_failures", report.UpdateFailures),
		zap.Duration("duration", finished.Sub(report.StartedAt)))
	return report, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, report *Report) (*Report, error) {
	if rl, ok := r.cfg.Store.(reloader); ok {
		if err := rl.Reload(ctx); err != nil {
			return report, fmt.Errorf("reloading signals: %w", err)
		}
	}
	signals, err := r.cfg.Store.List(ctx, signal.ListFilter{})
	if err != nil {
		return report, fmt.Errorf("listing signals: %w", err)
	}
	report.Signals = len(signals)
	log.Info("run started", zap.Int("signals", len(signals)))

	var events []notifier.Event
	groups := make(map[core.Group]struct{}, len(r.cfg.Groups))
	for _, g := range r.cfg.Groups {
		groups[g] = struct{}{}
	}

	for i, sig := range signals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if sig.IsClosed() {
			report.AlreadyClosed++
			continue
		}

		sigLog := log.With(
			zap.String("signal_id", sig.ID),
			zap.String("ticker", sig.Ticker),
			zap.String("universe", string(sig.Universe)))

		if reason := r.precheck(sig, groups); reason != "" {
			r.skip(report, sigLog, reason, nil)
			continue
		}

		since, _ := core.ParseDay(sig.DateSignal)
		bars, err := r.cfg.Bars.Bars(ctx, sig.Universe, sig.Ticker, since)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err != nil {
			r.skip(report, sigLog, fetchSkipReason(err), err)
			continue
		}
		if first, late := startsAfter(bars, since); late {
			// Entering on the first available bar would simulate the wrong days.
			r.skip(report, sigLog, SkipNoData, fmt.Errorf("history starts %s, signal day %s", first, sig.DateSignal))
			continue
		}

		out, err := r.cfg.Simulator.Simulate(sig, bars)
		if err != nil {
			r.skip(report, sigLog, SkipRejected, err)
			continue
		}

		updated, changed := backtest.Apply(sig, out)
		if !changed {
			report.Unchanged++
			continue
		}

		if err := r.cfg.Store.Update(ctx, updated); err != nil {
			// The record keeps its previous state and is re-evaluated next run.
			report.UpdateFailures++
			r.cfg.Metrics.RecordUpdateFailure()
			sigLog.Error("signal update failed", zap.Error(err))
			continue
		}

		signals[i] = updated
		events = append(events, transitionEvent(report.RunID, sig.Status(), updated))
		report.Transitions[updated.Status()]++
		r.cfg.Metrics.RecordTransition(string(updated.Status()))
		sigLog.Info("signal updated",
			zap.String("from", string(sig.Status())),
			zap.String("to", string(updated.Status())),
			zap.String("exit_reason", string(updated.Execution.ExitReason)))
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	r.notify(ctx, log, events)

	perf := backtest.Aggregate(backtest.ClosedTrades(signals), r.cfg.Groups)
	report.Summary = backtest.BuildSummary(perf, core.DayOf(r.cfg.Now()))
	if err := r.writeSummary(ctx, report.Summary); err != nil {
		return report, err
	}
	for _, g := range perf.Groups {
		r.cfg.Metrics.SetGroupStats(g.Group.Key(), g.Trades, g.ExpectancyR)
	}
	return report, nil
}

// precheck returns the skip reason of a signal that cannot be simulated.
func (r *Runner) precheck(sig core.Signal, groups map[core.Group]struct{}) string {
	if err := sig.Validate(); err != nil {
		return SkipMalformed
	}
	if _, ok := groups[sig.Group()]; !ok {
		return SkipUnconfigured
	}
	if !(sig.InitialData.StopLoss > 0) {
		return SkipInvalidStop
	}
	return ""
}

// startsAfter returns the first day of bars when it falls more than
// maxEntryGap after since, which means the history was cut short.
func startsAfter(bars []core.Bar, since time.Time) (string, bool) {
	if len(bars) == 0 {
		return "", false
	}
	first := bars[0].Time
	for _, b := range bars[1:] {
		if b.Time.Before(first) {
			first = b.Time
		}
	}
	return core.DayOf(first), first.Sub(since) > maxEntryGap
}

func fetchSkipReason(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownUniverse):
		return SkipNoProvider
	case errors.Is(err, core.ErrNoData):
		return SkipNoData
	default:
		return SkipFetchFailed
	}
}

func (r *Runner) skip(report *Report, log *zap.Logger, reason string, err error) {
	report.Skipped[reason]++
	r.cfg.Metrics.RecordSkip(reason)
	fields := []zap.Field{zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if reason == SkipFetchFailed {
		log.Warn("signal skipped", fields...)
		return
	}
	log.Debug("signal skipped", fields...)
}

func transitionEvent(runID string, from core.TradeStatus, updated core.Signal) notifier.Event {
	ev := notifier.Event{RunID: runID, From: from, Signal: updated}
	if t, ok := backtest.TradeOf(updated); ok {
		ev.PerfPct = t.PerfPct
		ev.R = t.R
	}
	return ev
}

// notify delivers events. Delivery failures are logged and never fail the run.
func (r *Runner) notify(ctx context.Context, log *zap.Logger, events []notifier.Event) {
	if r.cfg.Notifier == nil || len(events) == 0 {
		return
	}
	for name, err := range r.cfg.Notifier.NotifyAll(ctx, events) {
		log.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
	}
}

func (r *Runner) writeSummary(ctx context.Context, summary backtest.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := r.cfg.Archive.Write(ctx, r.cfg.SummaryPath, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing summary %s: %w", r.cfg.SummaryPath, err))
	}
	return nil
}
