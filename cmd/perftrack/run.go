package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/app"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/logger"
	"github.com/newthinker/perftrack/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate every open signal once and rewrite the performance summary",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	a, err := app.New(cmd.Context(), cfg, log, reg)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	report, err := a.RunOnce(cmd.Context())
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, r *app.Report) {
	fmt.Fprintln(w, "=== perftrack run ===")
	fmt.Fprintf(w, "Run:       %s\n", r.RunID)
	fmt.Fprintf(w, "Duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "Signals:   %d (%d already closed, %d unchanged)\n", r.Signals, r.AlreadyClosed, r.Unchanged)
	for _, status := range []core.TradeStatus{core.StatusPending, core.StatusActive, core.StatusClosed} {
		if n := r.Transitions[status]; n > 0 {
			fmt.Fprintf(w, "  -> %-8s %d\n", status, n)
		}
	}

	reasons := make([]string, 0, len(r.Skipped))
	for reason := range r.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  skipped %-18s %d\n", reason, r.Skipped[reason])
	}
	if r.UpdateFailures > 0 {
		fmt.Fprintf(w, "Update failures: %d\n", r.UpdateFailures)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-22s %8s %8s %8s %8s\n", "group", "trades", "avg_R", "win%", "exp_R")
	for _, g := range r.Summary.Groups {
		fmt.Fprintf(w, "%-22s %8d %8.3f %8.1f %8.3f\n", g.Key, g.Trades, g.AvgR, g.WinRate, g.ExpectancyR)
	}
}
