package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/api"
	"github.com/newthinker/perftrack/internal/app"
	"github.com/newthinker/perftrack/internal/logger"
	"github.com/newthinker/perftrack/internal/metrics"
)

var runEvery time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only signals and performance API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&runEvery, "run-every", 0, "also evaluate signals on this interval (e.g. 24h)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	log.Info("starting perftrack server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{
		Store:       a.Store(),
		Archive:     a.Archive(),
		SummaryPath: cfg.Summary.Path,
		Metrics:     reg,
		Stats:       a.GetStats,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if runEvery > 0 {
		go func() {
			if err := a.Start(ctx, runEvery); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("scheduler stopped", zap.Error(err))
			}
		}()
		defer a.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down perftrack server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
