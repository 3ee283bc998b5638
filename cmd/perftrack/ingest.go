package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/app"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/ingest"
	"github.com/newthinker/perftrack/internal/logger"
)

var (
	ingestUniverse string
	ingestStrategy string
)

type parseFunc func(r io.Reader, universe core.Universe, strategy string) ([]core.Signal, error)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Append scanner output to the signals log as PENDING signals",
}

var ingestPicksCmd = &cobra.Command{
	Use:   "picks [file]",
	Short: "Ingest a scanner picks JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0], ingest.ParsePicks)
	},
}

var ingestCSVCmd = &cobra.Command{
	Use:   "csv [file]",
	Short: "Ingest a scanner CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0], ingest.ParseCSV)
	},
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestUniverse, "universe", "", "universe of the scan (sp500 or crypto, required)")
	ingestCmd.PersistentFlags().StringVar(&ingestStrategy, "strategy", "", "strategy that produced the scan (required)")
	_ = ingestCmd.MarkPersistentFlagRequired("universe")
	_ = ingestCmd.MarkPersistentFlagRequired("strategy")

	ingestCmd.AddCommand(ingestPicksCmd, ingestCSVCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, path string, parse parseFunc) error {
	log := logger.Must(debug)
	defer log.Sync()

	universe := core.Universe(ingestUniverse)
	if universe != core.UniverseSP500 && universe != core.UniverseCrypto {
		return core.WrapError(core.ErrUnknownUniverse, fmt.Errorf("universe %q", ingestUniverse))
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	signals, err := parse(f, universe, ingestStrategy)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	a, err := app.New(cmd.Context(), cfg, log, nil)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	res, err := ingest.NewIngester(a.Store(), a.Slippage(), log).Ingest(cmd.Context(), signals)
	if err != nil {
		return err
	}

	log.Info("ingestion complete",
		zap.String("file", path),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d, duplicates %d, invalid %d\n", res.Inserted, res.Duplicates, res.Invalid)
	return nil
}
