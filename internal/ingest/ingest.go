package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/storage/signal"
)

// Result counts what an ingestion did
type Result struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Ingester inserts parsed signals into a store
type Ingester struct {
	store    signal.Store
	slippage core.Slippage
	log      *zap.Logger
}

// NewIngester creates an Ingester recording slippage on every new signal.
func NewIngester(store signal.Store, slippage core.Slippage, log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{store: store, slippage: slippage, log: log}
}

// Ingest inserts signals as PENDING. Signals already in the store are
// counted as duplicates and left untouched.
func (i *Ingester) Ingest(ctx context.Context, signals []core.Signal) (Result, error) {
	var res Result
	for _, sig := range signals {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sig.TradeStatus = core.StatusPending
		sig.Execution = core.Execution{Slippage: i.slippage}
		if err := sig.Validate(); err != nil {
			i.log.Warn("skipping invalid signal", zap.String("signal_id", sig.ID), zap.Error(err))
			res.Invalid++
			continue
		}

		err := i.store.Insert(ctx, sig)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, core.ErrDuplicateSignal):
			res.Duplicates++
		default:
			return res, err
		}
	}

	i.log.Info("signals ingested",
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid))
	return res, nil
}
