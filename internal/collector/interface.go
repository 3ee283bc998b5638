package collector

import (
	"context"
	"time"

	"github.com/newthinker/perftrack/internal/core"
)

// Provider fetches daily price history from one data source
type Provider interface {
	// Name identifies the source, e.g. "yahoo"
	Name() string

	// FetchHistory returns daily bars for symbol covering [start, end].
	// Bars may be unsorted; an empty result is not an error.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)
}
