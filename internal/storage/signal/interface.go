// Package signal persists the signals log: one record per scanner signal,
// carrying its simulated execution.
package signal

import (
	"context"
	"sort"

	"github.com/newthinker/perftrack/internal/core"
)

// Store defines the interface for signal persistence.
// Results are ordered by (date_signal, universe, strategy, ticker).
type Store interface {
	// List retrieves signals matching the filter.
	List(ctx context.Context, filter ListFilter) ([]core.Signal, error)

	// Count returns the number of signals matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// GetByID retrieves a signal by its ID.
	GetByID(ctx context.Context, id string) (*core.Signal, error)

	// Insert adds a new signal. An existing ID returns core.ErrDuplicateSignal.
	Insert(ctx context.Context, sig core.Signal) error

	// Update replaces a stored signal. An unknown ID returns core.ErrSignalNotFound.
	Update(ctx context.Context, sig core.Signal) error
}

// ListFilter defines criteria for listing signals. Zero fields match all.
// From and To are inclusive YYYY-MM-DD bounds on date_signal.
type ListFilter struct {
	Universe core.Universe
	Strategy string
	Ticker   string
	Status   core.TradeStatus
	From     string
	To       string
	Limit    int
	Offset   int
}

// Matches reports whether sig satisfies every set criterion of f.
func (f ListFilter) Matches(sig core.Signal) bool {
	if f.Universe != "" && sig.Universe != f.Universe {
		return false
	}
	if f.Strategy != "" && sig.Strategy != f.Strategy {
		return false
	}
	if f.Ticker != "" && sig.Ticker != f.Ticker {
		return false
	}
	if f.Status != "" && sig.Status() != f.Status {
		return false
	}
	if f.From != "" && sig.DateSignal < f.From {
		return false
	}
	if f.To != "" && sig.DateSignal > f.To {
		return false
	}
	return true
}

// less is the store order.
func less(a, b core.Signal) bool {
	if a.DateSignal != b.DateSignal {
		return a.DateSignal < b.DateSignal
	}
	if a.Universe != b.Universe {
		return a.Universe < b.Universe
	}
	if a.Strategy != b.Strategy {
		return a.Strategy < b.Strategy
	}
	if a.Ticker != b.Ticker {
		return a.Ticker < b.Ticker
	}
	return a.ID < b.ID
}

func sortSignals(signals []core.Signal) {
	sort.SliceStable(signals, func(i, j int) bool { return less(signals[i], signals[j]) })
}

// paginate applies offset and limit to an already ordered result.
func paginate(signals []core.Signal, offset, limit int) []core.Signal {
	if offset >= len(signals) {
		return []core.Signal{}
	}
	if offset > 0 {
		signals = signals[offset:]
	}
	if limit > 0 && limit < len(signals) {
		signals = signals[:limit]
	}
	return signals
}
