package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/perftrack/internal/core"
)

// DefaultLookback is the history window for universes without one configured.
const DefaultLookback = 730 * 24 * time.Hour

// sinceMargin is fetched ahead of a requested day so the series holds a bar
// on or before it across weekends and holidays.
const sinceMargin = 7 * 24 * time.Hour

// BarArchive persists history between runs
type BarArchive interface {
	Read(ctx context.Context, universe core.Universe, ticker string) ([]core.Bar, error)
	Merge(ctx context.Context, universe core.Universe, ticker string, fresh []core.Bar) ([]core.Bar, error)
}

// FetchRecorder receives one call per provider fetch
type FetchRecorder interface {
	RecordFetch(provider string, ok bool)
}

// HistoryOptions configures a History
type HistoryOptions struct {
	Lookback map[core.Universe]time.Duration
	Archive  BarArchive    // optional
	Metrics  FetchRecorder // optional
	Logger   *zap.Logger
	Now      func() time.Time
}

type historyKey struct {
	universe core.Universe
	ticker   string
}

type historyEntry struct {
	start time.Time
	bars  []core.Bar
	err   error
}

// History serves daily bars to the run driver. Each (universe, ticker) is
// fetched at most once until Reset, failures included.
type History struct {
	registry *Registry
	opts     HistoryOptions
	log      *zap.Logger

	mu    sync.Mutex
	cache map[historyKey]historyEntry
}

// NewHistory creates a History over the providers in registry.
func NewHistory(registry *Registry, opts HistoryOptions) *History {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &History{
		registry: registry,
		opts:     opts,
		log:      log,
		cache:    make(map[historyKey]historyEntry),
	}
}

// Reset drops the cache so the next run fetches fresh data.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = make(map[historyKey]historyEntry)
}

// Bars returns the time-ordered daily history of ticker, one bar per day.
// The window covers the universe lookback and, when since is set, reaches
// back before since so older signals see their signal day. With an archive
// configured, the result also contains every archived day, so it is never
// shorter than what an earlier run saw.
func (h *History) Bars(ctx context.Context, universe core.Universe, ticker string, since time.Time) ([]core.Bar, error) {
	key := historyKey{universe: universe, ticker: ticker}
	start := h.windowStart(universe, since)

	h.mu.Lock()
	entry, ok := h.cache[key]
	h.mu.Unlock()
	if ok && !entry.start.After(start) {
		return entry.bars, entry.err
	}

	bars, err := h.load(ctx, universe, ticker, start)
	if ctx.Err() != nil {
		// Cancellation is not a property of the ticker; do not cache it.
		return nil, ctx.Err()
	}

	h.mu.Lock()
	h.cache[key] = historyEntry{start: start, bars: bars, err: err}
	h.mu.Unlock()
	return bars, err
}

// windowStart is the earliest time fetched for universe.
func (h *History) windowStart(universe core.Universe, since time.Time) time.Time {
	lookback, ok := h.opts.Lookback[universe]
	if !ok || lookback <= 0 {
		lookback = DefaultLookback
	}
	start := h.opts.Now().UTC().Add(-lookback)
	if !since.IsZero() {
		if s := since.UTC().Add(-sinceMargin); s.Before(start) {
			start = s
		}
	}
	return start
}

func (h *History) load(ctx context.Context, universe core.Universe, ticker string, start time.Time) ([]core.Bar, error) {
	provider, ok := h.registry.Get(universe)
	if !ok {
		return nil, core.WrapError(core.ErrUnknownUniverse, fmt.Errorf("universe %s", universe))
	}
	end := h.opts.Now().UTC()

	fresh, fetchErr := provider.FetchHistory(ctx, ticker, start, end)
	if h.opts.Metrics != nil {
		h.opts.Metrics.RecordFetch(provider.Name(), fetchErr == nil)
	}
	fresh = Normalize(fresh)

	if h.opts.Archive == nil {
		if fetchErr != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, fetchErr)
		}
		if len(fresh) == 0 {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", universe, ticker))
		}
		return fresh, nil
	}

	if fetchErr != nil {
		archived, err := h.opts.Archive.Read(ctx, universe, ticker)
		if err != nil || len(archived) == 0 {
			return nil, core.WrapError(core.ErrCollectorFailed, fetchErr)
		}
		h.log.Warn("fetch failed, using archived bars",
			zap.String("universe", string(universe)),
			zap.String("ticker", ticker),
			zap.Int("bars", len(archived)),
			zap.Error(fetchErr))
		return archived, nil
	}

	merged, err := h.opts.Archive.Merge(ctx, universe, ticker, fresh)
	if err != nil {
		// The fresh series is still usable for this run.
		h.log.Warn("bar archive merge failed",
			zap.String("universe", string(universe)),
			zap.String("ticker", ticker),
			zap.Error(err))
		merged = fresh
	}
	if len(merged) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", universe, ticker))
	}
	return merged, nil
}

// Normalize sorts bars by time and keeps one bar per UTC day, the last
// one seen for that day.
func Normalize(bars []core.Bar) []core.Bar {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]core.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Day() == b.Day() {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
