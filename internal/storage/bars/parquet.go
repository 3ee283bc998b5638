// Package bars keeps a local Parquet archive of daily price history so a
// replay never sees a shorter series than an earlier run did.
package bars

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/newthinker/perftrack/internal/core"
)

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Ticker    string  `parquet:"ticker"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Archive stores daily bars as one Parquet file per ticker at
//
//	<dir>/<universe>/<TICKER>.parquet
type Archive struct {
	dir string
}

// NewArchive creates an Archive rooted at dir.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bar archive: %w", err)
	}
	return &Archive{dir: dir}, nil
}

func (a *Archive) path(universe core.Universe, ticker string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.ToUpper(ticker))
	return filepath.Join(a.dir, string(universe), name+".parquet")
}

// Read returns the archived bars of a ticker in time order. A ticker with
// no archive yields no bars and no error.
func (a *Archive) Read(_ context.Context, universe core.Universe, ticker string) ([]core.Bar, error) {
	path := a.path(universe, ticker)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading bars for %s: %w", ticker, err))
	}

	bars := make([]core.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, core.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// Merge combines fresh bars with the archived history, writes the result
// back and returns it. Fresh bars replace archived bars of the same day.
func (a *Archive) Merge(ctx context.Context, universe core.Universe, ticker string, fresh []core.Bar) ([]core.Bar, error) {
	existing, err := a.Read(ctx, universe, ticker)
	if err != nil {
		return nil, err
	}

	merged := MergeBars(existing, fresh)
	if len(fresh) == 0 {
		return merged, nil
	}

	records := make([]BarRecord, 0, len(merged))
	for _, b := range merged {
		records = append(records, BarRecord{
			Ticker:    ticker,
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	path := a.path(universe, ticker)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing bars for %s: %w", ticker, err))
	}
	return merged, nil
}

// MergeBars deduplicates bars by UTC day, preferring incoming over existing,
// and returns them in time order.
func MergeBars(existing, incoming []core.Bar) []core.Bar {
	seen := make(map[string]core.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		seen[b.Day()] = b
	}
	for _, b := range incoming {
		seen[b.Day()] = b
	}

	merged := make([]core.Bar, 0, len(seen))
	for _, b := range seen {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}
