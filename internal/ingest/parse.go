// Package ingest turns scanner exports into PENDING signals.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/perftrack/internal/core"
)

// dayLayouts are the date formats accepted in scanner exports, tried in order.
var dayLayouts = []string{
	core.DateLayout,
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// parseDay normalizes an export date to YYYY-MM-DD.
func parseDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(core.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// newSignal builds a PENDING signal from the scanner's reference price and stop.
func newSignal(universe core.Universe, strategy, ticker, day string, price, stop float64) core.Signal {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	return core.Signal{
		ID:          core.SignalID(universe, strategy, ticker, day),
		DateSignal:  day,
		Ticker:      ticker,
		Universe:    universe,
		Strategy:    strategy,
		InitialData: core.InitialData{ReferencePrice: price, StopLoss: stop},
		TradeStatus: core.StatusPending,
	}
}

type picksFile struct {
	Date  string               `json:"date_mise_a_jour"`
	Picks map[string]pickEntry `json:"picks"`
}

type pickEntry struct {
	EntryPrice *float64 `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
}

// ParsePicks reads a scanner pick export. Picks without both an entry price
// and a stop are skipped. Signals are returned in ticker order.
func ParsePicks(r io.Reader, universe core.Universe, strategy string) ([]core.Signal, error) {
	var doc picksFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, core.WrapError(core.ErrMalformedSignal, fmt.Errorf("decoding picks: %w", err))
	}
	day, err := parseDay(doc.Date)
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedSignal, fmt.Errorf("date_mise_a_jour: %w", err))
	}

	tickers := make([]string, 0, len(doc.Picks))
	for t := range doc.Picks {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	signals := make([]core.Signal, 0, len(tickers))
	for _, t := range tickers {
		p := doc.Picks[t]
		if p.EntryPrice == nil || p.StopLoss == nil || strings.TrimSpace(t) == "" {
			continue
		}
		if *p.EntryPrice <= 0 || *p.StopLoss <= 0 {
			continue
		}
		signals = append(signals, newSignal(universe, strategy, t, day, *p.EntryPrice, *p.StopLoss))
	}
	return signals, nil
}

// csv column aliases, matched case-insensitively in this order
var (
	dateColumns   = []string{"date_signal", "date"}
	tickerColumns = []string{"ticker", "symbol"}
	entryColumns  = []string{"entry_price", "close", "price"}
	stopColumns   = []string{"stop_loss", "sl", "stop"}
)

func findColumn(header map[string]int, aliases []string) (int, error) {
	for _, a := range aliases {
		if i, ok := header[a]; ok {
			return i, nil
		}
	}
	return 0, core.WrapError(core.ErrMalformedSignal,
		fmt.Errorf("missing column %s", strings.Join(aliases, " / ")))
}

// ParseCSV reads a backtest signal CSV. Rows with an unparsable date or
// a missing or non-positive price are skipped. Signals are returned in
// file order.
func ParseCSV(r io.Reader, universe core.Universe, strategy string) ([]core.Signal, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.WrapError(core.ErrMalformedSignal, fmt.Errorf("empty csv"))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedSignal, fmt.Errorf("reading header: %w", err))
	}

	header := make(map[string]int, len(head))
	for i, h := range head {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}

	var cols [4]int
	for i, aliases := range [][]string{dateColumns, tickerColumns, entryColumns, stopColumns} {
		if cols[i], err = findColumn(header, aliases); err != nil {
			return nil, err
		}
	}

	var signals []core.Signal
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrMalformedSignal, fmt.Errorf("reading csv: %w", err))
		}

		field := func(i int) string {
			if cols[i] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[cols[i]])
		}

		day, err := parseDay(field(0))
		if err != nil {
			continue
		}
		ticker := field(1)
		if ticker == "" {
			continue
		}
		price, err1 := strconv.ParseFloat(field(2), 64)
		stop, err2 := strconv.ParseFloat(field(3), 64)
		if err1 != nil || err2 != nil || !(price > 0) || !(stop > 0) {
			continue
		}

		signals = append(signals, newSignal(universe, strategy, ticker, day, price, stop))
	}
	return signals, nil
}
