package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used across signals, bars and summaries.
const DateLayout = "2006-01-02"

// Universe identifies the instrument universe a signal was scanned from
type Universe string

const (
	UniverseSP500  Universe = "sp500"
	UniverseCrypto Universe = "crypto"
)

// TradeStatus is the lifecycle state of a simulated trade
type TradeStatus string

const (
	StatusPending TradeStatus = "PENDING"
	StatusActive  TradeStatus = "ACTIVE"
	StatusClosed  TradeStatus = "CLOSED"
)

// ExitReason explains why a simulated trade was closed
type ExitReason string

const (
	ExitNone      ExitReason = ""
	ExitStopLoss  ExitReason = "SL"
	ExitBreakeven ExitReason = "BE"
	ExitTime      ExitReason = "TIME"
)

// Bar represents one daily candle
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Day returns the UTC calendar day of the bar.
func (b Bar) Day() string {
	return DayOf(b.Time)
}

// DayOf formats t as a UTC calendar day.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDay parses a YYYY-MM-DD calendar day as UTC midnight.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Group keys performance statistics by universe and strategy
type Group struct {
	Universe Universe `mapstructure:"universe" json:"universe"`
	Strategy string   `mapstructure:"strategy" json:"strategy"`
}

// Key returns the summary document key, e.g. "sp500_phoenix".
func (g Group) Key() string {
	return fmt.Sprintf("%s_%s", g.Universe, g.Strategy)
}

// InitialData holds the scanner's reference price and technical stop.
// JSON names follow the existing signals log.
type InitialData struct {
	ReferencePrice float64 `json:"close_j"`
	StopLoss       float64 `json:"stop_loss_technical"`
}

// Slippage records the friction factors a trade was simulated with
type Slippage struct {
	EntryFactor float64 `json:"entry_factor"`
	ExitFactor  float64 `json:"exit_factor"`
}

// Execution holds the simulated fill and exit of a signal.
// All fields are frozen once the owning signal is CLOSED.
type Execution struct {
	EntryPrice         float64    `json:"entry_price"`
	EntryDate          string     `json:"entry_date"`
	ExitPrice          float64    `json:"exit_price"`
	ExitDate           string     `json:"exit_date"`
	ExitReason         ExitReason `json:"exit_reason"`
	BreakevenActivated bool       `json:"breakeven_activated"`
	Slippage           Slippage   `json:"slippage"`
}

// MarshalJSON writes unset fill and exit fields as null, as the signals
// log has always done for trades that have not reached them.
func (e Execution) MarshalJSON() ([]byte, error) {
	type wire struct {
		EntryPrice         *float64    `json:"entry_price"`
		EntryDate          *string     `json:"entry_date"`
		ExitPrice          *float64    `json:"exit_price"`
		ExitDate           *string     `json:"exit_date"`
		ExitReason         *ExitReason `json:"exit_reason"`
		BreakevenActivated bool        `json:"breakeven_activated"`
		Slippage           Slippage    `json:"slippage"`
	}
	w := wire{BreakevenActivated: e.BreakevenActivated, Slippage: e.Slippage}
	if e.EntryPrice != 0 {
		w.EntryPrice = &e.EntryPrice
	}
	if e.EntryDate != "" {
		w.EntryDate = &e.EntryDate
	}
	if e.ExitPrice != 0 {
		w.ExitPrice = &e.ExitPrice
	}
	if e.ExitDate != "" {
		w.ExitDate = &e.ExitDate
	}
	if e.ExitReason != "" {
		w.ExitReason = &e.ExitReason
	}
	return json.Marshal(w)
}

// Signal is a candidate trade produced by an external scanner
type Signal struct {
	ID          string      `json:"id"`
	DateSignal  string      `json:"date_signal"`
	Ticker      string      `json:"ticker"`
	Universe    Universe    `json:"universe"`
	Strategy    string      `json:"strategy"`
	InitialData InitialData `json:"initial_data"`
	TradeStatus TradeStatus `json:"trade_status"`
	Execution   Execution   `json:"execution"`
}

// SignalID builds the identity key of a signal.
func SignalID(universe Universe, strategy, ticker, dateSignal string) string {
	return fmt.Sprintf("%s_%s_%s_%s", universe, strategy, ticker, dateSignal)
}

// Group returns the performance group of the signal.
func (s Signal) Group() Group {
	return Group{Universe: s.Universe, Strategy: s.Strategy}
}

// Status returns the trade status, treating an empty value as PENDING.
func (s Signal) Status() TradeStatus {
	if s.TradeStatus == "" {
		return StatusPending
	}
	return s.TradeStatus
}

// IsClosed reports whether the signal's execution is frozen.
func (s Signal) IsClosed() bool {
	return s.Status() == StatusClosed
}

// Validate checks the identity fields a signal needs to be simulated.
func (s Signal) Validate() error {
	switch {
	case s.ID == "":
		return WrapError(ErrMalformedSignal, fmt.Errorf("missing id"))
	case s.Ticker == "":
		return WrapError(ErrMalformedSignal, fmt.Errorf("missing ticker"))
	case s.Universe == "":
		return WrapError(ErrMalformedSignal, fmt.Errorf("missing universe"))
	case s.Strategy == "":
		return WrapError(ErrMalformedSignal, fmt.Errorf("missing strategy"))
	}
	if _, err := ParseDay(s.DateSignal); err != nil {
		return WrapError(ErrMalformedSignal, fmt.Errorf("date_signal %q: %w", s.DateSignal, err))
	}
	return nil
}
