package backtest

import (
	"github.com/newthinker/perftrack/internal/core"
)

// Params controls the friction and holding window of a simulated trade
type Params struct {
	EntrySlippage  float64 // multiplier on the raw entry open, >= 1 is adverse
	ExitSlippage   float64 // multiplier on the raw exit price, <= 1 is adverse
	MaxHoldingBars int     // bars in the replay window, entry bar included
}

// DefaultParams returns 0.1% friction each way and a 10-bar time stop.
func DefaultParams() Params {
	return Params{
		EntrySlippage:  1.001,
		ExitSlippage:   0.999,
		MaxHoldingBars: 10,
	}
}

// Slippage returns the factors in the form stored on an execution record.
func (p Params) Slippage() core.Slippage {
	return core.Slippage{EntryFactor: p.EntrySlippage, ExitFactor: p.ExitSlippage}
}

// Outcome is the result of replaying one signal against its bars.
// Exit fields, PerfPct and R are only set when Status is CLOSED.
type Outcome struct {
	Status             core.TradeStatus
	EntryPrice         float64
	EntryDate          string
	ExitPrice          float64
	ExitDate           string
	ExitReason         core.ExitReason
	BreakevenActivated bool
	Slippage           core.Slippage
	PerfPct            float64 // percent units, e.g. 1.5 for +1.5%
	R                  float64
}

// IsClosed returns true if the trade has an exit
func (o Outcome) IsClosed() bool {
	return o.Status == core.StatusClosed
}

// ClosedTrade is the part of a CLOSED signal the aggregator needs
type ClosedTrade struct {
	SignalID   string
	Group      core.Group
	ExitDate   string
	ExitReason core.ExitReason
	PerfPct    float64
	R          float64
}

// IsWin returns true for a profitable trade that was not a breakeven exit
func (t ClosedTrade) IsWin() bool {
	return t.R > 0 && t.ExitReason != core.ExitBreakeven
}

// IsLoss returns true for a losing trade that was not a breakeven exit
func (t ClosedTrade) IsLoss() bool {
	return t.R < 0 && t.ExitReason != core.ExitBreakeven
}

// GroupStats holds performance statistics for one (universe, strategy) group.
// Rates are fractions in [0, 1].
type GroupStats struct {
	Group         core.Group
	Trades        int
	AvgR          float64
	WinRate       float64
	LossRate      float64
	BreakevenRate float64
	ExpectancyR   float64
	AvgWinR       float64
	AvgLossR      float64 // mean absolute R of losing trades
}

// EquityPoint is the cumulative, non-compounded return after a given exit day
type EquityPoint struct {
	Date          string
	CumulativePct float64
}

// Performance is the full aggregation over all configured groups
type Performance struct {
	Groups []GroupStats
	Equity []EquityPoint
}

// perfPct returns the percentage return of a long trade.
func perfPct(entry, exit float64) float64 {
	return (exit/entry - 1.0) * 100.0
}

// rMultiple returns the trade result in units of the initial risk.
func rMultiple(entry, exit, stop float64) float64 {
	return (exit - entry) / (entry - stop)
}
