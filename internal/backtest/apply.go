package backtest

import (
	"github.com/newthinker/perftrack/internal/core"
)

// Apply writes an outcome back onto a copy of sig and reports whether the
// record changed. CLOSED signals are returned untouched, and an ACTIVE
// signal is never moved back to PENDING.
func Apply(sig core.Signal, out Outcome) (core.Signal, bool) {
	if sig.IsClosed() {
		return sig, false
	}

	updated := sig
	switch out.Status {
	case core.StatusPending:
		if sig.Status() == core.StatusActive {
			return sig, false
		}
		updated.TradeStatus = core.StatusPending
	case core.StatusActive:
		updated.TradeStatus = core.StatusActive
		updated.Execution.EntryPrice = out.EntryPrice
		updated.Execution.EntryDate = out.EntryDate
		updated.Execution.BreakevenActivated = out.BreakevenActivated
		updated.Execution.Slippage = out.Slippage
	case core.StatusClosed:
		updated.TradeStatus = core.StatusClosed
		updated.Execution = core.Execution{
			EntryPrice:         out.EntryPrice,
			EntryDate:          out.EntryDate,
			ExitPrice:          out.ExitPrice,
			ExitDate:           out.ExitDate,
			ExitReason:         out.ExitReason,
			BreakevenActivated: out.BreakevenActivated,
			Slippage:           out.Slippage,
		}
	default:
		return sig, false
	}

	return updated, updated != sig
}

// TradeOf extracts the closed trade of a CLOSED signal from its frozen
// execution record. It returns false for open or inconsistent records.
func TradeOf(sig core.Signal) (ClosedTrade, bool) {
	if !sig.IsClosed() {
		return ClosedTrade{}, false
	}

	exec := sig.Execution
	stop := sig.InitialData.StopLoss
	if exec.EntryPrice <= 0 || exec.ExitPrice <= 0 || exec.EntryPrice-stop <= 0 {
		return ClosedTrade{}, false
	}

	reason := exec.ExitReason
	if reason == core.ExitNone {
		reason = core.ExitStopLoss
	}

	return ClosedTrade{
		SignalID:   sig.ID,
		Group:      sig.Group(),
		ExitDate:   exec.ExitDate,
		ExitReason: reason,
		PerfPct:    perfPct(exec.EntryPrice, exec.ExitPrice),
		R:          rMultiple(exec.EntryPrice, exec.ExitPrice, stop),
	}, true
}

// ClosedTrades extracts every closed trade from signals, in input order.
func ClosedTrades(signals []core.Signal) []ClosedTrade {
	trades := make([]ClosedTrade, 0, len(signals))
	for _, sig := range signals {
		if t, ok := TradeOf(sig); ok {
			trades = append(trades, t)
		}
	}
	return trades
}
