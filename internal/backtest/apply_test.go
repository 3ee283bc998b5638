package backtest

import (
	"testing"

	"github.com/newthinker/perftrack/internal/core"
)

func TestApply_PendingStaysPending(t *testing.T) {
	sig := testSignal(90)
	got, changed := Apply(sig, Outcome{Status: core.StatusPending})
	if changed || got != sig {
		t.Errorf("Apply() = %+v, %v; want unchanged", got, changed)
	}
}

func TestApply_EmptyStatusBecomesPending(t *testing.T) {
	sig := testSignal(90)
	sig.TradeStatus = ""
	got, changed := Apply(sig, Outcome{Status: core.StatusPending})
	if !changed || got.TradeStatus != core.StatusPending {
		t.Errorf("Apply() = %s, %v; want PENDING, true", got.TradeStatus, changed)
	}
}

func TestApply_Active(t *testing.T) {
	sig := testSignal(90)
	out, err := Simulate(sig, flatBars(2))
	if err != nil {
		t.Fatal(err)
	}

	got, changed := Apply(sig, out)
	if !changed {
		t.Fatal("expected a change")
	}
	if got.TradeStatus != core.StatusActive {
		t.Errorf("TradeStatus = %s", got.TradeStatus)
	}
	if got.Execution.EntryPrice != out.EntryPrice || got.Execution.EntryDate != "2025-01-02" {
		t.Errorf("Execution = %+v", got.Execution)
	}
	if got.Execution.ExitPrice != 0 || got.Execution.ExitReason != core.ExitNone {
		t.Error("active signal should not carry exit fields")
	}

	// Same outcome again is a no-op.
	if _, changed := Apply(got, out); changed {
		t.Error("re-applying the same outcome should not report a change")
	}
}

func TestApply_ActiveNeverDowngrades(t *testing.T) {
	sig := testSignal(90)
	out, _ := Simulate(sig, flatBars(2))
	active, _ := Apply(sig, out)

	got, changed := Apply(active, Outcome{Status: core.StatusPending})
	if changed || got != active {
		t.Error("an ACTIVE signal must not go back to PENDING")
	}
}

func TestApply_ClosedIsFrozen(t *testing.T) {
	sig := testSignal(90)
	out, _ := Simulate(sig, flatBars(10))
	closed, changed := Apply(sig, out)
	if !changed || closed.TradeStatus != core.StatusClosed {
		t.Fatalf("Apply() = %s, %v", closed.TradeStatus, changed)
	}
	if closed.Execution.ExitReason != core.ExitTime || closed.Execution.ExitPrice != out.ExitPrice {
		t.Errorf("Execution = %+v", closed.Execution)
	}

	other := Outcome{Status: core.StatusClosed, EntryPrice: 1, ExitPrice: 2, ExitReason: core.ExitStopLoss}
	got, changed := Apply(closed, other)
	if changed || got != closed {
		t.Error("CLOSED signals must never be rewritten")
	}
}

func TestTradeOf(t *testing.T) {
	sig := testSignal(90)
	out, _ := Simulate(sig, []core.Bar{bar(1, 100, 101, 89, 95)})
	closed, _ := Apply(sig, out)

	tr, ok := TradeOf(closed)
	if !ok {
		t.Fatal("TradeOf() should accept a closed signal")
	}
	if tr.SignalID != sig.ID || tr.Group != phoenix || tr.ExitDate != "2025-01-02" {
		t.Errorf("trade = %+v", tr)
	}
	if tr.R != out.R || tr.PerfPct != out.PerfPct {
		t.Errorf("R/PerfPct = %v/%v, want %v/%v", tr.R, tr.PerfPct, out.R, out.PerfPct)
	}
}

func TestTradeOf_Rejects(t *testing.T) {
	closed := testSignal(90)
	closed.TradeStatus = core.StatusClosed
	closed.Execution = core.Execution{EntryPrice: 100, ExitPrice: 95, ExitDate: "2025-01-03"}

	tests := []struct {
		name   string
		mutate func(*core.Signal)
	}{
		{"active", func(s *core.Signal) { s.TradeStatus = core.StatusActive }},
		{"missing entry", func(s *core.Signal) { s.Execution.EntryPrice = 0 }},
		{"missing exit", func(s *core.Signal) { s.Execution.ExitPrice = 0 }},
		{"stop above entry", func(s *core.Signal) { s.InitialData.StopLoss = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := closed
			tt.mutate(&sig)
			if _, ok := TradeOf(sig); ok {
				t.Error("TradeOf() should reject the record")
			}
		})
	}

	// Legacy records without a reason count as a stop loss.
	tr, ok := TradeOf(closed)
	if !ok || tr.ExitReason != core.ExitStopLoss {
		t.Errorf("TradeOf() = %+v, %v", tr, ok)
	}
}

func TestClosedTrades(t *testing.T) {
	pending := testSignal(90)
	out, _ := Simulate(pending, flatBars(10))
	closed, _ := Apply(pending, out)

	trades := ClosedTrades([]core.Signal{pending, closed, pending})
	if len(trades) != 1 {
		t.Errorf("ClosedTrades() = %d trades, want 1", len(trades))
	}
}
