package backtest

import (
	"testing"

	"github.com/newthinker/perftrack/internal/core"
)

var phoenix = core.Group{Universe: core.UniverseSP500, Strategy: "phoenix"}

func trade(day string, reason core.ExitReason, r, pct float64) ClosedTrade {
	return ClosedTrade{Group: phoenix, ExitDate: day, ExitReason: reason, R: r, PerfPct: pct}
}

func TestCalculateStats_Mixed(t *testing.T) {
	trades := []ClosedTrade{
		trade("2025-01-05", core.ExitTime, 1.0, 2.0),
		trade("2025-01-06", core.ExitStopLoss, -0.5, -1.0),
		trade("2025-01-07", core.ExitTime, 2.0, 4.0),
		trade("2025-01-08", core.ExitBreakeven, 0.0, 0.0),
	}

	s := CalculateStats(phoenix, trades)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"WinRate", s.WinRate, 0.5},
		{"LossRate", s.LossRate, 0.25},
		{"BreakevenRate", s.BreakevenRate, 0.25},
		{"AvgWinR", s.AvgWinR, 1.5},
		{"AvgLossR", s.AvgLossR, 0.5},
		{"ExpectancyR", s.ExpectancyR, 0.625},
		{"AvgR", s.AvgR, 0.625},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if s.Trades != 4 {
		t.Errorf("Trades = %d, want 4", s.Trades)
	}
	if !approx(s.WinRate+s.LossRate+s.BreakevenRate, 1) {
		t.Error("rates should sum to 1 when no trade is exactly flat")
	}
}

func TestCalculateStats_BreakevenWithNonZeroR(t *testing.T) {
	// Exit slippage makes a BE exit slightly negative; it must not count as a loss.
	trades := []ClosedTrade{
		trade("2025-01-05", core.ExitBreakeven, -0.02, -0.2),
		trade("2025-01-06", core.ExitBreakeven, 0.01, 0.1),
	}

	s := CalculateStats(phoenix, trades)
	if s.BreakevenRate != 1 || s.WinRate != 0 || s.LossRate != 0 {
		t.Errorf("got win %v loss %v be %v", s.WinRate, s.LossRate, s.BreakevenRate)
	}
	if !approx(s.AvgR, -0.005) {
		t.Errorf("AvgR = %v, want -0.005", s.AvgR)
	}
}

func TestCalculateStats_Empty(t *testing.T) {
	s := CalculateStats(phoenix, nil)
	if s != (GroupStats{Group: phoenix}) {
		t.Errorf("empty group should report zeros, got %+v", s)
	}
}

func TestCalculateStats_OnlyWinners(t *testing.T) {
	s := CalculateStats(phoenix, []ClosedTrade{
		trade("2025-01-05", core.ExitTime, 0.4, 1.0),
		trade("2025-01-06", core.ExitTime, 0.6, 1.5),
	})
	if s.AvgLossR != 0 {
		t.Errorf("AvgLossR = %v, want 0", s.AvgLossR)
	}
	if !approx(s.ExpectancyR, 0.5) || !approx(s.AvgR, 0.5) {
		t.Errorf("ExpectancyR = %v, AvgR = %v, want 0.5", s.ExpectancyR, s.AvgR)
	}
}

func TestAggregate_ConfiguredGroupsOnly(t *testing.T) {
	crypto := core.Group{Universe: core.UniverseCrypto, Strategy: "pullback"}
	other := core.Group{Universe: core.UniverseSP500, Strategy: "momentum"}

	trades := []ClosedTrade{
		trade("2025-01-05", core.ExitTime, 1.0, 2.0),
		{Group: other, ExitDate: "2025-01-05", ExitReason: core.ExitTime, R: 5, PerfPct: 50},
		{Group: crypto, ExitDate: "2025-01-06", ExitReason: core.ExitStopLoss, R: -1, PerfPct: -3},
	}

	perf := Aggregate(trades, []core.Group{crypto, phoenix})

	if len(perf.Groups) != 2 {
		t.Fatalf("Groups = %d, want 2", len(perf.Groups))
	}
	if perf.Groups[0].Group != crypto || perf.Groups[1].Group != phoenix {
		t.Error("groups should follow configuration order")
	}
	if perf.Groups[0].Trades != 1 || perf.Groups[1].Trades != 1 {
		t.Errorf("unexpected trade counts %+v", perf.Groups)
	}

	want := []EquityPoint{{"2025-01-05", 2.0}, {"2025-01-06", -1.0}}
	if len(perf.Equity) != len(want) {
		t.Fatalf("Equity = %+v, want %+v", perf.Equity, want)
	}
	for i := range want {
		if perf.Equity[i].Date != want[i].Date || !approx(perf.Equity[i].CumulativePct, want[i].CumulativePct) {
			t.Errorf("Equity[%d] = %+v, want %+v", i, perf.Equity[i], want[i])
		}
	}
}

func TestAggregate_GroupWithoutTrades(t *testing.T) {
	perf := Aggregate(nil, []core.Group{phoenix})
	if len(perf.Groups) != 1 || perf.Groups[0].Trades != 0 {
		t.Errorf("got %+v", perf.Groups)
	}
	if perf.Equity == nil || len(perf.Equity) != 0 {
		t.Errorf("Equity = %#v, want empty non-nil", perf.Equity)
	}
}

func TestEquityCurve_Additive(t *testing.T) {
	trades := []ClosedTrade{
		trade("2025-01-07", core.ExitTime, 0, 3.0),
		trade("2025-01-05", core.ExitTime, 0, 1.0),
		trade("2025-01-05", core.ExitStopLoss, 0, -0.4),
		trade("2025-01-06", core.ExitStopLoss, 0, -2.0),
	}

	curve := EquityCurve(trades)

	want := []EquityPoint{
		{"2025-01-05", 0.6},
		{"2025-01-06", -1.4},
		{"2025-01-07", 1.6},
	}
	if len(curve) != len(want) {
		t.Fatalf("curve = %+v", curve)
	}
	for i := range want {
		if curve[i].Date != want[i].Date || !approx(curve[i].CumulativePct, want[i].CumulativePct) {
			t.Errorf("curve[%d] = %+v, want %+v", i, curve[i], want[i])
		}
	}

	var sum float64
	for _, tr := range trades {
		sum += tr.PerfPct
	}
	if !approx(curve[len(curve)-1].CumulativePct, sum) {
		t.Errorf("last point %v should equal the sum of returns %v", curve[len(curve)-1].CumulativePct, sum)
	}
}

func TestEquityCurve_Empty(t *testing.T) {
	curve := EquityCurve(nil)
	if curve == nil || len(curve) != 0 {
		t.Errorf("EquityCurve(nil) = %#v, want empty slice", curve)
	}
}
