package backtest

import (
	"encoding/json"
	"testing"

	"github.com/newthinker/perftrack/internal/core"
)

func TestBuildSummary_Rounding(t *testing.T) {
	perf := Performance{
		Groups: []GroupStats{{
			Group:         phoenix,
			Trades:        3,
			AvgR:          0.123456,
			WinRate:       2.0 / 3.0,
			BreakevenRate: 1.0 / 3.0,
			ExpectancyR:   -0.0004,
			AvgWinR:       1.23456,
			AvgLossR:      0.5,
		}},
		Equity: []EquityPoint{{"2025-01-05", 1.23456}},
	}

	s := BuildSummary(perf, "2025-02-01 10:00")

	g, ok := s.Group("sp500_phoenix")
	if !ok {
		t.Fatal("group sp500_phoenix missing")
	}
	if g.WinRate != 66.7 || g.BreakevenRate != 33.3 {
		t.Errorf("rates = %v/%v, want 66.7/33.3", g.WinRate, g.BreakevenRate)
	}
	if g.AvgR != 0.123 || g.AvgWinR != 1.235 || g.ExpectancyR != 0 {
		t.Errorf("R values = %v/%v/%v", g.AvgR, g.AvgWinR, g.ExpectancyR)
	}
	if s.Equity.EquityPct[0] != 1.235 {
		t.Errorf("equity = %v, want 1.235", s.Equity.EquityPct[0])
	}
	if _, ok := s.Group("crypto_phoenix"); ok {
		t.Error("unexpected group")
	}
}

func TestSummary_MarshalJSON(t *testing.T) {
	perf := Aggregate([]ClosedTrade{
		trade("2025-01-05", core.ExitTime, 1.0, 2.0),
	}, []core.Group{phoenix, {Universe: core.UniverseCrypto, Strategy: "pullback"}})

	data, err := json.Marshal(BuildSummary(perf, "2025-02-01 10:00"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"last_update", "sp500_phoenix", "crypto_pullback", "equity_curve"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("key %q missing from %s", key, data)
		}
	}

	var g map[string]float64
	if err := json.Unmarshal(doc["sp500_phoenix"], &g); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"nb_trades", "avg_R", "winrate", "breakeven_rate", "expectancy_R", "avg_win_R", "avg_loss_R"} {
		if _, ok := g[key]; !ok {
			t.Errorf("group key %q missing", key)
		}
	}
	if g["winrate"] != 100 || g["nb_trades"] != 1 {
		t.Errorf("group = %v", g)
	}
}

func TestSummary_MarshalJSONEmptyCurve(t *testing.T) {
	data, err := json.Marshal(Summary{LastUpdate: "x"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"equity_curve":{"dates":[],"equity_pct":[]},"last_update":"x"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
