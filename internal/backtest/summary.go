package backtest

import (
	"encoding/json"
	"math"
)

// Summary is the performance document consumed by the dashboard.
// It marshals to a flat object keyed by group name plus last_update and
// equity_curve.
type Summary struct {
	LastUpdate string
	Groups     []GroupSummary
	Equity     EquitySeries
}

// GroupSummary is the rendered form of GroupStats. Rates are percentages.
type GroupSummary struct {
	Key           string  `json:"-"`
	Trades        int     `json:"nb_trades"`
	AvgR          float64 `json:"avg_R"`
	WinRate       float64 `json:"winrate"`
	BreakevenRate float64 `json:"breakeven_rate"`
	ExpectancyR   float64 `json:"expectancy_R"`
	AvgWinR       float64 `json:"avg_win_R"`
	AvgLossR      float64 `json:"avg_loss_R"`
}

// EquitySeries holds the equity curve as parallel arrays
type EquitySeries struct {
	Dates     []string  `json:"dates"`
	EquityPct []float64 `json:"equity_pct"`
}

// BuildSummary renders perf for the dashboard, rounding rates to one decimal
// of a percent and R values to three decimals.
func BuildSummary(perf Performance, lastUpdate string) Summary {
	s := Summary{
		LastUpdate: lastUpdate,
		Groups:     make([]GroupSummary, 0, len(perf.Groups)),
		Equity: EquitySeries{
			Dates:     make([]string, 0, len(perf.Equity)),
			EquityPct: make([]float64, 0, len(perf.Equity)),
		},
	}

	for _, g := range perf.Groups {
		s.Groups = append(s.Groups, GroupSummary{
			Key:           g.Group.Key(),
			Trades:        g.Trades,
			AvgR:          round(g.AvgR, 3),
			WinRate:       round(g.WinRate*100, 1),
			BreakevenRate: round(g.BreakevenRate*100, 1),
			ExpectancyR:   round(g.ExpectancyR, 3),
			AvgWinR:       round(g.AvgWinR, 3),
			AvgLossR:      round(g.AvgLossR, 3),
		})
	}

	for _, p := range perf.Equity {
		s.Equity.Dates = append(s.Equity.Dates, p.Date)
		s.Equity.EquityPct = append(s.Equity.EquityPct, round(p.CumulativePct, 3))
	}

	return s
}

// Group returns the rendered stats for a group key.
func (s Summary) Group(key string) (GroupSummary, bool) {
	for _, g := range s.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return GroupSummary{}, false
}

// MarshalJSON implements json.Marshaler.
func (s Summary) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Groups)+2)
	doc["last_update"] = s.LastUpdate
	for _, g := range s.Groups {
		doc[g.Key] = g
	}

	equity := s.Equity
	if equity.Dates == nil {
		equity.Dates = []string{}
	}
	if equity.EquityPct == nil {
		equity.EquityPct = []float64{}
	}
	doc["equity_curve"] = equity

	return json.Marshal(doc)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no "-0" in the document
	}
	return r
}
