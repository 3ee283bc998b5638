package backtest

import (
	"sort"

	"github.com/newthinker/perftrack/internal/core"
)

// Aggregate computes statistics for every group in groups, in that order,
// plus the equity curve over the trades of those groups. Trades belonging
// to other groups are ignored. Groups without trades report zero values.
func Aggregate(trades []ClosedTrade, groups []core.Group) Performance {
	byGroup := make(map[core.Group][]ClosedTrade, len(groups))
	for _, g := range groups {
		byGroup[g] = nil
	}

	included := make([]ClosedTrade, 0, len(trades))
	for _, t := range trades {
		if _, ok := byGroup[t.Group]; !ok {
			continue
		}
		byGroup[t.Group] = append(byGroup[t.Group], t)
		included = append(included, t)
	}

	stats := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		stats = append(stats, CalculateStats(g, byGroup[g]))
	}

	return Performance{
		Groups: stats,
		Equity: EquityCurve(included),
	}
}

// CalculateStats computes R-based statistics for the trades of one group
func CalculateStats(group core.Group, trades []ClosedTrade) GroupStats {
	stats := GroupStats{Group: group, Trades: len(trades)}
	n := len(trades)
	if n == 0 {
		return stats
	}

	var wins, losses, breakevens int
	var sumR, sumWinR, sumLossR float64

	for _, t := range trades {
		sumR += t.R
		switch {
		case t.ExitReason == core.ExitBreakeven:
			breakevens++
		case t.IsWin():
			wins++
			sumWinR += t.R
		case t.IsLoss():
			losses++
			sumLossR += -t.R
		}
	}

	stats.WinRate = float64(wins) / float64(n)
	stats.LossRate = float64(losses) / float64(n)
	stats.BreakevenRate = float64(breakevens) / float64(n)
	if wins > 0 {
		stats.AvgWinR = sumWinR / float64(wins)
	}
	if losses > 0 {
		stats.AvgLossR = sumLossR / float64(losses)
	}
	stats.ExpectancyR = stats.WinRate*stats.AvgWinR - stats.LossRate*stats.AvgLossR
	stats.AvgR = sumR / float64(n)

	return stats
}

// EquityCurve sums the percentage returns of trades exiting on the same day
// and accumulates them by plain addition in day order.
func EquityCurve(trades []ClosedTrade) []EquityPoint {
	daily := make(map[string]float64)
	for _, t := range trades {
		daily[t.ExitDate] += t.PerfPct
	}

	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)

	curve := make([]EquityPoint, 0, len(days))
	var cumulative float64
	for _, d := range days {
		cumulative += daily[d]
		curve = append(curve, EquityPoint{Date: d, CumulativePct: cumulative})
	}
	return curve
}
