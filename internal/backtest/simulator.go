package backtest

import (
	"fmt"
	"sort"

	"github.com/newthinker/perftrack/internal/core"
)

// phase is the state of the per-signal replay machine
type phase int

const (
	phaseSeekingEntry phase = iota
	phaseInTrade
	phaseResolved
)

// tradeState is the value threaded through the replay. Transitions return a
// new state and never mutate their input.
type tradeState struct {
	phase phase

	// fixed once the entry bar is found
	entryDay  string
	entryOpen float64 // raw open of the entry bar
	trigger   float64 // raw price that arms the breakeven stop (entry + 1R)

	held      int     // window bars evaluated, entry bar included
	stop      float64 // active stop in raw price space
	breakeven bool

	exitRaw float64
	exitDay string
	reason  core.ExitReason
}

// Simulator replays signals against daily bars
type Simulator struct {
	params Params
}

// NewSimulator creates a Simulator. Unset fields fall back to DefaultParams.
func NewSimulator(params Params) *Simulator {
	def := DefaultParams()
	if params.EntrySlippage <= 0 {
		params.EntrySlippage = def.EntrySlippage
	}
	if params.ExitSlippage <= 0 {
		params.ExitSlippage = def.ExitSlippage
	}
	if params.MaxHoldingBars <= 0 {
		params.MaxHoldingBars = def.MaxHoldingBars
	}
	return &Simulator{params: params}
}

// Params returns the effective simulation parameters.
func (s *Simulator) Params() Params {
	return s.params
}

// Simulate replays sig against bars with DefaultParams.
func Simulate(sig core.Signal, bars []core.Bar) (Outcome, error) {
	return NewSimulator(DefaultParams()).Simulate(sig, bars)
}

// Simulate determines what would have happened to sig given bars.
//
// The trade enters at the open of the first bar dated strictly after the
// signal day and is replayed over at most MaxHoldingBars bars from that entry
// bar, whatever the length of bars. A rejected signal returns a coded error
// and a zero Outcome; the caller should leave the signal as it is.
func (s *Simulator) Simulate(sig core.Signal, bars []core.Bar) (Outcome, error) {
	stop := sig.InitialData.StopLoss
	if !(stop > 0) {
		return Outcome{}, core.WrapError(core.ErrInvalidStop, fmt.Errorf("stop_loss %v", stop))
	}

	st := tradeState{phase: phaseSeekingEntry, stop: stop}
	for _, bar := range sortedBars(bars) {
		next, err := s.transition(st, bar, sig.DateSignal)
		if err != nil {
			return Outcome{}, err
		}
		st = next
		if st.phase == phaseResolved {
			break
		}
	}

	return s.outcome(st, stop), nil
}

// transition advances the machine by one bar.
func (s *Simulator) transition(st tradeState, bar core.Bar, signalDay string) (tradeState, error) {
	switch st.phase {
	case phaseSeekingEntry:
		if bar.Day() <= signalDay {
			return st, nil
		}
		entered, err := s.enter(st, bar)
		if err != nil {
			return st, err
		}
		// The entry bar is the first bar of the window.
		return s.hold(entered, bar), nil
	case phaseInTrade:
		return s.hold(st, bar), nil
	default:
		return st, nil
	}
}

// enter opens the trade at the raw open of bar.
func (s *Simulator) enter(st tradeState, bar core.Bar) (tradeState, error) {
	open := bar.Open
	if !(open > 0) || open <= st.stop {
		return st, core.WrapError(core.ErrInvalidEntry,
			fmt.Errorf("entry open %v, stop %v on %s", open, st.stop, bar.Day()))
	}
	if open*s.params.EntrySlippage-st.stop <= 0 {
		return st, core.WrapError(core.ErrInvalidRisk,
			fmt.Errorf("entry price %v, stop %v", open*s.params.EntrySlippage, st.stop))
	}

	st.phase = phaseInTrade
	st.entryDay = bar.Day()
	st.entryOpen = open
	st.trigger = open + (open - st.stop)
	return st, nil
}

// hold evaluates one window bar in priority order: gap through the stop,
// intrabar stop, breakeven arming, then the time stop on the last window bar.
func (s *Simulator) hold(st tradeState, bar core.Bar) tradeState {
	st.held++

	if bar.Open <= st.stop {
		return st.resolve(bar.Open, bar, stopReason(st))
	}
	if bar.Low <= st.stop {
		return st.resolve(st.stop, bar, stopReason(st))
	}

	if !st.breakeven && bar.High >= st.trigger {
		// Effective from the next bar; no slippage on the raised stop.
		st.breakeven = true
		st.stop = st.entryOpen
	}

	if st.held >= s.params.MaxHoldingBars {
		return st.resolve(bar.Close, bar, core.ExitTime)
	}
	return st
}

func (st tradeState) resolve(raw float64, bar core.Bar, reason core.ExitReason) tradeState {
	st.phase = phaseResolved
	st.exitRaw = raw
	st.exitDay = bar.Day()
	st.reason = reason
	return st
}

// stopReason distinguishes a stop at original risk from a stop at breakeven.
func stopReason(st tradeState) core.ExitReason {
	if st.breakeven && st.stop >= st.entryOpen {
		return core.ExitBreakeven
	}
	return core.ExitStopLoss
}

// outcome converts the final machine state into an Outcome.
func (s *Simulator) outcome(st tradeState, stop float64) Outcome {
	if st.phase == phaseSeekingEntry {
		return Outcome{Status: core.StatusPending}
	}

	out := Outcome{
		Status:             core.StatusActive,
		EntryPrice:         st.entryOpen * s.params.EntrySlippage,
		EntryDate:          st.entryDay,
		BreakevenActivated: st.breakeven,
		Slippage:           s.params.Slippage(),
	}
	if st.phase != phaseResolved {
		return out
	}

	out.Status = core.StatusClosed
	out.ExitPrice = st.exitRaw * s.params.ExitSlippage
	out.ExitDate = st.exitDay
	out.ExitReason = st.reason
	out.PerfPct = perfPct(out.EntryPrice, out.ExitPrice)
	out.R = rMultiple(out.EntryPrice, out.ExitPrice, stop)
	return out
}

// sortedBars returns a time-ordered copy of bars.
func sortedBars(bars []core.Bar) []core.Bar {
	sorted := make([]core.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}
