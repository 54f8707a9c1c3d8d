package strategy

import (
	"forex-trading-bot/internal/setups"
)

// ProgressiveParams tunes the three-leg progressive lock-in sequence.
// All distances are in pips.
type ProgressiveParams struct {
	FirstTPPips          float64 `json:"first_tp_pips"`
	SecondTPPips         float64 `json:"second_tp_pips"`
	BreakevenOffsetPips  float64 `json:"breakeven_offset_pips"`
	BreakevenTriggerPips float64 `json:"breakeven_trigger_pips"`
	InitialStopPips      float64 `json:"initial_stop_pips"`
}

// progressive opens three legs and cashes them in one at a time while
// ratcheting the stops of the remaining legs. The phase is derived
// from which leg indices are still open, so a restart resumes exactly
// where the previous run left off. A close and the stop moves it
// implies are emitted in the same pass, close first.
type progressive struct {
	params ProgressiveParams
	volume float64
}

func newProgressive(p ProgressiveParams, volume float64) *progressive {
	return &progressive{params: p, volume: volume}
}

func (s *progressive) Kind() Kind               { return KindProgressiveLockIn }
func (s *progressive) TagPrefix() setups.Prefix { return setups.PrefixMultiLeg }

func (s *progressive) LegPlans() []LegPlan {
	return []LegPlan{
		{Volume: s.volume, StopPips: s.params.InitialStopPips, ProfitPips: s.params.FirstTPPips},
		{Volume: s.volume, StopPips: s.params.InitialStopPips, ProfitPips: s.params.SecondTPPips},
		{Volume: s.volume, StopPips: s.params.InitialStopPips},
	}
}

func (s *progressive) Evaluate(in EvalInput) []Action {
	setup := in.Setup
	pip := in.PipSize
	sign := setup.Direction.Sign()

	leg1 := setup.LegByIndex(1)
	leg2 := setup.LegByIndex(2)
	leg3 := setup.LegByIndex(3)

	closing1 := leg1 != nil && setups.LegProfitPips(*leg1, pip) >= s.params.FirstTPPips
	closing2 := leg2 != nil && setups.LegProfitPips(*leg2, pip) >= s.params.SecondTPPips
	leg1Done := leg1 == nil || closing1
	leg2Done := leg2 == nil || closing2

	var actions []Action
	stopSet := make(map[int]bool)

	if closing1 {
		actions = append(actions, CloseLeg{Ticket: leg1.Ticket, LegIndex: 1, Reason: "first take profit reached"})
	}

	// First leg banked: the remaining legs cannot be allowed to lose.
	// Leg 3's breakeven is skipped when the lock below supersedes it.
	if leg1Done {
		if leg2 != nil && !closing2 && stopImproves(setup.Direction, leg2.StopLoss, leg2.EntryPrice) {
			actions = append(actions, SetStopLoss{Ticket: leg2.Ticket, LegIndex: 2, Price: leg2.EntryPrice})
			stopSet[2] = true
		}
		if leg3 != nil && !leg2Done && stopImproves(setup.Direction, leg3.StopLoss, leg3.EntryPrice) {
			actions = append(actions, SetStopLoss{Ticket: leg3.Ticket, LegIndex: 3, Price: leg3.EntryPrice})
			stopSet[3] = true
		}
	}

	if closing2 {
		actions = append(actions, CloseLeg{Ticket: leg2.Ticket, LegIndex: 2, Reason: "second take profit reached"})
	}

	// Both banked: lock the runner in at entry plus the offset.
	if leg1Done && leg2Done && leg3 != nil {
		locked := leg3.EntryPrice + sign*s.params.BreakevenOffsetPips*pip
		if stopImproves(setup.Direction, leg3.StopLoss, locked) {
			actions = append(actions, SetStopLoss{Ticket: leg3.Ticket, LegIndex: 3, Price: locked})
			stopSet[3] = true
		}
	}

	// Any still-open leg without a stop moves to breakeven once it is
	// far enough in profit, independent of the lock-in sequence.
	if s.params.BreakevenTriggerPips > 0 {
		for i := range setup.Legs {
			leg := &setup.Legs[i]
			if leg.StopLoss != 0 || stopSet[leg.LegIndex] {
				continue
			}
			if (leg.LegIndex == 1 && closing1) || (leg.LegIndex == 2 && closing2) {
				continue
			}
			if setups.LegProfitPips(*leg, pip) >= s.params.BreakevenTriggerPips {
				actions = append(actions, SetStopLoss{Ticket: leg.Ticket, LegIndex: leg.LegIndex, Price: leg.EntryPrice})
			}
		}
	}

	return actions
}
