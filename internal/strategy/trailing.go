package strategy

import (
	"forex-trading-bot/internal/setups"
)

// TrailingParams tunes the two-stage trailing stop. Distances in pips.
type TrailingParams struct {
	BreakevenTriggerPips float64 `json:"breakeven_trigger_pips"`
	LockTriggerPips      float64 `json:"lock_trigger_pips"`
	LockAmountPips       float64 `json:"lock_amount_pips"`
	InitialStopPips      float64 `json:"initial_stop_pips"`
	ProfitPips           float64 `json:"profit_pips"`
}

// trailing manages a single leg through two ratchet stages: stop to
// entry once breakeven distance is reached, then stop to entry plus
// the lock amount once the lock distance is reached. The stage is
// re-derived from the current stop relative to entry, so it survives
// restarts and repeated evaluation without moving the stop backward.
type trailing struct {
	params TrailingParams
	volume float64
}

func newTrailing(p TrailingParams, volume float64) *trailing {
	return &trailing{params: p, volume: volume}
}

func (s *trailing) Kind() Kind               { return KindTrailingStop }
func (s *trailing) TagPrefix() setups.Prefix { return setups.PrefixTrailing }

func (s *trailing) LegPlans() []LegPlan {
	return []LegPlan{
		{Volume: s.volume, StopPips: s.params.InitialStopPips, ProfitPips: s.params.ProfitPips},
	}
}

func (s *trailing) Evaluate(in EvalInput) []Action {
	setup := in.Setup
	pip := in.PipSize
	if len(setup.Legs) == 0 {
		return nil
	}

	leg := setup.Legs[0]
	sign := setup.Direction.Sign()
	profit := setups.LegProfitPips(leg, pip)

	var desired float64
	switch {
	case s.params.LockTriggerPips > 0 && profit >= s.params.LockTriggerPips:
		desired = leg.EntryPrice + sign*s.params.LockAmountPips*pip
	case s.params.BreakevenTriggerPips > 0 && profit >= s.params.BreakevenTriggerPips:
		desired = leg.EntryPrice
	default:
		return nil
	}

	if !stopImproves(setup.Direction, leg.StopLoss, desired) {
		return nil
	}
	return []Action{SetStopLoss{Ticket: leg.Ticket, LegIndex: leg.LegIndex, Price: desired}}
}
