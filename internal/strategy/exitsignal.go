package strategy

import (
	"forex-trading-bot/internal/broker"
	"forex-trading-bot/internal/setups"
)

// ExitSignalParams tunes signal-driven exits. Distances in pips.
type ExitSignalParams struct {
	MaxTPPips       float64 `json:"max_tp_pips"`
	ReentryCount    int     `json:"reentry_count"`
	InitialStopPips float64 `json:"initial_stop_pips"`
}

// exitSignal manages single positions that close on an opposite
// signal or once any leg reaches the maximum take-profit distance.
// While the setup is in drawdown, same-direction signals may re-enter
// up to the configured count; the re-entry budget is derived from the
// live leg count.
type exitSignal struct {
	params ExitSignalParams
	volume float64
}

func newExitSignal(p ExitSignalParams, volume float64) *exitSignal {
	return &exitSignal{params: p, volume: volume}
}

func (s *exitSignal) Kind() Kind               { return KindExitSignalOrMaxTP }
func (s *exitSignal) TagPrefix() setups.Prefix { return setups.PrefixExitSignal }

func (s *exitSignal) LegPlans() []LegPlan {
	return []LegPlan{
		{Volume: s.volume, StopPips: s.params.InitialStopPips, ProfitPips: s.params.MaxTPPips},
	}
}

func (s *exitSignal) Evaluate(in EvalInput) []Action {
	setup := in.Setup
	pip := in.PipSize

	// Any leg at max take profit closes the whole setup.
	if s.params.MaxTPPips > 0 {
		for i := range setup.Legs {
			if setups.LegProfitPips(setup.Legs[i], pip) >= s.params.MaxTPPips {
				return closeAll(setup, "max take profit reached")
			}
		}
	}

	// An opposite signal closes everything.
	if triggeredFor(in.Signal, setup.Direction.Opposite()) {
		return closeAll(setup, "opposite signal")
	}

	// A same-direction signal re-enters while the setup is underwater
	// and the budget allows another leg.
	if triggeredFor(in.Signal, setup.Direction) &&
		setup.AggregateProfitPips(pip) < 0 &&
		len(setup.Legs) < 1+s.params.ReentryCount {
		return []Action{AddLayer{Legs: 1, Volume: s.volume}}
	}

	return nil
}

// triggeredFor reports whether the signal fired for the direction.
func triggeredFor(sig Signal, dir broker.Direction) bool {
	if dir == broker.Long {
		return sig.LongTriggered
	}
	return sig.ShortTriggered
}

func closeAll(setup *setups.Setup, reason string) []Action {
	actions := make([]Action, 0, len(setup.Legs))
	for i := range setup.Legs {
		leg := setup.Legs[i]
		actions = append(actions, CloseLeg{Ticket: leg.Ticket, LegIndex: leg.LegIndex, Reason: reason})
	}
	return actions
}
