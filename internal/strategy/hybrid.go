package strategy

import (
	"forex-trading-bot/internal/setups"
)

// hybrid composes a profit-taking strategy with drawdown layering.
// Both evaluate every iteration; the profit side's actions run first
// so its stop moves are not shadowed by layering take-profit updates.
type hybrid struct {
	kind   Kind
	profit Strategy
	layers *drawdown
}

func newHybrid(kind Kind, profit Strategy, layers *drawdown) *hybrid {
	return &hybrid{kind: kind, profit: profit, layers: layers}
}

func (s *hybrid) Kind() Kind               { return s.kind }
func (s *hybrid) TagPrefix() setups.Prefix { return setups.PrefixMultiLeg }

// LegPlans opens the profit side's legs; layering legs only appear
// later through AddLayer actions.
func (s *hybrid) LegPlans() []LegPlan {
	return s.profit.LegPlans()
}

func (s *hybrid) Evaluate(in EvalInput) []Action {
	actions := s.profit.Evaluate(in)
	return append(actions, s.layers.Evaluate(in)...)
}
