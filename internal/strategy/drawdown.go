package strategy

import (
	"fmt"
	"math"

	"forex-trading-bot/internal/setups"
)

// DrawdownParams tunes averaging-down behavior. Distances are in pips.
type DrawdownParams struct {
	LayerTriggerPips   float64 `json:"layer_trigger_pips"`
	MaxLayers          int     `json:"max_layers"`
	LegsPerLayer       int     `json:"legs_per_layer"`
	MinTotalProfitPips float64 `json:"min_total_profit_pips"`
}

// drawdown adds averaging layers as price moves against the setup and
// keeps every leg's take profit at the blended breakeven plus a
// minimum profit margin. The layer count is derived from the live leg
// count, never stored, so duplicate layers cannot be opened after a
// restart.
type drawdown struct {
	params DrawdownParams
	volume float64
}

func newDrawdown(p DrawdownParams, volume float64) (*drawdown, error) {
	if p.LegsPerLayer <= 0 {
		return nil, fmt.Errorf("%w: legs per layer must be positive, got %d", ErrConfigurationConflict, p.LegsPerLayer)
	}
	if p.MaxLayers <= 0 {
		return nil, fmt.Errorf("%w: max layers must be positive, got %d", ErrConfigurationConflict, p.MaxLayers)
	}
	if p.LayerTriggerPips <= 0 {
		return nil, fmt.Errorf("%w: layer trigger must be positive, got %v", ErrConfigurationConflict, p.LayerTriggerPips)
	}
	return &drawdown{params: p, volume: volume}, nil
}

func (s *drawdown) Kind() Kind               { return KindDrawdownLayering }
func (s *drawdown) TagPrefix() setups.Prefix { return setups.PrefixMultiLeg }

func (s *drawdown) LegPlans() []LegPlan {
	plans := make([]LegPlan, s.params.LegsPerLayer)
	for i := range plans {
		plans[i] = LegPlan{Volume: s.volume, ProfitPips: s.params.MinTotalProfitPips}
	}
	return plans
}

func (s *drawdown) Evaluate(in EvalInput) []Action {
	setup := in.Setup
	pip := in.PipSize
	if len(setup.Legs) == 0 {
		return nil
	}

	sign := setup.Direction.Sign()
	price := setup.Legs[0].CurrentPrice
	avgEntry := setup.AvgEntryPrice()

	// Drawdown measured from the volume-weighted average entry.
	drawdownPips := (avgEntry - price) * sign / pip

	currentLayers := (len(setup.Legs) + s.params.LegsPerLayer - 1) / s.params.LegsPerLayer

	requiredLayers := 1
	if drawdownPips > 0 {
		requiredLayers = 1 + int(math.Floor(drawdownPips/s.params.LayerTriggerPips))
	}
	if requiredLayers > s.params.MaxLayers {
		requiredLayers = s.params.MaxLayers
	}

	var actions []Action
	targetAvg := avgEntry
	layering := requiredLayers > currentLayers

	// One layer per iteration; the next iteration re-measures with the
	// new legs included.
	if layering {
		actions = append(actions, AddLayer{Legs: s.params.LegsPerLayer, Volume: s.volume})

		// Blend the incoming layer at the current price so the target
		// already reflects it.
		layerVolume := s.volume * float64(s.params.LegsPerLayer)
		total := setup.TotalVolume() + layerVolume
		targetAvg = (avgEntry*setup.TotalVolume() + price*layerVolume) / total
	}

	// Once averaging is in play every leg exits together at blended
	// breakeven plus the margin. Untouched single-layer setups keep
	// their open-time targets.
	if layering || currentLayers > 1 {
		targetTP := targetAvg + sign*s.params.MinTotalProfitPips*pip
		for i := range setup.Legs {
			leg := &setup.Legs[i]
			if !priceEqual(leg.TakeProfit, targetTP) {
				actions = append(actions, SetTakeProfit{Ticket: leg.Ticket, LegIndex: leg.LegIndex, Price: targetTP})
			}
		}
	}

	return actions
}
