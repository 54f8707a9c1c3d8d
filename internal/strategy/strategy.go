// Package strategy implements the exit management strategies. Every
// strategy is a pure evaluator: it looks at the current legs of a
// setup and returns the actions needed to converge toward its target
// state. Nothing is remembered between iterations; all decisions are
// recomputed from broker state.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"forex-trading-bot/internal/broker"
	"forex-trading-bot/internal/setups"
)

// ErrConfigurationConflict marks strategy configurations that cannot
// be satisfied, such as a trailing stop with more than one leg.
var ErrConfigurationConflict = errors.New("strategy configuration conflict")

// Kind names a strategy variant.
type Kind string

const (
	KindProgressiveLockIn         Kind = "progressive_lock_in"
	KindDrawdownLayering          Kind = "drawdown_layering"
	KindTrailingStop              Kind = "trailing_stop"
	KindHybridProgressiveDrawdown Kind = "hybrid_progressive_drawdown"
	KindHybridTrailingDrawdown    Kind = "hybrid_trailing_drawdown"
	KindExitSignalOrMaxTP         Kind = "exit_signal_or_max_tp"
)

// Signal carries the directional trigger state for one iteration.
type Signal struct {
	LongTriggered  bool
	ShortTriggered bool
}

// Action is an intent produced by evaluation. The control loop applies
// actions against the broker; strategies never touch the broker.
type Action interface {
	Describe() string
}

// CloseLeg closes one leg of a setup.
type CloseLeg struct {
	Ticket   int64
	LegIndex int
	Reason   string
}

func (a CloseLeg) Describe() string {
	return fmt.Sprintf("close leg %d (ticket %d): %s", a.LegIndex, a.Ticket, a.Reason)
}

// SetStopLoss moves the stop of one leg.
type SetStopLoss struct {
	Ticket   int64
	LegIndex int
	Price    float64
}

func (a SetStopLoss) Describe() string {
	return fmt.Sprintf("set stop loss on leg %d (ticket %d) to %.5f", a.LegIndex, a.Ticket, a.Price)
}

// SetTakeProfit moves the take profit of one leg.
type SetTakeProfit struct {
	Ticket   int64
	LegIndex int
	Price    float64
}

func (a SetTakeProfit) Describe() string {
	return fmt.Sprintf("set take profit on leg %d (ticket %d) to %.5f", a.LegIndex, a.Ticket, a.Price)
}

// AddLayer requests a new averaging layer. The control loop opens the
// legs with the setup's symbol, direction and tag sequence.
type AddLayer struct {
	Legs   int
	Volume float64
}

func (a AddLayer) Describe() string {
	return fmt.Sprintf("add layer of %d leg(s), volume %.2f each", a.Legs, a.Volume)
}

// LegPlan describes one leg of a new setup. Zero stop or profit
// distance means the level is left unset at open.
type LegPlan struct {
	Volume     float64
	StopPips   float64
	ProfitPips float64
}

// EvalInput is everything a strategy may consult during evaluation.
type EvalInput struct {
	Setup   *setups.Setup
	PipSize float64
	Signal  Signal
}

// Strategy evaluates one setup per iteration and plans new setups.
type Strategy interface {
	Kind() Kind
	TagPrefix() setups.Prefix
	// LegPlans returns the legs a fresh setup opens with.
	LegPlans() []LegPlan
	// Evaluate returns the actions to apply for the given setup.
	Evaluate(in EvalInput) []Action
}

// Config aggregates the per-variant parameter blocks. Only the block
// matching Kind is read.
type Config struct {
	Kind        Kind              `json:"kind"`
	Legs        int               `json:"legs"`
	LegVolume   float64           `json:"leg_volume"`
	Progressive ProgressiveParams `json:"progressive"`
	Drawdown    DrawdownParams    `json:"drawdown"`
	Trailing    TrailingParams    `json:"trailing"`
	ExitSignal  ExitSignalParams  `json:"exit_signal"`
}

// New builds the strategy for the given configuration. Unsatisfiable
// combinations fail fast with ErrConfigurationConflict.
func New(cfg Config) (Strategy, error) {
	if cfg.LegVolume <= 0 {
		return nil, fmt.Errorf("%w: leg volume must be positive, got %v", ErrConfigurationConflict, cfg.LegVolume)
	}

	switch cfg.Kind {
	case KindProgressiveLockIn:
		return newProgressive(cfg.Progressive, cfg.LegVolume), nil
	case KindDrawdownLayering:
		return newDrawdown(cfg.Drawdown, cfg.LegVolume)
	case KindTrailingStop:
		if cfg.Legs > 1 {
			return nil, fmt.Errorf("%w: trailing stop manages a single leg, got %d", ErrConfigurationConflict, cfg.Legs)
		}
		return newTrailing(cfg.Trailing, cfg.LegVolume), nil
	case KindHybridProgressiveDrawdown:
		dd, err := newDrawdown(cfg.Drawdown, cfg.LegVolume)
		if err != nil {
			return nil, err
		}
		return newHybrid(KindHybridProgressiveDrawdown, newProgressive(cfg.Progressive, cfg.LegVolume), dd), nil
	case KindHybridTrailingDrawdown:
		dd, err := newDrawdown(cfg.Drawdown, cfg.LegVolume)
		if err != nil {
			return nil, err
		}
		return newHybrid(KindHybridTrailingDrawdown, newTrailing(cfg.Trailing, cfg.LegVolume), dd), nil
	case KindExitSignalOrMaxTP:
		return newExitSignal(cfg.ExitSignal, cfg.LegVolume), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy kind %q", ErrConfigurationConflict, cfg.Kind)
	}
}

// stopImproves reports whether moving the stop from current to
// proposed advances it in the profit direction. Stops never move
// backward; an unset stop (0) accepts any level.
func stopImproves(dir broker.Direction, current, proposed float64) bool {
	if proposed == 0 {
		return false
	}
	if current == 0 {
		return true
	}
	return (proposed-current)*dir.Sign() > 1e-9
}

// priceEqual compares two levels with a tolerance well below any pip
// size in use.
func priceEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}
