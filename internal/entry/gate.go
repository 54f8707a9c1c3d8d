// Package entry decides whether a signal may open a new setup. The
// gate is pure: it looks at the signal, the clock and the current
// managed setups, and returns an allow/deny decision with a reason.
package entry

import (
	"time"

	"forex-trading-bot/internal/broker"
	"forex-trading-bot/internal/setups"
	"forex-trading-bot/internal/strategy"
)

// DenyReason explains why an entry was not taken.
type DenyReason string

const (
	ReasonNone                     DenyReason = ""
	ReasonNoSignal                 DenyReason = "NO_SIGNAL"
	ReasonExistingSetupOpen        DenyReason = "EXISTING_SETUP_OPEN"
	ReasonBlackoutWindow           DenyReason = "BLACKOUT_WINDOW"
	ReasonDirectionFiltered        DenyReason = "DIRECTION_FILTERED"
	ReasonStrategyCapacityExceeded DenyReason = "STRATEGY_CAPACITY_EXCEEDED"
)

// DirectionFilter restricts which signal directions are tradable.
type DirectionFilter string

const (
	FilterBoth      DirectionFilter = "both"
	FilterLongOnly  DirectionFilter = "long_only"
	FilterShortOnly DirectionFilter = "short_only"
)

// Config for the gate.
type Config struct {
	DirectionFilter DirectionFilter `json:"direction_filter"`
	// MaxConcurrentSetups caps managed setups of the strategy's prefix
	// across all symbols. Zero means no cap.
	MaxConcurrentSetups int `json:"max_concurrent_setups"`
}

// Decision is the gate's verdict for one iteration.
type Decision struct {
	Allow     bool
	Direction broker.Direction
	Reason    DenyReason
}

// Input is everything the gate consults.
type Input struct {
	Symbol  string
	Now     time.Time
	Signal  strategy.Signal
	Prefix  setups.Prefix
	Managed map[string]*setups.Setup
}

// Blackout is the consumed entry-suppression predicate: weekend
// windows, trading hours, news calendars. The schedule guard is the
// default implementation.
type Blackout interface {
	IsBlackout(symbol string, now time.Time) bool
}

// Gate applies the entry rules in a fixed order so deny reasons are
// deterministic: signal, direction filter, time windows, per-symbol
// exclusivity, capacity.
type Gate struct {
	cfg      Config
	blackout Blackout
}

// NewGate builds a gate. blackout may be nil to disable time checks.
func NewGate(cfg Config, blackout Blackout) *Gate {
	if cfg.DirectionFilter == "" {
		cfg.DirectionFilter = FilterBoth
	}
	return &Gate{cfg: cfg, blackout: blackout}
}

// Check returns whether a new setup may open for the symbol.
func (g *Gate) Check(in Input) Decision {
	dir, ok := signalDirection(in.Signal)
	if !ok {
		return Decision{Reason: ReasonNoSignal}
	}

	switch g.cfg.DirectionFilter {
	case FilterLongOnly:
		if dir != broker.Long {
			return Decision{Reason: ReasonDirectionFiltered}
		}
	case FilterShortOnly:
		if dir != broker.Short {
			return Decision{Reason: ReasonDirectionFiltered}
		}
	}

	if g.blackout != nil && g.blackout.IsBlackout(in.Symbol, in.Now) {
		return Decision{Reason: ReasonBlackoutWindow}
	}

	// Any managed setup on the symbol blocks a new entry, whatever
	// strategy family owns it. The capacity count stays per family.
	var total int
	for _, setup := range in.Managed {
		if setup.Symbol == in.Symbol {
			return Decision{Reason: ReasonExistingSetupOpen}
		}
		if setup.Prefix == in.Prefix {
			total++
		}
	}

	// Trailing setups cap concurrent exposure to a single leg, so the
	// family carries an implicit limit of one.
	limit := g.cfg.MaxConcurrentSetups
	if in.Prefix == setups.PrefixTrailing && (limit == 0 || limit > 1) {
		limit = 1
	}
	if limit > 0 && total >= limit {
		return Decision{Reason: ReasonStrategyCapacityExceeded}
	}

	return Decision{Allow: true, Direction: dir}
}

// signalDirection resolves the trade direction. Conflicting triggers
// cancel out rather than picking a side.
func signalDirection(sig strategy.Signal) (broker.Direction, bool) {
	switch {
	case sig.LongTriggered && sig.ShortTriggered:
		return "", false
	case sig.LongTriggered:
		return broker.Long, true
	case sig.ShortTriggered:
		return broker.Short, true
	default:
		return "", false
	}
}
