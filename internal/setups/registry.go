package setups

import (
	"sort"

	"forex-trading-bot/internal/broker"
)

// Leg is a broker position together with its decoded tag.
type Leg struct {
	broker.Position
	LegIndex int
}

// Setup is a group of legs sharing one setup ID. Legs are always
// sorted by leg index. Setups are rebuilt from broker state on every
// iteration and never persisted.
type Setup struct {
	ID        string
	Prefix    Prefix
	Symbol    string
	Direction broker.Direction
	Legs      []Leg
}

// GroupLegs partitions open positions into managed setups keyed by
// setup ID plus an unmanaged bucket. Positions with missing or
// malformed tags go to the unmanaged bucket and are never modified.
func GroupLegs(positions []broker.Position) (map[string]*Setup, []broker.Position) {
	managed := make(map[string]*Setup)
	var unmanaged []broker.Position

	for _, pos := range positions {
		tag, err := ParseTag(pos.Tag)
		if err != nil {
			unmanaged = append(unmanaged, pos)
			continue
		}

		setup, ok := managed[tag.SetupID]
		if !ok {
			setup = &Setup{
				ID:        tag.SetupID,
				Prefix:    tag.Prefix,
				Symbol:    pos.Symbol,
				Direction: pos.Direction,
			}
			managed[tag.SetupID] = setup
		}
		setup.Legs = append(setup.Legs, Leg{Position: pos, LegIndex: tag.LegIndex})
	}

	for _, setup := range managed {
		sort.Slice(setup.Legs, func(i, j int) bool {
			return setup.Legs[i].LegIndex < setup.Legs[j].LegIndex
		})
	}

	return managed, unmanaged
}

// Registry owns the setup tree for one control loop iteration. It is
// rebuilt from broker-reported positions at the start of the iteration
// and kept in step with the closes and opens applied during it, so
// later stages of the same pass see the book as it now stands.
type Registry struct {
	setups    map[string]*Setup
	unmanaged []broker.Position
}

// NewRegistry builds a registry from the broker's open positions.
func NewRegistry(positions []broker.Position) *Registry {
	managed, unmanaged := GroupLegs(positions)
	return &Registry{setups: managed, unmanaged: unmanaged}
}

// Setups returns the managed setups keyed by setup ID.
func (r *Registry) Setups() map[string]*Setup { return r.setups }

// Unmanaged returns positions whose tags could not be parsed. The
// engine never modifies these.
func (r *Registry) Unmanaged() []broker.Position { return r.unmanaged }

// Get returns the setup with the given ID, or nil.
func (r *Registry) Get(id string) *Setup { return r.setups[id] }

// RecordNewSetup inserts a freshly opened setup into the registry.
func (r *Registry) RecordNewSetup(s *Setup) {
	if r.setups == nil {
		r.setups = make(map[string]*Setup)
	}
	r.setups[s.ID] = s
}

// RemoveClosedLegs prunes legs whose tickets are no longer open and
// drops the setup entirely once its last leg is gone.
func (r *Registry) RemoveClosedLegs(id string, stillOpen map[int64]bool) {
	setup, ok := r.setups[id]
	if !ok {
		return
	}
	kept := setup.Legs[:0]
	for _, leg := range setup.Legs {
		if stillOpen[leg.Ticket] {
			kept = append(kept, leg)
		}
	}
	setup.Legs = kept
	if len(setup.Legs) == 0 {
		delete(r.setups, id)
	}
}

// TotalVolume returns the summed volume of all legs.
func (s *Setup) TotalVolume() float64 {
	var total float64
	for _, leg := range s.Legs {
		total += leg.Volume
	}
	return total
}

// AvgEntryPrice returns the volume-weighted average entry price.
func (s *Setup) AvgEntryPrice() float64 {
	total := s.TotalVolume()
	if total == 0 {
		return 0
	}
	var weighted float64
	for _, leg := range s.Legs {
		weighted += leg.EntryPrice * leg.Volume
	}
	return weighted / total
}

// LegProfitPips returns the signed profit of a single leg in pips.
// Positive means the position moved in the trade direction.
func LegProfitPips(leg Leg, pipSize float64) float64 {
	return (leg.CurrentPrice - leg.EntryPrice) * leg.Direction.Sign() / pipSize
}

// AggregateProfitPips returns the volume-weighted sum of per-leg
// profit in pips. The sign answers whether the setup as a whole is in
// profit or drawdown.
func (s *Setup) AggregateProfitPips(pipSize float64) float64 {
	var total float64
	for _, leg := range s.Legs {
		total += LegProfitPips(leg, pipSize) * leg.Volume
	}
	return total
}

// NextLegIndex returns the index the next opened leg should carry,
// continuing the setup's existing sequence. Leg indexes are 1-based.
func (s *Setup) NextLegIndex() int {
	next := 1
	for _, leg := range s.Legs {
		if leg.LegIndex >= next {
			next = leg.LegIndex + 1
		}
	}
	return next
}

// LegByIndex returns the leg with the given index, or nil.
func (s *Setup) LegByIndex(idx int) *Leg {
	for i := range s.Legs {
		if s.Legs[i].LegIndex == idx {
			return &s.Legs[i]
		}
	}
	return nil
}

// BySymbol filters setups to those trading the given symbol.
func BySymbol(managed map[string]*Setup, symbol string) []*Setup {
	var out []*Setup
	for _, setup := range managed {
		if setup.Symbol == symbol {
			out = append(out, setup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
