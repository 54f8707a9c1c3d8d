package setups

import (
	"math"
	"testing"

	"forex-trading-bot/internal/broker"
)

func pos(ticket int64, symbol string, dir broker.Direction, volume, entry, current float64, tag string) broker.Position {
	return broker.Position{
		Ticket:       ticket,
		Symbol:       symbol,
		Direction:    dir,
		Volume:       volume,
		EntryPrice:   entry,
		CurrentPrice: current,
		Tag:          tag,
	}
}

func TestGroupLegs(t *testing.T) {
	positions := []broker.Position{
		pos(3, "EURUSD", broker.Long, 0.1, 1.1000, 1.1010, "ACE_20250103-0001_3"),
		pos(1, "EURUSD", broker.Long, 0.1, 1.1000, 1.1010, "ACE_20250103-0001_1"),
		pos(2, "EURUSD", broker.Long, 0.1, 1.1000, 1.1010, "ACE_20250103-0001_2"),
		pos(4, "USDJPY", broker.Short, 0.2, 148.50, 148.40, "TSL_20250103-0002_1"),
		pos(5, "GBPUSD", broker.Long, 0.5, 1.2500, 1.2490, "manual trade"),
		pos(6, "GBPUSD", broker.Long, 0.5, 1.2500, 1.2490, ""),
	}

	managed, unmanaged := GroupLegs(positions)

	if len(managed) != 2 {
		t.Fatalf("managed setups = %d, want 2", len(managed))
	}
	if len(unmanaged) != 2 {
		t.Fatalf("unmanaged positions = %d, want 2", len(unmanaged))
	}

	ace, ok := managed["20250103-0001"]
	if !ok {
		t.Fatal("setup 20250103-0001 not found")
	}
	if ace.Prefix != PrefixMultiLeg || ace.Symbol != "EURUSD" || ace.Direction != broker.Long {
		t.Errorf("setup metadata = %+v", ace)
	}
	if len(ace.Legs) != 3 {
		t.Fatalf("legs = %d, want 3", len(ace.Legs))
	}
	for i, leg := range ace.Legs {
		if leg.LegIndex != i+1 {
			t.Errorf("legs not sorted: position %d has leg index %d", i, leg.LegIndex)
		}
	}

	tsl := managed["20250103-0002"]
	if tsl == nil || tsl.Prefix != PrefixTrailing || len(tsl.Legs) != 1 {
		t.Errorf("trailing setup = %+v", tsl)
	}
}

func TestGroupLegsBareNumericSetupID(t *testing.T) {
	managed, unmanaged := GroupLegs([]broker.Position{
		pos(1, "EURUSD", broker.Long, 0.1, 1.1, 1.1, "ACE_42_2"),
		pos(2, "EURUSD", broker.Long, 0.1, 1.1, 1.1, "garbage"),
	})

	setup := managed["42"]
	if setup == nil || len(setup.Legs) != 1 || setup.Legs[0].LegIndex != 2 {
		t.Fatalf("setup 42 = %+v", setup)
	}
	if len(unmanaged) != 1 || unmanaged[0].Ticket != 2 {
		t.Errorf("unmanaged = %+v", unmanaged)
	}
}

func TestGroupLegsAllUnmanaged(t *testing.T) {
	positions := []broker.Position{
		pos(1, "EURUSD", broker.Long, 0.1, 1.1, 1.1, "hedge"),
	}
	managed, unmanaged := GroupLegs(positions)
	if len(managed) != 0 || len(unmanaged) != 1 {
		t.Errorf("managed = %d, unmanaged = %d", len(managed), len(unmanaged))
	}
}

func TestRegistryRemoveClosedLegs(t *testing.T) {
	reg := NewRegistry([]broker.Position{
		pos(1, "EURUSD", broker.Long, 0.1, 1.1000, 1.1010, "ACE_20250103-0001_1"),
		pos(2, "EURUSD", broker.Long, 0.1, 1.1000, 1.1010, "ACE_20250103-0001_2"),
		pos(3, "EURUSD", broker.Long, 0.1, 1.1000, 1.1010, "ACE_20250103-0001_3"),
	})

	reg.RemoveClosedLegs("20250103-0001", map[int64]bool{2: true, 3: true})
	setup := reg.Get("20250103-0001")
	if setup == nil || len(setup.Legs) != 2 {
		t.Fatalf("setup after prune = %+v", setup)
	}
	if setup.Legs[0].Ticket != 2 || setup.Legs[1].Ticket != 3 {
		t.Errorf("kept tickets = %d, %d, want 2, 3", setup.Legs[0].Ticket, setup.Legs[1].Ticket)
	}

	// Last leg gone: the setup goes with it.
	reg.RemoveClosedLegs("20250103-0001", map[int64]bool{})
	if reg.Get("20250103-0001") != nil {
		t.Error("expected setup removed once empty")
	}

	// Unknown setup ID is a no-op.
	reg.RemoveClosedLegs("missing", map[int64]bool{})
}

func TestRegistryRecordNewSetup(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RecordNewSetup(&Setup{
		ID:        "20250103-0005",
		Prefix:    PrefixTrailing,
		Symbol:    "USDJPY",
		Direction: broker.Short,
		Legs:      []Leg{{Position: pos(9, "USDJPY", broker.Short, 0.2, 148.50, 148.50, "TSL_20250103-0005_1"), LegIndex: 1}},
	})

	if got := reg.Get("20250103-0005"); got == nil || len(got.Legs) != 1 {
		t.Fatalf("recorded setup = %+v", got)
	}
	if len(reg.Setups()) != 1 {
		t.Errorf("setups = %d, want 1", len(reg.Setups()))
	}
}

func TestAvgEntryPrice(t *testing.T) {
	s := &Setup{Legs: []Leg{
		{Position: pos(1, "EURUSD", broker.Long, 0.1, 1.1000, 1.1000, ""), LegIndex: 1},
		{Position: pos(2, "EURUSD", broker.Long, 0.3, 1.0960, 1.1000, ""), LegIndex: 2},
	}}

	want := (1.1000*0.1 + 1.0960*0.3) / 0.4
	if got := s.AvgEntryPrice(); math.Abs(got-want) > 1e-9 {
		t.Errorf("AvgEntryPrice() = %v, want %v", got, want)
	}
}

func TestAggregateProfitPips(t *testing.T) {
	pipSize := 0.0001

	tests := []struct {
		name string
		legs []Leg
		sign int
	}{
		{
			"long in profit",
			[]Leg{{Position: pos(1, "EURUSD", broker.Long, 0.1, 1.1000, 1.1050, ""), LegIndex: 1}},
			1,
		},
		{
			"short in profit",
			[]Leg{{Position: pos(1, "EURUSD", broker.Short, 0.1, 1.1000, 1.0950, ""), LegIndex: 1}},
			1,
		},
		{
			"long in drawdown",
			[]Leg{{Position: pos(1, "EURUSD", broker.Long, 0.1, 1.1000, 1.0900, ""), LegIndex: 1}},
			-1,
		},
		{
			"mixed nets negative",
			[]Leg{
				{Position: pos(1, "EURUSD", broker.Long, 0.1, 1.1000, 1.0950, ""), LegIndex: 1},
				{Position: pos(2, "EURUSD", broker.Long, 0.1, 1.0980, 1.0950, ""), LegIndex: 2},
			},
			-1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Setup{Legs: tt.legs}
			got := s.AggregateProfitPips(pipSize)
			switch {
			case tt.sign > 0 && got <= 0:
				t.Errorf("AggregateProfitPips() = %v, want positive", got)
			case tt.sign < 0 && got >= 0:
				t.Errorf("AggregateProfitPips() = %v, want negative", got)
			}
		})
	}
}

func TestNextLegIndex(t *testing.T) {
	s := &Setup{Legs: []Leg{
		{LegIndex: 1},
		{LegIndex: 3},
	}}
	if got := s.NextLegIndex(); got != 4 {
		t.Errorf("NextLegIndex() = %d, want 4", got)
	}

	empty := &Setup{}
	if got := empty.NextLegIndex(); got != 1 {
		t.Errorf("NextLegIndex() on empty = %d, want 1", got)
	}
}
