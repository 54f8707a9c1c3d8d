package broker

import (
	"context"
	"errors"
	"testing"
)

func TestSimVenueOpenListClose(t *testing.T) {
	sim := NewSimVenue()
	sim.RegisterSymbol("EURUSD", 5)
	sim.SetPrice("EURUSD", 1.1000)
	ctx := context.Background()

	ticket, err := sim.OpenPosition(ctx, OpenRequest{
		Symbol:    "EURUSD",
		Direction: Long,
		Volume:    0.1,
		Tag:       "ACE_20250103-0001_1",
	})
	if err != nil {
		t.Fatal(err)
	}

	positions, err := sim.ListOpenPositions(ctx, "EURUSD")
	if err != nil || len(positions) != 1 {
		t.Fatalf("positions = %v, err = %v", positions, err)
	}
	if positions[0].EntryPrice != 1.1000 || positions[0].Tag != "ACE_20250103-0001_1" {
		t.Errorf("position = %+v", positions[0])
	}

	if err := sim.ClosePosition(ctx, ticket); err != nil {
		t.Fatal(err)
	}
	if err := sim.ClosePosition(ctx, ticket); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("double close error = %v, want ErrPositionNotFound", err)
	}
}

func TestSimVenueFillsLevels(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		sl        float64
		tp        float64
		price     float64
		filled    bool
	}{
		{"long stop hit", Long, 1.0950, 1.1100, 1.0940, true},
		{"long tp hit", Long, 1.0950, 1.1100, 1.1100, true},
		{"long untouched", Long, 1.0950, 1.1100, 1.1050, false},
		{"short stop hit", Short, 1.1050, 1.0900, 1.1060, true},
		{"short tp hit", Short, 1.1050, 1.0900, 1.0890, true},
		{"no levels", Long, 0, 0, 1.0000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimVenue()
			sim.RegisterSymbol("EURUSD", 5)
			sim.SetPrice("EURUSD", 1.1000)

			_, err := sim.OpenPosition(context.Background(), OpenRequest{
				Symbol:     "EURUSD",
				Direction:  tt.direction,
				Volume:     0.1,
				StopLoss:   tt.sl,
				TakeProfit: tt.tp,
			})
			if err != nil {
				t.Fatal(err)
			}

			sim.SetPrice("EURUSD", tt.price)

			open, _ := sim.ListOpenPositions(context.Background(), "EURUSD")
			closed := sim.ClosedPositions()
			if tt.filled {
				if len(open) != 0 || len(closed) != 1 {
					t.Errorf("open = %d, closed = %d, want fill", len(open), len(closed))
				}
			} else {
				if len(open) != 1 || len(closed) != 0 {
					t.Errorf("open = %d, closed = %d, want no fill", len(open), len(closed))
				}
			}
		})
	}
}

func TestSimVenueRejectsUnknownSymbol(t *testing.T) {
	sim := NewSimVenue()

	_, err := sim.OpenPosition(context.Background(), OpenRequest{Symbol: "EURUSD", Direction: Long, Volume: 0.1})
	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("open error = %v, want ErrOrderRejected", err)
	}

	_, err = sim.SymbolMeta(context.Background(), "EURUSD")
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("meta error = %v, want ErrUnknownSymbol", err)
	}
}
