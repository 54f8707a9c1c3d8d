package pip

import (
	"errors"
	"math"
	"testing"

	"forex-trading-bot/internal/broker"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name     string
		digits   int
		expected float64
	}{
		{name: "five digit major", digits: 5, expected: 0.0001},
		{name: "jpy style three digits", digits: 3, expected: 0.01},
		{name: "two digit metal", digits: 2, expected: 0.01},
		{name: "four digit quote", digits: 4, expected: 0.0001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Size(broker.SymbolMeta{Symbol: "TEST", Digits: tt.digits})
			if err != nil {
				t.Fatalf("Size() error = %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Size(digits=%d) = %v, want %v", tt.digits, got, tt.expected)
			}
		})
	}
}

func TestSizeUnknownSymbol(t *testing.T) {
	_, err := Size(broker.SymbolMeta{Symbol: "BOGUS", Digits: 0})
	if !errors.Is(err, broker.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	metas := []broker.SymbolMeta{
		{Symbol: "EURUSD", Digits: 5},
		{Symbol: "USDJPY", Digits: 3},
		{Symbol: "XAUUSD", Digits: 2},
	}
	deltas := []float64{0.0001, 0.0125, 1.5, -0.034}

	for _, meta := range metas {
		for _, delta := range deltas {
			pips, err := ToPips(meta, delta)
			if err != nil {
				t.Fatalf("ToPips(%s, %v) error = %v", meta.Symbol, delta, err)
			}
			back, err := ToPrice(meta, pips)
			if err != nil {
				t.Fatalf("ToPrice(%s, %v) error = %v", meta.Symbol, pips, err)
			}
			if math.Abs(back-delta) > 1e-9 {
				t.Errorf("%s: round trip of %v = %v", meta.Symbol, delta, back)
			}
		}
	}
}

func TestToPipsEURUSD(t *testing.T) {
	meta := broker.SymbolMeta{Symbol: "EURUSD", Digits: 5}
	pips, err := ToPips(meta, 0.0020)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pips-20) > 1e-9 {
		t.Errorf("ToPips(0.0020) = %v, want 20", pips)
	}
}
