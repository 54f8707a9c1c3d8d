// Package pip converts between price distance and pip count for a symbol.
package pip

import (
	"fmt"
	"math"

	"forex-trading-bot/internal/broker"
)

// Size returns the price increment of one pip.
// JPY-style 3-digit quotes use 0.01 and 5-digit quotes use 0.0001; any
// other precision falls back to 10^-digits.
func Size(meta broker.SymbolMeta) (float64, error) {
	if meta.Digits <= 0 {
		return 0, fmt.Errorf("%w: %s (digits=%d)", broker.ErrUnknownSymbol, meta.Symbol, meta.Digits)
	}
	switch meta.Digits {
	case 3:
		return 0.01, nil
	case 5:
		return 0.0001, nil
	default:
		return math.Pow(10, -float64(meta.Digits)), nil
	}
}

// ToPips converts a price distance into pips.
func ToPips(meta broker.SymbolMeta, priceDelta float64) (float64, error) {
	size, err := Size(meta)
	if err != nil {
		return 0, err
	}
	return priceDelta / size, nil
}

// ToPrice converts a pip count into a price distance.
func ToPrice(meta broker.SymbolMeta, pips float64) (float64, error) {
	size, err := Size(meta)
	if err != nil {
		return 0, err
	}
	return pips * size, nil
}
