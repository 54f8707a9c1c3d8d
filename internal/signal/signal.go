// Package signal defines the entry-signal capability the bot consumes.
// Signal generation itself lives outside the engine; the loop only
// cares about the directional trigger pair per symbol.
package signal

import (
	"context"
	"sync"

	"forex-trading-bot/internal/strategy"
)

// Source produces the trigger state for a symbol at evaluation time.
type Source interface {
	Signal(ctx context.Context, symbol string) (strategy.Signal, error)
}

// Static serves fixed signals per symbol. Used for dry runs and tests;
// Set may be called concurrently with the loop.
type Static struct {
	mu      sync.RWMutex
	signals map[string]strategy.Signal
}

// NewStatic creates an empty static source.
func NewStatic() *Static {
	return &Static{signals: make(map[string]strategy.Signal)}
}

// Set overrides the signal for a symbol.
func (s *Static) Set(symbol string, sig strategy.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[symbol] = sig
}

// Clear removes the signal for a symbol.
func (s *Static) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signals, symbol)
}

// Signal returns the stored signal, or an empty one.
func (s *Static) Signal(_ context.Context, symbol string) (strategy.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signals[symbol], nil
}
