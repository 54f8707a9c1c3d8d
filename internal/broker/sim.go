package broker

import (
	"context"
	"fmt"
	"sync"
)

// SimVenue is an in-memory Venue used for dry-run mode and tests.
// Prices are pushed in by the caller; stop loss and take profit levels
// are honored on each price update the way the real venue would fill
// them server-side.
type SimVenue struct {
	mu         sync.Mutex
	nextTicket int64
	meta       map[string]SymbolMeta
	prices     map[string]float64
	positions  map[int64]*Position
	closed     []Position
}

// NewSimVenue creates an empty simulated venue.
func NewSimVenue() *SimVenue {
	return &SimVenue{
		nextTicket: 1000,
		meta:       make(map[string]SymbolMeta),
		prices:     make(map[string]float64),
		positions:  make(map[int64]*Position),
	}
}

// RegisterSymbol makes a symbol tradable with the given quoting precision.
func (s *SimVenue) RegisterSymbol(symbol string, digits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[symbol] = SymbolMeta{Symbol: symbol, Digits: digits}
}

// SetPrice updates the market price for a symbol and fills any stop or
// take profit levels the move crossed.
func (s *SimVenue) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[symbol] = price
	for ticket, pos := range s.positions {
		if pos.Symbol != symbol {
			continue
		}
		pos.CurrentPrice = price
		if s.levelHit(pos, price) {
			pos.CurrentPrice = price
			s.closed = append(s.closed, *pos)
			delete(s.positions, ticket)
		}
	}
}

func (s *SimVenue) levelHit(pos *Position, price float64) bool {
	if pos.Direction == Long {
		if pos.StopLoss != 0 && price <= pos.StopLoss {
			return true
		}
		if pos.TakeProfit != 0 && price >= pos.TakeProfit {
			return true
		}
		return false
	}
	if pos.StopLoss != 0 && price >= pos.StopLoss {
		return true
	}
	if pos.TakeProfit != 0 && price <= pos.TakeProfit {
		return true
	}
	return false
}

func (s *SimVenue) OpenPosition(ctx context.Context, req OpenRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[req.Symbol]
	if !ok {
		return 0, fmt.Errorf("%w: no price for %s", ErrOrderRejected, req.Symbol)
	}
	if req.Volume <= 0 {
		return 0, fmt.Errorf("%w: volume %.2f", ErrOrderRejected, req.Volume)
	}

	s.nextTicket++
	ticket := s.nextTicket
	s.positions[ticket] = &Position{
		Ticket:       ticket,
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		Volume:       req.Volume,
		EntryPrice:   price,
		CurrentPrice: price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Tag:          req.Tag,
	}
	return ticket, nil
}

func (s *SimVenue) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d", ErrPositionNotFound, ticket)
	}
	if stopLoss != nil {
		pos.StopLoss = *stopLoss
	}
	if takeProfit != nil {
		pos.TakeProfit = *takeProfit
	}
	return nil
}

func (s *SimVenue) ClosePosition(ctx context.Context, ticket int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d", ErrPositionNotFound, ticket)
	}
	s.closed = append(s.closed, *pos)
	delete(s.positions, ticket)
	return nil
}

func (s *SimVenue) ListOpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Position
	for _, pos := range s.positions {
		if symbol == "" || pos.Symbol == symbol {
			out = append(out, *pos)
		}
	}
	return out, nil
}

func (s *SimVenue) SymbolMeta(ctx context.Context, symbol string) (SymbolMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.meta[symbol]
	if !ok {
		return SymbolMeta{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return meta, nil
}

// ClosedPositions returns positions closed so far, oldest first.
func (s *SimVenue) ClosedPositions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, len(s.closed))
	copy(out, s.closed)
	return out
}
