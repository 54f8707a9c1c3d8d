// Package broker defines the venue capability the bot trades against.
// The real MT5 bridge lives outside this repository; everything here is
// expressed against the Venue interface so the engine never touches
// connection state directly.
package broker

import (
	"context"
	"errors"
)

// Direction of a position or setup.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for long and -1 for short, used when projecting a pip
// distance into the profit direction.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Errors for venue operations
var (
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrOrderRejected     = errors.New("order rejected")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrPositionNotFound  = errors.New("position not found")
)

// SymbolMeta describes how a symbol is quoted.
type SymbolMeta struct {
	Symbol string `json:"symbol"`
	Digits int    `json:"digits"` // quoted-price precision, drives pip size
}

// Position is one broker-held position as the venue reports it.
// Tag is the opaque comment string written at open time; it is the only
// metadata channel the venue offers and carries the setup/leg identity.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	Volume       float64   `json:"volume"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	StopLoss     float64   `json:"stop_loss"`   // 0 = not set
	TakeProfit   float64   `json:"take_profit"` // 0 = not set
	Tag          string    `json:"tag"`
}

// OpenRequest carries everything needed to open one position.
type OpenRequest struct {
	Symbol     string
	Direction  Direction
	Volume     float64
	StopLoss   float64
	TakeProfit float64
	Tag        string
}

// Venue is the consumed broker capability. Implementations own their
// timeout and retry policy; callers pass a context and treat every call
// as fallible. There is no transactional guarantee across calls.
type Venue interface {
	// OpenPosition opens a market position and returns the broker ticket.
	OpenPosition(ctx context.Context, req OpenRequest) (int64, error)
	// ModifyPosition updates stop loss and/or take profit. A nil pointer
	// leaves the corresponding level unchanged.
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit *float64) error
	// ClosePosition closes the position at market.
	ClosePosition(ctx context.Context, ticket int64) error
	// ListOpenPositions returns all open positions for the symbol with
	// current prices filled in.
	ListOpenPositions(ctx context.Context, symbol string) ([]Position, error)
	// SymbolMeta returns quoting metadata for the symbol.
	SymbolMeta(ctx context.Context, symbol string) (SymbolMeta, error)
}

// Float64Ptr is a small helper for building ModifyPosition arguments.
func Float64Ptr(v float64) *float64 { return &v }
