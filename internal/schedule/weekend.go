// Package schedule gates trading activity by wall-clock time. All
// decisions are made in the broker's local timezone so weekend
// boundaries line up with the venue, not the host.
package schedule

import (
	"fmt"
	"time"
)

// DefaultTimezone matches the broker server clock.
const DefaultTimezone = "Asia/Manila"

// Force-close runs in a short window right after the weekly close so
// it fires exactly once per weekend even with slow iterations.
const forceCloseWindow = 5 * time.Minute

// Config drives the guard. Zero TradingStartHour/TradingEndHour means
// no intraday restriction.
type Config struct {
	Timezone         string `json:"timezone"`
	TradingStartHour int    `json:"trading_start_hour"`
	TradingEndHour   int    `json:"trading_end_hour"`
	MondayOpenHour   int    `json:"monday_open_hour"`
}

// Guard answers whether the bot may open positions and whether the
// weekend force-close should run.
type Guard struct {
	loc            *time.Location
	tradingStart   int
	tradingEnd     int
	mondayOpenHour int
}

// NewGuard builds a guard for the configured timezone.
func NewGuard(cfg Config) (*Guard, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	mondayOpen := cfg.MondayOpenHour
	if mondayOpen == 0 {
		mondayOpen = 8
	}

	return &Guard{
		loc:            loc,
		tradingStart:   cfg.TradingStartHour,
		tradingEnd:     cfg.TradingEndHour,
		mondayOpenHour: mondayOpen,
	}, nil
}

// InEntryBlackout reports whether new entries are forbidden: all of
// Saturday and Sunday, plus Monday before the market has settled.
func (g *Guard) InEntryBlackout(t time.Time) bool {
	local := t.In(g.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	case time.Monday:
		return local.Hour() < g.mondayOpenHour
	}
	return false
}

// InForceCloseWindow reports whether the weekend force-close should
// run: the first minutes of Saturday, local time.
func (g *Guard) InForceCloseWindow(t time.Time) bool {
	local := t.In(g.loc)
	if local.Weekday() != time.Saturday {
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)
	return local.Sub(midnight) < forceCloseWindow
}

// InTradingHours reports whether the intraday window allows entries.
// Start == end disables the restriction. Windows spanning midnight
// (start > end) are supported.
func (g *Guard) InTradingHours(t time.Time) bool {
	if g.tradingStart == g.tradingEnd {
		return true
	}
	hour := t.In(g.loc).Hour()
	if g.tradingStart < g.tradingEnd {
		return hour >= g.tradingStart && hour < g.tradingEnd
	}
	return hour >= g.tradingStart || hour < g.tradingEnd
}

// IsBlackout reports whether new entries are suppressed right now:
// the weekend blackout or an intraday window closed. The symbol is
// unused here but part of the predicate contract so calendar-based
// implementations can discriminate per market.
func (g *Guard) IsBlackout(symbol string, t time.Time) bool {
	return g.InEntryBlackout(t) || !g.InTradingHours(t)
}

// Location exposes the guard's timezone for logging.
func (g *Guard) Location() *time.Location {
	return g.loc
}
