package schedule

import (
	"testing"
	"time"
)

func mustGuard(t *testing.T, cfg Config) *Guard {
	t.Helper()
	g, err := NewGuard(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func localTime(t *testing.T, g *Guard, value string) time.Time {
	t.Helper()
	tm, err := time.ParseInLocation("2006-01-02 15:04", value, g.Location())
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func TestInEntryBlackout(t *testing.T) {
	g := mustGuard(t, Config{})

	tests := []struct {
		name string
		when string // local time, 2025-01-06 is a Monday
		want bool
	}{
		{"saturday morning", "2025-01-04 10:00", true},
		{"sunday evening", "2025-01-05 22:00", true},
		{"monday before open", "2025-01-06 07:59", true},
		{"monday at open", "2025-01-06 08:00", false},
		{"wednesday", "2025-01-08 12:00", false},
		{"friday late", "2025-01-10 23:30", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.InEntryBlackout(localTime(t, g, tt.when)); got != tt.want {
				t.Errorf("InEntryBlackout(%s) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestInForceCloseWindow(t *testing.T) {
	g := mustGuard(t, Config{})

	tests := []struct {
		name string
		when string
		want bool
	}{
		{"saturday midnight", "2025-01-04 00:00", true},
		{"saturday four past", "2025-01-04 00:04", true},
		{"saturday five past", "2025-01-04 00:05", false},
		{"saturday noon", "2025-01-04 12:00", false},
		{"friday just before", "2025-01-03 23:59", false},
		{"sunday midnight", "2025-01-05 00:01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.InForceCloseWindow(localTime(t, g, tt.when)); got != tt.want {
				t.Errorf("InForceCloseWindow(%s) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestInForceCloseWindowConvertsTimezone(t *testing.T) {
	g := mustGuard(t, Config{})

	// Friday 16:00 UTC is Saturday 00:00 in Manila (UTC+8).
	utc := time.Date(2025, 1, 3, 16, 0, 0, 0, time.UTC)
	if !g.InForceCloseWindow(utc) {
		t.Error("expected force-close window for Friday 16:00 UTC")
	}
}

func TestInTradingHours(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		when string
		want bool
	}{
		{"unrestricted", Config{}, "2025-01-08 03:00", true},
		{"inside window", Config{TradingStartHour: 9, TradingEndHour: 17}, "2025-01-08 12:00", true},
		{"before window", Config{TradingStartHour: 9, TradingEndHour: 17}, "2025-01-08 08:59", false},
		{"at end", Config{TradingStartHour: 9, TradingEndHour: 17}, "2025-01-08 17:00", false},
		{"overnight inside late", Config{TradingStartHour: 22, TradingEndHour: 6}, "2025-01-08 23:00", true},
		{"overnight inside early", Config{TradingStartHour: 22, TradingEndHour: 6}, "2025-01-08 03:00", true},
		{"overnight outside", Config{TradingStartHour: 22, TradingEndHour: 6}, "2025-01-08 12:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGuard(t, tt.cfg)
			if got := g.InTradingHours(localTime(t, g, tt.when)); got != tt.want {
				t.Errorf("InTradingHours(%s) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestIsBlackout(t *testing.T) {
	g := mustGuard(t, Config{TradingStartHour: 9, TradingEndHour: 17})

	tests := []struct {
		name string
		when string
		want bool
	}{
		{"weekend", "2025-01-04 12:00", true},
		{"outside trading hours", "2025-01-08 20:00", true},
		{"trading hours", "2025-01-08 12:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.IsBlackout("EURUSD", localTime(t, g, tt.when)); got != tt.want {
				t.Errorf("IsBlackout(%s) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestNewGuardBadTimezone(t *testing.T) {
	if _, err := NewGuard(Config{Timezone: "Mars/Olympus"}); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
