package setups

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewSetupIDLocalFallback(t *testing.T) {
	s := NewSequencer(nil, "test", zerolog.Nop())
	dateKey := time.Now().UTC().Format("20060102")

	first := s.NewSetupID(context.Background())
	second := s.NewSetupID(context.Background())

	for _, id := range []string{first, second} {
		if !strings.HasPrefix(id, dateKey+"-") {
			t.Errorf("id %q does not start with %q", id, dateKey)
		}
		if strings.Contains(id[len(dateKey)+1:], "_") {
			t.Errorf("id %q contains an underscore after the date", id)
		}
	}
	if first == second {
		t.Errorf("consecutive ids collide: %q", first)
	}
}

func TestTodaySequenceWithoutCache(t *testing.T) {
	s := NewSequencer(nil, "test", zerolog.Nop())
	if got := s.TodaySequence(context.Background()); got != 0 {
		t.Errorf("TodaySequence() = %d, want 0", got)
	}
}
