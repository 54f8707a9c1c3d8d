package setups

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"forex-trading-bot/internal/cache"
)

// Sequencer produces underscore-free setup IDs of the form
// "<yyyymmdd>-<seq>". The daily sequence comes from Redis when
// available so IDs stay unique across restarts; otherwise a local
// counter plus a random suffix is used.
type Sequencer struct {
	cache   *cache.Service
	account string
	log     zerolog.Logger

	mu       sync.Mutex
	lastDate string
	counter  int64
}

// NewSequencer creates a Sequencer. cache may be nil when Redis is
// disabled entirely.
func NewSequencer(cacheSvc *cache.Service, account string, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		cache:   cacheSvc,
		account: account,
		log:     log.With().Str("component", "sequencer").Logger(),
	}
}

// NewSetupID returns the next setup identifier for today (UTC).
func (s *Sequencer) NewSetupID(ctx context.Context) string {
	dateKey := time.Now().UTC().Format("20060102")

	if s.cache != nil {
		seq, err := s.cache.NextDailySequence(ctx, s.account, dateKey)
		if err == nil {
			return fmt.Sprintf("%s-%04d", dateKey, seq)
		}
		s.log.Warn().Err(err).Msg("redis sequence unavailable, using local fallback")
	}

	return s.localID(dateKey)
}

// TodaySequence reports how many setup IDs have been issued for the
// account today (UTC). Zero when Redis is disabled or unreachable.
func (s *Sequencer) TodaySequence(ctx context.Context) int64 {
	if s.cache == nil {
		return 0
	}
	dateKey := time.Now().UTC().Format("20060102")
	seq, err := s.cache.CurrentSequence(ctx, s.account, dateKey)
	if err != nil {
		s.log.Debug().Err(err).Msg("sequence read failed")
		return 0
	}
	return seq
}

// localID generates an ID from an in-process counter. A random suffix
// keeps IDs unique across process restarts within the same day.
func (s *Sequencer) localID(dateKey string) string {
	s.mu.Lock()
	if s.lastDate != dateKey {
		s.lastDate = dateKey
		s.counter = 0
	}
	s.counter++
	seq := s.counter
	s.mu.Unlock()

	return fmt.Sprintf("%s-%s%04d", dateKey, randomSuffix(), seq)
}

func randomSuffix() string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "0000"
	}
	return hex.EncodeToString(buf)
}
