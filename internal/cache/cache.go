// Package cache provides a Redis-backed sequence service used for
// setup identifier generation. Redis is optional: when unavailable the
// service reports unhealthy so callers fall back to local generation.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds Redis connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Daily sequence key: sequence:<account>:<yyyymmdd>
const sequenceKeyFormat = "sequence:%s:%s"

// 48h TTL so sequences survive timezone edge cases around midnight.
const sequenceTTL = 48 * time.Hour

// Service provides Redis-backed sequences with graceful degradation.
// A simple circuit breaker marks the service unhealthy after repeated
// failures and probes for recovery in the background.
type Service struct {
	client *redis.Client
	log    zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewService creates a sequence service from the given configuration.
// A failed initial connection is not an error; the service starts in
// degraded mode and recovers when Redis becomes reachable.
func NewService(cfg Config, log zerolog.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:        client,
		log:           log.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.log.Warn().Err(err).Msg("initial redis connection failed, starting in degraded mode")
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.log.Info().Str("address", cfg.Address).Msg("redis connected")

	return s, nil
}

// IsHealthy returns whether Redis is currently available.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.log.Warn().Int("failures", s.failureCount).Msg("circuit breaker open, redis marked unhealthy")
		}
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.log.Info().Msg("circuit breaker closed, redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth probes Redis in the background if the circuit is open
// and enough time has passed since the last check.
func (s *Service) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// NextDailySequence atomically increments and returns the daily sequence
// counter for an account. Returns the new value (1-indexed).
func (s *Service) NextDailySequence(ctx context.Context, account, dateKey string) (int64, error) {
	s.checkHealth()

	if !s.IsHealthy() {
		return 0, fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	key := fmt.Sprintf(sequenceKeyFormat, account, dateKey)

	val, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.recordFailure()
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}

	// Set TTL on first increment only
	if val == 1 {
		s.client.Expire(ctx, key, sequenceTTL)
	}

	s.recordSuccess()
	return val, nil
}

// CurrentSequence returns the current daily sequence value without
// incrementing it. Missing keys read as zero.
func (s *Service) CurrentSequence(ctx context.Context, account, dateKey string) (int64, error) {
	s.checkHealth()

	if !s.IsHealthy() {
		return 0, fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	key := fmt.Sprintf(sequenceKeyFormat, account, dateKey)

	val, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		s.recordFailure()
		return 0, fmt.Errorf("redis get sequence failed: %w", err)
	}

	s.recordSuccess()
	return val, nil
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.recordFailure()
		return err
	}
	s.recordSuccess()
	return nil
}

// Stats holds cache health counters for the status API.
type Stats struct {
	Healthy      bool `json:"healthy"`
	FailureCount int  `json:"failure_count"`
}

// GetStats returns current health counters.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Healthy:      s.healthy,
		FailureCount: s.failureCount,
	}
}

// Close closes the Redis connection.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
