package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/api"
	"forex-trading-bot/internal/bot"
	"forex-trading-bot/internal/broker"
	"forex-trading-bot/internal/cache"
	"forex-trading-bot/internal/database"
	"forex-trading-bot/internal/entry"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/logging"
	"forex-trading-bot/internal/schedule"
	"forex-trading-bot/internal/setups"
	sigsrc "forex-trading-bot/internal/signal"
	"forex-trading-bot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		errLog := logging.New(logging.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logging.New(cfg.Logging)
	log.Info().
		Str("strategy", string(cfg.Strategy.Kind)).
		Strs("symbols", cfg.Symbols).
		Bool("dry_run", cfg.DryRun).
		Msg("starting")

	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy configuration rejected")
	}

	guard, err := schedule.NewGuard(cfg.Schedule)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule configuration rejected")
	}

	bus := events.NewEventBus()

	// Optional Redis-backed sequences; the sequencer falls back to a
	// local counter when the cache is nil or unhealthy.
	var cacheSvc *cache.Service
	if cfg.Redis.Enabled {
		cacheSvc, err = cache.NewService(cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis disabled")
			cacheSvc = nil
		}
	}

	// Optional trade journal.
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.NewDB(cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()

		migCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migCtx); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("migrations failed")
		}
		cancel()

		// Mirror every event into the journal.
		bus.SubscribeAll(func(e events.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.RecordEvent(ctx, string(e.Type), e.Timestamp, e.Data); err != nil {
				log.Error().Err(err).Str("event", string(e.Type)).Msg("journal write failed")
			}
		})
	}

	venue := buildVenue(cfg, log)
	source := sigsrc.NewStatic()
	sequencer := setups.NewSequencer(cacheSvc, cfg.Account, log)
	gate := entry.NewGate(cfg.Entry, guard)

	b := bot.New(
		bot.Config{Symbols: cfg.Symbols, LoopInterval: cfg.LoopInterval()},
		venue, strat, gate, guard, source, sequencer, bus, db, log,
	)

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server, b, bus, cacheSvc, db, sequencer, log)
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("status api failed to start")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("control loop exited")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status api shutdown failed")
		}
	}

	if cacheSvc != nil {
		if err := cacheSvc.Close(); err != nil {
			log.Error().Err(err).Msg("cache close failed")
		}
	}

	log.Info().Msg("shutdown complete")
}

// buildVenue returns the trading venue. Dry-run mode uses the
// in-memory simulator seeded with the configured symbols; live mode
// expects an external bridge which is not part of this build.
func buildVenue(cfg *config.Config, log zerolog.Logger) broker.Venue {
	if !cfg.DryRun {
		log.Warn().Msg("no live venue bridge configured, falling back to simulator")
	}

	sim := broker.NewSimVenue()
	for _, symbol := range cfg.Symbols {
		digits := 5
		if len(symbol) == 6 && symbol[3:] == "JPY" {
			digits = 3
		}
		sim.RegisterSymbol(symbol, digits)
		sim.SetPrice(symbol, 1.0)
	}
	return sim
}
