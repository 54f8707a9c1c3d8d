// Package bot runs the control loop: fetch broker state, rebuild the
// managed setups, gate entries, evaluate exits and apply the resulting
// actions. The loop holds no position state of its own; every
// iteration starts from what the venue reports.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"forex-trading-bot/internal/broker"
	"forex-trading-bot/internal/database"
	"forex-trading-bot/internal/entry"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/pip"
	"forex-trading-bot/internal/schedule"
	"forex-trading-bot/internal/setups"
	"forex-trading-bot/internal/signal"
	"forex-trading-bot/internal/strategy"
)

// Config drives the loop itself.
type Config struct {
	Symbols      []string      `json:"symbols"`
	LoopInterval time.Duration `json:"loop_interval"`
}

// Status is a point-in-time snapshot served by the status API.
type Status struct {
	Running            bool      `json:"running"`
	Strategy           string    `json:"strategy"`
	Symbols            []string  `json:"symbols"`
	LastIterationID    string    `json:"last_iteration_id"`
	LastIterationAt    time.Time `json:"last_iteration_at"`
	ManagedSetups      int       `json:"managed_setups"`
	UnmanagedPositions int       `json:"unmanaged_positions"`
	LastError          string    `json:"last_error,omitempty"`
}

// SetupView is a read model of one managed setup for the API.
type SetupView struct {
	ID         string  `json:"id"`
	Prefix     string  `json:"prefix"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Legs       int     `json:"legs"`
	ProfitPips float64 `json:"profit_pips"`
}

// Journal records trade lifecycle rows. *database.DB satisfies it and
// no-ops when nil or unconfigured.
type Journal interface {
	RecordSetupOpened(ctx context.Context, s database.JournalSetup) error
	RecordLegOpened(ctx context.Context, l database.JournalLeg) error
	RecordLegClosed(ctx context.Context, setupID string, legIndex int, closePrice float64, reason string) error
	RecordSetupClosed(ctx context.Context, setupID, reason string) error
}

// Bot owns one strategy and trades it across the configured symbols.
type Bot struct {
	cfg       Config
	venue     broker.Venue
	strat     strategy.Strategy
	gate      *entry.Gate
	guard     *schedule.Guard
	source    signal.Source
	sequencer *setups.Sequencer
	bus       *events.EventBus
	db        Journal
	log       zerolog.Logger

	// now is swappable in tests
	now func() time.Time

	mu     sync.RWMutex
	status Status
	views  []SetupView
}

// New wires the loop. db may be nil when the journal is disabled.
func New(cfg Config, venue broker.Venue, strat strategy.Strategy, gate *entry.Gate, guard *schedule.Guard, source signal.Source, sequencer *setups.Sequencer, bus *events.EventBus, db Journal, log zerolog.Logger) *Bot {
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = 5 * time.Second
	}
	if db == nil {
		db = (*database.DB)(nil)
	}
	return &Bot{
		cfg:       cfg,
		venue:     venue,
		strat:     strat,
		gate:      gate,
		guard:     guard,
		source:    source,
		sequencer: sequencer,
		bus:       bus,
		db:        db,
		log:       log.With().Str("component", "bot").Logger(),
		now:       time.Now,
	}
}

// Run executes iterations until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.setRunning(true)
	defer b.setRunning(false)

	b.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
		"strategy": string(b.strat.Kind()),
		"symbols":  b.cfg.Symbols,
	}})
	defer b.bus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{}})

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("control loop stopping")
			return ctx.Err()
		case <-timer.C:
		}

		if err := b.iterate(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Error().Err(err).Msg("iteration aborted")
		}

		timer.Reset(b.cfg.LoopInterval)
	}
}

// iterate runs one full pass. Only a broker outage aborts the pass;
// every other failure is isolated to its setup or symbol.
func (b *Bot) iterate(ctx context.Context) error {
	iterID := uuid.New().String()
	now := b.now()
	log := b.log.With().Str("iteration", iterID).Logger()

	positions, err := b.venue.ListOpenPositions(ctx, "")
	if err != nil {
		b.recordIteration(iterID, now, nil, nil, err)
		return fmt.Errorf("list positions: %w", err)
	}

	reg := setups.NewRegistry(positions)
	managed := reg.Setups()
	b.recordIteration(iterID, now, managed, reg.Unmanaged(), nil)

	if n := len(reg.Unmanaged()); n > 0 {
		log.Debug().Int("count", n).Msg("unmanaged positions left untouched")
	}

	pipSizes := make(map[string]float64)
	pipSize := func(symbol string) (float64, error) {
		if size, ok := pipSizes[symbol]; ok {
			return size, nil
		}
		meta, err := b.venue.SymbolMeta(ctx, symbol)
		if err != nil {
			return 0, err
		}
		size, err := pip.Size(meta)
		if err != nil {
			return 0, err
		}
		pipSizes[symbol] = size
		return size, nil
	}

	// Decided action sequences run to completion even if the process
	// is asked to stop; cancellation is honored between stages, never
	// mid-apply, so no setup is left half-mutated.
	applyCtx := context.WithoutCancel(ctx)

	// Weekend force-close runs before anything else so the book is
	// flat going into the close.
	if b.guard.InForceCloseWindow(now) {
		if err := b.forceCloseProfitable(applyCtx, reg, pipSize, log); err != nil {
			return err
		}
	}

	// Entry gate per symbol, isolated per symbol.
	for _, symbol := range b.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}

		sig, err := b.source.Signal(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("signal source failed")
			continue
		}

		dec := b.gate.Check(entry.Input{
			Symbol:  symbol,
			Now:     now,
			Signal:  sig,
			Prefix:  b.strat.TagPrefix(),
			Managed: managed,
		})
		if !dec.Allow {
			if dec.Reason != entry.ReasonNoSignal {
				log.Debug().Str("symbol", symbol).Str("reason", string(dec.Reason)).Msg("entry denied")
				b.bus.Publish(events.Event{Type: events.EventEntryDenied, Data: map[string]interface{}{
					"symbol": symbol,
					"reason": string(dec.Reason),
				}})
			}
			continue
		}

		if err := b.openSetup(applyCtx, reg, symbol, dec.Direction, log); err != nil {
			if errors.Is(err, broker.ErrBrokerUnavailable) {
				return err
			}
			log.Error().Err(err).Str("symbol", symbol).Msg("open setup failed")
			b.bus.PublishError("bot", "open setup failed", err)
		}
	}

	// Exit evaluation per setup, isolated per setup. Setups opened
	// earlier in this pass sit at their entry price and produce no
	// actions.
	for _, setup := range sortedSetups(managed) {
		if err := ctx.Err(); err != nil {
			return err
		}

		// A setup stays under the strategy family that opened it. It
		// is never re-evaluated under a different configuration.
		if setup.Prefix != b.strat.TagPrefix() {
			log.Warn().
				Str("setup", setup.ID).
				Str("setup_prefix", string(setup.Prefix)).
				Str("configured_prefix", string(b.strat.TagPrefix())).
				Msg("strategy mismatch, setup left untouched")
			continue
		}

		size, err := pipSize(setup.Symbol)
		if err != nil {
			if errors.Is(err, broker.ErrBrokerUnavailable) {
				return err
			}
			log.Error().Err(err).Str("setup", setup.ID).Msg("skipping setup")
			continue
		}

		sig, err := b.source.Signal(ctx, setup.Symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", setup.Symbol).Msg("signal source failed, evaluating without signal")
			sig = strategy.Signal{}
		}

		actions := b.strat.Evaluate(strategy.EvalInput{Setup: setup, PipSize: size, Signal: sig})
		if err := b.applyActions(applyCtx, reg, setup, actions, size, log); err != nil {
			if errors.Is(err, broker.ErrBrokerUnavailable) {
				return err
			}
			log.Error().Err(err).Str("setup", setup.ID).Msg("apply actions failed")
			b.bus.PublishError("bot", "apply actions failed", err)
		}
	}

	return nil
}

// forceCloseProfitable closes every setup whose aggregate profit is
// non-negative. Setups in drawdown ride through the weekend.
func (b *Bot) forceCloseProfitable(ctx context.Context, reg *setups.Registry, pipSize func(string) (float64, error), log zerolog.Logger) error {
	for _, setup := range sortedSetups(reg.Setups()) {
		size, err := pipSize(setup.Symbol)
		if err != nil {
			if errors.Is(err, broker.ErrBrokerUnavailable) {
				return err
			}
			log.Error().Err(err).Str("setup", setup.ID).Msg("weekend close skipping setup")
			continue
		}

		profit := setup.AggregateProfitPips(size)
		if profit < 0 {
			continue
		}

		log.Info().Str("setup", setup.ID).Float64("profit_pips", profit).Msg("weekend force close")
		stillOpen := make(map[int64]bool, len(setup.Legs))
		for _, leg := range setup.Legs {
			if err := b.venue.ClosePosition(ctx, leg.Ticket); err != nil {
				if errors.Is(err, broker.ErrBrokerUnavailable) {
					return err
				}
				log.Error().Err(err).Int64("ticket", leg.Ticket).Msg("weekend close failed for leg")
				stillOpen[leg.Ticket] = true
				continue
			}
			if err := b.db.RecordLegClosed(ctx, setup.ID, leg.LegIndex, leg.CurrentPrice, "weekend close"); err != nil {
				log.Error().Err(err).Str("setup", setup.ID).Int("leg", leg.LegIndex).Msg("journal leg close failed")
			}
		}
		reg.RemoveClosedLegs(setup.ID, stillOpen)
		if err := b.db.RecordSetupClosed(ctx, setup.ID, "weekend close"); err != nil {
			log.Error().Err(err).Str("setup", setup.ID).Msg("journal setup close failed")
		}
		b.bus.Publish(events.Event{Type: events.EventWeekendClose, Data: map[string]interface{}{
			"setup_id":    setup.ID,
			"symbol":      setup.Symbol,
			"profit_pips": profit,
		}})
	}
	return nil
}

// applyActions executes strategy intents in order. Closed legs are
// pruned from the registry on the way out, on success and on error
// alike, so the rest of the iteration sees the book as it stands.
func (b *Bot) applyActions(ctx context.Context, reg *setups.Registry, setup *setups.Setup, actions []strategy.Action, pipSize float64, log zerolog.Logger) error {
	closed := make(map[int64]bool)
	defer func() {
		if len(closed) == 0 {
			return
		}
		stillOpen := make(map[int64]bool, len(setup.Legs))
		for _, leg := range setup.Legs {
			if !closed[leg.Ticket] {
				stillOpen[leg.Ticket] = true
			}
		}
		reg.RemoveClosedLegs(setup.ID, stillOpen)
	}()

	for _, action := range actions {
		switch a := action.(type) {
		case strategy.CloseLeg:
			if err := b.venue.ClosePosition(ctx, a.Ticket); err != nil {
				return fmt.Errorf("close leg %d: %w", a.LegIndex, err)
			}
			closed[a.Ticket] = true
			log.Info().Str("setup", setup.ID).Int("leg", a.LegIndex).Str("reason", a.Reason).Msg("leg closed")
			b.bus.PublishLegClosed(setup.ID, a.LegIndex, a.Ticket, a.Reason)
			if leg := setup.LegByIndex(a.LegIndex); leg != nil {
				if err := b.db.RecordLegClosed(ctx, setup.ID, a.LegIndex, leg.CurrentPrice, a.Reason); err != nil {
					log.Error().Err(err).Str("setup", setup.ID).Int("leg", a.LegIndex).Msg("journal leg close failed")
				}
			}

		case strategy.SetStopLoss:
			if err := b.venue.ModifyPosition(ctx, a.Ticket, broker.Float64Ptr(a.Price), nil); err != nil {
				return fmt.Errorf("set stop on leg %d: %w", a.LegIndex, err)
			}
			log.Info().Str("setup", setup.ID).Int("leg", a.LegIndex).Float64("stop", a.Price).Msg("stop moved")
			b.bus.PublishStopMoved(setup.ID, a.LegIndex, a.Ticket, a.Price)

		case strategy.SetTakeProfit:
			if err := b.venue.ModifyPosition(ctx, a.Ticket, nil, broker.Float64Ptr(a.Price)); err != nil {
				return fmt.Errorf("set take profit on leg %d: %w", a.LegIndex, err)
			}
			log.Info().Str("setup", setup.ID).Int("leg", a.LegIndex).Float64("take_profit", a.Price).Msg("take profit moved")
			b.bus.Publish(events.Event{Type: events.EventTakeProfitMoved, Data: map[string]interface{}{
				"setup_id":  setup.ID,
				"leg_index": a.LegIndex,
				"ticket":    a.Ticket,
				"new_tp":    a.Price,
			}})

		case strategy.AddLayer:
			if err := b.addLayer(ctx, setup, a, pipSize, log); err != nil {
				return fmt.Errorf("add layer: %w", err)
			}
		}
	}
	return nil
}

// addLayer opens the requested legs continuing the setup's leg index
// sequence. Layer legs open without stops; the strategy converges
// their targets on the next iteration.
func (b *Bot) addLayer(ctx context.Context, setup *setups.Setup, layer strategy.AddLayer, pipSize float64, log zerolog.Logger) error {
	next := setup.NextLegIndex()
	for i := 0; i < layer.Legs; i++ {
		legIndex := next + i
		tag, err := setups.EncodeTag(setup.Prefix, setup.ID, legIndex)
		if err != nil {
			return err
		}

		ticket, err := b.venue.OpenPosition(ctx, broker.OpenRequest{
			Symbol:    setup.Symbol,
			Direction: setup.Direction,
			Volume:    layer.Volume,
			Tag:       tag,
		})
		if err != nil {
			return fmt.Errorf("open layer leg %d: %w", legIndex, err)
		}

		log.Info().Str("setup", setup.ID).Int("leg", legIndex).Int64("ticket", ticket).Msg("layer leg opened")
		if err := b.db.RecordLegOpened(ctx, database.JournalLeg{
			SetupID:  setup.ID,
			LegIndex: legIndex,
			Ticket:   ticket,
			Volume:   layer.Volume,
		}); err != nil {
			log.Error().Err(err).Str("setup", setup.ID).Int("leg", legIndex).Msg("journal leg open failed")
		}
	}

	b.bus.Publish(events.Event{Type: events.EventLayerAdded, Data: map[string]interface{}{
		"setup_id": setup.ID,
		"symbol":   setup.Symbol,
		"legs":     layer.Legs,
		"volume":   layer.Volume,
	}})
	return nil
}

// openSetup opens all planned legs for a new setup. If any leg fails
// to open, the legs already opened are closed again so no partial
// setup is left behind.
func (b *Bot) openSetup(ctx context.Context, reg *setups.Registry, symbol string, dir broker.Direction, log zerolog.Logger) error {
	plans := b.strat.LegPlans()
	if len(plans) == 0 {
		return nil
	}

	setupID := b.sequencer.NewSetupID(ctx)
	prefix := b.strat.TagPrefix()
	sign := dir.Sign()

	meta, err := b.venue.SymbolMeta(ctx, symbol)
	if err != nil {
		return err
	}
	size, err := pip.Size(meta)
	if err != nil {
		return err
	}

	var opened []int64
	rollback := func(cause error) error {
		for _, ticket := range opened {
			if err := b.venue.ClosePosition(ctx, ticket); err != nil {
				log.Error().Err(err).Int64("ticket", ticket).Msg("rollback close failed")
			}
		}
		b.bus.Publish(events.Event{Type: events.EventSetupRolledBack, Data: map[string]interface{}{
			"setup_id": setupID,
			"symbol":   symbol,
			"error":    cause.Error(),
		}})
		return fmt.Errorf("setup %s rolled back: %w", setupID, cause)
	}

	for i, plan := range plans {
		tag, err := setups.EncodeTag(prefix, setupID, i+1)
		if err != nil {
			return rollback(err)
		}

		ticket, err := b.venue.OpenPosition(ctx, broker.OpenRequest{
			Symbol:    symbol,
			Direction: dir,
			Volume:    plan.Volume,
			Tag:       tag,
		})
		if err != nil {
			return rollback(err)
		}
		opened = append(opened, ticket)
	}

	// Levels are set from the actual entry prices after all legs are
	// confirmed open.
	positions, err := b.venue.ListOpenPositions(ctx, symbol)
	if err != nil {
		log.Error().Err(err).Str("setup", setupID).Msg("could not fetch entries for initial levels")
		positions = nil
	}
	entries := make(map[int64]float64, len(positions))
	for _, p := range positions {
		entries[p.Ticket] = p.EntryPrice
	}

	newSetup := &setups.Setup{
		ID:        setupID,
		Prefix:    prefix,
		Symbol:    symbol,
		Direction: dir,
	}

	for i, plan := range plans {
		ticket := opened[i]
		legIndex := i + 1
		entryPrice := entries[ticket]
		newSetup.Legs = append(newSetup.Legs, setups.Leg{
			Position: broker.Position{
				Ticket:       ticket,
				Symbol:       symbol,
				Direction:    dir,
				Volume:       plan.Volume,
				EntryPrice:   entryPrice,
				CurrentPrice: entryPrice,
			},
			LegIndex: legIndex,
		})
		if entryPrice == 0 {
			continue
		}

		var sl, tp *float64
		if plan.StopPips > 0 {
			sl = broker.Float64Ptr(entryPrice - sign*plan.StopPips*size)
		}
		if plan.ProfitPips > 0 {
			tp = broker.Float64Ptr(entryPrice + sign*plan.ProfitPips*size)
		}
		if sl != nil || tp != nil {
			if err := b.venue.ModifyPosition(ctx, ticket, sl, tp); err != nil {
				log.Error().Err(err).Int64("ticket", ticket).Msg("initial levels not set")
			}
		}

		if err := b.db.RecordLegOpened(ctx, database.JournalLeg{
			SetupID:    setupID,
			LegIndex:   legIndex,
			Ticket:     ticket,
			Volume:     plan.Volume,
			EntryPrice: entryPrice,
		}); err != nil {
			log.Error().Err(err).Str("setup", setupID).Int("leg", legIndex).Msg("journal leg open failed")
		}
	}

	// Registered immediately so the capacity check for the remaining
	// symbols in this pass counts the new setup.
	reg.RecordNewSetup(newSetup)

	log.Info().Str("setup", setupID).Str("symbol", symbol).Str("direction", string(dir)).Int("legs", len(plans)).Msg("setup opened")
	if err := b.db.RecordSetupOpened(ctx, database.JournalSetup{
		SetupID:   setupID,
		Prefix:    string(prefix),
		Symbol:    symbol,
		Direction: string(dir),
		Strategy:  string(b.strat.Kind()),
	}); err != nil {
		log.Error().Err(err).Str("setup", setupID).Msg("journal setup open failed")
	}
	b.bus.PublishSetupOpened(setupID, symbol, string(dir), string(b.strat.Kind()), len(plans))
	return nil
}

// Status returns the latest loop snapshot.
func (b *Bot) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Setups returns the latest managed setup views.
func (b *Bot) Setups() []SetupView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SetupView, len(b.views))
	copy(out, b.views)
	return out
}

func (b *Bot) setRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Running = running
	b.status.Strategy = string(b.strat.Kind())
	b.status.Symbols = b.cfg.Symbols
}

func (b *Bot) recordIteration(iterID string, at time.Time, managed map[string]*setups.Setup, unmanaged []broker.Position, err error) {
	views := make([]SetupView, 0, len(managed))
	for _, setup := range sortedSetups(managed) {
		views = append(views, SetupView{
			ID:        setup.ID,
			Prefix:    string(setup.Prefix),
			Symbol:    setup.Symbol,
			Direction: string(setup.Direction),
			Legs:      len(setup.Legs),
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastIterationID = iterID
	b.status.LastIterationAt = at
	b.status.ManagedSetups = len(managed)
	b.status.UnmanagedPositions = len(unmanaged)
	if err != nil {
		b.status.LastError = err.Error()
	} else {
		b.status.LastError = ""
	}
	b.views = views
}

// sortedSetups returns setups in a stable order so iteration behavior
// is reproducible.
func sortedSetups(managed map[string]*setups.Setup) []*setups.Setup {
	ids := make([]string, 0, len(managed))
	for id := range managed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*setups.Setup, 0, len(ids))
	for _, id := range ids {
		out = append(out, managed[id])
	}
	return out
}
