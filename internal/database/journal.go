package database

import (
	"context"
	"encoding/json"
	"time"
)

// JournalSetup is one row of the setup journal.
type JournalSetup struct {
	SetupID     string     `json:"setup_id"`
	Prefix      string     `json:"prefix"`
	Symbol      string     `json:"symbol"`
	Direction   string     `json:"direction"`
	Strategy    string     `json:"strategy"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

// JournalLeg is one opened leg of a setup.
type JournalLeg struct {
	SetupID    string    `json:"setup_id"`
	LegIndex   int       `json:"leg_index"`
	Ticket     int64     `json:"ticket"`
	Volume     float64   `json:"volume"`
	EntryPrice float64   `json:"entry_price"`
	OpenedAt   time.Time `json:"opened_at"`
}

// RecordSetupOpened inserts a setup row. Re-inserting the same setup
// is a no-op so replays after a crash stay idempotent.
func (db *DB) RecordSetupOpened(ctx context.Context, s JournalSetup) error {
	if db == nil || db.Pool == nil {
		return nil
	}

	if s.OpenedAt.IsZero() {
		s.OpenedAt = time.Now()
	}

	query := `
		INSERT INTO journal_setups (setup_id, prefix, symbol, direction, strategy, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (setup_id) DO NOTHING`

	_, err := db.Pool.Exec(ctx, query, s.SetupID, s.Prefix, s.Symbol, s.Direction, s.Strategy, s.OpenedAt)
	return err
}

// RecordLegOpened inserts a leg row, idempotently.
func (db *DB) RecordLegOpened(ctx context.Context, l JournalLeg) error {
	if db == nil || db.Pool == nil {
		return nil
	}

	if l.OpenedAt.IsZero() {
		l.OpenedAt = time.Now()
	}

	query := `
		INSERT INTO journal_legs (setup_id, leg_index, ticket, volume, entry_price, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (setup_id, leg_index) DO NOTHING`

	_, err := db.Pool.Exec(ctx, query, l.SetupID, l.LegIndex, l.Ticket, l.Volume, l.EntryPrice, l.OpenedAt)
	return err
}

// RecordLegClosed marks a leg closed with the final price and reason.
func (db *DB) RecordLegClosed(ctx context.Context, setupID string, legIndex int, closePrice float64, reason string) error {
	if db == nil || db.Pool == nil {
		return nil
	}

	query := `
		UPDATE journal_legs
		SET closed_at = $1, close_price = $2, close_reason = $3
		WHERE setup_id = $4 AND leg_index = $5 AND closed_at IS NULL`

	_, err := db.Pool.Exec(ctx, query, time.Now(), closePrice, reason, setupID, legIndex)
	return err
}

// RecordSetupClosed marks the setup row closed.
func (db *DB) RecordSetupClosed(ctx context.Context, setupID, reason string) error {
	if db == nil || db.Pool == nil {
		return nil
	}

	query := `
		UPDATE journal_setups
		SET closed_at = $1, close_reason = $2
		WHERE setup_id = $3 AND closed_at IS NULL`

	_, err := db.Pool.Exec(ctx, query, time.Now(), reason, setupID)
	return err
}

// RecordEvent appends an event row. The payload is stored as JSONB so
// the schema never has to chase new event shapes.
func (db *DB) RecordEvent(ctx context.Context, eventType string, occurredAt time.Time, payload map[string]interface{}) error {
	if db == nil || db.Pool == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	query := `INSERT INTO journal_events (event_type, occurred_at, payload) VALUES ($1, $2, $3)`
	_, err = db.Pool.Exec(ctx, query, eventType, occurredAt, data)
	return err
}

// OpenSetups returns journal rows for setups not yet marked closed.
func (db *DB) OpenSetups(ctx context.Context) ([]JournalSetup, error) {
	if db == nil || db.Pool == nil {
		return nil, nil
	}

	query := `
		SELECT setup_id, prefix, symbol, direction, strategy, opened_at
		FROM journal_setups
		WHERE closed_at IS NULL
		ORDER BY opened_at DESC`

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalSetup
	for rows.Next() {
		var s JournalSetup
		if err := rows.Scan(&s.SetupID, &s.Prefix, &s.Symbol, &s.Direction, &s.Strategy, &s.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
