package rebalancing

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultRetention bounds the archive when no explicit retention is given
const defaultRetention = 200

// Archive persists events as msgpack blobs for after-the-fact review.
// It lives in the cache database, losing the archive is acceptable. Only
// the newest retain events are kept, older rows are pruned on store.
type Archive struct {
	db     *sql.DB
	retain int
	log    zerolog.Logger
}

func NewArchive(db *sql.DB, retain int, logger zerolog.Logger) (*Archive, error) {
	if retain <= 0 {
		retain = defaultRetention
	}
	a := &Archive{
		db:     db,
		retain: retain,
		log:    logger.With().Str("repo", "event_archive").Logger(),
	}
	if err := a.ensureSchema(); err != nil {
		return nil, fmt.Errorf("creating event archive schema: %w", err)
	}
	return a, nil
}

func (a *Archive) ensureSchema() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS rebalancing_events (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			trigger_reason TEXT NOT NULL,
			status TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_created_at ON rebalancing_events(created_at);
	`)
	return err
}

// Store writes or replaces one event blob
func (a *Archive) Store(event *Event) error {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}
	_, err = a.db.Exec(`
		INSERT INTO rebalancing_events (id, created_at, trigger_reason, status, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload
	`, event.ID, event.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), event.TriggerReason, string(event.Status), payload)
	if err != nil {
		return fmt.Errorf("storing event %s: %w", event.ID, err)
	}
	if err := a.prune(); err != nil {
		return fmt.Errorf("pruning event archive: %w", err)
	}
	a.log.Debug().Str("event_id", event.ID).Int("bytes", len(payload)).Msg("event archived")
	return nil
}

// prune drops everything older than the newest retain events
func (a *Archive) prune() error {
	_, err := a.db.Exec(`
		DELETE FROM rebalancing_events WHERE id NOT IN (
			SELECT id FROM rebalancing_events
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`, a.retain)
	return err
}

// Get loads one archived event by ID
func (a *Archive) Get(id string) (*Event, error) {
	var payload []byte
	err := a.db.QueryRow(`SELECT payload FROM rebalancing_events WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", id, err)
	}
	var event Event
	if err := msgpack.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decoding event %s: %w", id, err)
	}
	return &event, nil
}

// Recent returns the newest events, newest first
func (a *Archive) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.Query(`
		SELECT payload FROM rebalancing_events
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		var event Event
		if err := msgpack.Unmarshal(payload, &event); err != nil {
			a.log.Warn().Err(err).Msg("skipping undecodable event blob")
			continue
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
