// Package sqlite provides a SQLite-backed scenario journal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/yourupnext/internal/storage"
	"github.com/louisbranch/yourupnext/internal/storage/integrity"
	"github.com/louisbranch/yourupnext/internal/storage/sqlite/migrations"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store persists the scenario journal in SQLite.
type Store struct {
	sqlDB    *sql.DB
	registry *event.Registry
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite journal store and applies embedded migrations. Events
// are validated against the registry before append.
func Open(path string, registry *event.Registry) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, registry: registry}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendEvents atomically appends a batch of events from one scenario.
// Sequence numbers are allocated contiguously and chain hashes link each
// event to its predecessor, including the last previously stored event for
// the first item in the batch.
func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	// Validate all events before opening a transaction.
	validated := make([]event.Event, len(events))
	for i, evt := range events {
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
		v, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		validated[i] = v
	}
	scenarioID := validated[0].ScenarioID
	for i, evt := range validated[1:] {
		if evt.ScenarioID != scenarioID {
			return nil, fmt.Errorf("event %d: batch spans scenarios %s and %s", i+1, scenarioID, evt.ScenarioID)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq uint64
	prevChainHash := ""
	row := tx.QueryRowContext(ctx,
		"SELECT seq, chain_hash FROM events WHERE scenario_id = ? ORDER BY seq DESC LIMIT 1", scenarioID)
	if err := row.Scan(&seq, &prevChainHash); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load journal head: %w", err)
	}

	sealed := make([]event.Event, len(validated))
	for i, evt := range validated {
		seq++
		out, err := integrity.Seal(evt, seq, prevChainHash)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO events (
    scenario_id, seq, event_id, event_hash, prev_chain_hash, chain_hash,
    timestamp, event_type, actor_type, actor_id, entity_type, entity_id,
    request_id, payload_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			out.ScenarioID, int64(out.Seq), out.ID, out.Hash, out.PrevHash, out.ChainHash,
			toMillis(out.Timestamp), string(out.Type), string(out.ActorType), out.ActorID,
			out.EntityType, out.EntityID, out.RequestID, out.PayloadJSON,
		); err != nil {
			if isConstraintError(err) {
				return nil, fmt.Errorf("event %d (hash %s): %w", i, out.Hash, storage.ErrDuplicateEvent)
			}
			return nil, fmt.Errorf("append event: %w", err)
		}
		sealed[i] = out
		prevChainHash = out.ChainHash
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sealed, nil
}

// ListEvents returns events with Seq > afterSeq in sequence order.
func (s *Store) ListEvents(ctx context.Context, scenarioID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	query := `
SELECT scenario_id, seq, event_id, event_hash, prev_chain_hash, chain_hash,
       timestamp, event_type, actor_type, actor_id, entity_type, entity_id,
       request_id, payload_json
FROM events WHERE scenario_id = ? AND seq > ? ORDER BY seq ASC`
	args := []any{scenarioID, int64(afterSeq)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, int64(limit))
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// LatestSeq returns the highest sequence number for a scenario, zero when
// the journal is empty.
func (s *Store) LatestSeq(ctx context.Context, scenarioID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var seq int64
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM events WHERE scenario_id = ?", scenarioID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return uint64(seq), nil
}

// TruncateEvents removes all events with Seq > afterSeq.
func (s *Store) TruncateEvents(ctx context.Context, scenarioID string, afterSeq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM events WHERE scenario_id = ? AND seq > ?", scenarioID, int64(afterSeq)); err != nil {
		return fmt.Errorf("truncate events: %w", err)
	}
	return nil
}

// ListScenarios returns the IDs of scenarios with at least one event.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT DISTINCT scenario_id FROM events ORDER BY scenario_id ASC")
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		evt       event.Event
		seq       int64
		timestamp int64
		eventType string
		actorType string
	)
	if err := rows.Scan(
		&evt.ScenarioID, &seq, &evt.ID, &evt.Hash, &evt.PrevHash, &evt.ChainHash,
		&timestamp, &eventType, &actorType, &evt.ActorID, &evt.EntityType,
		&evt.EntityID, &evt.RequestID, &evt.PayloadJSON,
	); err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = fromMillis(timestamp)
	evt.Type = event.Type(eventType)
	evt.ActorType = event.ActorType(actorType)
	return evt, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
