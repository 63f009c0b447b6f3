package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite audit journal.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Reporters fan in concurrently; wait on the write lock instead of
	// failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		component_id TEXT NOT NULL,
		capability TEXT,
		request_id TEXT,
		outcome TEXT,
		ts_event DATETIME NOT NULL,
		ts_ingest DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		payload JSON
	);

	CREATE INDEX IF NOT EXISTS idx_audit_component_ts ON audit_events(component_id, ts_event);
	CREATE INDEX IF NOT EXISTS idx_audit_ts_ingest ON audit_events(ts_ingest);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}

	return nil
}

// AppendEvent writes one event. TsIngest defaults to now.
func (s *Store) AppendEvent(ctx context.Context, evt *AuditEvent) error {
	if evt == nil {
		return errors.New("nil event")
	}
	if evt.EventID == "" {
		return errors.New("event id is required")
	}
	if evt.TsIngest.IsZero() {
		evt.TsIngest = time.Now().UTC()
	}
	if evt.TsEvent.IsZero() {
		evt.TsEvent = evt.TsIngest
	}

	var payload any
	if len(evt.Payload) > 0 {
		payload = string(evt.Payload)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			event_id, event_type, component_id, capability, request_id, outcome,
			ts_event, ts_ingest, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		evt.EventID, evt.EventType, evt.ComponentID, evt.Capability, evt.RequestID, evt.Outcome,
		evt.TsEvent.UTC(), evt.TsIngest.UTC(), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", evt.EventID, err)
	}
	return nil
}

// GetEvent returns the event with the given id, or ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id EventID) (*AuditEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, event_type, component_id, capability, request_id, outcome,
			ts_event, ts_ingest, payload
		FROM audit_events WHERE event_id = ?
	`, id)

	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event %s: %w", id, err)
	}
	return evt, nil
}

// QueryEvents returns matching events, newest first.
func (s *Store) QueryEvents(ctx context.Context, filter EventFilter) ([]*AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if filter.ComponentID != "" {
		where = append(where, "component_id = ?")
		args = append(args, filter.ComponentID)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		where = append(where, "event_type IN ("+strings.Join(placeholders, ",")+")")
	}
	if !filter.From.IsZero() {
		where = append(where, "ts_event >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "ts_event < ?")
		args = append(args, filter.To.UTC())
	}

	query := `
		SELECT event_id, event_type, component_id, capability, request_id, outcome,
			ts_event, ts_ingest, payload
		FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts_event DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*AuditEvent{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// PruneEvents deletes events ingested before cutoff and returns the count.
func (s *Store) PruneEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE ts_ingest < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// ReadCandidateEvents returns up to limit events ingested before cutoff,
// oldest first. It feeds the archiver ahead of a prune.
func (s *Store) ReadCandidateEvents(ctx context.Context, cutoff time.Time, limit int) ([]*AuditEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, event_type, component_id, capability, request_id, outcome,
			ts_event, ts_ingest, payload
		FROM audit_events
		WHERE ts_ingest < ?
		ORDER BY ts_ingest ASC, rowid ASC
		LIMIT ?
	`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate events: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// DeleteEvents removes the given events in one transaction.
func (s *Store) DeleteEvents(ctx context.Context, ids []EventID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM audit_events WHERE event_id = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return total, nil
}

// CountEvents returns the number of events in the journal.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*AuditEvent, error) {
	var (
		evt                            AuditEvent
		capability, requestID, outcome sql.NullString
		payload                        sql.NullString
	)
	err := row.Scan(
		&evt.EventID, &evt.EventType, &evt.ComponentID, &capability, &requestID, &outcome,
		&evt.TsEvent, &evt.TsIngest, &payload,
	)
	if err != nil {
		return nil, err
	}
	evt.Capability = capability.String
	evt.RequestID = requestID.String
	evt.Outcome = outcome.String
	if payload.Valid {
		evt.Payload = []byte(payload.String)
	}
	return &evt, nil
}
