// Package outbox records which command events have been applied to the
// book and queues the resulting events for publication to Kafka.
//
// It never stores book state: the book lives in memory only.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrAlreadyProcessed is returned by Commit for a command event seen before
var ErrAlreadyProcessed = errors.New("command event already processed")

// Store provides the redelivery guard and outbox
type Store struct {
	db *sql.DB
}

// Outcome is the result of applying one command to the book
type Outcome struct {
	CommandEventID string
	OrderID        int64
	Command        string
	Status         string
	Reason         string
	UnixMillis     int64
}

// OutboxEvent represents an event waiting to be published
type OutboxEvent struct {
	ID                  int64
	EventID             string
	Topic               string
	Key                 string
	PayloadJSON         string
	CreatedUnixMillis   int64
	PublishedUnixMillis sql.NullInt64
}

// Open creates or opens the store at path
func Open(path string) (*Store, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// the engine and the publisher share the file; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS processed_commands (
			command_event_id TEXT PRIMARY KEY,
			order_id INTEGER NOT NULL,
			command TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			first_seen_unix_millis INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			topic TEXT NOT NULL,
			key TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL,
			published_unix_millis INTEGER NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
			ON outbox_events(published_unix_millis)
			WHERE published_unix_millis IS NULL`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// IsProcessed reports whether commandEventID has already been committed
func (s *Store) IsProcessed(ctx context.Context, commandEventID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM processed_commands WHERE command_event_id = ?",
		commandEventID,
	).Scan(&one)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check processed command: %w", err)
	}
}

// Commit records the outcome and queues its events atomically
func (s *Store) Commit(ctx context.Context, outcome Outcome, events []OutboxEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processed_commands (command_event_id, order_id, command, status, reason, first_seen_unix_millis)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(command_event_id) DO NOTHING`,
		outcome.CommandEventID, outcome.OrderID, outcome.Command, outcome.Status, outcome.Reason, outcome.UnixMillis,
	)
	if err != nil {
		return fmt.Errorf("failed to insert processed command: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, outcome.CommandEventID)
	}

	for _, e := range events {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox_events (event_id, topic, key, payload_json, created_unix_millis, published_unix_millis)
			 VALUES (?, ?, ?, ?, ?, NULL)`,
			e.EventID, e.Topic, e.Key, e.PayloadJSON, e.CreatedUnixMillis,
		)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListUnpublished returns unpublished outbox events in insertion order
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis
		 FROM outbox_events
		 WHERE published_unix_millis IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		err := rows.Scan(
			&e.ID, &e.EventID, &e.Topic, &e.Key,
			&e.PayloadJSON, &e.CreatedUnixMillis, &e.PublishedUnixMillis,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// MarkPublished stamps eventIDs as published in one transaction
func (s *Store) MarkPublished(ctx context.Context, nowMillis int64, eventIDs ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE outbox_events SET published_unix_millis = ? WHERE event_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	for _, id := range eventIDs {
		if _, err := stmt.ExecContext(ctx, nowMillis, id); err != nil {
			return fmt.Errorf("failed to mark event %s as published: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Pending counts events not yet published
func (s *Store) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outbox_events WHERE published_unix_millis IS NULL",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
