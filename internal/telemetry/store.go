// Package telemetry records command and exception events in a local sqlite
// database. Recording is best effort and never fails a command.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const (
	KindCommand   = "command"
	KindException = "exception"

	// Retention bounds how long events are kept.
	Retention = 30 * 24 * time.Hour

	lockWait = 250 * time.Millisecond
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

type Event struct {
	ID        int64
	Kind      string
	Command   string
	Output    string
	Flags     []string
	Fault     string
	Message   string
	RequestID string
	CreatedAt time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite telemetry: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			command TEXT NOT NULL,
			output TEXT NOT NULL,
			flags TEXT NOT NULL,
			fault TEXT NOT NULL,
			message TEXT NOT NULL,
			request_id TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init telemetry schema: %w", err)
		}
	}

	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}
	_ = store.Prune()
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune deletes events older than Retention.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := s.now().UTC().Add(-Retention).Unix()
	if _, err := s.db.Exec("DELETE FROM events WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("prune telemetry: %w", err)
	}
	return nil
}

// Append stores one event under the write lock.
func (s *Store) Append(ctx context.Context, e Event) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock telemetry: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock telemetry: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	flags, err := json.Marshal(nonNil(e.Flags))
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (kind, command, output, flags, fault, message, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Kind, e.Command, e.Output, string(flags), e.Fault, e.Message, e.RequestID, created.UTC().Unix())
	if err != nil {
		return fmt.Errorf("telemetry write: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, command, output, flags, fault, message, request_id, created_at
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetry read: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		var flags string
		var created int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Command, &e.Output, &flags, &e.Fault, &e.Message, &e.RequestID, &created); err != nil {
			return nil, fmt.Errorf("telemetry scan: %w", err)
		}
		if err := json.Unmarshal([]byte(flags), &e.Flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
