/*
Package sqlite persists feedback submissions in SQLite.

PURPOSE:
  The calculator itself is stateless. The only thing the service stores is
  user feedback, so that a message survives a mail outage and can be
  redelivered by the dispatcher.

KEY TABLES:
  feedback: One row per submission, with delivery bookkeeping
            (delivered_at, attempts, last_error)

INDEXES:
  - idx_feedback_pending: Dispatcher scan of undelivered rows, oldest first

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is pinned to a
  single connection so every query sees the same schema.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/paycalc.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - feedback/service.go:    Writes submissions
  - feedback/dispatcher.go: Redelivers pending submissions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists feedback using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		subject TEXT,
		message TEXT NOT NULL,
		remote_addr TEXT,
		created_at TEXT NOT NULL,
		delivered_at TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_pending
		ON feedback(created_at) WHERE delivered_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FEEDBACK
// =============================================================================

// FeedbackRecord is a stored feedback submission.
type FeedbackRecord struct {
	ID          string
	Name        string
	Email       string
	Subject     string
	Message     string
	RemoteAddr  string
	CreatedAt   time.Time
	DeliveredAt *time.Time
	Attempts    int
	LastError   string
}

// Delivered reports whether the submission has been mailed.
func (r FeedbackRecord) Delivered() bool {
	return r.DeliveredAt != nil
}

// SaveFeedback inserts a new submission.
func (s *Store) SaveFeedback(ctx context.Context, rec FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return errors.New("feedback id is required")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, name, email, subject, message, remote_addr, created_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.ID, rec.Name, rec.Email, rec.Subject, rec.Message, rec.RemoteAddr,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// GetFeedback returns a submission by ID, or nil if it does not exist.
func (s *Store) GetFeedback(ctx context.Context, id string) (*FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectFeedback+" WHERE id = ?", id)
	rec, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListFeedback returns the most recent submissions first.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	return s.queryFeedback(ctx, selectFeedback+" ORDER BY created_at DESC LIMIT ?", limit)
}

// ListPending returns undelivered submissions that have been tried fewer
// than maxAttempts times, oldest first.
func (s *Store) ListPending(ctx context.Context, maxAttempts, limit int) ([]FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	return s.queryFeedback(ctx,
		selectFeedback+" WHERE delivered_at IS NULL AND attempts < ? ORDER BY created_at ASC LIMIT ?",
		maxAttempts, limit)
}

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE feedback SET delivered_at = ?, attempts = attempts + 1, last_error = NULL WHERE id = ?",
		at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to mark feedback delivered: %w", err)
	}
	return requireRow(result, id)
}

// RecordFailure records a failed delivery attempt.
func (s *Store) RecordFailure(ctx context.Context, id string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE feedback SET attempts = attempts + 1, last_error = ? WHERE id = ?", msg, id)
	if err != nil {
		return fmt.Errorf("failed to record delivery failure: %w", err)
	}
	return requireRow(result, id)
}

// CountPending returns the number of undelivered submissions.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM feedback WHERE delivered_at IS NULL").Scan(&count)
	return count, err
}

const selectFeedback = `
	SELECT id, name, email, subject, message, remote_addr, created_at, delivered_at, attempts, last_error
	FROM feedback`

type scanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row scanner) (FeedbackRecord, error) {
	var (
		rec         FeedbackRecord
		subject     sql.NullString
		remoteAddr  sql.NullString
		createdAt   string
		deliveredAt sql.NullString
		lastError   sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &subject, &rec.Message, &remoteAddr,
		&createdAt, &deliveredAt, &rec.Attempts, &lastError)
	if err != nil {
		return rec, err
	}

	rec.Subject = subject.String
	rec.RemoteAddr = remoteAddr.String
	rec.LastError = lastError.String
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if deliveredAt.Valid {
		t, _ := time.Parse(timeLayout, deliveredAt.String)
		rec.DeliveredAt = &t
	}
	return rec, nil
}

func (s *Store) queryFeedback(ctx context.Context, query string, args ...any) ([]FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var records []FeedbackRecord
	for rows.Next() {
		rec, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("feedback not found: %s", id)
	}
	return nil
}
