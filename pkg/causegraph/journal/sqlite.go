package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists journal records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite journal store.
// The path should be a file path (e.g., "./journal.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			ledger_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			event_id TEXT NOT NULL,
			source TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			depends_on TEXT NOT NULL,
			payload BLOB,
			appended_at TEXT NOT NULL,
			PRIMARY KEY (ledger_id, sequence)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_journal_event_id
		ON journal(ledger_id, event_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ledgerID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	deps, err := json.Marshal(rec.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}

	appendedAt := rec.AppendedAt
	if appendedAt.IsZero() {
		appendedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO journal (ledger_id, sequence, event_id, source, timestamp, depends_on, payload, appended_at)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM journal WHERE ledger_id = ?), 0) + 1,
			?, ?, ?, ?, ?, ?
		)
	`, ledgerID, ledgerID, rec.EventID, rec.Source, rec.Timestamp, string(deps), rec.Payload,
		appendedAt.Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ledgerID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT sequence, event_id, source, timestamp, depends_on, payload, appended_at
		FROM journal
		WHERE ledger_id = ?
		ORDER BY sequence
	`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var deps string
		var appendedAt string
		if err := rows.Scan(&rec.Sequence, &rec.EventID, &rec.Source, &rec.Timestamp,
			&deps, &rec.Payload, &appendedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(deps), &rec.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, appendedAt); err == nil {
			rec.AppendedAt = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// DeleteLedger implements Store.
func (s *SQLiteStore) DeleteLedger(ledgerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM journal WHERE ledger_id = ?`, ledgerID); err != nil {
		return fmt.Errorf("delete ledger records: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
