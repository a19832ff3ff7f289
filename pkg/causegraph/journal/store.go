// Package journal provides an optional append-only mirror log for ledgers.
//
// The in-memory ledger is authoritative; a journal is a best-effort record
// of successful appends that a surrounding layer can use for audit or
// offline reconstruction. Journal failures never block the ledger.
package journal

import (
	"errors"
	"time"
)

// Record is one mirrored append.
type Record struct {
	// Sequence is the append index within the ledger, starting at 1.
	Sequence int `json:"sequence"`

	// EventID, Source, and Timestamp echo the appended event.
	EventID   string `json:"event_id"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`

	// DependsOn is the declared direct dependency set.
	DependsOn []string `json:"depends_on,omitempty"`

	// Payload is the JSON-serialized event content.
	Payload []byte `json:"payload,omitempty"`

	// AppendedAt is the wall-clock time of the mirror write.
	AppendedAt time.Time `json:"appended_at"`
}

// Store persists journal records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append writes a record for the given ledger.
	Append(ledgerID string, rec Record) error

	// List returns all records for a ledger in sequence order.
	// Returns an empty slice (not an error) for an unknown ledger.
	List(ledgerID string) ([]Record, error)

	// DeleteLedger removes all records for a ledger.
	// Returns nil if the ledger has no records.
	DeleteLedger(ledgerID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
