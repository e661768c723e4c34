// Package storage persists small operational records: an audit trail of
// produced segments and the seen-title window used for news deduplication.
// The live stream itself is never stored.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

// ProductionRecord is one audit row per produced (or failed) segment.
type ProductionRecord struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title,omitempty"`
	Path     string    `json:"path,omitempty"`
	Bytes    int64     `json:"bytes,omitempty"`
	Duration float64   `json:"duration_s,omitempty"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
}

// Store is the persistence surface. Implementations must be safe for
// concurrent use.
type Store interface {
	// AppendProduction records one produced segment (or failure).
	AppendProduction(ctx context.Context, rec ProductionRecord) error

	// MarkSeen remembers key until the given expiry. Re-marking extends it.
	MarkSeen(ctx context.Context, key string, until time.Time) error

	// Seen reports whether key was marked and has not expired.
	Seen(ctx context.Context, key string) (bool, error)

	// RecentProductions returns up to limit most recent records, newest first.
	RecentProductions(ctx context.Context, limit int) ([]ProductionRecord, error)

	Close() error
}
