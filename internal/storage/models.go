package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// CacheEntry is a previously executed query and its serialized result.
type CacheEntry struct {
	Query     string
	Result    string
	CreatedAt time.Time
}

// AuditRecord logs one tool invocation for a user.
type AuditRecord struct {
	ID        string
	UserID    string
	Tool      string
	Query     string
	Outcome   string
	CreatedAt time.Time
}
