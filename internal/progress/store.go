// Package progress tracks per-learner topic completion against the ordered
// catalog and persists it to an external progress store.
package progress

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrProgressUnavailable wraps every failure to read or write the progress store.
var ErrProgressUnavailable = errors.New("progress unavailable")

const storeTimeout = 5 * time.Second

// Record maps topic ids to completion.
type Record map[string]bool

// Store is the external progress source.
type Store interface {
	// Load returns the completion record for a user. Missing users yield an
	// empty record, not an error.
	Load(ctx context.Context, userID string) (Record, error)
	// MarkComplete records a topic as complete. It is idempotent.
	MarkComplete(ctx context.Context, userID, topicID string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records[userID]), nil
}

func (s *MemoryStore) MarkComplete(_ context.Context, userID, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = make(Record)
		s.records[userID] = rec
	}
	rec[topicID] = true
	return nil
}
