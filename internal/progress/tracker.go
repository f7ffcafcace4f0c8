package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-path/internal/catalog"
	"github.com/p-n-ai/pai-path/internal/navigation"
)

// Tracker is a learner's locally cached view of their progress record.
// The cache is optimistic: a topic marked complete stays complete for the
// life of the tracker, even if the remote write fails.
type Tracker struct {
	store  Store
	userID string

	mu      sync.RWMutex
	record  Record
	pending map[string]bool // marked locally, remote write not yet confirmed
	loaded  bool

	retryEvery  time.Duration
	lastAttempt time.Time
}

// Summary counts completion over a sequence.
type Summary struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// NewTracker creates a tracker for one user. Call Load to populate it.
func NewTracker(store Store, userID string) *Tracker {
	return &Tracker{
		store:   store,
		userID:  userID,
		record:  make(Record),
		pending:    make(map[string]bool),
		retryEvery: defaultLoadRetry,
	}
}

// defaultLoadRetry spaces out EnsureLoaded attempts after a failed Load.
const defaultLoadRetry = 5 * time.Second

// RetryLoadEvery sets the minimum gap between EnsureLoaded attempts.
func (t *Tracker) RetryLoadEvery(d time.Duration) {
	t.mu.Lock()
	t.retryEvery = d
	t.mu.Unlock()
}

// UserID returns the learner the tracker belongs to.
func (t *Tracker) UserID() string { return t.userID }

// Load fetches the remote record and merges it into the cache. Local
// completions are never lowered by a stale remote value.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	t.lastAttempt = time.Now()
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	remote, err := t.store.Load(ctx, t.userID)
	if err != nil {
		slog.Warn("progress load failed", "user_id", t.userID, "error", err)
		return fmt.Errorf("%w: load: %v", ErrProgressUnavailable, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, done := range remote {
		if done {
			t.record[id] = true
		}
	}
	t.loaded = true
	return nil
}

// Loaded reports whether the remote record has been read successfully.
func (t *Tracker) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// EnsureLoaded retries Load while the record has never been read, at most
// once per retry interval. It reports whether the record is loaded.
func (t *Tracker) EnsureLoaded(ctx context.Context) bool {
	t.mu.RLock()
	loaded, due := t.loaded, time.Since(t.lastAttempt) >= t.retryEvery
	t.mu.RUnlock()
	if loaded {
		return true
	}
	if !due {
		return false
	}
	return t.Load(ctx) == nil
}

// IsTopicComplete reports the cached completion of a topic.
func (t *Tracker) IsTopicComplete(topicID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record[topicID]
}

// MarkComplete marks a topic complete locally, then writes it remotely.
// A remote failure is returned but never rolls back the local mark.
// Marking an already-confirmed topic does nothing. The remote write is not
// cancelled with ctx; only storeTimeout bounds it.
func (t *Tracker) MarkComplete(ctx context.Context, topicID string) error {
	t.mu.Lock()
	if t.record[topicID] && !t.pending[topicID] {
		t.mu.Unlock()
		return nil
	}
	t.record[topicID] = true
	t.pending[topicID] = true
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if err := t.store.MarkComplete(ctx, t.userID, topicID); err != nil {
		slog.Warn("progress update failed, keeping local mark",
			"user_id", t.userID,
			"topic_id", topicID,
			"error", err,
		)
		return fmt.Errorf("%w: mark %s: %v", ErrProgressUnavailable, topicID, err)
	}

	t.mu.Lock()
	delete(t.pending, topicID)
	t.mu.Unlock()
	return nil
}

// IsPathComplete reports whether currentTopicID is the last topic and every
// topic before it is complete. It is false whenever the answer cannot be
// known: record never loaded, catalog empty, or topic not found.
func (t *Tracker) IsPathComplete(seq catalog.Sequence, currentTopicID string) bool {
	pos := navigation.Locate(seq, currentTopicID)
	if !pos.Found() || !pos.IsLast {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.loaded {
		return false
	}
	for i := 0; i < pos.Index; i++ {
		if !t.record[seq.At(i).ID] {
			return false
		}
	}
	return true
}

// Summary counts completed topics in seq. Record keys outside seq are ignored.
func (t *Tracker) Summary(seq catalog.Sequence) Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Total: seq.Len()}
	for i := 0; i < seq.Len(); i++ {
		if t.record[seq.At(i).ID] {
			s.Completed++
		}
	}
	return s
}
