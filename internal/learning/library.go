// Package learning orchestrates a learner's walk through the catalog:
// ordering, navigation, progress and the feedback gate.
package learning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-path/internal/catalog"
	"github.com/p-n-ai/pai-path/internal/navigation"
	"github.com/p-n-ai/pai-path/internal/search"
)

// Snapshot is one consistent build of the catalog and everything derived
// from it.
type Snapshot struct {
	Chapters []catalog.Chapter
	Sequence catalog.Sequence
	Entries  []search.Entry
	LoadedAt time.Time
}

// Library owns the current catalog snapshot and rebuilds it on reload.
type Library struct {
	source catalog.Source

	reloadMu sync.Mutex
	mu       sync.RWMutex
	snap     Snapshot
	ready    bool
	lastErr  error
}

// NewLibrary creates an empty library. Until the first successful Reload
// every view over it is empty.
func NewLibrary(source catalog.Source) *Library {
	return &Library{source: source}
}

// Reload fetches the catalog and swaps in a fresh snapshot. On failure the
// previous snapshot stays in place.
func (l *Library) Reload(ctx context.Context) error {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	chapters, err := l.source.Chapters(ctx)
	if err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		slog.Warn("catalog reload failed, keeping previous snapshot", "error", err)
		return err
	}

	snap := Snapshot{
		Chapters: chapters,
		Sequence: catalog.Order(chapters),
		Entries:  search.Build(chapters),
		LoadedAt: time.Now(),
	}

	l.mu.Lock()
	l.snap = snap
	l.ready = true
	l.lastErr = nil
	l.mu.Unlock()

	slog.Info("catalog rebuilt",
		"chapters", len(chapters),
		"topics", snap.Sequence.Len(),
	)
	return nil
}

// Snapshot returns the current snapshot.
func (l *Library) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Ready reports whether a catalog has loaded at least once.
func (l *Library) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Err returns the error of the most recent failed reload, if the last
// reload failed.
func (l *Library) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Locate resolves a topic against the current sequence.
// Before the first successful Reload every lookup is loading; afterwards
// even an empty catalog answers not-found.
func (l *Library) Locate(topicID string) (navigation.Position, navigation.Lookup) {
	l.mu.RLock()
	seq, ready := l.snap.Sequence, l.ready
	l.mu.RUnlock()
	return navigation.ResolveLoaded(seq, topicID, ready)
}

// Search runs a title query over the current snapshot.
func (l *Library) Search(text string) []search.Entry {
	return search.Query(l.Snapshot().Entries, text)
}
