// Package navigation derives previous/next/position views over an ordered
// topic sequence. A position is a pure function of the sequence and the
// current topic id; nothing else is remembered.
package navigation

import "github.com/p-n-ai/pai-path/internal/catalog"

// Position is the cursor view around a topic.
type Position struct {
	Index    int            `json:"index"`
	Previous *catalog.Topic `json:"previous,omitempty"`
	Next     *catalog.Topic `json:"next,omitempty"`
	IsFirst  bool           `json:"isFirst"`
	IsLast   bool           `json:"isLast"`
}

// Found reports whether the topic exists in the sequence.
func (p Position) Found() bool { return p.Index >= 0 }

// Lookup classifies a locate result.
type Lookup int

const (
	// LookupLoading means the catalog is not ready yet. Callers must not
	// treat this as not-found.
	LookupLoading Lookup = iota
	LookupNotFound
	LookupFound
)

func (l Lookup) String() string {
	switch l {
	case LookupLoading:
		return "loading"
	case LookupNotFound:
		return "not_found"
	case LookupFound:
		return "found"
	default:
		return "unknown"
	}
}

// Locate computes the cursor for topicID. An unknown id yields Index -1
// with no neighbours.
func Locate(seq catalog.Sequence, topicID string) Position {
	i := seq.IndexOf(topicID)
	if i < 0 {
		return Position{Index: -1}
	}

	pos := Position{
		Index:   i,
		IsFirst: i == 0,
		IsLast:  i == seq.Len()-1,
	}
	if i > 0 {
		prev := seq.At(i - 1)
		pos.Previous = &prev
	}
	if i < seq.Len()-1 {
		next := seq.At(i + 1)
		pos.Next = &next
	}
	return pos
}

// Resolve is Locate plus the loading/not-found distinction. An empty
// sequence reads as loading.
func Resolve(seq catalog.Sequence, topicID string) (Position, Lookup) {
	return ResolveLoaded(seq, topicID, !seq.Empty())
}

// ResolveLoaded is Resolve for callers that know whether the catalog has
// loaded. A loaded but empty catalog finds nothing.
func ResolveLoaded(seq catalog.Sequence, topicID string, loaded bool) (Position, Lookup) {
	if !loaded {
		return Position{Index: -1}, LookupLoading
	}
	pos := Locate(seq, topicID)
	if !pos.Found() {
		return pos, LookupNotFound
	}
	return pos, LookupFound
}
