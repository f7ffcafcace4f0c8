// Package search builds a flat, typed, title-searchable view of a catalog.
package search

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/pai-path/internal/catalog"
)

// Kind tells chapter entries from topic entries.
type Kind string

const (
	KindChapter Kind = "chapter"
	KindTopic   Kind = "topic"
)

// Entry is one searchable catalog item.
type Entry struct {
	Kind          Kind   `json:"kind"`
	ID            string `json:"id"`
	Title         string `json:"title"`
	ParentChapter string `json:"parentChapter,omitempty"`

	folded string
}

// Build flattens chapters in catalog order: each chapter followed by its
// topics, all in array order.
func Build(chapters []catalog.Chapter) []Entry {
	fold := cases.Fold()
	var entries []Entry
	for i, ch := range chapters {
		entries = append(entries, Entry{
			Kind:   KindChapter,
			ID:     chapterID(ch, i),
			Title:  ch.Title,
			folded: fold.String(ch.Title),
		})
		for _, t := range ch.Topics {
			entries = append(entries, Entry{
				Kind:          KindTopic,
				ID:            t.ID,
				Title:         t.Title,
				ParentChapter: ch.Title,
				folded:        fold.String(t.Title),
			})
		}
	}
	return entries
}

// chapterID is the chapter number, or "unnumbered-<position>" for chapters
// without one so their ids stay distinct.
func chapterID(ch catalog.Chapter, position int) string {
	if n := ch.Number(); n > 0 {
		return strconv.Itoa(n)
	}
	return "unnumbered-" + strconv.Itoa(position)
}

// Query returns the entries whose title contains text, ignoring case. An
// empty or blank query matches nothing.
func Query(entries []Entry, text string) []Entry {
	results := []Entry{}
	if strings.TrimSpace(text) == "" {
		return results
	}

	fold := cases.Fold()
	needle := fold.String(text)
	for _, e := range entries {
		haystack := e.folded
		if haystack == "" && e.Title != "" {
			haystack = fold.String(e.Title)
		}
		if strings.Contains(haystack, needle) {
			results = append(results, e)
		}
	}
	return results
}
