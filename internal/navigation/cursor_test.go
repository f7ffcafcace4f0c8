package navigation_test

import (
	"fmt"
	"testing"

	"github.com/p-n-ai/pai-path/internal/catalog"
	"github.com/p-n-ai/pai-path/internal/navigation"
)

func exampleSequence() catalog.Sequence {
	return catalog.Order([]catalog.Chapter{
		{ChapterNumber: 1, Title: "1. Basics", Topics: []catalog.Topic{
			{ID: "chapter_1_1_1_intro", Title: "Intro"},
			{ID: "chapter_1_1_2_more", Title: "More"},
		}},
		{ChapterNumber: 2, Title: "2. Advanced", Topics: []catalog.Topic{
			{ID: "chapter_2_1_1_deep", Title: "Deep Dive"},
		}},
	})
}

func TestLocate_Example(t *testing.T) {
	pos := navigation.Locate(exampleSequence(), "chapter_1_1_2_more")

	if pos.Index != 1 {
		t.Errorf("Index = %d, want 1", pos.Index)
	}
	if pos.Previous == nil || pos.Previous.Title != "Intro" {
		t.Errorf("Previous = %+v, want Intro", pos.Previous)
	}
	if pos.Next == nil || pos.Next.Title != "Deep Dive" {
		t.Errorf("Next = %+v, want Deep Dive", pos.Next)
	}
	if pos.IsFirst || pos.IsLast {
		t.Errorf("IsFirst=%v IsLast=%v, want both false", pos.IsFirst, pos.IsLast)
	}
}

func TestLocate_Boundaries(t *testing.T) {
	seq := exampleSequence()

	first := navigation.Locate(seq, "chapter_1_1_1_intro")
	if !first.IsFirst || first.Previous != nil || first.Next == nil {
		t.Errorf("first = %+v, want IsFirst with no previous", first)
	}

	last := navigation.Locate(seq, "chapter_2_1_1_deep")
	if !last.IsLast || last.Next != nil || last.Previous == nil {
		t.Errorf("last = %+v, want IsLast with no next", last)
	}
}

func TestLocate_Neighbours(t *testing.T) {
	var topics []catalog.Topic
	for i := 1; i <= 12; i++ {
		topics = append(topics, catalog.Topic{ID: fmt.Sprintf("chapter_1_1_%d_t", i), Title: fmt.Sprint(i)})
	}
	seq := catalog.Order([]catalog.Chapter{{ChapterNumber: 1, Title: "One", Topics: topics}})

	for i := 1; i <= seq.Len()-2; i++ {
		pos := navigation.Locate(seq, seq.At(i).ID)
		if pos.Previous.ID != seq.At(i-1).ID {
			t.Errorf("Locate(%d).Previous = %s, want %s", i, pos.Previous.ID, seq.At(i-1).ID)
		}
		if pos.Next.ID != seq.At(i+1).ID {
			t.Errorf("Locate(%d).Next = %s, want %s", i, pos.Next.ID, seq.At(i+1).ID)
		}
	}
}

func TestLocate_SingleTopic(t *testing.T) {
	seq := catalog.Order([]catalog.Chapter{{ChapterNumber: 1, Title: "One", Topics: []catalog.Topic{{ID: "only"}}}})

	pos := navigation.Locate(seq, "only")
	if !pos.IsFirst || !pos.IsLast || pos.Previous != nil || pos.Next != nil {
		t.Errorf("Locate(only) = %+v, want first and last with no neighbours", pos)
	}
}

func TestLocate_Unknown(t *testing.T) {
	pos := navigation.Locate(exampleSequence(), "missing")

	if pos.Index != -1 || pos.Found() {
		t.Errorf("Index = %d, want -1", pos.Index)
	}
	if pos.Previous != nil || pos.Next != nil || pos.IsFirst || pos.IsLast {
		t.Errorf("unknown id should have no neighbours or flags, got %+v", pos)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		seq  catalog.Sequence
		id   string
		want navigation.Lookup
	}{
		{"loading", catalog.Order(nil), "chapter_1_1_1_intro", navigation.LookupLoading},
		{"not found", exampleSequence(), "missing", navigation.LookupNotFound},
		{"found", exampleSequence(), "chapter_1_1_1_intro", navigation.LookupFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := navigation.Resolve(tt.seq, tt.id)
			if got != tt.want {
				t.Errorf("Resolve() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveLoaded_EmptyCatalog(t *testing.T) {
	if _, got := navigation.ResolveLoaded(catalog.Order(nil), "chapter_1_1_1_intro", false); got != navigation.LookupLoading {
		t.Errorf("ResolveLoaded(not loaded) = %s, want loading", got)
	}
	if _, got := navigation.ResolveLoaded(catalog.Order(nil), "chapter_1_1_1_intro", true); got != navigation.LookupNotFound {
		t.Errorf("ResolveLoaded(loaded, empty) = %s, want not_found", got)
	}
}
