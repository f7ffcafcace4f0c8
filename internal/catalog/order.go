package catalog

import "slices"

// Sequence is the flattened, totally ordered list of every topic in a
// catalog. It is never mutated after Order returns it.
type Sequence struct {
	topics  []Topic
	index   map[string]int
	parents []string
}

// Order flattens chapters into one deterministic sequence: chapters by
// Number, then topics by their id key. Ties keep catalog array order.
func Order(chapters []Chapter) Sequence {
	sorted := slices.Clone(chapters)
	slices.SortStableFunc(sorted, func(a, b Chapter) int {
		return cmpInt(a.Number(), b.Number())
	})

	seq := Sequence{index: make(map[string]int)}
	for _, ch := range sorted {
		topics := slices.Clone(ch.Topics)
		slices.SortStableFunc(topics, func(a, b Topic) int {
			return ParseTopicKey(a.ID).Compare(ParseTopicKey(b.ID))
		})
		for _, t := range topics {
			if _, dup := seq.index[t.ID]; !dup {
				seq.index[t.ID] = len(seq.topics)
			}
			seq.topics = append(seq.topics, t)
			seq.parents = append(seq.parents, ch.Title)
		}
	}
	return seq
}

// Len returns the number of topics.
func (s Sequence) Len() int { return len(s.topics) }

// Empty reports whether the sequence has no topics, which is also the
// state before a catalog has loaded.
func (s Sequence) Empty() bool { return len(s.topics) == 0 }

// At returns the topic at position i.
func (s Sequence) At(i int) Topic { return s.topics[i] }

// IndexOf returns the position of the topic with the given id, or -1.
func (s Sequence) IndexOf(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// ChapterTitle returns the title of the chapter containing position i.
func (s Sequence) ChapterTitle(i int) string { return s.parents[i] }

// Topics returns a copy of the ordered topics.
func (s Sequence) Topics() []Topic { return slices.Clone(s.topics) }
