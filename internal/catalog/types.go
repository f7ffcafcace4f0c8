// Package catalog holds the chapter/topic model and derives the single
// global topic ordering every other component navigates over.
package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// Topic is a single learnable unit within a chapter.
type Topic struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Chapter groups topics. ChapterNumber is authoritative for ordering;
// zero means absent, in which case the number is parsed from Title.
type Chapter struct {
	ChapterNumber int     `yaml:"chapter_number" json:"chapterNumber"`
	Title         string  `yaml:"title" json:"title"`
	Topics        []Topic `yaml:"topics" json:"topics"`
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// Number returns the chapter's ordering number.
func (c Chapter) Number() int {
	if c.ChapterNumber > 0 {
		return c.ChapterNumber
	}
	return ParseChapterNumber(c.Title)
}

// ParseChapterNumber extracts a leading integer from a chapter title such
// as "2. Advanced". It returns 0 when there is none.
func ParseChapterNumber(title string) int {
	m := leadingInt.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	return atoiOrZero(m[1])
}

// TopicKey is the three-level ordering key encoded in a topic id.
type TopicKey struct {
	Chapter int
	Section int
	Topic   int
}

// Compare orders keys lexicographically by numeric component.
func (k TopicKey) Compare(o TopicKey) int {
	switch {
	case k.Chapter != o.Chapter:
		return cmpInt(k.Chapter, o.Chapter)
	case k.Section != o.Section:
		return cmpInt(k.Section, o.Section)
	default:
		return cmpInt(k.Topic, o.Topic)
	}
}

var topicKeyPattern = regexp.MustCompile(`^chapter[._]([^._]*)[._]([^._]*)[._]([^._]*)(?:[._]|$)`)

// ParseTopicKey parses ids of the form chapter_<c>_<s>_<t>_<slug>.
// Ids that do not match get the zero key; components that are not
// numbers coerce to 0.
func ParseTopicKey(id string) TopicKey {
	m := topicKeyPattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return TopicKey{}
	}
	return TopicKey{
		Chapter: atoiOrZero(m[1]),
		Section: atoiOrZero(m[2]),
		Topic:   atoiOrZero(m[3]),
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
