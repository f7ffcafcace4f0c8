package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrCatalogUnavailable wraps every failure to obtain a catalog.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// chapterSchema checks document shape only. Content correctness is the
// authoring process's concern.
const chapterSchema = `{
  "type": "object",
  "required": ["title", "topics"],
  "properties": {
    "chapter_number": {"type": "integer"},
    "title": {"type": "string"},
    "topics": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"}
        }
      }
    }
  }
}`

var compiledChapterSchema = mustCompileSchema(chapterSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling chapter schema: %v", err))
	}
	return s
}

// ValidateChapterDocument validates a decoded chapter document.
func ValidateChapterDocument(doc any) error {
	result, err := compiledChapterSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating chapter: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid chapter: %s", strings.Join(msgs, "; "))
}
