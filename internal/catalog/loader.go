package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Source supplies the raw catalog.
type Source interface {
	Chapters(ctx context.Context) ([]Chapter, error)
}

// DirSource loads chapters from a content directory. Every YAML file is one
// chapter; every .xlsx workbook holds chapter/topic rows.
type DirSource struct {
	rootDir string
}

// NewDirSource creates a directory-backed catalog source.
func NewDirSource(rootDir string) *DirSource {
	return &DirSource{rootDir: rootDir}
}

// Root returns the watched content directory.
func (s *DirSource) Root() string { return s.rootDir }

// Chapters walks the directory in lexical order, so the resulting catalog
// array order is stable across loads.
func (s *DirSource) Chapters(ctx context.Context) ([]Chapter, error) {
	if _, err := os.Stat(s.rootDir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	var chapters []Chapter
	err := filepath.WalkDir(s.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			ch, ok, err := loadChapterYAML(path)
			if err != nil {
				return err
			}
			if ok {
				chapters = append(chapters, ch)
			}
		case ".xlsx":
			chs, err := loadWorkbook(path)
			if err != nil {
				slog.Warn("skipping unreadable catalog workbook", "path", path, "error", err)
				return nil
			}
			chapters = append(chapters, chs...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrCatalogUnavailable, s.rootDir, err)
	}

	slog.Info("catalog loaded", "root", s.rootDir, "chapters", len(chapters))
	return chapters, nil
}

func loadChapterYAML(path string) (Chapter, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chapter{}, false, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Warn("skipping invalid chapter YAML", "path", path, "error", err)
		return Chapter{}, false, nil
	}
	if doc == nil {
		return Chapter{}, false, nil
	}
	if err := ValidateChapterDocument(doc); err != nil {
		slog.Warn("skipping chapter YAML", "path", path, "error", err)
		return Chapter{}, false, nil
	}

	var ch Chapter
	if err := yaml.Unmarshal(data, &ch); err != nil {
		slog.Warn("skipping invalid chapter YAML", "path", path, "error", err)
		return Chapter{}, false, nil
	}
	return ch, true, nil
}

var workbookColumns = []string{"chapter_number", "chapter_title", "topic_id", "topic_title"}

// loadWorkbook reads every sheet of an authoring workbook. The first row of
// a sheet is a header naming the columns; consecutive rows sharing a
// chapter title are one chapter.
func loadWorkbook(path string) ([]Chapter, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var chapters []Chapter
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}

		cols := headerIndex(rows[0])
		if _, ok := cols["topic_id"]; !ok {
			slog.Warn("skipping sheet without topic_id column", "path", path, "sheet", sheet)
			continue
		}

		for _, row := range rows[1:] {
			id := cell(row, cols, "topic_id")
			if id == "" {
				continue
			}
			title := cell(row, cols, "chapter_title")
			number, _ := strconv.Atoi(cell(row, cols, "chapter_number"))

			last := len(chapters) - 1
			if last < 0 || chapters[last].Title != title || chapters[last].ChapterNumber != number {
				chapters = append(chapters, Chapter{ChapterNumber: number, Title: title})
				last++
			}
			chapters[last].Topics = append(chapters[last].Topics, Topic{
				ID:    id,
				Title: cell(row, cols, "topic_title"),
			})
		}
	}
	return chapters, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(workbookColumns))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, want := range workbookColumns {
			if name == want {
				cols[want] = i
			}
		}
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
