package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-path/internal/catalog"
)

func TestDirSource_LoadChapters(t *testing.T) {
	dir := setupTestCatalog(t)

	chapters, err := catalog.NewDirSource(dir).Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("len(chapters) = %d, want 2", len(chapters))
	}

	seq := catalog.Order(chapters)
	if seq.Len() != 3 {
		t.Fatalf("seq.Len() = %d, want 3", seq.Len())
	}
	if seq.At(0).ID != "chapter_1_1_1_intro" {
		t.Errorf("seq[0] = %q, want chapter_1_1_1_intro", seq.At(0).ID)
	}
}

func TestDirSource_SkipsInvalidChapters(t *testing.T) {
	dir := setupTestCatalog(t)

	// Missing topics, fails the shape check.
	os.WriteFile(filepath.Join(dir, "03-broken.yaml"), []byte("title: Broken\n"), 0o644)
	// Not YAML at all.
	os.WriteFile(filepath.Join(dir, "04-garbage.yaml"), []byte("{{{{"), 0o644)
	// Topic without an id.
	os.WriteFile(filepath.Join(dir, "05-noid.yaml"), []byte("title: X\ntopics:\n  - title: nameless\n"), 0o644)

	chapters, err := catalog.NewDirSource(dir).Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 2 {
		t.Errorf("len(chapters) = %d, want 2 (invalid chapters should be skipped)", len(chapters))
	}
}

func TestDirSource_EmptyDir(t *testing.T) {
	chapters, err := catalog.NewDirSource(t.TempDir()).Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 0 {
		t.Errorf("len(chapters) = %d, want 0 for empty dir", len(chapters))
	}
}

func TestDirSource_MissingDir(t *testing.T) {
	_, err := catalog.NewDirSource(filepath.Join(t.TempDir(), "nope")).Chapters(context.Background())
	if !errors.Is(err, catalog.ErrCatalogUnavailable) {
		t.Fatalf("Chapters() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestDirSource_Workbook(t *testing.T) {
	dir := t.TempDir()

	f := excelize.NewFile()
	rows := [][]any{
		{"chapter_number", "chapter_title", "topic_id", "topic_title"},
		{1, "1. Basics", "chapter_1_1_2_more", "More"},
		{1, "1. Basics", "chapter_1_1_1_intro", "Intro"},
		{2, "2. Advanced", "chapter_2_1_1_deep", "Deep Dive"},
		{2, "2. Advanced", "", "no id, skipped"},
	}
	for i, row := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	if err := f.SaveAs(filepath.Join(dir, "catalog.xlsx")); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	_ = f.Close()

	chapters, err := catalog.NewDirSource(dir).Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("len(chapters) = %d, want 2", len(chapters))
	}
	if chapters[0].ChapterNumber != 1 || len(chapters[0].Topics) != 2 {
		t.Errorf("chapters[0] = %+v, want chapter 1 with 2 topics", chapters[0])
	}
	if chapters[1].Title != "2. Advanced" || len(chapters[1].Topics) != 1 {
		t.Errorf("chapters[1] = %+v, want 2. Advanced with 1 topic", chapters[1])
	}

	seq := catalog.Order(chapters)
	if seq.At(0).Title != "Intro" {
		t.Errorf("seq[0] = %q, want Intro", seq.At(0).Title)
	}
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"chapterNumber":1,"title":"1. Basics","topics":[{"id":"chapter_1_1_1_intro","title":"Intro"}]}]`))
	}))
	defer server.Close()

	src := catalog.NewHTTPSource(server.URL, catalog.WithRetry(3, time.Millisecond))
	chapters, err := src.Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 1 || chapters[0].Topics[0].Title != "Intro" {
		t.Errorf("Chapters() = %+v, want one chapter with Intro", chapters)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPSource_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := catalog.NewHTTPSource(server.URL, catalog.WithRetry(3, time.Millisecond))
	_, err := src.Chapters(context.Background())
	if !errors.Is(err, catalog.ErrCatalogUnavailable) {
		t.Fatalf("Chapters() error = %v, want ErrCatalogUnavailable", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestWatcher_TriggersOnChange(t *testing.T) {
	dir := setupTestCatalog(t)

	changed := make(chan struct{}, 1)
	w, err := catalog.NewWatcher(dir, 20*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	os.WriteFile(filepath.Join(dir, "03-new.yaml"), []byte("title: New\ntopics: []\n"), 0o644)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report change")
	}
}

func setupTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, "01-basics.yaml"), []byte(`
chapter_number: 1
title: "1. Basics"
topics:
  - id: chapter_1_1_2_more
    title: More
  - id: chapter_1_1_1_intro
    title: Intro
`), 0o644)

	os.WriteFile(filepath.Join(dir, "02-advanced.yaml"), []byte(`
title: "2. Advanced"
topics:
  - id: chapter_2_1_1_deep
    title: Deep Dive
`), 0o644)

	return dir
}
