package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-path/internal/platform/cache"
	"github.com/p-n-ai/pai-path/internal/platform/database/dbtest"
)

func TestMemoryStore_LoadUnknownUser(t *testing.T) {
	rec, err := NewMemoryStore().Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec) != 0 {
		t.Errorf("Load() = %v, want empty", rec)
	}
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.MarkComplete(ctx, "u1", "a")

	rec, _ := s.Load(ctx, "u1")
	rec["b"] = true

	again, _ := s.Load(ctx, "u1")
	if again["b"] {
		t.Error("Load() should return a copy")
	}
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Record
		wantErr bool
	}{
		{"list", `[{"id":"a","completed":true},{"id":"b","completed":false}]`, Record{"a": true, "b": false}, false},
		{"map", `{"a":true,"b":false}`, Record{"a": true, "b": false}, false},
		{"null", `null`, Record{}, false},
		{"empty", ``, Record{}, false},
		{"html", `<html>oops</html>`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecord([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("decodeRecord() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("decodeRecord()[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestHTTPStore(t *testing.T) {
	var posted markRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/progress/user 1":
			w.Write([]byte(`[{"id":"chapter_1_1_1_intro","completed":true}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/progress/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.Method == http.MethodPost && r.URL.Path == "/progress":
			json.NewDecoder(r.Body).Decode(&posted)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	s := NewHTTPStore(server.URL+"/", nil)

	rec, err := s.Load(ctx, "user 1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rec["chapter_1_1_1_intro"] {
		t.Errorf("Load() = %v, want chapter_1_1_1_intro complete", rec)
	}

	if _, err := s.Load(ctx, "down"); err == nil {
		t.Error("Load() should fail on 503")
	}

	rec, err = s.Load(ctx, "unknown")
	if err != nil || len(rec) != 0 {
		t.Errorf("Load(unknown) = %v, %v; want empty record", rec, err)
	}

	if err := s.MarkComplete(ctx, "user 1", "chapter_1_1_2_more"); err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	if posted.UserIdentity != "user 1" || posted.TopicID != "chapter_1_1_2_more" {
		t.Errorf("posted = %+v", posted)
	}
}

func TestUserKey(t *testing.T) {
	k := userKey("alice@example.com")
	if k != userKey("alice@example.com") {
		t.Error("userKey() should be deterministic")
	}
	if strings.Contains(k, "alice") {
		t.Errorf("userKey() = %q leaks the identity", k)
	}
	if !strings.HasPrefix(k, "learn:progress:") {
		t.Errorf("userKey() = %q, want prefix learn:progress:", k)
	}
	if k == userKey("bob@example.com") {
		t.Error("userKey() collides for different users")
	}
}

func TestNewRedisStore_NilClient(t *testing.T) {
	if _, err := NewRedisStore(nil); err == nil {
		t.Fatal("NewRedisStore(nil) should error")
	}
}

func TestRedisStore_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	client, err := cache.NewClient("redis://localhost:59999")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	s, _ := NewRedisStore(client)
	if _, err := s.Load(t.Context(), "u1"); err == nil {
		t.Fatal("Load() should fail for unreachable host")
	}
}

func TestPostgresStore(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := t.Context()

	s, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	if err := s.MarkComplete(ctx, "u1", "chapter_1_1_1_intro"); err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	// Idempotent.
	if err := s.MarkComplete(ctx, "u1", "chapter_1_1_1_intro"); err != nil {
		t.Fatalf("MarkComplete() repeat error = %v", err)
	}

	rec, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec) != 1 || !rec["chapter_1_1_1_intro"] {
		t.Errorf("Load() = %v, want one completed topic", rec)
	}

	rec, err = s.Load(ctx, "u2")
	if err != nil || len(rec) != 0 {
		t.Errorf("Load(u2) = %v, %v; want empty", rec, err)
	}
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatal("NewPostgresStore(nil) should error")
	}
}
