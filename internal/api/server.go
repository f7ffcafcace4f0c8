// Package api serves the learning path over HTTP and a per-learner
// WebSocket session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/p-n-ai/pai-path/internal/content"
	"github.com/p-n-ai/pai-path/internal/feedback"
	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/navigation"
	"github.com/p-n-ai/pai-path/internal/progress"
	"github.com/p-n-ai/pai-path/internal/search"
)

// UserHeader carries the learner identity set by the fronting auth layer.
const UserHeader = "X-User-ID"

const checkTimeout = 2 * time.Second

// HealthCheck is a named readiness check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds dependencies for the API server.
type Config struct {
	Library       *learning.Library
	Progress      progress.Store
	Content       content.Fetcher // optional
	Feedback      feedback.Sink
	Events        learning.EventLogger
	SubmitTimeout time.Duration
	Checks        []HealthCheck
}

// Server routes API requests onto the learning engine.
type Server struct {
	library       *learning.Library
	progress      progress.Store
	content       content.Fetcher
	feedback      feedback.Sink
	events        learning.EventLogger
	submitTimeout time.Duration
	checks        []HealthCheck
}

// New creates an API server.
func New(cfg Config) *Server {
	store := cfg.Progress
	if store == nil {
		store = progress.NewMemoryStore()
	}
	sink := cfg.Feedback
	if sink == nil {
		sink = feedback.NopSink{}
	}
	events := cfg.Events
	if events == nil {
		events = learning.NopEventLogger{}
	}
	return &Server{
		library:       cfg.Library,
		progress:      store,
		content:       cfg.Content,
		feedback:      sink,
		events:        events,
		submitTimeout: cfg.SubmitTimeout,
		checks:        cfg.Checks,
	}
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /v1/path", s.handlePath)
	mux.HandleFunc("GET /v1/topics/{id}/position", s.handlePosition)
	mux.HandleFunc("GET /v1/topics/{id}/content", s.handleContent)
	mux.HandleFunc("GET /v1/search", s.handleSearch)
	mux.HandleFunc("GET /v1/progress", s.handleProgress)
	mux.HandleFunc("POST /v1/progress/{id}", s.handleMarkComplete)
	mux.HandleFunc("GET /v1/session", s.handleSession)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.library.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"check":  c.Name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type pathTopic struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Chapter string `json:"chapter"`
}

type pathResponse struct {
	Ready  bool        `json:"ready"`
	Topics []pathTopic `json:"topics"`
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	seq := s.library.Snapshot().Sequence
	resp := pathResponse{Ready: s.library.Ready(), Topics: make([]pathTopic, 0, seq.Len())}
	for i := 0; i < seq.Len(); i++ {
		t := seq.At(i)
		resp.Topics = append(resp.Topics, pathTopic{ID: t.ID, Title: t.Title, Chapter: seq.ChapterTitle(i)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	pos, lookup := s.library.Locate(r.PathValue("id"))
	switch lookup {
	case navigation.LookupLoading:
		writeError(w, http.StatusServiceUnavailable, "catalog loading")
	case navigation.LookupNotFound:
		writeError(w, http.StatusNotFound, "topic not found")
	default:
		writeJSON(w, http.StatusOK, pos)
	}
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if s.content == nil {
		writeError(w, http.StatusNotFound, "content not configured")
		return
	}
	c, err := s.content.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		slog.Warn("content fetch failed", "topic_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusBadGateway, "content unavailable")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results := s.library.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string][]search.Entry{"results": results})
}

type progressResponse struct {
	UserIdentity string   `json:"userIdentity"`
	Completed    int      `json:"completed"`
	Total        int      `json:"total"`
	Topics       []string `json:"topics"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID := userIdentity(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "progress requires a learner identity")
		return
	}

	tracker := progress.NewTracker(s.progress, userID)
	if err := tracker.Load(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}

	seq := s.library.Snapshot().Sequence
	sum := tracker.Summary(seq)
	resp := progressResponse{
		UserIdentity: userID,
		Completed:    sum.Completed,
		Total:        sum.Total,
		Topics:       []string{},
	}
	for i := 0; i < seq.Len(); i++ {
		if id := seq.At(i).ID; tracker.IsTopicComplete(id) {
			resp.Topics = append(resp.Topics, id)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkComplete(w http.ResponseWriter, r *http.Request) {
	userID := userIdentity(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "progress requires a learner identity")
		return
	}

	topicID := r.PathValue("id")
	if _, lookup := s.library.Locate(topicID); lookup == navigation.LookupNotFound {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}

	tracker := progress.NewTracker(s.progress, userID)
	if err := tracker.MarkComplete(r.Context(), topicID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	s.logEvent(learning.Event{UserID: userID, TopicID: topicID, EventType: learning.EventTopicCompleted})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logEvent(e learning.Event) {
	if err := s.events.LogEvent(e); err != nil {
		slog.Warn("failed to log event", "type", e.EventType, "error", err)
	}
}

func userIdentity(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
