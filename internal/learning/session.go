package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-path/internal/catalog"
	"github.com/p-n-ai/pai-path/internal/content"
	"github.com/p-n-ai/pai-path/internal/feedback"
	"github.com/p-n-ai/pai-path/internal/navigation"
	"github.com/p-n-ai/pai-path/internal/progress"
)

var (
	// ErrNoCurrentTopic rejects an advance before any topic was opened.
	ErrNoCurrentTopic = errors.New("no current topic")
	// ErrTopicNotFound means the current topic is not in the catalog.
	ErrTopicNotFound = errors.New("topic not in catalog")
	// ErrPathIncomplete rejects finishing while earlier topics are not
	// known to be complete.
	ErrPathIncomplete = errors.New("path not complete")
)

// SessionConfig holds dependencies for a learner session.
type SessionConfig struct {
	Library       *Library
	UserID        string            // empty means anonymous
	Tracker       *progress.Tracker // defaults to an in-memory tracker for UserID
	Sink          feedback.Sink
	Viewer        *content.Viewer // optional
	Events        EventLogger
	SubmitTimeout time.Duration
}

// Session is one learner walking the path.
type Session struct {
	library *Library
	userID  string
	tracker *progress.Tracker
	gate    *feedback.Gate
	viewer  *content.Viewer
	events  EventLogger

	mu       sync.Mutex
	current  string
	finished bool
}

// NewSession creates a session. Anonymous sessions get neither a tracker
// nor a feedback gate.
func NewSession(cfg SessionConfig) *Session {
	userID := cfg.UserID
	if userID == "" && cfg.Tracker != nil {
		userID = cfg.Tracker.UserID()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}

	s := &Session{
		library: cfg.Library,
		userID:  userID,
		viewer:  cfg.Viewer,
		events:  events,
	}
	if userID == "" {
		return s
	}

	s.tracker = cfg.Tracker
	if s.tracker == nil {
		s.tracker = progress.NewTracker(progress.NewMemoryStore(), userID)
		_ = s.tracker.Load(context.Background())
	}
	s.gate = feedback.NewGate(feedback.GateConfig{
		UserID:        userID,
		Sink:          cfg.Sink,
		Transition:    s.execute,
		SubmitTimeout: cfg.SubmitTimeout,
	})
	return s
}

// UserID returns the learner identity, empty when anonymous.
func (s *Session) UserID() string { return s.userID }

// Anonymous reports whether the session has no learner identity.
func (s *Session) Anonymous() bool { return s.userID == "" }

// Tracker returns the session's progress tracker, nil when anonymous.
func (s *Session) Tracker() *progress.Tracker { return s.tracker }

// LoadProgress reads the learner's completion record. Until it succeeds
// the path cannot be finished.
func (s *Session) LoadProgress(ctx context.Context) error {
	if s.tracker == nil {
		return nil
	}
	return s.tracker.Load(ctx)
}

// Current returns the open topic id.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Finished reports whether the finish transition has run.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// GateState returns the feedback gate state. Anonymous sessions are always
// idle.
func (s *Session) GateState() feedback.State {
	if s.gate == nil {
		return feedback.StateIdle
	}
	return s.gate.State()
}

// Open makes topicID current and loads its content. It is Begin followed
// by the returned load.
func (s *Session) Open(ctx context.Context, topicID string) (content.View, error) {
	return s.Begin(ctx, topicID)()
}

// Begin makes topicID current and returns the content load for it. A
// pending advance is abandoned, since the learner navigated away from it.
// A later Begin supersedes this one even if its load runs first; a
// superseded load returns content.ErrSuperseded. A content failure affects
// only this topic.
func (s *Session) Begin(ctx context.Context, topicID string) func() (content.View, error) {
	s.mu.Lock()
	s.current = topicID
	s.mu.Unlock()

	if s.gate != nil && s.gate.Cancel() == nil {
		slog.Debug("pending advance abandoned by open", "user_id", s.userID, "topic_id", topicID)
	}
	return s.start(ctx, topicID)
}

// View returns the displayed content when it belongs to the current topic.
func (s *Session) View() content.View {
	current := s.Current()
	if s.viewer == nil {
		return content.View{TopicID: current}
	}
	if v := s.viewer.Current(); v.TopicID == current {
		return v
	}
	return content.View{TopicID: current, Loading: true}
}

func (s *Session) start(ctx context.Context, topicID string) func() (content.View, error) {
	if s.viewer == nil {
		return func() (content.View, error) { return content.View{TopicID: topicID}, nil }
	}
	load := s.viewer.Start(ctx, topicID)
	return func() (content.View, error) {
		view, err := load()
		if err != nil && !errors.Is(err, content.ErrSuperseded) {
			slog.Warn("topic content unavailable",
				"user_id", s.userID,
				"topic_id", topicID,
				"error", err,
			)
		}
		return view, err
	}
}

// Position locates the current topic in the current catalog.
func (s *Session) Position() (navigation.Position, navigation.Lookup) {
	return s.library.Locate(s.Current())
}

// CanFinish reports whether the finish transition is available from the
// current topic.
// An unread progress record is retried here, so a store outage only delays
// finishing.
func (s *Session) CanFinish() bool {
	return s.canFinish(context.Background())
}

func (s *Session) canFinish(ctx context.Context) bool {
	seq := s.library.Snapshot().Sequence
	current := s.Current()
	pos := navigation.Locate(seq, current)
	if !pos.Found() || !pos.IsLast {
		return false
	}
	if s.tracker == nil {
		return true
	}
	if !s.tracker.EnsureLoaded(ctx) {
		return false
	}
	return s.tracker.IsPathComplete(seq, current)
}

// Advance requests a move away from the current topic. Anonymous sessions
// move immediately; otherwise the gate opens and gated is true, and the
// move waits for SubmitFeedback or SkipFeedback.
func (s *Session) Advance(ctx context.Context) (gated bool, err error) {
	current := s.Current()
	if current == "" {
		return false, ErrNoCurrentTopic
	}
	if !s.library.Ready() {
		return false, fmt.Errorf("advance: %w", catalog.ErrCatalogUnavailable)
	}

	pos, _ := s.Position()
	if !pos.Found() {
		return false, fmt.Errorf("%w: %s", ErrTopicNotFound, current)
	}
	if pos.IsLast && !s.canFinish(ctx) {
		return false, fmt.Errorf("%w: finishing from %s", ErrPathIncomplete, current)
	}

	if s.gate == nil {
		return false, s.execute(ctx, current)
	}
	if err := s.gate.Request(current); err != nil {
		return false, err
	}
	return true, nil
}

// SubmitFeedback resolves a pending advance with a rating.
func (s *Session) SubmitFeedback(ctx context.Context, rating int, message string) error {
	if s.gate == nil {
		return feedback.ErrNoPendingAdvance
	}
	topicID := s.gate.Pending()
	err := s.gate.Submit(ctx, rating, message)
	if errors.Is(err, feedback.ErrNoPendingAdvance) || errors.Is(err, feedback.ErrInvalidRating) {
		return err
	}
	s.logEvent(EventFeedbackSubmitted, topicID, map[string]any{"rating": rating})
	return err
}

// SkipFeedback resolves a pending advance without feedback.
func (s *Session) SkipFeedback(ctx context.Context) error {
	if s.gate == nil {
		return feedback.ErrNoPendingAdvance
	}
	topicID := s.gate.Pending()
	err := s.gate.Skip(ctx)
	if errors.Is(err, feedback.ErrNoPendingAdvance) {
		return err
	}
	s.logEvent(EventFeedbackSkipped, topicID, nil)
	return err
}

// CancelAdvance abandons a pending advance. The learner stays put.
func (s *Session) CancelAdvance() error {
	if s.gate == nil {
		return feedback.ErrNoPendingAdvance
	}
	return s.gate.Cancel()
}

// execute is the guarded transition: mark topicID complete, then move to
// the next topic or finish the path.
func (s *Session) execute(ctx context.Context, topicID string) error {
	seq := s.library.Snapshot().Sequence
	pos := navigation.Locate(seq, topicID)

	if s.tracker != nil {
		// A failed remote write keeps the local mark; the tracker logs it.
		_ = s.tracker.MarkComplete(ctx, topicID)
		s.logEvent(EventTopicCompleted, topicID, map[string]any{"index": pos.Index})
	}

	switch {
	case !pos.Found():
		slog.Warn("advance from topic missing from catalog",
			"user_id", s.userID,
			"topic_id", topicID,
		)
		return fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	case pos.Next != nil:
		s.mu.Lock()
		moved := s.current == topicID
		if moved {
			s.current = pos.Next.ID
		}
		s.mu.Unlock()
		if !moved {
			slog.Debug("advance overtaken by open", "user_id", s.userID, "from", topicID)
			return nil
		}
		slog.Debug("advanced", "user_id", s.userID, "from", topicID, "to", pos.Next.ID)
		// The move stands even when the new topic's content fails.
		_, _ = s.start(ctx, pos.Next.ID)()
	default:
		s.mu.Lock()
		moved := s.current == topicID
		if moved {
			s.finished = true
		}
		s.mu.Unlock()
		if !moved {
			slog.Debug("finish overtaken by open", "user_id", s.userID, "from", topicID)
			return nil
		}

		data := map[string]any{"topics": seq.Len()}
		if s.tracker != nil {
			sum := s.tracker.Summary(seq)
			data["completed"] = sum.Completed
		}
		s.logEvent(EventPathFinished, topicID, data)
		slog.Info("path finished", "user_id", s.userID, "topic_id", topicID)
	}
	return nil
}

func (s *Session) logEvent(eventType, topicID string, data map[string]any) {
	if s.userID == "" {
		return
	}
	if err := s.events.LogEvent(Event{
		UserID:    s.userID,
		TopicID:   topicID,
		EventType: eventType,
		Data:      data,
	}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "error", err)
	}
}
