// Package feedback collects optional learner ratings between an advance
// request and the navigation it guards.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxMessageLen bounds the optional comment, in runes.
const MaxMessageLen = 1000

var (
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrFeedbackSubmitFailed = errors.New("feedback submit failed")
)

// Submission is one learner rating for a topic.
type Submission struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userIdentity"`
	TopicID   string    `json:"topicId"`
	Rating    int       `json:"rating"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSubmission validates the rating and normalizes the message.
func NewSubmission(userID, topicID string, rating int, message string) (Submission, error) {
	if rating < 1 || rating > 5 {
		return Submission{}, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	return Submission{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   topicID,
		Rating:    rating,
		Message:   truncate(strings.TrimSpace(message), MaxMessageLen),
		Timestamp: time.Now().UTC(),
	}, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Sink is the write-only feedback endpoint.
type Sink interface {
	Submit(ctx context.Context, sub Submission) error
}

// NopSink drops every submission.
type NopSink struct{}

func (NopSink) Submit(context.Context, Submission) error {
	return nil
}

// MemorySink keeps submissions in memory for tests.
type MemorySink struct {
	mu          sync.Mutex
	submissions []Submission
}

func NewMemorySink() *MemorySink {
	return &MemorySink{submissions: []Submission{}}
}

func (s *MemorySink) Submit(_ context.Context, sub Submission) error {
	s.mu.Lock()
	s.submissions = append(s.submissions, sub)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission{}, s.submissions...)
}

// PostgresSink inserts submissions into the topic_feedback table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Submit(ctx context.Context, sub Submission) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("%w: feedback sink pool is nil", ErrFeedbackSubmitFailed)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO topic_feedback (id, user_identity, topic_id, rating, message, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		sub.ID.String(),
		sub.UserID,
		sub.TopicID,
		sub.Rating,
		nullIfEmpty(sub.Message),
		sub.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: insert feedback: %v", ErrFeedbackSubmitFailed, err)
	}

	slog.Debug("feedback stored",
		"topic_id", sub.TopicID,
		"user_id", sub.UserID,
		"rating", sub.Rating,
	)
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
