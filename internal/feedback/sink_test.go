package feedback_test

import (
	"testing"

	"github.com/p-n-ai/pai-path/internal/feedback"
	"github.com/p-n-ai/pai-path/internal/platform/database/dbtest"
)

func TestPostgresSink_Submit(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := t.Context()
	sink := feedback.NewPostgresSink(pool)

	sub, err := feedback.NewSubmission("u1", "chapter_1_1_1_intro", 4, "clear explanation")
	if err != nil {
		t.Fatalf("NewSubmission() error = %v", err)
	}
	if err := sink.Submit(ctx, sub); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	// Resubmitting the same submission is ignored.
	if err := sink.Submit(ctx, sub); err != nil {
		t.Fatalf("Submit() repeat error = %v", err)
	}

	var count, rating int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(rating) FROM topic_feedback WHERE topic_id = $1`,
		"chapter_1_1_1_intro",
	).Scan(&count, &rating); err != nil {
		t.Fatalf("query feedback: %v", err)
	}
	if count != 1 || rating != 4 {
		t.Errorf("count = %d, rating = %d; want 1 and 4", count, rating)
	}
}
