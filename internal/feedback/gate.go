package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultSubmitTimeout = 3 * time.Second

var (
	// ErrGateBusy rejects an advance while another one is unresolved.
	ErrGateBusy = errors.New("advance already pending")
	// ErrNoPendingAdvance rejects a resolution when nothing awaits input.
	ErrNoPendingAdvance = errors.New("no advance pending")
)

// State is a FeedbackGate state.
type State int

const (
	StateIdle State = iota
	StateAwaitingInput
	StateSubmitted
	StateSkipped
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateSubmitted:
		return "submitted"
	case StateSkipped:
		return "skipped"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TransitionFunc performs the guarded navigation for topicID.
type TransitionFunc func(ctx context.Context, topicID string) error

// GateConfig holds dependencies for a Gate.
type GateConfig struct {
	UserID        string
	Sink          Sink
	Transition    TransitionFunc
	SubmitTimeout time.Duration // bound on the background submit (default 3s)
}

// Gate sits between an advance request and its execution. The transition
// for a request runs exactly once, and only after Submit or Skip.
type Gate struct {
	userID        string
	sink          Sink
	transition    TransitionFunc
	submitTimeout time.Duration

	mu      sync.Mutex
	state   State
	pending string
	last    State
}

// NewGate creates an idle gate.
func NewGate(cfg GateConfig) *Gate {
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}
	timeout := cfg.SubmitTimeout
	if timeout == 0 {
		timeout = defaultSubmitTimeout
	}
	return &Gate{
		userID:        cfg.UserID,
		sink:          sink,
		transition:    cfg.Transition,
		submitTimeout: timeout,
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the topic awaiting resolution, if any.
func (g *Gate) Pending() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// LastOutcome returns how the most recent request resolved: Submitted,
// Skipped or Cancelled. It is Idle before the first resolution.
func (g *Gate) LastOutcome() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Request opens the gate for an advance away from topicID.
func (g *Gate) Request(topicID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateIdle {
		return fmt.Errorf("%w: %s is %s", ErrGateBusy, g.pending, g.state)
	}
	g.state = StateAwaitingInput
	g.pending = topicID
	return nil
}

// Submit records feedback and executes the transition. An invalid rating
// leaves the gate awaiting input.
func (g *Gate) Submit(ctx context.Context, rating int, message string) error {
	g.mu.Lock()
	if g.state != StateAwaitingInput {
		g.mu.Unlock()
		return ErrNoPendingAdvance
	}
	sub, err := NewSubmission(g.userID, g.pending, rating, message)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	g.state = StateSubmitted
	topicID := g.pending
	g.mu.Unlock()

	done := g.dispatch(ctx, sub)
	err = g.run(ctx, topicID)
	select {
	case <-done:
	case <-time.After(g.submitTimeout):
	}
	g.reset()
	return err
}

// Skip executes the transition without collecting feedback.
func (g *Gate) Skip(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateAwaitingInput {
		g.mu.Unlock()
		return ErrNoPendingAdvance
	}
	g.state = StateSkipped
	topicID := g.pending
	g.mu.Unlock()

	err := g.run(ctx, topicID)
	g.reset()
	return err
}

// Cancel abandons the pending advance. No transition runs.
func (g *Gate) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateAwaitingInput {
		return ErrNoPendingAdvance
	}
	slog.Debug("advance cancelled", "user_id", g.userID, "topic_id", g.pending)
	g.last = StateCancelled
	g.state = StateIdle
	g.pending = ""
	return nil
}

// dispatch sends the submission in the background. The send is detached
// from the caller's cancellation; the returned channel closes once the
// attempt has finished or timed out.
func (g *Gate) dispatch(ctx context.Context, sub Submission) <-chan struct{} {
	done := make(chan struct{})
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.submitTimeout)
	go func() {
		defer close(done)
		defer cancel()
		if err := g.sink.Submit(sendCtx, sub); err != nil {
			slog.Warn("feedback submit failed",
				"user_id", sub.UserID,
				"topic_id", sub.TopicID,
				"error", err,
			)
		}
	}()
	return done
}

func (g *Gate) run(ctx context.Context, topicID string) error {
	if g.transition == nil {
		return nil
	}
	return g.transition(ctx, topicID)
}

func (g *Gate) reset() {
	g.mu.Lock()
	g.last = g.state
	g.state = StateIdle
	g.pending = ""
	g.mu.Unlock()
}
