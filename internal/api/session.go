package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-path/internal/content"
	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/navigation"
	"github.com/p-n-ai/pai-path/internal/progress"
)

// Client message types on the session socket.
const (
	MsgOpen    = "open"
	MsgAdvance = "advance"
	MsgSubmit  = "submit"
	MsgSkip    = "skip"
	MsgCancel  = "cancel"
)

// ClientMessage is one learner action.
type ClientMessage struct {
	Type    string `json:"type"`
	TopicID string `json:"topicId,omitempty"`
	Rating  int    `json:"rating,omitempty"`
	Message string `json:"message,omitempty"`
}

// StateFrame is sent after every client message.
type StateFrame struct {
	State     string               `json:"state"`
	TopicID   string               `json:"topicId"`
	Lookup    string               `json:"lookup"`
	Position  *navigation.Position `json:"position,omitempty"`
	Content   string               `json:"content,omitempty"`
	CanFinish bool                 `json:"canFinish"`
	Finished  bool                 `json:"finished"`
	Error     string               `json:"error,omitempty"`
}

// handleSession runs one learner session. A single worker applies messages
// in arrival order. An open only starts its content load there, so a newer
// open supersedes and cancels a fetch still in flight. A superseded open
// gets no frame.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("session upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := s.newSession(ctx, userIdentity(r))
	slog.Info("session opened", "user_id", sess.UserID(), "anonymous", sess.Anonymous())

	var writeMu sync.Mutex
	write := func(frame StateFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			slog.Debug("session write failed", "user_id", sess.UserID(), "error", err)
			cancel()
		}
	}

	actions := make(chan ClientMessage, actionQueue)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-actions:
				if msg.Type != MsgOpen {
					write(s.apply(ctx, sess, msg))
					continue
				}
				load := sess.Begin(ctx, msg.TopicID)
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := load()
					if errors.Is(err, content.ErrSuperseded) {
						return
					}
					write(stateFrame(sess, err))
				}()
			}
		}
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					slog.Debug("session read ended", "user_id", sess.UserID(), "error", err)
				}
			}
			return
		}

		select {
		case actions <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// actionQueue bounds ordered messages waiting behind a slow transition.
const actionQueue = 16

func (s *Server) newSession(ctx context.Context, userID string) *learning.Session {
	cfg := learning.SessionConfig{
		Library:       s.library,
		UserID:        userID,
		Sink:          s.feedback,
		Events:        s.events,
		SubmitTimeout: s.submitTimeout,
	}
	if s.content != nil {
		cfg.Viewer = content.NewViewer(s.content)
	}
	if userID != "" {
		cfg.Tracker = progress.NewTracker(s.progress, userID)
	}

	sess := learning.NewSession(cfg)
	// An unloaded tracker only withholds finishing; the session still works.
	_ = sess.LoadProgress(ctx)
	return sess
}

// apply runs one non-open message.
func (s *Server) apply(ctx context.Context, sess *learning.Session, msg ClientMessage) StateFrame {
	var err error
	switch msg.Type {
	case MsgAdvance:
		_, err = sess.Advance(ctx)
	case MsgSubmit:
		err = sess.SubmitFeedback(ctx, msg.Rating, msg.Message)
	case MsgSkip:
		err = sess.SkipFeedback(ctx)
	case MsgCancel:
		err = sess.CancelAdvance()
	default:
		err = errors.New("unknown message type " + msg.Type)
	}
	return stateFrame(sess, err)
}

func stateFrame(sess *learning.Session, err error) StateFrame {
	frame := StateFrame{
		State:     sess.GateState().String(),
		TopicID:   sess.Current(),
		CanFinish: sess.CanFinish(),
		Finished:  sess.Finished(),
	}
	if view := sess.View(); !view.Loading {
		frame.Content = view.Content.Body
	}
	pos, lookup := sess.Position()
	frame.Lookup = lookup.String()
	if lookup == navigation.LookupFound {
		frame.Position = &pos
	}
	if err != nil {
		frame.Error = err.Error()
	}
	return frame
}
