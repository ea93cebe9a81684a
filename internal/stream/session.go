package stream

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

const defaultQueueLimit = 200

// session is the per-key runtime record. It survives client disconnects
// and is destroyed only by explicit history deletion.
type session struct {
	key         string
	userID      uint
	workspaceID string
	status      Status
	startedAt   *time.Time
	connected   bool
	callbacks   *ClientCallbacks
	queued      []QueuedMessage
	cancel      context.CancelFunc
}

// SessionView is a read-only snapshot for transports and tests.
type SessionView struct {
	Key         string     `json:"key"`
	UserID      uint       `json:"userId"`
	WorkspaceID string     `json:"workspaceId"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	Connected   bool       `json:"connected"`
	QueueLength int        `json:"queueLength"`
}

// Store owns all session records and the dispatch-or-queue path. A
// single mutex also serializes delivery so replayed and live envelopes
// cannot interleave out of order.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*session
	queueLimit int
}

func NewStore(queueLimit int) *Store {
	if queueLimit <= 0 {
		queueLimit = defaultQueueLimit
	}
	return &Store{
		sessions:   make(map[string]*session),
		queueLimit: queueLimit,
	}
}

// ensure creates the session record on first use.
func (s *Store) ensure(key string, userID uint, workspaceID string) *session {
	sess := s.sessions[key]
	if sess == nil {
		sess = &session{key: key, userID: userID, workspaceID: workspaceID, status: StatusIdle}
		s.sessions[key] = sess
	}
	if userID != 0 {
		sess.userID = userID
	}
	if workspaceID != "" {
		sess.workspaceID = workspaceID
	}
	return sess
}

// RegisterClient attaches a callback set to a session, replays every
// queued envelope in order, and clears the queue. When no session
// exists yet an idle placeholder is created only if a workspace id is
// supplied.
func (s *Store) RegisterClient(key, workspaceID string, cb *ClientCallbacks) {
	if key == "" || cb == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	if sess == nil {
		if workspaceID == "" {
			return
		}
		sess = s.ensure(key, 0, workspaceID)
	}
	sess.callbacks = cb
	sess.connected = true

	backlog := sess.queued
	sess.queued = nil
	for _, msg := range backlog {
		deliver(cb, msg)
	}
}

// UnregisterClient marks the client disconnected; subsequent envelopes
// queue for replay. The session itself is preserved.
func (s *Store) UnregisterClient(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[key]; sess != nil {
		sess.connected = false
		sess.callbacks = nil
	}
}

// DispatchOrQueue delivers msg to a connected client or appends it to
// the replay queue. When the queue exceeds twice the limit the oldest
// entries are dropped down to the limit.
func (s *Store) DispatchOrQueue(key string, msg QueuedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	if sess == nil {
		return
	}
	if sess.connected && sess.callbacks != nil {
		deliver(sess.callbacks, msg)
		return
	}
	sess.queued = append(sess.queued, msg)
	if len(sess.queued) > 2*s.queueLimit {
		trimmed := make([]QueuedMessage, s.queueLimit)
		copy(trimmed, sess.queued[len(sess.queued)-s.queueLimit:])
		sess.queued = trimmed
	}
}

// beginRun transitions idle|error -> running and hands back a run
// context whose cancellation is this run's abort signal.
func (s *Store) beginRun(parent context.Context, key string, userID uint, workspaceID string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensure(key, userID, workspaceID)
	if sess.status == StatusRunning {
		return nil, fmt.Errorf("ERR_SESSION_RUNNING:%s", key)
	}
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	sess.status = StatusRunning
	sess.startedAt = &now
	sess.cancel = cancel
	return ctx, nil
}

// finishRun transitions running -> idle|error. A session already reset
// by AbortSession is left alone.
func (s *Store) finishRun(key string, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	if sess == nil || sess.status != StatusRunning {
		return
	}
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
	if runErr != nil {
		sess.status = StatusError
	} else {
		sess.status = StatusIdle
	}
}

// AbortSession signals the active run's cancellation token and resets
// the session to idle. Aborting an idle or error session is a no-op,
// as is aborting an unknown key.
func (s *Store) AbortSession(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	if sess == nil || sess.status != StatusRunning {
		return
	}
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
	sess.status = StatusIdle
}

// Delete destroys the session record entirely. Callers pair this with
// chat history deletion; nothing else removes a session.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	if sess == nil {
		return
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	delete(s.sessions, key)
}

// Get returns a snapshot of the session, if any.
func (s *Store) Get(key string) (SessionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	if sess == nil {
		return SessionView{}, false
	}
	return SessionView{
		Key:         sess.key,
		UserID:      sess.userID,
		WorkspaceID: sess.workspaceID,
		Status:      sess.status,
		StartedAt:   sess.startedAt,
		Connected:   sess.connected,
		QueueLength: len(sess.queued),
	}, true
}

// List snapshots every session, for the diagnostics surface.
func (s *Store) List() []SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]SessionView, 0, len(s.sessions))
	for _, sess := range s.sessions {
		views = append(views, SessionView{
			Key:         sess.key,
			UserID:      sess.userID,
			WorkspaceID: sess.workspaceID,
			Status:      sess.status,
			StartedAt:   sess.startedAt,
			Connected:   sess.connected,
			QueueLength: len(sess.queued),
		})
	}
	return views
}

// deliver routes one envelope to the matching callback. Unknown kinds
// and unset callbacks are dropped silently.
func deliver(cb *ClientCallbacks, msg QueuedMessage) {
	switch msg.Kind {
	case KindTextChunk:
		if chunk, ok := msg.Payload.(TextChunk); ok && cb.OnTextChunk != nil {
			cb.OnTextChunk(chunk.Text, chunk.MessageID)
		}
	case KindPlanUpdate:
		if plan, ok := msg.Payload.(*PlanUpdate); ok && cb.OnPlanUpdate != nil {
			cb.OnPlanUpdate(plan)
		}
	case KindMessageComplete:
		if done, ok := msg.Payload.(CompletedMessage); ok && cb.OnComplete != nil {
			cb.OnComplete(done)
		}
	case KindError:
		if text, ok := msg.Payload.(string); ok && cb.OnError != nil {
			cb.OnError(text)
		}
	case KindTokenUsage:
		if usage, ok := msg.Payload.(TokenUsage); ok && cb.OnTokenUsage != nil {
			cb.OnTokenUsage(usage)
		}
	case KindDocumentEditStart:
		if cb.OnDocumentEditStart != nil {
			cb.OnDocumentEditStart()
		}
	case KindDocumentEditEnd:
		if cb.OnDocumentEditEnd != nil {
			cb.OnDocumentEditEnd()
		}
	case KindOpenQuestions:
		if questions, ok := msg.Payload.([]OpenQuestion); ok && cb.OnOpenQuestions != nil {
			cb.OnOpenQuestions(questions)
		}
	case KindSuggestedResponses:
		if responses, ok := msg.Payload.([]string); ok && cb.OnSuggestedResponses != nil {
			cb.OnSuggestedResponses(responses)
		}
	case KindProgressEvent:
		if event, ok := msg.Payload.(ProgressEvent); ok && cb.OnProgress != nil {
			cb.OnProgress(event)
		}
	}
}
