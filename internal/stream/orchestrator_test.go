package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineMock struct {
	generate func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error)
}

func (m *engineMock) Generate(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
	return m.generate(ctx, req)
}

type chatStoreMock struct {
	addMessage    func(sessionKey string, authorID uint, role, display, raw string) error
	clearMessages func(sessionKey string) error
	deleteAll     func() error
}

func (m *chatStoreMock) AddMessage(sessionKey string, authorID uint, role, display, raw string) error {
	if m.addMessage != nil {
		return m.addMessage(sessionKey, authorID, role, display, raw)
	}
	return nil
}

func (m *chatStoreMock) ClearMessages(sessionKey string) error {
	if m.clearMessages != nil {
		return m.clearMessages(sessionKey)
	}
	return nil
}

func (m *chatStoreMock) DeleteAll() error {
	if m.deleteAll != nil {
		return m.deleteAll()
	}
	return nil
}

type docClientMock struct {
	connect       func(ctx context.Context, room string) error
	getContent    func(ctx context.Context, room string) (string, error)
	streamReplace func(ctx context.Context, room, content string) error
	applyEdits    func(ctx context.Context, room string, edits []DocumentEdit) ([]EditResult, error)
	clearCursor   func(ctx context.Context, room string) error
}

func (m *docClientMock) Connect(ctx context.Context, room string) error {
	if m.connect != nil {
		return m.connect(ctx, room)
	}
	return nil
}

func (m *docClientMock) GetContent(ctx context.Context, room string) (string, error) {
	if m.getContent != nil {
		return m.getContent(ctx, room)
	}
	return "", nil
}

func (m *docClientMock) StreamReplaceContent(ctx context.Context, room, content string) error {
	if m.streamReplace != nil {
		return m.streamReplace(ctx, room, content)
	}
	return nil
}

func (m *docClientMock) ApplyEdits(ctx context.Context, room string, edits []DocumentEdit) ([]EditResult, error) {
	if m.applyEdits != nil {
		return m.applyEdits(ctx, room, edits)
	}
	return nil, nil
}

func (m *docClientMock) ClearCursor(ctx context.Context, room string) error {
	if m.clearCursor != nil {
		return m.clearCursor(ctx, room)
	}
	return nil
}

type diagnosticsMock struct {
	startRequest    func(kind, sessionKey, preview string) string
	updateRequest   func(requestID string, patch map[string]interface{})
	completeRequest func(requestID string, runErr error)
}

func (m *diagnosticsMock) StartRequest(kind, sessionKey, preview string) string {
	if m.startRequest != nil {
		return m.startRequest(kind, sessionKey, preview)
	}
	return "req-1"
}

func (m *diagnosticsMock) UpdateRequest(requestID string, patch map[string]interface{}) {
	if m.updateRequest != nil {
		m.updateRequest(requestID, patch)
	}
}

func (m *diagnosticsMock) CompleteRequest(requestID string, runErr error) {
	if m.completeRequest != nil {
		m.completeRequest(requestID, runErr)
	}
}

// runRecorder captures callback invocations in arrival order.
type runRecorder struct {
	mu        sync.Mutex
	order     []MessageKind
	chunks    []string
	plans     []*PlanUpdate
	completes []CompletedMessage
	errs      []string
	usages    []TokenUsage
	questions [][]OpenQuestion
	suggested [][]string
	progress  []ProgressEvent
	settled   chan struct{}
	once      sync.Once
}

func newRunRecorder() *runRecorder {
	return &runRecorder{settled: make(chan struct{})}
}

func (r *runRecorder) callbacks() *ClientCallbacks {
	return &ClientCallbacks{
		OnTextChunk: func(text, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindTextChunk)
			r.chunks = append(r.chunks, text)
		},
		OnPlanUpdate: func(plan *PlanUpdate) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindPlanUpdate)
			r.plans = append(r.plans, plan)
		},
		OnComplete: func(message CompletedMessage) {
			r.mu.Lock()
			r.order = append(r.order, KindMessageComplete)
			r.completes = append(r.completes, message)
			r.mu.Unlock()
			r.once.Do(func() { close(r.settled) })
		},
		OnError: func(message string) {
			r.mu.Lock()
			r.order = append(r.order, KindError)
			r.errs = append(r.errs, message)
			r.mu.Unlock()
			r.once.Do(func() { close(r.settled) })
		},
		OnTokenUsage: func(usage TokenUsage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindTokenUsage)
			r.usages = append(r.usages, usage)
		},
		OnDocumentEditStart: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindDocumentEditStart)
		},
		OnDocumentEditEnd: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindDocumentEditEnd)
		},
		OnOpenQuestions: func(questions []OpenQuestion) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindOpenQuestions)
			r.questions = append(r.questions, questions)
		},
		OnSuggestedResponses: func(responses []string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindSuggestedResponses)
			r.suggested = append(r.suggested, responses)
		},
		OnProgress: func(event ProgressEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, KindProgressEvent)
			r.progress = append(r.progress, event)
		},
	}
}

func (r *runRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.settled:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not settle in time")
	}
}

func (r *runRecorder) snapshot() runRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return runRecorder{
		order:     append([]MessageKind(nil), r.order...),
		chunks:    append([]string(nil), r.chunks...),
		plans:     append([]*PlanUpdate(nil), r.plans...),
		completes: append([]CompletedMessage(nil), r.completes...),
		errs:      append([]string(nil), r.errs...),
		usages:    append([]TokenUsage(nil), r.usages...),
		questions: append([][]OpenQuestion(nil), r.questions...),
		suggested: append([][]string(nil), r.suggested...),
		progress:  append([]ProgressEvent(nil), r.progress...),
	}
}

func streamOf(msgs ...*EngineMessage) *schema.StreamReader[*EngineMessage] {
	sr, sw := schema.Pipe[*EngineMessage](len(msgs) + 1)
	go func() {
		defer sw.Close()
		for _, m := range msgs {
			if closed := sw.Send(m, nil); closed {
				return
			}
		}
	}()
	return sr
}

func content(text string) *EngineMessage {
	return &EngineMessage{Kind: EngineAssistantContent, Content: text}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestProcessMessageStreamsChatAndPlan(t *testing.T) {
	engine := &engineMock{
		generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
			return streamOf(
				content("Here's"),
				content(" the plan.\n<plan_up"),
				content("date>{\"phases\":[{\"id\":\"p1\",\"title\":\"Research\",\"status\":\"active\"}]}</plan_update>"),
				&EngineMessage{Kind: EngineFinalResult, Usage: &TokenUsage{InputTokens: 12, OutputTokens: 34}},
			), nil
		},
	}

	var (
		chatMu  sync.Mutex
		persist []string
	)
	chat := &chatStoreMock{
		addMessage: func(sessionKey string, authorID uint, role, display, raw string) error {
			chatMu.Lock()
			defer chatMu.Unlock()
			persist = append(persist, role+"|"+display)
			return nil
		},
	}

	store := NewStore(0)
	orch := NewOrchestrator(store, engine, chat, nil, nil)
	orch.Startup(context.Background())

	rec := newRunRecorder()
	store.RegisterClient("session:1", "ws-1", rec.callbacks())

	require.NoError(t, orch.ProcessMessage(&RunRequest{
		SessionKey: "session:1", UserID: 7, WorkspaceID: "ws-1", Content: "plan my idea", ModelKey: "m",
	}))
	rec.wait(t)

	got := rec.snapshot()
	assert.Equal(t, "Here's the plan.\n", strings.Join(got.chunks, ""))
	require.Len(t, got.plans, 1)
	assert.Equal(t, "Research", got.plans[0].Phases[0].Title)
	require.Len(t, got.usages, 1)
	assert.Equal(t, TokenUsage{InputTokens: 12, OutputTokens: 34}, got.usages[0])
	require.Len(t, got.completes, 1)
	assert.Equal(t, "Here's the plan.", got.completes[0].Display)
	assert.Empty(t, got.errs)

	chatMu.Lock()
	defer chatMu.Unlock()
	require.Len(t, persist, 2)
	assert.Equal(t, "user|plan my idea", persist[0])
	assert.Equal(t, "assistant|Here's the plan.", persist[1])

	view, _ := store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)
}

func TestProcessMessageRejectsConcurrentRun(t *testing.T) {
	gate := make(chan struct{})
	engine := &engineMock{
		generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
			sr, sw := schema.Pipe[*EngineMessage](1)
			go func() {
				defer sw.Close()
				<-gate
				sw.Send(&EngineMessage{Kind: EngineFinalResult}, nil)
			}()
			return sr, nil
		},
	}

	store := NewStore(0)
	orch := NewOrchestrator(store, engine, &chatStoreMock{}, nil, nil)
	orch.Startup(context.Background())

	rec := newRunRecorder()
	store.RegisterClient("session:1", "ws-1", rec.callbacks())

	require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "first"}))

	err := orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_SESSION_RUNNING:session:1")

	close(gate)
	rec.wait(t)
	view, _ := store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)
}

func TestRunErrorIsNotSticky(t *testing.T) {
	fail := true
	engine := &engineMock{
		generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
			if fail {
				return nil, errors.New("provider unavailable")
			}
			return streamOf(content("recovered"), &EngineMessage{Kind: EngineFinalResult}), nil
		},
	}

	store := NewStore(0)
	orch := NewOrchestrator(store, engine, &chatStoreMock{}, nil, nil)
	orch.Startup(context.Background())

	rec := newRunRecorder()
	store.RegisterClient("session:1", "ws-1", rec.callbacks())

	require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "hi"}))
	rec.wait(t)

	got := rec.snapshot()
	require.Len(t, got.errs, 1)
	assert.Contains(t, got.errs[0], "provider unavailable")
	view, _ := store.Get("session:1")
	assert.Equal(t, StatusError, view.Status)

	fail = false
	rec2 := newRunRecorder()
	store.RegisterClient("session:1", "", rec2.callbacks())
	require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "again"}))
	rec2.wait(t)

	got2 := rec2.snapshot()
	require.Len(t, got2.completes, 1)
	assert.Equal(t, "recovered", got2.completes[0].Display)
}

func TestAbortSuppressesRemainingDispatches(t *testing.T) {
	gate := make(chan struct{})
	engine := &engineMock{
		generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
			sr, sw := schema.Pipe[*EngineMessage](4)
			go func() {
				defer sw.Close()
				sw.Send(content("partial "), nil)
				<-gate
				sw.Send(content("rest of the answer"), nil)
				sw.Send(&EngineMessage{Kind: EngineFinalResult, Usage: &TokenUsage{InputTokens: 1, OutputTokens: 2}}, nil)
			}()
			return sr, nil
		},
	}

	aborted := make(chan error, 1)
	diag := &diagnosticsMock{
		completeRequest: func(requestID string, runErr error) { aborted <- runErr },
	}

	store := NewStore(0)
	orch := NewOrchestrator(store, engine, &chatStoreMock{}, nil, diag)
	orch.Startup(context.Background())

	rec := newRunRecorder()
	store.RegisterClient("session:1", "ws-1", rec.callbacks())

	require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "go"}))
	waitFor(t, func() bool { return len(rec.snapshot().chunks) > 0 }, "first chunk")

	orch.StopSession("session:1")
	close(gate)

	select {
	case runErr := <-aborted:
		assert.ErrorIs(t, runErr, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not unwind after abort")
	}

	got := rec.snapshot()
	assert.Equal(t, []string{"partial "}, got.chunks)
	assert.Empty(t, got.completes)
	assert.Empty(t, got.usages)
	assert.Empty(t, got.errs)

	view, _ := store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)
}

func TestOpenQuestionsDispatchedEarlyAndOnce(t *testing.T) {
	engine := &engineMock{
		generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
			return streamOf(
				content("Before "),
				content("<open_questions>[{\"id\":\"q1\",\"question\":\"Target market?\"}]</open_questions>"),
				content("after"),
				&EngineMessage{Kind: EngineFinalResult},
			), nil
		},
	}

	store := NewStore(0)
	orch := NewOrchestrator(store, engine, &chatStoreMock{}, nil, nil)
	orch.Startup(context.Background())

	rec := newRunRecorder()
	store.RegisterClient("session:1", "ws-1", rec.callbacks())

	require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "go"}))
	rec.wait(t)

	got := rec.snapshot()
	require.Len(t, got.questions, 1)
	require.Len(t, got.questions[0], 1)
	assert.Equal(t, "Target market?", got.questions[0][0].Question)

	// questions arrive before the run completes, and only once
	qIdx, cIdx := -1, -1
	for i, kind := range got.order {
		if kind == KindOpenQuestions && qIdx < 0 {
			qIdx = i
		}
		if kind == KindMessageComplete {
			cIdx = i
		}
	}
	require.GreaterOrEqual(t, qIdx, 0)
	require.GreaterOrEqual(t, cIdx, 0)
	assert.Less(t, qIdx, cIdx)

	require.Len(t, got.completes, 1)
	assert.Equal(t, "Before after", got.completes[0].Display)
}

func TestToolResultMatching(t *testing.T) {
	t.Run("fifo fallback without ids", func(t *testing.T) {
		engine := &engineMock{
			generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
				return streamOf(
					&EngineMessage{Kind: EngineAssistantContent, ToolCalls: []EngineToolCall{
						{ID: "call-a", Name: "read_file"},
						{ID: "call-b", Name: "list_directory"},
					}},
					&EngineMessage{Kind: EngineToolResult, ToolOutput: "out-1"},
					&EngineMessage{Kind: EngineToolResult, ToolOutput: "out-2"},
					content("done"),
					&EngineMessage{Kind: EngineFinalResult},
				), nil
			},
		}

		store := NewStore(0)
		orch := NewOrchestrator(store, engine, &chatStoreMock{}, nil, nil)
		orch.Startup(context.Background())

		rec := newRunRecorder()
		store.RegisterClient("session:1", "ws-1", rec.callbacks())
		require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "go"}))
		rec.wait(t)

		got := rec.snapshot()
		require.Len(t, got.progress, 4)
		assert.Equal(t, "tool-started", got.progress[0].Type)
		assert.Equal(t, "call-a", got.progress[0].ToolCallID)
		assert.Equal(t, "tool-started", got.progress[1].Type)
		assert.Equal(t, "call-b", got.progress[1].ToolCallID)
		assert.Equal(t, "tool-completed", got.progress[2].Type)
		assert.Equal(t, "call-a", got.progress[2].ToolCallID)
		assert.Equal(t, "tool-completed", got.progress[3].Type)
		assert.Equal(t, "call-b", got.progress[3].ToolCallID)
	})

	t.Run("id match beats arrival order", func(t *testing.T) {
		engine := &engineMock{
			generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
				return streamOf(
					&EngineMessage{Kind: EngineAssistantContent, ToolCalls: []EngineToolCall{
						{ID: "call-a", Name: "read_file"},
						{ID: "call-b", Name: "list_directory"},
					}},
					&EngineMessage{Kind: EngineToolResult, ToolCallID: "call-b", ToolOutput: "out-b"},
					&EngineMessage{Kind: EngineToolResult, ToolOutput: "out-a"},
					&EngineMessage{Kind: EngineFinalResult},
				), nil
			},
		}

		store := NewStore(0)
		orch := NewOrchestrator(store, engine, &chatStoreMock{}, nil, nil)
		orch.Startup(context.Background())

		rec := newRunRecorder()
		store.RegisterClient("session:1", "ws-1", rec.callbacks())
		require.NoError(t, orch.ProcessMessage(&RunRequest{SessionKey: "session:1", Content: "go"}))
		rec.wait(t)

		got := rec.snapshot()
		require.Len(t, got.progress, 4)
		assert.Equal(t, "call-b", got.progress[2].ToolCallID)
		assert.Equal(t, "call-a", got.progress[3].ToolCallID)
	})
}

func TestDocumentReplacementSideEffects(t *testing.T) {
	response := "Updated the doc.<replace_document>\n# New Draft\n</replace_document>" +
		"<suggested_responses>[\"Looks good\"]</suggested_responses>"

	t.Run("replacement applied with paired events", func(t *testing.T) {
		var (
			mu       sync.Mutex
			replaced string
			cleared  bool
		)
		docs := &docClientMock{
			streamReplace: func(ctx context.Context, room, content string) error {
				mu.Lock()
				defer mu.Unlock()
				replaced = room + "|" + content
				return nil
			},
			clearCursor: func(ctx context.Context, room string) error {
				mu.Lock()
				defer mu.Unlock()
				cleared = true
				return nil
			},
		}
		engine := &engineMock{
			generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
				return streamOf(content(response), &EngineMessage{Kind: EngineFinalResult}), nil
			},
		}

		store := NewStore(0)
		orch := NewOrchestrator(store, engine, &chatStoreMock{}, docs, nil)
		orch.Startup(context.Background())

		rec := newRunRecorder()
		store.RegisterClient("session:1", "ws-1", rec.callbacks())
		require.NoError(t, orch.ProcessMessage(&RunRequest{
			SessionKey: "session:1", Content: "go", DocumentRoom: "room-1",
		}))
		rec.wait(t)

		mu.Lock()
		assert.Equal(t, "room-1|# New Draft", replaced)
		assert.True(t, cleared)
		mu.Unlock()

		got := rec.snapshot()
		assert.Equal(t, [][]string{{"Looks good"}}, got.suggested)
		require.Len(t, got.completes, 1)
		assert.Equal(t, "Updated the doc.", got.completes[0].Display)

		starts, ends := 0, 0
		for _, kind := range got.order {
			switch kind {
			case KindDocumentEditStart:
				starts++
			case KindDocumentEditEnd:
				ends++
			}
		}
		assert.Equal(t, 1, starts)
		assert.Equal(t, 1, ends)
	})

	t.Run("backend failure degrades to chat only", func(t *testing.T) {
		docs := &docClientMock{
			connect: func(ctx context.Context, room string) error {
				return fmt.Errorf("dial tcp: connection refused")
			},
		}
		engine := &engineMock{
			generate: func(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error) {
				return streamOf(content(response), &EngineMessage{Kind: EngineFinalResult}), nil
			},
		}

		store := NewStore(0)
		orch := NewOrchestrator(store, engine, &chatStoreMock{}, docs, nil)
		orch.Startup(context.Background())

		rec := newRunRecorder()
		store.RegisterClient("session:1", "ws-1", rec.callbacks())
		require.NoError(t, orch.ProcessMessage(&RunRequest{
			SessionKey: "session:1", Content: "go", DocumentRoom: "room-1",
		}))
		rec.wait(t)

		got := rec.snapshot()
		assert.Empty(t, got.errs)
		require.Len(t, got.completes, 1)

		starts, ends := 0, 0
		for _, kind := range got.order {
			switch kind {
			case KindDocumentEditStart:
				starts++
			case KindDocumentEditEnd:
				ends++
			}
		}
		assert.Equal(t, starts, ends, "edit events must stay paired on failure")

		view, _ := store.Get("session:1")
		assert.Equal(t, StatusIdle, view.Status)
	})
}

func TestDeleteHistoryDestroysSession(t *testing.T) {
	var cleared []string
	chat := &chatStoreMock{
		clearMessages: func(sessionKey string) error {
			cleared = append(cleared, sessionKey)
			return nil
		},
	}

	store := NewStore(0)
	orch := NewOrchestrator(store, &engineMock{}, chat, nil, nil)
	orch.Startup(context.Background())

	store.RegisterClient("session:1", "ws-1", &ClientCallbacks{})
	require.NoError(t, orch.DeleteHistory("session:1"))

	assert.Equal(t, []string{"session:1"}, cleared)
	_, ok := store.Get("session:1")
	assert.False(t, ok)
}
