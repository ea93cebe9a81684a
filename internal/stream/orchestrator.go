package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/google/uuid"

	"ideaforge/internal/events"
)

const previewLength = 160

// RunRequest carries everything one generation run needs. The prompt
// assembly (system prompt, model selection, tool registry) happens in
// the service layer; the orchestrator only executes.
type RunRequest struct {
	SessionKey   string
	UserID       uint
	WorkspaceID  string
	Content      string
	SystemPrompt string
	ModelKey     string
	Tools        []tool.BaseTool
	DocumentRoom string
}

// Orchestrator drives generation runs: one active run per session,
// incremental chat streaming up to the safe boundary, block extraction
// at finalization, and document side effects.
type Orchestrator struct {
	ctx    context.Context
	store  *Store
	engine GenerationEngine
	chat   ChatStore
	docs   DocumentClient
	diag   DiagnosticsSink
}

func NewOrchestrator(store *Store, engine GenerationEngine, chat ChatStore, docs DocumentClient, diag DiagnosticsSink) *Orchestrator {
	return &Orchestrator{
		store:  store,
		engine: engine,
		chat:   chat,
		docs:   docs,
		diag:   diag,
	}
}

// Startup stores the application context used for event emission and as
// the parent of every run context.
func (o *Orchestrator) Startup(ctx context.Context) {
	o.ctx = ctx
}

func (o *Orchestrator) appCtx() context.Context {
	if o.ctx != nil {
		return o.ctx
	}
	return context.Background()
}

// Store exposes the session store for transports that attach clients.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// ProcessMessage starts a run for the session. It fails fast with
// ERR_SESSION_RUNNING when a run is already active; an error state from
// a previous run does not block a new one.
func (o *Orchestrator) ProcessMessage(req *RunRequest) error {
	if req == nil || strings.TrimSpace(req.SessionKey) == "" {
		return fmt.Errorf("session key is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("message content is required")
	}
	if o.engine == nil {
		return fmt.Errorf("no generation engine configured")
	}

	runCtx, err := o.store.beginRun(o.appCtx(), req.SessionKey, req.UserID, req.WorkspaceID)
	if err != nil {
		return err
	}

	if o.chat != nil {
		if err := o.chat.AddMessage(req.SessionKey, req.UserID, "user", req.Content, req.Content); err != nil {
			o.emitLog(events.NewWarn(fmt.Sprintf("failed to persist user message: %v", err)), req)
		}
	}
	o.emitStatus(req, StatusRunning)

	go o.run(runCtx, req)
	return nil
}

// StopSession aborts the session's active run, if any. Idempotent.
func (o *Orchestrator) StopSession(sessionKey string) {
	view, ok := o.store.Get(sessionKey)
	o.store.AbortSession(sessionKey)
	if ok && view.Status == StatusRunning {
		o.emitStatus(&RunRequest{SessionKey: sessionKey, WorkspaceID: view.WorkspaceID}, StatusIdle)
	}
}

// DeleteHistory wipes the persisted chat history and destroys the
// session record. This is the only path that removes a session.
func (o *Orchestrator) DeleteHistory(sessionKey string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return fmt.Errorf("session key is required")
	}
	o.store.AbortSession(sessionKey)
	if o.chat != nil {
		if err := o.chat.ClearMessages(sessionKey); err != nil {
			return fmt.Errorf("clear chat history: %w", err)
		}
	}
	o.store.Delete(sessionKey)
	return nil
}

// streamState is the per-run accumulation state.
type streamState struct {
	messageID     string
	full          string
	streamed      int
	blockStart    int // absolute index of the first opening tag, -1 until latched
	questionsSent bool
	pending       []*pendingToolCall
	usage         *TokenUsage
}

type pendingToolCall struct {
	id   string
	name string
	done bool
}

func (o *Orchestrator) run(runCtx context.Context, req *RunRequest) {
	var requestID string
	if o.diag != nil {
		requestID = o.diag.StartRequest("generation", req.SessionKey, preview(req.Content))
	}

	st := &streamState{messageID: uuid.NewString(), blockStart: -1}

	reader, err := o.engine.Generate(runCtx, &GenerationRequest{
		Prompt:       req.Content,
		SystemPrompt: req.SystemPrompt,
		Model:        req.ModelKey,
		Tools:        req.Tools,
	})
	if err != nil {
		o.failRun(runCtx, req, st, requestID, fmt.Errorf("start generation: %w", err))
		return
	}
	defer reader.Close()

	for {
		msg, recvErr := reader.Recv()
		if recvErr == io.EOF {
			break
		}
		if recvErr != nil {
			if runCtx.Err() != nil {
				o.completeAborted(req, requestID)
				return
			}
			o.failRun(runCtx, req, st, requestID, fmt.Errorf("generation stream: %w", recvErr))
			return
		}

		switch msg.Kind {
		case EngineAssistantContent:
			o.handleAssistantContent(runCtx, req, st, msg)
		case EngineToolResult:
			o.handleToolResult(runCtx, req, st, msg)
		case EngineFinalResult:
			if msg.Failed {
				o.failRun(runCtx, req, st, requestID, errors.New(firstNonEmpty(msg.Error, "generation failed")))
				return
			}
			if msg.Usage != nil {
				st.usage = msg.Usage
			}
		}
	}

	if runCtx.Err() != nil {
		o.completeAborted(req, requestID)
		return
	}
	o.finalize(runCtx, req, st, requestID)
}

// handleAssistantContent appends new text, streams chat up to the safe
// boundary, and registers requested tool calls.
func (o *Orchestrator) handleAssistantContent(runCtx context.Context, req *RunRequest, st *streamState, msg *EngineMessage) {
	if msg.Content != "" {
		st.full += msg.Content
		o.streamChat(runCtx, req, st)
		o.maybeDispatchQuestions(runCtx, req, st)
	}
	for _, call := range msg.ToolCalls {
		st.pending = append(st.pending, &pendingToolCall{id: call.ID, name: call.Name})
		o.dispatch(runCtx, req.SessionKey, envelope(KindProgressEvent, ProgressEvent{
			Type:       "tool-started",
			ToolCallID: call.ID,
			ToolName:   call.Name,
		}, st.messageID))
	}
}

// streamChat emits the safe portion of unstreamed text. Once a block
// opening is latched, everything from the block start on is buffered
// for finalization.
func (o *Orchestrator) streamChat(runCtx context.Context, req *RunRequest, st *streamState) {
	if st.blockStart >= 0 {
		return
	}
	tail := st.full[st.streamed:]
	if idx, found := FindBlockStart(tail); found {
		if idx > 0 {
			o.emitChunk(runCtx, req, st, tail[:idx])
			st.streamed += idx
		}
		st.blockStart = st.streamed
		return
	}
	if safe := SafeStreamEnd(tail); safe > 0 {
		o.emitChunk(runCtx, req, st, tail[:safe])
		st.streamed += safe
	}
}

func (o *Orchestrator) emitChunk(runCtx context.Context, req *RunRequest, st *streamState, text string) {
	if text == "" {
		return
	}
	o.dispatch(runCtx, req.SessionKey, envelope(KindTextChunk, TextChunk{Text: text, MessageID: st.messageID}, st.messageID))
}

// maybeDispatchQuestions delivers open questions as soon as the block
// closes, without waiting for the run to finish. The latch guarantees
// a single dispatch per run.
func (o *Orchestrator) maybeDispatchQuestions(runCtx context.Context, req *RunRequest, st *streamState) {
	if st.questionsSent || st.blockStart < 0 {
		return
	}
	questions, _, err := ExtractOpenQuestions(st.full)
	if err != nil || questions == nil {
		return
	}
	st.questionsSent = true
	o.dispatch(runCtx, req.SessionKey, envelope(KindOpenQuestions, questions, st.messageID))
}

// handleToolResult matches a result to its pending call by id, falling
// back to the oldest unresolved call when the id is missing.
func (o *Orchestrator) handleToolResult(runCtx context.Context, req *RunRequest, st *streamState, msg *EngineMessage) {
	var match *pendingToolCall
	if msg.ToolCallID != "" {
		for _, p := range st.pending {
			if p.id == msg.ToolCallID && !p.done {
				match = p
				break
			}
		}
	}
	if match == nil {
		for _, p := range st.pending {
			if !p.done {
				match = p
				break
			}
		}
	}
	if match == nil {
		o.emitLog(events.NewWarn(fmt.Sprintf("tool result %q has no pending call", msg.ToolCallID)), req)
		return
	}
	match.done = true
	o.dispatch(runCtx, req.SessionKey, envelope(KindProgressEvent, ProgressEvent{
		Type:       "tool-completed",
		ToolCallID: match.id,
		ToolName:   firstNonEmpty(msg.ToolName, match.name),
	}, st.messageID))
}

// finalize extracts structured blocks from the accumulated response,
// applies document side effects, persists the exchange, and settles the
// session back to idle.
func (o *Orchestrator) finalize(runCtx context.Context, req *RunRequest, st *streamState, requestID string) {
	display := st.full

	questions, display, err := ExtractOpenQuestions(display)
	if err != nil {
		o.emitLog(events.NewWarn(err.Error()), req)
	} else if questions != nil && !st.questionsSent {
		st.questionsSent = true
		o.dispatch(runCtx, req.SessionKey, envelope(KindOpenQuestions, questions, st.messageID))
	}

	suggested, display, err := ExtractSuggestedResponses(display)
	if err != nil {
		o.emitLog(events.NewWarn(err.Error()), req)
	} else if suggested != nil {
		o.dispatch(runCtx, req.SessionKey, envelope(KindSuggestedResponses, suggested, st.messageID))
	}

	plan, display, err := ExtractPlanUpdate(display)
	if err != nil {
		o.emitLog(events.NewWarn(err.Error()), req)
	} else if plan != nil {
		o.dispatch(runCtx, req.SessionKey, envelope(KindPlanUpdate, plan, st.messageID))
	}

	replacement, display, hasReplacement := ExtractDocumentReplacement(display)

	edits, display, err := ExtractDocumentEdits(display)
	if err != nil {
		o.emitLog(events.NewWarn(err.Error()), req)
	}

	if hasReplacement {
		o.applyReplacement(runCtx, req, st, replacement)
	}
	if len(edits) > 0 {
		o.applyEdits(runCtx, req, st, edits)
	}

	display = strings.TrimSpace(display)
	if o.chat != nil {
		if err := o.chat.AddMessage(req.SessionKey, req.UserID, "assistant", display, st.full); err != nil {
			o.emitLog(events.NewWarn(fmt.Sprintf("failed to persist assistant message: %v", err)), req)
		}
	}

	if st.usage != nil {
		o.dispatch(runCtx, req.SessionKey, envelope(KindTokenUsage, *st.usage, st.messageID))
		if o.diag != nil && requestID != "" {
			o.diag.UpdateRequest(requestID, map[string]interface{}{
				"input_tokens":  st.usage.InputTokens,
				"output_tokens": st.usage.OutputTokens,
			})
		}
	}

	o.dispatch(runCtx, req.SessionKey, envelope(KindMessageComplete, CompletedMessage{
		MessageID:  st.messageID,
		SessionKey: req.SessionKey,
		Display:    display,
		CreatedAt:  time.Now(),
	}, st.messageID))

	if o.diag != nil && requestID != "" {
		o.diag.CompleteRequest(requestID, nil)
	}
	o.store.finishRun(req.SessionKey, nil)
	if runCtx.Err() == nil {
		o.emitStatus(req, StatusIdle)
	}
}

// applyReplacement streams full-document replacement to the editor
// backend. Failures degrade to chat-only; the edit-start/edit-end pair
// always fires so clients never get stuck in an editing state.
func (o *Orchestrator) applyReplacement(runCtx context.Context, req *RunRequest, st *streamState, content string) {
	o.dispatch(runCtx, req.SessionKey, envelope(KindDocumentEditStart, nil, st.messageID))
	defer o.dispatch(runCtx, req.SessionKey, envelope(KindDocumentEditEnd, nil, st.messageID))

	if o.docs == nil || req.DocumentRoom == "" {
		o.emitLog(events.NewWarn("document replacement skipped: no editor backend"), req)
		return
	}
	if err := o.docs.Connect(runCtx, req.DocumentRoom); err != nil {
		o.emitLog(events.NewWarn(fmt.Sprintf("document connect failed: %v", err)), req)
		return
	}
	if err := o.docs.StreamReplaceContent(runCtx, req.DocumentRoom, content); err != nil {
		o.emitLog(events.NewWarn(fmt.Sprintf("document replacement failed: %v", err)), req)
		return
	}
	if err := o.docs.ClearCursor(runCtx, req.DocumentRoom); err != nil {
		o.emitLog(events.NewWarn(fmt.Sprintf("cursor cleanup failed: %v", err)), req)
	}
}

// applyEdits applies structural edits one by one; individual edit
// failures are logged and do not abort the remainder.
func (o *Orchestrator) applyEdits(runCtx context.Context, req *RunRequest, st *streamState, edits []DocumentEdit) {
	o.dispatch(runCtx, req.SessionKey, envelope(KindDocumentEditStart, nil, st.messageID))
	defer o.dispatch(runCtx, req.SessionKey, envelope(KindDocumentEditEnd, nil, st.messageID))

	if o.docs == nil || req.DocumentRoom == "" {
		o.emitLog(events.NewWarn("document edits skipped: no editor backend"), req)
		return
	}
	if err := o.docs.Connect(runCtx, req.DocumentRoom); err != nil {
		o.emitLog(events.NewWarn(fmt.Sprintf("document connect failed: %v", err)), req)
		return
	}
	results, err := o.docs.ApplyEdits(runCtx, req.DocumentRoom, edits)
	if err != nil {
		o.emitLog(events.NewWarn(fmt.Sprintf("document edits failed: %v", err)), req)
		return
	}
	for _, res := range results {
		if !res.OK {
			o.emitLog(events.NewWarn(fmt.Sprintf("document edit %d failed: %s", res.Index, res.Error)), req)
		}
	}
}

// failRun settles a failed run: error envelope, diagnostics, error
// status. The error state clears on the next ProcessMessage.
func (o *Orchestrator) failRun(runCtx context.Context, req *RunRequest, st *streamState, requestID string, runErr error) {
	o.dispatch(runCtx, req.SessionKey, envelope(KindError, runErr.Error(), st.messageID))
	o.emitLog(events.NewError(fmt.Sprintf("generation run failed: %v", runErr)), req)
	if o.diag != nil && requestID != "" {
		o.diag.CompleteRequest(requestID, runErr)
	}
	o.store.finishRun(req.SessionKey, runErr)
	if runCtx.Err() == nil {
		o.emitStatus(req, StatusError)
	}
}

// completeAborted closes out diagnostics for a run whose session was
// aborted; the session itself was already reset to idle.
func (o *Orchestrator) completeAborted(req *RunRequest, requestID string) {
	if o.diag != nil && requestID != "" {
		o.diag.CompleteRequest(requestID, context.Canceled)
	}
	o.emitLog(events.NewInfo("generation run aborted"), req)
}

// dispatch forwards an envelope unless the run was cancelled; abort
// suppression is checked at every dispatch site, not once per loop.
func (o *Orchestrator) dispatch(runCtx context.Context, sessionKey string, msg QueuedMessage) {
	if runCtx.Err() != nil {
		return
	}
	o.store.DispatchOrQueue(sessionKey, msg)
}

func (o *Orchestrator) emitStatus(req *RunRequest, status Status) {
	evt := events.NewInfo(fmt.Sprintf("session %s", status))
	evt.SessionKey = req.SessionKey
	evt.WorkspaceID = req.WorkspaceID
	evt.Metadata = map[string]string{"status": string(status)}
	events.Emit(o.appCtx(), events.SessionStatusEvent, evt)
}

func (o *Orchestrator) emitLog(evt events.ToolEvent, req *RunRequest) {
	evt.SessionKey = req.SessionKey
	evt.WorkspaceID = req.WorkspaceID
	events.Emit(o.appCtx(), events.DiagnosticsEvent, evt)
}

func envelope(kind MessageKind, payload interface{}, correlationID string) QueuedMessage {
	return QueuedMessage{
		Kind:          kind,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLength {
		return text
	}
	return text[:previewLength] + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
