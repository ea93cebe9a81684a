package stream

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// MessageKind tags every envelope delivered to a client, live or replayed.
type MessageKind string

const (
	KindTextChunk          MessageKind = "text-chunk"
	KindPlanUpdate         MessageKind = "plan-update"
	KindMessageComplete    MessageKind = "message-complete"
	KindError              MessageKind = "error"
	KindTokenUsage         MessageKind = "token-usage"
	KindDocumentEditStart  MessageKind = "document-edit-start"
	KindDocumentEditEnd    MessageKind = "document-edit-end"
	KindOpenQuestions      MessageKind = "open-questions"
	KindSuggestedResponses MessageKind = "suggested-responses"
	KindProgressEvent      MessageKind = "progress-event"
)

// QueuedMessage is an immutable envelope. Replay order must match the
// order envelopes were produced in.
type QueuedMessage struct {
	Kind          MessageKind `json:"kind"`
	Payload       interface{} `json:"payload,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlationId,omitempty"`
}

// TextChunk is the payload of a text-chunk envelope.
type TextChunk struct {
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

// TokenUsage carries the authoritative counts from the engine's final result.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ProgressEvent reports tool activity within a run.
type ProgressEvent struct {
	Type       string `json:"type"` // "tool-started" | "tool-completed" | "status"
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Status     string `json:"status,omitempty"`
}

// CompletedMessage is the payload of a message-complete envelope.
type CompletedMessage struct {
	MessageID  string    `json:"messageId"`
	SessionKey string    `json:"sessionKey"`
	Display    string    `json:"display"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ClientCallbacks is the callback set a transport registers per session.
// Callbacks are invoked synchronously from the generation loop and must
// not block on client I/O; hand off through a queue if delivery can block.
type ClientCallbacks struct {
	OnTextChunk          func(text, messageID string)
	OnPlanUpdate         func(plan *PlanUpdate)
	OnComplete           func(message CompletedMessage)
	OnError              func(message string)
	OnTokenUsage         func(usage TokenUsage)
	OnDocumentEditStart  func()
	OnDocumentEditEnd    func()
	OnOpenQuestions      func(questions []OpenQuestion)
	OnSuggestedResponses func(responses []string)
	OnProgress           func(event ProgressEvent)
}

// EngineMessageKind discriminates the typed messages the generation
// engine produces.
type EngineMessageKind string

const (
	EngineAssistantContent EngineMessageKind = "assistant-content"
	EngineToolResult       EngineMessageKind = "tool-result"
	EngineFinalResult      EngineMessageKind = "final-result"
)

// EngineToolCall is a tool invocation requested by the model.
type EngineToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// EngineMessage is one typed message from the generation engine.
//
// assistant-content carries new chat text and/or tool calls;
// tool-result carries the output of one tool invocation;
// final-result carries token usage, or Failed with an error string.
type EngineMessage struct {
	Kind       EngineMessageKind `json:"kind"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []EngineToolCall  `json:"toolCalls,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	ToolName   string            `json:"toolName,omitempty"`
	ToolOutput string            `json:"toolOutput,omitempty"`
	Usage      *TokenUsage       `json:"usage,omitempty"`
	Failed     bool              `json:"failed,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// GenerationRequest is what the orchestrator hands the engine for one run.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Tools        []tool.BaseTool
}

// GenerationEngine is the opaque producer of typed messages. The
// returned stream ends with io.EOF; cancellation goes through ctx.
type GenerationEngine interface {
	Generate(ctx context.Context, req *GenerationRequest) (*schema.StreamReader[*EngineMessage], error)
}

// ChatStore persists completed exchanges. Reading history back is a
// transport concern and lives on the chat service, not here.
type ChatStore interface {
	AddMessage(sessionKey string, authorID uint, role, display, raw string) error
	ClearMessages(sessionKey string) error
	DeleteAll() error
}

// EditResult reports per-edit success when applying document edits.
type EditResult struct {
	Index int    `json:"index"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DocumentClient is the collaborative-editor backend used for document
// side effects. Connections are opened lazily per room and failures
// must degrade the run to chat-only mode, never abort it.
type DocumentClient interface {
	Connect(ctx context.Context, room string) error
	GetContent(ctx context.Context, room string) (string, error)
	StreamReplaceContent(ctx context.Context, room, content string) error
	ApplyEdits(ctx context.Context, room string, edits []DocumentEdit) ([]EditResult, error)
	ClearCursor(ctx context.Context, room string) error
}

// DiagnosticsSink records generation requests for observability.
type DiagnosticsSink interface {
	StartRequest(kind, sessionKey, preview string) string
	UpdateRequest(requestID string, patch map[string]interface{})
	CompleteRequest(requestID string, runErr error)
}

// LinkedItem is a context source attached to an idea, as seen by the
// prompt-building layer.
type LinkedItem struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	LocalPath string `json:"localPath,omitempty"`
	RemoteURL string `json:"remoteUrl,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// KeyProperties are the resolved repository facts for a linked item.
type KeyProperties struct {
	LocalPath     string `json:"localPath,omitempty"`
	RemoteURL     string `json:"remoteUrl,omitempty"`
	Branch        string `json:"branch,omitempty"`
	RequiresClone bool   `json:"requiresClone"`
}

// ContextResolver looks up linked context items and resolves their
// key properties when the prompt for a run is assembled.
type ContextResolver interface {
	GetLinkedItem(id, userID uint) (*LinkedItem, error)
	ResolveKeyProperties(id, userID uint) (*KeyProperties, error)
}
