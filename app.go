package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"ideaforge/internal/docsync"
	"ideaforge/internal/events"
	"ideaforge/internal/llm/client"
	"ideaforge/internal/llm/tools"
	"ideaforge/internal/models"
	"ideaforge/internal/services"
	"ideaforge/internal/stream"
)

const plannerTemplateName = "planning_system"

// App is the Wails-bound application shell. It wires the service layer
// into the stream orchestrator and bridges session events to the
// frontend.
type App struct {
	ctx context.Context

	svc     *services.Services
	docs    *docsync.Client
	orch    *stream.Orchestrator
	dbClose func() error
}

func NewApp() *App {
	return &App{}
}

// startup wires the orchestrator once the database and services are up.
// Called from the Wails OnStartup hook.
func (a *App) startup(ctx context.Context, svc *services.Services, dbClose func() error) error {
	a.ctx = ctx
	a.svc = svc
	a.dbClose = dbClose

	if err := svc.Startup(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	settings, err := svc.Settings.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	a.docs = docsync.NewClient(settings.DocSyncURL)
	engine := client.NewEngine(svc.Models, svc.Keyring)
	store := stream.NewStore(settings.QueueLimit)

	a.orch = stream.NewOrchestrator(store, engine, svc.Chat, a.docs, svc.Diagnostics)
	a.orch.Startup(ctx)
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	if a.docs != nil {
		a.docs.Close()
	}
	if a.dbClose != nil {
		if err := a.dbClose(); err != nil {
			runtime.LogError(ctx, fmt.Sprintf("failed to close database: %v", err))
		}
		a.dbClose = nil
	}
}

// SessionKeyForIdea is the canonical session key used for an idea's
// conversation.
func SessionKeyForIdea(ideaID uint) string {
	return fmt.Sprintf("session:%d", ideaID)
}

// SendMessage starts a generation run for an idea's session. The
// execution context must already be resolvable; when a clarifying
// question is pending the caller gets ERR_CONTEXT_REQUIRED and should
// call ResolveIdeaContext to obtain the question.
func (a *App) SendMessage(ideaID, userID uint, content, modelKey string) error {
	if a.orch == nil {
		return fmt.Errorf("app is not started")
	}
	idea, err := a.svc.Ideas.Get(ideaID)
	if err != nil {
		return err
	}

	resolution, err := a.svc.Context.ResolveIdeaContext(ideaID, userID)
	if err != nil {
		return err
	}
	if resolution.Question != nil {
		return fmt.Errorf("ERR_CONTEXT_REQUIRED:%d", ideaID)
	}
	execCtx := resolution.Context

	tpl, err := a.svc.Templates.Resolve(plannerTemplateName)
	if err != nil {
		return err
	}
	systemPrompt := client.RenderPrompt(tpl, map[string]string{
		"IDEA_TITLE":        idea.Title,
		"IDEA_SUMMARY":      idea.Summary,
		"EXECUTION_CONTEXT": execCtx.Describe(),
	})

	if strings.TrimSpace(modelKey) == "" {
		settings, err := a.svc.Settings.Get()
		if err != nil {
			return err
		}
		modelKey = settings.DefaultModelKey
	}

	sessionKey := SessionKeyForIdea(ideaID)
	req := &stream.RunRequest{
		SessionKey:   sessionKey,
		UserID:       userID,
		WorkspaceID:  idea.WorkspaceID,
		Content:      content,
		SystemPrompt: systemPrompt,
		ModelKey:     modelKey,
		DocumentRoom: fmt.Sprintf("idea-%d", ideaID),
	}

	if execCtx.IsCodeIdea && execCtx.WorkingDir != "" {
		tools.SetBaseRootForSession(sessionKey, execCtx.WorkingDir)
		built, err := tools.BuildToolset()
		if err != nil {
			return fmt.Errorf("build toolset: %w", err)
		}
		req.Tools = built
	}

	return a.orch.ProcessMessage(req)
}

// streamEvent is the envelope forwarded to the frontend on the stream
// event channel.
type streamEvent struct {
	SessionKey string      `json:"sessionKey"`
	Kind       string      `json:"kind"`
	Payload    interface{} `json:"payload,omitempty"`
}

func (a *App) emitStream(sessionKey string, kind stream.MessageKind, payload interface{}) {
	runtime.EventsEmit(a.ctx, events.StreamEventChannel, streamEvent{
		SessionKey: sessionKey,
		Kind:       string(kind),
		Payload:    payload,
	})
}

// AttachSession connects the frontend to a session: queued events are
// replayed in order, then live events flow until DetachSession.
func (a *App) AttachSession(ideaID uint, workspaceID string) string {
	key := SessionKeyForIdea(ideaID)
	cb := &stream.ClientCallbacks{
		OnTextChunk: func(text, messageID string) {
			a.emitStream(key, stream.KindTextChunk, stream.TextChunk{Text: text, MessageID: messageID})
		},
		OnPlanUpdate: func(plan *stream.PlanUpdate) {
			a.emitStream(key, stream.KindPlanUpdate, plan)
		},
		OnComplete: func(message stream.CompletedMessage) {
			a.emitStream(key, stream.KindMessageComplete, message)
		},
		OnError: func(message string) {
			a.emitStream(key, stream.KindError, message)
		},
		OnTokenUsage: func(usage stream.TokenUsage) {
			a.emitStream(key, stream.KindTokenUsage, usage)
		},
		OnDocumentEditStart: func() {
			a.emitStream(key, stream.KindDocumentEditStart, nil)
		},
		OnDocumentEditEnd: func() {
			a.emitStream(key, stream.KindDocumentEditEnd, nil)
		},
		OnOpenQuestions: func(questions []stream.OpenQuestion) {
			a.emitStream(key, stream.KindOpenQuestions, questions)
		},
		OnSuggestedResponses: func(responses []string) {
			a.emitStream(key, stream.KindSuggestedResponses, responses)
		},
		OnProgress: func(event stream.ProgressEvent) {
			a.emitStream(key, stream.KindProgressEvent, event)
		},
	}
	a.orch.Store().RegisterClient(key, workspaceID, cb)
	return key
}

func (a *App) DetachSession(ideaID uint) {
	a.orch.Store().UnregisterClient(SessionKeyForIdea(ideaID))
}

// StopSession aborts the running generation for an idea, if any.
func (a *App) StopSession(ideaID uint) {
	a.orch.StopSession(SessionKeyForIdea(ideaID))
}

// DeleteChatHistory clears persisted messages and destroys the
// in-memory session, including its tool scope.
func (a *App) DeleteChatHistory(ideaID uint) error {
	key := SessionKeyForIdea(ideaID)
	if err := a.orch.DeleteHistory(key); err != nil {
		return err
	}
	tools.ClearSession(key)
	return nil
}

func (a *App) GetChatMessages(ideaID uint) ([]models.ChatMessage, error) {
	return a.svc.Chat.GetMessages(SessionKeyForIdea(ideaID))
}

func (a *App) ListSessions() []stream.SessionView {
	return a.orch.Store().List()
}

// ResolveIdeaContext classifies an idea and resolves where generated
// tools should operate; the result may instead carry a clarifying
// question for the user.
func (a *App) ResolveIdeaContext(ideaID, userID uint) (*services.ContextResolution, error) {
	return a.svc.Context.ResolveIdeaContext(ideaID, userID)
}

// GetSessionDiagnostics returns recent generation records for an idea.
func (a *App) GetSessionDiagnostics(ideaID uint, limit int) ([]models.LLMRequest, error) {
	return a.svc.Diagnostics.ListRecent(SessionKeyForIdea(ideaID), limit)
}
