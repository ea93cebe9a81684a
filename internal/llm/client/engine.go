package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"ideaforge/internal/models"
	"ideaforge/internal/stream"
)

// ModelResolver resolves a model key to its catalog entry.
type ModelResolver interface {
	GetModel(modelKey string) (*models.LLMModel, error)
}

// KeyProvider supplies the API key for a provider id.
type KeyProvider interface {
	GetApiKey(provider string) (string, error)
}

// Engine turns provider chat models into the typed message stream the
// orchestrator consumes. Clients are built lazily per model key and
// reused across runs.
type Engine struct {
	resolver ModelResolver
	keys     KeyProvider

	mu    sync.Mutex
	cache map[string]*LLMClient
}

func NewEngine(resolver ModelResolver, keys KeyProvider) *Engine {
	return &Engine{
		resolver: resolver,
		keys:     keys,
		cache:    make(map[string]*LLMClient),
	}
}

func (e *Engine) clientFor(ctx context.Context, modelKey string) (*LLMClient, error) {
	e.mu.Lock()
	if c, ok := e.cache[modelKey]; ok {
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	modelInfo, err := e.resolver.GetModel(modelKey)
	if err != nil {
		return nil, err
	}
	if modelInfo == nil {
		return nil, fmt.Errorf("model %s not found", modelKey)
	}
	if !modelInfo.Enabled {
		return nil, fmt.Errorf("model %s is disabled", modelInfo.DisplayName)
	}
	providerID := strings.TrimSpace(modelInfo.ProviderID)
	if providerID == "" {
		return nil, fmt.Errorf("model %s is missing provider information", modelInfo.DisplayName)
	}

	apiKey, err := e.keys.GetApiKey(providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for %s: %w", providerID, err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key for %s is not configured", providerID)
	}

	var (
		llmClient *LLMClient
		createErr error
	)
	switch providerID {
	case "anthropic":
		llmClient, createErr = NewClaudeClient(ctx, apiKey, ClaudeModelOptions{
			Model:    modelInfo.APIName,
			Thinking: modelInfo.Thinking != nil && *modelInfo.Thinking,
		})
	case "openai":
		llmClient, createErr = NewOpenAIClient(ctx, apiKey, OpenAIModelOptions{
			Model:           modelInfo.APIName,
			ReasoningEffort: modelInfo.ReasoningEffort,
		})
	case "gemini":
		llmClient, createErr = NewGeminiClient(ctx, apiKey, GeminiModelOptions{
			Model:    modelInfo.APIName,
			Thinking: modelInfo.Thinking != nil && *modelInfo.Thinking,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
	if createErr != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", providerID, createErr)
	}

	e.mu.Lock()
	e.cache[modelKey] = llmClient
	e.mu.Unlock()
	return llmClient, nil
}

// Generate starts a conversation loop and returns its typed message
// stream. The loop ends with a final-result message or an abort via ctx.
func (e *Engine) Generate(ctx context.Context, req *stream.GenerationRequest) (*schema.StreamReader[*stream.EngineMessage], error) {
	llmClient, err := e.clientFor(ctx, req.Model)
	if err != nil {
		return nil, err
	}
	sr, sw := schema.Pipe[*stream.EngineMessage](8)
	go llmClient.runConversation(ctx, req, sw)
	return sr, nil
}

func sendFailure(sw *schema.StreamWriter[*stream.EngineMessage], err error) {
	sw.Send(&stream.EngineMessage{
		Kind:   stream.EngineFinalResult,
		Failed: true,
		Error:  err.Error(),
	}, nil)
}

// runConversation drives the model/tool loop: stream one model turn,
// execute requested tools, feed results back, repeat until the model
// stops calling tools or maxSteps is reached.
func (c *LLMClient) runConversation(ctx context.Context, req *stream.GenerationRequest, sw *schema.StreamWriter[*stream.EngineMessage]) {
	defer sw.Close()

	chatModel := c.chatModel
	toolMap := make(map[string]tool.InvokableTool, len(req.Tools))
	if len(req.Tools) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(req.Tools))
		for _, t := range req.Tools {
			info, err := t.Info(ctx)
			if err != nil {
				sendFailure(sw, fmt.Errorf("tool info: %w", err))
				return
			}
			infos = append(infos, info)
			if inv, ok := t.(tool.InvokableTool); ok {
				toolMap[info.Name] = inv
			}
		}
		withTools, err := chatModel.WithTools(infos)
		if err != nil {
			sendFailure(sw, fmt.Errorf("bind tools: %w", err))
			return
		}
		chatModel = withTools
	}

	msgs := make([]*schema.Message, 0, 8)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		msgs = append(msgs, schema.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, schema.UserMessage(req.Prompt))

	var totalUsage stream.TokenUsage
	for step := 0; step < c.maxSteps; step++ {
		if ctx.Err() != nil {
			return
		}
		full, closed := c.streamOneTurn(ctx, chatModel, msgs, sw, &totalUsage)
		if closed || full == nil {
			return
		}
		msgs = append(msgs, full)

		if len(full.ToolCalls) == 0 {
			sw.Send(&stream.EngineMessage{Kind: stream.EngineFinalResult, Usage: &totalUsage}, nil)
			return
		}

		calls := make([]stream.EngineToolCall, 0, len(full.ToolCalls))
		for _, tc := range full.ToolCalls {
			calls = append(calls, stream.EngineToolCall{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: tc.Function.Arguments,
			})
		}
		if closed := sw.Send(&stream.EngineMessage{Kind: stream.EngineAssistantContent, ToolCalls: calls}, nil); closed {
			return
		}

		for _, tc := range full.ToolCalls {
			if ctx.Err() != nil {
				return
			}
			output := invokeTool(ctx, toolMap, tc)
			if closed := sw.Send(&stream.EngineMessage{
				Kind:       stream.EngineToolResult,
				ToolCallID: tc.ID,
				ToolName:   tc.Function.Name,
				ToolOutput: output,
			}, nil); closed {
				return
			}
			msgs = append(msgs, schema.ToolMessage(output, tc.ID))
		}
	}
	sendFailure(sw, fmt.Errorf("tool loop exceeded %d steps", c.maxSteps))
}

// streamOneTurn streams a single model response, forwarding content
// chunks as they arrive and returning the concatenated message. The
// bool result reports a closed output stream; failures are sent as a
// final-result and return (nil, false).
func (c *LLMClient) streamOneTurn(
	ctx context.Context,
	chatModel model.ToolCallingChatModel,
	msgs []*schema.Message,
	sw *schema.StreamWriter[*stream.EngineMessage],
	usage *stream.TokenUsage,
) (*schema.Message, bool) {
	reader, err := chatModel.Stream(ctx, msgs)
	if err != nil {
		sendFailure(sw, fmt.Errorf("model stream: %w", err))
		return nil, false
	}
	defer reader.Close()

	chunks := make([]*schema.Message, 0, 32)
	for {
		m, recvErr := reader.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			sendFailure(sw, fmt.Errorf("model stream: %w", recvErr))
			return nil, false
		}
		chunks = append(chunks, m)
		if m.Content != "" {
			if closed := sw.Send(&stream.EngineMessage{
				Kind:    stream.EngineAssistantContent,
				Content: m.Content,
			}, nil); closed {
				return nil, true
			}
		}
	}
	if len(chunks) == 0 {
		sendFailure(sw, errors.New("model produced no output"))
		return nil, false
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		sendFailure(sw, fmt.Errorf("concat model output: %w", err))
		return nil, false
	}
	if full.ResponseMeta != nil && full.ResponseMeta.Usage != nil {
		usage.InputTokens += full.ResponseMeta.Usage.PromptTokens
		usage.OutputTokens += full.ResponseMeta.Usage.CompletionTokens
	}
	return full, false
}

func invokeTool(ctx context.Context, toolMap map[string]tool.InvokableTool, tc schema.ToolCall) string {
	inv, ok := toolMap[tc.Function.Name]
	if !ok {
		return fmt.Sprintf("tool error: unknown tool %q", tc.Function.Name)
	}
	out, err := inv.InvokableRun(ctx, tc.Function.Arguments)
	if err != nil {
		return fmt.Sprintf("tool error: %v", err)
	}
	return out
}
