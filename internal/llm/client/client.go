package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

const (
	defaultMaxTokens = 8192
	defaultMaxSteps  = 24
)

// LLMClient wraps a provider chat model behind one tool-calling surface.
type LLMClient struct {
	chatModel model.ToolCallingChatModel
	provider  string
	modelName string
	maxSteps  int
}

// Provider returns the provider id this client talks to.
func (c *LLMClient) Provider() string { return c.provider }

// ModelName returns the provider-side model name.
func (c *LLMClient) ModelName() string { return c.modelName }

type ClaudeModelOptions struct {
	Model    string
	Thinking bool
}

func NewClaudeClient(ctx context.Context, apiKey string, opts ClaudeModelOptions) (*LLMClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	chatModel, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:    apiKey,
		Model:     opts.Model,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create claude model: %w", err)
	}
	return &LLMClient{
		chatModel: chatModel,
		provider:  "anthropic",
		modelName: opts.Model,
		maxSteps:  defaultMaxSteps,
	}, nil
}

type OpenAIModelOptions struct {
	Model           string
	ReasoningEffort string
}

func NewOpenAIClient(ctx context.Context, apiKey string, opts OpenAIModelOptions) (*LLMClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey: apiKey,
		Model:  opts.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return &LLMClient{
		chatModel: chatModel,
		provider:  "openai",
		modelName: opts.Model,
		maxSteps:  defaultMaxSteps,
	}, nil
}

type GeminiModelOptions struct {
	Model    string
	Thinking bool
}

func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiModelOptions) (*LLMClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: genaiClient,
		Model:  opts.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini model: %w", err)
	}
	return &LLMClient{
		chatModel: chatModel,
		provider:  "gemini",
		modelName: opts.Model,
		maxSteps:  defaultMaxSteps,
	}, nil
}
