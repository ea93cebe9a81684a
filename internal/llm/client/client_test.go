package client

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge/internal/models"
)

type resolverMock struct {
	getModel func(modelKey string) (*models.LLMModel, error)
}

func (m *resolverMock) GetModel(modelKey string) (*models.LLMModel, error) {
	return m.getModel(modelKey)
}

type keyProviderMock struct {
	getApiKey func(provider string) (string, error)
}

func (m *keyProviderMock) GetApiKey(provider string) (string, error) {
	return m.getApiKey(provider)
}

func TestEmbeddedPrompt(t *testing.T) {
	prompt, err := EmbeddedPrompt("planning_system")
	require.NoError(t, err)
	assert.Contains(t, prompt, "<plan_update>")
	assert.Contains(t, prompt, "{{IDEA_TITLE}}")

	_, err = EmbeddedPrompt("does_not_exist")
	assert.Error(t, err)
}

func TestRenderPrompt(t *testing.T) {
	tmpl := "Idea: {{IDEA_TITLE}}\nSummary: {{IDEA_SUMMARY}}\nKeep {{UNKNOWN}}"
	out := RenderPrompt(tmpl, map[string]string{
		"IDEA_TITLE":   "Trail app",
		"IDEA_SUMMARY": "Offline hiking maps",
	})
	assert.Contains(t, out, "Idea: Trail app")
	assert.Contains(t, out, "Summary: Offline hiking maps")
	assert.Contains(t, out, "{{UNKNOWN}}", "unknown placeholders stay visible")
}

func TestEngineClientForValidation(t *testing.T) {
	t.Run("unknown model", func(t *testing.T) {
		engine := NewEngine(&resolverMock{
			getModel: func(string) (*models.LLMModel, error) { return nil, nil },
		}, &keyProviderMock{
			getApiKey: func(string) (string, error) { return "k", nil },
		})
		_, err := engine.clientFor(context.Background(), "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("disabled model", func(t *testing.T) {
		engine := NewEngine(&resolverMock{
			getModel: func(string) (*models.LLMModel, error) {
				return &models.LLMModel{DisplayName: "Test", ProviderID: "anthropic", Enabled: false}, nil
			},
		}, &keyProviderMock{
			getApiKey: func(string) (string, error) { return "k", nil },
		})
		_, err := engine.clientFor(context.Background(), "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})

	t.Run("missing api key", func(t *testing.T) {
		engine := NewEngine(&resolverMock{
			getModel: func(string) (*models.LLMModel, error) {
				return &models.LLMModel{DisplayName: "Test", ProviderID: "anthropic", APIName: "m", Enabled: true}, nil
			},
		}, &keyProviderMock{
			getApiKey: func(string) (string, error) { return "", nil },
		})
		_, err := engine.clientFor(context.Background(), "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("unsupported provider", func(t *testing.T) {
		engine := NewEngine(&resolverMock{
			getModel: func(string) (*models.LLMModel, error) {
				return &models.LLMModel{DisplayName: "Test", ProviderID: "mistral", APIName: "m", Enabled: true}, nil
			},
		}, &keyProviderMock{
			getApiKey: func(string) (string, error) { return "k", nil },
		})
		_, err := engine.clientFor(context.Background(), "key")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "unsupported provider"))
	})
}
