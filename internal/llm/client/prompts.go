package client

import (
	"fmt"
	"strings"
)

// EmbeddedPrompt returns a built-in prompt template by name, e.g.
// "planning_system". Database overrides are resolved by the template
// service; this is the packaged fallback.
func EmbeddedPrompt(name string) (string, error) {
	b, err := embeddedPrompts.ReadFile(fmt.Sprintf("prompts/%s.txt", strings.TrimSpace(name)))
	if err != nil {
		return "", fmt.Errorf("embedded prompt %q: %w", name, err)
	}
	return string(b), nil
}

// RenderPrompt substitutes {{KEY}} placeholders. Unknown placeholders
// are left in place so missing variables surface in review rather than
// vanishing silently.
func RenderPrompt(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
