package services

import (
	"context"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"

	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
	"ideaforge/internal/stream"
	"ideaforge/internal/utils"
)

// ExecutionContext is the resolved environment a code-related idea runs
// against. It is computed once per idea and replaced wholesale by a
// fresh resolution, never mutated in place.
type ExecutionContext struct {
	IsCodeIdea    bool   `json:"isCodeIdea"`
	WorkingDir    string `json:"workingDir,omitempty"`
	RemoteURL     string `json:"remoteUrl,omitempty"`
	Branch        string `json:"branch,omitempty"`
	RequiresClone bool   `json:"requiresClone"`
	SourceID      uint   `json:"sourceId,omitempty"`
	SourceName    string `json:"sourceName,omitempty"`
}

// ClarifyingQuestion is the terminal result when a code idea has no
// usable context source. The caller re-invokes resolution after the
// user answers; the question itself is never retried.
type ClarifyingQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// ContextResolution carries either a resolved context or a clarifying
// question, never both.
type ContextResolution struct {
	Context  *ExecutionContext   `json:"context,omitempty"`
	Question *ClarifyingQuestion `json:"question,omitempty"`
}

var (
	codeKeywords = []string{
		"code", "bug", "fix", "refactor", "implement", "api", "cli",
		"library", "framework", "compile", "build", "deploy", "test",
		"endpoint", "database", "migration", "repo", "repository",
		"function", "module", "package", "script", "backend", "frontend",
	}
	nonCodeKeywords = []string{
		"essay", "blog", "article", "marketing", "recipe", "poem",
		"letter", "speech", "itinerary", "budget", "diet", "workout",
	}
)

// ContextService classifies ideas as code-related and resolves the
// execution context from linked items, enriching local checkouts with
// branch and remote facts via go-git.
type ContextService struct {
	ctx   context.Context
	ideas repositories.IdeaRepository
}

func NewContextService(ideas repositories.IdeaRepository) *ContextService {
	return &ContextService{ideas: ideas}
}

func (s *ContextService) Startup(ctx context.Context) {
	s.ctx = ctx
}

// GetLinkedItem returns a linked context item scoped to its owner.
func (s *ContextService) GetLinkedItem(id, userID uint) (*stream.LinkedItem, error) {
	link, err := s.ideas.GetContextLink(id, userID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, nil
	}
	return &stream.LinkedItem{
		ID:        link.ID,
		Name:      link.Name,
		LocalPath: link.LocalPath,
		RemoteURL: link.RemoteURL,
		Branch:    link.Branch,
	}, nil
}

// ResolveKeyProperties resolves repository facts for a linked item. A
// local checkout wins over a remote URL; remote-only links require a
// clone before any filesystem tool can run against them.
func (s *ContextService) ResolveKeyProperties(id, userID uint) (*stream.KeyProperties, error) {
	link, err := s.ideas.GetContextLink(id, userID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("context link %d not found", id)
	}
	props := &stream.KeyProperties{
		LocalPath: link.LocalPath,
		RemoteURL: link.RemoteURL,
		Branch:    link.Branch,
	}
	if strings.TrimSpace(link.LocalPath) != "" {
		enrichFromCheckout(props, link.LocalPath)
		return props, nil
	}
	if strings.TrimSpace(link.RemoteURL) != "" {
		props.RequiresClone = true
		return props, nil
	}
	return nil, fmt.Errorf("context link %d has neither a local path nor a remote URL", id)
}

// enrichFromCheckout fills branch and remote URL from the working copy
// when the link doesn't carry them. A path that isn't a git repository
// is still a valid working directory.
func enrichFromCheckout(props *stream.KeyProperties, path string) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return
	}
	if props.Branch == "" {
		if head, err := repo.Head(); err == nil {
			props.Branch = head.Name().Short()
		}
	}
	if props.RemoteURL == "" {
		if remote, err := repo.Remote("origin"); err == nil {
			if urls := remote.Config().URLs; len(urls) > 0 {
				props.RemoteURL = urls[0]
			}
		}
	}
}

// ResolveIdeaContext classifies the idea and resolves its execution
// context from the linked items. When the idea is code-related but no
// linked item is usable, the result is a single clarifying question.
func (s *ContextService) ResolveIdeaContext(ideaID, userID uint) (*ContextResolution, error) {
	idea, err := s.ideas.GetByID(ideaID)
	if err != nil {
		return nil, err
	}
	if idea == nil {
		return nil, fmt.Errorf("idea %d not found", ideaID)
	}
	links, err := s.ideas.ListContextLinks(ideaID)
	if err != nil {
		return nil, err
	}

	if !classifyCodeIdea(idea.Title+" "+idea.Summary, len(links) > 0) {
		return &ContextResolution{Context: &ExecutionContext{IsCodeIdea: false}}, nil
	}

	for i := range links {
		link := &links[i]
		if ec := resolveFromLink(link); ec != nil {
			return &ContextResolution{Context: ec}, nil
		}
	}

	return &ContextResolution{Question: &ClarifyingQuestion{
		Question: "This looks like a coding idea, but no workspace is linked. Where should I work?",
		Options: []string{
			"Specify a local path",
			"Pick an existing context item",
		},
	}}, nil
}

// classifyCodeIdea scores title+summary against the keyword sets. Ties
// lean code-related, and having any linked items biases the same way.
func classifyCodeIdea(text string, hasLinks bool) bool {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range codeKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	for _, kw := range nonCodeKeywords {
		if strings.Contains(lower, kw) {
			score--
		}
	}
	if hasLinks {
		score++
	}
	// A tie counts as code-related.
	return score >= 0
}

// resolveFromLink turns a usable linked item into an execution context,
// or nil when the item exposes nothing to work against.
func resolveFromLink(link *models.ContextLink) *ExecutionContext {
	if strings.TrimSpace(link.LocalPath) != "" {
		if !utils.DirectoryExists(link.LocalPath) {
			return nil
		}
		props := &stream.KeyProperties{Branch: link.Branch, RemoteURL: link.RemoteURL}
		enrichFromCheckout(props, link.LocalPath)
		return &ExecutionContext{
			IsCodeIdea: true,
			WorkingDir: link.LocalPath,
			RemoteURL:  props.RemoteURL,
			Branch:     props.Branch,
			SourceID:   link.ID,
			SourceName: link.Name,
		}
	}
	if strings.TrimSpace(link.RemoteURL) != "" {
		return &ExecutionContext{
			IsCodeIdea:    true,
			RemoteURL:     link.RemoteURL,
			Branch:        link.Branch,
			RequiresClone: true,
			SourceID:      link.ID,
			SourceName:    link.Name,
		}
	}
	return nil
}

// Describe renders the execution context for prompt interpolation.
func (ec *ExecutionContext) Describe() string {
	if ec == nil || !ec.IsCodeIdea {
		return "This idea is not code-related; no workspace is attached."
	}
	var b strings.Builder
	b.WriteString("This is a coding idea.")
	if ec.WorkingDir != "" {
		fmt.Fprintf(&b, " Working directory: %s.", ec.WorkingDir)
	}
	if ec.RemoteURL != "" {
		fmt.Fprintf(&b, " Repository: %s.", ec.RemoteURL)
	}
	if ec.Branch != "" {
		fmt.Fprintf(&b, " Branch: %s.", ec.Branch)
	}
	if ec.RequiresClone {
		b.WriteString(" The repository has not been cloned locally yet.")
	}
	return b.String()
}

var _ stream.ContextResolver = (*ContextService)(nil)
