package tools

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

type scopeState struct {
	root    string
	ignores []string
}

var (
	scopeMu       sync.RWMutex
	defaultScope  = &scopeState{}
	sessionScopes = make(map[string]*scopeState)
)

type contextKey string

const sessionIDKey contextKey = "ideaforge/tools/session"

// ContextWithSession annotates ctx with a logical session identifier so
// tools keep per-session state without interfering with parallel runs.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	if strings.TrimSpace(sessionID) == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext extracts the logical session identifier from ctx.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

func normalizeRoot(root string) string {
	if strings.TrimSpace(root) == "" {
		return ""
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

func ensureScope(sessionID string) *scopeState {
	if strings.TrimSpace(sessionID) == "" {
		return defaultScope
	}
	scopeMu.Lock()
	defer scopeMu.Unlock()
	if s, ok := sessionScopes[sessionID]; ok {
		return s
	}
	s := &scopeState{}
	sessionScopes[sessionID] = s
	return s
}

func lookupScope(sessionID string) *scopeState {
	if strings.TrimSpace(sessionID) == "" {
		return defaultScope
	}
	scopeMu.RLock()
	defer scopeMu.RUnlock()
	return sessionScopes[sessionID]
}

// SetBaseRoot sets the default base directory used by workspace tools.
func SetBaseRoot(root string) {
	defaultScope.root = normalizeRoot(root)
}

// SetBaseRootForSession sets the base directory for a specific session.
func SetBaseRootForSession(sessionID, root string) {
	ensureScope(sessionID).root = normalizeRoot(root)
}

// ClearSession releases per-session tool state.
func ClearSession(sessionID string) {
	if strings.TrimSpace(sessionID) == "" {
		return
	}
	scopeMu.Lock()
	delete(sessionScopes, sessionID)
	scopeMu.Unlock()
}

// baseRoot resolves the effective base directory for ctx, falling back
// to the default scope when the session has none configured.
func baseRoot(ctx context.Context) string {
	if s := lookupScope(SessionIDFromContext(ctx)); s != nil && s.root != "" {
		return s.root
	}
	return defaultScope.root
}

// safeJoinUnderBase resolves p under base, guaranteeing the result stays
// within base. ok is false when the resolution escapes.
func safeJoinUnderBase(base, p string) (abs string, ok bool) {
	cleanBase := base
	if cleanBase == "" {
		cleanBase = "."
	}
	absBase, err := filepath.Abs(cleanBase)
	if err != nil {
		return "", false
	}
	evalBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		evalBase = absBase
	}

	candidate := filepath.Join(evalBase, p)
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", false
	}
	evalCandidate, err := filepath.EvalSymlinks(absCandidate)
	if err != nil {
		// target may not exist yet
		evalCandidate = absCandidate
	}

	relToBase, err := filepath.Rel(evalBase, evalCandidate)
	if err != nil {
		return "", false
	}
	if relToBase == "." {
		return absCandidate, true
	}
	if strings.HasPrefix(relToBase, "..") {
		return "", false
	}
	return absCandidate, true
}

// resolveUnderBase accepts a relative or absolute path and pins it under
// the configured base root.
func resolveUnderBase(base, p string) (string, bool) {
	if filepath.IsAbs(p) {
		absBase, err := filepath.Abs(base)
		if err != nil {
			return "", false
		}
		absReq, err := filepath.Abs(p)
		if err != nil {
			return "", false
		}
		rel, err := filepath.Rel(absBase, absReq)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", false
		}
		return absReq, true
	}
	return safeJoinUnderBase(base, p)
}
