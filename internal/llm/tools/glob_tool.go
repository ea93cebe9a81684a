package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	filepathx "github.com/yargevad/filepathx"
)

const globResultLimit = 100

type GlobInput struct {
	// Pattern supports ** for recursive matching.
	Pattern string `json:"pattern" jsonschema:"description=The glob pattern to match files against"`
	Path    string `json:"path,omitempty" jsonschema:"description=Directory to search, relative to the workspace root"`
}

type GlobOutput struct {
	Title    string            `json:"title"`
	Output   string            `json:"output"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func globFormatError(title, msg string) *GlobOutput {
	return &GlobOutput{
		Title:  title,
		Output: "Format error: " + msg,
		Metadata: map[string]string{
			"error":     "format_error",
			"count":     "0",
			"truncated": "false",
		},
	}
}

// Glob finds files matching a pattern under the workspace root, newest
// first, capped at globResultLimit.
func Glob(ctx context.Context, in *GlobInput) (*GlobOutput, error) {
	if in == nil {
		return globFormatError("", "input is required"), nil
	}
	pattern := strings.TrimSpace(in.Pattern)
	if pattern == "" {
		return globFormatError(strings.TrimSpace(in.Path), "pattern is required"), nil
	}
	base := baseRoot(ctx)
	if base == "" {
		return globFormatError(strings.TrimSpace(in.Path), "workspace root not set"), nil
	}

	searchPath := base
	if search := strings.TrimSpace(in.Path); search != "" {
		abs, ok := resolveUnderBase(base, search)
		if !ok {
			return globFormatError(search, "path escapes the workspace root"), nil
		}
		searchPath = abs
	}

	info, err := os.Stat(searchPath)
	if err != nil {
		return globFormatError(filepath.ToSlash(searchPath), "path does not exist or is not accessible"), nil
	}
	if !info.IsDir() {
		return globFormatError(filepath.ToSlash(searchPath), "not a directory"), nil
	}

	absPattern := pattern
	if !filepath.IsAbs(pattern) {
		absPattern = filepath.Join(searchPath, pattern)
	}

	matches, err := filepathx.Glob(absPattern)
	if err != nil {
		return globFormatError(filepath.ToSlash(searchPath), "invalid glob pattern"), nil
	}

	type fileInfo struct {
		path  string
		mtime int64
	}
	files := make([]fileInfo, 0, len(matches))
	truncated := false
	for _, p := range matches {
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		files = append(files, fileInfo{path: p, mtime: st.ModTime().UnixNano()})
		if len(files) >= globResultLimit {
			truncated = true
			break
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime > files[j].mtime })

	var lines []string
	if len(files) == 0 {
		lines = append(lines, "No files found")
	} else {
		for _, f := range files {
			lines = append(lines, filepath.Clean(f.path))
		}
		if truncated {
			lines = append(lines, "", "(Results are truncated. Consider using a more specific path or pattern.)")
		}
	}

	return &GlobOutput{
		Title:  filepath.ToSlash(searchPath),
		Output: strings.Join(lines, "\n"),
		Metadata: map[string]string{
			"count":     fmt.Sprintf("%d", len(files)),
			"truncated": fmt.Sprintf("%v", truncated),
		},
	}, nil
}
