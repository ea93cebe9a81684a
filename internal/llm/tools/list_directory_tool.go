package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnorePatterns are directory names skipped by workspace listings.
var DefaultIgnorePatterns = []string{
	"node_modules/",
	"__pycache__/",
	".git/",
	"dist/",
	"build/",
	"target/",
	"vendor/",
	"bin/",
	".idea/",
	".vscode/",
	".cache/",
	"tmp/",
	".venv/",
	"venv/",
}

const listLimit = 100

var errListLimitReached = errors.New("list limit reached")

type ListDirectoryInput struct {
	// Path is resolved relative to the session's workspace root.
	Path   string   `json:"path,omitempty" jsonschema:"description=Directory to list, relative to the workspace root"`
	Ignore []string `json:"ignore,omitempty" jsonschema:"description=Additional glob-like patterns to ignore"`
}

type ListDirectoryOutput struct {
	Title    string            `json:"title"`
	Output   string            `json:"output"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func listFormatError(title, msg string) *ListDirectoryOutput {
	return &ListDirectoryOutput{
		Title:    title,
		Output:   "Format error: " + msg,
		Metadata: map[string]string{"error": "format_error"},
	}
}

// ListDirectory renders a textual tree of a workspace directory, capped
// at listLimit files. Errors are reported in-band so the model can
// recover instead of aborting the run.
func ListDirectory(ctx context.Context, in *ListDirectoryInput) (*ListDirectoryOutput, error) {
	base := baseRoot(ctx)
	if base == "" {
		return listFormatError("", "workspace root not set"), nil
	}

	req := "."
	if in != nil && strings.TrimSpace(in.Path) != "" {
		req = strings.TrimSpace(in.Path)
	}
	searchPath, ok := resolveUnderBase(base, req)
	if !ok {
		return listFormatError(filepath.ToSlash(req), "path escapes the workspace root"), nil
	}

	info, err := os.Stat(searchPath)
	if err != nil {
		return listFormatError(filepath.ToSlash(searchPath), fmt.Sprintf("directory does not exist or is not accessible: %s", filepath.ToSlash(searchPath))), nil
	}
	if !info.IsDir() {
		return listFormatError(filepath.ToSlash(searchPath), fmt.Sprintf("path is not a directory: %s", filepath.ToSlash(searchPath))), nil
	}

	patterns := append([]string{}, DefaultIgnorePatterns...)
	if in != nil {
		patterns = append(patterns, in.Ignore...)
	}

	var files []string
	err = filepath.WalkDir(searchPath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == searchPath {
			return nil
		}
		rel, _ := filepath.Rel(searchPath, p)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if matchIgnoredDir(rel, patterns) {
				return fs.SkipDir
			}
			return nil
		}
		if matchIgnoredFile(rel, patterns) {
			return nil
		}
		files = append(files, rel)
		if len(files) >= listLimit {
			return errListLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errListLimitReached) {
		return listFormatError(filepath.ToSlash(searchPath), fmt.Sprintf("failed to traverse directory: %v", err)), nil
	}

	return &ListDirectoryOutput{
		Title:  filepath.ToSlash(searchPath),
		Output: renderTree(searchPath, files),
		Metadata: map[string]string{
			"files_count": fmt.Sprintf("%d", len(files)),
			"limited":     fmt.Sprintf("%v", len(files) >= listLimit),
		},
	}, nil
}

// renderTree builds an indented directory tree from slash-separated
// relative file paths.
func renderTree(root string, files []string) string {
	dirs := map[string]struct{}{".": {}}
	filesByDir := map[string][]string{}

	for _, f := range files {
		dir := path.Dir(f)
		if dir != "." {
			parts := strings.Split(dir, "/")
			for i := 1; i <= len(parts); i++ {
				dirs[strings.Join(parts[:i], "/")] = struct{}{}
			}
		}
		filesByDir[dir] = append(filesByDir[dir], path.Base(f))
	}

	allDirs := make([]string, 0, len(dirs))
	for d := range dirs {
		allDirs = append(allDirs, d)
	}

	childrenOf := func(parent string) []string {
		var children []string
		for _, d := range allDirs {
			if d != parent && path.Dir(d) == parent {
				children = append(children, d)
			}
		}
		sort.Strings(children)
		return children
	}

	var renderDir func(dirPath string, depth int) string
	renderDir = func(dirPath string, depth int) string {
		var out strings.Builder
		if depth > 0 {
			out.WriteString(strings.Repeat("  ", depth))
			out.WriteString(path.Base(dirPath))
			out.WriteString("/\n")
		}
		for _, child := range childrenOf(dirPath) {
			out.WriteString(renderDir(child, depth+1))
		}
		names := filesByDir[dirPath]
		sort.Strings(names)
		indent := strings.Repeat("  ", depth+1)
		for _, f := range names {
			out.WriteString(indent)
			out.WriteString(f)
			out.WriteByte('\n')
		}
		return out.String()
	}

	var b strings.Builder
	b.WriteString(filepath.Clean(root) + string(os.PathSeparator))
	b.WriteByte('\n')
	b.WriteString(renderDir(".", 0))
	return b.String()
}

func matchIgnoredDir(relDir string, patterns []string) bool {
	segs := strings.Split(relDir, "/")
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		dirPat := strings.TrimSuffix(strings.TrimSuffix(p, "/**"), "/")
		if dirPat != p {
			for _, s := range segs {
				if s == dirPat {
					return true
				}
			}
			continue
		}
		if !strings.ContainsAny(p, "*?[") {
			for _, s := range segs {
				if s == p {
					return true
				}
			}
		}
	}
	return false
}

func matchIgnoredFile(relFile string, patterns []string) bool {
	dir := path.Dir(relFile)
	if dir != "." && matchIgnoredDir(dir, patterns) {
		return true
	}
	base := path.Base(relFile)
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?[") && !strings.HasSuffix(p, "/") && base == p {
			return true
		}
	}
	return false
}
