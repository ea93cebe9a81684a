package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	defaultReadLimit = 2000
	maxLineLength    = 2000
)

type ReadFileInput struct {
	// FilePath is resolved relative to the workspace root; absolute
	// paths are allowed only when they stay under it.
	FilePath string `json:"file_path" jsonschema:"description=The path to the file to read, relative to the workspace root"`
	Offset   int    `json:"offset,omitempty" jsonschema:"description=The line number to start reading from (0-based)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"description=The number of lines to read (defaults to 2000)"`
}

type ReadFileOutput struct {
	Title    string            `json:"title"`
	Output   string            `json:"output"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ReadFile reads a text file within the workspace root with paging and
// binary-content safety checks.
func ReadFile(ctx context.Context, in *ReadFileInput) (*ReadFileOutput, error) {
	if in == nil {
		return nil, errors.New("input is required")
	}
	base := baseRoot(ctx)
	if base == "" {
		return nil, fmt.Errorf("workspace root not set")
	}
	pathArg := strings.TrimSpace(in.FilePath)
	if pathArg == "" {
		return nil, fmt.Errorf("file path is required")
	}

	absPath, ok := resolveUnderBase(base, pathArg)
	if !ok {
		return nil, fmt.Errorf("file %s is not in the workspace root", pathArg)
	}

	rel, relErr := filepath.Rel(base, absPath)
	if relErr != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)

	fi, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			suggestions := similarEntries(filepath.Dir(absPath), filepath.Base(absPath))
			output := "<file>\nFile not found: " + absPath + "\n"
			if len(suggestions) > 0 {
				output += "\nDid you mean one of these?\n" + strings.Join(suggestions, "\n") + "\n"
			}
			output += "\n</file>"
			return &ReadFileOutput{
				Title:    rel,
				Output:   output,
				Metadata: map[string]string{"error": "file_not_found"},
			}, nil
		}
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	}

	isBin, err := isBinaryFile(absPath)
	if err != nil {
		return nil, err
	}
	if isBin {
		return nil, fmt.Errorf("cannot read binary file: %s", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")

	limit := in.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}
	start := offset
	if start > len(lines) {
		start = len(lines)
	}
	end := start + limit
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	b.WriteString("<file>\n")
	for i := start; i < end; i++ {
		line := lines[i]
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "..."
		}
		fmt.Fprintf(&b, "%05d| %s", i+1, line)
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	if len(lines) > end {
		fmt.Fprintf(&b, "\n\n(File has more lines. Use 'offset' parameter to read beyond line %d)", end)
	}
	b.WriteString("\n</file>")

	return &ReadFileOutput{
		Title:  rel,
		Output: b.String(),
		Metadata: map[string]string{
			"lines": fmt.Sprintf("%d", end-start),
		},
	}, nil
}

// isBinaryFile checks the extension, then scans up to 4096 bytes for
// null bytes and non-printable density.
func isBinaryFile(p string) (bool, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".zip", ".tar", ".gz", ".exe", ".dll", ".so", ".class", ".jar",
		".7z", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
		".bin", ".dat", ".o", ".a", ".wasm", ".pyc",
		".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".pdf":
		return true, nil
	}

	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 4096)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	buf = buf[:n]
	if len(buf) == 0 {
		return false, nil
	}

	nonPrintable := 0
	for _, c := range buf {
		if c == 0x00 {
			return true, nil
		}
		if c < 9 || (c > 13 && c < 32) {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(buf)) > 0.3, nil
}

// similarEntries returns up to 3 same-directory suggestions by
// substring matching.
func similarEntries(dir, baseName string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	needle := strings.ToLower(baseName)
	var candidates []string
	for _, e := range entries {
		lower := strings.ToLower(e.Name())
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			candidates = append(candidates, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(candidates)
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates
}
