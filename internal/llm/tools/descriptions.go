package tools

import (
	"embed"
	"fmt"
	"strings"
)

// toolDescFS embeds the .txt description files in this package; a tool
// key like "read_file_tool" maps to "read_file_tool.txt".
//
//go:embed *.txt
var toolDescFS embed.FS

// ToolDescription returns the embedded description for a tool key, or
// "" when no description file exists.
func ToolDescription(toolKey string) string {
	key := strings.TrimSuffix(strings.TrimSpace(toolKey), ".txt")
	if key == "" {
		return ""
	}
	b, err := toolDescFS.ReadFile(fmt.Sprintf("%s.txt", key))
	if err != nil {
		return ""
	}
	return string(b)
}
