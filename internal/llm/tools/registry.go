package tools

import (
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// BuildToolset wires the workspace exploration tools for a session. The
// returned tools resolve paths against the base root configured via
// SetBaseRootForSession / SetBaseRoot.
func BuildToolset() ([]tool.BaseTool, error) {
	lsDesc := ToolDescription("list_directory_tool")
	if strings.TrimSpace(lsDesc) == "" {
		lsDesc = "lists the contents of a directory"
	}
	listDirectoryTool, err := utils.InferTool("list_directory_tool", lsDesc, ListDirectory)
	if err != nil {
		return nil, err
	}

	rfDesc := ToolDescription("read_file_tool")
	if strings.TrimSpace(rfDesc) == "" {
		rfDesc = "reads the contents of a file"
	}
	readFileTool, err := utils.InferTool("read_file_tool", rfDesc, ReadFile)
	if err != nil {
		return nil, err
	}

	globDesc := ToolDescription("glob_tool")
	if strings.TrimSpace(globDesc) == "" {
		globDesc = "find files by glob pattern"
	}
	globTool, err := utils.InferTool("glob_tool", globDesc, Glob)
	if err != nil {
		return nil, err
	}

	return []tool.BaseTool{listDirectoryTool, readFileTool, globTool}, nil
}
