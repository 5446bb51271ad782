package tools

import (
	"context"
	"fmt"
	"os"
)

// maxReadBytes caps how much file content one read returns.
const maxReadBytes = 1 << 20

// ReadFileTool reads file contents from the workspace.
type ReadFileTool struct {
	workDir string
}

// NewReadFileTool creates a read_file tool rooted at workDir.
func NewReadFileTool(workDir string) *ReadFileTool {
	return &ReadFileTool{workDir: workDir}
}

// Name returns the tool name.
func (t *ReadFileTool) Name() string {
	return ToolReadFile
}

// Definition returns the tool definition for the LLM.
func (t *ReadFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Reads the contents of a file at the specified path. Use this when you need to view or analyze file contents.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "The file path to read, relative to the workspace root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// Exec reads the file and returns its contents.
func (t *ReadFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	full, err := resolveWorkspacePath(t.workDir, path)
	if err != nil {
		return errorResult("Error: %v.", err), nil
	}

	content, err := os.ReadFile(full)
	switch {
	case os.IsNotExist(err):
		return errorResult("Error: File '%s' not found.", path), nil
	case os.IsPermission(err):
		return errorResult("Error: Permission denied to read file '%s'.", path), nil
	case err != nil:
		return errorResult("Error reading file '%s': %v", path, err), nil
	}

	text := string(content)
	truncated := ""
	if len(text) > maxReadBytes {
		text = text[:maxReadBytes]
		truncated = fmt.Sprintf("\n\n... (truncated at %d bytes)", maxReadBytes)
	}

	return textResult("Successfully read file '%s':\n\n%s%s", path, text, truncated), nil
}
