package tools

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// WriteFileTool writes content to workspace files, creating parent
// directories as needed.
type WriteFileTool struct {
	workDir string
}

// NewWriteFileTool creates a write_file tool rooted at workDir.
func NewWriteFileTool(workDir string) *WriteFileTool {
	return &WriteFileTool{workDir: workDir}
}

// Name returns the tool name.
func (t *WriteFileTool) Name() string {
	return ToolWriteFile
}

// Definition returns the tool definition for the LLM.
func (t *WriteFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Writes content to a file at the specified path. Creates the file if it doesn't exist, overwrites if it does. Use this when you need to create or modify files.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "The file path to write to, relative to the workspace root",
				},
				"content": {
					Type:        "string",
					Description: "The content to write to the file",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

// Exec writes the content and reports how many characters landed.
func (t *WriteFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}
	content, ok := args["content"].(string)
	if !ok {
		return errorResult("Error: content is required and must be a string"), nil
	}

	full, err := resolveWorkspacePath(t.workDir, path)
	if err != nil {
		return errorResult("Error: %v.", err), nil
	}

	if dir := filepath.Dir(full); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errorResult("Error writing to file '%s': %v", path, err), nil
		}
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		if os.IsPermission(err) {
			return errorResult("Error: Permission denied to write to '%s'.", path), nil
		}
		return errorResult("Error writing to file '%s': %v", path, err), nil
	}

	return textResult("Successfully wrote %d characters to '%s'.", utf8.RuneCountInString(content), path), nil
}
