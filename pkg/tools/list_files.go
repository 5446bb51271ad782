package tools

import (
	"context"
	"os"
	"strings"
)

// listSkipDirs are entries list_files never reports.
var listSkipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "__pycache__": {},
	".venv": {}, "venv": {}, "dist": {}, "build": {},
}

// ListFilesTool lists directory entries in the workspace.
type ListFilesTool struct {
	workDir string
}

// NewListFilesTool creates a list_files tool rooted at workDir.
func NewListFilesTool(workDir string) *ListFilesTool {
	return &ListFilesTool{workDir: workDir}
}

// Name returns the tool name.
func (t *ListFilesTool) Name() string {
	return ToolListFiles
}

// Definition returns the tool definition for the LLM.
func (t *ListFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListFiles,
		Description: "Lists the entries of a workspace directory. Directories are suffixed with '/'. Use this to explore what files exist.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Directory to list, relative to the workspace root. Defaults to the root.",
				},
			},
		},
	}
}

// Exec lists the directory, one entry per line, dirs suffixed with "/".
func (t *ListFilesTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path := optionalStringArg(args, "path", ".")

	full, err := resolveWorkspacePath(t.workDir, path)
	if err != nil {
		return errorResult("Error: %v.", err), nil
	}

	entries, err := os.ReadDir(full)
	switch {
	case os.IsNotExist(err):
		return errorResult("Error: Directory '%s' not found.", path), nil
	case err != nil:
		return errorResult("Error listing '%s': %v", path, err), nil
	}

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if _, skip := listSkipDirs[name]; skip {
				continue
			}
			lines = append(lines, name+"/")
			continue
		}
		lines = append(lines, name)
	}

	if len(lines) == 0 {
		return textResult("Directory '%s' is empty.", path), nil
	}
	return textResult("%s", strings.Join(lines, "\n")), nil
}
