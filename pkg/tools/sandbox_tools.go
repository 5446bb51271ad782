package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"codepilot/pkg/sandbox"
)

// UploadToSandboxTool copies a workspace file into the sandbox session.
type UploadToSandboxTool struct {
	manager *sandbox.Manager
	workDir string
}

// NewUploadToSandboxTool creates an upload_to_sandbox tool.
func NewUploadToSandboxTool(manager *sandbox.Manager, workDir string) *UploadToSandboxTool {
	return &UploadToSandboxTool{manager: manager, workDir: workDir}
}

// Name returns the tool name.
func (t *UploadToSandboxTool) Name() string {
	return ToolUploadToSandbox
}

// Definition returns the tool definition for the LLM.
func (t *UploadToSandboxTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolUploadToSandbox,
		Description: "Copies a workspace file into the sandbox session so it can be executed or tested in isolation. The session is created automatically on first use.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Workspace file to upload, relative to the workspace root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// Exec reads the workspace file and writes it into the session under the
// same relative path.
func (t *UploadToSandboxTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	full, err := resolveWorkspacePath(t.workDir, path)
	if err != nil {
		return errorResult("Error: %v.", err), nil
	}

	content, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return errorResult("Error: File '%s' not found.", path), nil
	}
	if err != nil {
		return errorResult("Error reading file '%s': %v", path, err), nil
	}

	rel, err := filepath.Rel(t.workDir, full)
	if err != nil {
		rel = filepath.Base(full)
	}

	dest, err := t.manager.Upload(rel, content)
	if err != nil {
		return errorResult("Error uploading '%s' to sandbox: %v", path, err), nil
	}

	return textResult("Successfully uploaded '%s' to the sandbox as '%s' (%d characters).",
		path, dest, utf8.RuneCount(content)), nil
}

// ExecuteInSandboxTool runs a code snippet inside the sandbox session.
type ExecuteInSandboxTool struct {
	manager *sandbox.Manager
}

// NewExecuteInSandboxTool creates an execute_in_sandbox tool.
func NewExecuteInSandboxTool(manager *sandbox.Manager) *ExecuteInSandboxTool {
	return &ExecuteInSandboxTool{manager: manager}
}

// Name returns the tool name.
func (t *ExecuteInSandboxTool) Name() string {
	return ToolExecuteInSandbox
}

// Definition returns the tool definition for the LLM.
func (t *ExecuteInSandboxTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolExecuteInSandbox,
		Description: "Executes a code snippet inside the isolated sandbox session and returns its output. The session is created automatically on first use.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"code": {
					Type:        "string",
					Description: "The code to execute",
				},
			},
			Required: []string{"code"},
		},
	}
}

// Exec runs the snippet through the session interpreter.
func (t *ExecuteInSandboxTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	code, err := stringArg(args, "code")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	result, err := t.manager.ExecuteCode(ctx, code)
	if err != nil {
		return errorResult("Error executing code in sandbox: %v", err), nil
	}

	return &ExecResult{
		Content: formatRunResult("Sandbox code execution", result),
		IsError: result.ExitCode != 0,
	}, nil
}

// RunCommandInSandboxTool runs a shell command inside the sandbox session.
type RunCommandInSandboxTool struct {
	manager *sandbox.Manager
}

// NewRunCommandInSandboxTool creates a run_command_in_sandbox tool.
func NewRunCommandInSandboxTool(manager *sandbox.Manager) *RunCommandInSandboxTool {
	return &RunCommandInSandboxTool{manager: manager}
}

// Name returns the tool name.
func (t *RunCommandInSandboxTool) Name() string {
	return ToolRunCommandInSandbox
}

// Definition returns the tool definition for the LLM.
func (t *RunCommandInSandboxTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolRunCommandInSandbox,
		Description: "Runs a shell command inside the isolated sandbox session (e.g. running uploaded tests). The session is created automatically on first use.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"command": {
					Type:        "string",
					Description: "The shell command to execute in the sandbox",
				},
			},
			Required: []string{"command"},
		},
	}
}

// Exec runs the command in the session directory.
func (t *RunCommandInSandboxTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	result, err := t.manager.RunCommand(ctx, command)
	if err != nil {
		return errorResult("Error running command in sandbox: %v", err), nil
	}

	return &ExecResult{
		Content: formatRunResult(fmt.Sprintf("Sandbox command '%s'", command), result),
		IsError: result.ExitCode != 0,
	}, nil
}
