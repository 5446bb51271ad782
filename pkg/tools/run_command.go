package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codepilot/pkg/exec"
)

// defaultCommandTimeout bounds run_command when the model gives no timeout.
const defaultCommandTimeout = 30 * time.Second

// RunCommandTool executes shell commands in the workspace.
type RunCommandTool struct {
	shell   *exec.Shell
	workDir string
}

// NewRunCommandTool creates a run_command tool executing in workDir.
func NewRunCommandTool(executor exec.Executor, workDir string) *RunCommandTool {
	return &RunCommandTool{shell: exec.NewShell(executor), workDir: workDir}
}

// Name returns the tool name.
func (t *RunCommandTool) Name() string {
	return ToolRunCommand
}

// Definition returns the tool definition for the LLM.
func (t *RunCommandTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolRunCommand,
		Description: "Executes a shell command in the workspace. Use this for running scripts, installing packages, or executing system commands.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"command": {
					Type:        "string",
					Description: "The shell command to execute",
				},
				"timeout_secs": {
					Type:        "integer",
					Description: "Maximum seconds to let the command run. Defaults to 30.",
				},
			},
			Required: []string{"command"},
		},
	}
}

// Exec runs the command and formats stdout/stderr with the exit status.
func (t *RunCommandTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	timeoutSecs := intArgOrDefault(args, "timeout_secs", int(defaultCommandTimeout.Seconds()))
	timeout := time.Duration(timeoutSecs) * time.Second

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, runErr := t.shell.Run(runCtx, command, t.workDir, timeout)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return errorResult("Error: Command '%s' timed out after %d seconds.", command, timeoutSecs), nil
	}
	if runErr != nil {
		return errorResult("Error executing command '%s': %v", command, runErr), nil
	}

	return &ExecResult{
		Content: formatRunResult(fmt.Sprintf("Command '%s'", command), result),
		IsError: result.ExitCode != 0,
	}, nil
}
