package tools

import (
	"context"
	"strings"
	"time"

	execpkg "codepilot/pkg/exec"
)

// vcsStatusTimeout bounds the status call.
const vcsStatusTimeout = 10 * time.Second

// VCSStatusTool reports the version control status of the workspace.
type VCSStatusTool struct {
	executor execpkg.Executor
	workDir  string
}

// NewVCSStatusTool creates a vcs_status tool for workDir.
func NewVCSStatusTool(executor execpkg.Executor, workDir string) *VCSStatusTool {
	return &VCSStatusTool{executor: executor, workDir: workDir}
}

// Name returns the tool name.
func (t *VCSStatusTool) Name() string {
	return ToolVCSStatus
}

// Definition returns the tool definition for the LLM.
func (t *VCSStatusTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolVCSStatus,
		Description: "Shows which workspace files are modified, added, or untracked according to version control.",
		InputSchema: InputSchema{Type: "object"},
	}
}

// Exec runs `git status --porcelain` in the workspace.
func (t *VCSStatusTool) Exec(ctx context.Context, _ map[string]any) (*ExecResult, error) {
	result, err := t.executor.Run(ctx, []string{"git", "status", "--porcelain"}, &execpkg.Opts{
		WorkDir: t.workDir,
		Timeout: vcsStatusTimeout,
	})
	if err != nil {
		return errorResult("Error: git status failed: %v", err), nil
	}
	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		return errorResult("Error: git status failed (exit code %d): %s", result.ExitCode, detail), nil
	}

	status := strings.TrimRight(result.Stdout, "\n")
	if strings.TrimSpace(status) == "" {
		return textResult("Working tree clean."), nil
	}
	return textResult("%s", status), nil
}
