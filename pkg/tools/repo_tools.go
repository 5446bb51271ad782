package tools

import (
	"context"
	"fmt"
	"strings"

	"codepilot/pkg/workspace"
)

// CloneRepositoryTool clones a public GitHub repository into a session
// directory under the repos root.
type CloneRepositoryTool struct {
	manager *workspace.Manager
}

// NewCloneRepositoryTool creates a clone_repository tool.
func NewCloneRepositoryTool(manager *workspace.Manager) *CloneRepositoryTool {
	return &CloneRepositoryTool{manager: manager}
}

// Name returns the tool name.
func (t *CloneRepositoryTool) Name() string {
	return ToolCloneRepository
}

// Definition returns the tool definition for the LLM.
func (t *CloneRepositoryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCloneRepository,
		Description: "Clones a public GitHub repository (latest commit only) into a session directory for exploration. Returns the local path to use with other tools.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"url": {
					Type:        "string",
					Description: "GitHub repository URL, e.g. https://github.com/user/repo",
				},
			},
			Required: []string{"url"},
		},
	}
}

// Exec clones the repository and summarizes what arrived.
func (t *CloneRepositoryTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	repo, err := t.manager.Clone(ctx, url)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	summary := ""
	if info, infoErr := t.manager.Info(repo.Dir); infoErr == nil {
		summary = formatRepoSummary(info)
	}

	return textResult("Successfully cloned '%s' into '%s'.%s", repo.URL, repo.Dir, summary), nil
}

func formatRepoSummary(info *workspace.RepoInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\nFiles: %d", info.TotalFiles)
	if len(info.Languages) > 0 {
		fmt.Fprintf(&b, "\nLanguages: %s", strings.Join(info.Languages, ", "))
	}
	return b.String()
}

// CleanupRepositoryTool removes a previously cloned repository session.
type CleanupRepositoryTool struct {
	manager *workspace.Manager
}

// NewCleanupRepositoryTool creates a cleanup_repository tool.
func NewCleanupRepositoryTool(manager *workspace.Manager) *CleanupRepositoryTool {
	return &CleanupRepositoryTool{manager: manager}
}

// Name returns the tool name.
func (t *CleanupRepositoryTool) Name() string {
	return ToolCleanupRepository
}

// Definition returns the tool definition for the LLM.
func (t *CleanupRepositoryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCleanupRepository,
		Description: "Removes a repository directory previously created by clone_repository. Only paths under the repository session root can be removed.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "The cloned repository path returned by clone_repository",
				},
			},
			Required: []string{"path"},
		},
	}
}

// Exec removes the session directory.
func (t *CleanupRepositoryTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	if err := t.manager.Cleanup(path); err != nil {
		return errorResult("Error: %v", err), nil
	}
	return textResult("Successfully removed cloned repository '%s'.", path), nil
}
