// Package tools provides the executable capabilities agents use during a
// run: workspace file access, hybrid code search, command execution, sandbox
// sessions and repository management. A Registry maps tool names to
// factories; a Provider is the role-filtered view handed to an agent loop.
package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"codepilot/pkg/exec"
)

// Tool is one executable capability exposed to the model.
type Tool interface {
	// Name returns the registry name of the tool.
	Name() string

	// Definition describes the tool and its argument schema to the
	// inference provider.
	Definition() ToolDefinition

	// Exec runs the tool. Expected failures (missing file, failed command,
	// rejected path) come back as an ExecResult with IsError set and the
	// message in Content, so the agent can read and react. The error
	// return is reserved for faults in the tool machinery itself.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// ToolDefinition describes a tool to the inference provider.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is a JSON Schema object describing tool arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single tool argument.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ExecResult is the outcome of one tool execution.
type ExecResult struct {
	Content string
	IsError bool
}

// textResult builds a success result.
func textResult(format string, args ...any) *ExecResult {
	return &ExecResult{Content: fmt.Sprintf(format, args...)}
}

// errorResult builds an error result the agent can react to.
func errorResult(format string, args ...any) *ExecResult {
	return &ExecResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required and must be a string", key)
	}
	return v, nil
}

// optionalStringArg extracts a string argument, returning defaultVal when
// missing or empty.
func optionalStringArg(args map[string]any, key, defaultVal string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

// intArgOrDefault extracts an integer argument, returning defaultVal if
// missing or invalid. Handles float64 (from JSON unmarshal), int, and int64.
func intArgOrDefault(args map[string]any, key string, defaultVal int) int {
	v, exists := args[key]
	if !exists {
		return defaultVal
	}
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	default:
		return defaultVal
	}
	if n < 1 {
		return defaultVal
	}
	return n
}

// resolveWorkspacePath joins path with the workspace root and rejects
// anything that resolves outside it. Absolute paths are accepted only when
// they already point inside the root.
func resolveWorkspacePath(root, path string) (string, error) {
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' is outside the workspace root", path)
	}
	return p, nil
}

// formatRunResult renders a command outcome the way agents expect to read
// it: a status line, then stdout and stderr sections when present.
func formatRunResult(label string, result exec.Result) string {
	status := "succeeded"
	if result.ExitCode != 0 {
		status = fmt.Sprintf("failed (exit code %d)", result.ExitCode)
	}

	parts := []string{fmt.Sprintf("%s %s.", label, status)}
	if result.Stdout != "" {
		parts = append(parts, "Output:\n"+result.Stdout)
	}
	if result.Stderr != "" {
		parts = append(parts, "Errors:\n"+result.Stderr)
	}
	return strings.Join(parts, "\n\n")
}
