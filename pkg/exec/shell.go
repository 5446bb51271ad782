package exec

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Shell runs command strings through an Executor by wrapping them in
// `sh -c`. Tools that accept free-form command text use this instead of
// building argv slices themselves.
type Shell struct {
	executor Executor
}

// NewShell creates a shell runner backed by the given executor.
func NewShell(executor Executor) *Shell {
	return &Shell{executor: executor}
}

// Run executes a shell command string in workDir. A timeout of zero
// falls back to the executor default.
func (s *Shell) Run(ctx context.Context, command, workDir string, timeout time.Duration) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, fmt.Errorf("command cannot be empty")
	}

	opts := DefaultOpts()
	opts.WorkDir = workDir
	if timeout > 0 {
		opts.Timeout = timeout
	}

	return s.executor.Run(ctx, []string{"sh", "-c", command}, &opts)
}

// Executor returns the underlying executor (useful for testing).
func (s *Shell) Executor() Executor {
	return s.executor
}
