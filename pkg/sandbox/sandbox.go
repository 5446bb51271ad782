// Package sandbox provides session-scoped working directories for tool-driven
// code execution. Each session gets a private directory under the temp root;
// code snippets and commands run inside it through the exec.Executor
// abstraction, and closing the session removes the directory.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codepilot/pkg/exec"
	"codepilot/pkg/logx"
)

// DefaultTimeout bounds a single execute or command run inside a session.
const DefaultTimeout = 30 * time.Second

// DefaultInterpreter runs code snippets when none is configured.
const DefaultInterpreter = "python3"

// Config controls where sessions live and how snippets run.
type Config struct {
	// TempRoot is the parent directory for session dirs. Defaults to the
	// system temp directory.
	TempRoot string

	// Interpreter executes code snippets (e.g. python3, node, sh).
	Interpreter string

	// Timeout bounds each execute/run call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Session is one isolated execution directory.
type Session struct {
	ID  string
	Dir string
}

// Manager owns at most one active session at a time. Execution methods
// create the session on first use, mirroring how the tools expect to call
// into a sandbox without an explicit setup step.
type Manager struct {
	executor exec.Executor
	shell    *exec.Shell
	cfg      Config
	logger   *logx.Logger

	mu      sync.Mutex
	session *Session
	seq     int
}

// NewManager creates a sandbox manager running over the given executor.
func NewManager(executor exec.Executor, cfg Config, logger *logx.Logger) (*Manager, error) {
	if executor == nil {
		return nil, errors.New("sandbox: executor is required")
	}
	if cfg.TempRoot == "" {
		cfg.TempRoot = os.TempDir()
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = DefaultInterpreter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logx.NewLogger("sandbox")
	}

	return &Manager{
		executor: executor,
		shell:    exec.NewShell(executor),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Create opens a session, or returns the one already open.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked()
}

// Session returns the active session, or nil when none is open.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) ensureLocked() (*Session, error) {
	if m.session != nil {
		return m.session, nil
	}

	id := uuid.New().String()[:8]
	dir := filepath.Join(m.cfg.TempRoot, "sandbox-"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sandbox directory: %w", err)
	}

	m.session = &Session{ID: id, Dir: dir}
	m.seq = 0
	m.logger.Info("Sandbox session %s created at %s", id, dir)
	return m.session, nil
}

// Upload writes content into the session directory under the given relative
// name, creating the session if needed. Returns the absolute destination path.
func (m *Manager) Upload(name string, content []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("sandbox: upload name is empty")
	}

	m.mu.Lock()
	sess, err := m.ensureLocked()
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("sandbox: upload path %q must be relative to the session directory", name)
	}
	dest := filepath.Join(sess.Dir, clean)
	if !strings.HasPrefix(dest, sess.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("sandbox: upload path %q escapes the session directory", name)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}

	m.logger.Debug("Uploaded %d bytes to %s", len(content), dest)
	return dest, nil
}

// ExecuteCode writes the snippet into the session directory and runs it with
// the configured interpreter, creating the session if needed.
func (m *Manager) ExecuteCode(ctx context.Context, code string) (exec.Result, error) {
	if strings.TrimSpace(code) == "" {
		return exec.Result{}, errors.New("sandbox: code is empty")
	}

	m.mu.Lock()
	sess, err := m.ensureLocked()
	if err != nil {
		m.mu.Unlock()
		return exec.Result{}, err
	}
	m.seq++
	name := fmt.Sprintf("snippet_%03d%s", m.seq, snippetExt(m.cfg.Interpreter))
	m.mu.Unlock()

	path := filepath.Join(sess.Dir, name)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return exec.Result{}, fmt.Errorf("writing snippet: %w", err)
	}

	return m.executor.Run(ctx, []string{m.cfg.Interpreter, path}, &exec.Opts{
		WorkDir: sess.Dir,
		Timeout: m.cfg.Timeout,
	})
}

// RunCommand runs a shell command inside the session directory, creating the
// session if needed.
func (m *Manager) RunCommand(ctx context.Context, command string) (exec.Result, error) {
	m.mu.Lock()
	sess, err := m.ensureLocked()
	m.mu.Unlock()
	if err != nil {
		return exec.Result{}, err
	}

	return m.shell.Run(ctx, command, sess.Dir, m.cfg.Timeout)
}

// Close removes the session directory. Closing with no open session is a
// no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}

	dir := m.session.Dir
	id := m.session.ID
	m.session = nil

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing sandbox directory: %w", err)
	}
	m.logger.Info("Sandbox session %s closed", id)
	return nil
}

func snippetExt(interpreter string) string {
	switch filepath.Base(interpreter) {
	case "python", "python3":
		return ".py"
	case "node":
		return ".js"
	case "bash", "sh":
		return ".sh"
	default:
		return ".txt"
	}
}
