// Package workspace manages repositories cloned for assistant sessions.
// Clones land in session-unique directories under <workdir>/repos, and
// cleanup refuses to touch anything outside that root.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"codepilot/pkg/exec"
	"codepilot/pkg/logx"
)

// CloneTimeout bounds a single git clone.
const CloneTimeout = 120 * time.Second

// repoURLPattern recognizes GitHub repository URLs, with or without scheme
// and .git suffix, anywhere inside a larger string.
var repoURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?github\.com/([a-zA-Z0-9_-]+)/([a-zA-Z0-9_.-]+)`)

// Repo describes one cloned repository session.
type Repo struct {
	Name string
	URL  string
	Dir  string
}

// RepoInfo summarizes the contents of a cloned repository.
type RepoInfo struct {
	Path       string
	Name       string
	Files      []string
	TotalFiles int
	Languages  []string
}

// Manager clones repositories into a session-scoped root and removes them
// again when the session is done.
type Manager struct {
	reposRoot string
	executor  exec.Executor
	logger    *logx.Logger
}

// NewManager creates a workspace manager rooted at <workDir>/repos.
func NewManager(workDir string, executor exec.Executor, logger *logx.Logger) (*Manager, error) {
	if executor == nil {
		return nil, errors.New("workspace: executor is required")
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	root, err := filepath.Abs(filepath.Join(workDir, "repos"))
	if err != nil {
		return nil, fmt.Errorf("resolving repos root: %w", err)
	}
	if logger == nil {
		logger = logx.NewLogger("workspace")
	}

	return &Manager{
		reposRoot: root,
		executor:  executor,
		logger:    logger,
	}, nil
}

// Root returns the directory all clones live under.
func (m *Manager) Root() string {
	return m.reposRoot
}

// NormalizeRepoURL extracts a GitHub repository URL from text and returns it
// in canonical https .git form. Returns false when no repository URL is
// present.
func NormalizeRepoURL(text string) (string, bool) {
	match := repoURLPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	user := match[1]
	repo := strings.TrimSuffix(match[2], ".git")
	if repo == "" {
		return "", false
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", user, repo), true
}

// RepoName returns the repository name component of a normalized URL.
func RepoName(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}

// Clone fetches the repository at url (depth 1) into a fresh session
// directory named <repo>_<id> under the repos root. A failed clone leaves no
// directory behind.
func (m *Manager) Clone(ctx context.Context, url string) (*Repo, error) {
	normalized, ok := NormalizeRepoURL(url)
	if !ok {
		return nil, fmt.Errorf("workspace: %q is not a recognized repository URL (expected github.com/user/repo)", url)
	}

	name := RepoName(normalized)
	sessionID := uuid.New().String()[:8]
	dir := filepath.Join(m.reposRoot, name+"_"+sessionID)

	if err := os.MkdirAll(m.reposRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating repos root: %w", err)
	}

	m.logger.Info("Cloning %s into %s", normalized, dir)
	result, err := m.executor.Run(ctx, []string{"git", "clone", "--depth", "1", normalized, dir}, &exec.Opts{
		Timeout: CloneTimeout,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("clone failed: %w", err)
	}
	if result.ExitCode != 0 {
		_ = os.RemoveAll(dir)
		stderr := strings.TrimSpace(result.Stderr)
		if stderr == "" {
			stderr = "unknown error during clone"
		}
		return nil, fmt.Errorf("clone failed (exit code %d): %s", result.ExitCode, stderr)
	}

	return &Repo{Name: name, URL: normalized, Dir: dir}, nil
}

// Cleanup removes a previously cloned session directory. Paths outside the
// repos root, and the root itself, are refused.
func (m *Manager) Cleanup(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", path, err)
	}

	rel, err := filepath.Rel(m.reposRoot, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("workspace: refusing to remove %q: outside the repos root %s", path, m.reposRoot)
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("removing %s: %w", abs, err)
	}
	m.logger.Info("Removed cloned repository %s", abs)
	return nil
}

// extLanguages maps file extensions to the language reported by Info.
var extLanguages = map[string]string{
	".py": "Python", ".js": "JavaScript", ".ts": "TypeScript",
	".tsx": "TypeScript", ".jsx": "JavaScript", ".java": "Java",
	".go": "Go", ".rs": "Rust", ".cpp": "C++", ".c": "C", ".h": "C/C++",
	".rb": "Ruby", ".php": "PHP", ".swift": "Swift", ".kt": "Kotlin",
	".cs": "C#", ".html": "HTML", ".css": "CSS", ".scss": "SCSS",
	".md": "Markdown", ".json": "JSON", ".yaml": "YAML", ".yml": "YAML",
}

// infoSkipDirs are never walked by Info.
var infoSkipDirs = map[string]struct{}{
	"node_modules": {}, "venv": {}, "__pycache__": {}, "dist": {}, "build": {},
}

// Info walks a cloned repository and reports its file list and the languages
// present, skipping hidden and dependency directories.
func (m *Manager) Info(repoPath string) (*RepoInfo, error) {
	info := &RepoInfo{
		Path: repoPath,
		Name: sessionRepoName(filepath.Base(repoPath)),
	}
	languages := make(map[string]struct{})

	err := filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == repoPath {
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := infoSkipDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		info.TotalFiles++
		if lang, ok := extLanguages[strings.ToLower(filepath.Ext(name))]; ok {
			languages[lang] = struct{}{}
		}
		if rel, relErr := filepath.Rel(repoPath, path); relErr == nil {
			info.Files = append(info.Files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", repoPath, err)
	}

	for lang := range languages {
		info.Languages = append(info.Languages, lang)
	}
	sort.Strings(info.Languages)
	return info, nil
}

// sessionRepoName strips the _<sessionID> suffix a clone directory carries.
func sessionRepoName(base string) string {
	if i := strings.LastIndex(base, "_"); i > 0 {
		return base[:i]
	}
	return base
}
