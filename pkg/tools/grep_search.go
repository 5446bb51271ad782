package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxGrepMatches   = 100
	maxGrepFileSize  = 1 << 20
	maxGrepLineWidth = 500
)

// grepSkipDirs are never searched.
var grepSkipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "__pycache__": {},
	".venv": {}, "venv": {}, "dist": {}, "build": {},
}

// GrepSearchTool scans workspace files for lines matching a regular
// expression.
type GrepSearchTool struct {
	workDir string
}

// NewGrepSearchTool creates a grep_search tool rooted at workDir.
func NewGrepSearchTool(workDir string) *GrepSearchTool {
	return &GrepSearchTool{workDir: workDir}
}

// Name returns the tool name.
func (t *GrepSearchTool) Name() string {
	return ToolGrepSearch
}

// Definition returns the tool definition for the LLM.
func (t *GrepSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGrepSearch,
		Description: "Searches workspace files line by line for a regular expression and returns 'file:line: text' matches. Use this to find exact strings or patterns.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"pattern": {
					Type:        "string",
					Description: "Go regular expression to search for",
				},
				"path": {
					Type:        "string",
					Description: "File or directory to search, relative to the workspace root. Defaults to the whole workspace.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

// Exec walks the search root and reports matching lines, capped at
// maxGrepMatches.
func (t *GrepSearchTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errorResult("Error: invalid pattern '%s': %v", pattern, err), nil
	}

	path := optionalStringArg(args, "path", ".")
	root, err := resolveWorkspacePath(t.workDir, path)
	if err != nil {
		return errorResult("Error: %v.", err), nil
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return errorResult("Error: '%s' not found.", path), nil
	}

	var matches []string
	capped := false

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, skip := grepSkipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if info, infoErr := d.Info(); infoErr != nil || info.Size() > maxGrepFileSize {
			return nil
		}

		rel, relErr := filepath.Rel(t.workDir, p)
		if relErr != nil {
			rel = p
		}

		fileMatches, scanErr := grepFile(p, rel, re, maxGrepMatches-len(matches))
		if scanErr != nil {
			return nil
		}
		matches = append(matches, fileMatches...)
		if len(matches) >= maxGrepMatches {
			capped = true
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return errorResult("Error searching '%s': %v", path, walkErr), nil
	}

	if len(matches) == 0 {
		return textResult("No matches found for '%s'.", pattern), nil
	}

	out := strings.Join(matches, "\n")
	if capped {
		out += fmt.Sprintf("\n... (capped at %d matches)", maxGrepMatches)
	}
	return textResult("%s", out), nil
}

// grepFile scans one file, skipping binary content, and returns up to limit
// formatted matches.
func grepFile(path, rel string, re *regexp.Regexp, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxGrepFileSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 && strings.ContainsRune(line, '\x00') {
			return nil, nil
		}
		if !re.MatchString(line) {
			continue
		}
		if len(line) > maxGrepLineWidth {
			line = line[:maxGrepLineWidth] + "..."
		}
		matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, lineNo, strings.TrimRight(line, "\r")))
		if len(matches) >= limit {
			break
		}
	}
	return matches, scanner.Err()
}
