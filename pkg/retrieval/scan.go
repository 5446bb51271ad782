package retrieval

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"codepilot/pkg/logx"
)

// skipDirs are directories never worth indexing.
var skipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "__pycache__": {},
	".venv": {}, "venv": {}, "dist": {}, "build": {}, ".idea": {},
	".vscode": {}, ".pytest_cache": {}, ".mypy_cache": {},
}

const (
	// maxFileSize guards the walk against generated blobs.
	maxFileSize = 1 << 20

	// maxDocLines caps chunk content so embedding payloads stay bounded.
	// Start/end lines still reflect the full symbol extent.
	maxDocLines = 200
)

// declPattern matches top-level function and class declarations in
// Python, JavaScript and TypeScript sources.
var declPattern = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?(def|class|func|function)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// ScanStats summarizes one scan pass.
type ScanStats struct {
	Files     int
	Functions int
	Classes   int
	Errors    []string
}

// Scanner extracts top-level functions and classes from a source tree
// into retrieval documents. Go files are parsed with go/ast; Python and
// JavaScript/TypeScript files with a line-level declaration regex.
type Scanner struct {
	logger *logx.Logger
}

// NewScanner creates a scanner.
func NewScanner(logger *logx.Logger) *Scanner {
	if logger == nil {
		logger = logx.NewLogger("scanner")
	}
	return &Scanner{logger: logger}
}

// Scan walks root and returns one document per extracted symbol, with
// file paths relative to root. Files that fail to parse are recorded in
// the stats and skipped, not fatal.
func (s *Scanner) Scan(root string) ([]Document, ScanStats, error) {
	var docs []Document
	var stats ScanStats

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		switch ext {
		case ".go", ".py", ".js", ".jsx", ".ts", ".tsx":
		default:
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		src, err := os.ReadFile(path)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		var fileDocs []Document
		if ext == ".go" {
			fileDocs, err = scanGoFile(path, rel, src)
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", rel, err))
				return nil
			}
		} else {
			fileDocs = scanTextFile(rel, src)
		}

		stats.Files++
		for _, doc := range fileDocs {
			if doc.Kind == KindClass {
				stats.Classes++
			} else {
				stats.Functions++
			}
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if walkErr != nil {
		return nil, stats, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	s.logger.Info("scanned %d files: %d functions, %d classes, %d errors",
		stats.Files, stats.Functions, stats.Classes, len(stats.Errors))
	return docs, stats, nil
}

// scanGoFile extracts top-level funcs and type declarations.
func scanGoFile(path, rel string, src []byte) ([]Document, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(src), "\n")
	var docs []Document

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			start := fset.Position(d.Pos()).Line
			end := fset.Position(d.End()).Line
			docs = append(docs, makeChunk(rel, d.Name.Name, KindFunction, start, end, lines))
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				start := fset.Position(spec.Pos()).Line
				end := fset.Position(spec.End()).Line
				docs = append(docs, makeChunk(rel, ts.Name.Name, KindClass, start, end, lines))
			}
		}
	}

	return docs, nil
}

// scanTextFile extracts declarations by regex. A symbol's chunk runs from
// its declaration line to the line before the next top-level declaration,
// trailing blank lines trimmed.
func scanTextFile(rel string, src []byte) []Document {
	lines := strings.Split(string(src), "\n")
	var docs []Document

	type pending struct {
		name, kind string
		start      int
	}
	var open *pending

	closeChunk := func(lastLine int) {
		if open == nil {
			return
		}
		for lastLine > open.start && strings.TrimSpace(lines[lastLine-1]) == "" {
			lastLine--
		}
		docs = append(docs, makeChunk(rel, open.name, open.kind, open.start, lastLine, lines))
		open = nil
	}

	for i, line := range lines {
		m := declPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		closeChunk(i)
		kind := KindFunction
		if m[1] == "class" {
			kind = KindClass
		}
		open = &pending{name: m[2], kind: kind, start: i + 1}
	}
	closeChunk(len(lines))

	return docs
}

func makeChunk(file, symbol, kind string, start, end int, lines []string) Document {
	if end > len(lines) {
		end = len(lines)
	}
	content := lines[start-1 : end]
	if len(content) > maxDocLines {
		content = content[:maxDocLines]
	}
	return Document{
		Content:   strings.Join(content, "\n"),
		File:      file,
		Symbol:    symbol,
		Kind:      kind,
		StartLine: start,
		EndLine:   end,
	}
}
