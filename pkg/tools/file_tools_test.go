package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileReturnsContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("line one\nline two"), 0o644))
	tool := NewReadFileTool(dir)

	result, err := tool.Exec(context.Background(), map[string]any{"path": "notes.txt"})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Successfully read file 'notes.txt':\n\nline one\nline two", result.Content)
}

func TestReadFileMissing(t *testing.T) {
	tool := NewReadFileTool(t.TempDir())

	result, err := tool.Exec(context.Background(), map[string]any{"path": "nope.txt"})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: File 'nope.txt' not found.", result.Content)
}

func TestReadFileRejectsPathOutsideWorkspace(t *testing.T) {
	tool := NewReadFileTool(t.TempDir())

	for _, path := range []string{"../secrets.txt", "/etc/passwd", "a/../../up.txt"} {
		result, err := tool.Exec(context.Background(), map[string]any{"path": path})
		require.NoError(t, err)
		assert.True(t, result.IsError, "path %q", path)
		assert.Contains(t, result.Content, "outside the workspace root")
	}
}

func TestReadFileRequiresPath(t *testing.T) {
	tool := NewReadFileTool(t.TempDir())

	result, err := tool.Exec(context.Background(), map[string]any{})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "path is required")
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(dir)

	result, err := tool.Exec(context.Background(), map[string]any{
		"path":    "pkg/core/engine.go",
		"content": "package core",
	})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Successfully wrote 12 characters to 'pkg/core/engine.go'.", result.Content)

	written, err := os.ReadFile(filepath.Join(dir, "pkg", "core", "engine.go"))
	require.NoError(t, err)
	assert.Equal(t, "package core", string(written))
}

func TestWriteFileCountsCharactersNotBytes(t *testing.T) {
	tool := NewWriteFileTool(t.TempDir())

	result, err := tool.Exec(context.Background(), map[string]any{
		"path":    "greeting.txt",
		"content": "héllo", // 5 characters, 6 bytes
	})

	require.NoError(t, err)
	assert.Equal(t, "Successfully wrote 5 characters to 'greeting.txt'.", result.Content)
}

func TestWriteFileAllowsEmptyContent(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(dir)

	result, err := tool.Exec(context.Background(), map[string]any{
		"path":    "empty.txt",
		"content": "",
	})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Successfully wrote 0 characters to 'empty.txt'.", result.Content)
	assert.FileExists(t, filepath.Join(dir, "empty.txt"))
}

func TestWriteFileRejectsPathOutsideWorkspace(t *testing.T) {
	tool := NewWriteFileTool(t.TempDir())

	result, err := tool.Exec(context.Background(), map[string]any{
		"path":    "../escape.txt",
		"content": "x",
	})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "outside the workspace root")
}

func TestListFilesMarksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	tool := NewListFilesTool(dir)

	result, err := tool.Exec(context.Background(), map[string]any{})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "main.go\nsrc/", result.Content)
}

func TestListFilesSubdirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "app.py"), []byte("x = 1"), 0o644))
	tool := NewListFilesTool(dir)

	result, err := tool.Exec(context.Background(), map[string]any{"path": "src"})

	require.NoError(t, err)
	assert.Equal(t, "app.py", result.Content)
}

func TestListFilesMissingDirectory(t *testing.T) {
	tool := NewListFilesTool(t.TempDir())

	result, err := tool.Exec(context.Background(), map[string]any{"path": "nowhere"})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: Directory 'nowhere' not found.", result.Content)
}

func TestListFilesEmptyDirectory(t *testing.T) {
	tool := NewListFilesTool(t.TempDir())

	result, err := tool.Exec(context.Background(), map[string]any{})

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Directory '.' is empty.", result.Content)
}
