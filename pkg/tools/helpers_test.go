package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codepilot/pkg/exec"
	"codepilot/pkg/retrieval"
	"codepilot/pkg/sandbox"
	"codepilot/pkg/workspace"
)

// axisEmbedder maps each known token to its own vector axis so similarity
// outcomes are predictable without a real embedding backend.
type axisEmbedder struct {
	vocab map[string]int
}

func newAxisEmbedder(words ...string) *axisEmbedder {
	m := make(map[string]int, len(words))
	for i, w := range words {
		m[w] = i
	}
	return &axisEmbedder{vocab: m}
}

func (e *axisEmbedder) embed(text string) []float32 {
	vec := make([]float32, len(e.vocab)+1)
	for _, tok := range retrieval.Tokenize(text) {
		if i, ok := e.vocab[tok]; ok {
			vec[i]++
		} else {
			vec[len(e.vocab)]++
		}
	}
	var sum float32
	for _, v := range vec {
		sum += v
	}
	if sum == 0 {
		vec[len(e.vocab)] = 1
	}
	return vec
}

func (e *axisEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func testRetrievalEngine(t *testing.T) *retrieval.Engine {
	t.Helper()
	embedder := newAxisEmbedder("parse", "config", "values", "render", "template", "output", "merge", "sorted", "lists")
	engine := retrieval.NewEngine(embedder, retrieval.FusionConfig{}, nil)

	_, err := engine.Index(context.Background(), []retrieval.Document{
		{Content: "func parseConfig reads config values from disk", File: "config.go", Symbol: "parseConfig", Kind: retrieval.KindFunction, StartLine: 10, EndLine: 30},
		{Content: "func renderTemplate writes template output", File: "render.go", Symbol: "renderTemplate", Kind: retrieval.KindFunction, StartLine: 5, EndLine: 25},
		{Content: "func mergeSortedLists merges sorted lists", File: "merge.go", Symbol: "mergeSortedLists", Kind: retrieval.KindFunction, StartLine: 1, EndLine: 40},
	})
	require.NoError(t, err)
	return engine
}

func testAgentContext(t *testing.T) AgentContext {
	t.Helper()
	executor := exec.NewLocalExec()

	sandboxMgr, err := sandbox.NewManager(executor, sandbox.Config{
		TempRoot:    t.TempDir(),
		Interpreter: "sh",
		Timeout:     10 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sandboxMgr.Close() })

	workspaceMgr, err := workspace.NewManager(t.TempDir(), executor, nil)
	require.NoError(t, err)

	return AgentContext{
		Executor:  executor,
		WorkDir:   t.TempDir(),
		Retrieval: testRetrievalEngine(t),
		Sandbox:   sandboxMgr,
		Workspace: workspaceMgr,
	}
}
