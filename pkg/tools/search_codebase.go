package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codepilot/pkg/retrieval"
)

const (
	defaultSearchTopK = 5
	maxSnippetLines   = 8
)

// SearchCodebaseTool runs hybrid retrieval queries against the indexed
// codebase.
type SearchCodebaseTool struct {
	engine *retrieval.Engine
}

// NewSearchCodebaseTool creates a search_codebase tool over the engine.
func NewSearchCodebaseTool(engine *retrieval.Engine) *SearchCodebaseTool {
	return &SearchCodebaseTool{engine: engine}
}

// Name returns the tool name.
func (t *SearchCodebaseTool) Name() string {
	return ToolSearchCodebase
}

// Definition returns the tool definition for the LLM.
func (t *SearchCodebaseTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolSearchCodebase,
		Description: "Searches the indexed codebase for functions and classes relevant to a query, combining keyword and semantic matching. Use this to locate code before reading files.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "What to look for, in natural language or identifier fragments",
				},
				"top_k": {
					Type:        "integer",
					Description: "Maximum number of results to return. Defaults to 5.",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Exec runs the query and formats the fused results.
func (t *SearchCodebaseTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return errorResult("Error: %v", err), nil
	}
	topK := intArgOrDefault(args, "top_k", defaultSearchTopK)

	results, err := t.engine.Search(ctx, query, topK)
	if errors.Is(err, retrieval.ErrNotIndexed) {
		return errorResult("Error: no codebase index has been built yet."), nil
	}
	if err != nil {
		return errorResult("Error searching codebase: %v", err), nil
	}
	if len(results) == 0 {
		return textResult("No results found for '%s'.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results for '%s':\n", len(results), query)
	for _, res := range results {
		doc := res.Document
		fmt.Fprintf(&b, "\n%d. %s :: %s (%s, lines %d-%d, %s)\n",
			res.Rank, doc.File, doc.Symbol, doc.Kind, doc.StartLine, doc.EndLine, matchSources(res))
		for _, line := range snippetLines(doc.Content) {
			b.WriteString("   " + line + "\n")
		}
	}
	return textResult("%s", strings.TrimRight(b.String(), "\n")), nil
}

// matchSources names which sub-indexes surfaced a result.
func matchSources(res retrieval.FusedResult) string {
	switch {
	case res.InBM25 && res.InEmbedding:
		return "keyword+semantic"
	case res.InBM25:
		return "keyword"
	default:
		return "semantic"
	}
}

func snippetLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > maxSnippetLines {
		lines = append(lines[:maxSnippetLines:maxSnippetLines], "...")
	}
	return lines
}
