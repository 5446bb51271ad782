package retrieval

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder produces fixed-dimension vector representations of text.
// Implementations live in pkg/retrieval/embed.
type Embedder interface {
	// EmbedDocuments embeds a batch of document texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

const vectorCollection = "code_chunks"

// VectorIndex stores per-document embeddings in an in-memory chromem-go
// collection keyed by document identity. Immutable after construction;
// safe for concurrent searches.
type VectorIndex struct {
	collection *chromem.Collection
	count      int
}

// VectorHit is one similarity search result. Score is cosine similarity,
// higher = more similar.
type VectorHit struct {
	Key   string
	Score float64
}

// NewVectorIndex embeds every document and stores the vectors. Documents
// with blank content are skipped.
func NewVectorIndex(ctx context.Context, embedder Embedder, docs []Document) (*VectorIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	db := chromem.NewDB()
	embedQuery := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(vectorCollection, nil, embedQuery)
	if err != nil {
		return nil, fmt.Errorf("creating vector collection: %w", err)
	}

	kept := make([]Document, 0, len(docs))
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		kept = append(kept, doc)
		texts = append(texts, doc.Content)
	}

	idx := &VectorIndex{collection: collection}
	if len(kept) == 0 {
		return idx, nil
	}

	embeddings, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(embeddings), len(texts))
	}

	chromemDocs := make([]chromem.Document, len(kept))
	for i, doc := range kept {
		chromemDocs[i] = chromem.Document{
			ID:      doc.Key(),
			Content: doc.Content,
			Metadata: map[string]string{
				"file":   doc.File,
				"symbol": doc.Symbol,
				"kind":   doc.Kind,
			},
			Embedding: embeddings[i],
		}
	}

	// Concurrency 1: embeddings are already computed, adds are cheap.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return nil, fmt.Errorf("adding documents to vector store: %w", err)
	}

	idx.count = len(kept)
	return idx, nil
}

// Count returns the number of stored vectors.
func (v *VectorIndex) Count() int {
	return v.count
}

// Search embeds the query and returns up to topK nearest documents.
func (v *VectorIndex) Search(ctx context.Context, query string, topK int) ([]VectorHit, error) {
	if v.count == 0 || topK <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	// chromem requires nResults <= stored document count.
	n := topK
	if n > v.count {
		n = v.count
	}

	results, err := v.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	hits := make([]VectorHit, len(results))
	for i, r := range results {
		hits[i] = VectorHit{Key: r.ID, Score: float64(r.Similarity)}
	}

	return hits, nil
}
