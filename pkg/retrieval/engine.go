package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codepilot/pkg/logx"
)

// ErrNotIndexed is returned by Search before any successful Index call.
var ErrNotIndexed = errors.New("retrieval: no index built")

// QueryRecorder observes query counts and latencies per kind (keyword,
// vector, hybrid). Satisfied by *metrics.Metrics.
type QueryRecorder interface {
	RecordRetrievalQuery(kind string, duration time.Duration)
}

// FusedResult is one hybrid search result.
type FusedResult struct {
	// Rank is the 1-based position in the fused list.
	Rank int

	// Score is the reciprocal-rank-fusion score.
	Score float64

	// Document carries the matched chunk and its source location.
	Document Document

	// Presence flags and 1-based ranks in each sub-index. A rank of 0
	// means the document was absent from that sub-index's results.
	InBM25        bool
	InEmbedding   bool
	BM25Rank      int
	EmbeddingRank int
}

// IndexStats reports how many documents each sub-index accepted.
type IndexStats struct {
	BM25Indexed      int
	EmbeddingIndexed int
}

// snapshot bundles one complete generation of both sub-indexes. Snapshots
// are immutable; re-indexing builds a new one and swaps the pointer.
type snapshot struct {
	keyword *KeywordIndex
	vector  *VectorIndex
	docs    map[string]Document
}

// Engine is the hybrid retrieval engine. Queries hit both sub-indexes and
// merge results by reciprocal rank fusion. Safe for concurrent searches;
// Index serializes against in-flight queries by pointer swap, so a query
// sees either the old or the new document set, never a mix.
type Engine struct {
	embedder Embedder
	cfg      FusionConfig
	logger   *logx.Logger
	recorder QueryRecorder

	mu   sync.RWMutex
	snap *snapshot
}

// NewEngine creates a hybrid engine over the given embedder. Zero-valued
// FusionConfig fields fall back to defaults; pass an explicit weight pair
// to override (a single zero weight is respected).
func NewEngine(embedder Embedder, cfg FusionConfig, logger *logx.Logger) *Engine {
	if cfg.BM25Weight == 0 && cfg.EmbeddingWeight == 0 {
		cfg.BM25Weight = 0.5
		cfg.EmbeddingWeight = 0.5
	}
	if cfg.KConst <= 0 {
		cfg.KConst = 60
	}
	if logger == nil {
		logger = logx.NewLogger("retrieval")
	}
	return &Engine{embedder: embedder, cfg: cfg, logger: logger}
}

// SetRecorder attaches a query recorder. Call before serving searches.
func (e *Engine) SetRecorder(rec QueryRecorder) {
	e.mu.Lock()
	e.recorder = rec
	e.mu.Unlock()
}

func (e *Engine) record(kind string, start time.Time) {
	e.mu.RLock()
	rec := e.recorder
	e.mu.RUnlock()
	if rec != nil {
		rec.RecordRetrievalQuery(kind, time.Since(start))
	}
}

// Index builds both sub-indexes from the document set and swaps them in
// atomically. Concurrent searches keep reading the previous generation
// until the swap.
func (e *Engine) Index(ctx context.Context, docs []Document) (IndexStats, error) {
	keyword := NewKeywordIndex(docs)
	vector, err := NewVectorIndex(ctx, e.embedder, docs)
	if err != nil {
		return IndexStats{}, fmt.Errorf("building vector index: %w", err)
	}

	byKey := make(map[string]Document, len(docs))
	for _, doc := range docs {
		byKey[doc.Key()] = doc
	}

	e.mu.Lock()
	e.snap = &snapshot{keyword: keyword, vector: vector, docs: byKey}
	e.mu.Unlock()

	stats := IndexStats{BM25Indexed: keyword.Len(), EmbeddingIndexed: vector.Count()}
	e.logger.Info("indexed %d documents (bm25=%d, embeddings=%d)", len(docs), stats.BM25Indexed, stats.EmbeddingIndexed)
	return stats, nil
}

// DocumentCount returns the size of the current document set.
func (e *Engine) DocumentCount() int {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()
	if snap == nil {
		return 0
	}
	return len(snap.docs)
}

// Search queries both sub-indexes with 2*topK candidates each and fuses
// the ranked lists. Results are sorted by fused score descending, ties
// broken by first-insertion order, truncated to topK.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]FusedResult, error) {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	if snap == nil {
		return nil, ErrNotIndexed
	}
	if topK <= 0 {
		topK = 10
	}

	started := time.Now()
	defer e.record("hybrid", started)

	// Over-fetch from each sub-index so fusion has candidates that may
	// rank low in one list but high in the other.
	fetch := topK * 2

	keywordStart := time.Now()
	keywordHits := snap.keyword.Search(query, fetch)
	e.record("keyword", keywordStart)

	vectorStart := time.Now()
	vectorHits, err := snap.vector.Search(ctx, query, fetch)
	e.record("vector", vectorStart)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	keywordKeys := make([]string, len(keywordHits))
	for i, hit := range keywordHits {
		keywordKeys[i] = hit.Doc.Key()
	}
	vectorKeys := make([]string, len(vectorHits))
	for i, hit := range vectorHits {
		vectorKeys[i] = hit.Key
	}

	entries := fuse(keywordKeys, vectorKeys, e.cfg, topK)

	results := make([]FusedResult, 0, len(entries))
	for _, entry := range entries {
		doc, ok := snap.docs[entry.Key]
		if !ok {
			// Both sub-indexes draw from the same document set, so a
			// missing key would mean a torn snapshot.
			return nil, fmt.Errorf("fused key %q not in document set", entry.Key)
		}
		results = append(results, FusedResult{
			Rank:          len(results) + 1,
			Score:         entry.Score,
			Document:      doc,
			InBM25:        entry.InBM25,
			InEmbedding:   entry.InEmbedding,
			BM25Rank:      entry.BM25Rank,
			EmbeddingRank: entry.EmbeddingRank,
		})
	}

	e.logger.Debug("query %q: %d keyword hits, %d vector hits, %d fused", query, len(keywordHits), len(vectorHits), len(results))
	return results, nil
}
