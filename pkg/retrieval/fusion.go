package retrieval

import "sort"

// FusionConfig controls reciprocal rank fusion. Zero values are replaced
// by defaults, except that a zero weight is meaningful, so weights are
// only defaulted together.
type FusionConfig struct {
	// BM25Weight scales the keyword sub-index contribution.
	BM25Weight float64

	// EmbeddingWeight scales the vector sub-index contribution.
	EmbeddingWeight float64

	// KConst is the RRF rank damping constant. 60 is the standard value
	// from the literature.
	KConst float64
}

// DefaultFusionConfig returns the standard equal-weight configuration.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		BM25Weight:      0.5,
		EmbeddingWeight: 0.5,
		KConst:          60,
	}
}

// fusedEntry is the fusion output before document metadata is attached.
type fusedEntry struct {
	Key           string
	Score         float64
	InBM25        bool
	InEmbedding   bool
	BM25Rank      int
	EmbeddingRank int
}

// fuse merges two ranked key lists by reciprocal rank fusion:
//
//	score = bm25Weight/(kConst+bm25Rank) + embeddingWeight/(kConst+embeddingRank)
//
// with a missing rank contributing zero. Ranks are 1-based list positions.
// Ordering is deterministic: ties are broken by first-insertion order
// (keyword list first, then vector-only keys).
func fuse(keywordKeys, vectorKeys []string, cfg FusionConfig, topK int) []fusedEntry {
	bm25Ranks := make(map[string]int, len(keywordKeys))
	order := make([]string, 0, len(keywordKeys)+len(vectorKeys))
	for i, key := range keywordKeys {
		if _, seen := bm25Ranks[key]; seen {
			continue
		}
		bm25Ranks[key] = i + 1
		order = append(order, key)
	}

	embeddingRanks := make(map[string]int, len(vectorKeys))
	for i, key := range vectorKeys {
		if _, seen := embeddingRanks[key]; seen {
			continue
		}
		embeddingRanks[key] = i + 1
		if _, inBM25 := bm25Ranks[key]; !inBM25 {
			order = append(order, key)
		}
	}

	scores := make(map[string]float64, len(order))
	for _, key := range order {
		var score float64
		if rank, ok := bm25Ranks[key]; ok {
			score += cfg.BM25Weight / (cfg.KConst + float64(rank))
		}
		if rank, ok := embeddingRanks[key]; ok {
			score += cfg.EmbeddingWeight / (cfg.KConst + float64(rank))
		}
		scores[key] = score
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if topK >= 0 && len(order) > topK {
		order = order[:topK]
	}

	entries := make([]fusedEntry, len(order))
	for i, key := range order {
		bm25Rank, inBM25 := bm25Ranks[key]
		embeddingRank, inEmbedding := embeddingRanks[key]
		entries[i] = fusedEntry{
			Key:           key,
			Score:         scores[key],
			InBM25:        inBM25,
			InEmbedding:   inEmbedding,
			BM25Rank:      bm25Rank,
			EmbeddingRank: embeddingRank,
		}
	}

	return entries
}
