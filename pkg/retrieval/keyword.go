package retrieval

import (
	"math"
	"sort"
)

// BM25 parameters: k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// KeywordIndex ranks documents with BM25 over tokenized content.
// It is immutable after construction and safe for concurrent searches.
type KeywordIndex struct {
	docs   []Document       // kept in indexing order for tie-breaking
	freqs  []map[string]int // term frequency per document
	lens   []float64        // token count per document
	df     map[string]int   // document frequency per term
	avgLen float64
}

// KeywordHit is one keyword search result.
type KeywordHit struct {
	Doc   Document
	Score float64
}

// NewKeywordIndex tokenizes every document and builds BM25 statistics.
// Documents that yield no meaningful tokens are skipped.
func NewKeywordIndex(docs []Document) *KeywordIndex {
	idx := &KeywordIndex{df: make(map[string]int)}

	var totalLen float64
	for _, doc := range docs {
		tokens := Tokenize(doc.Content)
		if len(tokens) == 0 {
			continue
		}

		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok := range freq {
			idx.df[tok]++
		}

		idx.docs = append(idx.docs, doc)
		idx.freqs = append(idx.freqs, freq)
		idx.lens = append(idx.lens, float64(len(tokens)))
		totalLen += float64(len(tokens))
	}

	if len(idx.docs) > 0 {
		idx.avgLen = totalLen / float64(len(idx.docs))
	}

	return idx
}

// Len returns the number of indexed documents.
func (idx *KeywordIndex) Len() int {
	return len(idx.docs)
}

// Search tokenizes the query the same way documents were tokenized and
// returns up to topK documents with positive BM25 score, sorted by score
// descending. Ties keep the original indexing order.
func (idx *KeywordIndex) Search(query string, topK int) []KeywordHit {
	if len(idx.docs) == 0 || topK <= 0 {
		return nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	scores := make([]float64, len(idx.docs))
	n := float64(len(idx.docs))

	for _, term := range queryTokens {
		df, ok := idx.df[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for i := range idx.docs {
			tf := float64(idx.freqs[i][term])
			if tf == 0 {
				continue
			}
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*idx.lens[i]/idx.avgLen))
			scores[i] += idf * norm
		}
	}

	order := make([]int, len(idx.docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	hits := make([]KeywordHit, 0, topK)
	for _, i := range order {
		if scores[i] <= 0 {
			break
		}
		hits = append(hits, KeywordHit{Doc: idx.docs[i], Score: scores[i]})
		if len(hits) == topK {
			break
		}
	}

	return hits
}
