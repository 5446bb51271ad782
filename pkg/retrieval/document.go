// Package retrieval implements hybrid code search: a BM25 keyword index
// and an embedding-based vector index queried together, with results
// merged by reciprocal rank fusion. Both sub-indexes share one document
// identity scheme (file path + "::" + symbol name) so fusion can match
// entries produced independently by each.
package retrieval

// Symbol kinds produced by the code scanner.
const (
	KindFunction = "function"
	KindClass    = "class"
)

// Document is one indexed code chunk with its source location.
// The document set is built once per Index call and replaced atomically
// on re-index, never partially mutated.
type Document struct {
	// Content is the code text that gets tokenized and embedded.
	Content string

	// File is the source file path relative to the scanned root.
	File string

	// Symbol is the function or class name the chunk was extracted from.
	Symbol string

	// Kind is KindFunction or KindClass.
	Kind string

	// StartLine and EndLine are 1-based line bounds in the source file.
	StartLine int
	EndLine   int
}

// Key returns the identity key shared by both sub-indexes.
func (d Document) Key() string {
	return d.File + "::" + d.Symbol
}
