package retrieval

import (
	"regexp"
	"strings"
)

// stopWords are identifiers and keywords that appear in almost every
// source file. Their document frequency is so high that they carry no
// ranking signal, so they are dropped before indexing.
var stopWords = map[string]struct{}{
	// Python
	"def": {}, "class": {}, "return": {}, "self": {}, "elif": {},
	"for": {}, "while": {}, "try": {}, "except": {}, "finally": {},
	"with": {}, "import": {}, "from": {}, "not": {}, "and": {},
	"none": {}, "true": {}, "false": {}, "pass": {}, "break": {},
	"continue": {}, "lambda": {}, "yield": {}, "raise": {}, "assert": {},
	"global": {}, "nonlocal": {}, "del": {}, "args": {}, "kwargs": {},
	"init": {}, "else": {},
	// Go
	"func": {}, "var": {}, "const": {}, "package": {}, "nil": {},
	"err": {}, "chan": {}, "defer": {}, "interface": {}, "struct": {},
	"range": {}, "select": {}, "case": {}, "switch": {}, "map": {},
	// common type and filler words
	"the": {}, "str": {}, "int": {}, "list": {}, "dict": {},
	"bool": {}, "float": {}, "type": {}, "any": {}, "optional": {},
	"string": {}, "byte": {},
}

var (
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	separators    = regexp.MustCompile(`[_\-./\\(){}\[\]:,;"']`)
)

// Tokenize converts code text into searchable tokens. camelCase and
// PascalCase identifiers are split at case boundaries, snake_case and
// punctuation at separator characters, then everything is lowercased
// and stop words and tokens of length <= 2 are dropped. "getUserById"
// and "get_user_by_id" produce the same tokens.
func Tokenize(text string) []string {
	text = camelBoundary.ReplaceAllString(text, "$1 $2")
	text = separators.ReplaceAllString(text, " ")

	words := strings.Fields(strings.ToLower(text))

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}
