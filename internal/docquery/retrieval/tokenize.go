package retrieval

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "give": {},
	"had": {}, "has": {}, "have": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "please": {}, "show": {}, "tell": {},
	"that": {}, "the": {}, "their": {}, "there": {}, "these": {}, "this": {}, "those": {}, "to": {},
	"us": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// IsStopWord reports whether the lower-cased token is ignored for scoring.
func IsStopWord(tok string) bool {
	_, ok := stopWords[tok]
	return ok
}

// Tokenize splits a query on whitespace, lower-cases each token, trims surrounding
// punctuation and drops stop words and empty tokens. Duplicates are kept.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		if tok == "" || IsStopWord(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}
