// Package budget splits a fixed prompt token budget across documents and truncates
// each document's text to its share.
package budget

import (
	"strings"
	"unicode/utf8"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
)

const (
	CharsPerToken = 4

	DefaultTotalTokens    = 30000
	DefaultReservedTokens = 1000
	DefaultMinBodyTokens  = 50

	// maxFieldRunes caps each metadata value rendered into a header.
	maxFieldRunes = 200

	TruncatedNotice = "[Document text omitted: token budget exhausted]"
	OmittedMarker   = "\n\n[... middle of document omitted ...]\n\n"
)

// EstimateTokens approximates a token count as ceil(runes / CharsPerToken).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// DocumentText is a document paired with its resolved text (possibly a lookup sentinel).
type DocumentText struct {
	Document store.Document
	Text     string
}

type ContextBlock struct {
	DocumentID string
	Text       string
	Truncated  bool
}

type Config struct {
	TotalTokens    int
	ReservedTokens int
	MinBodyTokens  int
}

type Allocator struct {
	cfg Config
}

func NewAllocator(cfg Config) *Allocator {
	if cfg.TotalTokens <= 0 {
		cfg.TotalTokens = DefaultTotalTokens
	}
	if cfg.ReservedTokens < 0 {
		cfg.ReservedTokens = 0
	}
	if cfg.MinBodyTokens <= 0 {
		cfg.MinBodyTokens = DefaultMinBodyTokens
	}
	return &Allocator{cfg: cfg}
}

// Available is the budget left for document context after the reserved overhead.
func (a *Allocator) Available() int {
	avail := a.cfg.TotalTokens - a.cfg.ReservedTokens
	if avail < 0 {
		return 0
	}
	return avail
}

// PerDocument splits the available budget equally across n documents.
func (a *Allocator) PerDocument(n int) int {
	if n <= 0 {
		return 0
	}
	return a.Available() / n
}

func (a *Allocator) Allocate(docs []DocumentText) []ContextBlock {
	per := a.PerDocument(len(docs))
	out := make([]ContextBlock, 0, len(docs))
	for _, d := range docs {
		out = append(out, a.Truncate(d, per))
	}
	return out
}

// Truncate fits one document into budget tokens. It keeps the metadata header and, when the
// body does not fit, the head and tail of the body around an omission marker.
func (a *Allocator) Truncate(d DocumentText, budget int) ContextBlock {
	block := ContextBlock{DocumentID: d.Document.ID}

	header := Header(d.Document)
	remaining := budget - EstimateTokens(header)
	if remaining < a.cfg.MinBodyTokens {
		block.Text = headerOnly(header, budget)
		block.Truncated = true
		return block
	}

	body := strings.TrimSpace(d.Text)
	if EstimateTokens(body) <= remaining {
		block.Text = header + "\n" + body
		return block
	}

	remaining -= EstimateTokens(OmittedMarker)
	half := remaining / 2
	chars := half * CharsPerToken
	block.Text = header + "\n" + takeHead(body, chars) + OmittedMarker + takeTail(body, chars)
	block.Truncated = true
	return block
}

// headerOnly renders header and the truncation notice within budget, shortening the header
// when both do not fit. A budget smaller than the notice itself yields the notice alone.
func headerOnly(header string, budget int) string {
	notice := "\n" + TruncatedNotice
	if EstimateTokens(header)+EstimateTokens(notice) > budget {
		header = takeHead(header, max(budget*CharsPerToken-utf8.RuneCountInString(notice), 0))
	}
	return header + notice
}

// Header renders the document ID and its present metadata fields on one line.
func Header(doc store.Document) string {
	var b strings.Builder
	b.WriteString("Document ID: ")
	b.WriteString(doc.ID)
	for _, field := range store.MetadataFields {
		v := strings.Join(strings.Fields(doc.Field(field)), " ")
		if v == "" {
			continue
		}
		b.WriteString(" | ")
		b.WriteString(field)
		b.WriteString(": ")
		b.WriteString(takeHead(v, maxFieldRunes))
	}
	return b.String()
}

func takeHead(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func takeTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	total := utf8.RuneCountInString(s)
	if n >= total {
		return s
	}
	skip := total - n
	i := 0
	for pos := range s {
		if i == skip {
			return s[pos:]
		}
		i++
	}
	return ""
}
