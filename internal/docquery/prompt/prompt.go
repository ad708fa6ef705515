package prompt

import (
	"strings"

	"github.com/yungbote/docquery-backend/internal/docquery/budget"
)

const (
	BlockSeparator = "\n\n---\n\n"

	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 1024
)

type Params struct {
	Temperature     float64
	MaxOutputTokens int
}

func DefaultParams() Params {
	return Params{Temperature: DefaultTemperature, MaxOutputTokens: DefaultMaxOutputTokens}
}

// Request is a fully assembled generation request. Fields are unexported so a built request cannot change.
type Request struct {
	prompt string
	params Params
}

func NewRequest(prompt string, params Params) Request {
	if params.MaxOutputTokens <= 0 {
		params.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if params.Temperature < 0 {
		params.Temperature = 0
	}
	return Request{prompt: prompt, params: params}
}

func (r Request) Prompt() string       { return r.prompt }
func (r Request) Params() Params       { return r.params }
func (r Request) Temperature() float64 { return r.params.Temperature }
func (r Request) MaxOutputTokens() int { return r.params.MaxOutputTokens }

// Assemble wraps the query and per-document context blocks in the instruction template.
func Assemble(query string, blocks []budget.ContextBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, "Document "+b.DocumentID+":\n"+b.Text)
	}

	var sb strings.Builder
	sb.WriteString("Based on the following documents, ")
	sb.WriteString(query)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(strings.Join(parts, BlockSeparator))
	return sb.String()
}
