package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"lowercases and splits", "Contract  Renewal", []string{"contract", "renewal"}},
		{"drops stop words", "what is the contract for", []string{"contract"}},
		{"trims punctuation", "renewal? (contract)", []string{"renewal", "contract"}},
		{"keeps duplicates", "invoice invoice", []string{"invoice", "invoice"}},
		{"only stop words", "the and of", []string{}},
		{"whitespace", " \t\n ", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.query))
		})
	}
}
