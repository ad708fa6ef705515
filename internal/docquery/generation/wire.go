package generation

import (
	"strings"
)

type modelFamily int

const (
	familyContents modelFamily = iota
	familyLegacyPrompt
)

func familyForModel(model string) modelFamily {
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "text-") || strings.HasPrefix(m, "chat-") {
		return familyLegacyPrompt
	}
	return familyContents
}

func (f modelFamily) method() string {
	if f == familyLegacyPrompt {
		return "generateText"
	}
	return "generateContent"
}

// ---------------- generateContent ----------------

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

func (r generateContentResponse) answer() (string, bool) {
	for _, c := range r.Candidates {
		if c.Content == nil || len(c.Content.Parts) == 0 {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String(), true
		}
	}
	return "", false
}

// ---------------- generateText (legacy) ----------------

type textPrompt struct {
	Text string `json:"text"`
}

type generateTextRequest struct {
	Prompt          textPrompt `json:"prompt"`
	Temperature     float64    `json:"temperature"`
	MaxOutputTokens int        `json:"maxOutputTokens,omitempty"`
}

type generateTextResponse struct {
	Candidates []struct {
		Output string `json:"output"`
	} `json:"candidates"`
}

func (r generateTextResponse) answer() (string, bool) {
	for _, c := range r.Candidates {
		if strings.TrimSpace(c.Output) != "" {
			return c.Output, true
		}
	}
	return "", false
}
