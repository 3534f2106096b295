package view

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const ellipsis = "…"

// Previewer shortens long values to a token budget.
type Previewer struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// NewPreviewer creates a token-budgeted previewer. model selects the
// tokenizer (e.g. "gpt-4").
func NewPreviewer(model string, maxTokens int) (*Previewer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Previewer{tokenizer: enc, maxTokens: maxTokens}, nil
}

// RunePreviewer truncates by rune count, assuming four runes per token.
func RunePreviewer(maxTokens int) *Previewer {
	return &Previewer{maxTokens: maxTokens}
}

// Truncate returns s cut to the budget with a trailing ellipsis, or s
// unchanged when it fits. A nil Previewer or a non-positive budget never
// truncates.
func (p *Previewer) Truncate(s string) string {
	if p == nil || p.maxTokens <= 0 {
		return s
	}
	if p.tokenizer == nil {
		limit := p.maxTokens * 4
		if utf8.RuneCountInString(s) <= limit {
			return s
		}
		return strings.TrimSpace(string([]rune(s)[:limit])) + ellipsis
	}

	tokens := p.tokenizer.Encode(s, nil, nil)
	if len(tokens) <= p.maxTokens {
		return s
	}
	return strings.TrimSpace(strings.ToValidUTF8(p.tokenizer.Decode(tokens[:p.maxTokens]), "")) + ellipsis
}
