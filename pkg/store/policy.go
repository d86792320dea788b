package store

import "strings"

// ContentPolicy decides whether submitted text is acceptable. Implementations
// can evolve moderation rules without touching the store.
type ContentPolicy interface {
	IsAcceptable(text string) bool
}

// WordListPolicy rejects text containing any of its banned words,
// case-insensitively. An empty list accepts everything, which is the default
// policy.
type WordListPolicy struct {
	words []string
}

func NewWordListPolicy(words ...string) *WordListPolicy {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &WordListPolicy{words: lowered}
}

func (p *WordListPolicy) IsAcceptable(text string) bool {
	if len(p.words) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, w := range p.words {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}
