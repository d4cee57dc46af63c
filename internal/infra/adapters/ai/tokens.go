package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"brain-orchestrator/internal/domain/ports/adapter"
)

// tokensPerMessage approximates the per-message framing overhead of the chat
// format.
const tokensPerMessage = 4

// TokenCounter counts prompt tokens with tiktoken, falling back to a rough
// bytes/4 estimate for models without a known encoding.
type TokenCounter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

func (t *TokenCounter) encodingFor(model string) *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()
	if enc, ok := t.encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	t.encodings[model] = enc
	return enc
}

// Count returns the approximate prompt token count for the messages.
func (t *TokenCounter) Count(model string, messages []adapter.Message) int {
	enc := t.encodingFor(model)
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		if enc != nil {
			total += len(enc.Encode(m.Content, nil, nil))
			total += len(enc.Encode(m.Role, nil, nil))
		} else {
			total += (len(m.Content) + len(m.Role)) / 4
		}
	}
	return total
}
