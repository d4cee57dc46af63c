package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ReasoningAdapter is the port for the external reasoning service used by the
// rescue subsystem.
type ReasoningAdapter interface {
	// ChatJSON returns only the assistant text, constrained to a JSON response
	// shape with low sampling variance, so the caller can parse the output
	// instead of scraping it.
	ChatJSON(ctx context.Context, model string, messages []Message) (string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when exact counting isn't available for the model).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
}
