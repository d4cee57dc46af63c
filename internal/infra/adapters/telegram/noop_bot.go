package telegram

import (
	"context"
	"sync"

	"brain-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.Deliverer = (*NoOpBotDeliverer)(nil)

// NoOpBotDeliverer swallows deliveries and remembers them. Used in dev
// mode and in tests when no bot token is configured.
type NoOpBotDeliverer struct {
	mu   sync.Mutex
	sent []SentMessage
}

type SentMessage struct {
	UserID string
	Text   string
}

func NewNoOpBotDeliverer() *NoOpBotDeliverer { return &NoOpBotDeliverer{} }

func (n *NoOpBotDeliverer) Source() string      { return "telegram" }
func (n *NoOpBotDeliverer) MaxMessageSize() int { return maxTelegramMessage }

func (n *NoOpBotDeliverer) Deliver(_ context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMessage{UserID: userID, Text: text})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (n *NoOpBotDeliverer) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}
