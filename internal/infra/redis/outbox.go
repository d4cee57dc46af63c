package redis

import (
	"context"
	"fmt"

	"brain-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.Deliverer = (*WebOutbox)(nil)

// WebOutbox delivers completed-job output to a bounded per-user list that a
// polling web client drains. Oldest entries are dropped once the bound is hit.
type WebOutbox struct {
	client   Client
	size     int64
	maxChunk int
}

func NewWebOutbox(client Client, size int) *WebOutbox {
	if size <= 0 {
		size = 100
	}
	return &WebOutbox{client: client, size: int64(size), maxChunk: 4000}
}

func outboxKey(userID string) string {
	return fmt.Sprintf("outbox:%s", userID)
}

func (o *WebOutbox) Source() string      { return "web" }
func (o *WebOutbox) MaxMessageSize() int { return o.maxChunk }

func (o *WebOutbox) Deliver(ctx context.Context, userID, text string) error {
	key := outboxKey(userID)
	if err := o.client.LPush(ctx, key, text); err != nil {
		return err
	}
	return o.client.LTrim(ctx, key, 0, o.size-1)
}

// Drain returns and clears all pending messages for a user, oldest first.
// Read and delete run as one atomic step so a message delivered mid-drain is
// never silently discarded.
func (o *WebOutbox) Drain(ctx context.Context, userID string) ([]string, error) {
	items, err := o.client.DrainList(ctx, outboxKey(userID))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	// LPUSH stores newest first; reverse to chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}
