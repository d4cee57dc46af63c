package ai

import (
	"context"

	"brain-orchestrator/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ReasoningAdapter = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.ReasoningAdapter
	sem   chan struct{}
}

// NewLimitedAI bounds concurrent reasoning calls across all workers.
func NewLimitedAI(inner adapter.ReasoningAdapter, maxConcurrent int) adapter.ReasoningAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) ChatJSON(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.ChatJSON(ctx, model, messages)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, model, messages)
}
