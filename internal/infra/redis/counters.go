package redis

import (
	"context"
	"fmt"
	"time"

	"brain-orchestrator/internal/domain/ports/repository"
)

var _ repository.GoalCounters = (*GoalCounters)(nil)

// GoalCounters keeps eventually consistent per-day rolling stats alongside the
// authoritative goal records. Keys expire after 30 days.
type GoalCounters struct {
	client Client
}

func NewGoalCounters(client Client) *GoalCounters {
	return &GoalCounters{client: client}
}

func dailyKey(t time.Time) string {
	return "goal:stats:daily:" + t.Format("2006-01-02")
}

func (c *GoalCounters) IncrDaily(ctx context.Context, handler string, fulfilled bool) error {
	key := dailyKey(time.Now())
	if _, err := c.client.HIncrBy(ctx, key, "total", 1); err != nil {
		return err
	}
	field := "unfulfilled"
	if fulfilled {
		field = "fulfilled"
	}
	if _, err := c.client.HIncrBy(ctx, key, field, 1); err != nil {
		return err
	}
	if _, err := c.client.HIncrBy(ctx, key, fmt.Sprintf("handler:%s", handler), 1); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, 30*24*time.Hour)
}
