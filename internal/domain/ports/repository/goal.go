package repository

import (
	"context"

	"brain-orchestrator/internal/domain/model"
)

// GoalRepository is the authoritative store for goal records and issues.
type GoalRepository interface {
	// SaveRecord upserts the record keyed by JobID (idempotent).
	SaveRecord(ctx context.Context, rec *model.GoalRecord) error

	// FindRecord returns the record for a job, or domain.ErrNotFound.
	FindRecord(ctx context.Context, jobID string) (*model.GoalRecord, error)

	// CompleteRecord persists the fulfillment verdict for a job.
	CompleteRecord(ctx context.Context, rec *model.GoalRecord) error

	// AppendIssue writes one issue row for an unfulfilled goal.
	AppendIssue(ctx context.Context, issue *model.GoalIssue) error

	RecentIssues(ctx context.Context, limit int) ([]*model.GoalIssue, error)
	IssuesForUser(ctx context.Context, userID string, limit int) ([]*model.GoalIssue, error)
	ResolveIssue(ctx context.Context, issueID int64) error

	// Stats aggregates fulfillment over the trailing N days.
	Stats(ctx context.Context, days int) (*model.GoalStats, error)
}

// GoalCounters is the best-effort rolling side store (per-day, per-handler).
// Counter failures never affect the authoritative record.
type GoalCounters interface {
	IncrDaily(ctx context.Context, handler string, fulfilled bool) error
}
