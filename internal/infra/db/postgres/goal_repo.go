package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"brain-orchestrator/internal/domain"
	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.GoalRepository = (*goalRepo)(nil)

type goalRepo struct {
	pool *pgxpool.Pool
}

func NewGoalRepo(pool *pgxpool.Pool) *goalRepo {
	return &goalRepo{pool: pool}
}

// EnsureSchema creates the tracking tables when absent. Safe to call on every
// start.
func (r *goalRepo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS goal_tracking (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			source TEXT DEFAULT 'telegram',
			goal_type TEXT NOT NULL,
			handler TEXT NOT NULL,
			user_input TEXT,
			fulfilled INT DEFAULT 0,
			fulfillment_reason TEXT,
			output_length INT DEFAULT 0,
			duration_seconds INT,
			retry_count INT DEFAULT 0,
			created_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS goal_issues (
			id BIGSERIAL PRIMARY KEY,
			goal_id TEXT NOT NULL,
			issue_type TEXT NOT NULL,
			details JSONB,
			user_input TEXT,
			handler_output TEXT,
			resolved BOOL DEFAULT FALSE,
			created_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_tracking_fulfilled ON goal_tracking(fulfilled)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_tracking_user_id ON goal_tracking(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_tracking_created_at ON goal_tracking(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_tracking_handler ON goal_tracking(handler)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_issues_resolved ON goal_issues(resolved)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *goalRepo) SaveRecord(ctx context.Context, rec *model.GoalRecord) error {
	const q = `
INSERT INTO goal_tracking (id, user_id, source, goal_type, handler, user_input, fulfilled, created_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
ON CONFLICT (id) DO UPDATE SET
  user_id = EXCLUDED.user_id,
  source = EXCLUDED.source,
  goal_type = EXCLUDED.goal_type,
  handler = EXCLUDED.handler,
  user_input = EXCLUDED.user_input,
  fulfilled = 0,
  created_at = EXCLUDED.created_at;`

	_, err := r.pool.Exec(ctx, q,
		rec.JobID, rec.UserID, rec.Source, string(rec.GoalType), rec.Handler, rec.UserInput, rec.CreatedAt)
	return err
}

func (r *goalRepo) FindRecord(ctx context.Context, jobID string) (*model.GoalRecord, error) {
	const q = `
SELECT id, user_id, source, goal_type, handler, user_input, fulfilled,
       COALESCE(fulfillment_reason, ''), output_length, COALESCE(duration_seconds, 0),
       retry_count, created_at, completed_at
FROM goal_tracking WHERE id = $1;`

	var rec model.GoalRecord
	var goalType string
	var fulfilled int
	err := r.pool.QueryRow(ctx, q, jobID).Scan(
		&rec.JobID, &rec.UserID, &rec.Source, &goalType, &rec.Handler, &rec.UserInput,
		&fulfilled, &rec.FulfillmentNote, &rec.OutputLength, &rec.DurationSeconds,
		&rec.RetryCount, &rec.CreatedAt, &rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	rec.GoalType = model.GoalType(goalType)
	rec.Fulfilled = model.Fulfillment(fulfilled)
	return &rec, nil
}

func (r *goalRepo) CompleteRecord(ctx context.Context, rec *model.GoalRecord) error {
	const q = `
UPDATE goal_tracking
SET fulfilled = $2, fulfillment_reason = $3, output_length = $4,
    duration_seconds = $5, retry_count = $6, completed_at = $7
WHERE id = $1;`

	completedAt := time.Now()
	_, err := r.pool.Exec(ctx, q,
		rec.JobID, int(rec.Fulfilled), rec.FulfillmentNote, rec.OutputLength,
		rec.DurationSeconds, rec.RetryCount, completedAt)
	return err
}

func (r *goalRepo) AppendIssue(ctx context.Context, issue *model.GoalIssue) error {
	details, err := json.Marshal(issue.Details)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO goal_issues (goal_id, issue_type, details, user_input, handler_output, resolved, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6);`

	_, err = r.pool.Exec(ctx, q,
		issue.GoalID, string(issue.IssueType), details, issue.UserInput, issue.HandlerOutput, time.Now())
	return err
}

const issueSelect = `
SELECT gi.id, gi.goal_id, gi.issue_type, COALESCE(gi.details, '{}'::jsonb),
       COALESCE(gi.user_input, ''), COALESCE(gi.handler_output, ''), gi.resolved, gi.created_at,
       gt.handler, gt.goal_type, COALESCE(gt.fulfillment_reason, '')
FROM goal_issues gi
JOIN goal_tracking gt ON gi.goal_id = gt.id`

func (r *goalRepo) RecentIssues(ctx context.Context, limit int) ([]*model.GoalIssue, error) {
	q := issueSelect + `
WHERE gi.resolved = FALSE
ORDER BY gi.created_at DESC
LIMIT $1;`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *goalRepo) IssuesForUser(ctx context.Context, userID string, limit int) ([]*model.GoalIssue, error) {
	q := issueSelect + `
WHERE gt.user_id = $1 AND gi.resolved = FALSE
ORDER BY gi.created_at DESC
LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func scanIssues(rows pgx.Rows) ([]*model.GoalIssue, error) {
	var out []*model.GoalIssue
	for rows.Next() {
		var it model.GoalIssue
		var issueType, goalType string
		var details []byte
		if err := rows.Scan(
			&it.ID, &it.GoalID, &issueType, &details, &it.UserInput, &it.HandlerOutput,
			&it.Resolved, &it.CreatedAt, &it.Handler, &goalType, &it.FulfillmentNote,
		); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		it.IssueType = model.IssueType(issueType)
		it.GoalType = model.GoalType(goalType)
		if len(details) > 0 {
			_ = json.Unmarshal(details, &it.Details)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

func (r *goalRepo) ResolveIssue(ctx context.Context, issueID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE goal_issues SET resolved = TRUE WHERE id = $1;`, issueID)
	return err
}

func (r *goalRepo) Stats(ctx context.Context, days int) (*model.GoalStats, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	stats := &model.GoalStats{
		PerHandler:   map[string]model.HandlerStats{},
		CommonIssues: map[model.IssueType]int{},
	}

	const totalsQ = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE fulfilled = 1),
       COUNT(*) FILTER (WHERE fulfilled = -1)
FROM goal_tracking WHERE created_at >= $1;`
	if err := r.pool.QueryRow(ctx, totalsQ, cutoff).Scan(&stats.Total, &stats.Fulfilled, &stats.Unfulfilled); err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.FulfillmentRate = float64(stats.Fulfilled) / float64(stats.Total)
	}

	const perHandlerQ = `
SELECT handler, COUNT(*), COUNT(*) FILTER (WHERE fulfilled = 1)
FROM goal_tracking
WHERE created_at >= $1
GROUP BY handler;`
	rows, err := r.pool.Query(ctx, perHandlerQ, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var handler string
		var total, fulfilled int
		if err := rows.Scan(&handler, &total, &fulfilled); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		hs := model.HandlerStats{Total: total, Fulfilled: fulfilled}
		if total > 0 {
			hs.Rate = float64(fulfilled) / float64(total)
		}
		stats.PerHandler[handler] = hs
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const issuesQ = `
SELECT gi.issue_type, COUNT(*)
FROM goal_issues gi
JOIN goal_tracking gt ON gi.goal_id = gt.id
WHERE gt.created_at >= $1
GROUP BY gi.issue_type
ORDER BY COUNT(*) DESC;`
	irows, err := r.pool.Query(ctx, issuesQ, cutoff)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var issueType string
		var n int
		if err := irows.Scan(&issueType, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		stats.CommonIssues[model.IssueType(issueType)] = n
	}
	return stats, irows.Err()
}
