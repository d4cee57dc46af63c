package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/repository"
	"brain-orchestrator/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ GoalTracker = (*goalTrackerUC)(nil)

// GoalTracker records inferred user intent at job start and judges, after
// completion, whether the output actually satisfied it — independent of the
// handler's own success flag.
type GoalTracker interface {
	Classify(handler, text string) model.GoalType
	Record(ctx context.Context, jobID, userID, source string, goalType model.GoalType, handler, text string)
	Evaluate(goalType model.GoalType, resp *model.AgentResponse) (bool, string)
	EvaluateAndRecord(ctx context.Context, jobID string, resp *model.AgentResponse, duration time.Duration, retryCount int)
	MarkUnfulfilled(ctx context.Context, jobID, reason string, resp *model.AgentResponse, retryCount int)

	RecentIssues(ctx context.Context, limit int) ([]*model.GoalIssue, error)
	IssuesForUser(ctx context.Context, userID string, limit int) ([]*model.GoalIssue, error)
	ResolveIssue(ctx context.Context, issueID int64) error
	Stats(ctx context.Context, days int) (*model.GoalStats, error)
}

// fulfillmentRule holds the heuristics for one goal type:
// any failure signal in the output => unfulfilled; output below minLength =>
// unfulfilled; when success signals are defined, at least one must appear.
type fulfillmentRule struct {
	successSignals []string
	failureSignals []string
	minLength      int
}

var fulfillmentRules = map[model.GoalType]fulfillmentRule{
	model.GoalSaveKnowledge: {
		successSignals: []string{"saved", "knowledge saved", "got it", "tagged"},
		failureSignals: []string{"too short to save", "not sure what to do"},
		minLength:      20,
	},
	model.GoalSearchKnowledge: {
		successSignals: []string{"found", "result"},
		failureSignals: []string{"don't have anything", "nothing found", "no relevant knowledge"},
		minLength:      50,
	},
	model.GoalSaveURL: {
		successSignals: []string{"saved", "content saved", "knowledge graph"},
		failureSignals: []string{"error extracting", "could not extract", "error saving"},
		minLength:      50,
	},
	model.GoalSaveYoutube: {
		successSignals: []string{"saved that video", "transcript saved", "transcript"},
		failureSignals: []string{"doesn't have captions", "blocking", "couldn't get the transcript"},
		minLength:      100,
	},
	model.GoalSaveTweet: {
		successSignals: []string{"tweet by @", "saved"},
		failureSignals: []string{"could not extract", "private or deleted", "invalid twitter"},
		minLength:      50,
	},
	model.GoalResearch: {
		failureSignals: []string{"error searching", "no web results", "nothing found in knowledge"},
		minLength:      100,
	},
	model.GoalWriteContent: {
		failureSignals: []string{"error", "failed"},
		minLength:      50,
	},
	model.GoalCodeGeneration: {
		successSignals: []string{"finalized", "files", "project"},
		failureSignals: []string{"error in coding", "could not generate"},
		minLength:      100,
	},
	model.GoalUnknown: {
		minLength: 10,
	},
}

type goalTrackerUC struct {
	repo     repository.GoalRepository
	counters repository.GoalCounters
	log      *zerolog.Logger
}

func NewGoalTracker(repo repository.GoalRepository, counters repository.GoalCounters, logger *zerolog.Logger) *goalTrackerUC {
	return &goalTrackerUC{repo: repo, counters: counters, log: logger}
}

// Search-intent heuristics for the archivist handler: question openers and
// explicit lookup verbs mean the user wants something back, not stored.
var archivistSearchRe = regexp.MustCompile(
	`(?i)^\s*(what|where|when|who|how|why|which|do i|did i)\b|` +
		`\b(search|find|look\s*up|show\s+me|recall)\b|\?\s*$`)

// Classify derives the goal type from the routing decision plus light text
// inspection. Pure and deterministic; no external calls.
func (g *goalTrackerUC) Classify(handler, text string) model.GoalType {
	textLower := strings.ToLower(text)

	switch handler {
	case "archivist":
		if archivistSearchRe.MatchString(text) {
			return model.GoalSearchKnowledge
		}
		return model.GoalSaveKnowledge
	case "content_saver":
		if strings.Contains(textLower, "youtube.com") || strings.Contains(textLower, "youtu.be") {
			return model.GoalSaveYoutube
		}
		if strings.Contains(textLower, "twitter.com") || strings.Contains(textLower, "x.com") {
			return model.GoalSaveTweet
		}
		return model.GoalSaveURL
	case "researcher":
		return model.GoalResearch
	case "writer":
		return model.GoalWriteContent
	case "coder":
		return model.GoalCodeGeneration
	}
	return model.GoalUnknown
}

// Record upserts the goal record when a job starts processing. Best-effort:
// tracking must never block job execution.
func (g *goalTrackerUC) Record(ctx context.Context, jobID, userID, source string, goalType model.GoalType, handler, text string) {
	rec := &model.GoalRecord{
		JobID:     jobID,
		UserID:    userID,
		Source:    source,
		GoalType:  goalType,
		Handler:   handler,
		UserInput: truncate(text, 500),
		Fulfilled: model.FulfillmentUnknown,
		CreatedAt: time.Now(),
	}
	if err := g.repo.SaveRecord(ctx, rec); err != nil {
		g.log.Error().Err(err).Str("job_id", jobID).Msg("goal tracker: record failed")
	}
}

// Evaluate is the pure heuristic verdict. Returns (fulfilled, reason).
func (g *goalTrackerUC) Evaluate(goalType model.GoalType, resp *model.AgentResponse) (bool, string) {
	if !resp.Success {
		return false, fmt.Sprintf("Agent failure: %s", resp.ErrorMessage())
	}

	rule, ok := fulfillmentRules[goalType]
	if !ok {
		rule = fulfillmentRules[model.GoalUnknown]
	}
	outputLower := strings.ToLower(resp.Output)

	for _, signal := range rule.failureSignals {
		if strings.Contains(outputLower, signal) {
			return false, fmt.Sprintf("Failure signal: '%s'", signal)
		}
	}

	trimmed := strings.TrimSpace(resp.Output)
	if len(trimmed) < rule.minLength {
		return false, fmt.Sprintf("Output too short (%d < %d chars)", len(trimmed), rule.minLength)
	}

	if len(rule.successSignals) > 0 {
		for _, signal := range rule.successSignals {
			if strings.Contains(outputLower, signal) {
				return true, "Success signal matched"
			}
		}
		return false, "No success signal in output"
	}

	return true, "Output meets length threshold"
}

// EvaluateAndRecord looks up the pending record, runs Evaluate, persists the
// verdict, and appends a GoalIssue when unfulfilled. Counter updates are
// best-effort.
func (g *goalTrackerUC) EvaluateAndRecord(ctx context.Context, jobID string, resp *model.AgentResponse, duration time.Duration, retryCount int) {
	rec, err := g.repo.FindRecord(ctx, jobID)
	if err != nil {
		g.log.Warn().Err(err).Str("job_id", jobID).Msg("goal tracker: no record to evaluate")
		return
	}

	fulfilled, reason := g.Evaluate(rec.GoalType, resp)
	g.finish(ctx, rec, resp, fulfilled, reason, duration, retryCount)
}

// MarkUnfulfilled closes the record with a preset reason, bypassing the rule
// table. Used for hard failures and configuration failures where no usable
// response exists.
func (g *goalTrackerUC) MarkUnfulfilled(ctx context.Context, jobID, reason string, resp *model.AgentResponse, retryCount int) {
	rec, err := g.repo.FindRecord(ctx, jobID)
	if err != nil {
		g.log.Warn().Err(err).Str("job_id", jobID).Msg("goal tracker: no record to mark")
		return
	}
	if resp == nil {
		resp = &model.AgentResponse{Success: false, Error: reason}
	}
	g.finish(ctx, rec, resp, false, reason, 0, retryCount)
}

func (g *goalTrackerUC) finish(ctx context.Context, rec *model.GoalRecord, resp *model.AgentResponse, fulfilled bool, reason string, duration time.Duration, retryCount int) {
	rec.FulfillmentNote = reason
	rec.OutputLength = len(resp.Output)
	rec.DurationSeconds = int(duration.Seconds())
	rec.RetryCount = retryCount
	if fulfilled {
		rec.Fulfilled = model.FulfillmentFulfilled
	} else {
		rec.Fulfilled = model.FulfillmentUnfulfilled
	}

	if err := g.repo.CompleteRecord(ctx, rec); err != nil {
		g.log.Error().Err(err).Str("job_id", rec.JobID).Msg("goal tracker: verdict persist failed")
		return
	}
	metrics.IncGoalVerdict(rec.Handler, fulfilled)

	if !fulfilled {
		issueType := classifyIssueType(resp, reason)
		issue := &model.GoalIssue{
			GoalID:    rec.JobID,
			IssueType: issueType,
			Details: map[string]interface{}{
				"goal_type":        string(rec.GoalType),
				"handler":          rec.Handler,
				"reason":           reason,
				"response_success": resp.Success,
				"output_length":    len(resp.Output),
				"error":            resp.Error,
				"duration":         int(duration.Seconds()),
				"retry_count":      retryCount,
			},
			UserInput:     truncate(rec.UserInput, 500),
			HandlerOutput: truncate(resp.Output, 1000),
		}
		if err := g.repo.AppendIssue(ctx, issue); err != nil {
			g.log.Error().Err(err).Str("job_id", rec.JobID).Msg("goal tracker: issue append failed")
		}
		metrics.IncGoalIssue(string(issueType))
		g.log.Warn().
			Str("job_id", rec.JobID).
			Str("issue_type", string(issueType)).
			Str("goal_type", string(rec.GoalType)).
			Str("reason", reason).
			Msg("goal unfulfilled")
	}

	// Rolling counters are a side store; losing them never corrupts the record.
	if g.counters != nil {
		if err := g.counters.IncrDaily(ctx, rec.Handler, fulfilled); err != nil {
			g.log.Debug().Err(err).Msg("goal tracker: counter update failed")
		}
	}
}

// classifyIssueType maps the response and verdict reason onto the fixed
// issue-type decision tree.
func classifyIssueType(resp *model.AgentResponse, reason string) model.IssueType {
	reasonLower := strings.ToLower(reason)
	switch {
	case !resp.Success:
		return model.IssueHardFailure
	case strings.Contains(reasonLower, "too short") || strings.Contains(reasonLower, "length"):
		return model.IssueEmptyOutput
	case strings.Contains(reasonLower, "failure signal"):
		return model.IssueSoftFailure
	case strings.Contains(reasonLower, "no success signal"):
		return model.IssueWeakOutput
	}
	return model.IssueUnknown
}

func (g *goalTrackerUC) RecentIssues(ctx context.Context, limit int) ([]*model.GoalIssue, error) {
	return g.repo.RecentIssues(ctx, limit)
}

func (g *goalTrackerUC) IssuesForUser(ctx context.Context, userID string, limit int) ([]*model.GoalIssue, error) {
	return g.repo.IssuesForUser(ctx, userID, limit)
}

func (g *goalTrackerUC) ResolveIssue(ctx context.Context, issueID int64) error {
	return g.repo.ResolveIssue(ctx, issueID)
}

func (g *goalTrackerUC) Stats(ctx context.Context, days int) (*model.GoalStats, error) {
	return g.repo.Stats(ctx, days)
}

// truncate cuts s to at most n runes. Cutting on a byte boundary can split a
// multi-byte character, and Postgres rejects text containing invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
