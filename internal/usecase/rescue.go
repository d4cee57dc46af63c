package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/adapter"
	"brain-orchestrator/internal/domain/ports/repository"
	"brain-orchestrator/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ Rescue = (*rescueUC)(nil)

// Rescue diagnoses an exhausted job via the external reasoning service and
// either prepares a safe automated recovery or escalates to a human with a
// structured incident report. None of its methods return errors: every
// internal failure degrades to a conservative outcome.
type Rescue interface {
	Diagnose(ctx context.Context, rc *model.RescueContext) *model.RescueDiagnosis
	ShouldAutoFix(diag *model.RescueDiagnosis) bool
	Recover(ctx context.Context, diag *model.RescueDiagnosis, rc *model.RescueContext) (map[string]interface{}, string, []string)
	Escalate(ctx context.Context, rc *model.RescueContext, diag *model.RescueDiagnosis) *model.IncidentReport
}

const diagnosisSystemPrompt = "You are an expert systems engineer specializing in failure diagnosis and recovery. " +
	"Analyze failures carefully and propose safe, effective recovery strategies."

type rescueUC struct {
	ai            adapter.ReasoningAdapter
	incidents     repository.IncidentStore
	model         string
	promptBudget  int
	minConfidence float64
	log           *zerolog.Logger
}

func NewRescue(ai adapter.ReasoningAdapter, incidents repository.IncidentStore, reasoningModel string, promptBudget int, minConfidence float64, logger *zerolog.Logger) *rescueUC {
	if minConfidence <= 0 {
		minConfidence = 0.8
	}
	if promptBudget <= 0 {
		promptBudget = 8000
	}
	return &rescueUC{
		ai:            ai,
		incidents:     incidents,
		model:         reasoningModel,
		promptBudget:  promptBudget,
		minConfidence: minConfidence,
		log:           logger,
	}
}

// ShouldAutoFix is the decision rule: attempt auto-recovery only when the
// diagnosis says it can be fixed AND confidence clears the gate.
func (r *rescueUC) ShouldAutoFix(diag *model.RescueDiagnosis) bool {
	return diag.CanAutoFix && diag.Confidence >= r.minConfidence
}

// Diagnose formats the failure context into a structured prompt, calls the
// reasoning service with a constrained JSON response shape, and parses the
// result. It never returns an error: any transport or parse failure yields
// the canned escalate-to-human diagnosis.
func (r *rescueUC) Diagnose(ctx context.Context, rc *model.RescueContext) *model.RescueDiagnosis {
	prompt := r.buildPrompt(ctx, rc)

	start := time.Now()
	raw, err := r.ai.ChatJSON(ctx, r.model, []adapter.Message{
		{Role: "system", Content: diagnosisSystemPrompt},
		{Role: "user", Content: prompt},
	})
	metrics.ObserveDiagnosisLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		r.log.Error().Err(err).Str("job_id", rc.JobID).Msg("rescue: reasoning call failed")
		return r.fallbackDiagnosis(rc, fmt.Sprintf("Failed to diagnose (AI error: %v)", err))
	}

	diag, err := parseDiagnosis(raw)
	if err != nil {
		r.log.Error().Err(err).Str("job_id", rc.JobID).Msg("rescue: diagnosis parse failed")
		return r.fallbackDiagnosis(rc, fmt.Sprintf("Failed to diagnose (parse error: %v)", err))
	}
	return diag
}

func (r *rescueUC) fallbackDiagnosis(rc *model.RescueContext, rootCause string) *model.RescueDiagnosis {
	metrics.IncRescueOutcome(string(model.RecoveryEscalateToHuman), "fallback")
	lastError := "Unknown"
	if n := len(rc.FailureHistory); n > 0 {
		lastError = rc.FailureHistory[n-1].ErrorMessage
	}
	return &model.RescueDiagnosis{
		RootCause:       rootCause,
		CanAutoFix:      false,
		Strategy:        model.RecoveryEscalateToHuman,
		Confidence:      0,
		Explanation:     "AI diagnosis failed, escalating to human",
		IncidentSummary: fmt.Sprintf("Rescue diagnosis failed. Original error: %s", lastError),
	}
}

// parseDiagnosis decodes the reasoning output, defaulting every missing or
// invalid field conservatively.
func parseDiagnosis(raw string) (*model.RescueDiagnosis, error) {
	raw = stripFences(raw)

	var diag model.RescueDiagnosis
	if err := json.Unmarshal([]byte(raw), &diag); err != nil {
		return nil, fmt.Errorf("decode diagnosis: %w", err)
	}
	if diag.RootCause == "" {
		diag.RootCause = "Unknown"
	}
	if !model.ValidStrategy(diag.Strategy) {
		diag.Strategy = model.RecoveryEscalateToHuman
		diag.CanAutoFix = false
	}
	if diag.Confidence < 0 || diag.Confidence > 1 {
		diag.Confidence = 0
	}
	return &diag, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the response-format constraint.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func (r *rescueUC) buildPrompt(ctx context.Context, rc *model.RescueContext) string {
	history := rc.FailureHistory
	for {
		prompt := renderPrompt(rc, history)
		tokens, err := r.ai.CountTokens(ctx, r.model, []adapter.Message{{Role: "user", Content: prompt}})
		if err != nil || tokens <= r.promptBudget || len(history) <= 1 {
			return prompt
		}
		// Over budget: drop the oldest attempt and re-render.
		history = history[1:]
	}
}

func renderPrompt(rc *model.RescueContext, history []model.FailureDetail) string {
	var hb strings.Builder
	for _, f := range history {
		trace := f.Trace
		if trace == "" {
			trace = "N/A"
		}
		fmt.Fprintf(&hb, "### Attempt %d\n**Handler**: %s\n**Time**: %s\n**Error**: %s\n**Trace**:\n```\n%s\n```\n\n",
			f.Attempt, f.Handler, f.Timestamp.Format(time.RFC3339), f.ErrorMessage, trace)
	}

	payloadJSON, err := json.MarshalIndent(rc.OriginalPayload, "", "  ")
	if err != nil {
		payloadJSON = []byte("{}")
	}

	return fmt.Sprintf(`You are a Rescue Agent in a self-healing workflow system.

## MISSION
A task has failed %d times. Your job is to:
1. Diagnose the root cause
2. Determine if it can be auto-fixed
3. Propose a recovery strategy
4. Provide specific actions to take

## WORKFLOW CONTEXT

**Goal**: %s
**Failed Handler**: %s
**Job ID**: %s

**Original Input**:
`+"```json\n%s\n```"+`

## FAILURE HISTORY

%s
## AVAILABLE RECOVERY STRATEGIES

1. **retry_with_modification**: Modify parameters and retry (fix malformed URLs, adjust timeouts, use fallback values)
2. **route_to_different_agent**: Route to a different handler (original handler is wrong for this task, or a simpler approach exists)
3. **apply_code_patch**: Apply a code fix — use with extreme caution, only if safe and reversible (e.g. install a missing dependency)
4. **skip_step**: Skip this step if non-critical (task is optional, workflow can continue without it)
5. **escalate_to_human**: Create a detailed issue report (bug requires code changes, complex issue needing human judgment, safety concerns)

## YOUR ANALYSIS

Respond in JSON format:

`+"```json"+`
{
  "root_cause": "Clear explanation of what went wrong",
  "can_auto_fix": true,
  "recovery_strategy": "retry_with_modification|route_to_different_agent|apply_code_patch|skip_step|escalate_to_human",
  "actions": [
    {"type": "modify_payload|change_agent|install_package|create_pr", "details": {}, "reason": "Why this action helps"}
  ],
  "confidence": 0.0,
  "explanation": "Detailed explanation of diagnosis and recovery plan",
  "pr_summary": "Only if escalating - issue description ready for review"
}
`+"```"+`

Be practical and conservative:
- Prefer simple fixes over complex ones
- Only auto-fix if confidence > 0.8
- When in doubt, escalate to human
- Safety first - don't break things worse

Now analyze this failure:`,
		rc.FailureCount, rc.Goal, rc.FailedHandler, rc.JobID, payloadJSON, hb.String())
}

// Recover applies the proposed actions and returns the modified payload, the
// handler the job should be requeued to (empty means keep the original), and
// a human-readable summary of what was applied. The actual requeue happens in
// the worker loop, not here. Unknown action types are logged and skipped.
func (r *rescueUC) Recover(ctx context.Context, diag *model.RescueDiagnosis, rc *model.RescueContext) (map[string]interface{}, string, []string) {
	payload := make(map[string]interface{}, len(rc.OriginalPayload))
	for k, v := range rc.OriginalPayload {
		payload[k] = v
	}

	nextHandler := ""
	var applied []string

	for _, action := range diag.Actions {
		switch action.Type {
		case model.ActionModifyPayload:
			for k, v := range action.Details {
				payload[k] = v
			}
			applied = append(applied, fmt.Sprintf("Modified job payload: %s", action.Reason))

		case model.ActionChangeAgent:
			if name, ok := action.Details["new_agent"].(string); ok && name != "" {
				nextHandler = name
			}
			applied = append(applied, fmt.Sprintf("Routing to different handler: %s - %s", nextHandler, action.Reason))

		case model.ActionInstallPackage:
			pkg, _ := action.Details["package"].(string)
			applied = append(applied, fmt.Sprintf("Would install package: %s (requires manual approval)", pkg))

		case model.ActionCreatePR:
			applied = append(applied, fmt.Sprintf("Filed issue report: %s", action.Reason))

		default:
			r.log.Warn().Str("action_type", action.Type).Str("job_id", rc.JobID).Msg("rescue: unknown action type skipped")
			if action.Reason != "" {
				applied = append(applied, action.Reason)
			}
		}
	}

	metrics.IncRescueOutcome(string(diag.Strategy), "auto_fix")
	return payload, nextHandler, applied
}

// Escalate synthesizes the incident report and persists it. It never returns
// an error: internal failures degrade to a minimal report containing at least
// the root cause and job id.
func (r *rescueUC) Escalate(ctx context.Context, rc *model.RescueContext, diag *model.RescueDiagnosis) *model.IncidentReport {
	report := buildIncidentReport(rc, diag)
	if err := r.incidents.Save(ctx, report); err != nil {
		r.log.Error().Err(err).Str("incident_id", report.ID).Msg("rescue: incident persist failed")
		// Degrade to the minimal in-memory report; the caller still gets an id
		// to surface to the user.
		report.Body = fmt.Sprintf("# %s\n\nRoot cause: %s\nJob ID: %s\n", report.Title, report.RootCause, rc.JobID)
	}
	metrics.IncRescueOutcome(string(diag.Strategy), "escalated")
	return report
}

func buildIncidentReport(rc *model.RescueContext, diag *model.RescueDiagnosis) *model.IncidentReport {
	now := time.Now()
	id := fmt.Sprintf("RESCUE-%s", ulid.Make().String())

	var latest *model.FailureDetail
	if n := len(rc.FailureHistory); n > 0 {
		latest = &rc.FailureHistory[n-1]
	}

	latestError := "Unknown"
	if latest != nil {
		latestError = latest.ErrorMessage
	}

	title := fmt.Sprintf("%s fails: %s", rc.FailedHandler, truncate(diag.RootCause, 80))

	payloadJSON, err := json.MarshalIndent(rc.OriginalPayload, "", "  ")
	if err != nil {
		payloadJSON = []byte("{}")
	}

	reproSteps := []string{
		fmt.Sprintf("1. User request: %s", rc.Goal),
		fmt.Sprintf("2. System routes to handler: %s", rc.FailedHandler),
		fmt.Sprintf("3. Handler processes with payload: %s", payloadJSON),
		fmt.Sprintf("4. Error occurs: %s", latestError),
		fmt.Sprintf("5. Failed %d times with same error", rc.FailureCount),
	}

	var logs strings.Builder
	if latest != nil {
		trace := latest.Trace
		if trace == "" {
			trace = "N/A"
		}
		fmt.Fprintf(&logs, "**Latest Error**:\n```\n%s\n```\n\n**Trace**:\n```\n%s\n```\n\n**Full Failure History**:\n", latest.ErrorMessage, trace)
		for i, f := range rc.FailureHistory {
			fmt.Fprintf(&logs, "\nAttempt %d (%s):\n%s\n", i+1, f.Timestamp.Format(time.RFC3339), f.ErrorMessage)
		}
	}

	suggestedFix := diag.IncidentSummary
	if suggestedFix == "" {
		suggestedFix = diag.Explanation
	}

	impact := fmt.Sprintf(
		"**Severity**: High (task completely fails after %d attempts)\n"+
			"**Frequency**: Unknown (first occurrence or recurring)\n"+
			"**Users Affected**: At least 1 (Job ID: %s)\n"+
			"**Component**: %s\n",
		rc.FailureCount, rc.JobID, rc.FailedHandler)

	body := fmt.Sprintf(`# %s

**Issue ID**: %s
**Workflow**: %s
**Failed Handler**: %s
**Failure Rate**: %d/%d attempts

---

## Summary

%s

## Root Cause Analysis

%s

## Reproduction Steps

%s

## Error Logs

%s

## AI-Suggested Fix

%s

## Impact Assessment

%s

## Related Components

- handler: %s
- worker loop
- job contracts

## Testing Checklist

- [ ] Reproduce the error with original payload
- [ ] Verify the fix resolves the issue
- [ ] Test with edge cases
- [ ] Ensure no regression in other workflows
- [ ] Update error handling/logging if needed

---

**Created by**: rescue subsystem
**Timestamp**: %s
**Job ID**: %s
**Confidence**: %.0f%%
`,
		title, id, rc.Goal, rc.FailedHandler, rc.FailureCount, rc.FailureCount,
		diag.RootCause, diag.Explanation, strings.Join(reproSteps, "\n"), logs.String(),
		suggestedFix, impact, rc.FailedHandler, now.Format(time.RFC3339), rc.JobID,
		diag.Confidence*100)

	return &model.IncidentReport{
		ID:        id,
		JobID:     rc.JobID,
		Title:     title,
		RootCause: diag.RootCause,
		Body:      body,
		CreatedAt: now,
	}
}
