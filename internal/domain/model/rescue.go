package model

import "time"

type RecoveryStrategy string

const (
	RecoveryRetryWithModification RecoveryStrategy = "retry_with_modification"
	RecoveryRouteToDifferentAgent RecoveryStrategy = "route_to_different_agent"
	RecoveryApplyCodePatch        RecoveryStrategy = "apply_code_patch"
	RecoverySkipStep              RecoveryStrategy = "skip_step"
	RecoveryEscalateToHuman       RecoveryStrategy = "escalate_to_human"
)

// ValidStrategy reports whether s is one of the five known strategies.
func ValidStrategy(s RecoveryStrategy) bool {
	switch s {
	case RecoveryRetryWithModification, RecoveryRouteToDifferentAgent,
		RecoveryApplyCodePatch, RecoverySkipStep, RecoveryEscalateToHuman:
		return true
	}
	return false
}

// Rescue action types the recovery executor understands.
const (
	ActionModifyPayload  = "modify_payload"
	ActionChangeAgent    = "change_agent"
	ActionInstallPackage = "install_package"
	ActionCreatePR       = "create_pr"
)

type RescueAction struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details"`
	Reason  string                 `json:"reason"`
}

// RescueDiagnosis is the parsed output of the reasoning-service call.
type RescueDiagnosis struct {
	RootCause       string           `json:"root_cause"`
	CanAutoFix      bool             `json:"can_auto_fix"`
	Strategy        RecoveryStrategy `json:"recovery_strategy"`
	Actions         []RescueAction   `json:"actions"`
	Confidence      float64          `json:"confidence"`
	Explanation     string           `json:"explanation"`
	IncidentSummary string           `json:"pr_summary,omitempty"`
}

// RescueContext is a read-only snapshot of a failed job, built by the worker
// at escalation time and carried inside the rescue job's payload.
type RescueContext struct {
	JobID           string                 `json:"job_id"`
	Goal            string                 `json:"goal"`
	FailedHandler   string                 `json:"failed_handler"`
	FailureCount    int                    `json:"failure_count"`
	FailureHistory  []FailureDetail        `json:"failure_history"`
	OriginalPayload map[string]interface{} `json:"original_payload"`
}

// IncidentReport is the escalation artifact persisted for human review.
// Its body schema is stable: downstream tooling parses these files.
type IncidentReport struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Title     string    `json:"title"`
	RootCause string    `json:"root_cause"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
