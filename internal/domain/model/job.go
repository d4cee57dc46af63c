package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending      JobStatus = "pending"
	JobStatusInProgress   JobStatus = "in_progress"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusWaitingHuman JobStatus = "waiting_human"
)

// Payload keys every producer fills in. Anything else is handler-specific.
const (
	PayloadText     = "text"
	PayloadUserID   = "user_id"
	PayloadSource   = "source"
	PayloadGoalType = "goal_type"
)

// FailureDetail is the immutable record of one failed attempt.
type FailureDetail struct {
	Timestamp    time.Time              `json:"timestamp"`
	Attempt      int                    `json:"attempt"`
	Handler      string                 `json:"handler"`
	ErrorMessage string                 `json:"error_message"`
	Trace        string                 `json:"trace,omitempty"`
	Payload      map[string]interface{} `json:"payload"`
}

// Attempt is one hop in a job's history: either a success entry
// (Handler + Output summary) or a failure entry carrying a FailureDetail.
type Attempt struct {
	Handler string         `json:"handler"`
	Output  string         `json:"output,omitempty"`
	Failure *FailureDetail `json:"failure,omitempty"`
}

// Job is the unit of dispatchable work. The JSON encoding of this struct is
// the queue wire format; producers and workers must agree on it.
type Job struct {
	ID         string                 `json:"id"`
	Status     JobStatus              `json:"status"`
	Handler    string                 `json:"handler"`
	Payload    map[string]interface{} `json:"payload"`
	History    []Attempt              `json:"history"`
	RetryCount int                    `json:"retry_count"`
	MaxRetries int                    `json:"max_retries"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func NewJob(handler string, payload map[string]interface{}, maxRetries int) *Job {
	now := time.Now()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Job{
		ID:         uuid.NewString(),
		Status:     JobStatusPending,
		Handler:    handler,
		Payload:    payload,
		History:    []Attempt{},
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Terminal reports whether the job can no longer change status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusWaitingHuman
}

func (j *Job) Text() string   { return j.payloadString(PayloadText) }
func (j *Job) UserID() string { return j.payloadString(PayloadUserID) }
func (j *Job) Source() string { return j.payloadString(PayloadSource) }

func (j *Job) payloadString(key string) string {
	if j.Payload == nil {
		return ""
	}
	if v, ok := j.Payload[key].(string); ok {
		return v
	}
	return ""
}

// FailureHistory extracts just the failed hops, in order.
func (j *Job) FailureHistory() []FailureDetail {
	var out []FailureDetail
	for _, a := range j.History {
		if a.Failure != nil {
			out = append(out, *a.Failure)
		}
	}
	return out
}
