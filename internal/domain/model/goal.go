package model

import "time"

// GoalType is the closed-set classification of inferred user intent.
type GoalType string

const (
	GoalSaveKnowledge   GoalType = "SAVE_KNOWLEDGE"
	GoalSearchKnowledge GoalType = "SEARCH_KNOWLEDGE"
	GoalSaveURL         GoalType = "SAVE_URL"
	GoalSaveYoutube     GoalType = "SAVE_YOUTUBE"
	GoalSaveTweet       GoalType = "SAVE_TWEET"
	GoalResearch        GoalType = "RESEARCH"
	GoalWriteContent    GoalType = "WRITE_CONTENT"
	GoalCodeGeneration  GoalType = "CODE_GENERATION"
	GoalUnknown         GoalType = "UNKNOWN"
)

// Fulfillment is a tri-state verdict: 0 unknown, 1 fulfilled, -1 unfulfilled.
type Fulfillment int

const (
	FulfillmentUnknown     Fulfillment = 0
	FulfillmentFulfilled   Fulfillment = 1
	FulfillmentUnfulfilled Fulfillment = -1
)

type IssueType string

const (
	IssueHardFailure IssueType = "hard_failure"
	IssueEmptyOutput IssueType = "empty_output"
	IssueSoftFailure IssueType = "soft_failure"
	IssueWeakOutput  IssueType = "weak_output"
	IssueUnknown     IssueType = "unknown"
)

// GoalRecord tracks one job's inferred goal and its eventual verdict.
type GoalRecord struct {
	JobID           string
	UserID          string
	Source          string
	GoalType        GoalType
	Handler         string
	UserInput       string
	Fulfilled       Fulfillment
	FulfillmentNote string
	OutputLength    int
	DurationSeconds int
	RetryCount      int
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// GoalIssue is appended for every unfulfilled goal.
type GoalIssue struct {
	ID            int64
	GoalID        string
	IssueType     IssueType
	Details       map[string]interface{}
	UserInput     string
	HandlerOutput string
	Resolved      bool
	CreatedAt     time.Time

	// Joined from the goal record for read APIs.
	Handler         string
	GoalType        GoalType
	FulfillmentNote string
}

// HandlerStats is the per-handler slice of a GoalStats breakdown.
type HandlerStats struct {
	Total     int
	Fulfilled int
	Rate      float64
}

// GoalStats aggregates fulfillment over a trailing window.
type GoalStats struct {
	Total           int
	Fulfilled       int
	Unfulfilled     int
	FulfillmentRate float64
	PerHandler      map[string]HandlerStats
	CommonIssues    map[IssueType]int
}
