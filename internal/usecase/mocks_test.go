//go:build !integration

package usecase_test

import (
	"context"
	"os"
	"sync"

	"brain-orchestrator/internal/domain"
	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

// MockGoalRepo is an in-memory GoalRepository with overridable hooks.
type MockGoalRepo struct {
	mu      sync.Mutex
	records map[string]*model.GoalRecord
	issues  []*model.GoalIssue

	SaveRecordFunc  func(ctx context.Context, rec *model.GoalRecord) error
	AppendIssueFunc func(ctx context.Context, issue *model.GoalIssue) error
}

func NewMockGoalRepo() *MockGoalRepo {
	return &MockGoalRepo{records: make(map[string]*model.GoalRecord)}
}

func (m *MockGoalRepo) SaveRecord(ctx context.Context, rec *model.GoalRecord) error {
	if m.SaveRecordFunc != nil {
		return m.SaveRecordFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.JobID] = &cp
	return nil
}

func (m *MockGoalRepo) FindRecord(_ context.Context, jobID string) (*model.GoalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockGoalRepo) CompleteRecord(_ context.Context, rec *model.GoalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.JobID] = &cp
	return nil
}

func (m *MockGoalRepo) AppendIssue(ctx context.Context, issue *model.GoalIssue) error {
	if m.AppendIssueFunc != nil {
		return m.AppendIssueFunc(ctx, issue)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *issue
	cp.ID = int64(len(m.issues) + 1)
	m.issues = append(m.issues, &cp)
	return nil
}

func (m *MockGoalRepo) RecentIssues(_ context.Context, limit int) ([]*model.GoalIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.GoalIssue, 0, limit)
	for i := len(m.issues) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.issues[i])
	}
	return out, nil
}

func (m *MockGoalRepo) IssuesForUser(_ context.Context, _ string, limit int) ([]*model.GoalIssue, error) {
	return m.RecentIssues(context.Background(), limit)
}

func (m *MockGoalRepo) ResolveIssue(_ context.Context, issueID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, is := range m.issues {
		if is.ID == issueID {
			is.Resolved = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockGoalRepo) Stats(_ context.Context, _ int) (*model.GoalStats, error) {
	return &model.GoalStats{}, nil
}

// Record returns the stored record for jobID, nil if absent.
func (m *MockGoalRepo) Record(jobID string) *model.GoalRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[jobID]
}

// Issues returns all appended issues.
func (m *MockGoalRepo) Issues() []*model.GoalIssue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.GoalIssue, len(m.issues))
	copy(out, m.issues)
	return out
}

// MockGoalCounters records daily-counter calls.
type MockGoalCounters struct {
	mu    sync.Mutex
	calls int

	IncrDailyFunc func(ctx context.Context, handler string, fulfilled bool) error
}

func (m *MockGoalCounters) IncrDaily(ctx context.Context, handler string, fulfilled bool) error {
	if m.IncrDailyFunc != nil {
		return m.IncrDailyFunc(ctx, handler, fulfilled)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil
}

func (m *MockGoalCounters) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockReasoningAdapter scripts the reasoning-service replies.
type MockReasoningAdapter struct {
	ChatJSONFunc    func(ctx context.Context, mdl string, msgs []adapter.Message) (string, error)
	CountTokensFunc func(ctx context.Context, mdl string, msgs []adapter.Message) (int, error)
}

func (m *MockReasoningAdapter) ChatJSON(ctx context.Context, mdl string, msgs []adapter.Message) (string, error) {
	if m.ChatJSONFunc != nil {
		return m.ChatJSONFunc(ctx, mdl, msgs)
	}
	return "{}", nil
}

func (m *MockReasoningAdapter) CountTokens(ctx context.Context, mdl string, msgs []adapter.Message) (int, error) {
	if m.CountTokensFunc != nil {
		return m.CountTokensFunc(ctx, mdl, msgs)
	}
	total := 0
	for _, msg := range msgs {
		total += len(msg.Content) / 4
	}
	return total, nil
}

// MockIncidentStore keeps reports in memory.
type MockIncidentStore struct {
	mu      sync.Mutex
	reports []*model.IncidentReport

	SaveFunc func(ctx context.Context, report *model.IncidentReport) error
}

func (m *MockIncidentStore) Save(ctx context.Context, report *model.IncidentReport) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, report)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *MockIncidentStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.reports))
	for _, r := range m.reports {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *MockIncidentStore) Reports() []*model.IncidentReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.IncidentReport, len(m.reports))
	copy(out, m.reports)
	return out
}
