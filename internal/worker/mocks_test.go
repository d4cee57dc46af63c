//go:build !integration

package worker_test

import (
	"context"
	"os"
	"sync"
	"time"

	"brain-orchestrator/internal/domain"
	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

// MemQueue is an in-memory FIFO standing in for the redis-backed queue.
type MemQueue struct {
	mu   sync.Mutex
	jobs []*model.Job

	marked  map[string]bool
	cleared map[string]bool
}

func NewMemQueue() *MemQueue {
	return &MemQueue{marked: make(map[string]bool), cleared: make(map[string]bool)}
}

func (q *MemQueue) Enqueue(_ context.Context, job *model.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *MemQueue) Dequeue(_ context.Context, _ time.Duration) (*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *MemQueue) Depth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func (q *MemQueue) MarkProcessing(_ context.Context, jobID string, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.marked[jobID] = true
	return nil
}

func (q *MemQueue) ClearProcessing(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cleared[jobID] = true
	return nil
}

// Jobs returns a snapshot of what is currently queued.
func (q *MemQueue) Jobs() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// FakeGoalTracker records tracker calls; Classify and Evaluate delegate to a
// real tracker so behavior stays truthful.
type FakeGoalTracker struct {
	real usecase.GoalTracker

	mu          sync.Mutex
	recorded    []string
	evaluated   []string
	unfulfilled map[string]string
}

func NewFakeGoalTracker() *FakeGoalTracker {
	return &FakeGoalTracker{
		real:        usecase.NewGoalTracker(noopGoalRepo{}, nil, newTestLogger()),
		unfulfilled: make(map[string]string),
	}
}

func (f *FakeGoalTracker) Classify(handler, text string) model.GoalType {
	return f.real.Classify(handler, text)
}

func (f *FakeGoalTracker) Record(_ context.Context, jobID, _, _ string, _ model.GoalType, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, jobID)
}

func (f *FakeGoalTracker) Evaluate(goalType model.GoalType, resp *model.AgentResponse) (bool, string) {
	return f.real.Evaluate(goalType, resp)
}

func (f *FakeGoalTracker) EvaluateAndRecord(_ context.Context, jobID string, _ *model.AgentResponse, _ time.Duration, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated = append(f.evaluated, jobID)
}

func (f *FakeGoalTracker) MarkUnfulfilled(_ context.Context, jobID, reason string, _ *model.AgentResponse, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unfulfilled[jobID] = reason
}

func (f *FakeGoalTracker) RecentIssues(context.Context, int) ([]*model.GoalIssue, error) {
	return nil, nil
}

func (f *FakeGoalTracker) IssuesForUser(context.Context, string, int) ([]*model.GoalIssue, error) {
	return nil, nil
}

func (f *FakeGoalTracker) ResolveIssue(context.Context, int64) error { return nil }

func (f *FakeGoalTracker) Stats(context.Context, int) (*model.GoalStats, error) {
	return &model.GoalStats{}, nil
}

func (f *FakeGoalTracker) Recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recorded...)
}

func (f *FakeGoalTracker) Evaluated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evaluated...)
}

func (f *FakeGoalTracker) UnfulfilledReason(jobID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unfulfilled[jobID]
}

// noopGoalRepo satisfies the repository so the embedded real tracker can run
// its pure methods; persistence paths are unused by the fake.
type noopGoalRepo struct{}

func (noopGoalRepo) SaveRecord(context.Context, *model.GoalRecord) error { return nil }
func (noopGoalRepo) FindRecord(context.Context, string) (*model.GoalRecord, error) {
	return nil, domain.ErrNotFound
}
func (noopGoalRepo) CompleteRecord(context.Context, *model.GoalRecord) error { return nil }
func (noopGoalRepo) AppendIssue(context.Context, *model.GoalIssue) error     { return nil }
func (noopGoalRepo) RecentIssues(context.Context, int) ([]*model.GoalIssue, error) {
	return nil, nil
}
func (noopGoalRepo) IssuesForUser(context.Context, string, int) ([]*model.GoalIssue, error) {
	return nil, nil
}
func (noopGoalRepo) ResolveIssue(context.Context, int64) error { return nil }
func (noopGoalRepo) Stats(context.Context, int) (*model.GoalStats, error) {
	return &model.GoalStats{}, nil
}

// MemDeliverer collects deliveries for one source.
type MemDeliverer struct {
	source  string
	maxSize int

	mu    sync.Mutex
	texts []string

	DeliverFunc func(ctx context.Context, userID, text string) error
}

func NewMemDeliverer(source string, maxSize int) *MemDeliverer {
	return &MemDeliverer{source: source, maxSize: maxSize}
}

func (d *MemDeliverer) Source() string      { return d.source }
func (d *MemDeliverer) MaxMessageSize() int { return d.maxSize }

func (d *MemDeliverer) Deliver(ctx context.Context, userID, text string) error {
	if d.DeliverFunc != nil {
		return d.DeliverFunc(ctx, userID, text)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return nil
}

func (d *MemDeliverer) Texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}
