//go:build !integration

package worker_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/adapter"
	"brain-orchestrator/internal/handler"
	"brain-orchestrator/internal/worker"
)

type workerDeps struct {
	queue *MemQueue
	goals *FakeGoalTracker
	web   *MemDeliverer
	w     *worker.Worker
}

func newWorkerDeps(t *testing.T, handlers ...handler.Handler) *workerDeps {
	t.Helper()
	queue := NewMemQueue()
	goals := NewFakeGoalTracker()
	web := NewMemDeliverer("web", 4000)
	w := worker.New(queue, queue, handler.NewRegistry(handlers...), goals,
		[]adapter.Deliverer{web}, worker.Options{MaxRetries: 3}, newTestLogger())
	return &workerDeps{queue: queue, goals: goals, web: web, w: w}
}

func staticHandler(name string, resp *model.AgentResponse, err error) handler.Handler {
	return handler.Func{
		HandlerName: name,
		Fn: func(context.Context, map[string]interface{}) (*model.AgentResponse, error) {
			return resp, err
		},
	}
}

func basePayload() map[string]interface{} {
	return map[string]interface{}{
		model.PayloadText:   "save this note",
		model.PayloadUserID: "u1",
		model.PayloadSource: "web",
	}
}

func TestWorker_ProcessOne_Success(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler("archivist",
		&model.AgentResponse{Success: true, Output: "Saved. Tagged under #notes."}, nil))

	job := model.NewJob("archivist", basePayload(), 3)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusCompleted)
	}
	if !job.Terminal() {
		t.Error("completed job must be terminal")
	}
	if job.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", job.RetryCount)
	}
	if len(job.History) != 1 || job.History[0].Output == "" {
		t.Errorf("history = %+v", job.History)
	}
	if got := deps.goals.Recorded(); len(got) != 1 || got[0] != job.ID {
		t.Errorf("recorded = %v", got)
	}
	if got := deps.goals.Evaluated(); len(got) != 1 || got[0] != job.ID {
		t.Errorf("evaluated = %v", got)
	}
	if texts := deps.web.Texts(); len(texts) != 1 || texts[0] != "Saved. Tagged under #notes." {
		t.Errorf("delivered = %v", texts)
	}
	if len(deps.queue.Jobs()) != 0 {
		t.Error("no jobs should be queued after a plain success")
	}
}

func TestWorker_ProcessOne_FailureRequeues(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler("archivist",
		&model.AgentResponse{Success: false, Error: "backend down"}, nil))

	job := model.NewJob("archivist", basePayload(), 3)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusPending {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusPending)
	}
	if job.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", job.RetryCount)
	}
	queued := deps.queue.Jobs()
	if len(queued) != 1 || queued[0].ID != job.ID {
		t.Fatalf("queued = %+v", queued)
	}
	if len(job.History) != 1 || job.History[0].Failure == nil {
		t.Fatalf("history = %+v", job.History)
	}
	if job.History[0].Failure.ErrorMessage != "backend down" {
		t.Errorf("failure message = %q", job.History[0].Failure.ErrorMessage)
	}
	if job.History[0].Failure.Attempt != 1 {
		t.Errorf("failure attempt = %d, want 1", job.History[0].Failure.Attempt)
	}
}

func TestWorker_RetryExhaustionEscalates(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler("content_saver",
		&model.AgentResponse{Success: false, Error: "connection timeout"}, nil))

	job := model.NewJob("content_saver", basePayload(), 3)

	// Drive the job through the queue until it stops being requeued.
	deps.w.ProcessOne(ctx, job)
	for i := 0; i < 2; i++ {
		requeued, err := deps.queue.Dequeue(ctx, 0)
		if err != nil {
			t.Fatalf("expected a requeued job on round %d: %v", i, err)
		}
		deps.w.ProcessOne(ctx, requeued)
		job = requeued
	}

	if job.Status != model.JobStatusWaitingHuman {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusWaitingHuman)
	}
	if job.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", job.RetryCount)
	}
	if !strings.HasPrefix(deps.goals.UnfulfilledReason(job.ID), "Hard failure:") {
		t.Errorf("unfulfilled reason = %q", deps.goals.UnfulfilledReason(job.ID))
	}

	queued := deps.queue.Jobs()
	if len(queued) != 1 {
		t.Fatalf("queued = %d jobs, want exactly one rescue job", len(queued))
	}
	rescueJob := queued[0]
	if rescueJob.Handler != handler.RescueName {
		t.Fatalf("queued handler = %s, want %s", rescueJob.Handler, handler.RescueName)
	}
	if rescueJob.MaxRetries != 1 {
		t.Errorf("rescue max retries = %d, want 1", rescueJob.MaxRetries)
	}
	if rescueJob.ID == job.ID {
		t.Error("rescue job must have its own id")
	}

	rc, ok := rescueJob.Payload[handler.PayloadRescueContext].(*model.RescueContext)
	if !ok {
		t.Fatalf("rescue context missing or wrong type: %T", rescueJob.Payload[handler.PayloadRescueContext])
	}
	if rc.JobID != job.ID || rc.FailedHandler != "content_saver" || rc.FailureCount != 3 {
		t.Errorf("rescue context = %+v", rc)
	}
	if len(rc.FailureHistory) != 3 {
		t.Errorf("failure history = %d entries, want 3", len(rc.FailureHistory))
	}
	for i, f := range rc.FailureHistory {
		if f.Attempt != i+1 {
			t.Errorf("history[%d].Attempt = %d, want %d", i, f.Attempt, i+1)
		}
	}
}

func TestWorker_FailedRescueIsTerminal(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler(handler.RescueName,
		&model.AgentResponse{Success: false, Error: "diagnosis unusable"}, nil))

	job := model.NewJob(handler.RescueName, basePayload(), 1)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusWaitingHuman {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusWaitingHuman)
	}
	if len(deps.queue.Jobs()) != 0 {
		t.Error("a failed rescue job must never spawn another rescue job")
	}
}

func TestWorker_UnresolvableHandlerFails(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t) // empty registry

	job := model.NewJob("nonexistent", basePayload(), 3)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusFailed)
	}
	if job.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0 (no retries for config failures)", job.RetryCount)
	}
	if len(deps.queue.Jobs()) != 0 {
		t.Error("config failures must not requeue or escalate")
	}
	if !strings.HasPrefix(deps.goals.UnfulfilledReason(job.ID), "Configuration failure:") {
		t.Errorf("unfulfilled reason = %q", deps.goals.UnfulfilledReason(job.ID))
	}
}

func TestWorker_PanicTakesRetryPath(t *testing.T) {
	ctx := context.Background()
	panicky := handler.Func{
		HandlerName: "archivist",
		Fn: func(context.Context, map[string]interface{}) (*model.AgentResponse, error) {
			panic("nil map write")
		},
	}
	deps := newWorkerDeps(t, panicky)

	job := model.NewJob("archivist", basePayload(), 3)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusPending {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusPending)
	}
	if len(job.History) != 1 || job.History[0].Failure == nil {
		t.Fatalf("history = %+v", job.History)
	}
	f := job.History[0].Failure
	if !strings.Contains(f.ErrorMessage, "handler panic") {
		t.Errorf("failure message = %q", f.ErrorMessage)
	}
	if f.Trace == "" {
		t.Error("panic failure must carry a stack trace")
	}
}

func TestWorker_NilResponseIsFailure(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler("archivist", nil, nil))

	job := model.NewJob("archivist", basePayload(), 3)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusPending {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusPending)
	}
	if len(job.History) != 1 || job.History[0].Failure == nil {
		t.Fatalf("history = %+v", job.History)
	}
}

func TestWorker_ChainingEnqueuesSuccessor(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler("rescue",
		&model.AgentResponse{
			Success:     true,
			Output:      "Rescue successful.",
			NextHandler: "content_saver",
			Data:        map[string]interface{}{"timeout": 60},
		}, nil))

	job := model.NewJob("rescue", basePayload(), 1)
	job.RetryCount = 0
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusCompleted)
	}
	queued := deps.queue.Jobs()
	if len(queued) != 1 {
		t.Fatalf("queued = %d jobs, want 1 successor", len(queued))
	}
	next := queued[0]
	if next.Handler != "content_saver" {
		t.Errorf("successor handler = %s", next.Handler)
	}
	if next.ID == job.ID {
		t.Error("successor must have a fresh id")
	}
	if next.RetryCount != 0 {
		t.Errorf("successor retry count = %d, want 0", next.RetryCount)
	}
	if next.MaxRetries != 3 {
		t.Errorf("successor max retries = %d, want the worker default of 3", next.MaxRetries)
	}
	if next.Payload["timeout"] != 60 {
		t.Errorf("successor payload missing data overlay: %+v", next.Payload)
	}
	if next.Payload[model.PayloadUserID] != "u1" {
		t.Error("successor payload must inherit the predecessor's entries")
	}
}

func TestWorker_ChainingDropsRescueContext(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler(handler.RescueName,
		&model.AgentResponse{
			Success:     true,
			Output:      "Rescue successful.",
			NextHandler: "content_saver",
			Data:        map[string]interface{}{"timeout": 60},
		}, nil))

	payload := basePayload()
	payload[handler.PayloadRescueContext] = &model.RescueContext{
		JobID:         "job-dead",
		FailedHandler: "content_saver",
	}
	job := model.NewJob(handler.RescueName, payload, 1)
	deps.w.ProcessOne(ctx, job)

	queued := deps.queue.Jobs()
	if len(queued) != 1 {
		t.Fatalf("queued = %d jobs, want 1 successor", len(queued))
	}
	next := queued[0]
	if _, ok := next.Payload[handler.PayloadRescueContext]; ok {
		t.Error("successor payload must not carry the rescue context of the job that spawned it")
	}
	if next.Payload[model.PayloadUserID] != "u1" {
		t.Error("successor payload must still inherit ordinary entries")
	}
}

func TestWorker_DeliveryErrorsDoNotFailJob(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t, staticHandler("archivist",
		&model.AgentResponse{Success: true, Output: "Saved."}, nil))
	deps.web.DeliverFunc = func(context.Context, string, string) error {
		return errors.New("socket closed")
	}

	job := model.NewJob("archivist", basePayload(), 3)
	deps.w.ProcessOne(ctx, job)

	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s, want %s despite delivery failure", job.Status, model.JobStatusCompleted)
	}
}

func TestWorker_ChunkedDelivery(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("z", 250)
	queue := NewMemQueue()
	goals := NewFakeGoalTracker()
	tiny := NewMemDeliverer("web", 100)
	w := worker.New(queue, queue,
		handler.NewRegistry(staticHandler("writer", &model.AgentResponse{Success: true, Output: long}, nil)),
		goals, []adapter.Deliverer{tiny}, worker.Options{MaxRetries: 3}, newTestLogger())

	job := model.NewJob("writer", basePayload(), 3)
	w.ProcessOne(ctx, job)

	texts := tiny.Texts()
	if len(texts) < 3 {
		t.Fatalf("delivered %d chunks, want at least 3", len(texts))
	}
	if strings.HasPrefix(texts[0], "(continued") {
		t.Error("first chunk must not be marked continued")
	}
	for _, c := range texts[1:] {
		if !strings.HasPrefix(c, "(continued") {
			t.Errorf("chunk not marked continued: %q", c)
		}
	}
}

func TestWorker_Enqueue(t *testing.T) {
	ctx := context.Background()
	deps := newWorkerDeps(t)

	job, err := deps.w.Enqueue(ctx, "archivist", basePayload())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("status = %s, want %s", job.Status, model.JobStatusPending)
	}
	if job.MaxRetries != 3 {
		t.Errorf("max retries = %d, want the worker default of 3", job.MaxRetries)
	}
	if queued := deps.queue.Jobs(); len(queued) != 1 || queued[0].ID != job.ID {
		t.Errorf("queued = %+v", queued)
	}
}
