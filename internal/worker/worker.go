package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"brain-orchestrator/internal/domain"
	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/adapter"
	"brain-orchestrator/internal/domain/ports/repository"
	"brain-orchestrator/internal/handler"
	"brain-orchestrator/internal/infra/logging"
	"brain-orchestrator/internal/infra/metrics"
	"brain-orchestrator/internal/usecase"

	"github.com/rs/zerolog"
)

// Worker consumes the shared job queue. Each loop fully processes one job —
// including any reasoning-service call it triggers — before popping the next.
type Worker struct {
	queue      repository.JobQueue
	liveness   repository.LivenessIndex
	registry   *handler.Registry
	goals      usecase.GoalTracker
	deliverers map[string]adapter.Deliverer

	maxRetries     int
	dequeueTimeout time.Duration
	processingTTL  time.Duration

	log *zerolog.Logger
}

type Options struct {
	MaxRetries     int
	DequeueTimeout time.Duration
	ProcessingTTL  time.Duration
}

func New(
	queue repository.JobQueue,
	liveness repository.LivenessIndex,
	registry *handler.Registry,
	goals usecase.GoalTracker,
	deliverers []adapter.Deliverer,
	opts Options,
	logger *zerolog.Logger,
) *Worker {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.DequeueTimeout <= 0 {
		opts.DequeueTimeout = 5 * time.Second
	}
	if opts.ProcessingTTL <= 0 {
		opts.ProcessingTTL = 5 * time.Minute
	}
	bySource := make(map[string]adapter.Deliverer, len(deliverers))
	for _, d := range deliverers {
		bySource[d.Source()] = d
	}
	return &Worker{
		queue:          queue,
		liveness:       liveness,
		registry:       registry,
		goals:          goals,
		deliverers:     bySource,
		maxRetries:     opts.MaxRetries,
		dequeueTimeout: opts.DequeueTimeout,
		processingTTL:  opts.ProcessingTTL,
		log:            logger,
	}
}

// Enqueue submits a new job. Exposed so producers (front door, tests) share
// the worker's default retry budget.
func (w *Worker) Enqueue(ctx context.Context, handlerName string, payload map[string]interface{}) (*model.Job, error) {
	job := model.NewJob(handlerName, payload, w.maxRetries)
	if err := w.queue.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Start runs n consumer loops until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.run(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	w.log.Info().Int("worker", id).Msg("worker started, listening for jobs")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Int("worker", id).Msg("worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, domain.ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Int("worker", id).Msg("dequeue failed")
			continue
		}

		if depth, derr := w.queue.Depth(ctx); derr == nil {
			metrics.SetQueueDepth(depth)
		}
		w.ProcessOne(ctx, job)
	}
}

// ProcessOne runs the full lifecycle for a single popped job. The job is
// owned exclusively by this worker until requeued or terminal.
func (w *Worker) ProcessOne(ctx context.Context, job *model.Job) {
	ctx = logging.WithJobID(ctx, job.ID)
	ctx = logging.WithHandler(ctx, job.Handler)
	if uid := job.UserID(); uid != "" {
		ctx = logging.WithUserID(ctx, uid)
	}
	log := *logging.With(ctx, w.log)
	defer logging.TraceDuration(&log, "Worker.ProcessOne")()

	// Best-effort liveness marker; losing it never corrupts job state.
	if err := w.liveness.MarkProcessing(ctx, job.ID, w.processingTTL); err != nil {
		log.Debug().Err(err).Msg("liveness mark failed")
	}
	defer func() {
		if err := w.liveness.ClearProcessing(ctx, job.ID); err != nil {
			log.Debug().Err(err).Msg("liveness clear failed")
		}
	}()

	job.Status = model.JobStatusInProgress
	job.UpdatedAt = time.Now()
	log.Info().Int("retry", job.RetryCount).Msg("processing job")

	goalType := w.inferGoalType(job)
	w.goals.Record(ctx, job.ID, job.UserID(), job.Source(), goalType, job.Handler, job.Text())

	h, err := w.registry.Resolve(job.Handler)
	if err != nil {
		// Configuration failure: surfaced immediately, never retried. A rescue
		// cannot register a missing handler, so no escalation either.
		job.Status = model.JobStatusFailed
		job.UpdatedAt = time.Now()
		log.Error().Err(err).Msg("unresolvable handler, job failed")
		w.goals.MarkUnfulfilled(ctx, job.ID, fmt.Sprintf("Configuration failure: %v", err), nil, job.RetryCount)
		metrics.IncJob(job.Handler, string(model.JobStatusFailed))
		return
	}

	start := time.Now()
	resp, trace, err := invoke(ctx, h, job.Payload)
	duration := time.Since(start)
	metrics.ObserveJobDuration(job.Handler, duration.Seconds())

	if err != nil {
		w.handleFailure(ctx, job, err.Error(), trace, &log)
		return
	}
	if !resp.Success {
		w.handleFailure(ctx, job, resp.ErrorMessage(), "", &log)
		return
	}

	w.handleSuccess(ctx, job, resp, duration, &log)
}

// invoke calls the handler, converting a panic into an error carrying the
// stack so crashes take the normal retry path.
func invoke(ctx context.Context, h handler.Handler, payload map[string]interface{}) (resp *model.AgentResponse, trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace = string(debug.Stack())
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	resp, err = h.Handle(ctx, payload)
	if err == nil && resp == nil {
		err = fmt.Errorf("handler returned no response")
	}
	return resp, trace, err
}

func (w *Worker) handleFailure(ctx context.Context, job *model.Job, errMsg, trace string, log *zerolog.Logger) {
	detail := &model.FailureDetail{
		Timestamp:    time.Now(),
		Attempt:      job.RetryCount + 1,
		Handler:      job.Handler,
		ErrorMessage: errMsg,
		Trace:        trace,
		Payload:      copyPayload(job.Payload),
	}
	job.History = append(job.History, model.Attempt{Handler: job.Handler, Failure: detail})
	job.RetryCount++
	job.UpdatedAt = time.Now()

	if job.RetryCount < job.MaxRetries {
		job.Status = model.JobStatusPending
		log.Warn().Str("error", errMsg).Int("retry", job.RetryCount).Int("max", job.MaxRetries).Msg("job failed, requeueing")
		metrics.IncRetry(job.Handler)
		if err := w.queue.Enqueue(ctx, job); err != nil {
			log.Error().Err(err).Msg("requeue failed, job lost from queue")
		}
		return
	}

	// Retries exhausted. Escalation decisions are irreversible per job id.
	job.Status = model.JobStatusWaitingHuman
	job.UpdatedAt = time.Now()
	metrics.IncJob(job.Handler, string(model.JobStatusWaitingHuman))
	w.goals.MarkUnfulfilled(ctx, job.ID, fmt.Sprintf("Hard failure: %s", errMsg),
		&model.AgentResponse{Success: false, Error: errMsg}, job.RetryCount)

	if job.Handler == handler.RescueName {
		// A failing rescue job is terminal and never re-escalated.
		log.Error().Str("error", errMsg).Msg("RESCUE JOB FAILED - terminal condition, needs immediate attention")
		return
	}

	log.Error().Str("error", errMsg).Int("failures", job.RetryCount).Msg("retries exhausted, escalating to rescue")

	rc := &model.RescueContext{
		JobID:           job.ID,
		Goal:            job.Text(),
		FailedHandler:   job.Handler,
		FailureCount:    job.RetryCount,
		FailureHistory:  job.FailureHistory(),
		OriginalPayload: copyPayload(job.Payload),
	}
	rescueJob := model.NewJob(handler.RescueName, map[string]interface{}{
		model.PayloadText:            job.Text(),
		model.PayloadUserID:          job.UserID(),
		model.PayloadSource:          job.Source(),
		handler.PayloadRescueContext: rc,
	}, 1) // rescue is never itself retried
	if err := w.queue.Enqueue(ctx, rescueJob); err != nil {
		log.Error().Err(err).Msg("rescue enqueue failed")
	}
}

func (w *Worker) handleSuccess(ctx context.Context, job *model.Job, resp *model.AgentResponse, duration time.Duration, log *zerolog.Logger) {
	job.Status = model.JobStatusCompleted
	job.UpdatedAt = time.Now()
	job.History = append(job.History, model.Attempt{Handler: job.Handler, Output: summarize(resp.Output)})
	metrics.IncJob(job.Handler, string(model.JobStatusCompleted))
	log.Info().Dur("duration", duration).Msg("job completed")

	w.goals.EvaluateAndRecord(ctx, job.ID, resp, duration, job.RetryCount)
	w.deliver(ctx, job, resp.Output, log)

	if resp.NextHandler != "" {
		payload := copyPayload(job.Payload)
		// A rescue job's diagnosis context must not ride into its successor,
		// where it would poison any later diagnosis of the successor itself.
		delete(payload, handler.PayloadRescueContext)
		for k, v := range resp.Data {
			payload[k] = v
		}
		// Chaining is not retry-linked to its predecessor: fresh id, fresh
		// retry budget.
		next := model.NewJob(resp.NextHandler, payload, w.maxRetries)
		if err := w.queue.Enqueue(ctx, next); err != nil {
			log.Error().Err(err).Str("next_handler", resp.NextHandler).Msg("chain enqueue failed")
			return
		}
		log.Info().Str("next_handler", resp.NextHandler).Str("next_job_id", next.ID).Msg("chained successor job")
	}
}

// deliver hands output to the transport named by the job's source. Delivery
// failures are logged but never fail the job: the work is already done.
func (w *Worker) deliver(ctx context.Context, job *model.Job, output string, log *zerolog.Logger) {
	if output == "" || job.UserID() == "" {
		return
	}
	d, ok := w.deliverers[job.Source()]
	if !ok {
		log.Debug().Str("source", job.Source()).Msg("no deliverer for source, output dropped")
		return
	}
	for _, chunk := range splitMessage(output, d.MaxMessageSize()) {
		if err := d.Deliver(ctx, job.UserID(), chunk); err != nil {
			log.Error().Err(err).Str("source", job.Source()).Msg("delivery failed")
			return
		}
	}
}

func (w *Worker) inferGoalType(job *model.Job) model.GoalType {
	// Producers may pin the goal type in the payload; otherwise classify.
	if v, ok := job.Payload[model.PayloadGoalType].(string); ok && v != "" {
		return model.GoalType(v)
	}
	return w.goals.Classify(job.Handler, job.Text())
}

func copyPayload(p map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

// summarize keeps the first 500 runes of an output for the job history.
// Splitting on a byte boundary would leave invalid UTF-8 in the record.
func summarize(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
