package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/usecase"

	"github.com/rs/zerolog"
)

// RescueName is the registry name of the rescue handler. Jobs targeting it
// are created by the worker loop on retry exhaustion, with MaxRetries=1 so
// rescue is never itself retried.
const RescueName = "rescue"

// PayloadRescueContext is the payload key carrying the serialized
// model.RescueContext inside a rescue job.
const PayloadRescueContext = "rescue_context"

var _ Handler = (*RescueHandler)(nil)

// RescueHandler runs the self-healing escalation path. On a confident
// auto-fixable diagnosis it reports success and names the handler the job
// should be requeued to (the worker performs the actual requeue via its
// chaining path); otherwise it escalates with an incident report and reports
// failure, which is terminal for a rescue job.
type RescueHandler struct {
	rescue usecase.Rescue
	log    *zerolog.Logger
}

func NewRescueHandler(rescue usecase.Rescue, logger *zerolog.Logger) *RescueHandler {
	return &RescueHandler{rescue: rescue, log: logger}
}

func (h *RescueHandler) Name() string { return RescueName }

func (h *RescueHandler) Handle(ctx context.Context, payload map[string]interface{}) (*model.AgentResponse, error) {
	rc, err := decodeRescueContext(payload)
	if err != nil {
		return &model.AgentResponse{
			Success: false,
			Output:  "Rescue activated without a usable failure context.",
			Error:   fmt.Sprintf("rescue context: %v", err),
		}, nil
	}

	h.log.Info().
		Str("job_id", rc.JobID).
		Str("failed_handler", rc.FailedHandler).
		Int("failures", rc.FailureCount).
		Msg("rescue activated, analyzing failure")

	diag := h.rescue.Diagnose(ctx, rc)

	h.log.Info().
		Str("job_id", rc.JobID).
		Str("root_cause", diag.RootCause).
		Str("strategy", string(diag.Strategy)).
		Float64("confidence", diag.Confidence).
		Bool("can_auto_fix", diag.CanAutoFix).
		Msg("rescue diagnosis")

	if h.rescue.ShouldAutoFix(diag) {
		fixedPayload, nextHandler, applied := h.rescue.Recover(ctx, diag, rc)
		if nextHandler == "" {
			nextHandler = rc.FailedHandler
		}

		var out strings.Builder
		fmt.Fprintf(&out, "Rescue successful.\n\nProblem: %s\n\nSolution: %s\n\nActions taken:\n", diag.RootCause, diag.Explanation)
		for _, a := range applied {
			fmt.Fprintf(&out, "- %s\n", a)
		}
		out.WriteString("\nThe task will be retried with these modifications.")

		return &model.AgentResponse{
			Success:     true,
			Output:      out.String(),
			NextHandler: nextHandler,
			Data:        fixedPayload,
		}, nil
	}

	report := h.rescue.Escalate(ctx, rc, diag)
	return &model.AgentResponse{
		Success: false,
		Output: fmt.Sprintf(
			"Task failed - human review needed.\n\nProblem: %s\n\nAnalysis: %s\n\nIssue ID: %s\nConfidence: %.0f%%",
			diag.RootCause, diag.Explanation, report.ID, diag.Confidence*100),
		Error: diag.RootCause,
		Data: map[string]interface{}{
			"incident_id": report.ID,
			"strategy":    string(diag.Strategy),
		},
	}, nil
}

// decodeRescueContext round-trips the payload entry through JSON: after queue
// transport the embedded struct arrives as a generic map.
func decodeRescueContext(payload map[string]interface{}) (*model.RescueContext, error) {
	raw, ok := payload[PayloadRescueContext]
	if !ok {
		return nil, fmt.Errorf("payload key %q missing", PayloadRescueContext)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var rc model.RescueContext
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, err
	}
	if rc.JobID == "" {
		return nil, fmt.Errorf("rescue context has no job id")
	}
	return &rc, nil
}
