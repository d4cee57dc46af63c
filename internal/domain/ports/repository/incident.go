package repository

import (
	"context"

	"brain-orchestrator/internal/domain/model"
)

// IncidentStore persists escalation reports at a well-known location keyed by
// report id, for downstream listing/parsing tools.
type IncidentStore interface {
	Save(ctx context.Context, report *model.IncidentReport) error
	List(ctx context.Context) ([]string, error)
}
