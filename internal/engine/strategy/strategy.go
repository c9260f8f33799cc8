package strategy

import (
	"context"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/entity"
)

// TaskExecutionStrategy runs one kind of scheduled sweep and returns its JSON result.
type TaskExecutionStrategy interface {
	Execute(ctx context.Context) (string, error)
	GetType() entity.TaskType
}

// Sweeper is a service that processes a full batch per call.
type Sweeper interface {
	Sweep(ctx context.Context) (*dto.SweepSummary, error)
}

type runIDKey struct{}

// WithRunID tags ctx with the id of the scheduler run executing it.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
