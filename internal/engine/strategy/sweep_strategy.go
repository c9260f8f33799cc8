package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
)

type sweepStrategy struct {
	taskType entity.TaskType
	sweeper  Sweeper
	logger   *logger.Logger
}

// NewSignalScanStrategy runs the signal generator sweep.
func NewSignalScanStrategy(log *logger.Logger, generator Sweeper) TaskExecutionStrategy {
	return &sweepStrategy{taskType: entity.TaskTypeSignalScan, sweeper: generator, logger: log}
}

// NewPositionMonitorStrategy runs the position monitor sweep.
func NewPositionMonitorStrategy(log *logger.Logger, monitor Sweeper) TaskExecutionStrategy {
	return &sweepStrategy{taskType: entity.TaskTypePositionMonitor, sweeper: monitor, logger: log}
}

func (s *sweepStrategy) GetType() entity.TaskType {
	return s.taskType
}

// Execute returns the sweep summary as JSON. A summary is returned even when the sweep
// aborted, so partial progress lands in the execution history.
func (s *sweepStrategy) Execute(ctx context.Context) (string, error) {
	summary, sweepErr := s.sweeper.Sweep(ctx)
	if summary == nil {
		if sweepErr == nil {
			sweepErr = fmt.Errorf("%s sweep returned no summary", s.taskType)
		}
		return "", sweepErr
	}
	summary.TaskType = string(s.taskType)
	summary.RunID = RunIDFromContext(ctx)

	resultJSON, err := json.Marshal(summary)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal sweep summary", logger.ErrorField(err))
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	if sweepErr != nil {
		return string(resultJSON), fmt.Errorf("%s sweep failed: %w", s.taskType, sweepErr)
	}
	return string(resultJSON), nil
}
