package service

import (
	"context"
	"encoding/json"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
)

const defaultHistoryLimit = 100

// ExecutionHistoryService reads sweep run records.
type ExecutionHistoryService interface {
	GetExecutionHistoryByID(ctx context.Context, id uint) (*dto.ExecutionHistoryResponse, error)
	GetExecutionHistories(ctx context.Context, taskType entity.TaskType, limit int) ([]*dto.ExecutionHistoryResponse, error)
}

func NewExecutionHistoryService(historyRepo repository.TaskExecutionHistoryRepository, logger *logger.Logger) ExecutionHistoryService {
	return &executionHistoryService{
		historyRepo: historyRepo,
		logger:      logger,
	}
}

type executionHistoryService struct {
	historyRepo repository.TaskExecutionHistoryRepository
	logger      *logger.Logger
}

func (s *executionHistoryService) GetExecutionHistoryByID(ctx context.Context, id uint) (*dto.ExecutionHistoryResponse, error) {
	history, err := s.historyRepo.FindByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to find execution history", logger.ErrorField(err), logger.Field("history_id", id))
		return nil, err
	}
	return MapExecutionHistory(history), nil
}

// GetExecutionHistories lists the latest runs, optionally of one task type only.
func (s *executionHistoryService) GetExecutionHistories(ctx context.Context, taskType entity.TaskType, limit int) ([]*dto.ExecutionHistoryResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultHistoryLimit
	}

	var (
		histories []entity.TaskExecutionHistory
		err       error
	)
	if taskType == "" {
		histories, err = s.historyRepo.FindAll(ctx, limit)
	} else {
		histories, err = s.historyRepo.FindAllByTaskType(ctx, taskType, limit)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to get execution histories", logger.ErrorField(err), logger.StringField("task_type", string(taskType)))
		return nil, err
	}

	historyResponses := make([]*dto.ExecutionHistoryResponse, 0, len(histories))
	for i := range histories {
		historyResponses = append(historyResponses, MapExecutionHistory(&histories[i]))
	}
	return historyResponses, nil
}

// MapExecutionHistory converts a history row to its API shape. Duration is in milliseconds.
func MapExecutionHistory(history *entity.TaskExecutionHistory) *dto.ExecutionHistoryResponse {
	var duration int64
	if history.CompletedAt.Valid {
		duration = history.CompletedAt.Time.Sub(history.StartedAt).Milliseconds()
	}

	resp := &dto.ExecutionHistoryResponse{
		ID:         history.ID,
		TaskType:   string(history.TaskType),
		RunID:      history.RunID,
		Trigger:    string(history.Trigger),
		Status:     string(history.Status),
		ExecutedAt: history.StartedAt,
		Duration:   duration,
		Error:      history.ErrorMessage.String,
	}
	if history.Output.Valid && json.Valid([]byte(history.Output.String)) {
		resp.Output = json.RawMessage(history.Output.String)
	}
	return resp
}
