package repository

import (
	"context"

	"golang-surge-signal/internal/entity"

	"gorm.io/gorm"
)

// TaskExecutionHistoryRepository defines the interface for task execution history data operations.
type TaskExecutionHistoryRepository interface {
	Create(ctx context.Context, history *entity.TaskExecutionHistory) error
	FindByID(ctx context.Context, id uint) (*entity.TaskExecutionHistory, error)
	FindAll(ctx context.Context, limit int) ([]entity.TaskExecutionHistory, error)
	FindAllByTaskType(ctx context.Context, taskType entity.TaskType, limit int) ([]entity.TaskExecutionHistory, error)
	Update(ctx context.Context, history *entity.TaskExecutionHistory) error
}

// NewTaskExecutionHistoryRepository creates a new GORM-based task execution history repository.
func NewTaskExecutionHistoryRepository(db *gorm.DB) TaskExecutionHistoryRepository {
	return &taskExecutionHistoryRepository{db: db}
}

type taskExecutionHistoryRepository struct {
	db *gorm.DB
}

// Create creates a new task execution history record.
func (r *taskExecutionHistoryRepository) Create(ctx context.Context, history *entity.TaskExecutionHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// FindByID retrieves a task execution history record by its ID.
func (r *taskExecutionHistoryRepository) FindByID(ctx context.Context, id uint) (*entity.TaskExecutionHistory, error) {
	var history entity.TaskExecutionHistory
	if err := r.db.WithContext(ctx).First(&history, id).Error; err != nil {
		return nil, err
	}
	return &history, nil
}

// FindAll retrieves the most recent runs of every task.
func (r *taskExecutionHistoryRepository) FindAll(ctx context.Context, limit int) ([]entity.TaskExecutionHistory, error) {
	var histories []entity.TaskExecutionHistory
	if err := r.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

// FindAllByTaskType retrieves the most recent runs of one task.
func (r *taskExecutionHistoryRepository) FindAllByTaskType(ctx context.Context, taskType entity.TaskType, limit int) ([]entity.TaskExecutionHistory, error) {
	var histories []entity.TaskExecutionHistory
	if err := r.db.WithContext(ctx).Where("task_type = ?", string(taskType)).Order("started_at desc").Limit(limit).Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

// Update update task execution history record
func (r *taskExecutionHistoryRepository) Update(ctx context.Context, history *entity.TaskExecutionHistory) error {
	return r.db.WithContext(ctx).Save(history).Error
}
