package entity

import (
	"database/sql"
	"time"
)

// TaskType identifies a scheduled sweep.
type TaskType string

const (
	TaskTypeSignalScan      TaskType = "signal_scan"
	TaskTypePositionMonitor TaskType = "position_monitor"
)

// TaskStatus is the outcome of one sweep run.
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusSkipped   TaskStatus = "skipped"
)

// TaskTrigger tells whether a run came from the cron schedule or an admin request.
type TaskTrigger string

const (
	TriggerSchedule TaskTrigger = "schedule"
	TriggerManual   TaskTrigger = "manual"
)

// TaskExecutionHistory records one sweep run.
type TaskExecutionHistory struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TaskType     TaskType       `gorm:"type:varchar(32);not null;index" json:"task_type"`
	RunID        string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"run_id"`
	Trigger      TaskTrigger    `gorm:"type:varchar(16);not null" json:"trigger"`
	Status       TaskStatus     `gorm:"type:varchar(16);not null" json:"status"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt  sql.NullTime   `json:"completed_at"`
	Output       sql.NullString `gorm:"type:jsonb" json:"output"`
	ErrorMessage sql.NullString `json:"error_message"`
}

func (TaskExecutionHistory) TableName() string {
	return "task_execution_histories"
}
