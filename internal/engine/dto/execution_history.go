package dto

import (
	"encoding/json"
	"time"
)

// ExecutionHistoryResponse is the DTO for API responses containing execution history details.
type ExecutionHistoryResponse struct {
	ID         uint            `json:"id"`
	TaskType   string          `json:"task_type"`
	RunID      string          `json:"run_id"`
	Trigger    string          `json:"trigger"`
	Status     string          `json:"status"`
	ExecutedAt time.Time       `json:"executed_at"`
	Duration   int64           `json:"duration_ms"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}
