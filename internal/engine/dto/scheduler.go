package dto

import "time"

// TaskState describes one scheduled sweep.
type TaskState struct {
	Type       string     `json:"type"`
	Schedule   string     `json:"schedule"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	Running    bool       `json:"running"`
}

// SchedulerStatus is returned by the admin status endpoint.
type SchedulerStatus struct {
	Running bool        `json:"running"`
	Now     time.Time   `json:"now"`
	Tasks   []TaskState `json:"tasks"`
}
