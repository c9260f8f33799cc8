package dto

import "time"

// ItemResult is the outcome for one market or signal inside a sweep.
type ItemResult struct {
	Market   string `json:"market"`
	SignalID int64  `json:"signal_id,omitempty"`
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SweepSummary aggregates a sweep run. Individual failures never abort the run.
type SweepSummary struct {
	TaskType             string       `json:"task_type"`
	RunID                string       `json:"run_id"`
	StartedAt            time.Time    `json:"started_at"`
	FinishedAt           time.Time    `json:"finished_at"`
	Scanned              int          `json:"scanned"`
	Succeeded            int          `json:"succeeded"`
	Failed               int          `json:"failed"`
	Skipped              int          `json:"skipped"`
	SignalsCreated       int          `json:"signals_created,omitempty"`
	DuplicatesSuppressed int          `json:"duplicates_suppressed,omitempty"`
	AutoTradesPlaced     int          `json:"auto_trades_placed,omitempty"`
	Expired              int          `json:"expired,omitempty"`
	Closed               int          `json:"closed,omitempty"`
	Items                []ItemResult `json:"items,omitempty"`
}

// Record adds an item and updates the counters.
func (s *SweepSummary) Record(item ItemResult) {
	s.Items = append(s.Items, item)
	switch {
	case item.Skipped:
		s.Skipped++
	case item.Success:
		s.Succeeded++
	default:
		s.Failed++
	}
}
