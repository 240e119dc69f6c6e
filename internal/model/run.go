package model

import "time"

// RunStatus tracks an analysis run's lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted household analysis: the configuration it ran with and,
// once complete, the full result.
type Run struct {
	ID        string           `json:"id"`
	Config    HouseholdConfig  `json:"household"`
	Status    RunStatus        `json:"status"`
	Result    *HouseholdResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
