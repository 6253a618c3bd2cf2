package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusCreated   RunStatus = "created"
	RunStatusRunning   RunStatus = "running"
	RunStatusSimulated RunStatus = "simulated"
	RunStatusObserving RunStatus = "observing"
	RunStatusDone      RunStatus = "done"
	RunStatusFailed    RunStatus = "failed"
)

func ValidRunStatus(s string) bool {
	switch RunStatus(s) {
	case RunStatusCreated, RunStatusRunning, RunStatusSimulated,
		RunStatusObserving, RunStatusDone, RunStatusFailed:
		return true
	}
	return false
}

// RunParams are the engine parameters frozen into a run at creation so the
// run is reproducible regardless of later configuration changes. They travel
// with the run instead of living in process-wide state.
type RunParams struct {
	TickMinutes   int      `json:"tick_minutes"`
	DecayPerTick  float64  `json:"decay_per_tick"`
	DecayFloor    float64  `json:"decay_floor"`
	GapThreshold  int      `json:"gap_threshold"`
	BlockKeywords []string `json:"block_keywords"`
	RecallLimit   int      `json:"recall_limit"`
}

// Run is one simulation execution over a household template. The household
// is frozen into the run at creation, so the canonical t=0 environment
// survives template edits and inline submissions alike.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Template  string    `json:"template,omitempty"`
	Status    RunStatus `json:"status"`
	StartTime time.Time `json:"start_time"`
	Params    RunParams `json:"params"`
	Household Household `json:"household"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TickTime converts a tick index into simulated wall time.
func (r *Run) TickTime(tick int) time.Time {
	return r.StartTime.Add(time.Duration(tick*r.Params.TickMinutes) * time.Minute)
}

// TickIndex converts a simulated timestamp back into a tick index.
func (r *Run) TickIndex(ts time.Time) int {
	return int(ts.Sub(r.StartTime).Minutes()) / r.Params.TickMinutes
}

// RunProgress tracks the last fully-completed tick per person, the resume
// point after an interrupted run.
type RunProgress struct {
	RunID             uuid.UUID `json:"run_id"`
	PersonID          uuid.UUID `json:"person_id"`
	LastCompletedTick int       `json:"last_completed_tick"`
	UpdatedAt         time.Time `json:"updated_at"`
}
