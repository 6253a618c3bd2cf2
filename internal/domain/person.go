package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleEntry is one hour of a person's day: the hour it starts and the
// activity label covering that hour.
type ScheduleEntry struct {
	Start    time.Time `json:"start"`
	Activity string    `json:"activity"`
}

// Person is a simulated household member. Created once at run setup and
// read-only during simulation.
type Person struct {
	ID        uuid.UUID       `json:"id"`
	RunID     uuid.UUID       `json:"run_id"`
	Name      string          `json:"name"`
	Traits    string          `json:"traits,omitempty"`
	Schedule  []ScheduleEntry `json:"schedule"`
	CreatedAt time.Time       `json:"created_at"`
}

// ScheduleEntryAt returns the schedule entry covering ts, if any.
func (p *Person) ScheduleEntryAt(ts time.Time) (ScheduleEntry, bool) {
	for i := len(p.Schedule) - 1; i >= 0; i-- {
		e := p.Schedule[i]
		if !ts.Before(e.Start) && ts.Before(e.Start.Add(time.Hour)) {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}
