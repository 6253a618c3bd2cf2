package domain

import (
	"fmt"
	"time"
)

// Household is the read-only setup artifact for a run: the canonical
// environment at t=0 and the person roster with schedules. Loaded from a YAML
// template or supplied inline when creating a run.
type Household struct {
	Name        string           `json:"name" yaml:"name"`
	Environment Environment      `json:"environment" yaml:"environment"`
	Persons     []PersonTemplate `json:"persons" yaml:"persons"`
}

type PersonTemplate struct {
	Name     string         `json:"name" yaml:"name"`
	Traits   string         `json:"traits,omitempty" yaml:"traits,omitempty"`
	Schedule []ScheduleSlot `json:"schedule" yaml:"schedule"`
}

// ScheduleSlot is a template schedule entry with a time-of-day start
// ("HH:MM"); it is resolved against the run's start date when persons are
// materialized.
type ScheduleSlot struct {
	Start    string `json:"start" yaml:"start"`
	Activity string `json:"activity" yaml:"activity"`
}

// Resolve turns the slot's time-of-day into an absolute timestamp on the day
// of base.
func (s ScheduleSlot) Resolve(base time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", s.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule start %q: %w", s.Start, err)
	}
	return time.Date(base.Year(), base.Month(), base.Day(), t.Hour(), t.Minute(), 0, 0, base.Location()), nil
}

// Validate checks the structural invariants a run depends on: at least one
// person, hourly schedule entries, and schedule locations that exist in the
// environment when specified.
func (h *Household) Validate() error {
	if len(h.Environment.Rooms) == 0 {
		return fmt.Errorf("household %q has no rooms", h.Name)
	}
	if len(h.Persons) == 0 {
		return fmt.Errorf("household %q has no persons", h.Name)
	}
	for _, p := range h.Persons {
		if p.Name == "" {
			return fmt.Errorf("household %q has a person without a name", h.Name)
		}
		if len(p.Schedule) == 0 {
			return fmt.Errorf("person %q has an empty schedule", p.Name)
		}
		for _, slot := range p.Schedule {
			if _, err := time.Parse("15:04", slot.Start); err != nil {
				return fmt.Errorf("person %q: invalid schedule start %q", p.Name, slot.Start)
			}
			if slot.Activity == "" {
				return fmt.Errorf("person %q: schedule entry at %s has no activity", p.Name, slot.Start)
			}
		}
	}
	return nil
}
