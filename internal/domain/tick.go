package domain

import (
	"strings"
	"time"
)

// QuartersPerHour is the fixed quarter-hour grid: every schedule hour is
// split into this many ticks.
const QuartersPerHour = 4

// QuarterDescriptor is one tick's worth of activity for one person, derived
// from an hour-level schedule entry. All four branch cells of a tick read the
// same descriptor; only the slice of it they may see differs.
type QuarterDescriptor struct {
	Tick            int       `json:"tick"`
	Timestamp       time.Time `json:"timestamp"`
	HourActivity    string    `json:"hour_activity"`
	QuarterActivity string    `json:"quarter_activity"`
	ConcreteAction  string    `json:"concrete_action"`
	Location        string    `json:"location"`
	HiddenIntent    string    `json:"hidden_intent"`
	CommandEligible bool      `json:"command_eligible"`
}

// SentenceCount counts sentence terminators in s. Quarter narratives must
// carry at least three sequential sentences.
func SentenceCount(s string) int {
	count := 0
	for _, r := range s {
		switch r {
		case '.', '!', '?':
			count++
		}
	}
	if count == 0 && strings.TrimSpace(s) != "" {
		return 1
	}
	return count
}
