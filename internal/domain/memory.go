package domain

import (
	"time"

	"github.com/google/uuid"
)

type MemoryKind string

const (
	MemoryKindActivity      MemoryKind = "activity"
	MemoryKindAssistantCall MemoryKind = "assistant_call"
)

func ValidMemoryKind(k string) bool {
	switch MemoryKind(k) {
	case MemoryKindActivity, MemoryKindAssistantCall:
		return true
	}
	return false
}

// MemoryRecord is one entry in a person's append-only memory stream. The
// record itself never stores a weight; effective weight is computed at query
// time from the tick it was created at.
type MemoryRecord struct {
	ID        uuid.UUID  `json:"id"`
	PersonID  uuid.UUID  `json:"person_id"`
	Tick      int        `json:"tick"`
	Timestamp time.Time  `json:"timestamp"`
	Kind      MemoryKind `json:"kind"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

// WeightedMemory is a memory record with its decay weight as of some query
// tick.
type WeightedMemory struct {
	MemoryRecord
	Weight float64 `json:"weight"`
}
