package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RunStore interface {
	Create(ctx context.Context, r *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status RunStatus, runErr string) error
	UpsertProgress(ctx context.Context, p *RunProgress) error
	GetProgress(ctx context.Context, runID uuid.UUID) ([]RunProgress, error)
}

type PersonStore interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*Person, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Person, error)
}

type MemoryStore interface {
	// Create appends a memory record. Writes are idempotent on
	// (person, tick, kind) so a resumed run cannot double-write a tick.
	Create(ctx context.Context, m *MemoryRecord) error
	// ListByPerson returns records for one person created at or before
	// upToTick, oldest first. Never returns another person's records.
	ListByPerson(ctx context.Context, personID uuid.UUID, upToTick int) ([]MemoryRecord, error)
}

// RecordFilter narrows ListByRun. Nil fields match everything.
type RecordFilter struct {
	PersonID *uuid.UUID
	Cell     *Cell
	State    *CellState
	Tick     *int
}

// RecordWithSimilarity is an interaction record scored by command-embedding
// distance.
type RecordWithSimilarity struct {
	InteractionRecord
	Similarity float32 `json:"similarity"`
}

type InteractionStore interface {
	Create(ctx context.Context, r *InteractionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*InteractionRecord, error)
	ListByRun(ctx context.Context, runID uuid.UUID, f RecordFilter) ([]InteractionRecord, error)
	// ListForObservation returns records awaiting the observer pass
	// (state self_evaluated), oldest first.
	ListForObservation(ctx context.Context, runID uuid.UUID) ([]InteractionRecord, error)
	UpdateObserverEval(ctx context.Context, id uuid.UUID, score int, reason string, state CellState) error
	MarkDone(ctx context.Context, runID uuid.UUID) (int64, error)
	CountByRunAndState(ctx context.Context, runID uuid.UUID, state CellState) (int, error)
	// DeleteFromTick removes one person's records at or after fromTick,
	// clearing partial work before a resume re-executes those ticks.
	DeleteFromTick(ctx context.Context, runID, personID uuid.UUID, fromTick int) error
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	// ListMissingEmbeddings returns command-bearing records that have no
	// command embedding yet, oldest first.
	ListMissingEmbeddings(ctx context.Context, runID uuid.UUID, limit int) ([]InteractionRecord, error)
	SearchByCommand(ctx context.Context, embedding []float32, limit int) ([]RecordWithSimilarity, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NarrativeRequest asks the oracle to split one schedule hour into
// quarter-hour descriptors.
type NarrativeRequest struct {
	PersonName   string
	Traits       string
	HourActivity string
	HourStart    time.Time
	TickMinutes  int
	Locations    []string
	Memories     []WeightedMemory
}

// QuarterDraft is the oracle's unvalidated proposal for one quarter.
type QuarterDraft struct {
	QuarterActivity string `json:"quarter_activity"`
	ConcreteAction  string `json:"concrete_action"`
	Location        string `json:"location"`
	HiddenIntent    string `json:"hidden_intent"`
}

// CommandRequest carries the context slice a cell is permitted to expose to
// command generation. WithContext selects the full slice; context-absent
// cells leave the intent-bearing fields empty.
type CommandRequest struct {
	WithContext     bool
	PersonName      string
	Traits          string
	Location        string
	QuarterActivity string
	HourActivity    string
	ConcreteAction  string
	HiddenIntent    string
	Memories        []WeightedMemory
}

// DeviceCommand is a mutation the generative policy wants applied.
type DeviceCommand struct {
	Room     string `json:"room"`
	Device   string `json:"device"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

type GenerativeRequest struct {
	Command     string
	Environment *Environment
}

type GenerativeResult struct {
	Reply   string          `json:"reply"`
	Changes []DeviceCommand `json:"changes"`
}

type ClassifyRequest struct {
	Command string
	Labels  []string
}

// Evaluation is a 1-7 satisfaction rating with its justification.
type Evaluation struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

type SelfEvalRequest struct {
	PersonName   string
	Traits       string
	HiddenIntent string
	Command      string
	Reply        string
	Changes      []StateChange
}

// Oracle is the external text/classification generator behind every
// call site. Implementations must be safe for concurrent use; the engine
// fans cells and persons out in parallel.
type Oracle interface {
	QuarterNarratives(ctx context.Context, req NarrativeRequest) ([]QuarterDraft, error)
	GenerateCommand(ctx context.Context, req CommandRequest) (string, error)
	GenerativeAct(ctx context.Context, req GenerativeRequest) (*GenerativeResult, error)
	ClassifyIntent(ctx context.Context, req ClassifyRequest) (string, error)
	SelfEvaluate(ctx context.Context, req SelfEvalRequest) (*Evaluation, error)
	ObserverEvaluate(ctx context.Context, view ObserverView) (*Evaluation, error)
}
