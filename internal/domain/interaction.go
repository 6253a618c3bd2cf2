package domain

import (
	"time"

	"github.com/google/uuid"
)

// PolicyKind selects which of the two interchangeable assistant
// implementations handled the command.
type PolicyKind string

const (
	PolicyGenerative PolicyKind = "generative"
	PolicyRule       PolicyKind = "rule"
)

func ValidPolicyKind(p string) bool {
	switch PolicyKind(p) {
	case PolicyGenerative, PolicyRule:
		return true
	}
	return false
}

// Cell names one of the four branch variants executed per command-eligible
// tick: context-present (wc) or context-absent (woc), crossed with the
// assistant policy.
type Cell string

const (
	CellWCGenerative  Cell = "wc_generative"
	CellWCRule        Cell = "wc_rule"
	CellWOCGenerative Cell = "woc_generative"
	CellWOCRule       Cell = "woc_rule"
)

// AllCells lists the four cells in their canonical order.
var AllCells = [4]Cell{CellWCGenerative, CellWCRule, CellWOCGenerative, CellWOCRule}

func ValidCell(c string) bool {
	switch Cell(c) {
	case CellWCGenerative, CellWCRule, CellWOCGenerative, CellWOCRule:
		return true
	}
	return false
}

// ContextPresent reports whether this cell's command generation may see the
// hidden intent and recalled memory.
func (c Cell) ContextPresent() bool {
	return c == CellWCGenerative || c == CellWCRule
}

func (c Cell) Policy() PolicyKind {
	if c == CellWCRule || c == CellWOCRule {
		return PolicyRule
	}
	return PolicyGenerative
}

// CellState is the per-cell progression through one tick.
type CellState string

const (
	CellStatePending            CellState = "pending"
	CellStateContextDerived     CellState = "context_derived"
	CellStateCommandIssued      CellState = "command_issued"
	CellStateAssistantResponded CellState = "assistant_responded"
	CellStateSelfEvaluated      CellState = "self_evaluated"
	CellStateObserverEvaluated  CellState = "observer_evaluated"
	CellStateDone               CellState = "done"
	CellStateFailed             CellState = "failed"
)

var cellStateOrder = map[CellState]int{
	CellStatePending:            0,
	CellStateContextDerived:     1,
	CellStateCommandIssued:      2,
	CellStateAssistantResponded: 3,
	CellStateSelfEvaluated:      4,
	CellStateObserverEvaluated:  5,
	CellStateDone:               6,
}

func ValidCellState(s string) bool {
	if CellState(s) == CellStateFailed {
		return true
	}
	_, ok := cellStateOrder[CellState(s)]
	return ok
}

// CanAdvance reports whether moving from s to next is a legal forward step.
// Failure is reachable from any non-terminal state.
func (s CellState) CanAdvance(next CellState) bool {
	if next == CellStateFailed {
		return s != CellStateDone && s != CellStateFailed
	}
	from, ok := cellStateOrder[s]
	if !ok {
		return false
	}
	to, ok := cellStateOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// SelfStatus tags how the self-evaluation fields are to be read. Cells whose
// command generation never saw the hidden intent cannot meaningfully
// self-evaluate and carry the not-applicable sentinel instead of a score.
type SelfStatus string

const (
	SelfScored        SelfStatus = "scored"
	SelfNotApplicable SelfStatus = "not_applicable"
)

func ValidSelfStatus(s string) bool {
	switch SelfStatus(s) {
	case SelfScored, SelfNotApplicable:
		return true
	}
	return false
}

// ValidScore reports whether n is in the 1..7 rating range.
func ValidScore(n int) bool {
	return n >= 1 && n <= 7
}

// InteractionRecord is the outcome of one cell for one (person, tick).
// Exactly four exist per command-eligible tick, zero for feasibility-gated
// ticks.
type InteractionRecord struct {
	ID              uuid.UUID     `json:"id"`
	RunID           uuid.UUID     `json:"run_id"`
	PersonID        uuid.UUID     `json:"person_id"`
	Tick            int           `json:"tick"`
	Timestamp       time.Time     `json:"timestamp"`
	Cell            Cell          `json:"cell"`
	State           CellState     `json:"state"`
	HourActivity    string        `json:"hour_activity"`
	QuarterActivity string        `json:"quarter_activity"`
	ConcreteAction  string        `json:"concrete_action"`
	Location        string        `json:"location,omitempty"`
	MemoryRefs      []uuid.UUID   `json:"memory_refs,omitempty"`
	Command         string        `json:"command,omitempty"`
	Reply           string        `json:"reply,omitempty"`
	StateChanges    []StateChange `json:"state_changes"`
	StateChangeDesc string        `json:"state_change_desc,omitempty"`
	SelfStatus      SelfStatus    `json:"self_status"`
	SelfScore       *int          `json:"self_score,omitempty"`
	SelfReason      string        `json:"self_reason,omitempty"`
	ObserverScore   *int          `json:"observer_score,omitempty"`
	ObserverReason  string        `json:"observer_reason,omitempty"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Complete reports whether every field the export sink requires is present
// for the record's terminal state. Failed cells are complete by definition;
// their error field documents the gap.
func (r *InteractionRecord) Complete() bool {
	if r.State == CellStateFailed {
		return r.Error != ""
	}
	if r.State != CellStateDone && r.State != CellStateObserverEvaluated {
		return false
	}
	if r.Command == "" || r.Reply == "" || r.StateChangeDesc == "" {
		return false
	}
	if r.ObserverScore == nil {
		return false
	}
	if r.SelfStatus == SelfScored && r.SelfScore == nil {
		return false
	}
	return true
}
