package domain

import (
	"testing"
)

func TestCellState_CanAdvance(t *testing.T) {
	tests := []struct {
		name string
		from CellState
		to   CellState
		want bool
	}{
		{"pending to context_derived", CellStatePending, CellStateContextDerived, true},
		{"context_derived to command_issued", CellStateContextDerived, CellStateCommandIssued, true},
		{"command_issued to assistant_responded", CellStateCommandIssued, CellStateAssistantResponded, true},
		{"assistant_responded to self_evaluated", CellStateAssistantResponded, CellStateSelfEvaluated, true},
		{"self_evaluated to observer_evaluated", CellStateSelfEvaluated, CellStateObserverEvaluated, true},
		{"observer_evaluated to done", CellStateObserverEvaluated, CellStateDone, true},
		{"no skipping", CellStatePending, CellStateCommandIssued, false},
		{"no going back", CellStateCommandIssued, CellStateContextDerived, false},
		{"pending to failed", CellStatePending, CellStateFailed, true},
		{"self_evaluated to failed", CellStateSelfEvaluated, CellStateFailed, true},
		{"done to failed", CellStateDone, CellStateFailed, false},
		{"failed to failed", CellStateFailed, CellStateFailed, false},
		{"failed cannot resume", CellStateFailed, CellStateContextDerived, false},
		{"done is terminal", CellStateDone, CellStateObserverEvaluated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanAdvance(tt.to); got != tt.want {
				t.Errorf("CanAdvance(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCell_ContextAndPolicy(t *testing.T) {
	tests := []struct {
		cell        Cell
		withContext bool
		policy      PolicyKind
	}{
		{CellWCGenerative, true, PolicyGenerative},
		{CellWCRule, true, PolicyRule},
		{CellWOCGenerative, false, PolicyGenerative},
		{CellWOCRule, false, PolicyRule},
	}
	for _, tt := range tests {
		if got := tt.cell.ContextPresent(); got != tt.withContext {
			t.Errorf("%s.ContextPresent() = %v, want %v", tt.cell, got, tt.withContext)
		}
		if got := tt.cell.Policy(); got != tt.policy {
			t.Errorf("%s.Policy() = %v, want %v", tt.cell, got, tt.policy)
		}
	}
}

func intPtr(n int) *int { return &n }

func completeRecord() InteractionRecord {
	return InteractionRecord{
		State:           CellStateDone,
		Command:         "불 켜줘",
		Reply:           "네, 조명을 켰어요.",
		StateChangeDesc: "거실 조명이 켜졌다",
		SelfStatus:      SelfScored,
		SelfScore:       intPtr(5),
		ObserverScore:   intPtr(4),
	}
}

func TestRecord_Complete(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*InteractionRecord)
		want   bool
	}{
		{"done with all fields", func(r *InteractionRecord) {}, true},
		{"observer_evaluated with all fields", func(r *InteractionRecord) { r.State = CellStateObserverEvaluated }, true},
		{"failed with error text", func(r *InteractionRecord) {
			r.State = CellStateFailed
			r.Error = "oracle timeout"
		}, true},
		{"failed without error text", func(r *InteractionRecord) {
			r.State = CellStateFailed
			r.Error = ""
		}, false},
		{"still mid-pipeline", func(r *InteractionRecord) { r.State = CellStateSelfEvaluated }, false},
		{"missing command", func(r *InteractionRecord) { r.Command = "" }, false},
		{"missing reply", func(r *InteractionRecord) { r.Reply = "" }, false},
		{"missing change description", func(r *InteractionRecord) { r.StateChangeDesc = "" }, false},
		{"missing observer score", func(r *InteractionRecord) { r.ObserverScore = nil }, false},
		{"scored without self score", func(r *InteractionRecord) { r.SelfScore = nil }, false},
		{"not_applicable needs no self score", func(r *InteractionRecord) {
			r.SelfStatus = SelfNotApplicable
			r.SelfScore = nil
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completeRecord()
			tt.modify(&rec)
			if got := rec.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_Gap(t *testing.T) {
	rec := completeRecord()
	rec.SelfScore = intPtr(6)
	rec.ObserverScore = intPtr(3)

	gap, ok := rec.Gap()
	if !ok {
		t.Fatal("expected gap to be defined")
	}
	if gap != 3 {
		t.Errorf("gap = %d, want 3", gap)
	}

	// The sentinel blocks the computation even if scores were present.
	na := completeRecord()
	na.SelfStatus = SelfNotApplicable
	if _, ok := na.Gap(); ok {
		t.Error("gap defined for not_applicable record")
	}

	unobserved := completeRecord()
	unobserved.ObserverScore = nil
	if _, ok := unobserved.Gap(); ok {
		t.Error("gap defined before observer pass")
	}
}

func TestValidScore(t *testing.T) {
	for _, n := range []int{1, 4, 7} {
		if !ValidScore(n) {
			t.Errorf("ValidScore(%d) = false", n)
		}
	}
	for _, n := range []int{0, 8, -1} {
		if ValidScore(n) {
			t.Errorf("ValidScore(%d) = true", n)
		}
	}
}

func TestValidCellAndState(t *testing.T) {
	for _, c := range AllCells {
		if !ValidCell(string(c)) {
			t.Errorf("ValidCell(%s) = false", c)
		}
	}
	if ValidCell("wc_hybrid") {
		t.Error("ValidCell accepted unknown cell")
	}

	for _, s := range []CellState{CellStatePending, CellStateDone, CellStateFailed} {
		if !ValidCellState(string(s)) {
			t.Errorf("ValidCellState(%s) = false", s)
		}
	}
	if ValidCellState("archived") {
		t.Error("ValidCellState accepted unknown state")
	}
}
