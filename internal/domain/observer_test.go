package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// The observer view is the only payload the observer evaluator ever sees.
// Serialize it and check that nothing from the hidden side of the record
// survives, which is what actually guards the boundary at the oracle call.
func TestNewObserverView_CarriesNoHiddenContext(t *testing.T) {
	hidden := []string{
		"집중해서 일하고 싶다",      // hidden intent phrasing
		"어제 조명을 켜달라고 했었다", // recalled memory content
		"스스로 만족스러웠다",       // self-evaluation reason
		"재택 근무 시작",          // hour activity
	}

	score := 6
	rec := &InteractionRecord{
		ID:              uuid.New(),
		Cell:            CellWCGenerative,
		State:           CellStateSelfEvaluated,
		HourActivity:    hidden[3],
		QuarterActivity: "책상에 앉아 있는 중",
		ConcreteAction:  hidden[0],
		Command:         "불 켜줘",
		Reply:           "네, 조명을 켰어요.",
		StateChangeDesc: "거실 조명이 켜졌다",
		SelfStatus:      SelfScored,
		SelfScore:       &score,
		SelfReason:      hidden[2],
	}

	view := NewObserverView(rec)

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	payload := string(data)

	for _, h := range hidden {
		if strings.Contains(payload, h) {
			t.Errorf("observer view leaked %q: %s", h, payload)
		}
	}
	if strings.Contains(payload, "self") {
		t.Errorf("observer view carries a self-evaluation field: %s", payload)
	}

	if view.Command != rec.Command || view.Reply != rec.Reply || view.ObservableChanges != rec.StateChangeDesc {
		t.Errorf("view dropped visible fields: %+v", view)
	}
}
