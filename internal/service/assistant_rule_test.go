package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sungho-yun/gapsim/internal/domain"
	"github.com/sungho-yun/gapsim/internal/llm"
)

// classifierFor builds a mock whose classifier answers from a fixed
// command-to-label table, standing in for the constrained-output call.
func classifierFor(table map[string]string) *llm.MockOracle {
	oracle := llm.NewMockOracle()
	oracle.ClassifyIntentFunc = func(req domain.ClassifyRequest) (string, error) {
		if label, ok := table[req.Command]; ok {
			return label, nil
		}
		return "none", nil
	}
	return oracle
}

func TestRuleAssistant_Intents(t *testing.T) {
	oracle := classifierFor(map[string]string{
		"불 켜줘":  "LIGHT_ON",
		"불 꺼줘":  "LIGHT_OFF",
		"TV 켜줘": "TV_ON",
	})
	assistant := NewRuleAssistant(oracle)
	ctx := context.Background()

	tests := []struct {
		name      string
		command   string
		room      string
		device    string
		property  string
		wantValue string
		wantReply string
	}{
		{"light on", "불 켜줘", "living_room", "light", "power", "on", "네, 조명을 켰어요."},
		{"light off", "불 꺼줘", "living_room", "light", "power", "off", "네, 조명을 껐어요."},
		{"tv on", "TV 켜줘", "living_room", "tv", "power", "on", "네, TV를 켰어요."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testHouseEnv()
			result, err := assistant.Handle(ctx, tt.command, "living_room", env)
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if result.Reply != tt.wantReply {
				t.Errorf("reply = %q, want %q", result.Reply, tt.wantReply)
			}
			if len(result.Changes) != 1 {
				t.Fatalf("changes = %d, want 1", len(result.Changes))
			}
			c := result.Changes[0]
			if c.Room != tt.room || c.Device != tt.device || c.Property != tt.property || c.After != tt.wantValue {
				t.Errorf("change = %+v", c)
			}
			if v, _ := env.Value(tt.room, tt.device, tt.property); v != tt.wantValue {
				t.Errorf("environment value = %q, want %q", v, tt.wantValue)
			}
		})
	}
}

func TestRuleAssistant_ResolvesDeviceInSpeakerRoomFirst(t *testing.T) {
	oracle := classifierFor(map[string]string{"불 켜줘": "LIGHT_ON"})
	assistant := NewRuleAssistant(oracle)

	// Both rooms have a light; the speaker's room wins.
	env := testHouseEnv()
	result, err := assistant.Handle(context.Background(), "불 켜줘", "bedroom", env)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Changes[0].Room != "bedroom" {
		t.Errorf("room = %q, want bedroom", result.Changes[0].Room)
	}
	if v, _ := env.Value("living_room", "light", "power"); v != "off" {
		t.Error("living room light changed from a bedroom command")
	}
}

func TestRuleAssistant_UnmatchedCommand(t *testing.T) {
	oracle := classifierFor(nil) // everything classifies as none
	assistant := NewRuleAssistant(oracle)

	env := testHouseEnv()
	result, err := assistant.Handle(context.Background(), "오늘 기분 어때?", "living_room", env)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Reply != fallbackReply {
		t.Errorf("reply = %q, want fallback", result.Reply)
	}
	if len(result.Changes) != 0 {
		t.Errorf("unmatched command mutated the environment: %+v", result.Changes)
	}
}

func TestRuleAssistant_DeviceMissing(t *testing.T) {
	oracle := classifierFor(map[string]string{"에어컨 켜줘": "AC_ON"})
	assistant := NewRuleAssistant(oracle)

	env := testHouseEnv() // no ac anywhere
	result, err := assistant.Handle(context.Background(), "에어컨 켜줘", "living_room", env)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Reply != deviceMissingReply {
		t.Errorf("reply = %q, want device-missing reply", result.Reply)
	}
	if len(result.Changes) != 0 {
		t.Errorf("missing device still produced changes: %+v", result.Changes)
	}
}

func TestRuleAssistant_PropertyFallback(t *testing.T) {
	oracle := classifierFor(map[string]string{"불 밝게 해줘": "LIGHT_BRIGHT"})
	assistant := NewRuleAssistant(oracle)

	// The test light has power but no brightness, so the rule falls back to
	// switching it on.
	env := testHouseEnv()
	result, err := assistant.Handle(context.Background(), "불 밝게 해줘", "living_room", env)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	c := result.Changes[0]
	if c.Property != "power" || c.After != "on" {
		t.Errorf("fallback change = %+v, want power=on", c)
	}
}

func TestRuleAssistant_PropertyMissingNoFallback(t *testing.T) {
	oracle := classifierFor(map[string]string{"소리 키워줘": "TV_VOLUME_UP"})
	assistant := NewRuleAssistant(oracle)

	// The test tv has no volume property and TV_VOLUME_UP has no fallback.
	env := testHouseEnv()
	if _, err := assistant.Handle(context.Background(), "소리 키워줘", "living_room", env); err == nil {
		t.Fatal("expected error for missing property without fallback")
	}
}

func TestRuleAssistant_ClassifierErrorPropagates(t *testing.T) {
	oracle := llm.NewMockOracle()
	oracle.ClassifyIntentError = errors.New("provider down")
	assistant := NewRuleAssistant(oracle)

	if _, err := assistant.Handle(context.Background(), "불 켜줘", "living_room", testHouseEnv()); err == nil {
		t.Fatal("expected classifier error to propagate")
	}
}

func TestIntentLabels_SortedAndComplete(t *testing.T) {
	labels := IntentLabels()
	if len(labels) != len(intentTable) {
		t.Fatalf("labels = %d, want %d", len(labels), len(intentTable))
	}
	for i := 1; i < len(labels); i++ {
		if labels[i-1] >= labels[i] {
			t.Errorf("labels not sorted at %d: %s >= %s", i, labels[i-1], labels[i])
		}
	}
	for _, l := range labels {
		if _, ok := intentTable[l]; !ok {
			t.Errorf("label %s has no rule", l)
		}
	}
}
