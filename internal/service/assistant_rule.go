package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sungho-yun/gapsim/internal/domain"
)

const (
	fallbackReply      = "죄송합니다. 말씀하신 명령을 이해하지 못했어요."
	deviceMissingReply = "죄송합니다. 해당 기기를 찾을 수 없어요."
)

// propertyTarget is a (property, value) pair a rule falls back to when the
// resolved device lacks the primary property.
type propertyTarget struct {
	property string
	value    string
}

// intentRule maps one classifier label onto a deterministic mutation and a
// templated reply.
type intentRule struct {
	device   string
	property string
	value    string
	fallback *propertyTarget
	reply    string
}

// intentTable is the fixed taxonomy the rule policy understands. The
// classifier is constrained to exactly these labels (plus "none").
var intentTable = map[string]intentRule{
	"LIGHT_ON":       {device: "light", property: "power", value: "on", reply: "네, 조명을 켰어요."},
	"LIGHT_OFF":      {device: "light", property: "power", value: "off", reply: "네, 조명을 껐어요."},
	"LIGHT_BRIGHT":   {device: "light", property: "brightness", value: "high", fallback: &propertyTarget{"power", "on"}, reply: "네, 조명을 밝게 했어요."},
	"LIGHT_DIM":      {device: "light", property: "brightness", value: "low", fallback: &propertyTarget{"power", "off"}, reply: "네, 조명을 어둡게 했어요."},
	"TV_ON":          {device: "tv", property: "power", value: "on", reply: "네, TV를 켰어요."},
	"TV_OFF":         {device: "tv", property: "power", value: "off", reply: "네, TV를 껐어요."},
	"TV_VOLUME_UP":   {device: "tv", property: "volume", value: "high", reply: "네, 음량을 높였어요."},
	"TV_VOLUME_DOWN": {device: "tv", property: "volume", value: "low", reply: "네, 음량을 낮췄어요."},
	"AC_ON":          {device: "ac", property: "power", value: "on", reply: "네, 에어컨을 켰어요."},
	"AC_OFF":         {device: "ac", property: "power", value: "off", reply: "네, 에어컨을 껐어요."},
	"TEMP_UP":        {device: "thermostat", property: "temperature", value: "26", reply: "네, 온도를 올렸어요."},
	"TEMP_DOWN":      {device: "thermostat", property: "temperature", value: "22", reply: "네, 온도를 내렸어요."},
	"MUSIC_PLAY":     {device: "speaker", property: "power", value: "on", reply: "네, 음악을 틀었어요."},
	"MUSIC_STOP":     {device: "speaker", property: "power", value: "off", reply: "네, 음악을 껐어요."},
	"CURTAIN_OPEN":   {device: "curtain", property: "position", value: "open", reply: "네, 커튼을 열었어요."},
	"CURTAIN_CLOSE":  {device: "curtain", property: "position", value: "closed", reply: "네, 커튼을 닫았어요."},
}

// IntentLabels returns the taxonomy in sorted order for the classifier
// prompt.
func IntentLabels() []string {
	labels := make([]string, 0, len(intentTable))
	for label := range intentTable {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// RuleAssistant classifies the command into the fixed taxonomy, then applies
// a deterministic table lookup. The target device resolves in the speaker's
// location first, then the first room holding that device kind. Unmatched
// commands get an explicit fallback reply and change nothing.
type RuleAssistant struct {
	oracle domain.Oracle
	labels []string
}

func NewRuleAssistant(oracle domain.Oracle) *RuleAssistant {
	return &RuleAssistant{
		oracle: oracle,
		labels: IntentLabels(),
	}
}

func (a *RuleAssistant) Handle(ctx context.Context, command, location string, env *domain.Environment) (*AssistantResult, error) {
	label, err := a.oracle.ClassifyIntent(ctx, domain.ClassifyRequest{
		Command: command,
		Labels:  a.labels,
	})
	if err != nil {
		return nil, err
	}
	if label == "none" {
		return &AssistantResult{Reply: fallbackReply}, nil
	}

	rule, ok := intentTable[label]
	if !ok {
		// Classifier output is constrained to the label set, so this is a
		// table/classifier mismatch, not a user-command problem.
		return nil, fmt.Errorf("intent %q has no rule", label)
	}

	room, found := env.FindDevice(rule.device, location)
	if !found {
		return &AssistantResult{Reply: deviceMissingReply}, nil
	}

	property, value := rule.property, rule.value
	if !env.HasProperty(room, rule.device, property) {
		if rule.fallback == nil {
			return nil, fmt.Errorf("rule %s: device %s.%s lacks property %s", label, room, rule.device, property)
		}
		property, value = rule.fallback.property, rule.fallback.value
	}

	change, err := env.Apply(room, rule.device, property, value)
	if err != nil {
		return nil, fmt.Errorf("apply rule %s: %w", label, err)
	}

	return &AssistantResult{
		Reply:   rule.reply,
		Changes: []domain.StateChange{change},
	}, nil
}

var _ Assistant = (*RuleAssistant)(nil)
