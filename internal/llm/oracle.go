package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// completer is the transport half of a provider: one prompt in, raw model
// text out.
type completer interface {
	complete(ctx context.Context, prompt string, temp float32) (string, error)
}

// oracle implements domain.Oracle on top of any provider transport. Prompt
// construction, fence stripping, JSON extraction, and shape validation live
// here once; the providers only move bytes.
type oracle struct {
	provider string
	c        completer
}

func (o *oracle) QuarterNarratives(ctx context.Context, req domain.NarrativeRequest) ([]domain.QuarterDraft, error) {
	expected := domain.QuartersPerHour
	if req.TickMinutes > 0 && 60%req.TickMinutes == 0 {
		expected = 60 / req.TickMinutes
	}

	prompt := fmt.Sprintf(narrativePrompt,
		req.PersonName,
		req.Traits,
		req.HourActivity,
		req.HourStart.Format("15:04"),
		expected,
		req.TickMinutes,
		strings.Join(req.Locations, ", "),
		formatMemories(req.Memories),
	)

	raw, err := o.c.complete(ctx, prompt, 0.8)
	if err != nil {
		return nil, fmt.Errorf("quarter narratives: %w", err)
	}

	var drafts []domain.QuarterDraft
	if err := unmarshalJSON(raw, &drafts); err != nil {
		return nil, fmt.Errorf("parse quarter narratives: %w", err)
	}

	if len(drafts) != expected {
		return nil, fmt.Errorf("quarter narratives: expected %d quarters, got %d", expected, len(drafts))
	}
	for i, d := range drafts {
		if strings.TrimSpace(d.QuarterActivity) == "" {
			return nil, fmt.Errorf("quarter narratives: quarter %d has empty activity", i)
		}
		if strings.TrimSpace(d.ConcreteAction) == "" {
			return nil, fmt.Errorf("quarter narratives: quarter %d has empty concrete action", i)
		}
		if domain.SentenceCount(d.ConcreteAction) < 3 {
			return nil, fmt.Errorf("quarter narratives: quarter %d action has fewer than 3 sentences", i)
		}
		if len(req.Locations) > 0 && !containsString(req.Locations, d.Location) {
			return nil, fmt.Errorf("quarter narratives: quarter %d location %q is not in the household", i, d.Location)
		}
	}
	return drafts, nil
}

func (o *oracle) GenerateCommand(ctx context.Context, req domain.CommandRequest) (string, error) {
	var prompt string
	if req.WithContext {
		prompt = fmt.Sprintf(commandWithContextPrompt,
			req.PersonName,
			req.Traits,
			req.Location,
			req.HourActivity,
			req.QuarterActivity,
			req.ConcreteAction,
			req.HiddenIntent,
			formatMemories(req.Memories),
		)
	} else {
		prompt = fmt.Sprintf(commandBlindPrompt,
			req.PersonName,
			req.Location,
			req.QuarterActivity,
		)
	}

	raw, err := o.c.complete(ctx, prompt, 0.7)
	if err != nil {
		return "", fmt.Errorf("generate command: %w", err)
	}

	command := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if command == "" {
		return "", fmt.Errorf("generate command: empty command text")
	}
	return command, nil
}

func (o *oracle) GenerativeAct(ctx context.Context, req domain.GenerativeRequest) (*domain.GenerativeResult, error) {
	envJSON, err := json.Marshal(req.Environment)
	if err != nil {
		return nil, fmt.Errorf("marshal environment: %w", err)
	}

	prompt := fmt.Sprintf(generativeActPrompt, req.Command, string(envJSON))

	raw, err := o.c.complete(ctx, prompt, 0.5)
	if err != nil {
		return nil, fmt.Errorf("generative act: %w", err)
	}

	var result domain.GenerativeResult
	if err := unmarshalJSON(raw, &result); err != nil {
		return nil, fmt.Errorf("parse generative act: %w", err)
	}
	if strings.TrimSpace(result.Reply) == "" {
		return nil, fmt.Errorf("generative act: empty reply")
	}
	for i, c := range result.Changes {
		if c.Room == "" || c.Device == "" || c.Property == "" {
			return nil, fmt.Errorf("generative act: change %d is incomplete", i)
		}
		if req.Environment != nil && !req.Environment.HasProperty(c.Room, c.Device, c.Property) {
			return nil, fmt.Errorf("generative act: change %d targets unknown property %s.%s.%s", i, c.Room, c.Device, c.Property)
		}
	}
	return &result, nil
}

func (o *oracle) ClassifyIntent(ctx context.Context, req domain.ClassifyRequest) (string, error) {
	prompt := fmt.Sprintf(classifyPrompt, strings.Join(req.Labels, "\n"), req.Command)

	raw, err := o.c.complete(ctx, prompt, 0)
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}

	label := strings.TrimSpace(strings.Trim(strings.TrimSpace(stripFences(raw)), `"`))
	if label == "none" {
		return "none", nil
	}
	for _, l := range req.Labels {
		if label == l {
			return label, nil
		}
	}
	return "", fmt.Errorf("classify intent: %q is not in the label set", label)
}

func (o *oracle) SelfEvaluate(ctx context.Context, req domain.SelfEvalRequest) (*domain.Evaluation, error) {
	prompt := fmt.Sprintf(selfEvalPrompt,
		req.PersonName,
		req.Traits,
		req.HiddenIntent,
		req.Command,
		req.Reply,
		formatChanges(req.Changes),
	)

	raw, err := o.c.complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, fmt.Errorf("self evaluate: %w", err)
	}
	return parseEvaluation(raw, "self evaluate")
}

func (o *oracle) ObserverEvaluate(ctx context.Context, view domain.ObserverView) (*domain.Evaluation, error) {
	prompt := fmt.Sprintf(observerEvalPrompt, view.Command, view.Reply, view.ObservableChanges)

	raw, err := o.c.complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, fmt.Errorf("observer evaluate: %w", err)
	}
	return parseEvaluation(raw, "observer evaluate")
}

func parseEvaluation(raw, op string) (*domain.Evaluation, error) {
	var eval domain.Evaluation
	if err := unmarshalJSON(raw, &eval); err != nil {
		return nil, fmt.Errorf("parse %s: %w", op, err)
	}
	if !domain.ValidScore(eval.Score) {
		return nil, fmt.Errorf("%s: score %d outside 1-7", op, eval.Score)
	}
	if strings.TrimSpace(eval.Reason) == "" {
		return nil, fmt.Errorf("%s: empty reason", op)
	}
	return &eval, nil
}

func formatMemories(memories []domain.WeightedMemory) string {
	if len(memories) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, m := range memories {
		sb.WriteString(fmt.Sprintf("- [%.2f] %s\n", m.Weight, m.Content))
	}
	return sb.String()
}

func formatChanges(changes []domain.StateChange) string {
	if len(changes) == 0 {
		return "(no state changes)"
	}
	var sb strings.Builder
	for _, c := range changes {
		sb.WriteString(fmt.Sprintf("- %s.%s.%s: %s -> %s\n", c.Room, c.Device, c.Property, c.Before, c.After))
	}
	return sb.String()
}

// stripFences removes markdown code fences if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSON cuts the first JSON value out of surrounding prose: everything
// from the first { or [ through the matching last } or ].
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s
	}
	return s[start : end+1]
}

// unmarshalJSON parses model output into v, tolerating markdown fences and
// prose around the JSON value.
func unmarshalJSON(raw string, v any) error {
	cleaned := extractJSON(stripFences(raw))
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w (raw: %s)", err, truncate(raw, 300))
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
