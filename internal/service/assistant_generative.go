package service

import (
	"context"
	"fmt"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// GenerativeAssistant lets the oracle interpret the command freely against
// the branch environment: the oracle decides both the mutations and the reply
// wording. Proposed mutations are validated inside the oracle call (so bad
// targets are retried as malformed output) and applied here.
type GenerativeAssistant struct {
	oracle domain.Oracle
}

func NewGenerativeAssistant(oracle domain.Oracle) *GenerativeAssistant {
	return &GenerativeAssistant{oracle: oracle}
}

func (a *GenerativeAssistant) Handle(ctx context.Context, command, location string, env *domain.Environment) (*AssistantResult, error) {
	result, err := a.oracle.GenerativeAct(ctx, domain.GenerativeRequest{
		Command:     command,
		Environment: env,
	})
	if err != nil {
		return nil, err
	}

	changes := make([]domain.StateChange, 0, len(result.Changes))
	for _, c := range result.Changes {
		sc, err := env.Apply(c.Room, c.Device, c.Property, c.Value)
		if err != nil {
			return nil, fmt.Errorf("apply generative change %s.%s.%s: %w", c.Room, c.Device, c.Property, err)
		}
		changes = append(changes, sc)
	}

	return &AssistantResult{Reply: result.Reply, Changes: changes}, nil
}

var _ Assistant = (*GenerativeAssistant)(nil)
