package service

import (
	"context"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// AssistantResult is what a policy hands back for one command: the spoken
// reply and the state changes it applied to the branch environment.
type AssistantResult struct {
	Reply   string
	Changes []domain.StateChange
}

// Assistant maps a natural-language command onto the branch's environment.
// Implementations mutate only the environment they are handed; they never
// touch another branch's copy or the person's memory.
type Assistant interface {
	Handle(ctx context.Context, command, location string, env *domain.Environment) (*AssistantResult, error)
}

// AssistantFor returns the policy implementation for a cell.
func AssistantFor(cell domain.Cell, generative, rule Assistant) Assistant {
	if cell.Policy() == domain.PolicyRule {
		return rule
	}
	return generative
}
