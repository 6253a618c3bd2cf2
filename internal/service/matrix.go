package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// CellEnvs holds one environment lineage per cell for one person. Lineages
// are forked once at person start and evolve independently for the rest of
// the timeline; they are never re-synchronized.
type CellEnvs map[domain.Cell]*domain.Environment

// NewCellEnvs forks four independent copies of the canonical environment.
func NewCellEnvs(base *domain.Environment) CellEnvs {
	envs := make(CellEnvs, len(domain.AllCells))
	for _, cell := range domain.AllCells {
		envs[cell] = base.Snapshot()
	}
	return envs
}

// MatrixService executes the four branch cells of one command-eligible
// (person, tick). Each cell walks its state machine on its own environment
// lineage and its own context slice; all four start from the same quarter
// descriptor. A cell failure never touches the other three.
type MatrixService struct {
	interactionStore domain.InteractionStore
	commandOracle    domain.Oracle
	selfOracle       domain.Oracle
	generative       Assistant
	rule             Assistant
	logger           *zap.Logger
}

// NewMatrixService takes separate oracles for command generation and
// self-evaluation so the two call sites can run different providers.
func NewMatrixService(is domain.InteractionStore, commandOracle, selfOracle domain.Oracle, generative, rule Assistant, logger *zap.Logger) *MatrixService {
	return &MatrixService{
		interactionStore: is,
		commandOracle:    commandOracle,
		selfOracle:       selfOracle,
		generative:       generative,
		rule:             rule,
		logger:           logger,
	}
}

// ExecuteTick runs all four cells in parallel, then persists their records in
// canonical cell order. Only a storage failure returns an error; oracle and
// policy failures are contained in the affected record.
func (s *MatrixService) ExecuteTick(ctx context.Context, run *domain.Run, person *domain.Person, q domain.QuarterDescriptor, envs CellEnvs, memories []domain.WeightedMemory) ([]domain.InteractionRecord, error) {
	results := make([]*domain.InteractionRecord, len(domain.AllCells))

	var wg sync.WaitGroup
	for i, cell := range domain.AllCells {
		wg.Add(1)
		go func(i int, cell domain.Cell) {
			defer wg.Done()
			results[i] = s.executeCell(ctx, run, person, q, cell, envs[cell], memories)
		}(i, cell)
	}
	wg.Wait()

	records := make([]domain.InteractionRecord, 0, len(results))
	for _, rec := range results {
		if err := s.interactionStore.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist cell %s at tick %d: %w", rec.Cell, rec.Tick, err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *MatrixService) executeCell(ctx context.Context, run *domain.Run, person *domain.Person, q domain.QuarterDescriptor, cell domain.Cell, env *domain.Environment, memories []domain.WeightedMemory) *domain.InteractionRecord {
	rec := &domain.InteractionRecord{
		RunID:           run.ID,
		PersonID:        person.ID,
		Tick:            q.Tick,
		Timestamp:       q.Timestamp,
		Cell:            cell,
		State:           domain.CellStatePending,
		HourActivity:    q.HourActivity,
		QuarterActivity: q.QuarterActivity,
		ConcreteAction:  q.ConcreteAction,
		Location:        q.Location,
	}

	// Context derivation: the context-present slice carries the hidden
	// intent and recalled memory; the context-absent slice is what an
	// outside microphone would know.
	cmdReq := domain.CommandRequest{
		WithContext:     cell.ContextPresent(),
		PersonName:      person.Name,
		Location:        q.Location,
		QuarterActivity: q.QuarterActivity,
	}
	if cell.ContextPresent() {
		cmdReq.Traits = person.Traits
		cmdReq.HourActivity = q.HourActivity
		cmdReq.ConcreteAction = q.ConcreteAction
		cmdReq.HiddenIntent = q.HiddenIntent
		cmdReq.Memories = memories
		rec.MemoryRefs = memoryIDs(memories)
	}
	if err := advance(rec, domain.CellStateContextDerived); err != nil {
		return s.fail(rec, err)
	}

	command, err := s.commandOracle.GenerateCommand(ctx, cmdReq)
	if err != nil {
		return s.fail(rec, err)
	}
	rec.Command = command
	if err := advance(rec, domain.CellStateCommandIssued); err != nil {
		return s.fail(rec, err)
	}

	assistant := AssistantFor(cell, s.generative, s.rule)
	result, err := assistant.Handle(ctx, command, q.Location, env)
	if err != nil {
		return s.fail(rec, err)
	}
	rec.Reply = result.Reply
	rec.StateChanges = result.Changes
	rec.StateChangeDesc = env.DescribeObservableChanges(result.Changes)
	if err := advance(rec, domain.CellStateAssistantResponded); err != nil {
		return s.fail(rec, err)
	}

	// Self-evaluation needs the hidden intent, which only the
	// context-present cells legitimately hold. The others record the
	// not-applicable sentinel instead of a fabricated score.
	if cell.ContextPresent() {
		eval, err := s.selfOracle.SelfEvaluate(ctx, domain.SelfEvalRequest{
			PersonName:   person.Name,
			Traits:       person.Traits,
			HiddenIntent: q.HiddenIntent,
			Command:      command,
			Reply:        result.Reply,
			Changes:      result.Changes,
		})
		if err != nil {
			return s.fail(rec, err)
		}
		rec.SelfStatus = domain.SelfScored
		rec.SelfScore = &eval.Score
		rec.SelfReason = eval.Reason
	} else {
		rec.SelfStatus = domain.SelfNotApplicable
	}
	if err := advance(rec, domain.CellStateSelfEvaluated); err != nil {
		return s.fail(rec, err)
	}

	s.logger.Debug("cell completed",
		zap.String("person", person.Name),
		zap.Int("tick", q.Tick),
		zap.String("cell", string(cell)))

	return rec
}

func (s *MatrixService) fail(rec *domain.InteractionRecord, err error) *domain.InteractionRecord {
	rec.Error = err.Error()
	rec.State = domain.CellStateFailed
	s.logger.Warn("cell failed",
		zap.String("cell", string(rec.Cell)),
		zap.Int("tick", rec.Tick),
		zap.Error(err))
	return rec
}

func advance(rec *domain.InteractionRecord, next domain.CellState) error {
	if !rec.State.CanAdvance(next) {
		return fmt.Errorf("illegal cell state transition %s -> %s", rec.State, next)
	}
	rec.State = next
	return nil
}

func memoryIDs(memories []domain.WeightedMemory) []uuid.UUID {
	if len(memories) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	return ids
}
