package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

var ErrNothingToObserve = errors.New("run has no records awaiting observation")

// ObservationService runs the later observer pass: every record that reached
// self-evaluation gets a 1-7 rating computed strictly from the observer view.
// The view type carries only command, reply, and the observable change
// description, so hidden intent cannot reach the observer even by accident.
type ObservationService struct {
	interactionStore domain.InteractionStore
	oracle           domain.Oracle
	logger           *zap.Logger
}

func NewObservationService(is domain.InteractionStore, oracle domain.Oracle, logger *zap.Logger) *ObservationService {
	return &ObservationService{
		interactionStore: is,
		oracle:           oracle,
		logger:           logger,
	}
}

// ObserveRun evaluates all pending records of a run. Oracle failures leave
// the affected record awaiting observation so a later pass can pick it up;
// only storage errors abort. Returns how many records were evaluated and how
// many failed.
func (s *ObservationService) ObserveRun(ctx context.Context, runID uuid.UUID) (evaluated, failed int, err error) {
	records, err := s.interactionStore.ListForObservation(ctx, runID)
	if err != nil {
		return 0, 0, fmt.Errorf("list records for observation: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, ErrNothingToObserve
	}

	for i := range records {
		rec := &records[i]
		view := domain.NewObserverView(rec)

		eval, oerr := s.oracle.ObserverEvaluate(ctx, view)
		if oerr != nil {
			failed++
			s.logger.Warn("observer evaluation failed",
				zap.String("record_id", rec.ID.String()),
				zap.Error(oerr))
			continue
		}

		if serr := s.interactionStore.UpdateObserverEval(ctx, rec.ID, eval.Score, eval.Reason, domain.CellStateObserverEvaluated); serr != nil {
			return evaluated, failed, fmt.Errorf("store observer evaluation: %w", serr)
		}
		evaluated++
	}

	s.logger.Info("observer pass finished",
		zap.String("run_id", runID.String()),
		zap.Int("evaluated", evaluated),
		zap.Int("failed", failed))

	return evaluated, failed, nil
}
