package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

var ErrNoScheduleEntry = errors.New("no schedule entry covers this hour")

// NarrativeService turns one hour of a person's schedule into ordered
// quarter-hour descriptors. Content comes from the oracle; this service owns
// sequencing, the feasibility gate, and nothing else. Shape validation
// (quarter count, sentence minimum, known locations) happens inside the
// oracle call so malformed output is retried there.
type NarrativeService struct {
	oracle domain.Oracle
	logger *zap.Logger
}

func NewNarrativeService(oracle domain.Oracle, logger *zap.Logger) *NarrativeService {
	return &NarrativeService{
		oracle: oracle,
		logger: logger,
	}
}

// QuartersForHour derives the descriptors for the ticks covering entry's
// hour, starting at baseTick. Recalled memories condition the narrative so
// consecutive hours stay coherent.
func (s *NarrativeService) QuartersForHour(ctx context.Context, run *domain.Run, person *domain.Person, entry domain.ScheduleEntry, baseTick int, memories []domain.WeightedMemory, env *domain.Environment) ([]domain.QuarterDescriptor, error) {
	drafts, err := s.oracle.QuarterNarratives(ctx, domain.NarrativeRequest{
		PersonName:   person.Name,
		Traits:       person.Traits,
		HourActivity: entry.Activity,
		HourStart:    entry.Start,
		TickMinutes:  run.Params.TickMinutes,
		Locations:    env.RoomNames(),
		Memories:     memories,
	})
	if err != nil {
		return nil, err
	}

	quarters := make([]domain.QuarterDescriptor, len(drafts))
	for i, d := range drafts {
		tick := baseTick + i
		quarters[i] = domain.QuarterDescriptor{
			Tick:            tick,
			Timestamp:       run.TickTime(tick),
			HourActivity:    entry.Activity,
			QuarterActivity: d.QuarterActivity,
			ConcreteAction:  d.ConcreteAction,
			Location:        d.Location,
			HiddenIntent:    d.HiddenIntent,
			CommandEligible: !gated(d.QuarterActivity, entry.Activity, run.Params.BlockKeywords),
		}
	}

	s.logger.Debug("hour expanded into quarters",
		zap.String("person", person.Name),
		zap.String("activity", entry.Activity),
		zap.Int("base_tick", baseTick),
		zap.Int("quarters", len(quarters)))

	return quarters, nil
}

// gated reports whether an activity is incompatible with issuing a spoken
// command. Matched against both granularities so an hour labeled 수면 blocks
// its quarters even when the quarter label drifts.
func gated(quarterActivity, hourActivity string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(quarterActivity, kw) || strings.Contains(hourActivity, kw) {
			return true
		}
	}
	return false
}
