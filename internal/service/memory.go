package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

var (
	ErrMemoryContentEmpty  = errors.New("content is required")
	ErrMemoryPersonMissing = errors.New("person_id is required")
	ErrInvalidMemoryKind   = errors.New("invalid memory kind")
)

// MemoryService owns the per-person memory stream: append-only writes during
// simulation, decay-weighted recall for generation. Stored records never carry
// a weight; the weight is recomputed from the elapsed ticks on every recall,
// so recall is a pure function of store contents and query tick.
type MemoryService struct {
	memoryStore domain.MemoryStore
	logger      *zap.Logger
}

func NewMemoryService(ms domain.MemoryStore, logger *zap.Logger) *MemoryService {
	return &MemoryService{
		memoryStore: ms,
		logger:      logger,
	}
}

// Weight computes the effective recall weight of a record created at
// createdTick when queried at nowTick: max(floor, 1 - decayPerTick*elapsed).
func Weight(createdTick, nowTick int, decayPerTick, floor float64) float64 {
	elapsed := nowTick - createdTick
	if elapsed < 0 {
		elapsed = 0
	}
	w := 1.0 - decayPerTick*float64(elapsed)
	if w < floor {
		return floor
	}
	return w
}

func (s *MemoryService) Record(ctx context.Context, personID uuid.UUID, tick int, ts time.Time, kind domain.MemoryKind, content string) (*domain.MemoryRecord, error) {
	if personID == uuid.Nil {
		return nil, ErrMemoryPersonMissing
	}
	if content == "" {
		return nil, ErrMemoryContentEmpty
	}
	if !domain.ValidMemoryKind(string(kind)) {
		return nil, ErrInvalidMemoryKind
	}

	m := &domain.MemoryRecord{
		PersonID:  personID,
		Tick:      tick,
		Timestamp: ts,
		Kind:      kind,
		Content:   content,
	}
	if err := s.memoryStore.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Debug("memory recorded",
		zap.String("person_id", personID.String()),
		zap.Int("tick", tick),
		zap.String("kind", string(kind)))

	return m, nil
}

// Recall returns the person's memories as of nowTick, weighted by decay and
// ordered by weight descending with ties broken by recency. limit <= 0 returns
// everything.
func (s *MemoryService) Recall(ctx context.Context, personID uuid.UUID, nowTick int, params domain.RunParams, limit int) ([]domain.WeightedMemory, error) {
	if personID == uuid.Nil {
		return nil, ErrMemoryPersonMissing
	}

	records, err := s.memoryStore.ListByPerson(ctx, personID, nowTick)
	if err != nil {
		return nil, err
	}

	weighted := make([]domain.WeightedMemory, len(records))
	for i, r := range records {
		weighted[i] = domain.WeightedMemory{
			MemoryRecord: r,
			Weight:       Weight(r.Tick, nowTick, params.DecayPerTick, params.DecayFloor),
		}
	}

	sort.SliceStable(weighted, func(i, j int) bool {
		if weighted[i].Weight != weighted[j].Weight {
			return weighted[i].Weight > weighted[j].Weight
		}
		if weighted[i].Tick != weighted[j].Tick {
			return weighted[i].Tick > weighted[j].Tick
		}
		return weighted[i].CreatedAt.After(weighted[j].CreatedAt)
	})

	if limit > 0 && len(weighted) > limit {
		weighted = weighted[:limit]
	}
	return weighted, nil
}
