package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

var ErrSearchQueryEmpty = errors.New("search query is empty")

const backfillBatch = 100

// SearchService answers similarity queries over issued commands. Embeddings
// are written by Backfill after the fact rather than inline during
// simulation, so an embedding outage can never stall a run.
type SearchService struct {
	interactionStore domain.InteractionStore
	embedder         domain.EmbeddingClient
	logger           *zap.Logger
}

func NewSearchService(is domain.InteractionStore, embedder domain.EmbeddingClient, logger *zap.Logger) *SearchService {
	return &SearchService{
		interactionStore: is,
		embedder:         embedder,
		logger:           logger,
	}
}

// Search returns the records whose command text is closest to query.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]domain.RecordWithSimilarity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrSearchQueryEmpty
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.interactionStore.SearchByCommand(ctx, vec, limit)
}

// Backfill embeds the commands of a run's records that have no embedding
// yet. Per-record failures are logged and skipped; those records stay
// eligible for the next pass.
func (s *SearchService) Backfill(ctx context.Context, runID uuid.UUID) (int, error) {
	embedded := 0
	for {
		records, err := s.interactionStore.ListMissingEmbeddings(ctx, runID, backfillBatch)
		if err != nil {
			return embedded, err
		}
		if len(records) == 0 {
			break
		}

		progressed := false
		for i := range records {
			rec := &records[i]
			vec, err := s.embedder.Embed(ctx, rec.Command)
			if err != nil {
				s.logger.Warn("embed command failed",
					zap.String("record_id", rec.ID.String()),
					zap.Error(err))
				continue
			}
			if err := s.interactionStore.SetEmbedding(ctx, rec.ID, vec); err != nil {
				s.logger.Warn("store embedding failed",
					zap.String("record_id", rec.ID.String()),
					zap.Error(err))
				continue
			}
			embedded++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	s.logger.Info("embedding backfill finished",
		zap.String("run_id", runID.String()),
		zap.Int("embedded", embedded))

	return embedded, nil
}
