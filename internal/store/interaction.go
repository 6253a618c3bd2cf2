package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/sungho-yun/gapsim/internal/domain"
)

const recordColumns = `id, run_id, person_id, tick, ts, cell, state,
	hour_activity, quarter_activity, concrete_action, location, memory_refs,
	command, reply, state_changes, state_change_desc,
	self_status, self_score, self_reason, observer_score, observer_reason,
	error, created_at, updated_at`

type InteractionStore struct {
	db *pgxpool.Pool
}

func NewInteractionStore(db *pgxpool.Pool) *InteractionStore {
	return &InteractionStore{db: db}
}

func (s *InteractionStore) Create(ctx context.Context, r *domain.InteractionRecord) error {
	changesJSON, err := json.Marshal(r.StateChanges)
	if err != nil {
		return fmt.Errorf("marshal state changes: %w", err)
	}

	if r.SelfStatus == "" {
		r.SelfStatus = domain.SelfScored
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO interaction_records (
			run_id, person_id, tick, ts, cell, state,
			hour_activity, quarter_activity, concrete_action, location, memory_refs,
			command, reply, state_changes, state_change_desc,
			self_status, self_score, self_reason, error
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $19
		) RETURNING id, created_at, updated_at`,
		r.RunID, r.PersonID, r.Tick, r.Timestamp, r.Cell, r.State,
		r.HourActivity, r.QuarterActivity, r.ConcreteAction, r.Location, r.MemoryRefs,
		r.Command, r.Reply, changesJSON, r.StateChangeDesc,
		r.SelfStatus, r.SelfScore, r.SelfReason, r.Error,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *InteractionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.InteractionRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM interaction_records WHERE id = $1`,
		id,
	)

	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *InteractionStore) ListByRun(ctx context.Context, runID uuid.UUID, f domain.RecordFilter) ([]domain.InteractionRecord, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("run_id = $%d", len(args)+1))
	args = append(args, runID)

	if f.PersonID != nil {
		conditions = append(conditions, fmt.Sprintf("person_id = $%d", len(args)+1))
		args = append(args, *f.PersonID)
	}
	if f.Cell != nil {
		conditions = append(conditions, fmt.Sprintf("cell = $%d", len(args)+1))
		args = append(args, string(*f.Cell))
	}
	if f.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, string(*f.State))
	}
	if f.Tick != nil {
		conditions = append(conditions, fmt.Sprintf("tick = $%d", len(args)+1))
		args = append(args, *f.Tick)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM interaction_records
		 WHERE %s
		 ORDER BY person_id, tick ASC, cell ASC`,
		recordColumns,
		strings.Join(conditions, " AND "),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records query: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *InteractionStore) ListForObservation(ctx context.Context, runID uuid.UUID) ([]domain.InteractionRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM interaction_records
		 WHERE run_id = $1 AND state = $2
		 ORDER BY person_id, tick ASC, cell ASC`,
		runID, domain.CellStateSelfEvaluated,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *InteractionStore) UpdateObserverEval(ctx context.Context, id uuid.UUID, score int, reason string, state domain.CellState) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE interaction_records
		 SET observer_score = $1, observer_reason = $2, state = $3, updated_at = NOW()
		 WHERE id = $4`,
		score, reason, state, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDone advances every observer-evaluated record of the run to the done
// state and reports how many rows moved.
func (s *InteractionStore) MarkDone(ctx context.Context, runID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE interaction_records SET state = $1, updated_at = NOW()
		 WHERE run_id = $2 AND state = $3`,
		domain.CellStateDone, runID, domain.CellStateObserverEvaluated,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *InteractionStore) CountByRunAndState(ctx context.Context, runID uuid.UUID, state domain.CellState) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM interaction_records WHERE run_id = $1 AND state = $2`,
		runID, state,
	).Scan(&count)
	return count, err
}

func (s *InteractionStore) DeleteFromTick(ctx context.Context, runID, personID uuid.UUID, fromTick int) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM interaction_records
		 WHERE run_id = $1 AND person_id = $2 AND tick >= $3`,
		runID, personID, fromTick,
	)
	return err
}

func (s *InteractionStore) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.db.Exec(ctx,
		`UPDATE interaction_records SET command_embedding = $1, updated_at = NOW() WHERE id = $2`,
		vec, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *InteractionStore) ListMissingEmbeddings(ctx context.Context, runID uuid.UUID, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM interaction_records
		 WHERE run_id = $1 AND command <> '' AND command_embedding IS NULL
		 ORDER BY created_at ASC
		 LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *InteractionStore) SearchByCommand(ctx context.Context, embedding []float32, limit int) ([]domain.RecordWithSimilarity, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+`,
		        1 - (command_embedding <=> $1) AS similarity
		 FROM interaction_records
		 WHERE command_embedding IS NOT NULL
		 ORDER BY similarity DESC
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search by command query: %w", err)
	}
	defer rows.Close()

	var results []domain.RecordWithSimilarity
	for rows.Next() {
		var rs domain.RecordWithSimilarity
		var changesJSON []byte
		err := rows.Scan(
			&rs.ID, &rs.RunID, &rs.PersonID, &rs.Tick, &rs.Timestamp, &rs.Cell, &rs.State,
			&rs.HourActivity, &rs.QuarterActivity, &rs.ConcreteAction, &rs.Location, &rs.MemoryRefs,
			&rs.Command, &rs.Reply, &changesJSON, &rs.StateChangeDesc,
			&rs.SelfStatus, &rs.SelfScore, &rs.SelfReason, &rs.ObserverScore, &rs.ObserverReason,
			&rs.Error, &rs.CreatedAt, &rs.UpdatedAt,
			&rs.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if len(changesJSON) > 0 {
			_ = json.Unmarshal(changesJSON, &rs.StateChanges)
		}
		results = append(results, rs)
	}

	return results, rows.Err()
}

func scanRecord(row pgx.Row) (*domain.InteractionRecord, error) {
	r := &domain.InteractionRecord{}
	var changesJSON []byte

	err := row.Scan(
		&r.ID, &r.RunID, &r.PersonID, &r.Tick, &r.Timestamp, &r.Cell, &r.State,
		&r.HourActivity, &r.QuarterActivity, &r.ConcreteAction, &r.Location, &r.MemoryRefs,
		&r.Command, &r.Reply, &changesJSON, &r.StateChangeDesc,
		&r.SelfStatus, &r.SelfScore, &r.SelfReason, &r.ObserverScore, &r.ObserverReason,
		&r.Error, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(changesJSON) > 0 {
		if err := json.Unmarshal(changesJSON, &r.StateChanges); err != nil {
			return nil, fmt.Errorf("unmarshal state changes: %w", err)
		}
	}

	return r, nil
}

func scanRecords(rows pgx.Rows) ([]domain.InteractionRecord, error) {
	var records []domain.InteractionRecord
	for rows.Next() {
		var r domain.InteractionRecord
		var changesJSON []byte

		err := rows.Scan(
			&r.ID, &r.RunID, &r.PersonID, &r.Tick, &r.Timestamp, &r.Cell, &r.State,
			&r.HourActivity, &r.QuarterActivity, &r.ConcreteAction, &r.Location, &r.MemoryRefs,
			&r.Command, &r.Reply, &changesJSON, &r.StateChangeDesc,
			&r.SelfStatus, &r.SelfScore, &r.SelfReason, &r.ObserverScore, &r.ObserverReason,
			&r.Error, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(changesJSON) > 0 {
			_ = json.Unmarshal(changesJSON, &r.StateChanges)
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.InteractionStore = (*InteractionStore)(nil)
