package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungho-yun/gapsim/internal/domain"
)

type RunStore struct {
	db *pgxpool.Pool
}

func NewRunStore(db *pgxpool.Pool) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Create(ctx context.Context, r *domain.Run) error {
	paramsJSON, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}
	householdJSON, err := json.Marshal(r.Household)
	if err != nil {
		return fmt.Errorf("marshal household: %w", err)
	}

	if r.Status == "" {
		r.Status = domain.RunStatusCreated
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO runs (name, template, status, start_time, params, household, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		r.Name, r.Template, r.Status, r.StartTime, paramsJSON, householdJSON, r.Error,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *RunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	r := &domain.Run{}
	var paramsJSON, householdJSON []byte

	err := s.db.QueryRow(ctx,
		`SELECT id, name, template, status, start_time, params, household, error, created_at, updated_at
		 FROM runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Name, &r.Template, &r.Status, &r.StartTime, &paramsJSON, &householdJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
			return nil, fmt.Errorf("unmarshal run params: %w", err)
		}
	}
	if len(householdJSON) > 0 {
		if err := json.Unmarshal(householdJSON, &r.Household); err != nil {
			return nil, fmt.Errorf("unmarshal household: %w", err)
		}
	}

	return r, nil
}

func (s *RunStore) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, name, template, status, start_time, params, household, error, created_at, updated_at
		 FROM runs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		var paramsJSON, householdJSON []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.Template, &r.Status, &r.StartTime, &paramsJSON, &householdJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if len(paramsJSON) > 0 {
			_ = json.Unmarshal(paramsJSON, &r.Params)
		}
		if len(householdJSON) > 0 {
			_ = json.Unmarshal(householdJSON, &r.Household)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *RunStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, runErr string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`,
		status, runErr, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RunStore) UpsertProgress(ctx context.Context, p *domain.RunProgress) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO run_progress (run_id, person_id, last_completed_tick, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (run_id, person_id)
		 DO UPDATE SET last_completed_tick = EXCLUDED.last_completed_tick, updated_at = NOW()
		 RETURNING updated_at`,
		p.RunID, p.PersonID, p.LastCompletedTick,
	).Scan(&p.UpdatedAt)
}

func (s *RunStore) GetProgress(ctx context.Context, runID uuid.UUID) ([]domain.RunProgress, error) {
	rows, err := s.db.Query(ctx,
		`SELECT run_id, person_id, last_completed_tick, updated_at
		 FROM run_progress WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []domain.RunProgress
	for rows.Next() {
		var p domain.RunProgress
		if err := rows.Scan(&p.RunID, &p.PersonID, &p.LastCompletedTick, &p.UpdatedAt); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.RunStore = (*RunStore)(nil)
