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

type PersonStore struct {
	db *pgxpool.Pool
}

func NewPersonStore(db *pgxpool.Pool) *PersonStore {
	return &PersonStore{db: db}
}

func (s *PersonStore) Create(ctx context.Context, p *domain.Person) error {
	scheduleJSON, err := json.Marshal(p.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO persons (run_id, name, traits, schedule)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.RunID, p.Name, p.Traits, scheduleJSON,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *PersonStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	p := &domain.Person{}
	var scheduleJSON []byte

	err := s.db.QueryRow(ctx,
		`SELECT id, run_id, name, traits, schedule, created_at
		 FROM persons WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.RunID, &p.Name, &p.Traits, &scheduleJSON, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(scheduleJSON) > 0 {
		if err := json.Unmarshal(scheduleJSON, &p.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule: %w", err)
		}
	}

	return p, nil
}

func (s *PersonStore) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Person, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, name, traits, schedule, created_at
		 FROM persons WHERE run_id = $1
		 ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []domain.Person
	for rows.Next() {
		var p domain.Person
		var scheduleJSON []byte
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Traits, &scheduleJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		if len(scheduleJSON) > 0 {
			_ = json.Unmarshal(scheduleJSON, &p.Schedule)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.PersonStore = (*PersonStore)(nil)
