package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungho-yun/gapsim/internal/domain"
)

type MemoryStore struct {
	db *pgxpool.Pool
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

// Create inserts one memory record. The table carries a unique constraint on
// (person_id, tick, kind), so re-running a tick after a resume keeps the
// original row instead of writing a duplicate.
func (s *MemoryStore) Create(ctx context.Context, m *domain.MemoryRecord) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO memories (person_id, tick, ts, kind, content)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (person_id, tick, kind) DO NOTHING
		 RETURNING id, created_at`,
		m.PersonID, m.Tick, m.Timestamp, m.Kind, m.Content,
	).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row already exists from an earlier pass over this tick.
		return s.db.QueryRow(ctx,
			`SELECT id, created_at FROM memories
			 WHERE person_id = $1 AND tick = $2 AND kind = $3`,
			m.PersonID, m.Tick, m.Kind,
		).Scan(&m.ID, &m.CreatedAt)
	}
	return err
}

func (s *MemoryStore) ListByPerson(ctx context.Context, personID uuid.UUID, upToTick int) ([]domain.MemoryRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, person_id, tick, ts, kind, content, created_at
		 FROM memories
		 WHERE person_id = $1 AND tick <= $2
		 ORDER BY tick ASC, created_at ASC`,
		personID, upToTick,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []domain.MemoryRecord
	for rows.Next() {
		var m domain.MemoryRecord
		if err := rows.Scan(&m.ID, &m.PersonID, &m.Tick, &m.Timestamp, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.MemoryStore = (*MemoryStore)(nil)
