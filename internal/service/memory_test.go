package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// mockMemoryStore implements domain.MemoryStore in memory with the same
// semantics as the SQL store: first write wins on (person, tick, kind), and
// listing filters by tick and keeps insertion order within a tick.
type mockMemoryStore struct {
	mu      sync.Mutex
	records []domain.MemoryRecord
}

func newMockMemoryStore() *mockMemoryStore {
	return &mockMemoryStore{}
}

func (m *mockMemoryStore) Create(ctx context.Context, rec *domain.MemoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.PersonID == rec.PersonID && existing.Tick == rec.Tick && existing.Kind == rec.Kind {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			return nil
		}
	}
	rec.ID = uuid.New()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockMemoryStore) ListByPerson(ctx context.Context, personID uuid.UUID, upToTick int) ([]domain.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MemoryRecord
	for _, r := range m.records {
		if r.PersonID == personID && r.Tick <= upToTick {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

func testParams() domain.RunParams {
	return domain.RunParams{
		TickMinutes:  15,
		DecayPerTick: 0.0125,
		DecayFloor:   0.2,
		GapThreshold: 2,
		RecallLimit:  10,
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		name    string
		created int
		now     int
		want    float64
	}{
		{"same tick", 10, 10, 1.0},
		{"four ticks later", 0, 4, 0.95},
		{"sixteen ticks later", 0, 16, 0.8},
		{"at the floor exactly", 0, 64, 0.2},
		{"clamped to floor", 0, 200, 0.2},
		{"created in the future", 10, 5, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Weight(tt.created, tt.now, 0.0125, 0.2)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Weight(%d, %d) = %v, want %v", tt.created, tt.now, got, tt.want)
			}
		})
	}
}

func TestMemoryService_Record(t *testing.T) {
	svc := NewMemoryService(newMockMemoryStore(), zap.NewNop())
	ctx := context.Background()
	personID := uuid.New()

	m, err := svc.Record(ctx, personID, 3, time.Now(), domain.MemoryKindActivity, "커피를 내리는 중")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}

	if _, err := svc.Record(ctx, uuid.Nil, 3, time.Now(), domain.MemoryKindActivity, "x"); err != ErrMemoryPersonMissing {
		t.Errorf("nil person err = %v, want ErrMemoryPersonMissing", err)
	}
	if _, err := svc.Record(ctx, personID, 3, time.Now(), domain.MemoryKindActivity, ""); err != ErrMemoryContentEmpty {
		t.Errorf("empty content err = %v, want ErrMemoryContentEmpty", err)
	}
	if _, err := svc.Record(ctx, personID, 3, time.Now(), domain.MemoryKind("dream"), "x"); err != ErrInvalidMemoryKind {
		t.Errorf("bad kind err = %v, want ErrInvalidMemoryKind", err)
	}
}

func TestMemoryService_RecordIdempotentPerTick(t *testing.T) {
	store := newMockMemoryStore()
	svc := NewMemoryService(store, zap.NewNop())
	ctx := context.Background()
	personID := uuid.New()

	first, err := svc.Record(ctx, personID, 5, time.Now(), domain.MemoryKindActivity, "청소 중")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := svc.Record(ctx, personID, 5, time.Now(), domain.MemoryKindActivity, "다시 쓴 내용")
	if err != nil {
		t.Fatalf("record again: %v", err)
	}
	if second.ID != first.ID {
		t.Error("re-recording a tick created a second row")
	}

	listed, _ := store.ListByPerson(ctx, personID, 100)
	if len(listed) != 1 {
		t.Fatalf("records = %d, want 1", len(listed))
	}
	if listed[0].Content != "청소 중" {
		t.Errorf("content = %q, original write should win", listed[0].Content)
	}
}

func TestMemoryService_RecallWeightsAndOrder(t *testing.T) {
	store := newMockMemoryStore()
	svc := NewMemoryService(store, zap.NewNop())
	ctx := context.Background()
	personID := uuid.New()

	for tick, content := range map[int]string{
		0:  "아주 오래된 기억",
		8:  "조금 오래된 기억",
		16: "최근 기억",
	} {
		if _, err := svc.Record(ctx, personID, tick, time.Now(), domain.MemoryKindActivity, content); err != nil {
			t.Fatalf("record tick %d: %v", tick, err)
		}
	}

	got, err := svc.Recall(ctx, personID, 16, testParams(), 0)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("recall returned %d records, want 3", len(got))
	}

	// Newer memories carry more weight, so order is newest first here.
	if got[0].Content != "최근 기억" || got[2].Content != "아주 오래된 기억" {
		t.Errorf("order = [%s, %s, %s]", got[0].Content, got[1].Content, got[2].Content)
	}
	if math.Abs(got[0].Weight-1.0) > 1e-9 {
		t.Errorf("weight of same-tick memory = %v, want 1.0", got[0].Weight)
	}
	if math.Abs(got[1].Weight-0.9) > 1e-9 {
		t.Errorf("weight eight ticks back = %v, want 0.9", got[1].Weight)
	}
	if math.Abs(got[2].Weight-0.8) > 1e-9 {
		t.Errorf("weight sixteen ticks back = %v, want 0.8", got[2].Weight)
	}
}

func TestMemoryService_RecallAsOfTick(t *testing.T) {
	store := newMockMemoryStore()
	svc := NewMemoryService(store, zap.NewNop())
	ctx := context.Background()
	personID := uuid.New()

	_, _ = svc.Record(ctx, personID, 2, time.Now(), domain.MemoryKindActivity, "과거")
	_, _ = svc.Record(ctx, personID, 9, time.Now(), domain.MemoryKindActivity, "미래")

	got, err := svc.Recall(ctx, personID, 5, testParams(), 0)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 1 || got[0].Content != "과거" {
		t.Errorf("as-of recall = %+v, future memory must be invisible", got)
	}
}

func TestMemoryService_RecallLimitKeepsHeaviest(t *testing.T) {
	store := newMockMemoryStore()
	svc := NewMemoryService(store, zap.NewNop())
	ctx := context.Background()
	personID := uuid.New()

	for tick := 0; tick < 8; tick++ {
		if _, err := svc.Record(ctx, personID, tick, time.Now(), domain.MemoryKindActivity, "기억"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Recall(ctx, personID, 7, testParams(), 3)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("limit ignored: got %d records", len(got))
	}
	for _, m := range got {
		if m.Tick < 5 {
			t.Errorf("limit dropped a heavier memory and kept tick %d", m.Tick)
		}
	}
}

func TestMemoryService_RecallOtherPersonInvisible(t *testing.T) {
	store := newMockMemoryStore()
	svc := NewMemoryService(store, zap.NewNop())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	_, _ = svc.Record(ctx, a, 0, time.Now(), domain.MemoryKindActivity, "a의 기억")
	_, _ = svc.Record(ctx, b, 0, time.Now(), domain.MemoryKindActivity, "b의 기억")

	got, err := svc.Recall(ctx, a, 10, testParams(), 0)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 1 || got[0].Content != "a의 기억" {
		t.Errorf("recall crossed person boundary: %+v", got)
	}
}
