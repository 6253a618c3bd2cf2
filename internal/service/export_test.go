package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// MockRunStore mocks the RunStore interface.
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) Create(ctx context.Context, r *domain.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunStore) List(ctx context.Context, limit int) ([]domain.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Run), args.Error(1)
}

func (m *MockRunStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, runErr string) error {
	args := m.Called(ctx, id, status, runErr)
	return args.Error(0)
}

func (m *MockRunStore) UpsertProgress(ctx context.Context, p *domain.RunProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRunStore) GetProgress(ctx context.Context, runID uuid.UUID) ([]domain.RunProgress, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RunProgress), args.Error(1)
}

// MockPersonStore mocks the PersonStore interface.
type MockPersonStore struct {
	mock.Mock
}

func (m *MockPersonStore) Create(ctx context.Context, p *domain.Person) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPersonStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

func (m *MockPersonStore) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Person, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Person), args.Error(1)
}

// MockMemoryStore mocks the MemoryStore interface.
type MockMemoryStore struct {
	mock.Mock
}

func (m *MockMemoryStore) Create(ctx context.Context, rec *domain.MemoryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockMemoryStore) ListByPerson(ctx context.Context, personID uuid.UUID, upToTick int) ([]domain.MemoryRecord, error) {
	args := m.Called(ctx, personID, upToTick)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MemoryRecord), args.Error(1)
}

// MockInteractionStore mocks the InteractionStore interface.
type MockInteractionStore struct {
	mock.Mock
}

func (m *MockInteractionStore) Create(ctx context.Context, r *domain.InteractionRecord) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockInteractionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.InteractionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InteractionRecord), args.Error(1)
}

func (m *MockInteractionStore) ListByRun(ctx context.Context, runID uuid.UUID, f domain.RecordFilter) ([]domain.InteractionRecord, error) {
	args := m.Called(ctx, runID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InteractionRecord), args.Error(1)
}

func (m *MockInteractionStore) ListForObservation(ctx context.Context, runID uuid.UUID) ([]domain.InteractionRecord, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InteractionRecord), args.Error(1)
}

func (m *MockInteractionStore) UpdateObserverEval(ctx context.Context, id uuid.UUID, score int, reason string, state domain.CellState) error {
	args := m.Called(ctx, id, score, reason, state)
	return args.Error(0)
}

func (m *MockInteractionStore) MarkDone(ctx context.Context, runID uuid.UUID) (int64, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInteractionStore) CountByRunAndState(ctx context.Context, runID uuid.UUID, state domain.CellState) (int, error) {
	args := m.Called(ctx, runID, state)
	return args.Int(0), args.Error(1)
}

func (m *MockInteractionStore) DeleteFromTick(ctx context.Context, runID, personID uuid.UUID, fromTick int) error {
	args := m.Called(ctx, runID, personID, fromTick)
	return args.Error(0)
}

func (m *MockInteractionStore) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *MockInteractionStore) ListMissingEmbeddings(ctx context.Context, runID uuid.UUID, limit int) ([]domain.InteractionRecord, error) {
	args := m.Called(ctx, runID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InteractionRecord), args.Error(1)
}

func (m *MockInteractionStore) SearchByCommand(ctx context.Context, embedding []float32, limit int) ([]domain.RecordWithSimilarity, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RecordWithSimilarity), args.Error(1)
}

func scorePtr(n int) *int { return &n }

func exportRecord(runID, personID uuid.UUID, tick int, cell domain.Cell, self, observer *int) domain.InteractionRecord {
	rec := domain.InteractionRecord{
		ID:              uuid.New(),
		RunID:           runID,
		PersonID:        personID,
		Tick:            tick,
		Timestamp:       time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC).Add(time.Duration(tick) * 15 * time.Minute),
		Cell:            cell,
		State:           domain.CellStateDone,
		HourActivity:    "거실에서 독서",
		QuarterActivity: "책을 읽는 중",
		ConcreteAction:  "소파에 앉는다. 책을 펼친다. 읽기 시작한다.",
		Location:        "living_room",
		Command:         "불 켜줘",
		Reply:           "네, 조명을 켰어요.",
		StateChangeDesc: "거실 조명이 켜졌다",
		ObserverScore:   observer,
		ObserverReason:  "무난한 요청과 응답이었다.",
	}
	if self != nil {
		rec.SelfStatus = domain.SelfScored
		rec.SelfScore = self
		rec.SelfReason = "의도대로 되었다."
	} else {
		rec.SelfStatus = domain.SelfNotApplicable
	}
	return rec
}

func TestAnalyzeRecords(t *testing.T) {
	runID := uuid.New()
	personID := uuid.New()

	// Tick 0: generative overclaims (6 vs 3), rule agrees (4 vs 4) -> type C.
	// Tick 1: both agree -> type A.
	records := []domain.InteractionRecord{
		exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(6), scorePtr(3)),
		exportRecord(runID, personID, 0, domain.CellWCRule, scorePtr(4), scorePtr(4)),
		exportRecord(runID, personID, 0, domain.CellWOCGenerative, nil, scorePtr(4)),
		exportRecord(runID, personID, 0, domain.CellWOCRule, nil, scorePtr(4)),
		exportRecord(runID, personID, 1, domain.CellWCGenerative, scorePtr(5), scorePtr(4)),
		exportRecord(runID, personID, 1, domain.CellWCRule, scorePtr(5), scorePtr(5)),
		exportRecord(runID, personID, 1, domain.CellWOCGenerative, nil, scorePtr(4)),
		exportRecord(runID, personID, 1, domain.CellWOCRule, nil, scorePtr(4)),
	}

	analyzed, matches := analyzeRecords(records, 2)

	assert.Len(t, analyzed, 8)
	assert.Len(t, matches, 2)

	gen0 := analyzed[0]
	assert.Equal(t, 3, *gen0.Gap)
	assert.Equal(t, domain.GapBig, gen0.Classification)
	assert.Equal(t, domain.MatchTypeC, gen0.MatchType)

	rule0 := analyzed[1]
	assert.Equal(t, 0, *rule0.Gap)
	assert.Equal(t, domain.GapSmall, rule0.Classification)
	assert.Equal(t, domain.MatchTypeC, rule0.MatchType)

	// Context-absent cells carry no derived measures at all.
	woc := analyzed[2]
	assert.Nil(t, woc.Gap)
	assert.Empty(t, woc.Classification)
	assert.Empty(t, woc.MatchType)

	assert.Equal(t, domain.GapBig, matches[0].Generative)
	assert.Equal(t, domain.GapSmall, matches[0].Rule)
	assert.Equal(t, domain.MatchTypeC, matches[0].Type)
	assert.Equal(t, domain.MatchTypeA, matches[1].Type)
	assert.Equal(t, 1, matches[1].Tick)
}

func TestAnalyzeRecords_FailedCellBlocksMatch(t *testing.T) {
	runID := uuid.New()
	personID := uuid.New()

	failed := exportRecord(runID, personID, 0, domain.CellWCRule, nil, nil)
	failed.State = domain.CellStateFailed
	failed.SelfStatus = ""
	failed.Error = "provider timeout"

	records := []domain.InteractionRecord{
		exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(6), scorePtr(3)),
		failed,
		exportRecord(runID, personID, 0, domain.CellWOCGenerative, nil, scorePtr(4)),
		exportRecord(runID, personID, 0, domain.CellWOCRule, nil, scorePtr(4)),
	}

	analyzed, matches := analyzeRecords(records, 2)

	// One classified cell is not enough to type the tick.
	assert.Empty(t, matches)
	assert.Equal(t, domain.GapBig, analyzed[0].Classification)
	assert.Empty(t, analyzed[0].MatchType)
}

func TestSummarize(t *testing.T) {
	runID := uuid.New()
	personID := uuid.New()

	failed := exportRecord(runID, personID, 1, domain.CellWOCRule, nil, nil)
	failed.State = domain.CellStateFailed
	failed.Error = "x"

	analyzed, matches := analyzeRecords([]domain.InteractionRecord{
		exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(6), scorePtr(3)),
		exportRecord(runID, personID, 0, domain.CellWCRule, scorePtr(4), scorePtr(4)),
		failed,
	}, 2)
	sum := summarize(analyzed, matches)

	assert.Equal(t, 3, sum.Records)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Classifications[domain.GapBig])
	assert.Equal(t, 1, sum.Classifications[domain.GapSmall])
	assert.Equal(t, 1, sum.Types[domain.MatchTypeC])
}

func TestExportService_Build(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	runStore := new(MockRunStore)
	personStore := new(MockPersonStore)
	memoryStore := new(MockMemoryStore)
	interactionStore := new(MockInteractionStore)

	runID := uuid.New()
	personID := uuid.New()
	start := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	run := &domain.Run{
		ID:        runID,
		Name:      "demo 2026-03-02",
		Status:    domain.RunStatusDone,
		StartTime: start,
		Params:    domain.RunParams{TickMinutes: 15, GapThreshold: 2},
	}
	person := domain.Person{
		ID:       personID,
		RunID:    runID,
		Name:     "지민",
		Schedule: []domain.ScheduleEntry{{Start: start, Activity: "거실에서 독서"}},
	}
	records := []domain.InteractionRecord{
		exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(6), scorePtr(3)),
		exportRecord(runID, personID, 0, domain.CellWCRule, scorePtr(4), scorePtr(4)),
		exportRecord(runID, personID, 0, domain.CellWOCGenerative, nil, scorePtr(4)),
		exportRecord(runID, personID, 0, domain.CellWOCRule, nil, scorePtr(4)),
	}
	memories := []domain.MemoryRecord{
		{ID: uuid.New(), PersonID: personID, Tick: 0, Kind: domain.MemoryKindActivity, Content: "책을 읽는 중"},
	}

	runStore.On("GetByID", ctx, runID).Return(run, nil)
	personStore.On("ListByRun", ctx, runID).Return([]domain.Person{person}, nil)
	interactionStore.On("ListByRun", ctx, runID, domain.RecordFilter{}).Return(records, nil)
	// The memory stream is weighted as of the person's final tick.
	memoryStore.On("ListByPerson", ctx, personID, 3).Return(memories, nil)

	svc := NewExportService(runStore, personStore, memoryStore, interactionStore, logger)

	ex, err := svc.Build(ctx, runID)

	assert.NoError(t, err)
	assert.NotNil(t, ex)
	assert.Equal(t, runID, ex.Run.ID)
	assert.Len(t, ex.Persons, 1)
	assert.Len(t, ex.Records, 4)
	assert.Len(t, ex.Matches, 1)
	assert.Len(t, ex.Memories, 1)
	assert.Equal(t, 4, ex.Summary.Records)
	assert.Equal(t, 0, ex.Summary.Failed)
	assert.Equal(t, 1, ex.Summary.Types[domain.MatchTypeC])

	runStore.AssertExpectations(t)
	personStore.AssertExpectations(t)
	memoryStore.AssertExpectations(t)
	interactionStore.AssertExpectations(t)
}

func TestExportService_Build_NotReady(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	runStore := new(MockRunStore)
	runID := uuid.New()
	runStore.On("GetByID", ctx, runID).Return(&domain.Run{ID: runID, Status: domain.RunStatusRunning}, nil)

	svc := NewExportService(runStore, new(MockPersonStore), new(MockMemoryStore), new(MockInteractionStore), logger)

	ex, err := svc.Build(ctx, runID)

	assert.Nil(t, ex)
	assert.ErrorIs(t, err, ErrExportNotReady)
	runStore.AssertExpectations(t)
}

func TestExportService_Build_IncompleteRecords(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	runStore := new(MockRunStore)
	personStore := new(MockPersonStore)
	interactionStore := new(MockInteractionStore)

	runID := uuid.New()
	personID := uuid.New()

	stuck := exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(5), nil)
	stuck.State = domain.CellStateSelfEvaluated

	runStore.On("GetByID", ctx, runID).Return(&domain.Run{ID: runID, Status: domain.RunStatusDone}, nil)
	personStore.On("ListByRun", ctx, runID).Return([]domain.Person{}, nil)
	interactionStore.On("ListByRun", ctx, runID, domain.RecordFilter{}).Return([]domain.InteractionRecord{stuck}, nil)

	svc := NewExportService(runStore, personStore, new(MockMemoryStore), interactionStore, logger)

	ex, err := svc.Build(ctx, runID)

	assert.Nil(t, ex)
	assert.ErrorIs(t, err, ErrIncompleteRecords)
}

func TestWriteCSV(t *testing.T) {
	runID := uuid.New()
	personID := uuid.New()

	analyzed, matches := analyzeRecords([]domain.InteractionRecord{
		exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(6), scorePtr(3)),
		exportRecord(runID, personID, 0, domain.CellWCRule, scorePtr(4), scorePtr(4)),
		exportRecord(runID, personID, 0, domain.CellWOCGenerative, nil, scorePtr(4)),
	}, 2)
	ex := &Export{
		Persons: []domain.Person{{ID: personID, Name: "지민"}},
		Records: analyzed,
		Matches: matches,
	}

	var buf bytes.Buffer
	svc := NewExportService(nil, nil, nil, nil, zap.NewNop())
	err := svc.WriteCSV(ex, &buf)
	assert.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Len(t, rows[0], 22)
	assert.Equal(t, "record_id", rows[0][0])
	assert.Equal(t, "match_type", rows[0][20])

	header := rows[0]
	col := func(row []string, name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("no column %q", name)
		return ""
	}

	gen := rows[1]
	assert.Equal(t, "지민", col(gen, "person"))
	assert.Equal(t, "3", col(gen, "gap"))
	assert.Equal(t, "BG", col(gen, "classification"))
	assert.Equal(t, "C", col(gen, "match_type"))

	// The context-absent row renders every undefined measure as NA.
	woc := rows[3]
	assert.Equal(t, "not_applicable", col(woc, "self_status"))
	assert.Equal(t, "NA", col(woc, "self_score"))
	assert.Equal(t, "NA", col(woc, "gap"))
	assert.Equal(t, "NA", col(woc, "classification"))
	assert.Equal(t, "NA", col(woc, "match_type"))
}

func TestWriteJSONL(t *testing.T) {
	runID := uuid.New()
	personID := uuid.New()

	analyzed, _ := analyzeRecords([]domain.InteractionRecord{
		exportRecord(runID, personID, 0, domain.CellWCGenerative, scorePtr(6), scorePtr(3)),
		exportRecord(runID, personID, 0, domain.CellWOCRule, nil, scorePtr(4)),
	}, 2)
	ex := &Export{Records: analyzed}

	var buf bytes.Buffer
	svc := NewExportService(nil, nil, nil, nil, zap.NewNop())
	err := svc.WriteJSONL(ex, &buf)
	assert.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)

	var first map[string]any
	assert.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, float64(3), first["gap"])
	assert.Equal(t, "wc_generative", first["cell"])

	var second map[string]any
	assert.NoError(t, json.Unmarshal(lines[1], &second))
	_, hasGap := second["gap"]
	assert.False(t, hasGap, "undefined gap must be omitted from JSON")
}
