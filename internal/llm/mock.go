package llm

import (
	"context"
	"sync"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// MockOracle is a configurable oracle for testing. Set the response fields
// to control what each method returns, or install a *Func hook when the
// response must depend on the request. Safe for concurrent use; the engine
// calls oracles from parallel cells.
type MockOracle struct {
	mu sync.Mutex

	QuarterNarrativesResponse []domain.QuarterDraft
	QuarterNarrativesError    error
	QuarterNarrativesFunc     func(req domain.NarrativeRequest) ([]domain.QuarterDraft, error)

	GenerateCommandResponse string
	GenerateCommandError    error
	GenerateCommandFunc     func(req domain.CommandRequest) (string, error)

	GenerativeActResponse *domain.GenerativeResult
	GenerativeActError    error
	GenerativeActFunc     func(req domain.GenerativeRequest) (*domain.GenerativeResult, error)

	ClassifyIntentResponse string
	ClassifyIntentError    error
	ClassifyIntentFunc     func(req domain.ClassifyRequest) (string, error)

	SelfEvaluateResponse *domain.Evaluation
	SelfEvaluateError    error
	SelfEvaluateFunc     func(req domain.SelfEvalRequest) (*domain.Evaluation, error)

	ObserverEvaluateResponse *domain.Evaluation
	ObserverEvaluateError    error
	ObserverEvaluateFunc     func(view domain.ObserverView) (*domain.Evaluation, error)

	// Call tracking for assertions
	QuarterNarrativesCalls []domain.NarrativeRequest
	GenerateCommandCalls   []domain.CommandRequest
	GenerativeActCalls     []domain.GenerativeRequest
	ClassifyIntentCalls    []domain.ClassifyRequest
	SelfEvaluateCalls      []domain.SelfEvalRequest
	ObserverEvaluateCalls  []domain.ObserverView
}

func NewMockOracle() *MockOracle {
	return &MockOracle{
		QuarterNarrativesResponse: []domain.QuarterDraft{
			{QuarterActivity: "책을 읽는 중", ConcreteAction: "소파에 앉는다. 책을 펼친다. 첫 장을 읽기 시작한다.", Location: "living_room", HiddenIntent: "조용히 쉬고 싶다."},
			{QuarterActivity: "책을 읽는 중", ConcreteAction: "페이지를 넘긴다. 메모를 적는다. 다시 읽는다.", Location: "living_room", HiddenIntent: "조용히 쉬고 싶다."},
			{QuarterActivity: "책을 읽는 중", ConcreteAction: "잠시 창밖을 본다. 물을 한 모금 마신다. 계속 읽는다.", Location: "living_room", HiddenIntent: "조용히 쉬고 싶다."},
			{QuarterActivity: "책을 읽는 중", ConcreteAction: "책갈피를 끼운다. 책을 덮는다. 자리에서 일어난다.", Location: "living_room", HiddenIntent: "조용히 쉬고 싶다."},
		},
		GenerateCommandResponse:  "불 켜줘",
		GenerativeActResponse:    &domain.GenerativeResult{Reply: "네, 알겠습니다."},
		ClassifyIntentResponse:   "none",
		SelfEvaluateResponse:     &domain.Evaluation{Score: 5, Reason: "대체로 만족스러웠다."},
		ObserverEvaluateResponse: &domain.Evaluation{Score: 5, Reason: "무난한 상호작용으로 보였다."},
	}
}

func (m *MockOracle) QuarterNarratives(ctx context.Context, req domain.NarrativeRequest) ([]domain.QuarterDraft, error) {
	m.mu.Lock()
	m.QuarterNarrativesCalls = append(m.QuarterNarrativesCalls, req)
	fn := m.QuarterNarrativesFunc
	resp, err := m.QuarterNarrativesResponse, m.QuarterNarrativesError
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *MockOracle) GenerateCommand(ctx context.Context, req domain.CommandRequest) (string, error) {
	m.mu.Lock()
	m.GenerateCommandCalls = append(m.GenerateCommandCalls, req)
	fn := m.GenerateCommandFunc
	resp, err := m.GenerateCommandResponse, m.GenerateCommandError
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (m *MockOracle) GenerativeAct(ctx context.Context, req domain.GenerativeRequest) (*domain.GenerativeResult, error) {
	m.mu.Lock()
	m.GenerativeActCalls = append(m.GenerativeActCalls, req)
	fn := m.GenerativeActFunc
	resp, err := m.GenerativeActResponse, m.GenerativeActError
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *MockOracle) ClassifyIntent(ctx context.Context, req domain.ClassifyRequest) (string, error) {
	m.mu.Lock()
	m.ClassifyIntentCalls = append(m.ClassifyIntentCalls, req)
	fn := m.ClassifyIntentFunc
	resp, err := m.ClassifyIntentResponse, m.ClassifyIntentError
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (m *MockOracle) SelfEvaluate(ctx context.Context, req domain.SelfEvalRequest) (*domain.Evaluation, error) {
	m.mu.Lock()
	m.SelfEvaluateCalls = append(m.SelfEvaluateCalls, req)
	fn := m.SelfEvaluateFunc
	resp, err := m.SelfEvaluateResponse, m.SelfEvaluateError
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *MockOracle) ObserverEvaluate(ctx context.Context, view domain.ObserverView) (*domain.Evaluation, error) {
	m.mu.Lock()
	m.ObserverEvaluateCalls = append(m.ObserverEvaluateCalls, view)
	fn := m.ObserverEvaluateFunc
	resp, err := m.ObserverEvaluateResponse, m.ObserverEvaluateError
	m.mu.Unlock()

	if fn != nil {
		return fn(view)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
