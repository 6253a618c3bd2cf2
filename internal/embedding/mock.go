package embedding

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockClient produces deterministic embeddings derived from the input text,
// so similarity tests get stable vectors without network access.
type MockClient struct {
	mu    sync.Mutex
	Calls []string
	Error error
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	err := m.Error
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, Dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<31) * 0.01
	}
	return vec, nil
}
