package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_Deterministic(t *testing.T) {
	c := NewMockClient()

	a, err := c.Embed(context.Background(), "불 켜줘")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(a) != Dimensions {
		t.Fatalf("vector length = %d, want %d", len(a), Dimensions)
	}

	b, _ := c.Embed(context.Background(), "불 켜줘")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text produced different vectors at index %d", i)
		}
	}

	other, _ := c.Embed(context.Background(), "TV 켜줘")
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}

	if len(c.Calls) != 3 {
		t.Errorf("calls recorded = %d, want 3", len(c.Calls))
	}
}

func TestMockClient_ErrorInjection(t *testing.T) {
	c := NewMockClient()
	c.Error = errors.New("embedding provider down")

	if _, err := c.Embed(context.Background(), "불 켜줘"); err == nil {
		t.Fatal("want injected error")
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(ProviderMock, "", ""); err != nil {
		t.Errorf("mock provider: %v", err)
	}
	if _, err := NewClient(ProviderOpenAI, "", ""); err == nil {
		t.Error("openai without an API key must fail")
	}
	if _, err := NewClient("word2vec", "key", ""); err == nil {
		t.Error("unknown provider must fail")
	}
}
