package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a deterministic Provider for tests and offline runs. It
// returns canned responses in registration order, or a fixed error.
type MockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	calls     int
}

var _ Provider = (*MockProvider)(nil)

func (p *MockProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Responses) == 0 {
		return "", fmt.Errorf("mock provider has no responses configured")
	}
	resp := p.Responses[p.calls%len(p.Responses)]
	p.calls++
	return resp, nil
}

func (p *MockProvider) AdaptInstructions(raw string) string {
	return raw
}

// Calls reports how many generations were requested.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
