package generation

import (
	"context"
	"sync"
)

// MockGenerator returns a fixed answer and records prompts for inspection.
type MockGenerator struct {
	mu      sync.Mutex
	Answer  string
	Err     error
	Prompts []string
	Systems []string
}

// NewMockGenerator creates a generator that always replies with answer.
func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{Answer: answer}
}

func (g *MockGenerator) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.Systems = append(g.Systems, systemPrompt)
	g.Prompts = append(g.Prompts, userPrompt)
	return g.Answer, nil
}

// LastPrompt returns the most recent user prompt, or "" if none.
func (g *MockGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Prompts) == 0 {
		return ""
	}
	return g.Prompts[len(g.Prompts)-1]
}

func (g *MockGenerator) Close() error {
	return nil
}
