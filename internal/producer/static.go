package producer

import (
	"context"
	"fmt"
	"sync"
)

// StaticProducer replays a fixed sequence of canned responses. It backs dry
// runs and demos where no model backend is configured, and exhausts with an
// error once the scripted responses run out.
type StaticProducer struct {
	mu        sync.Mutex
	responses []string
	next      int
}

// NewStaticProducer creates a producer that returns the given responses in
// order, one per call.
func NewStaticProducer(responses ...string) *StaticProducer {
	return &StaticProducer{responses: responses}
}

// GeneratePlan returns the next scripted response.
func (p *StaticProducer) GeneratePlan(_ context.Context, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.responses) {
		return "", fmt.Errorf("static producer exhausted after %d responses", len(p.responses))
	}
	resp := p.responses[p.next]
	p.next++
	return resp, nil
}

// Calls reports how many responses have been consumed.
func (p *StaticProducer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}
