package testutil

import (
	"context"
	"sync"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
)

// InMemoryEventPublisher captures published events for ingest assertions
type InMemoryEventPublisher struct {
	mu        sync.Mutex
	published []*events.Event
}

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{}
}

func (p *InMemoryEventPublisher) Publish(ctx context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *InMemoryEventPublisher) Published() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Event(nil), p.published...)
}

func (p *InMemoryEventPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = nil
}
