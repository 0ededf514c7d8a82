package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/membench/pkg/eventstream"
)

// MockPublisher records published run events for assertion.
type MockPublisher struct {
	mu sync.Mutex

	// Err, when set, is returned by every Publish call.
	Err error

	events []*eventstream.RunEvent
	closed bool
}

func (p *MockPublisher) Publish(_ context.Context, event *eventstream.RunEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if p.Err != nil {
		return p.Err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	return nil
}

func (p *MockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

// Events returns a copy of everything published so far.
func (p *MockPublisher) Events() []*eventstream.RunEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*eventstream.RunEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ByType returns published events of one type, in publish order.
func (p *MockPublisher) ByType(eventType string) []*eventstream.RunEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*eventstream.RunEvent
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
