package audit

import (
	"context"
	"sync"

	"rostersync/pkg/requestcontext"
)

// Publisher delivers audit events to a sink. Services treat delivery as
// best-effort: a failed emit is logged, never propagated.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Enrich stamps request-scoped metadata onto an event before publishing.
func Enrich(ctx context.Context, event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.StaffID == "" {
		event.StaffID = requestcontext.StaffID(ctx)
	}
	return event
}

// Nop discards every event; used when no broker is configured.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }

// Memory collects events for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Emit(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
