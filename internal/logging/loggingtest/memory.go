// Package loggingtest provides an in-memory logging.Sink for tests.
package loggingtest

import (
	"context"
	"sync"

	"github.com/yourorg/hotel-broker/internal/logging"
)

// MemorySink keeps every event in memory. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []logging.Event
}

var _ logging.Sink = (*MemorySink)(nil)

func (m *MemorySink) Emit(_ context.Context, e logging.Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []logging.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logging.Event(nil), m.events...)
}

// Kinds returns the recorded event kinds in order.
func (m *MemorySink) Kinds() []string {
	events := m.Events()
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}
