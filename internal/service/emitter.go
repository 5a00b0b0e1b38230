package service

import (
	"context"
	"sync"

	"sqldesk/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples the registry from its transport
// ─────────────────────────────────────────────────────────────

const (
	EventSessionOpened = "session:opened"
	EventSessionClosed = "session:closed"
)

// EventEmitter receives session lifecycle events. The MCP server forwards
// them to connected clients as notifications.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// SessionEvent is the payload of the session events.
type SessionEvent struct {
	ConnectionID int64             `json:"connectionId"`
	SessionID    string            `json:"sessionId"`
	Engine       domain.EngineKind `json:"engine"`
	Database     string            `json:"database,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Recorded returns a copy of the events emitted so far.
func (m *MockEmitter) Recorded() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmittedEvent(nil), m.Events...)
}
