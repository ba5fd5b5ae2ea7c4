// Package testutil provides common test helpers for DrugEx packages.
package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
)

// MockLogger implements logging.Logger and records every entry so tests can
// assert on what a component logged.  Children created with With, Named or
// WithContext share the parent's record and prepend their bound fields.
type MockLogger struct {
	rec   *record
	bound []logging.Field
}

type record struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage is a single captured entry.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// Field returns the value of key in the entry, or nil.
func (m LogMessage) Field(key string) interface{} {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// NewMockLogger creates an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{rec: &record{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.bound)+len(fields))
	all = append(all, m.bound...)
	all = append(all, fields...)

	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	m.rec.messages = append(m.rec.messages, LogMessage{Level: level, Message: msg, Fields: all})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	bound := make([]logging.Field, 0, len(m.bound)+len(fields))
	bound = append(bound, m.bound...)
	bound = append(bound, fields...)
	return &MockLogger{rec: m.rec, bound: bound}
}

func (m *MockLogger) WithContext(ctx context.Context) logging.Logger {
	return m.With(logging.FieldsFromContext(ctx)...)
}

func (m *MockLogger) Named(string) logging.Logger { return m }

func (m *MockLogger) Sync() error { return nil }

// GetMessages returns a copy of all captured entries.
func (m *MockLogger) GetMessages() []LogMessage {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	result := make([]LogMessage, len(m.rec.messages))
	copy(result, m.rec.messages)
	return result
}

// Clear removes all captured entries.
func (m *MockLogger) Clear() {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	m.rec.messages = m.rec.messages[:0]
}

// HasMessage reports whether an entry with level and msg was captured.
func (m *MockLogger) HasMessage(level, msg string) bool {
	return m.Find(level, msg) != nil
}

// Find returns the first entry with level and msg, or nil.
func (m *MockLogger) Find(level, msg string) *LogMessage {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	for i := range m.rec.messages {
		if m.rec.messages[i].Level == level && m.rec.messages[i].Message == msg {
			entry := m.rec.messages[i]
			return &entry
		}
	}
	return nil
}

// Count returns how many entries were captured at level.
func (m *MockLogger) Count(level string) int {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	n := 0
	for _, logged := range m.rec.messages {
		if logged.Level == level {
			n++
		}
	}
	return n
}

//Personal.AI order the ending
