package logger

import (
	"fmt"
	"sync"

	corelogger "github.com/kilianp07/evgrid/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component. The environment is detected via
// the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// MemoryLogger keeps formatted warnings and errors in memory. Tests use it
// to assert on reported problems.
type MemoryLogger struct {
	mu     sync.Mutex
	Warns  []string
	Errors []string
}

func (*MemoryLogger) Debugf(string, ...any)         {}
func (*MemoryLogger) Debugw(string, map[string]any) {}
func (*MemoryLogger) Infof(string, ...any)          {}

func (m *MemoryLogger) Warnf(format string, args ...any) {
	m.mu.Lock()
	m.Warns = append(m.Warns, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

func (m *MemoryLogger) Errorf(format string, args ...any) {
	m.mu.Lock()
	m.Errors = append(m.Errors, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

// ErrorCount returns the number of logged errors.
func (m *MemoryLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Errors)
}
