package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// lockedBuffer serialises writes from the handler with reads from tests.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// TestLogger is a Logger that captures JSON records in memory. Loggers
// derived with With write to the same buffer.
//
//	logger, buffer := log.NewTestLogger(log.LevelDebug)
//	r, _ := compose.NewColumnRouter(stages, compose.WithLogger(logger))
//	// ... assert on logger.ContainsField(log.StageKey, "city")
type TestLogger struct {
	Logger
	out   *lockedBuffer
	level *slog.LevelVar
}

// NewTestLogger creates a TestLogger with the given minimum level. The
// returned buffer holds every record written so far; read it only after the
// code under test has returned.
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	out := &lockedBuffer{}
	lv := &slog.LevelVar{}
	lv.Set(slog.Level(level))
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lv})
	return &TestLogger{Logger: NewSlogLogger(slog.New(h)), out: out, level: lv}, &out.buf
}

// GetLogEntries parses the captured output into one map per record.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.out.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any record's message contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if msg, ok := entry[slog.MessageKey].(string); ok && strings.Contains(msg, message) {
			return true
		}
	}
	return false
}

// ContainsField reports whether any record has key set to value. JSON numbers
// decode as float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if got, ok := entry[key]; ok && got == value {
			return true
		}
	}
	return false
}

// Clear discards all captured output.
func (t *TestLogger) Clear() { t.out.Reset() }

// TestLoggerProvider is a LoggerProvider whose loggers share one TestLogger.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider creates a provider and returns its capture buffer.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buffer := NewTestLogger(level)
	return &TestLoggerProvider{logger: logger}, buffer
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.logger }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) { p.logger.level.Set(slog.Level(level)) }
