package swrcache

import (
	"sync"
)

// recordedLog captures a single call into a fakeLogger.
type recordedLog struct {
	level string
	msg   string
}

// fakeLogger is a deterministic double for Logger: it records every call
// instead of printing, so tests can assert on log content without parsing
// stdout.
type fakeLogger struct {
	mu      sync.Mutex
	records []recordedLog
	name    string
}

func newFakeLogger() *fakeLogger { return &fakeLogger{} }

func (f *fakeLogger) record(level, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedLog{level: level, msg: msg})
}

func (f *fakeLogger) Debug(msg string, fields ...Field) { f.record("debug", msg) }
func (f *fakeLogger) Info(msg string, fields ...Field)  { f.record("info", msg) }
func (f *fakeLogger) Warn(msg string, fields ...Field)  { f.record("warn", msg) }
func (f *fakeLogger) Error(msg string, fields ...Field) { f.record("error", msg) }
func (f *fakeLogger) Named(name string) Logger          { return f }

func (f *fakeLogger) countLevel(level string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.level == level {
			n++
		}
	}
	return n
}
