package logging

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, down to TraceLevel, for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, observed: observed}
}

// matching returns the entries at level whose message contains snippet.
func (t *TestLogger) matching(level zapcore.Level, snippet string) []observer.LoggedEntry {
	return t.observed.FilterLevelExact(level).FilterMessageSnippet(snippet).All()
}

// Reset drops everything recorded so far.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if len(t.matching(level, snippet)) == 0 {
		tb.Errorf("no %v entry containing %q in %+v", level, snippet, t.observed.All())
	}
}

func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if n := len(t.matching(level, snippet)); n > 0 {
		tb.Errorf("%d unexpected %v entries containing %q", n, level, snippet)
	}
}

// AssertField checks that some entry whose message contains snippet has
// key set to want, at any level.
func (t *TestLogger) AssertField(tb testing.TB, snippet, key string, want any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessageSnippet(snippet).All() {
		if got, ok := entry.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no entry containing %q has %s=%v", snippet, key, want)
}

func (t *TestLogger) CountLogged(level zapcore.Level, snippet string) int {
	return len(t.matching(level, snippet))
}
