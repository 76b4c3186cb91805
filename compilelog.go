package fhirschema

import (
	"fmt"
	"sync"
)

// LogEntry is one accumulated compile-time diagnostic. Compile-time errors
// never throw out of the facade (spec §7): malformed/orphan/unsupported
// resources are skipped and logged; unresolved dependencies and cycles
// degrade the affected validator to Any and are logged.
type LogEntry struct {
	Kind CompileErrorKind
	URL  string
	Msg  string
}

func (e LogEntry) String() string {
	if e.URL == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.URL, e.Msg)
}

// CompileLog accumulates warnings produced while compiling a resource
// graph. It follows result.go's accumulate-don't-throw pattern, adapted for
// compile-time rather than validate-time diagnostics.
type CompileLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewCompileLog returns an empty log.
func NewCompileLog() *CompileLog {
	return &CompileLog{}
}

// Record appends one diagnostic entry.
func (l *CompileLog) Record(kind CompileErrorKind, url, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Kind: kind, URL: url, Msg: fmt.Sprintf(format, args...)})
}

// Entries returns a defensive copy of all recorded diagnostics.
func (l *CompileLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesOf filters recorded diagnostics by kind, e.g. CompileCyclicDependency
// to report every detected cycle (spec §8 "cycle report completeness").
func (l *CompileLog) EntriesOf(kind CompileErrorKind) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
