package fhirschema

import (
	"sync/atomic"
	"time"
)

// Metrics tracks compiler and runtime activity using lock-free atomics so
// that concurrent compilation and fan-out validation never contend on a
// mutex just to bump a counter.
type Metrics struct {
	// Compiler
	resourcesRegistered atomic.Uint64
	resourcesDropped    atomic.Uint64 // overlapping URLs discarded by dedupe
	cyclesDetected      atomic.Uint64
	schemasCompiled     atomic.Uint64
	schemasSubstituted  atomic.Uint64 // StructureDefinitions whose element tree failed to build, compiled as Any

	// Runtime
	validationsTotal atomic.Uint64
	validationsOK    atomic.Uint64
	validationTime   atomic.Uint64 // nanoseconds, cumulative
	errorsTotal      atomic.Uint64
	warningsTotal    atomic.Uint64
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRegistration records one ResourceFile accepted (or dropped) by the
// Resource Registry's dedupe cascade.
func (m *Metrics) RecordRegistration(dropped bool) {
	m.resourcesRegistered.Add(1)
	if dropped {
		m.resourcesDropped.Add(1)
	}
}

// RecordCycle records one reported dependency cycle.
func (m *Metrics) RecordCycle() {
	m.cyclesDetected.Add(1)
}

// RecordCompile records one Schema Compiler invocation.
func (m *Metrics) RecordCompile(substituted bool) {
	m.schemasCompiled.Add(1)
	if substituted {
		m.schemasSubstituted.Add(1)
	}
}

// RecordValidation records one completed Validate call.
func (m *Metrics) RecordValidation(d time.Duration, success bool, errs, warnings int) {
	m.validationsTotal.Add(1)
	if success {
		m.validationsOK.Add(1)
	}
	m.validationTime.Add(uint64(d.Nanoseconds()))
	m.errorsTotal.Add(uint64(errs))
	m.warningsTotal.Add(uint64(warnings))
}

// Snapshot is a point-in-time copy of all counters, safe to read without
// racing further updates.
type Snapshot struct {
	ResourcesRegistered uint64
	ResourcesDropped    uint64
	CyclesDetected      uint64
	SchemasCompiled     uint64
	SchemasSubstituted  uint64
	ValidationsTotal    uint64
	ValidationsOK       uint64
	ValidationTime      time.Duration
	ErrorsTotal         uint64
	WarningsTotal       uint64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		ResourcesRegistered: m.resourcesRegistered.Load(),
		ResourcesDropped:    m.resourcesDropped.Load(),
		CyclesDetected:      m.cyclesDetected.Load(),
		SchemasCompiled:     m.schemasCompiled.Load(),
		SchemasSubstituted:  m.schemasSubstituted.Load(),
		ValidationsTotal:    m.validationsTotal.Load(),
		ValidationsOK:       m.validationsOK.Load(),
		ValidationTime:      time.Duration(m.validationTime.Load()),
		ErrorsTotal:         m.errorsTotal.Load(),
		WarningsTotal:       m.warningsTotal.Load(),
	}
}
