package fhirschema

import (
	"runtime"
	"time"
)

// Option configures a Validator at construction time.
type Option func(*Options)

// Options holds compiler and runtime configuration.
type Options struct {
	// WorkerCount bounds two independent fan-out executors: batch/bundle
	// validation (one document or entry per worker, via cmd/fhirschema) and
	// the runtime's own intra-document subtree concurrency (object fields,
	// array elements validated concurrently under this bound; see
	// runtime.Options.WorkerCount). Spec §5's "fan-out cooperative"
	// scheduling model. Defaults to runtime.NumCPU().
	WorkerCount int

	// RefinementTimeout bounds a single refinement's evaluation (FHIRPath in
	// particular). Zero means no timeout.
	RefinementTimeout time.Duration

	// MaxIssues stops accumulating issues past this count; zero is
	// unlimited. Existing issues are always returned.
	MaxIssues int

	// TrackPositions enables best-effort line/column capture on issues.
	TrackPositions bool

	// CacheDir overrides the package cache directory (spec §6 "Persisted
	// state"). Empty means $HOME/.fhir/packages, or $FHIR_CACHE_DIR if set.
	CacheDir string
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		WorkerCount:       runtime.NumCPU(),
		RefinementTimeout: 0,
		MaxIssues:         0,
		TrackPositions:    false,
	}
}

// WithWorkerCount bounds the fan-out executor. Values <= 0 are ignored.
func WithWorkerCount(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.WorkerCount = n
		}
	}
}

// WithRefinementTimeout bounds a single refinement's evaluation.
func WithRefinementTimeout(d time.Duration) Option {
	return func(o *Options) { o.RefinementTimeout = d }
}

// WithMaxIssues caps the number of issues accumulated per Validate call.
func WithMaxIssues(n int) Option {
	return func(o *Options) { o.MaxIssues = n }
}

// WithPositionTracking enables line/column capture on issues.
func WithPositionTracking(enable bool) Option {
	return func(o *Options) { o.TrackPositions = enable }
}

// WithCacheDir overrides the package cache directory.
func WithCacheDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.CacheDir = dir
		}
	}
}

// ValidateOptions configures a single Validate call, matching spec §6's
// validate(document, options) contract.
type ValidateOptions struct {
	// Profiles are canonical URLs to validate against, in addition to any
	// self-declared profiles (meta.profile) and the document's own url.
	Profiles []string

	// IgnoreSelfDeclaredProfiles excludes document.meta.profile from the
	// effective profile list.
	IgnoreSelfDeclaredProfiles bool

	// IgnoreUnknownSchemas suppresses the "could not find schema" issue for
	// a profile the compiler has no CompiledValidator for.
	IgnoreUnknownSchemas bool

	// TraceID correlates this call's issues; if empty one is generated.
	TraceID string
}
