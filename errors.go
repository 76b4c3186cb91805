package fhirschema

import "fmt"

// CompileErrorKind enumerates the closed set of compile-time failure modes
// from spec §7. The facade never returns any of them as an error: every
// kind, including MalformedDefinition and OrphanElement, is recorded as an
// entry in its CompileLog and the affected resource is skipped or degraded
// to Any.
type CompileErrorKind string

const (
	CompileMalformedDefinition CompileErrorKind = "malformed-definition"
	CompileOrphanElement       CompileErrorKind = "orphan-element"
	CompileUnsupportedKind     CompileErrorKind = "unsupported-kind"
	CompileUnresolvedDep       CompileErrorKind = "unresolved-dependency"
	CompileCyclicDependency    CompileErrorKind = "cyclic-dependency"
)

// CompileError reports a structural defect in a resource definition that
// prevents the Schema Compiler from lowering it at all.
type CompileError struct {
	Kind CompileErrorKind
	URL  string
	Msg  string
}

func (e *CompileError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.URL, e.Msg)
}

// LoaderErrorKind enumerates package-acquisition failure modes (spec §7).
// Package acquisition is an out-of-scope external collaborator (spec §1);
// this is its error surface, not its implementation.
type LoaderErrorKind string

const (
	LoaderPackageNotFound LoaderErrorKind = "package-not-found"
	LoaderDownloadFailed  LoaderErrorKind = "download-failed"
	LoaderCacheCorrupt    LoaderErrorKind = "cache-corrupt"
	LoaderJSONParseError  LoaderErrorKind = "json-parse-error"
)

// LoaderError reports a failure acquiring or reading a package or file.
type LoaderError struct {
	Kind LoaderErrorKind
	Ref  string
	Err  error
}

func (e *LoaderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Ref)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Ref, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }
