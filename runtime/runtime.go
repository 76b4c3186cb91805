// Package runtime is the Validator Runtime (spec §4.8): it executes a
// schema.Validator against a parsed document and produces an ordered list
// of fhirschema.Issue values, rather than schema.accepts' plain yes/no.
//
// The dispatch mirrors schema/accept.go's Kind switch but additionally
// tracks the current path (via fhirjson's dotted/indexed convention) and a
// reference to the whole document, which is handed to every
// Refinement.Check as its root argument (schema.FhirPath does not use it;
// it evaluates against the local node alone). It
// deliberately does not import schema/accept.go's accepts() helper (and
// vice versa) to keep the two packages decoupled: schema has no runtime
// dependency, and runtime composes schema.Validator from the outside.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/gofhir/fhirschema"
	"github.com/gofhir/fhirschema/fhirjson"
	"github.com/gofhir/fhirschema/pool"
	"github.com/gofhir/fhirschema/schema"
)

// Options configures one Run call.
type Options struct {
	// MaxIssues stops accumulating past this many issues; zero means
	// unlimited. Traversal still completes so cardinality/required-field
	// checks on siblings aren't skipped, but no further issues are recorded.
	MaxIssues int

	// TraceID is copied onto every issue produced by this run.
	TraceID string

	// RefinementTimeout bounds a single Refinement.Check call (FHIRPath
	// constraint evaluation in particular, the one refinement kind whose
	// cost scales with expression complexity rather than document size).
	// Zero means no per-refinement timeout.
	RefinementTimeout time.Duration

	// WorkerCount bounds the fan-out executor used to validate a node's
	// independent subtrees (object fields, array elements) concurrently
	// (spec §5's "fan-out cooperative" scheduling model). Values <= 1
	// disable fan-out and fall back to the original sequential walk.
	WorkerCount int
}

// state carries the handful of values the recursive walk needs but that
// don't belong on every call's argument list.
type state struct {
	ctx     context.Context
	root    fhirjson.Value
	opts    Options
	issues  []fhirschema.Issue
	stopped bool // context cancelled/deadline exceeded; further subtrees are marked Cancelled

	// sem bounds the number of subtree validations (object fields, array
	// elements) running concurrently across the whole Run call. Shared by
	// every state forked off the root via fork(); nil when fan-out is
	// disabled (WorkerCount <= 1), in which case callers fall back to the
	// original sequential walk.
	sem chan struct{}
}

// fork creates a child state that shares ctx/root/opts/sem with st but
// accumulates its own issues slice, so it can be run on its own goroutine
// without racing on st.issues.
func (st *state) fork() *state {
	return &state{ctx: st.ctx, root: st.root, opts: st.opts, sem: st.sem}
}

// Run validates doc against v, returning issues in a stable order: object
// fields in the validator's field declaration order, array elements in index
// order, and at a given node the inner validator's issues before those of
// its refinements, in declaration order. ctx is checked for cancellation
// between sibling fields/array elements so a long-running validation of a
// deeply nested resource can be aborted promptly (spec §5).
func Run(ctx context.Context, v *schema.Validator, doc fhirjson.Value, opts Options) []fhirschema.Issue {
	st := &state{ctx: ctx, root: doc, opts: opts}
	if opts.WorkerCount > 1 {
		st.sem = make(chan struct{}, opts.WorkerCount)
	}
	st.check(v, doc, "")
	return st.issues
}

func (st *state) cancelled() bool {
	if st.stopped {
		return true
	}
	select {
	case <-st.ctx.Done():
		st.stopped = true
		return true
	default:
		return false
	}
}

func (st *state) record(path string, kind fhirschema.IssueKind, severity fhirschema.Severity, msg string) {
	if st.opts.MaxIssues > 0 && len(st.issues) >= st.opts.MaxIssues {
		return
	}
	st.issues = append(st.issues, fhirschema.Issue{
		Severity: severity,
		Code:     kind,
		Message:  msg,
		Path:     path,
		TraceID:  st.opts.TraceID,
	})
}

// appendIssues merges a forked child's issues into st.issues, re-applying
// st.opts.MaxIssues centrally (a child state enforces the same cap against
// its own local slice, so concurrently-running siblings can't coordinate a
// shared budget; this merge step is what actually bounds the final count).
func (st *state) appendIssues(issues []fhirschema.Issue) {
	for _, iss := range issues {
		if st.opts.MaxIssues > 0 && len(st.issues) >= st.opts.MaxIssues {
			return
		}
		st.issues = append(st.issues, iss)
	}
}

func (st *state) recordCancelled(path string) {
	st.issues = append(st.issues, fhirschema.Issue{
		Severity:  fhirschema.SeverityWarning,
		Code:      fhirschema.IssueTypeMismatch,
		Message:   "validation cancelled before this subtree was checked",
		Path:      path,
		TraceID:   st.opts.TraceID,
		Cancelled: true,
	})
}

// check walks v against node, recording issues at path. It always returns
// after having emitted whatever issues apply at and below this node (it
// never short-circuits on the first failure the way schema.accepts does),
// since the runtime's job is to report everything wrong, not just whether
// something is wrong.
func (st *state) check(v *schema.Validator, node fhirjson.Value, path string) {
	if v == nil {
		return
	}
	if st.cancelled() {
		st.recordCancelled(path)
		return
	}

	switch v.Kind {
	case schema.KAny:
		return
	case schema.KNever:
		st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "value is not permitted here")
	case schema.KString:
		st.checkString(v, node, path)
	case schema.KNumber:
		if node.Kind != fhirjson.KindNumber {
			st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected a number")
			return
		}
		st.checkBoundary(v, node, path)
	case schema.KInteger:
		if node.Kind != fhirjson.KindNumber {
			st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected an integer")
			return
		}
		if node.Number != float64(int64(node.Number)) {
			st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected an integer, got a fractional number")
			return
		}
		st.checkBoundary(v, node, path)
	case schema.KBoolean:
		isBoolish := node.Kind == fhirjson.KindBool ||
			(node.Kind == fhirjson.KindString && (node.Str == "true" || node.Str == "false"))
		if !isBoolish {
			st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected a boolean")
		}
	case schema.KLiteral:
		if node.Kind != fhirjson.KindString || node.Str != v.LiteralValue {
			st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected the fixed value \""+v.LiteralValue+"\"")
		}
	case schema.KEnum:
		st.checkEnum(v, node, path)
	case schema.KArray:
		st.checkArray(v, node, path)
	case schema.KOptional:
		if !node.IsAbsent() {
			st.check(v.Inner, node, path)
		}
	case schema.KObject:
		st.checkObject(v, node, path)
	case schema.KUnion:
		st.checkUnion(v, node, path)
	case schema.KIntersection:
		for _, b := range v.Branches {
			st.check(b, node, path)
		}
	case schema.KRefined:
		st.checkRefined(v, node, path)
	}
}

func (st *state) checkString(v *schema.Validator, node fhirjson.Value, path string) {
	if node.Kind != fhirjson.KindString {
		st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected a string")
		return
	}
	if len(node.Str) < v.MinLen {
		st.record(path, fhirschema.IssueLengthViolation, fhirschema.SeverityError, "string shorter than the minimum length")
	}
	if v.MaxLen > 0 && len(node.Str) > v.MaxLen {
		st.record(path, fhirschema.IssueLengthViolation, fhirschema.SeverityError, "string longer than the maximum length")
	}
	if v.RegexPattern == "" {
		return
	}
	re, err := compileRegexCached(v.RegexPattern)
	if err != nil {
		return // an unusable pattern never produces a false positive
	}
	if !re.MatchString(node.Str) {
		st.record(path, fhirschema.IssueRegexViolation, fhirschema.SeverityError, "string does not match the required pattern")
	}
}

// checkBoundary applies a KNumber/KInteger validator's min_value/max_value
// constraint (spec §3, §4.5's "min/max numeric" primitive refinement). Only
// called once node is already confirmed to be a well-formed number of the
// right kind.
func (st *state) checkBoundary(v *schema.Validator, node fhirjson.Value, path string) {
	if v.MinValue != nil && node.Number < *v.MinValue {
		st.record(path, fhirschema.IssueBoundaryViolation, fhirschema.SeverityError, "value is less than the minimum allowed")
	}
	if v.MaxValue != nil && node.Number > *v.MaxValue {
		st.record(path, fhirschema.IssueBoundaryViolation, fhirschema.SeverityError, "value is greater than the maximum allowed")
	}
}

func (st *state) checkEnum(v *schema.Validator, node fhirjson.Value, path string) {
	if node.Kind != fhirjson.KindString {
		st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected a string")
		return
	}
	for _, e := range v.EnumValues {
		if e == node.Str {
			return
		}
	}
	st.record(path, fhirschema.IssueEnumViolation, fhirschema.SeverityError, "value is not a member of the required enumeration")
}

func (st *state) checkArray(v *schema.Validator, node fhirjson.Value, path string) {
	if node.Kind != fhirjson.KindArray {
		st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected an array")
		return
	}
	if len(node.Array) < v.MinItems {
		st.record(path, fhirschema.IssueCardinalityViolation, fhirschema.SeverityError, "array has fewer elements than the required minimum")
	}
	if v.MaxItems != schema.Unbounded && len(node.Array) > v.MaxItems {
		st.record(path, fhirschema.IssueCardinalityViolation, fhirschema.SeverityError, "array has more elements than the allowed maximum")
	}
	if st.sem != nil && len(node.Array) > 1 && !st.cancelled() {
		st.checkArrayConcurrent(v, node, path)
		return
	}
	for i, item := range node.Array {
		if st.cancelled() {
			st.recordCancelled(indexPath(path, i))
			return
		}
		st.check(v.Item, item, indexPath(path, i))
	}
}

// checkArrayConcurrent validates node's elements independently, bounded by
// st.sem, and merges their issues back in index order (spec §5's fan-out
// cooperative scheduling: independent subtrees run concurrently under a
// bounded executor, but issue ordering stays stable pre-order). Only called
// once fan-out is enabled (st.sem != nil) and there's more than one element
// to make spawning worthwhile.
func (st *state) checkArrayConcurrent(v *schema.Validator, node fhirjson.Value, path string) {
	results := make([][]fhirschema.Issue, len(node.Array))
	var wg sync.WaitGroup
	for i, item := range node.Array {
		i, item := i, item
		st.sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-st.sem }()
			sub := st.fork()
			itemPath := indexPath(path, i)
			if sub.cancelled() {
				sub.recordCancelled(itemPath)
			} else {
				sub.check(v.Item, item, itemPath)
			}
			results[i] = sub.issues
		}()
	}
	wg.Wait()
	for _, r := range results {
		st.appendIssues(r)
	}
}

func (st *state) checkObject(v *schema.Validator, node fhirjson.Value, path string) {
	if node.Kind != fhirjson.KindObject {
		st.record(path, fhirschema.IssueTypeMismatch, fhirschema.SeverityError, "expected an object")
		return
	}
	if st.sem != nil && len(v.Fields) > 1 && !st.cancelled() {
		st.checkObjectConcurrent(v, node, path)
	} else {
		for _, f := range v.Fields {
			if st.cancelled() {
				st.recordCancelled(fieldPath(path, f.Name))
				return
			}
			child, present := node.Object[f.Name]
			childPath := fieldPath(path, f.Name)
			if !present {
				if !isOptional(f.V) {
					st.record(childPath, fhirschema.IssueMissingRequiredField, fhirschema.SeverityError, "required field is missing")
					continue
				}
				st.check(f.V, fhirjson.Value{}, childPath)
				continue
			}
			st.check(f.V, child, childPath)
		}
	}
	// Unknown fields are permissive per spec §4.8: an object validator
	// never inspects keys it didn't declare, so extra fields are accepted
	// silently unless a RefinedOf wrapper adds a closed-object check (no
	// such refinement exists in the current catalog; IssueExtraUnknownField
	// is reserved for a future CatalogCheck/refinement and reported nowhere
	// today).
}

// checkObjectConcurrent validates node's declared fields independently,
// bounded by st.sem, and merges their issues back in field-declaration
// order. See checkArrayConcurrent's doc comment for the scheduling model;
// this is the same pattern applied to object fields rather than array
// elements.
func (st *state) checkObjectConcurrent(v *schema.Validator, node fhirjson.Value, path string) {
	results := make([][]fhirschema.Issue, len(v.Fields))
	var wg sync.WaitGroup
	for i, f := range v.Fields {
		i, f := i, f
		st.sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-st.sem }()
			sub := st.fork()
			childPath := fieldPath(path, f.Name)
			if sub.cancelled() {
				sub.recordCancelled(childPath)
				results[i] = sub.issues
				return
			}
			child, present := node.Object[f.Name]
			if !present {
				if !isOptional(f.V) {
					sub.record(childPath, fhirschema.IssueMissingRequiredField, fhirschema.SeverityError, "required field is missing")
				} else {
					sub.check(f.V, fhirjson.Value{}, childPath)
				}
			} else {
				sub.check(f.V, child, childPath)
			}
			results[i] = sub.issues
		}()
	}
	wg.Wait()
	for _, r := range results {
		st.appendIssues(r)
	}
}

func isOptional(v *schema.Validator) bool {
	return v == nil || v.Kind == schema.KOptional || v.Kind == schema.KAny
}

// checkUnion accepts node if any branch accepts it without issues; if every
// branch fails, the branch with the fewest issues is reported (a rough
// approximation of "most likely intended branch" matching the teacher's
// choice-of-type diagnostics posture), tagged as a choice-of-type ambiguity
// when there's more than one branch.
func (st *state) checkUnion(v *schema.Validator, node fhirjson.Value, path string) {
	if len(v.Branches) == 0 {
		return
	}
	type attempt struct {
		issues []fhirschema.Issue
	}
	best := -1
	var bestIssues []fhirschema.Issue
	for i, b := range v.Branches {
		sub := st.fork()
		sub.check(b, node, path)
		if len(sub.issues) == 0 {
			return // a branch accepted cleanly
		}
		if best == -1 || len(sub.issues) < len(bestIssues) {
			best = i
			bestIssues = sub.issues
		}
		_ = attempt{issues: sub.issues}
	}
	if len(v.Branches) > 1 {
		st.record(path, fhirschema.IssueChoiceOfTypeAmbiguity, fhirschema.SeverityError, "value does not match any candidate type")
	}
	st.issues = append(st.issues, bestIssues...)
}

func (st *state) checkRefined(v *schema.Validator, node fhirjson.Value, path string) {
	st.check(v.Inner, node, path)
	for _, r := range v.Refinements {
		if st.cancelled() {
			st.recordCancelled(path)
			return
		}
		ok, msg, timedOut := st.runRefinement(r, node, path)
		if timedOut {
			st.record(path, fhirschema.IssueFhirPathConstraint, fhirschema.SeverityWarning, "refinement evaluation exceeded its timeout")
			continue
		}
		if ok {
			continue
		}
		st.record(path, refinementIssueKind(r), fhirschema.SeverityError, msg)
	}
}

// runRefinement evaluates r, bounded by opts.RefinementTimeout when set.
// Refinement.Check takes no context (the catalog's implementations are
// plain synchronous functions over already-parsed fhirjson.Value, not I/O),
// so the timeout is enforced by racing it against a timer in its own
// goroutine rather than plumbing ctx through every Check body; a timed-out
// evaluation's goroutine is abandoned (Check is pure and side-effect-free
// over its inputs, so a stray late result is simply discarded).
func (st *state) runRefinement(r schema.Refinement, node fhirjson.Value, path string) (ok bool, msg string, timedOut bool) {
	if st.opts.RefinementTimeout <= 0 {
		ok, msg = r.Check(node, path, st.root)
		return ok, msg, false
	}

	type result struct {
		ok  bool
		msg string
	}
	done := make(chan result, 1)
	go func() {
		ok, msg := r.Check(node, path, st.root)
		done <- result{ok: ok, msg: msg}
	}()

	timer := time.NewTimer(st.opts.RefinementTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.ok, res.msg, false
	case <-timer.C:
		return false, "", true
	}
}

// refinementIssueKind maps a failing Refinement to the closed IssueKind
// catalog (spec §7); the mapping is by concrete type since Refinement
// itself carries no kind tag.
func refinementIssueKind(r schema.Refinement) fhirschema.IssueKind {
	switch r.(type) {
	case schema.FhirPath:
		return fhirschema.IssueFhirPathConstraint
	case schema.AtMostOneOfPrefix:
		return fhirschema.IssueChoiceOfTypeAmbiguity
	case schema.NonEmptyObject:
		return fhirschema.IssueCardinalityViolation
	case schema.ExactValue:
		return fhirschema.IssuePatternViolation
	case schema.Slicing:
		return fhirschema.IssueSliceUnmatched
	case schema.Filter:
		return fhirschema.IssueEnumViolation
	case schema.CatalogCheck:
		return fhirschema.IssueEnumViolation
	case schema.Not:
		return fhirschema.IssueEnumViolation
	default:
		return fhirschema.IssueTypeMismatch
	}
}

// fieldPath and indexPath build every path recorded on an Issue, so a deeply
// nested resource's validation allocates one pooled buffer per segment
// rather than a new string per concatenation; pool.PathBuilder is the same
// buffer-reuse helper AcquireResult's sync.Pool follows for Result itself.
func fieldPath(base, name string) string {
	if base == "" {
		return name
	}
	return pool.JoinPath(base, name)
}

func indexPath(base string, i int) string {
	return pool.AppendArrayIndex(base, i)
}
