package fhirschema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gofhir/fhirschema/catalog"
	"github.com/gofhir/fhirschema/depgraph"
	"github.com/gofhir/fhirschema/fhirjson"
	"github.com/gofhir/fhirschema/hierarchy"
	"github.com/gofhir/fhirschema/intermediate"
	"github.com/gofhir/fhirschema/location"
	"github.com/gofhir/fhirschema/pkgcache"
	"github.com/gofhir/fhirschema/registry"
	"github.com/gofhir/fhirschema/resourcefile"
	rt "github.com/gofhir/fhirschema/runtime"
	"github.com/gofhir/fhirschema/schema"
)

// Validator is the public entry point described in the package doc's Quick
// Start: load one or more packages/files of FHIR definitions, then check
// candidate documents against them. A Validator is safe for concurrent use
// once construction and loading have finished; LoadFiles/LoadPackages
// themselves serialize against each other and against Validate via mu.
type Validator struct {
	mu sync.RWMutex

	opts    *Options
	reg     *registry.Registry
	catalog *catalog.Catalog
	client  *pkgcache.Client

	compiled map[string]*schema.Validator
	hierPtrs map[string]*hierarchy.Hierarchy

	log     *CompileLog
	metrics *Metrics
}

// NewValidator constructs a Validator with no definitions loaded yet. opts
// may be nil to accept every default (spec §6).
func NewValidator(ctx context.Context, opts *Options) (*Validator, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	var clientOpts []pkgcache.ClientOption
	if opts.CacheDir != "" {
		clientOpts = append(clientOpts, pkgcache.WithCacheDir(opts.CacheDir))
	} else if env := os.Getenv("FHIR_CACHE_DIR"); env != "" {
		clientOpts = append(clientOpts, pkgcache.WithCacheDir(env))
	}

	v := &Validator{
		opts:     opts,
		reg:      registry.New(),
		catalog:  catalog.New(catalog.Default()...),
		client:   pkgcache.NewClient(clientOpts...),
		compiled: make(map[string]*schema.Validator),
		hierPtrs: make(map[string]*hierarchy.Hierarchy),
		log:      NewCompileLog(),
		metrics:  NewMetrics(),
	}
	return v, nil
}

// LoadFiles decodes and registers each path as a standalone resource
// definition, then recompiles the whole graph. A file that fails to decode
// is recorded in the compile log (CompileMalformedDefinition) and skipped;
// LoadFiles only returns an error when it can't read the filesystem itself.
func (v *Validator) LoadFiles(ctx context.Context, paths ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return &LoaderError{Kind: LoaderPackageNotFound, Ref: p, Err: err}
		}
		rf, err := resourcefile.Decode(p, data)
		if err != nil {
			v.log.Record(CompileMalformedDefinition, filepath.Base(p), "%v", err)
			continue
		}
		v.reg.Register(rf)
	}
	v.recompileLocked()
	return nil
}

// LoadPackages resolves and loads one or more FHIR packages, named either
// "name" (latest), "name!version", or "name@version" (spec §6's
// name!version convention, plus the npm-style "@" separator the rest of the
// ecosystem also accepts), downloading into the package cache directory if
// not already present.
func (v *Validator) LoadPackages(ctx context.Context, refs ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	loader := pkgcache.NewPackageLoader(func(rf *resourcefile.ResourceFile) {
		v.reg.Register(rf)
	})

	for _, ref := range refs {
		name, version := splitPackageRef(ref)
		dir, err := v.client.GetPackage(ctx, name, version)
		if err != nil {
			return &LoaderError{Kind: LoaderDownloadFailed, Ref: ref, Err: err}
		}
		if _, err := loader.LoadPackage(dir); err != nil {
			return &LoaderError{Kind: LoaderCacheCorrupt, Ref: ref, Err: err}
		}
	}

	v.recompileLocked()
	return nil
}

func splitPackageRef(ref string) (name, version string) {
	for _, sep := range []string{"!", "@"} {
		if idx := strings.Index(ref, sep); idx >= 0 {
			return ref[:idx], ref[idx+len(sep):]
		}
	}
	return ref, "latest"
}

// Recognizes reports whether urlOrName has a compiled validator — either a
// loaded definition or a Built-in Catalog entry.
func (v *Validator) Recognizes(urlOrName string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, ok := v.compiled[urlOrName]; ok {
		return true
	}
	_, ok := v.catalog.Lookup(urlOrName)
	return ok
}

// CompileLog returns the accumulated compile-time diagnostics (unresolved
// dependencies, cycles, skipped malformed resources) since construction.
func (v *Validator) CompileLog() []LogEntry {
	return v.log.Entries()
}

// Metrics returns a snapshot of compiler/runtime activity counters.
func (v *Validator) Metrics() Snapshot {
	return v.metrics.Snapshot()
}

// WorkerCount returns the configured fan-out width (Options.WorkerCount),
// the default worker pool size batch/bundle-streaming callers (worker.Pool,
// worker.BatchValidator) should use unless they have their own explicit
// override.
func (v *Validator) WorkerCount() int {
	return v.opts.WorkerCount
}

// recompileLocked rebuilds the entire compiled-validator map from the
// registry's current contents. It is not incremental: every LoadFiles/
// LoadPackages call recompiles the whole graph, which is simple and correct
// at the scale a single process's package cache operates at (a handful of
// FHIR packages, tens of thousands of definitions at the high end) and
// keeps the cycle-tolerant ordering logic in one place. Callers must hold
// v.mu for writing.
func (v *Validator) recompileLocked() {
	files := v.reg.All()

	deps := make(map[string][]string, len(files))
	byURL := make(map[string]*resourcefile.ResourceFile, len(files))
	for _, rf := range files {
		deps[rf.URL] = depgraph.Dependencies(rf)
		byURL[rf.URL] = rf
	}

	result := depgraph.Sort(deps)
	for _, cycle := range result.Cycles {
		v.metrics.RecordCycle()
		v.log.Record(CompileCyclicDependency, strings.Join(cycle, " -> "), "dependency cycle detected; affected elements degrade to Any")
	}

	compiled := make(map[string]*schema.Validator, len(files))
	hierPtrs := make(map[string]*hierarchy.Hierarchy)

	resolve := func(urlOrName string) (*schema.Validator, bool) {
		if val, ok := compiled[urlOrName]; ok && val != nil {
			return val, true
		}
		return v.catalog.Lookup(urlOrName)
	}
	hierarchyOf := func(systemURL string) (schema.FilterHierarchy, bool) {
		h, ok := hierPtrs[systemURL]
		if !ok || h == nil {
			return nil, false
		}
		return h, true
	}

	compiler := schema.NewCompiler(resolve)

	for _, url := range result.Sorted {
		rf, ok := byURL[url]
		if !ok {
			continue // a dependency that was never itself registered; nothing to compile
		}
		v.compileOne(compiler, rf, compiled, hierPtrs, hierarchyOf)
	}
	// Defensive second pass for any URL the topological sort omitted
	// (shouldn't happen: Sort visits every key of deps), so a bug there
	// degrades to "missed resource" rather than a silent gap.
	for _, rf := range files {
		if _, done := compiled[rf.URL]; !done {
			v.compileOne(compiler, rf, compiled, hierPtrs, hierarchyOf)
		}
	}

	for _, d := range compiler.Diagnostics() {
		v.log.Record(CompileUnresolvedDep, d.URL, "%s", d.Msg)
	}

	v.compiled = compiled
	v.hierPtrs = hierPtrs
}

func (v *Validator) compileOne(
	compiler *schema.Compiler,
	rf *resourcefile.ResourceFile,
	compiled map[string]*schema.Validator,
	hierPtrs map[string]*hierarchy.Hierarchy,
	hierarchyOf schema.HierarchyResolver,
) {
	switch payload := rf.Payload.(type) {
	case *resourcefile.StructureDefinition:
		root, err := intermediate.Build(payload)
		if err != nil {
			kind := CompileOrphanElement
			if strings.HasPrefix(err.Error(), string(CompileMalformedDefinition)) {
				kind = CompileMalformedDefinition
			}
			v.log.Record(kind, rf.URL, "%v", err)
			v.metrics.RecordCompile(true)
			compiled[rf.URL] = schema.Any()
			return
		}
		val := compiler.CompileStructureDefinition(payload, root)
		val.SourceURL = rf.URL
		compiled[rf.URL] = val
		v.metrics.RecordCompile(false)
	case *resourcefile.ValueSet:
		compiled[rf.URL] = compiler.CompileValueSet(payload, hierarchyOf)
		v.metrics.RecordCompile(false)
	case *resourcefile.CodeSystem:
		val, h := compiler.CompileCodeSystem(payload)
		if val != nil {
			compiled[rf.URL] = val
		}
		if h != nil {
			hierPtrs[rf.URL] = h
		}
		v.metrics.RecordCompile(false)
	default:
		// ConceptMap, StructureMap, ImplementationGuide carry no direct
		// validation semantics in this revision (spec's Non-goals exclude
		// mapping execution and IG-level rendering); they're registered and
		// dependency-tracked so a reference to one degrades gracefully,
		// but there is no CompiledValidator to build for them.
	}
}

// Validate checks document against the effective profile list: opts's
// explicit Profiles, unioned with (unless suppressed) document.meta.profile,
// unioned with the document's own "url" field if present, per spec §6.
func (v *Validator) Validate(ctx context.Context, document []byte, opts ValidateOptions) ValidationResult {
	start := time.Now()
	traceID := opts.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	doc, err := fhirjson.Parse(document)
	if err != nil {
		issues := []Issue{{
			Severity: SeverityError,
			Code:     IssueTypeMismatch,
			Message:  "document is not valid JSON: " + err.Error(),
			TraceID:  traceID,
		}}
		return newValidationResult(issues, nil)
	}

	profiles := v.effectiveProfiles(doc, opts)

	v.mu.RLock()
	defer v.mu.RUnlock()

	var allIssues []Issue
	errCount, warnCount := 0, 0
	for _, profile := range profiles {
		val, ok := v.compiled[profile]
		if !ok {
			val, ok = v.catalog.Lookup(profile)
		}
		if !ok {
			if !opts.IgnoreUnknownSchemas {
				allIssues = append(allIssues, Issue{
					Severity: SeverityError,
					Code:     IssueUnknownProfile,
					Message:  "Could not find schema for " + profile,
					TraceID:  traceID,
				})
				errCount++
			}
			continue
		}
		runOpts := rt.Options{
			MaxIssues:         v.opts.MaxIssues,
			TraceID:           traceID,
			RefinementTimeout: v.opts.RefinementTimeout,
			WorkerCount:       v.opts.WorkerCount,
		}
		issues := rt.Run(ctx, val, doc, runOpts)
		allIssues = append(allIssues, issues...)
		for _, iss := range issues {
			if iss.IsError() {
				errCount++
			} else if iss.Severity == SeverityWarning {
				warnCount++
			}
		}
	}

	if v.opts.TrackPositions {
		annotatePositions(allIssues, document)
	}

	result := newValidationResult(allIssues, doc.ToAny())
	result.Issues = allIssues

	v.metrics.RecordValidation(time.Since(start), result.Success, errCount, warnCount)
	return result
}

// annotatePositions fills in Issue.Line/Column by re-walking document's raw
// JSON text for each issue's Path, per Options.TrackPositions (spec §5's
// "best-effort line/column capture"). Best-effort: a path that can't be
// re-resolved (a malformed document already reported separately, or a
// cancelled subtree with a path that was never actually descended into)
// just leaves Line/Column at zero rather than failing the call.
func annotatePositions(issues []Issue, document []byte) {
	for i := range issues {
		loc := location.Find(document, issues[i].Path)
		if loc == nil {
			continue
		}
		issues[i].Line = loc.Line
		issues[i].Column = loc.Column
	}
}

// ValidateBytes validates resource against its effective profile list with
// default options, returning an error only for a cancelled/timed-out
// context rather than for validation findings (those accumulate in the
// returned ValidationResult, per spec §7's "validation never throws").
// ValidationResult implements worker.ValidationResult and stream.Result, so
// the CLI's batch/bundle commands wrap this method in a closure of the
// worker.BatchValidatorFunc / stream validate-function shape without either
// package importing the root one (see worker/pool.go, stream/bundle.go).
// *Validator itself does not satisfy worker.Validator, whose ValidateBytes
// returns the worker.ValidationResult interface.
func (v *Validator) ValidateBytes(ctx context.Context, resource []byte) (ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return ValidationResult{}, err
	}
	return v.Validate(ctx, resource, ValidateOptions{}), nil
}

// effectiveProfiles computes the true union spec §6 defines:
// `options.profiles ∪ (document.meta.profile unless suppressed) ∪
// (document.url if present)`. Every source that applies is included, not
// just the first one present — a document that both declares meta.profile
// and carries its own canonical url (e.g. a StructureDefinition validating
// itself) is checked against both.
func (v *Validator) effectiveProfiles(doc fhirjson.Value, opts ValidateOptions) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(url string) {
		if url == "" {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}

	for _, p := range opts.Profiles {
		add(p)
	}

	if !opts.IgnoreSelfDeclaredProfiles {
		if meta, ok := doc.Field("meta"); ok && meta.Kind == fhirjson.KindObject {
			if profArr, ok := meta.Field("profile"); ok && profArr.Kind == fhirjson.KindArray {
				for _, p := range profArr.Array {
					if p.Kind == fhirjson.KindString {
						add(p.Str)
					}
				}
			}
		}
	}

	if urlField, ok := doc.Field("url"); ok && urlField.Kind == fhirjson.KindString {
		add(urlField.Str)
	}

	return out
}
