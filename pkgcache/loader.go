package pkgcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/buger/jsonparser"

	"github.com/gofhir/fhirschema/resourcefile"
)

// LoadStats reports how many resources a package load discovered, by kind,
// plus a running error count for files that failed to decode.
type LoadStats struct {
	StructureDefinitions int64
	CodeSystems           int64
	ValueSets             int64
	Other                 int64
	Errors                int64
	PackagesLoaded        int
}

// Sink receives every successfully decoded ResourceFile as a package is
// loaded. The facade wires this to the Resource Registry's Register method;
// tests can wire it to a plain slice collector.
type Sink func(*resourcefile.ResourceFile)

// PackageLoader walks a package cache directory's JSON content and decodes
// each file via resourcefile.Decode, handing the result to a Sink.
type PackageLoader struct {
	sink Sink
	mu   sync.Mutex
}

// NewPackageLoader returns a loader that calls sink for every resource it
// decodes. Sink is called with the loader's internal lock held, so it must
// not re-enter the loader; a Resource Registry's Register method is
// expected to be independently synchronized or lock-free.
func NewPackageLoader(sink Sink) *PackageLoader {
	return &PackageLoader{sink: sink}
}

// LoadPackage loads a single package from a directory. StructureDefinitions
// are loaded before CodeSystems and CodeSystems before ValueSets, mirroring
// the teacher's ordering rationale: downstream consumers that want
// CodeSystem-before-ValueSet semantics (expanding a filter-based include)
// see a stable load order to build on, even though the compiler itself
// tolerates any order via the Dependency Analyzer.
func (l *PackageLoader) LoadPackage(packageDir string) (*LoadStats, error) {
	stats := &LoadStats{}

	contentDir := packageDir
	packageSubDir := filepath.Join(packageDir, "package")
	if _, err := os.Stat(packageSubDir); err == nil {
		contentDir = packageSubDir
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, fmt.Errorf("reading package directory %s: %w", contentDir, err)
	}

	var structureDefs, codeSystems, valueSets, others []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.Name() == "package.json" || entry.Name() == ".index.json" {
			continue
		}
		filePath := filepath.Join(contentDir, entry.Name())
		switch {
		case strings.HasPrefix(entry.Name(), "StructureDefinition-"):
			structureDefs = append(structureDefs, filePath)
		case strings.HasPrefix(entry.Name(), "CodeSystem-"):
			codeSystems = append(codeSystems, filePath)
		case strings.HasPrefix(entry.Name(), "ValueSet-"):
			valueSets = append(valueSets, filePath)
		default:
			others = append(others, filePath)
		}
	}

	for _, group := range [][]string{structureDefs, codeSystems, valueSets, others} {
		for _, filePath := range group {
			if err := l.loadFile(filePath, stats); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
		}
	}

	stats.PackagesLoaded = 1
	return stats, nil
}

// LoadPackages loads multiple resolved packages (core, terminology,
// extensions, additional), continuing past failures in optional packages.
func (l *PackageLoader) LoadPackages(resolved *ResolvedPackages) (*LoadStats, error) {
	total := &LoadStats{}

	if resolved.Core != "" {
		stats, err := l.LoadPackage(resolved.Core)
		if err != nil {
			return nil, fmt.Errorf("loading core package: %w", err)
		}
		mergeStats(total, stats)
	}
	if resolved.Terminology != "" {
		if stats, err := l.LoadPackage(resolved.Terminology); err == nil {
			mergeStats(total, stats)
		}
	}
	if resolved.Extensions != "" {
		if stats, err := l.LoadPackage(resolved.Extensions); err == nil {
			mergeStats(total, stats)
		}
	}
	for _, pkgPath := range resolved.Additional {
		if stats, err := l.LoadPackage(pkgPath); err == nil {
			mergeStats(total, stats)
		}
	}

	return total, nil
}

// LoadPackageParallel loads a package using a bounded worker pool instead of
// the sequential, kind-ordered walk LoadPackage performs. Useful for large
// core packages where load-order doesn't matter to the caller.
func (l *PackageLoader) LoadPackageParallel(packageDir string, workers int) (*LoadStats, error) {
	stats := &LoadStats{}

	contentDir := packageDir
	packageSubDir := filepath.Join(packageDir, "package")
	if _, err := os.Stat(packageSubDir); err == nil {
		contentDir = packageSubDir
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, fmt.Errorf("reading package directory %s: %w", contentDir, err)
	}

	var jsonFiles []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.Name() == "package.json" || entry.Name() == ".index.json" {
			continue
		}
		jsonFiles = append(jsonFiles, filepath.Join(contentDir, entry.Name()))
	}

	if workers <= 0 {
		workers = 4
	}

	fileChan := make(chan string, len(jsonFiles))
	for _, f := range jsonFiles {
		fileChan <- f
	}
	close(fileChan)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range fileChan {
				if err := l.loadFile(filePath, stats); err != nil {
					atomic.AddInt64(&stats.Errors, 1)
				}
			}
		}()
	}
	wg.Wait()

	stats.PackagesLoaded = 1
	return stats, nil
}

func (l *PackageLoader) loadFile(filePath string, stats *LoadStats) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	// A package directory mixes individual resources with the occasional
	// NDJSON-free bundle file; jsonparser.GetString reads just the
	// resourceType string without unmarshalling the rest of what may be a
	// multi-megabyte StructureDefinition, avoiding a second full decode
	// resourcefile.Decode is about to do anyway.
	resourceType, err := jsonparser.GetString(data, "resourceType")
	if err != nil {
		return fmt.Errorf("%s: missing resourceType: %w", filePath, err)
	}

	if resourceType == "Bundle" {
		return l.loadBundle(filePath, data, stats)
	}

	rf, err := resourcefile.Decode(filePath, data)
	if err != nil {
		return err
	}
	l.emit(rf, stats)
	return nil
}

func (l *PackageLoader) loadBundle(filePath string, data []byte, stats *LoadStats) error {
	var bundle struct {
		Entry []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return err
	}

	for i, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		rf, err := resourcefile.Decode(fmt.Sprintf("%s#entry[%d]", filePath, i), entry.Resource)
		if err != nil {
			atomic.AddInt64(&stats.Errors, 1)
			continue
		}
		l.emit(rf, stats)
	}
	return nil
}

func (l *PackageLoader) emit(rf *resourcefile.ResourceFile, stats *LoadStats) {
	switch rf.ResourceType {
	case resourcefile.KindStructureDefinition:
		atomic.AddInt64(&stats.StructureDefinitions, 1)
	case resourcefile.KindCodeSystem:
		atomic.AddInt64(&stats.CodeSystems, 1)
	case resourcefile.KindValueSet:
		atomic.AddInt64(&stats.ValueSets, 1)
	default:
		atomic.AddInt64(&stats.Other, 1)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink != nil {
		l.sink(rf)
	}
}

func mergeStats(target, source *LoadStats) {
	atomic.AddInt64(&target.StructureDefinitions, source.StructureDefinitions)
	atomic.AddInt64(&target.CodeSystems, source.CodeSystems)
	atomic.AddInt64(&target.ValueSets, source.ValueSets)
	atomic.AddInt64(&target.Other, source.Other)
	atomic.AddInt64(&target.Errors, source.Errors)
	target.PackagesLoaded += source.PackagesLoaded
}
