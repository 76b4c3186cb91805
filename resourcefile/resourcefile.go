// Package resourcefile decodes one on-disk (or in-memory) FHIR JSON
// definition into the ResourceFile descriptor used by the Resource
// Registry, Dependency Analyzer, and Intermediate Form Builder. It is the
// boundary between raw bytes and the rest of the compiler: everything
// downstream works off ResourceFile and the kind-specific payload attached
// to it, never raw JSON again.
package resourcefile

import (
	"encoding/json"
	"fmt"
)

// Kind is the resource_type discriminator from spec §3.
type Kind string

const (
	KindStructureDefinition Kind = "StructureDefinition"
	KindValueSet            Kind = "ValueSet"
	KindCodeSystem          Kind = "CodeSystem"
	KindConceptMap          Kind = "ConceptMap"
	KindStructureMap        Kind = "StructureMap"
	KindImplementationGuide Kind = "ImplementationGuide"
)

// Status is a resource's publication status.
type Status string

const (
	StatusActive  Status = "active"
	StatusDraft   Status = "draft"
	StatusRetired Status = "retired"
	StatusUnknown Status = "unknown"
)

// ResourceFile is the registry entry described in spec §3: everything the
// rest of the compiler needs to know about one on-disk definition, plus its
// decoded body in Payload.
type ResourceFile struct {
	FilePath       string
	ResourceType   Kind
	URL            string
	Name           string
	SDKind         string // "primitive-type" | "complex-type" | "resource" | "logical", StructureDefinition only
	BaseDefinition string
	Date           string
	Status         Status
	Experimental   bool

	// Payload is the kind-specific decoded body: *StructureDefinition,
	// *ValueSet, *CodeSystem, *ConceptMap, *StructureMap, or
	// *ImplementationGuide.
	Payload any
}

// envelope captures the handful of fields every FHIR resource shares, read
// once so Decode can dispatch without guessing the resource type twice.
type envelope struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	URL          string `json:"url"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Experimental *bool  `json:"experimental"`
	Date         string `json:"date"`
}

// Decode parses raw JSON bytes from filePath into a ResourceFile. Unknown
// or unsupported resourceType values are reported via the returned error
// (CompileUnsupportedKind in the facade's terms); callers should log and
// skip rather than abort a whole load_files/load_packages call.
func Decode(filePath string, data []byte) (*ResourceFile, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: invalid JSON: %w", filePath, err)
	}

	rf := &ResourceFile{
		FilePath:     filePath,
		ResourceType: Kind(env.ResourceType),
		URL:          env.URL,
		Name:         env.Name,
		Date:         env.Date,
		Status:       normalizeStatus(env.Status),
		Experimental: env.Experimental != nil && *env.Experimental,
	}
	if rf.URL == "" {
		// Resources without a canonical url (e.g. a bare ConceptMap used
		// only for local lookups) are still registered, keyed by a
		// synthetic identity so they never collide across files.
		rf.URL = "urn:resourcefile:" + filePath
	}

	switch rf.ResourceType {
	case KindStructureDefinition:
		sd, err := decodeStructureDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		rf.SDKind = sd.Kind
		rf.BaseDefinition = sd.BaseDefinition
		rf.Payload = sd
	case KindValueSet:
		vs, err := decodeValueSet(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		rf.Payload = vs
	case KindCodeSystem:
		cs, err := decodeCodeSystem(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		rf.Payload = cs
	case KindConceptMap:
		cm, err := decodeConceptMap(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		rf.Payload = cm
	case KindStructureMap:
		sm, err := decodeStructureMap(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		rf.Payload = sm
	case KindImplementationGuide:
		ig, err := decodeImplementationGuide(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		rf.Payload = ig
	default:
		return nil, fmt.Errorf("%s: unsupported resourceType %q", filePath, env.ResourceType)
	}

	return rf, nil
}

func normalizeStatus(s string) Status {
	switch s {
	case "active":
		return StatusActive
	case "draft":
		return StatusDraft
	case "retired":
		return StatusRetired
	default:
		return StatusUnknown
	}
}
