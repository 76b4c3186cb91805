// Package fhirschema compiles FHIR R4 terminology and profile definitions
// (StructureDefinition, ValueSet, CodeSystem, and related canonical
// resources) into an in-memory, executable validation program, and checks
// candidate documents against one or more named profiles.
//
// The hard engineering lives in the definition-to-schema compiler: ingesting
// a heterogeneous, interdependent resource graph, computing a cycle-tolerant
// dependency order, lowering each StructureDefinition's flat element list
// into a tree-shaped intermediate form, and compiling that tree into a
// reusable CompiledValidator composed of sub-validators for primitive types,
// complex types, resources, value sets, code-system enumerations, and
// hierarchical code-system queries.
//
// # Quick Start
//
//	v, err := fhirschema.NewValidator(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := v.LoadPackages(ctx, "hl7.fhir.r4.core!4.0.1"); err != nil {
//	    log.Fatal(err)
//	}
//	result := v.Validate(ctx, patientJSON, fhirschema.ValidateOptions{
//	    Profiles: []string{"http://hl7.org/fhir/StructureDefinition/Patient"},
//	})
//	if !result.Success {
//	    fmt.Println(result.Errors)
//	}
//
// # Pipeline
//
// Leaves first: Resource Registry (dedupe) -> Dependency Analyzer ->
// Topological Sorter -> Intermediate Form Builder -> Schema Compiler ->
// Concept Hierarchy Engine -> Validator Runtime, with a Built-in Catalog of
// opaque external-vocabulary validators injected before compilation.
//
// # Architecture
//
// Compiled validators are a tagged sum type (schema.Validator), not
// an interface hierarchy; a single dispatch executes every variant.
// Refinements are a closed, catalog-driven enum so that adding one is a
// single-file change. Cyclic resource graphs are tolerated by substituting
// a permissive Any for any dependency the compiler cannot resolve in time,
// rather than failing the whole compilation.
package fhirschema
