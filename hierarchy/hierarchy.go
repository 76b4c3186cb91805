// Package hierarchy implements the Concept Hierarchy Engine: a forest of
// ConceptNodes built from a CodeSystem's concept tree (and/or its
// "parent" properties), supporting the find/ancestors/descendants
// queries the ValueSet filter operators of spec §4.6 are built on.
package hierarchy

import "github.com/gofhir/fhirschema/resourcefile"

// Node is one concept in a CodeSystem's hierarchy.
type Node struct {
	Code     string
	Display  string
	Parent   *Node
	Children []*Node
}

// Hierarchy is the forest of Nodes built from one CodeSystem, indexed by
// code for O(1) Find.
type Hierarchy struct {
	URL   string
	roots []*Node
	byCode map[string]*Node
}

// Build constructs a Hierarchy from cs's concept tree. Concepts nested via
// concept.concept[] become direct parent/child edges; concepts elsewhere in
// the tree naming a "parent" property are re-parented onto that node once
// every concept has been indexed, so a flat CodeSystem (no nesting, only
// "parent" properties) produces the same shape as a nested one.
func Build(cs *resourcefile.CodeSystem) *Hierarchy {
	h := &Hierarchy{URL: cs.URL, byCode: make(map[string]*Node)}

	var index func(concepts []resourcefile.CodeSystemConcept, parent *Node) []*Node
	index = func(concepts []resourcefile.CodeSystemConcept, parent *Node) []*Node {
		var nodes []*Node
		for _, c := range concepts {
			n := &Node{Code: c.Code, Display: c.Display, Parent: parent}
			h.byCode[c.Code] = n
			n.Children = index(c.Children, n)
			nodes = append(nodes, n)
		}
		return nodes
	}
	h.roots = index(cs.Concepts, nil)

	// Second pass: flat CodeSystems express hierarchy only via
	// concept.property "parent", after every node already has an index
	// entry (so forward references to a not-yet-seen parent still
	// resolve).
	var reparent func(concepts []resourcefile.CodeSystemConcept)
	reparent = func(concepts []resourcefile.CodeSystemConcept) {
		for _, c := range concepts {
			if len(c.Parents) > 0 {
				child := h.byCode[c.Code]
				if parent, ok := h.byCode[c.Parents[0]]; ok && child.Parent == nil {
					child.Parent = parent
					parent.Children = append(parent.Children, child)
				}
			}
			reparent(c.Children)
		}
	}
	reparent(cs.Concepts)

	return h
}

// Find returns the node for code via direct index lookup (the forest is
// fully indexed at Build time, so this is O(1) rather than a DFS despite
// the interface spec.md describes as "DFS through the forest").
func (h *Hierarchy) Find(code string) (*Node, bool) {
	n, ok := h.byCode[code]
	return n, ok
}

// Descendants returns every strict descendant code of code, in DFS order;
// empty if code is not found.
func (h *Hierarchy) Descendants(code string) []string {
	n, ok := h.byCode[code]
	if !ok {
		return nil
	}
	var out []string
	var walk func(*Node)
	walk = func(node *Node) {
		for _, child := range node.Children {
			out = append(out, child.Code)
			walk(child)
		}
	}
	walk(n)
	return out
}

// Ancestors returns the root-to-parent path of code, in root-first order;
// empty if code is a root or not found.
func (h *Hierarchy) Ancestors(code string) []string {
	n, ok := h.byCode[code]
	if !ok || n.Parent == nil {
		return nil
	}
	var out []string
	for p := n.Parent; p != nil; p = p.Parent {
		out = append([]string{p.Code}, out...)
	}
	return out
}

// Codes returns every code in the hierarchy, in DFS pre-order over the
// roots. Used by the Schema Compiler to enumerate a `complete` CodeSystem
// into an Enum validator.
func (h *Hierarchy) Codes() []string {
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		out = append(out, n.Code)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range h.roots {
		walk(r)
	}
	return out
}
