package fhirjson

// Visitor is called once per node in a pre-order walk. Returning false
// prunes descent into that node's children.
type Visitor func(path string, v Value) bool

// Walk performs a pre-order traversal of v, calling visit for v itself and
// every descendant, building dotted/indexed paths the way FHIRPath
// expressions address elements (e.g. "Patient.name[0].given[1]"). Array
// elements are visited in index order; object fields are visited in Go map
// iteration order, which is not stable between calls.
func Walk(root string, v Value, visit Visitor) {
	if !visit(root, v) {
		return
	}
	switch v.Kind {
	case KindObject:
		for k, child := range v.Object {
			Walk(joinField(root, k), child, visit)
		}
	case KindArray:
		for i, child := range v.Array {
			Walk(joinIndex(root, i), child, visit)
		}
	}
}

func joinField(root, field string) string {
	if root == "" {
		return field
	}
	return root + "." + field
}

func joinIndex(root string, idx int) string {
	return root + "[" + itoa(idx) + "]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
