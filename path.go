package docdb

import "strings"

// Nested fields are addressed with dot notation: "address.city" resolves
// doc["address"]["city"]. Resolution is a plain split-and-walk; intermediate
// values that are not maps terminate the walk with a miss.

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func getPath(doc Document, path string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	parts := splitPath(path)
	cur := any(doc)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath creates intermediate maps as needed. An intermediate non-map value
// is replaced by a map (last write wins, matching plain assignment).
func setPath(doc Document, path string, value any) {
	parts := splitPath(path)
	m := map[string]any(doc)
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func deletePath(doc Document, path string) bool {
	parts := splitPath(path)
	m := map[string]any(doc)
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return false
		}
		m = next
	}
	last := parts[len(parts)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
