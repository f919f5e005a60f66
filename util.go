package docdb

import "time"

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

// deepCopyDoc clones a document so that no map or slice is shared with the
// original. Atomic values (time.Time included) are copied by value.
func deepCopyDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return deepCopyDoc(v)
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = deepCopyValue(el)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out
	case []bool:
		out := make([]bool, len(v))
		copy(out, v)
		return out
	case []time.Time:
		out := make([]time.Time, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}

// elementsOf fans an array value out into its elements for multi-entry
// indexing and containment checks. Non-array values yield themselves.
func elementsOf(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = el
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = el
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = el
		}
		return out
	case []bool:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = el
		}
		return out
	case []time.Time:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = el
		}
		return out
	default:
		return []any{v}
	}
}

func isArrayValue(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []float64, []bool, []time.Time:
		return true
	default:
		return false
	}
}
