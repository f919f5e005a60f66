package docdb

import "fmt"

// Document is an arbitrarily nested record. The value under the schema's
// primary-key path identifies it within a collection.
type Document = map[string]any

// Schema is the per-collection static configuration, consumed once by
// NewCollection and never mutated afterward. Adding an index later requires
// rebuilding the collection.
type Schema struct {
	// PrimaryKey is the dot-path of the field holding the document's unique
	// primitive identifier.
	PrimaryKey string

	// Indexes lists dot-paths of secondary index fields.
	Indexes []string

	// MultiEntry lists dot-paths of array fields indexed per-element.
	MultiEntry []string
}

// indexSpec is one declared index, secondary or multi-entry.
type indexSpec struct {
	path       string
	multiEntry bool
}

func (s *Schema) buildSpecs(collection string) []indexSpec {
	if s.PrimaryKey == "" {
		panic(usageErrf(collection, "", nil, "schema is missing a primary key field"))
	}
	specs := make([]indexSpec, 0, len(s.Indexes)+len(s.MultiEntry))
	seen := map[string]bool{s.PrimaryKey: true}
	add := func(path string, multiEntry bool) {
		if path == "" {
			panic(usageErrf(collection, "", nil, "schema declares an empty index path"))
		}
		if seen[path] {
			panic(usageErrf(collection, path, nil, "schema declares the field twice"))
		}
		seen[path] = true
		specs = append(specs, indexSpec{path: path, multiEntry: multiEntry})
	}
	for _, path := range s.Indexes {
		add(path, false)
	}
	for _, path := range s.MultiEntry {
		add(path, true)
	}
	return specs
}

func (s *Schema) clone() Schema {
	return Schema{
		PrimaryKey: s.PrimaryKey,
		Indexes:    append([]string(nil), s.Indexes...),
		MultiEntry: append([]string(nil), s.MultiEntry...),
	}
}

func (s *Schema) String() string {
	return fmt.Sprintf("pk=%s indexes=%v multiEntry=%v", s.PrimaryKey, s.Indexes, s.MultiEntry)
}
