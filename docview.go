package docdb

import "time"

// Doc is a copy-on-write handle over a stored document. Reads forward to
// the stored value; the first write through the handle (Set or Remove) deep
// copies the whole document into the handle's private backing value, after
// which all reads and writes go to that private copy.
//
// Reading a nested object yields a child Doc linked to its parent, so a
// write at any depth clones the root document first. Atomic values
// (time.Time and other scalars) are returned as-is; slices are copied on
// read since they alias stored state.
//
// Mutating anything obtained through a Doc never changes what a later read
// from the collection returns, unless read back through the same
// still-unmodified handle.
type Doc struct {
	parent *Doc
	path   string // dot-path within parent (empty for root)

	pk   Key
	orig Document // shared stored document (root only)
	own  Document // private clone, non-nil after first write (root only)
}

func newDoc(pk Key, stored Document) *Doc {
	return &Doc{pk: pk, orig: stored}
}

// Key returns the primary key of the document this handle was read under.
// Zero for detached child handles of documents not read from a collection.
func (d *Doc) Key() Key {
	return d.root().pk
}

func (d *Doc) root() *Doc {
	r := d
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (d *Doc) fullPath(path string) string {
	full := path
	for n := d; n.parent != nil; n = n.parent {
		if full == "" {
			full = n.path
		} else {
			full = n.path + "." + full
		}
	}
	return full
}

// current returns the map this handle reads from right now: the root's
// private clone once one exists, the shared original otherwise.
func (d *Doc) current() (Document, bool) {
	r := d.root()
	base := r.own
	if base == nil {
		base = r.orig
	}
	rel := d.fullPath("")
	if rel == "" {
		return base, base != nil
	}
	v, ok := getPath(base, rel)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Get resolves a dot-path. Nested objects come back wrapped in a child Doc;
// slices come back copied; scalars come back as stored.
func (d *Doc) Get(path string) (any, bool) {
	m, ok := d.current()
	if !ok {
		return nil, false
	}
	v, ok := getPath(m, path)
	if !ok {
		return nil, false
	}
	switch v := v.(type) {
	case map[string]any:
		return &Doc{parent: d, path: path}, true
	case time.Time:
		return v, true
	default:
		if isArrayValue(v) {
			return deepCopyValue(v), true
		}
		return v, true
	}
}

// Set writes a value at a dot-path, cloning the document first if this is
// the first write through this handle's family.
func (d *Doc) Set(path string, value any) {
	r := d.root()
	r.ensureOwn()
	setPath(r.own, d.fullPath(path), deepCopyValue(value))
}

// Remove deletes the field at a dot-path, cloning like Set does. Reports
// whether the field existed.
func (d *Doc) Remove(path string) bool {
	r := d.root()
	r.ensureOwn()
	return deletePath(r.own, d.fullPath(path))
}

func (d *Doc) ensureOwn() {
	if d.own == nil {
		d.own = deepCopyDoc(d.orig)
	}
}

// Map materializes the document as a plain map. Once the handle has been
// written to, this is its private clone (cheap, safe to mutate further);
// before that it is a fresh deep copy of the stored document.
func (d *Doc) Map() Document {
	r := d.root()
	if r.own != nil {
		m, _ := d.current()
		return m
	}
	m, ok := d.current()
	if !ok {
		return nil
	}
	return deepCopyDoc(m)
}
