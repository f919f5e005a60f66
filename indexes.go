package docdb

// Index maintenance. For each declared index path we resolve the (possibly
// nested) field value: a multi-entry index over an array value contributes
// one entry per element, everything else contributes a single entry.
// Missing and nil values contribute nothing. Non-primitive values (and
// non-primitive array elements) are usage errors raised at write time.
// Buckets emptied by removal are deleted so transient values don't leak.

// indexEntries computes, per declared index, the bucket keys the document
// belongs under. Computed up front so a bad value fails the write before
// any state has changed.
func (c *Collection) indexEntries(doc Document) ([][]Key, error) {
	entries := make([][]Key, len(c.specs))
	for i, spec := range c.specs {
		v, ok := getPath(doc, spec.path)
		if !ok || v == nil {
			continue
		}
		if spec.multiEntry && isArrayValue(v) {
			for _, el := range elementsOf(v) {
				k, err := keyOf(el)
				if err != nil {
					return nil, usageErrf(c.name, spec.path, err, "invalid multi-entry index element")
				}
				entries[i] = append(entries[i], k)
			}
		} else {
			k, err := keyOf(v)
			if err != nil {
				return nil, usageErrf(c.name, spec.path, err, "invalid index value")
			}
			entries[i] = []Key{k}
		}
	}
	return entries, nil
}

func (c *Collection) addToIndexes(pk Key, doc Document, entries [][]Key) {
	for i, keys := range entries {
		idx := c.indexes[i]
		for _, k := range keys {
			bucket := idx[k]
			if bucket == nil {
				bucket = make(map[Key]Document)
				idx[k] = bucket
			}
			bucket[pk] = doc
		}
	}
}

func (c *Collection) removeFromIndexes(pk Key, entries [][]Key) {
	for i, keys := range entries {
		idx := c.indexes[i]
		for _, k := range keys {
			bucket := idx[k]
			if bucket == nil {
				continue
			}
			delete(bucket, pk)
			if len(bucket) == 0 {
				delete(idx, k)
			}
		}
	}
}

// indexFor returns the index map for a declared path, or nil.
func (c *Collection) indexFor(path string) (map[Key]map[Key]Document, bool) {
	pos, ok := c.specPos[path]
	if !ok {
		return nil, false
	}
	return c.indexes[pos], true
}

func (c *Collection) isMultiEntry(path string) bool {
	pos, ok := c.specPos[path]
	return ok && c.specs[pos].multiEntry
}

// isQueryableField reports whether a field may appear in a where clause:
// the primary key or a declared index. Anything else is rejected at query
// construction time, never silently downgraded to a full scan.
func (c *Collection) isQueryableField(path string) bool {
	if path == c.schema.PrimaryKey {
		return true
	}
	_, ok := c.specPos[path]
	return ok
}
