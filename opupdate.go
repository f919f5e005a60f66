package docdb

// Update merges changes into the stored document. Change keys are
// dot-paths; values are deep-copied. Non-indexed changes are applied to the
// stored document in place; if the primary key or any indexed field
// changes, the document is deleted and reinserted to force a full reindex.
//
// A missing key is a sentinel (false, nil), never an error. Fires an update
// notification carrying the affected key, or both old and new keys when the
// change moved the document to a different primary key.
func (c *Collection) Update(key any, changes Document) (bool, error) {
	k, kerr := keyOf(key)
	if kerr != nil {
		return false, nil // not a primitive, so certainly not stored
	}
	c.mu.Lock()
	affected, applied, err := c.updateLocked(k, changes)
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	if !applied {
		if c.verbose {
			c.logf("db: UPDATE.NOTFOUND %s/%v", c.name, key)
		}
		return false, nil
	}
	if c.verbose {
		c.logf("db: UPDATE %s/%v", c.name, affected[len(affected)-1])
	}
	c.observers.notify(OpUpdate, affected)
	return true, nil
}

func (c *Collection) updateLocked(k Key, changes Document) (affected []Key, applied bool, err error) {
	stored, found := c.docs[k]
	if !found {
		return nil, false, nil
	}

	// Stage the merge on a copy first so a bad indexed value fails the call
	// before any state has changed.
	merged := deepCopyDoc(stored)
	for path, v := range changes {
		setPath(merged, path, deepCopyValue(v))
	}
	newPK, err := c.primaryKeyOf(merged)
	if err != nil {
		return nil, false, err
	}
	newEntries, err := c.indexEntries(merged)
	if err != nil {
		return nil, false, err
	}

	oldEntries, err := c.indexEntries(stored)
	ensure(err)

	if newPK == k && entriesEqual(oldEntries, newEntries) {
		// No keyed field changed: merge into the stored document in place.
		for path, v := range changes {
			setPath(stored, path, deepCopyValue(v))
		}
		return []Key{k}, true, nil
	}

	c.removeDocLocked(k)
	c.docs[newPK] = merged
	c.addToIndexes(newPK, merged, newEntries)
	if newPK != k {
		return []Key{k, newPK}, true, nil
	}
	return []Key{newPK}, true, nil
}

func entriesEqual(a, b [][]Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
