package docdb

// Delete removes the document stored under key from the primary map and
// every index map. A missing key is a sentinel false, never an error.
func (c *Collection) Delete(key any) bool {
	k, err := keyOf(key)
	if err != nil {
		return false
	}
	c.mu.Lock()
	_, found := c.removeDocLocked(k)
	c.mu.Unlock()
	if !found {
		if c.verbose {
			c.logf("db: DELETE.NOOP %s/%v", c.name, k)
		}
		return false
	}
	if c.verbose {
		c.logf("db: DELETE %s/%v", c.name, k)
	}
	c.observers.notify(OpDelete, []Key{k})
	return true
}

// BulkDelete applies Delete per key with per-item notification suppressed,
// then emits one delete notification with the keys actually removed, in
// input order.
func (c *Collection) BulkDelete(keys []any) []Key {
	c.mu.Lock()
	removed := make([]Key, 0, len(keys))
	for _, key := range keys {
		k, err := keyOf(key)
		if err != nil {
			continue
		}
		if _, found := c.removeDocLocked(k); found {
			removed = append(removed, k)
		}
	}
	c.mu.Unlock()
	if c.verbose {
		c.logf("db: BULK_DELETE %s n=%d", c.name, len(removed))
	}
	if len(removed) > 0 {
		c.observers.notify(OpDelete, dedupKeys(removed))
	}
	return removed
}

// Clear removes every document and empties all index maps, then emits a
// clear notification with no keys.
func (c *Collection) Clear() {
	c.mu.Lock()
	c.docs = make(map[Key]Document)
	for i := range c.indexes {
		c.indexes[i] = make(map[Key]map[Key]Document)
	}
	c.mu.Unlock()
	if c.verbose {
		c.logf("db: CLEAR %s", c.name)
	}
	c.observers.notify(OpClear, nil)
}
