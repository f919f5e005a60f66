package docdb

// Put replaces-or-inserts a document, returning its primary key. The write
// is a delete-then-insert so the index maps stay consistent even when
// indexed fields changed since the previous version. Fires a create
// notification.
//
// The document is deep-copied on the way in; the caller's map is never
// retained.
func (c *Collection) Put(doc Document) (Key, error) {
	c.mu.Lock()
	k, err := c.putLocked(doc)
	c.mu.Unlock()
	if err != nil {
		return Key{}, err
	}
	if c.verbose {
		c.logf("db: PUT %s/%v", c.name, k)
	}
	c.observers.notify(OpCreate, []Key{k})
	return k, nil
}

// Add inserts a document, failing with an error wrapping ErrDuplicateKey
// if the primary key is already present.
func (c *Collection) Add(doc Document) (Key, error) {
	c.mu.Lock()
	k, err := c.addLocked(doc)
	c.mu.Unlock()
	if err != nil {
		return Key{}, err
	}
	if c.verbose {
		c.logf("db: ADD %s/%v", c.name, k)
	}
	c.observers.notify(OpCreate, []Key{k})
	return k, nil
}

// BulkPut applies Put per element with per-item notification suppressed,
// then emits exactly one create notification carrying all affected keys in
// input order. Not transactional: a mid-batch error aborts the call, but
// documents written before that point remain written and are still included
// in the notification.
func (c *Collection) BulkPut(docs []Document) ([]Key, error) {
	c.mu.Lock()
	keys := make([]Key, 0, len(docs))
	var err error
	for _, doc := range docs {
		var k Key
		k, err = c.putLocked(doc)
		if err != nil {
			break
		}
		keys = append(keys, k)
	}
	c.mu.Unlock()
	if c.verbose {
		c.logf("db: BULK_PUT %s n=%d", c.name, len(keys))
	}
	if len(keys) > 0 {
		c.observers.notify(OpCreate, dedupKeys(keys))
	}
	if err != nil {
		return keys, err
	}
	return keys, nil
}

// BulkAdd is the batched Add, with the same coalesced-notification contract
// as BulkPut. A duplicate key (pre-existing or repeated within the batch)
// aborts the call.
func (c *Collection) BulkAdd(docs []Document) ([]Key, error) {
	c.mu.Lock()
	keys := make([]Key, 0, len(docs))
	var err error
	for _, doc := range docs {
		var k Key
		k, err = c.addLocked(doc)
		if err != nil {
			break
		}
		keys = append(keys, k)
	}
	c.mu.Unlock()
	if c.verbose {
		c.logf("db: BULK_ADD %s n=%d", c.name, len(keys))
	}
	if len(keys) > 0 {
		c.observers.notify(OpCreate, dedupKeys(keys))
	}
	if err != nil {
		return keys, err
	}
	return keys, nil
}

func (c *Collection) putLocked(doc Document) (Key, error) {
	pk, err := c.primaryKeyOf(doc)
	if err != nil {
		return Key{}, err
	}
	stored := deepCopyDoc(doc)
	entries, err := c.indexEntries(stored)
	if err != nil {
		return Key{}, err
	}
	if _, exists := c.docs[pk]; exists {
		c.removeDocLocked(pk)
	}
	c.docs[pk] = stored
	c.addToIndexes(pk, stored, entries)
	return pk, nil
}

func (c *Collection) addLocked(doc Document) (Key, error) {
	pk, err := c.primaryKeyOf(doc)
	if err != nil {
		return Key{}, err
	}
	if _, exists := c.docs[pk]; exists {
		return Key{}, usageErrf(c.name, c.schema.PrimaryKey, ErrDuplicateKey, "key %v", pk)
	}
	return c.putLocked(doc)
}

// removeDocLocked removes a stored document from the primary map and every
// index map. Stored documents always carry valid index values, so entry
// recomputation cannot fail here.
func (c *Collection) removeDocLocked(pk Key) (Document, bool) {
	doc, found := c.docs[pk]
	if !found {
		return nil, false
	}
	entries, err := c.indexEntries(doc)
	ensure(err)
	c.removeFromIndexes(pk, entries)
	delete(c.docs, pk)
	return doc, true
}

// dedupKeys collapses repeated keys, preserving first-occurrence order, so
// a coalesced notification carries exactly the touched set.
func dedupKeys(keys []Key) []Key {
	seen := make(map[Key]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
