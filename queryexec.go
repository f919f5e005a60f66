package docdb

import "sort"

// Execution runs once, on the first terminal call, and is memoized:
//
//  1. A primary-key condition resolves directly via the primary map,
//     taking precedence over any index.
//  2. Otherwise the planner fetches the bucket(s) of every index condition
//     (union for AnyOf, smallest operand bucket for AllOf) and starts from
//     the smallest candidate set.
//  3. Every accumulated criterion is re-checked against each candidate,
//     not only the one that drove bucket selection.
//  4. Range operators are applied; when one can drive candidate selection,
//     it walks the index's bucket keys in ordered-Key terms rather than
//     scanning the whole collection.
//  5. Surviving candidates are deep-copied while the collection's read lock
//     is still held, so the remaining stages never touch stored documents
//     that a concurrent in-place update could be merging into.
//  6. Chained filter predicates run in order, without the lock held.
//  7. Candidates sort by primary key, then a stable field sort when an
//     order is set, so equal sort values keep a deterministic order.
//     Then offset, then limit.
//  8. Every surviving document is wrapped in an isolation handle.

type candidate struct {
	key Key
	doc Document
}

func (q *Query) run() {
	if q.executed {
		return
	}
	q.executed = true

	col := q.col
	col.mu.RLock()
	cands := q.selectCandidatesLocked()

	// Re-check every criterion against each candidate.
	kept := cands[:0]
	for _, cd := range cands {
		if q.matchesAll(cd.doc) {
			kept = append(kept, cd)
		}
	}
	cands = kept

	// Snapshot the survivors before releasing the lock; in-place updates
	// merge into stored documents, and the stages below must not observe
	// a half-applied merge.
	for i := range cands {
		cands[i].doc = deepCopyDoc(cands[i].doc)
	}
	col.mu.RUnlock()

	for _, pred := range q.filters {
		kept = cands[:0]
		for _, cd := range cands {
			if pred(newDoc(cd.key, cd.doc)) {
				kept = append(kept, cd)
			}
		}
		cands = kept
	}

	// Candidates arrive in map-iteration order; fix the tie order by
	// primary key before any field sort.
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].key.Compare(cands[j].key) < 0
	})
	if q.orderSet {
		sort.SliceStable(cands, func(i, j int) bool {
			if q.desc {
				i, j = j, i
			}
			return lessByField(cands[i].doc, cands[j].doc, q.orderBy)
		})
	}

	if q.offset > 0 {
		if q.offset >= len(cands) {
			cands = nil
		} else {
			cands = cands[q.offset:]
		}
	}
	if q.limitSet && q.limit >= 0 && len(cands) > q.limit {
		cands = cands[:q.limit]
	}

	q.resultKeys = make([]Key, len(cands))
	q.resultDocs = make([]Document, len(cands))
	for i, cd := range cands {
		q.resultKeys[i] = cd.key
		q.resultDocs[i] = cd.doc
	}
}

// selectCandidatesLocked picks the starting candidate set. Caller holds the
// collection's read lock.
func (q *Query) selectCandidatesLocked() []candidate {
	col := q.col
	pkPath := col.schema.PrimaryKey

	// Primary-key equality resolves directly, no index consulted.
	for _, c := range q.conds {
		if c.path == pkPath && (c.kind == condEquals || c.kind == condAnyOf) {
			cands := make([]candidate, 0, len(c.keys))
			for _, k := range c.keys {
				if doc, ok := col.docs[k]; ok {
					cands = append(cands, candidate{k, doc})
				}
			}
			return cands
		}
	}

	// Smallest candidate bucket across all index conditions.
	bestPos := -1
	var bestSize int
	var bestBuckets []map[Key]Document
	for pos, c := range q.conds {
		var buckets []map[Key]Document
		var size int
		switch c.kind {
		case condEquals, condAnyOf:
			idx, ok := col.indexFor(c.path)
			if !ok {
				continue // primary-key path, resolved above
			}
			for _, k := range c.keys {
				if b := idx[k]; b != nil {
					buckets = append(buckets, b)
					size += len(b)
				}
			}
		case condAllOf:
			// Matching documents sit in every operand's bucket, so the
			// smallest one is a complete candidate set.
			idx, ok := col.indexFor(c.path)
			if !ok {
				continue
			}
			var smallest map[Key]Document
			for _, k := range c.keys {
				b := idx[k]
				if b == nil {
					smallest = nil // some operand matches nothing
					break
				}
				if smallest == nil || len(b) < len(smallest) {
					smallest = b
				}
			}
			if smallest != nil {
				buckets = append(buckets, smallest)
				size = len(smallest)
			}
		default:
			continue
		}
		if bestPos == -1 || size < bestSize {
			bestPos, bestSize, bestBuckets = pos, size, buckets
		}
	}
	if bestPos >= 0 {
		return unionBuckets(bestBuckets)
	}

	// No equality condition: a range operator can still drive selection by
	// walking the index's bucket keys in order.
	for _, c := range q.conds {
		if !c.kind.isRange() {
			continue
		}
		if c.path == pkPath {
			var cands []candidate
			for k, doc := range col.docs {
				if rangeKeyMatches(c, k) {
					cands = append(cands, candidate{k, doc})
				}
			}
			return cands
		}
		idx, ok := col.indexFor(c.path)
		if !ok {
			continue
		}
		var buckets []map[Key]Document
		for k, b := range idx {
			if rangeKeyMatches(c, k) {
				buckets = append(buckets, b)
			}
		}
		return unionBuckets(buckets)
	}

	// Empty criteria: the whole collection.
	cands := make([]candidate, 0, len(col.docs))
	for k, doc := range col.docs {
		cands = append(cands, candidate{k, doc})
	}
	return cands
}

// unionBuckets merges index buckets, deduplicating documents that appear
// under several bucket keys (possible with multi-entry indexes).
func unionBuckets(buckets []map[Key]Document) []candidate {
	var cands []candidate
	var seen map[Key]bool
	if len(buckets) > 1 {
		seen = make(map[Key]bool)
	}
	for _, b := range buckets {
		for k, doc := range b {
			if seen != nil {
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			cands = append(cands, candidate{k, doc})
		}
	}
	return cands
}

func (q *Query) matchesAll(doc Document) bool {
	for _, c := range q.conds {
		if !q.condMatches(c, doc) {
			return false
		}
	}
	return true
}

func (q *Query) condMatches(c cond, doc Document) bool {
	v, ok := getPath(doc, c.path)
	if !ok || v == nil {
		return false
	}
	var vals []any
	if q.col.isMultiEntry(c.path) && isArrayValue(v) {
		vals = elementsOf(v)
	} else {
		vals = []any{v}
	}
	switch c.kind {
	case condEquals, condAnyOf:
		for _, val := range vals {
			k, err := keyOf(val)
			if err != nil {
				continue
			}
			for _, op := range c.keys {
				if k == op {
					return true
				}
			}
		}
		return false
	case condAllOf:
		present := make(map[Key]bool, len(vals))
		for _, val := range vals {
			if k, err := keyOf(val); err == nil {
				present[k] = true
			}
		}
		for _, op := range c.keys {
			if !present[op] {
				return false
			}
		}
		return true
	default:
		for _, val := range vals {
			if k, err := keyOf(val); err == nil && rangeKeyMatches(c, k) {
				return true
			}
		}
		return false
	}
}

// rangeKeyMatches applies a range/membership operator to a normalized
// value. A kind mismatch (say, a string field compared against a number)
// fails the match; it never errors.
func rangeKeyMatches(c cond, k Key) bool {
	if k.kind != c.keys[0].kind {
		return false
	}
	switch c.kind {
	case condAbove:
		return k.Compare(c.keys[0]) > 0
	case condAboveOrEqual:
		return k.Compare(c.keys[0]) >= 0
	case condBelow:
		return k.Compare(c.keys[0]) < 0
	case condBelowOrEqual:
		return k.Compare(c.keys[0]) <= 0
	case condBetween:
		if k.kind != c.keys[1].kind {
			return false
		}
		return k.Compare(c.keys[0]) >= 0 && k.Compare(c.keys[1]) < 0
	case condNotEquals:
		return k.Compare(c.keys[0]) != 0
	default:
		return false
	}
}

// lessByField orders documents by a field value for OrderBy. Documents
// where the field is missing or not a primitive sort first; otherwise keys
// compare with their total cross-kind order.
func lessByField(a, b Document, path string) bool {
	ka, aok := fieldKey(a, path)
	kb, bok := fieldKey(b, path)
	if !aok || !bok {
		return !aok && bok
	}
	return ka.Compare(kb) < 0
}

func fieldKey(doc Document, path string) (Key, bool) {
	v, ok := getPath(doc, path)
	if !ok {
		return Key{}, false
	}
	k, err := keyOf(v)
	if err != nil {
		return Key{}, false
	}
	return k, true
}

// ToArray returns the result set, isolation-wrapped.
func (q *Query) ToArray() []*Doc {
	q.run()
	out := make([]*Doc, len(q.resultDocs))
	for i, doc := range q.resultDocs {
		out[i] = newDoc(q.resultKeys[i], doc)
	}
	return out
}

// Keys returns the primary keys of the result set.
func (q *Query) Keys() []Key {
	q.run()
	return append([]Key(nil), q.resultKeys...)
}

// First returns the first result, or false on an empty result set.
func (q *Query) First() (*Doc, bool) {
	q.run()
	if len(q.resultDocs) == 0 {
		return nil, false
	}
	return newDoc(q.resultKeys[0], q.resultDocs[0]), true
}

// Last returns the last result, or false on an empty result set.
func (q *Query) Last() (*Doc, bool) {
	q.run()
	n := len(q.resultDocs)
	if n == 0 {
		return nil, false
	}
	return newDoc(q.resultKeys[n-1], q.resultDocs[n-1]), true
}

// Count returns the size of the result set.
func (q *Query) Count() int {
	q.run()
	return len(q.resultDocs)
}

// Each invokes f for every result in order.
func (q *Query) Each(f func(doc *Doc)) {
	q.run()
	for i, doc := range q.resultDocs {
		f(newDoc(q.resultKeys[i], doc))
	}
}

// Modify applies the changes to every result via the collection's update
// path (so indexing stays centralized), suppressing per-item notification
// in favor of one coalesced update event. Returns the keys actually
// updated. Like bulk writes, not transactional: updates applied before a
// mid-batch error stick and are included in the notification.
func (q *Query) Modify(changes Document) ([]Key, error) {
	q.run()
	col := q.col
	updated := make([]Key, 0, len(q.resultKeys))
	var affected []Key
	var err error
	col.mu.Lock()
	for _, k := range q.resultKeys {
		var keys []Key
		var applied bool
		keys, applied, err = col.updateLocked(k, changes)
		if err != nil {
			break
		}
		if applied {
			updated = append(updated, k)
			affected = append(affected, keys...)
		}
	}
	col.mu.Unlock()
	if len(affected) > 0 {
		col.observers.notify(OpUpdate, dedupKeys(affected))
	}
	return updated, err
}

// Delete removes every result via the collection's delete path, with one
// coalesced delete event. Returns the number of documents removed.
func (q *Query) Delete() int {
	q.run()
	col := q.col
	removed := make([]Key, 0, len(q.resultKeys))
	col.mu.Lock()
	for _, k := range q.resultKeys {
		if _, found := col.removeDocLocked(k); found {
			removed = append(removed, k)
		}
	}
	col.mu.Unlock()
	if len(removed) > 0 {
		col.observers.notify(OpDelete, removed)
	}
	return len(removed)
}
