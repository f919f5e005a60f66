package docdb

import (
	"log"
	"sort"
	"sync"
	"time"
)

// Collection owns one primary map (key → document) plus one index map per
// declared index, and keeps the index maps consistent synchronously on
// every write. All operations are safe for concurrent use via a single
// reader/writer lock per collection.
type Collection struct {
	name    string
	schema  Schema
	specs   []indexSpec
	specPos map[string]int // index path → position in specs
	logf    func(format string, args ...any)
	verbose bool

	mu      sync.RWMutex
	docs    map[Key]Document
	indexes []map[Key]map[Key]Document // parallel to specs; value → key → document

	observers *observerSet
}

type Options struct {
	Logf    func(format string, args ...any)
	Verbose bool
}

// NewCollection creates a collection for one entity type. The schema is
// fixed for the collection's lifetime.
func NewCollection(name string, schema Schema, opt Options) *Collection {
	specs := schema.buildSpecs(name)
	c := &Collection{
		name:      name,
		schema:    schema.clone(),
		specs:     specs,
		specPos:   make(map[string]int, len(specs)),
		logf:      opt.Logf,
		verbose:   opt.Verbose,
		docs:      make(map[Key]Document),
		indexes:   make([]map[Key]map[Key]Document, len(specs)),
		observers: newObserverSet(name),
	}
	if c.logf == nil {
		c.logf = log.Printf
	}
	for i, spec := range specs {
		c.specPos[spec.path] = i
		c.indexes[i] = make(map[Key]map[Key]Document)
	}
	return c
}

func (c *Collection) Name() string {
	return c.name
}

// Schema returns a copy of the collection's schema.
func (c *Collection) Schema() Schema {
	return c.schema.clone()
}

// Close tears down the collection's debounce timers, flushing any pending
// coalesced notification. The collection itself remains readable.
func (c *Collection) Close() {
	c.observers.close()
}

// Subscribe registers an observer with immediate keyed delivery: every
// non-batch mutation notifies at once with the exact affected keys; bulk
// operations notify once with all keys after the batch. Returns the
// unsubscribe function.
func (c *Collection) Subscribe(fn Observer) func() {
	return c.observers.subscribe(fn, 0)
}

// SubscribeDebounced registers an observer with coalesced delivery: rapid
// mutations within the window collapse into one notification carrying the
// latest operation kind and the merged key list.
func (c *Collection) SubscribeDebounced(fn Observer, window time.Duration) func() {
	if window <= 0 {
		panic(usageErrf(c.name, "", nil, "debounce window must be positive"))
	}
	return c.observers.subscribe(fn, window)
}

// Get returns the document stored under key, wrapped in an isolation
// handle, or false if the key is absent or not a primitive.
func (c *Collection) Get(key any) (*Doc, bool) {
	k, err := keyOf(key)
	if err != nil {
		return nil, false
	}
	c.mu.RLock()
	doc, found := c.docs[k]
	c.mu.RUnlock()
	if !found {
		if c.verbose {
			c.logf("db: GET.NOTFOUND %s/%v", c.name, k)
		}
		return nil, false
	}
	if c.verbose {
		c.logf("db: GET %s/%v", c.name, k)
	}
	return newDoc(k, doc), true
}

// Has reports whether a document is stored under key.
func (c *Collection) Has(key any) bool {
	k, err := keyOf(key)
	if err != nil {
		return false
	}
	c.mu.RLock()
	_, found := c.docs[k]
	c.mu.RUnlock()
	return found
}

// Count returns the number of live documents.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Keys returns all primary keys in key order.
func (c *Collection) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.docs))
	for k := range c.docs {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys
}

// ToArray returns every document, isolation-wrapped, in primary key order.
func (c *Collection) ToArray() []*Doc {
	_, docs := c.snapshot()
	return docs
}

// Each invokes f for every document in primary key order.
func (c *Collection) Each(f func(doc *Doc)) {
	_, docs := c.snapshot()
	for _, d := range docs {
		f(d)
	}
}

func (c *Collection) snapshot() ([]Key, []*Doc) {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.docs))
	for k := range c.docs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	docs := make([]*Doc, len(keys))
	for i, k := range keys {
		docs[i] = newDoc(k, c.docs[k])
	}
	c.mu.RUnlock()
	return keys, docs
}

// primaryKeyOf extracts and normalizes the document's primary key.
func (c *Collection) primaryKeyOf(doc Document) (Key, error) {
	v, ok := getPath(doc, c.schema.PrimaryKey)
	if !ok {
		return Key{}, usageErrf(c.name, c.schema.PrimaryKey, nil, "document is missing the primary key field")
	}
	k, err := keyOf(v)
	if err != nil {
		return Key{}, usageErrf(c.name, c.schema.PrimaryKey, err, "invalid primary key")
	}
	return k, nil
}
