/*
Package docdb implements an embedded, schema-defined, in-memory document
store with indexed lookups, a fluent query engine and change notification.

We implement:

1. Collections, holding arbitrary nested documents (map[string]any) under a
single primary key declared by the collection's schema.

2. Indexes, allowing quick lookup of documents by the value of a secondary
field, including multi-entry indexes over array fields (one index entry per
array element).

3. Queries, chainable lazily-executed plans that pick the smallest matching
index bucket, re-check every criterion, then filter, sort and paginate.

4. Observers, per-collection subscriber registries notified of every
mutation with the operation kind and the affected primary keys, either
immediately or coalesced within a debounce window.

# Technical Details

**Primary map and index maps.**
Each collection owns one primary map (key → document) and one map per
declared index (indexed value → key → document). Index maps are maintained
synchronously on every write; buckets emptied by a removal are deleted.

**Keys.**
Primary keys and indexed values must be primitives: strings, numbers,
booleans or timestamps. They are normalized into a tagged Key value with a
total order (bool < number < time < string), so the same value arriving as
int or float64 lands in the same bucket.

**Field paths.**
Nested fields are addressed with dot notation ("address.city"). Path
resolution is a plain string-split walk over nested maps.

**Isolation.**
Every read returns a Doc handle wrapping the stored document. Reads forward
to the stored value; the first write through a handle deep-copies the
document into the handle, so callers can never corrupt stored state.

**No durability.**
The store is purely in-memory. The boltbridge subpackage implements the
external persistence contract (persist touched keys on notification) on top
of Bolt for embedders that want their data back after a restart.
*/
package docdb
