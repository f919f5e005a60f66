package docdb

type condKind int

const (
	condEquals condKind = iota
	condAnyOf
	condAllOf
	condAbove
	condAboveOrEqual
	condBelow
	condBelowOrEqual
	condBetween
	condNotEquals
)

func (k condKind) isRange() bool {
	return k >= condAbove
}

type cond struct {
	path string
	kind condKind
	keys []Key // operands; [lower, upper] for between
}

// Query is a mutable, lazily-executed plan over one collection. Build it
// with Where/Find and the modifiers, then call a terminal; the plan runs
// once and is memoized: further terminal calls reuse the result, further
// building panics.
type Query struct {
	col      *Collection
	conds    []cond
	rangeSet bool
	filters  []func(doc *Doc) bool
	orderBy  string
	orderSet bool
	desc     bool
	offset   int
	limit    int
	limitSet bool

	executed   bool
	resultKeys []Key
	resultDocs []Document // stored references; wrapped per terminal call
}

// WhereClause is the staged half of a where condition: a validated field
// waiting for its operator.
type WhereClause struct {
	q    *Query
	path string
}

// Query starts an empty plan matching the whole collection. Used with the
// modifiers below, this is how collection-level filter/orderBy/limit/offset
// shortcuts are expressed.
func (c *Collection) Query() *Query {
	return &Query{col: c, limit: -1}
}

// Where starts a condition on a field, which must be the primary key or a
// declared index; anything else panics with a UsageError right here,
// before any scan could happen.
func (c *Collection) Where(field string) *WhereClause {
	return c.Query().Where(field)
}

// Find builds a query from object criteria: an implicit AND of one
// condition per entry. A slice value means membership (anyOf), anything
// else exact equality. Fields obey the same declared-index guard as Where.
func (c *Collection) Find(criteria Document) *Query {
	q := c.Query()
	for path, v := range criteria {
		w := q.Where(path)
		if isArrayValue(v) {
			w.AnyOf(elementsOf(v)...)
		} else {
			w.Equals(v)
		}
	}
	return q
}

// Filter is a shortcut for Query().Filter.
func (c *Collection) Filter(pred func(doc *Doc) bool) *Query {
	return c.Query().Filter(pred)
}

// OrderBy is a shortcut for Query().OrderBy.
func (c *Collection) OrderBy(field string) *Query {
	return c.Query().OrderBy(field)
}

// Limit is a shortcut for Query().Limit.
func (c *Collection) Limit(n int) *Query {
	return c.Query().Limit(n)
}

// Offset is a shortcut for Query().Offset.
func (c *Collection) Offset(n int) *Query {
	return c.Query().Offset(n)
}

// Where adds another condition to the plan, under the same declared-index
// guard as Collection.Where.
func (q *Query) Where(field string) *WhereClause {
	q.requireBuilding()
	if !q.col.isQueryableField(field) {
		panic(usageErrf(q.col.name, field, nil, "field is neither the primary key nor a declared index"))
	}
	return &WhereClause{q: q, path: field}
}

func (q *Query) requireBuilding() {
	if q.executed {
		panic(usageErrf(q.col.name, "", nil, "query already executed"))
	}
}

func (w *WhereClause) add(kind condKind, operands ...any) *Query {
	q := w.q
	q.requireBuilding()
	if kind.isRange() {
		if q.rangeSet {
			panic(usageErrf(q.col.name, w.path, nil, "query already has a range operator"))
		}
		q.rangeSet = true
	}
	keys := make([]Key, len(operands))
	for i, v := range operands {
		k, err := keyOf(v)
		if err != nil {
			panic(usageErrf(q.col.name, w.path, err, "invalid operand"))
		}
		keys[i] = k
	}
	q.conds = append(q.conds, cond{path: w.path, kind: kind, keys: keys})
	return q
}

// Equals matches documents whose field resolves to the value; on a
// multi-entry field, documents whose array contains the value.
func (w *WhereClause) Equals(v any) *Query {
	return w.add(condEquals, v)
}

// AnyOf matches documents whose field value is any of the given values.
func (w *WhereClause) AnyOf(vs ...any) *Query {
	return w.add(condAnyOf, vs...)
}

// AllOf matches documents whose array field contains every given value.
// Only valid for multi-entry fields.
func (w *WhereClause) AllOf(vs ...any) *Query {
	if !w.q.col.isMultiEntry(w.path) {
		panic(usageErrf(w.q.col.name, w.path, nil, "AllOf requires a multi-entry index"))
	}
	return w.add(condAllOf, vs...)
}

// Above matches field values strictly greater than v. Like all range
// operators, a field value of a different kind fails the match rather than
// erroring.
func (w *WhereClause) Above(v any) *Query {
	return w.add(condAbove, v)
}

func (w *WhereClause) AboveOrEqual(v any) *Query {
	return w.add(condAboveOrEqual, v)
}

func (w *WhereClause) Below(v any) *Query {
	return w.add(condBelow, v)
}

func (w *WhereClause) BelowOrEqual(v any) *Query {
	return w.add(condBelowOrEqual, v)
}

// Between matches lower <= value < upper.
func (w *WhereClause) Between(lower, upper any) *Query {
	return w.add(condBetween, lower, upper)
}

func (w *WhereClause) NotEquals(v any) *Query {
	return w.add(condNotEquals, v)
}

// Filter appends a predicate evaluated after index-based candidate
// selection. Chainable; predicates run in order.
func (q *Query) Filter(pred func(doc *Doc) bool) *Query {
	q.requireBuilding()
	q.filters = append(q.filters, pred)
	return q
}

// OrderBy sorts the result by a field, ascending. The sort is stable.
func (q *Query) OrderBy(field string) *Query {
	q.requireBuilding()
	q.orderBy = field
	q.orderSet = true
	q.desc = false
	return q
}

// SortBy is an alias for OrderBy.
func (q *Query) SortBy(field string) *Query {
	return q.OrderBy(field)
}

// Reverse flips the sort direction. Only valid once an order is set.
func (q *Query) Reverse() *Query {
	q.requireBuilding()
	if !q.orderSet {
		panic(usageErrf(q.col.name, "", nil, "Reverse requires OrderBy"))
	}
	q.desc = !q.desc
	return q
}

// Offset skips the first n results, applied after filtering and sorting.
func (q *Query) Offset(n int) *Query {
	q.requireBuilding()
	q.offset = n
	return q
}

// Limit caps the result count, applied after the offset.
func (q *Query) Limit(n int) *Query {
	q.requireBuilding()
	q.limit = n
	q.limitSet = true
	return q
}
