package docdb

import (
	"strings"
	"sync"
	"testing"
)

func TestWhereEqualsOnIndex(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 30, "x", "y"),
		user("2", "b@x.com", 31, "y"))

	eq(t, col.Where("tags").Equals("y").Count(), 2)
	eq(t, col.Where("tags").Equals("x").Count(), 1)
	eq(t, col.Where("tags").Equals("nope").Count(), 0)
	eq(t, col.Where("email").Equals("b@x.com").Count(), 1)
}

func TestWhereOnPrimaryKey(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30), user("2", "b@x.com", 31))

	deepEqual(t, ids(col.Where("id").Equals("2").ToArray()), []string{"2"})
	deepEqual(t, ids(col.Where("id").AnyOf("2", "1", "404").ToArray()), []string{"1", "2"})
}

func TestWhereUnindexedFieldFailsFast(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30))

	mustPanicUsage(t, func() { col.Where("name") })
	mustPanicUsage(t, func() { col.Find(Document{"name": "A"}) })
}

func TestWhereRejectsNonPrimitiveOperand(t *testing.T) {
	col := setupUsers(t)
	mustPanicUsage(t, func() { col.Where("email").Equals(map[string]any{"x": 1}) })
	mustPanicUsage(t, func() { col.Where("age").Above([]any{1}) })
	mustPanicUsage(t, func() { col.Where("tags").AnyOf("ok", nil) })
}

func TestFindCriteria(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 30, "x", "y"),
		user("2", "b@x.com", 31, "y"),
		user("3", "a@x.com", 32, "y"))

	deepEqual(t, ids(col.Find(Document{"email": "a@x.com", "tags": "y"}).ToArray()), []string{"1", "3"})
	// A slice value means membership.
	deepEqual(t, ids(col.Find(Document{"email": []string{"a@x.com", "b@x.com"}}).ToArray()), []string{"1", "2", "3"})
}

func TestAnyOfAllOf(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 30, "x", "y"),
		user("2", "b@x.com", 31, "y"),
		user("3", "c@x.com", 32, "z"))

	deepEqual(t, ids(col.Where("tags").AnyOf("x", "z").ToArray()), []string{"1", "3"})
	deepEqual(t, ids(col.Where("tags").AllOf("x", "y").ToArray()), []string{"1"})
	eq(t, col.Where("tags").AllOf("x", "z").Count(), 0)

	mustPanicUsage(t, func() { col.Where("email").AllOf("a@x.com") })
}

func TestRangeOperators(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 10),
		user("2", "b@x.com", 20),
		user("3", "c@x.com", 30))

	deepEqual(t, ids(col.Where("age").Above(10).ToArray()), []string{"2", "3"})
	deepEqual(t, ids(col.Where("age").AboveOrEqual(20).ToArray()), []string{"2", "3"})
	deepEqual(t, ids(col.Where("age").Below(30).ToArray()), []string{"1", "2"})
	deepEqual(t, ids(col.Where("age").BelowOrEqual(10).ToArray()), []string{"1"})
	deepEqual(t, ids(col.Where("age").Between(10, 30).ToArray()), []string{"1", "2"}) // upper bound exclusive
	deepEqual(t, ids(col.Where("age").NotEquals(20).ToArray()), []string{"1", "3"})

	deepEqual(t, ids(col.Where("id").Above("1").ToArray()), []string{"2", "3"})

	mustPanicUsage(t, func() { col.Where("age").Above(10).Where("age").Below(30) })
}

func TestRangeKindMismatchFailsMatch(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 10))
	must(col.Put(Document{"id": "2", "email": "b@x.com", "age": "not a number"}))

	// The string-aged record fails the numeric range match; no error.
	deepEqual(t, ids(col.Where("age").Above(0).ToArray()), []string{"1"})
}

func TestOrderByLimitOffset(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("2", "b@x.com", 20),
		user("3", "c@x.com", 30),
		user("1", "a@x.com", 10))

	docs := col.OrderBy("age").Limit(2).ToArray()
	deepEqual(t, ids(docs), []string{"1", "2"})
	v, _ := docs[0].Get("age")
	eq(t, v.(int), 10)

	deepEqual(t, ids(col.OrderBy("age").Offset(1).Limit(1).ToArray()), []string{"2"})
	deepEqual(t, ids(col.OrderBy("age").Reverse().ToArray()), []string{"3", "2", "1"})
	deepEqual(t, ids(col.OrderBy("age").Offset(5).ToArray()), []string{})

	mustPanicUsage(t, func() { col.Query().Reverse() })
}

func TestOrderByIsStable(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 20),
		user("2", "b@x.com", 20),
		user("3", "c@x.com", 10))

	// Equal sort values keep their primary-key order.
	deepEqual(t, ids(col.OrderBy("age").ToArray()), []string{"3", "1", "2"})
}

func TestOrderByTieOrderIsDeterministic(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("5", "e@x.com", 20),
		user("2", "b@x.com", 20),
		user("4", "d@x.com", 10),
		user("1", "a@x.com", 20),
		user("3", "c@x.com", 10))

	// Candidates come out of map iteration; the tie order must not depend
	// on it, run after run.
	want := []string{"3", "4", "1", "2", "5"}
	for i := 0; i < 50; i++ {
		deepEqual(t, ids(col.OrderBy("age").ToArray()), want)
	}
}

func TestConcurrentUpdateAndQuery(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30), user("2", "a@x.com", 31))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			must(col.Update("1", Document{"name": "A", "rev": i}))
		}
	}()
	for i := 0; i < 200; i++ {
		eq(t, col.Where("email").Equals("a@x.com").Count(), 2)
	}
	wg.Wait()
}

func TestFilterChain(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "alice@x.com", 30),
		user("2", "bob@y.com", 31),
		user("3", "carol@x.com", 32))

	docs := col.Filter(func(d *Doc) bool {
		v, _ := d.Get("email")
		return strings.HasSuffix(v.(string), "@x.com")
	}).Filter(func(d *Doc) bool {
		v, _ := d.Get("age")
		return v.(int) > 30
	}).ToArray()
	deepEqual(t, ids(docs), []string{"3"})
}

func TestEmptyQueryReturnsWholeCollection(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30), user("2", "b@x.com", 31))
	deepEqual(t, ids(col.Query().ToArray()), []string{"1", "2"})
}

func TestPlannerBucketChoiceDoesNotAffectResults(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 30, "y"),
		user("2", "a@x.com", 31, "y"),
		user("3", "a@x.com", 32, "z"),
		user("4", "b@x.com", 33, "y"))

	// Same two conditions, both orders; the planner starts from the
	// smaller bucket but every criterion is re-checked, so results match.
	a := ids(col.Where("email").Equals("a@x.com").Where("tags").Equals("y").ToArray())
	b := ids(col.Where("tags").Equals("y").Where("email").Equals("a@x.com").ToArray())
	deepEqual(t, a, []string{"1", "2"})
	deepEqual(t, b, a)
}

func TestPrimaryKeyConditionTakesPrecedence(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30), user("2", "a@x.com", 31))

	deepEqual(t, ids(col.Where("id").Equals("1").Where("email").Equals("a@x.com").ToArray()), []string{"1"})
	eq(t, col.Where("id").Equals("2").Where("email").Equals("zzz").Count(), 0)
}

func TestQueryMemoization(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30))

	q := col.Where("email").Equals("a@x.com")
	eq(t, q.Count(), 1)

	// The plan ran once; later mutations don't change this instance.
	fill(t, col, user("2", "a@x.com", 31))
	eq(t, q.Count(), 1)
	eq(t, col.Where("email").Equals("a@x.com").Count(), 2)

	mustPanicUsage(t, func() { q.Limit(1) })
}

func TestFirstLast(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("2", "b@x.com", 20), user("1", "a@x.com", 10))

	d, ok := col.Query().First()
	eq(t, ok, true)
	eq(t, d.Key(), k(t, "1"))

	d, ok = col.OrderBy("age").Reverse().First()
	eq(t, ok, true)
	eq(t, d.Key(), k(t, "2"))

	d, ok = col.Query().Last()
	eq(t, ok, true)
	eq(t, d.Key(), k(t, "2"))

	_, ok = col.Where("email").Equals("nope").First()
	eq(t, ok, false)
}

func TestQueryModify(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 30),
		user("2", "a@x.com", 31),
		user("3", "b@x.com", 32))

	keys := must(col.Where("email").Equals("a@x.com").Modify(Document{"vip": true}))
	deepEqual(t, keyStrings(keys), []string{"1", "2"})

	eq(t, col.Filter(func(d *Doc) bool {
		v, ok := d.Get("vip")
		return ok && v.(bool)
	}).Count(), 2)
}

func TestQueryDelete(t *testing.T) {
	col := setupUsers(t)
	fill(t, col,
		user("1", "a@x.com", 30),
		user("2", "a@x.com", 31),
		user("3", "b@x.com", 32))

	eq(t, col.Where("email").Equals("a@x.com").Delete(), 2)
	eq(t, col.Count(), 1)
	eq(t, col.Where("email").Equals("a@x.com").Count(), 0)
}

func TestQueryResultsAreIsolated(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30))

	docs := col.Where("email").Equals("a@x.com").ToArray()
	docs[0].Set("email", "corrupted")

	d, _ := col.Get("1")
	v, _ := d.Get("email")
	eq(t, v.(string), "a@x.com")
}
