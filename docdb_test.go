package docdb

import (
	"reflect"
	"testing"
)

func setupUsers(t testing.TB) *Collection {
	t.Helper()
	col := NewCollection("users", Schema{
		PrimaryKey: "id",
		Indexes:    []string{"email", "age"},
		MultiEntry: []string{"tags"},
	}, Options{Logf: t.Logf})
	t.Cleanup(col.Close)
	return col
}

func user(id, email string, age int, tags ...string) Document {
	return Document{"id": id, "email": email, "age": age, "tags": tags}
}

func fill(t testing.TB, col *Collection, docs ...Document) {
	t.Helper()
	for _, doc := range docs {
		must(col.Put(doc))
	}
}

func k(t testing.TB, v any) Key {
	t.Helper()
	key, err := keyOf(v)
	if err != nil {
		t.Fatalf("** keyOf(%v): %v", v, err)
	}
	return key
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil(t testing.TB, a any) {
	if a != nil && !reflect.ValueOf(a).IsNil() {
		t.Helper()
		t.Errorf("** got %v, wanted nil", a)
	}
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func ids(docs []*Doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		v, _ := d.Get("id")
		out[i], _ = v.(string)
	}
	return out
}

func keyStrings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func mustPanicUsage(t testing.TB, f func()) {
	t.Helper()
	defer func() {
		v := recover()
		if v == nil {
			t.Errorf("** expected a UsageError panic")
			return
		}
		if _, ok := v.(*UsageError); !ok {
			panic(v)
		}
	}()
	f()
}
