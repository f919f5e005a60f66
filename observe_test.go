package docdb

import (
	"sync"
	"testing"
	"time"
)

type recordedEvent struct {
	op   Op
	keys []Key
}

// recorder collects notifications; collection callbacks are synchronous for
// non-debounced subscribers, but debounce timers fire on their own
// goroutine, so access is locked.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) observe(op Op, keys []Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{op, keys})
}

func (r *recorder) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func TestNotifyPerMutation(t *testing.T) {
	col := setupUsers(t)
	var rec recorder
	unsub := col.Subscribe(rec.observe)
	defer unsub()

	must(col.Put(user("1", "a@x.com", 30)))
	must(col.Update("1", Document{"name": "A"}))
	col.Delete("1")
	col.Clear()

	events := rec.snapshot()
	eq(t, len(events), 4)
	eq(t, events[0].op, OpCreate)
	deepEqual(t, keyStrings(events[0].keys), []string{"1"})
	eq(t, events[1].op, OpUpdate)
	deepEqual(t, keyStrings(events[1].keys), []string{"1"})
	eq(t, events[2].op, OpDelete)
	eq(t, events[3].op, OpClear)
	eq(t, len(events[3].keys), 0)
}

func TestBulkAddCoalescesToOneNotification(t *testing.T) {
	col := setupUsers(t)
	var rec recorder
	defer col.Subscribe(rec.observe)()

	must(col.BulkAdd([]Document{
		user("1", "a@x.com", 30),
		user("2", "b@x.com", 31),
		user("3", "c@x.com", 32),
	}))

	events := rec.snapshot()
	eq(t, len(events), 1)
	eq(t, events[0].op, OpCreate)
	deepEqual(t, keyStrings(events[0].keys), []string{"1", "2", "3"})
}

func TestBulkDeleteCoalesces(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30), user("2", "b@x.com", 31))
	var rec recorder
	defer col.Subscribe(rec.observe)()

	removed := col.BulkDelete([]any{"1", "404", "2"})
	deepEqual(t, keyStrings(removed), []string{"1", "2"})

	events := rec.snapshot()
	eq(t, len(events), 1)
	eq(t, events[0].op, OpDelete)
	deepEqual(t, keyStrings(events[0].keys), []string{"1", "2"})
}

func TestMidBatchErrorStillNotifiesAppliedWrites(t *testing.T) {
	col := setupUsers(t)
	var rec recorder
	defer col.Subscribe(rec.observe)()

	_, err := col.BulkAdd([]Document{
		user("1", "a@x.com", 30),
		user("1", "dup@x.com", 31), // duplicate aborts here
		user("3", "c@x.com", 32),
	})
	if err == nil {
		t.Fatalf("** expected duplicate key error")
	}

	// Not transactional: the first write stays applied and is announced.
	eq(t, col.Count(), 1)
	events := rec.snapshot()
	eq(t, len(events), 1)
	deepEqual(t, keyStrings(events[0].keys), []string{"1"})
}

func TestQueryModifyCoalesces(t *testing.T) {
	col := setupUsers(t)
	fill(t, col, user("1", "a@x.com", 30), user("2", "a@x.com", 31))
	var rec recorder
	defer col.Subscribe(rec.observe)()

	must(col.Where("email").Equals("a@x.com").Modify(Document{"vip": true}))

	events := rec.snapshot()
	eq(t, len(events), 1)
	eq(t, events[0].op, OpUpdate)
	deepEqual(t, keyStrings(events[0].keys), []string{"1", "2"})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	col := setupUsers(t)
	var rec recorder
	unsub := col.Subscribe(rec.observe)

	must(col.Put(user("1", "a@x.com", 30)))
	unsub()
	must(col.Put(user("2", "b@x.com", 31)))

	eq(t, len(rec.snapshot()), 1)
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	col := setupUsers(t)
	var rec recorder
	var unsubOther func()
	unsubSelf := col.Subscribe(func(op Op, keys []Key) {
		unsubOther() // removing another subscriber mid-delivery must be safe
		rec.observe(op, keys)
	})
	defer unsubSelf()
	var other recorder
	unsubOther = col.Subscribe(other.observe)

	must(col.Put(user("1", "a@x.com", 30)))
	must(col.Put(user("2", "b@x.com", 31)))

	eq(t, len(rec.snapshot()), 2)
	if n := len(other.snapshot()); n > 1 {
		t.Errorf("** unsubscribed observer got %d events, wanted at most 1", n)
	}
}

func TestObserverMayReadCollection(t *testing.T) {
	col := setupUsers(t)
	var got string
	defer col.Subscribe(func(op Op, keys []Key) {
		// The persistence bridge pattern: re-fetch named keys on notification.
		d, ok := col.Get(keys[0].Value())
		if ok {
			v, _ := d.Get("email")
			got = v.(string)
		}
	})()

	must(col.Put(user("1", "a@x.com", 30)))
	eq(t, got, "a@x.com")
}

func TestDebouncedDeliveryCoalesces(t *testing.T) {
	col := setupUsers(t)
	var rec recorder
	defer col.SubscribeDebounced(rec.observe, 100*time.Millisecond)()

	must(col.Put(user("1", "a@x.com", 30)))
	must(col.Put(user("2", "b@x.com", 31)))
	must(col.Update("1", Document{"name": "A"}))

	eq(t, len(rec.snapshot()), 0) // nothing yet, window still open

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	events := rec.snapshot()
	eq(t, len(events), 1)
	eq(t, events[0].op, OpUpdate) // latest operation kind wins
	deepEqual(t, keyStrings(events[0].keys), []string{"1", "2"})
}

func TestCloseFlushesPendingDebounce(t *testing.T) {
	col := NewCollection("users", Schema{PrimaryKey: "id"}, Options{Logf: t.Logf})
	var rec recorder
	col.SubscribeDebounced(rec.observe, time.Hour)

	must(col.Put(Document{"id": "1"}))
	eq(t, len(rec.snapshot()), 0)

	col.Close()
	events := rec.snapshot()
	eq(t, len(events), 1)
	eq(t, events[0].op, OpCreate)
	deepEqual(t, keyStrings(events[0].keys), []string{"1"})
}

func TestSubscribeAfterCloseFailsFast(t *testing.T) {
	col := NewCollection("users", Schema{PrimaryKey: "id"}, Options{Logf: t.Logf})
	col.Close()
	mustPanicUsage(t, func() { col.Subscribe(func(Op, []Key) {}) })
}

func TestSubscribeDebouncedRequiresWindow(t *testing.T) {
	col := setupUsers(t)
	mustPanicUsage(t, func() { col.SubscribeDebounced(func(Op, []Key) {}, 0) })
}
