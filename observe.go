package docdb

import (
	"fmt"
	"sync"
	"time"
)

type Op int

const (
	OpNone   Op = 0
	OpCreate Op = 1
	OpUpdate Op = 2
	OpDelete Op = 3
	OpClear  Op = 4
)

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpClear:
		return "clear"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

// Observer receives the operation kind and the affected primary keys.
// Clear carries no keys. The key slice is a private copy; observers may
// retain it.
type Observer func(op Op, keys []Key)

// observerSet is the per-collection subscriber registry. Delivery iterates
// a snapshot of the current subscribers, so unsubscribing (or subscribing)
// during delivery is safe. Debounced subscribers own a timer that is
// restarted on every mutation and stopped when the collection is closed.
type observerSet struct {
	name string // owning collection, for usage errors

	mu     sync.Mutex
	lastID uint64
	subs   map[uint64]*subscription
	closed bool
}

type subscription struct {
	set    *observerSet
	id     uint64
	fn     Observer
	window time.Duration // 0 = immediate delivery

	timer       *time.Timer
	pendingOp   Op
	pendingKeys []Key
	pendingSeen map[Key]bool
}

func newObserverSet(name string) *observerSet {
	return &observerSet{name: name, subs: make(map[uint64]*subscription)}
}

func (s *observerSet) subscribe(fn Observer, window time.Duration) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		panic(usageErrf(s.name, "", nil, "subscribe on a closed collection"))
	}
	s.lastID++
	sub := &subscription{set: s, id: s.lastID, fn: fn, window: window}
	s.subs[sub.id] = sub
	id := sub.id
	return func() {
		s.unsubscribe(id)
	}
}

func (s *observerSet) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[id]
	if sub == nil {
		return
	}
	if sub.timer != nil {
		sub.timer.Stop()
	}
	delete(s.subs, id)
}

func (s *observerSet) notify(op Op, keys []Key) {
	s.mu.Lock()
	if s.closed || len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	immediate := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.window == 0 {
			immediate = append(immediate, sub)
		} else {
			sub.accumulate(op, keys)
		}
	}
	s.mu.Unlock()

	// Callbacks run without any lock held; they are free to call back into
	// the collection.
	for _, sub := range immediate {
		sub.fn(op, append([]Key(nil), keys...))
	}
}

// accumulate merges a mutation into a debounced subscription and restarts
// its timer. Caller holds s.mu. The delivered event carries the latest
// operation kind and the union of affected keys in first-seen order.
func (sub *subscription) accumulate(op Op, keys []Key) {
	sub.pendingOp = op
	if op == OpClear {
		// Keys accumulated so far are moot once the collection is wiped.
		sub.pendingKeys = nil
		sub.pendingSeen = nil
	}
	if sub.pendingSeen == nil {
		sub.pendingSeen = make(map[Key]bool)
	}
	for _, k := range keys {
		if !sub.pendingSeen[k] {
			sub.pendingSeen[k] = true
			sub.pendingKeys = append(sub.pendingKeys, k)
		}
	}
	if sub.timer == nil {
		sub.timer = time.AfterFunc(sub.window, sub.fire)
	} else {
		sub.timer.Stop()
		sub.timer.Reset(sub.window)
	}
}

func (sub *subscription) fire() {
	s := sub.set
	s.mu.Lock()
	if s.subs[sub.id] != sub {
		s.mu.Unlock()
		return
	}
	op, keys := sub.takePending()
	s.mu.Unlock()
	if op != OpNone {
		sub.fn(op, keys)
	}
}

// takePending clears the subscription's pending state. Caller holds s.mu.
func (sub *subscription) takePending() (Op, []Key) {
	op, keys := sub.pendingOp, sub.pendingKeys
	sub.pendingOp = OpNone
	sub.pendingKeys = nil
	sub.pendingSeen = nil
	return op, keys
}

// close stops all debounce timers and flushes their pending events so that
// no mutation goes unobserved.
func (s *observerSet) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	type flush struct {
		fn   Observer
		op   Op
		keys []Key
	}
	var flushes []flush
	for _, sub := range s.subs {
		if sub.timer != nil {
			sub.timer.Stop()
		}
		if sub.pendingOp != OpNone {
			op, keys := sub.takePending()
			flushes = append(flushes, flush{sub.fn, op, keys})
		}
	}
	s.subs = nil
	s.mu.Unlock()

	for _, f := range flushes {
		f.fn(f.op, f.keys)
	}
}
