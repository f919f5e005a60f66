/*
Package boltbridge persists a docdb collection into a Bolt bucket by
observing its change notifications: on create/update it re-fetches the
named keys and persists them, on delete it removes them, on clear it wipes
the bucket. Load preloads a collection from the bucket at startup.

The core store stays purely in-memory; this is the external persistence
collaborator, not a durability guarantee: notifications observed after a
crash are gone like the rest of the process state.
*/
package boltbridge

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/andreyvit/docdb"
)

type Options struct {
	Logf    func(format string, args ...any)
	Verbose bool
}

// Bridge mirrors one collection into one Bolt bucket named after the
// collection. Keys are msgpack-encoded primary key values, values are
// msgpack-encoded documents.
type Bridge struct {
	db      *bbolt.DB
	col     *docdb.Collection
	buck    []byte
	logf    func(format string, args ...any)
	verbose bool
	loading atomic.Bool
	unsub   func()
}

// New ensures the bucket exists and subscribes to the collection with the
// immediate keyed policy, so the persisted key set is exactly the touched
// set. Close the bridge to stop mirroring.
func New(db *bbolt.DB, col *docdb.Collection, opt Options) (*Bridge, error) {
	b := &Bridge{
		db:      db,
		col:     col,
		buck:    []byte(col.Name()),
		logf:    opt.Logf,
		verbose: opt.Verbose,
	}
	if b.logf == nil {
		b.logf = log.Printf
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.buck)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("boltbridge: %s: %w", col.Name(), err)
	}
	b.unsub = col.Subscribe(b.handle)
	return b, nil
}

// Close stops mirroring. The bucket keeps whatever was persisted so far.
func (b *Bridge) Close() {
	b.unsub()
}

// Load reads every persisted document into the collection with one bulk
// write. Call it right after New, before mutating the collection.
func (b *Bridge) Load() error {
	var docs []docdb.Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		buck := tx.Bucket(b.buck)
		if buck == nil {
			return nil
		}
		return buck.ForEach(func(k, v []byte) error {
			var doc map[string]any
			if err := msgpack.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("key %x: %w", k, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("boltbridge: %s: load: %w", b.col.Name(), err)
	}

	// The bulk write below notifies this bridge like any other observer;
	// suppress the pointless write-back of what was just read.
	b.loading.Store(true)
	defer b.loading.Store(false)
	if _, err := b.col.BulkPut(docs); err != nil {
		return fmt.Errorf("boltbridge: %s: load: %w", b.col.Name(), err)
	}
	if b.verbose {
		b.logf("boltbridge: LOAD %s n=%d", b.col.Name(), len(docs))
	}
	return nil
}

func (b *Bridge) handle(op docdb.Op, keys []docdb.Key) {
	if b.loading.Load() {
		return
	}
	var err error
	switch op {
	case docdb.OpCreate, docdb.OpUpdate:
		err = b.persist(keys)
	case docdb.OpDelete:
		err = b.remove(keys)
	case docdb.OpClear:
		err = b.wipe()
	}
	// Observer callbacks have no error channel; a failed write is logged
	// and the next notification retries nothing (single deterministic
	// attempt, like every other operation).
	if err != nil {
		b.logf("boltbridge: %s: %s: %v", b.col.Name(), op, err)
	}
}

// persist re-fetches the named keys and writes their current state. A key
// that no longer resolves (an update moved the document to a new primary
// key) is removed instead.
func (b *Bridge) persist(keys []docdb.Key) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		buck := tx.Bucket(b.buck)
		for _, k := range keys {
			kb, err := keyBytes(k)
			if err != nil {
				return err
			}
			doc, found := b.col.Get(k.Value())
			if !found {
				if err := buck.Delete(kb); err != nil {
					return err
				}
				continue
			}
			data, err := msgpack.Marshal(doc.Map())
			if err != nil {
				return fmt.Errorf("key %v: %w", k, err)
			}
			if err := buck.Put(kb, data); err != nil {
				return err
			}
			if b.verbose {
				b.logf("boltbridge: PUT %s/%v", b.col.Name(), k)
			}
		}
		return nil
	})
}

func (b *Bridge) remove(keys []docdb.Key) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		buck := tx.Bucket(b.buck)
		for _, k := range keys {
			kb, err := keyBytes(k)
			if err != nil {
				return err
			}
			if err := buck.Delete(kb); err != nil {
				return err
			}
			if b.verbose {
				b.logf("boltbridge: DELETE %s/%v", b.col.Name(), k)
			}
		}
		return nil
	})
}

func (b *Bridge) wipe() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(b.buck); err != nil {
			return err
		}
		_, err := tx.CreateBucket(b.buck)
		return err
	})
}

func keyBytes(k docdb.Key) ([]byte, error) {
	data, err := msgpack.Marshal(k.Value())
	if err != nil {
		return nil, fmt.Errorf("key %v: %w", k, err)
	}
	return data, nil
}
