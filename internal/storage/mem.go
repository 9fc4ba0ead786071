package storage

import (
	"sync"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// MemStore keeps everything in an immutable radix tree. Each transaction
// reads from a point-in-time copy and its writes are applied to the live
// tree only on success.
type MemStore struct {
	mu   sync.Mutex
	tree *iradix.Tree
	now  func() time.Time
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemStore creates an empty store that reads the wall clock.
func NewMemStore() *MemStore { return NewMemStoreWithClock(time.Now) }

// NewMemStoreWithClock creates an empty store with a custom clock, mostly so
// tests can move time forward.
func NewMemStoreWithClock(now func() time.Time) *MemStore {
	return &MemStore{tree: iradix.New(), now: now}
}

func (s *MemStore) snapshot(writable bool) *memTx {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &memTx{
		snapshot: s.tree.Txn(),
		reads:    make(map[string]interface{}),
		writes:   make(map[string]*memEntry),
		writable: writable,
		now:      s.now,
	}
}

// View runs fn on a read-only snapshot.
func (s *MemStore) View(fn func(tx Tx) error) error {
	return fn(s.snapshot(false))
}

// Update runs fn and applies its writes when it returns nil and no key it
// read has changed since its snapshot was taken.
func (s *MemStore) Update(fn func(tx Tx) error) error {
	tx := s.snapshot(true)
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.writes) < 1 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	//entries are never mutated in place, so pointer equality means unchanged
	for k, seen := range tx.reads {
		cur, _ := s.tree.Get([]byte(k))
		if cur != seen {
			return ErrConflict
		}
	}

	txn := s.tree.Txn()
	for k, e := range tx.writes {
		txn.Insert([]byte(k), e)
	}
	s.tree = txn.Commit()
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

type memTx struct {
	snapshot *iradix.Txn
	reads    map[string]interface{}
	writes   map[string]*memEntry
	writable bool
	now      func() time.Time
}

func (tx *memTx) entry(key []byte) (*memEntry, bool) {
	raw, ok := tx.snapshot.Get(key)
	tx.track(key, raw)
	if !ok {
		return nil, false
	}
	e := raw.(*memEntry)
	if !e.expiresAt.IsZero() && !tx.now().Before(e.expiresAt) {
		return nil, false
	}
	return e, true
}

// track remembers what the snapshot held for key the first time it is read
// before being written.
func (tx *memTx) track(key []byte, raw interface{}) {
	k := string(key)
	if _, own := tx.writes[k]; own {
		return
	}
	if _, seen := tx.reads[k]; seen {
		return
	}
	tx.reads[k] = raw
}

func (tx *memTx) put(key []byte, e *memEntry) {
	//copy the key, the caller may reuse its buffer
	kd := make([]byte, len(key))
	copy(kd, key)

	tx.snapshot.Insert(kd, e)
	tx.writes[string(kd)] = e
}

func (tx *memTx) Exists(key []byte) (bool, error) {
	_, ok := tx.entry(key)
	return ok, nil
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	e, ok := tx.entry(key)
	if !ok {
		return nil, ErrNotFound
	}

	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v, nil
}

func (tx *memTx) Set(key, value []byte) error {
	if !tx.writable {
		return ErrReadOnly
	}

	e := &memEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if old, ok := tx.entry(key); ok {
		e.expiresAt = old.expiresAt
	}

	tx.put(key, e)
	return nil
}

func (tx *memTx) ExtendRetention(key []byte, period time.Duration) error {
	if !tx.writable {
		return ErrReadOnly
	}

	old, ok := tx.entry(key)
	if !ok {
		return ErrNotFound
	}

	tx.put(key, &memEntry{
		value:     old.value,
		expiresAt: retainUntil(old.expiresAt, tx.now(), period),
	})
	return nil
}
