package storage

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

// BadgerStore is a Store that persists to disk. Expiry is handled by badger's
// own per-entry TTL.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStore opens (or creates) a badger database in dir.
func NewBadgerStore(dir string) (s *BadgerStore, err error) {
	s = &BadgerStore{now: time.Now}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	s.db, err = badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}

	return
}

// TempBadgerStore returns a store in a temporary directory that is removed,
// together with the store, when clean is called. It panics on failure so it
// is mostly useful in tests.
func TempBadgerStore() (s *BadgerStore, clean func()) {
	dir, err := ioutil.TempDir("", "roulette_")
	if err != nil {
		panic("failed to create tempdir: " + err.Error())
	}

	s, err = NewBadgerStore(dir)
	if err != nil {
		panic("failed to create store: " + err.Error())
	}

	return s, func() {
		_ = s.Close()
		if err := os.RemoveAll(dir); err != nil {
			panic("failed to remove dir: " + err.Error())
		}
	}
}

// View runs fn in a read-only badger transaction.
func (s *BadgerStore) View(fn func(tx Tx) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{btx: txn, now: s.now})
	})
}

// Update runs fn in a read-write badger transaction. badger discards the
// transaction when fn fails.
func (s *BadgerStore) Update(fn func(tx Tx) error) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{btx: txn, now: s.now})
	})
	if err == badger.ErrConflict {
		return ErrConflict
	}
	return err
}

// CollectGarbage rewrites value log files until badger reports there is
// nothing left worth rewriting.
func (s *BadgerStore) CollectGarbage(discardRatio float64) (rewrites int, err error) {
	for {
		err = s.db.RunValueLogGC(discardRatio)
		if err == badger.ErrNoRewrite {
			return rewrites, nil
		}
		if err != nil {
			return rewrites, errors.Wrap(err, "value log gc")
		}
		rewrites++
	}
}

// Close the store, releasing directory locks.
func (s *BadgerStore) Close() error { return s.db.Close() }

type badgerTx struct {
	btx *badger.Txn
	now func() time.Time
}

func (tx *badgerTx) item(key []byte) (*badger.Item, error) {
	it, err := tx.btx.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get key")
	}
	return it, nil
}

// value copies the item value; badger only guarantees it inside the txn.
func value(it *badger.Item) ([]byte, error) {
	d, err := it.Value()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read value")
	}
	v := make([]byte, len(d))
	copy(v, d)
	return v, nil
}

func expiry(it *badger.Item) time.Time {
	if at := it.ExpiresAt(); at > 0 {
		return time.Unix(int64(at), 0)
	}
	return time.Time{}
}

func (tx *badgerTx) Exists(key []byte) (bool, error) {
	_, err := tx.item(key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	it, err := tx.item(key)
	if err != nil {
		return nil, err
	}
	return value(it)
}

func (tx *badgerTx) setUntil(key, val []byte, until time.Time) error {
	if until.IsZero() {
		return tx.btx.Set(key, val)
	}

	ttl := until.Sub(tx.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return tx.btx.SetWithTTL(key, val, ttl)
}

func (tx *badgerTx) Set(key, val []byte) error {
	var until time.Time
	it, err := tx.item(key)
	switch {
	case err == nil:
		until = expiry(it)
	case err != ErrNotFound:
		return err
	}

	//badger may hold on to the slices until commit
	k := append([]byte(nil), key...)
	v := append([]byte(nil), val...)
	if err := tx.setUntil(k, v, until); err != nil {
		return errors.Wrap(err, "failed to set key")
	}
	return nil
}

func (tx *badgerTx) ExtendRetention(key []byte, period time.Duration) error {
	it, err := tx.item(key)
	if err != nil {
		return err
	}

	current := expiry(it)
	until := retainUntil(current, tx.now(), period)
	if until.Equal(current) {
		return nil
	}

	v, err := value(it)
	if err != nil {
		return err
	}

	k := append([]byte(nil), key...)
	if err := tx.setUntil(k, v, until); err != nil {
		return errors.Wrap(err, "failed to extend retention")
	}
	return nil
}
