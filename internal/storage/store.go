// Package storage provides transactional keyed storage with per-key expiry.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Get for keys that are absent or expired.
var ErrNotFound = errors.New("key not found")

// Tx is a read or read-write interaction with a store. Changes made through a
// Tx become visible to others only when the enclosing Update returns nil.
type Tx interface {
	Exists(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)

	// Set writes value and keeps whatever expiry the key already had.
	Set(key, value []byte) error

	// ExtendRetention makes sure key lives at least period from now. It never
	// shortens an expiry that is already further away.
	ExtendRetention(key []byte, period time.Duration) error
}

// Store runs transactions.
type Store interface {
	// View runs fn against a read-only snapshot.
	View(fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction. If fn returns an error or
	// panics, nothing it wrote is kept. It fails with ErrConflict when a key
	// fn read was changed concurrently.
	Update(fn func(tx Tx) error) error

	Close() error
}

// ErrReadOnly is returned when writing through a View transaction.
var ErrReadOnly = errors.New("transaction is read-only")

// ErrConflict is returned by Update when a key the transaction read was
// changed by another transaction that committed first. Nothing was written.
var ErrConflict = errors.New("transaction conflict")

// retainUntil picks the new expiry for ExtendRetention. A zero current value
// means the key has no expiry yet.
func retainUntil(current, now time.Time, period time.Duration) time.Time {
	target := now.Add(period)
	if !current.IsZero() && current.After(target) {
		return current
	}
	return target
}
