// Package commitment builds and checks the binding between an organizer's
// secret and the digest it publishes before anyone registers.
//
// The preimage is the secret as 8 big-endian bytes followed by the 32 salt
// bytes. Anyone holding the secret, the salt and the frozen participant list
// can recompute both the digest and the winner.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"

	"roulette/internal/hashing"
	"roulette/internal/models"
)

// PreimageSize is the length of the hashed preimage.
const PreimageSize = 8 + 32

var (
	// ErrMismatch means the revealed secret and salt do not hash to the
	// published commitment.
	ErrMismatch = errors.New("commitment mismatch")
	// ErrNoParticipants means there is nothing to draw from.
	ErrNoParticipants = errors.New("no participants")
)

// Preimage lays out secret and salt the way the commitment is computed.
func Preimage(secret uint64, salt models.Salt) []byte {
	pre := make([]byte, PreimageSize)
	binary.BigEndian.PutUint64(pre[:8], secret)
	copy(pre[8:], salt[:])
	return pre
}

// Compute returns the commitment for secret and salt.
func Compute(h hashing.Hasher, secret uint64, salt models.Salt) models.Digest {
	return h.Hash(Preimage(secret, salt))
}

// Verify recomputes the commitment and compares it with c.
func Verify(h hashing.Hasher, secret uint64, salt models.Salt, c models.Digest) error {
	got := Compute(h, secret, salt)
	if subtle.ConstantTimeCompare(got[:], c[:]) != 1 {
		return ErrMismatch
	}
	return nil
}

// WinnerIndex maps a secret onto a position in a list of count entries. Plain
// modulo, so it is biased whenever 2^64 is not a multiple of count.
func WinnerIndex(secret uint64, count uint32) uint32 {
	return uint32(secret % uint64(count))
}

// NewSecret draws a fresh nonzero secret and a salt from r, or from
// crypto/rand when r is nil. A zero draw is bumped to one since zero secrets
// are refused at reveal time.
func NewSecret(r io.Reader) (secret uint64, salt models.Salt, err error) {
	if r == nil {
		r = rand.Reader
	}

	var buf [8]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, salt, pkgerrors.Wrap(err, "failed to read secret")
	}
	if _, err = io.ReadFull(r, salt[:]); err != nil {
		return 0, salt, pkgerrors.Wrap(err, "failed to read salt")
	}

	secret = binary.BigEndian.Uint64(buf[:])
	if secret == 0 {
		secret = 1
	}
	return secret, salt, nil
}

// Audit reproduces a draw from its public inputs. Verified reports whether
// secret and salt open commitment; the winner is filled in either way so a
// mismatch can still be inspected.
func Audit(h hashing.Hasher, commitment models.Digest, secret uint64, salt models.Salt, participants []models.Identity) (models.AuditRecord, error) {
	if len(participants) == 0 {
		return models.AuditRecord{}, ErrNoParticipants
	}

	count := uint32(len(participants))
	idx := WinnerIndex(secret, count)
	return models.AuditRecord{
		Commitment:       commitment,
		ParticipantCount: count,
		WinnerIndex:      idx,
		Winner:           participants[idx],
		Verified:         Verify(h, secret, salt, commitment) == nil,
	}, nil
}
