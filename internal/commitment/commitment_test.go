package commitment

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/internal/hashing"
	"roulette/internal/models"
)

func saltOf(b byte) (s models.Salt) {
	for i := range s {
		s[i] = b
	}
	return
}

func TestPreimageLayout(t *testing.T) {
	pre := Preimage(13, saltOf(0x1a))
	require.Len(t, pre, PreimageSize)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 13}, pre[:8])
	assert.Equal(t, bytes.Repeat([]byte{0x1a}, 32), pre[8:])
}

func TestComputeMatchesPlainSHA256(t *testing.T) {
	salt := saltOf(0x1a)
	expected := sha256.Sum256(append([]byte{0, 0, 0, 0, 0, 0, 0, 13}, salt[:]...))
	assert.Equal(t, models.Digest(expected), Compute(hashing.SHA256{}, 13, salt))
}

func TestVerify(t *testing.T) {
	h := hashing.SHA256{}
	salt := saltOf(0xab)
	c := Compute(h, 5, salt)

	assert.NoError(t, Verify(h, 5, salt, c))
	assert.Equal(t, ErrMismatch, Verify(h, 999, salt, c), "wrong secret")
	assert.Equal(t, ErrMismatch, Verify(h, 5, saltOf(0xac), c), "wrong salt")
	assert.Equal(t, ErrMismatch, Verify(hashing.Keccak256{}, 5, salt, c), "wrong hash")
}

func TestWinnerIndex(t *testing.T) {
	assert.Equal(t, uint32(1), WinnerIndex(13, 3))
	assert.Equal(t, uint32(0), WinnerIndex(4, 2))
	assert.Equal(t, uint32(1023), WinnerIndex(^uint64(0), 1024))
}

func TestNewSecret(t *testing.T) {
	t.Run("zero bumps to one", func(t *testing.T) {
		secret, salt, err := NewSecret(bytes.NewReader(make([]byte, 40)))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), secret)
		assert.Equal(t, models.Salt{}, salt)
	})

	t.Run("reads big-endian", func(t *testing.T) {
		src := append([]byte{0, 0, 0, 0, 0, 0, 1, 0}, bytes.Repeat([]byte{7}, 32)...)
		secret, salt, err := NewSecret(bytes.NewReader(src))
		require.NoError(t, err)
		assert.Equal(t, uint64(256), secret)
		assert.Equal(t, saltOf(7), salt)
	})

	t.Run("short source", func(t *testing.T) {
		_, _, err := NewSecret(bytes.NewReader(make([]byte, 12)))
		assert.Error(t, err)
	})

	t.Run("crypto rand", func(t *testing.T) {
		secret, _, err := NewSecret(nil)
		require.NoError(t, err)
		assert.NotZero(t, secret)
	})
}

func TestAudit(t *testing.T) {
	h := hashing.SHA256{}
	salt := saltOf(0x1a)
	c := Compute(h, 13, salt)
	people := []models.Identity{"alice", "bob", "carol"}

	rec, err := Audit(h, c, 13, salt, people)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, uint32(1), rec.WinnerIndex)
	assert.Equal(t, models.Identity("bob"), rec.Winner)
	assert.Equal(t, uint32(3), rec.ParticipantCount)

	rec, err = Audit(h, c, 14, salt, people)
	require.NoError(t, err)
	assert.False(t, rec.Verified)

	_, err = Audit(h, c, 13, salt, nil)
	assert.Equal(t, ErrNoParticipants, err)
}
