package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/internal/auth"
	"roulette/internal/commitment"
	"roulette/internal/hashing"
	"roulette/internal/models"
)

const testSalt = "1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a"

func run(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"commit", "audit", "token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	hashFlag := cmd.PersistentFlags().Lookup("hash")
	require.NotNil(t, hashFlag)
	assert.Equal(t, "sha256", hashFlag.DefValue)
}

func TestCommitRandom(t *testing.T) {
	out, err := run(t, "commit")
	require.NoError(t, err)

	var got CommitOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotZero(t, got.Secret)
	assert.Equal(t, "sha256", got.Hash)
	assert.Equal(t, commitment.Compute(hashing.SHA256{}, got.Secret, got.Salt), got.Commitment)
}

func TestCommitKnownValues(t *testing.T) {
	salt, err := models.ParseSalt(testSalt)
	require.NoError(t, err)

	out, err := run(t, "--hash", "keccak256", "commit", "--secret", "13", "--salt", testSalt)
	require.NoError(t, err)

	var got CommitOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, uint64(13), got.Secret)
	assert.Equal(t, salt, got.Salt)
	assert.Equal(t, commitment.Compute(hashing.Keccak256{}, 13, salt), got.Commitment)
}

func TestUnknownHash(t *testing.T) {
	_, err := run(t, "--hash", "md5", "commit")
	assert.Error(t, err)
}

func TestAudit(t *testing.T) {
	salt, err := models.ParseSalt(testSalt)
	require.NoError(t, err)
	c := commitment.Compute(hashing.SHA256{}, 13, salt)

	t.Run("verified", func(t *testing.T) {
		out, err := run(t, "audit", "--secret", "13", "--salt", testSalt, "--commitment", c.String(), "p1", "p2", "p3")
		require.NoError(t, err)

		var rec models.AuditRecord
		require.NoError(t, json.Unmarshal([]byte(out), &rec))
		assert.True(t, rec.Verified)
		assert.Equal(t, uint32(1), rec.WinnerIndex)
		assert.Equal(t, models.Identity("p2"), rec.Winner)
	})

	t.Run("wrong secret", func(t *testing.T) {
		out, err := run(t, "audit", "--secret", "14", "--salt", testSalt, "--commitment", c.String(), "p1", "p2", "p3")
		assert.Equal(t, commitment.ErrMismatch, err)
		assert.Contains(t, out, `"verified": false`)
	})

	t.Run("no participants", func(t *testing.T) {
		_, err := run(t, "audit", "--secret", "13", "--salt", testSalt, "--commitment", c.String())
		assert.Error(t, err)
	})
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "--secret", "s3cret", "--ttl", "1h", "streamer")
	require.NoError(t, err)

	who, err := auth.NewTokenIssuer([]byte("s3cret"), time.Hour).Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, models.Identity("streamer"), who)

	_, err = run(t, "token", "streamer")
	assert.Error(t, err)
}
