package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "badger", cfg.Storage)
	assert.Equal(t, "sha256", cfg.Hash)
	assert.Equal(t, uint32(1024), cfg.MaxParticipants)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention)
	assert.Equal(t, 10*time.Second, cfg.HubTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROULETTE_STORAGE", "memory")
	t.Setenv("ROULETTE_HASH", "keccak256")
	t.Setenv("ROULETTE_MAX_PARTICIPANTS", "8")
	t.Setenv("ROULETTE_RETENTION", "1h")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "keccak256", cfg.Hash)
	assert.Equal(t, uint32(8), cfg.MaxParticipants)
	assert.Equal(t, time.Hour, cfg.Retention)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, ioutil.WriteFile(path, []byte("ROULETTE_GAME_ID=test-game\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ROULETTE_GAME_ID") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-game", cfg.GameID)

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err, "a missing env file is not an error")
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	for name, mutate := range map[string]func(c *Config){
		"storage":   func(c *Config) { c.Storage = "redis" },
		"data dir":  func(c *Config) { c.DataDir = "" },
		"hash":      func(c *Config) { c.Hash = "md5" },
		"ceiling":   func(c *Config) { c.MaxParticipants = 1 },
		"retention": func(c *Config) { c.Retention = 0 },
		"rate":      func(c *Config) { c.RateBurst = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
