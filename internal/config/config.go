// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"roulette/internal/hashing"
)

// Config holds every runtime setting. Each field maps to one ROULETTE_*
// environment variable.
type Config struct {
	ListenAddr      string        `env:"ROULETTE_LISTEN_ADDR,default=:8080"`
	Storage         string        `env:"ROULETTE_STORAGE,default=badger"`
	DataDir         string        `env:"ROULETTE_DATA_DIR,default=data"`
	Hash            string        `env:"ROULETTE_HASH,default=sha256"`
	GameID          string        `env:"ROULETTE_GAME_ID,default=zk-roulette"`
	MaxParticipants uint32        `env:"ROULETTE_MAX_PARTICIPANTS,default=1024"`
	Retention       time.Duration `env:"ROULETTE_RETENTION,default=720h"`
	HubTimeout      time.Duration `env:"ROULETTE_HUB_TIMEOUT,default=10s"`
	TokenSecret     string        `env:"ROULETTE_TOKEN_SECRET"`
	TokenTTL        time.Duration `env:"ROULETTE_TOKEN_TTL,default=24h"`
	RateLimit       float64       `env:"ROULETTE_RATE_LIMIT,default=20"`
	RateBurst       int           `env:"ROULETTE_RATE_BURST,default=40"`
	GCInterval      time.Duration `env:"ROULETTE_GC_INTERVAL,default=10m"`
	Verbose         bool          `env:"ROULETTE_VERBOSE,default=false"`
}

// Load reads envFile into the environment when it exists, then decodes the
// environment into a Config and validates it.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, errors.Wrapf(err, "failed to load %s", envFile)
			}
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, errors.Wrap(err, "failed to decode environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	switch c.Storage {
	case "badger", "memory":
	default:
		return fmt.Errorf("unknown storage %q: want badger or memory", c.Storage)
	}
	if c.Storage == "badger" && c.DataDir == "" {
		return fmt.Errorf("badger storage needs ROULETTE_DATA_DIR")
	}
	if _, err := hashing.ByName(c.Hash); err != nil {
		return err
	}
	if c.MaxParticipants < 2 {
		return fmt.Errorf("max participants must be at least 2, got %d", c.MaxParticipants)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	return nil
}
