// Package hashing holds the one-way hash functions a commitment can be built
// with.
package hashing

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/sha3"

	"roulette/internal/models"
)

// Hasher computes a 32-byte digest over a preimage.
type Hasher interface {
	Hash(preimage []byte) models.Digest
	Name() string
}

// SHA256 is the default hasher; it matches what browsers produce with
// SubtleCrypto.digest("SHA-256").
type SHA256 struct{}

func (SHA256) Hash(preimage []byte) models.Digest { return sha256.Sum256(preimage) }
func (SHA256) Name() string                       { return "sha256" }

// Keccak256 is the pre-standard Keccak used by EVM chains.
type Keccak256 struct{}

func (Keccak256) Hash(preimage []byte) (d models.Digest) {
	h := sha3.NewLegacyKeccak256()
	h.Write(preimage)
	h.Sum(d[:0])
	return
}
func (Keccak256) Name() string { return "keccak256" }

// SHA3 is FIPS 202 SHA3-256.
type SHA3 struct{}

func (SHA3) Hash(preimage []byte) models.Digest { return sha3.Sum256(preimage) }
func (SHA3) Name() string                       { return "sha3-256" }

// ByName returns the hasher registered under name.
func ByName(name string) (Hasher, error) {
	switch name {
	case "", "sha256":
		return SHA256{}, nil
	case "keccak256":
		return Keccak256{}, nil
	case "sha3-256":
		return SHA3{}, nil
	}
	return nil, fmt.Errorf("unknown hash %q", name)
}
