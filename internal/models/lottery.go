package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Identity names an organizer or a participant. It is compared byte for byte.
type Identity string

// Digest is a 32-byte hash output. It marshals as lowercase hex.
type Digest [32]byte

// Salt is the 32 bytes of blinding material mixed into a commitment.
type Salt [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts 64 hex characters with an optional 0x prefix.
func (d *Digest) UnmarshalText(text []byte) error { return decodeHex32((*[32]byte)(d), text) }

func (s Salt) String() string { return hex.EncodeToString(s[:]) }

// MarshalText implements encoding.TextMarshaler.
func (s Salt) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts 64 hex characters with an optional 0x prefix.
func (s *Salt) UnmarshalText(text []byte) error { return decodeHex32((*[32]byte)(s), text) }

// ParseDigest decodes a hex encoded digest.
func ParseDigest(s string) (d Digest, err error) {
	err = d.UnmarshalText([]byte(s))
	return
}

// ParseSalt decodes a hex encoded salt.
func ParseSalt(s string) (salt Salt, err error) {
	err = salt.UnmarshalText([]byte(s))
	return
}

func decodeHex32(dst *[32]byte, text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	if len(s) != hex.EncodedLen(len(dst)) {
		return fmt.Errorf("expected %d hex characters, got %d", hex.EncodedLen(len(dst)), len(s))
	}
	if _, err := hex.Decode(dst[:], []byte(s)); err != nil {
		return fmt.Errorf("invalid hex: %v", err)
	}
	return nil
}

// DrawSession is the state of one commit-reveal draw.
// WinnerIndex is only meaningful once Phase is PhaseRevealed.
type DrawSession struct {
	Organizer        Identity `json:"organizer"`
	Commitment       Digest   `json:"commitment"`
	ParticipantCount uint32   `json:"participantCount"`
	Phase            Phase    `json:"phase"`
	WinnerIndex      uint32   `json:"winnerIndex"`
}

// RevealResult is the outcome of a successful reveal.
type RevealResult struct {
	SessionID        uint32   `json:"sessionId"`
	WinnerIndex      uint32   `json:"winnerIndex"`
	Winner           Identity `json:"winner"`
	Secret           uint64   `json:"secret,string"`
	ParticipantCount uint32   `json:"participantCount"`
}

// AuditRecord lets anyone holding the revealed secret, the salt and the
// frozen participant list reproduce a draw.
type AuditRecord struct {
	Commitment       Digest   `json:"commitment"`
	ParticipantCount uint32   `json:"participantCount"`
	WinnerIndex      uint32   `json:"winnerIndex"`
	Winner           Identity `json:"winner"`
	Verified         bool     `json:"verified"`
}
