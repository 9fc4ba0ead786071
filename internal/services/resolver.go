package services

import (
	"github.com/pkg/errors"

	"roulette/internal/commitment"
	"roulette/internal/hashing"
	"roulette/internal/models"
)

func verifyCommitment(h hashing.Hasher, s *models.DrawSession, secret uint64, salt models.Salt) error {
	return commitment.Verify(h, secret, salt, s.Commitment)
}

// resolveWinner picks the participant at secret mod count. The close guard
// makes count at least 2, so an index outside the list means stored state is
// corrupt and the process must not carry on with it.
func resolveWinner(participants []models.Identity, secret uint64, count uint32) (uint32, models.Identity) {
	if count == 0 || int(count) != len(participants) {
		panic(errors.Wrapf(ErrWinnerIndexOutOfBounds, "count %d, list of %d", count, len(participants)))
	}

	idx := commitment.WinnerIndex(secret, count)
	if int(idx) >= len(participants) {
		panic(errors.Wrapf(ErrWinnerIndexOutOfBounds, "index %d, list of %d", idx, len(participants)))
	}
	return idx, participants[idx]
}
