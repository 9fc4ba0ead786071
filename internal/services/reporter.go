package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"roulette/internal/gamehub"
	"roulette/internal/metrics"
	"roulette/internal/models"
	"roulette/internal/storage"
)

var hubAddressKey = storage.InstanceKey("hub")

// hubAddress returns the game hub address stored by Initialize.
func hubAddress(tx storage.Tx) (string, error) {
	addr, err := tx.Get(hubAddressKey)
	if err == storage.ErrNotFound {
		return "", ErrNotInitialized
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read hub address")
	}
	return string(addr), nil
}

// reportOutcome tells the game hub who organized and who won. The organizer
// is the first party, the winner the second one and the one that won.
func (s *DrawService) reportOutcome(ctx context.Context, address string, sessionID uint32, sess *models.DrawSession, winnerIdx uint32, winner models.Identity) (err error) {
	start := time.Now()
	defer func() { metrics.RecordHubCall(start, err) }()

	hub, err := s.dial(address)
	if err != nil {
		return errors.Wrap(err, "failed to dial game hub")
	}

	if err = hub.StartGame(ctx, gamehub.StartGame{
		GameID:         s.gameID,
		SessionID:      sessionID,
		PlayerOne:      sess.Organizer,
		PlayerTwo:      winner,
		PlayerOneScore: int64(sess.ParticipantCount),
		PlayerTwoScore: int64(winnerIdx),
	}); err != nil {
		return errors.Wrap(err, "game hub start_game")
	}

	if err = hub.EndGame(ctx, gamehub.EndGame{SessionID: sessionID, PlayerTwoWon: true}); err != nil {
		return errors.Wrap(err, "game hub end_game")
	}
	return nil
}
