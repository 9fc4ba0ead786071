package services

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"roulette/internal/models"
	"roulette/internal/storage"
)

// registry reads and writes session records inside one storage transaction.
// Nothing it does is visible until the transaction commits.
type registry struct {
	tx              storage.Tx
	maxParticipants uint32
	retention       time.Duration
}

func (r registry) readSession(id uint32) (*models.DrawSession, error) {
	data, err := r.tx.Get(storage.SessionKey(id))
	if err == storage.ErrNotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read session %d", id)
	}

	s := &models.DrawSession{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "failed to decode session %d", id)
	}
	return s, nil
}

func (r registry) readParticipants(id uint32) ([]models.Identity, error) {
	data, err := r.tx.Get(storage.ParticipantsKey(id))
	if err == storage.ErrNotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read participants of %d", id)
	}

	list := []models.Identity{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errors.Wrapf(err, "failed to decode participants of %d", id)
	}
	return list, nil
}

func (r registry) writeSession(id uint32, s *models.DrawSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}
	return r.tx.Set(storage.SessionKey(id), data)
}

func (r registry) writeParticipants(id uint32, list []models.Identity) error {
	data, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "failed to encode participants")
	}
	return r.tx.Set(storage.ParticipantsKey(id), data)
}

// touch refreshes the retention of both records of a session.
func (r registry) touch(id uint32) error {
	for _, k := range [][]byte{storage.SessionKey(id), storage.ParticipantsKey(id)} {
		if err := r.tx.ExtendRetention(k, r.retention); err != nil {
			return errors.Wrapf(err, "failed to extend retention of %d", id)
		}
	}
	return nil
}

// createSession stores a fresh Open session with an empty participant list.
func (r registry) createSession(id uint32, organizer models.Identity, commitment models.Digest) error {
	exists, err := r.tx.Exists(storage.SessionKey(id))
	if err != nil {
		return errors.Wrapf(err, "failed to look up session %d", id)
	}
	if exists {
		return ErrSessionAlreadyExists
	}

	s := &models.DrawSession{
		Organizer:  organizer,
		Commitment: commitment,
		Phase:      models.PhaseOpen,
	}
	if err := r.writeSession(id, s); err != nil {
		return err
	}
	if err := r.writeParticipants(id, []models.Identity{}); err != nil {
		return err
	}
	return r.touch(id)
}

// addParticipant appends participant to an Open session and returns the new
// count.
func (r registry) addParticipant(id uint32, participant models.Identity) (uint32, error) {
	s, err := r.readSession(id)
	if err != nil {
		return 0, err
	}
	if s.Phase != models.PhaseOpen {
		return 0, ErrRegistrationClosed
	}
	if s.ParticipantCount >= r.maxParticipants {
		return 0, ErrMaxParticipantsReached
	}

	list, err := r.readParticipants(id)
	if err != nil {
		return 0, err
	}
	for _, p := range list {
		if p == participant {
			return 0, ErrDuplicateParticipant
		}
	}

	list = append(list, participant)
	s.ParticipantCount = uint32(len(list))

	if err := r.writeSession(id, s); err != nil {
		return 0, err
	}
	if err := r.writeParticipants(id, list); err != nil {
		return 0, err
	}
	if err := r.touch(id); err != nil {
		return 0, err
	}
	return s.ParticipantCount, nil
}
