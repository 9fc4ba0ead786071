package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"roulette/internal/auth"
	"roulette/internal/commitment"
	"roulette/internal/events"
	"roulette/internal/gamehub"
	"roulette/internal/hashing"
	"roulette/internal/metrics"
	"roulette/internal/models"
	"roulette/internal/storage"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultMaxParticipants = 1024
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultGameID          = models.Identity("zk-roulette")
)

// Config wires a DrawService to its collaborators.
type Config struct {
	Store           storage.Store
	Auth            auth.Authorizer
	Hasher          hashing.Hasher
	Events          events.Sink
	Dial            gamehub.Dialer
	GameID          models.Identity
	MaxParticipants uint32
	Retention       time.Duration
}

// DrawService runs the commit-reveal draw protocol. Each exported operation
// is one storage transaction; events go out only after it commits.
type DrawService struct {
	store           storage.Store
	auth            auth.Authorizer
	hasher          hashing.Hasher
	sink            events.Sink
	dial            gamehub.Dialer
	gameID          models.Identity
	maxParticipants uint32
	retention       time.Duration
	gate            *sessionGate

	// initMu serializes Initialize, the only write outside any session.
	initMu sync.Mutex
}

// NewDrawService creates a DrawService, filling in defaults for anything
// cfg leaves unset except the store.
func NewDrawService(cfg Config) *DrawService {
	s := &DrawService{
		store:           cfg.Store,
		auth:            cfg.Auth,
		hasher:          cfg.Hasher,
		sink:            cfg.Events,
		dial:            cfg.Dial,
		gameID:          cfg.GameID,
		maxParticipants: cfg.MaxParticipants,
		retention:       cfg.Retention,
		gate:            newSessionGate(),
	}
	if s.auth == nil {
		s.auth = auth.ContextAuthorizer{}
	}
	if s.hasher == nil {
		s.hasher = hashing.SHA256{}
	}
	if s.sink == nil {
		s.sink = events.LogSink{}
	}
	if s.dial == nil {
		s.dial = gamehub.HTTPDialer(10 * time.Second)
	}
	if s.gameID == "" {
		s.gameID = DefaultGameID
	}
	if s.maxParticipants == 0 {
		s.maxParticipants = DefaultMaxParticipants
	}
	if s.retention == 0 {
		s.retention = DefaultRetention
	}
	return s
}

// Hasher returns the hash the service checks commitments with.
func (s *DrawService) Hasher() hashing.Hasher { return s.hasher }

func (s *DrawService) registry(tx storage.Tx) registry {
	return registry{tx: tx, maxParticipants: s.maxParticipants, retention: s.retention}
}

// Initialize records the address of the game hub. It succeeds only once.
func (s *DrawService) Initialize(ctx context.Context, serviceAddress string) (err error) {
	defer func() { metrics.RecordOperation("initialize", err) }()

	if _, err = s.dial(serviceAddress); err != nil {
		return errors.Wrap(err, "initialize")
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	err = s.store.Update(func(tx storage.Tx) error {
		exists, err := tx.Exists(hubAddressKey)
		if err != nil {
			return errors.Wrap(err, "failed to look up hub address")
		}
		if exists {
			return ErrAlreadyInitialized
		}
		return tx.Set(hubAddressKey, []byte(serviceAddress))
	})
	if err != nil {
		return err
	}

	logger.Infof("Initialized with game hub %s", serviceAddress)
	return nil
}

// CommitDraw opens session sessionID for organizer, binding it to
// commitment before anyone can register.
func (s *DrawService) CommitDraw(ctx context.Context, organizer models.Identity, sessionID uint32, c models.Digest) (err error) {
	defer func() { metrics.RecordOperation("commit", err) }()

	if err = s.auth.Require(ctx, organizer); err != nil {
		return errors.Wrap(err, "commit draw")
	}
	//no preimage hashes to zero, so such a session could never be revealed
	if c == (models.Digest{}) {
		return ErrInvalidCommitment
	}

	defer s.gate.lock(sessionID)()
	if err = s.store.Update(func(tx storage.Tx) error {
		return s.registry(tx).createSession(sessionID, organizer, c)
	}); err != nil {
		return err
	}

	logger.Infof("Session %d committed by %s", sessionID, organizer)
	metrics.RecordTransition(models.PhaseOpen.String())
	s.sink.Publish(events.New(events.TopicCommitted, sessionID, events.Committed{Commitment: c}))
	return nil
}

// RegisterParticipant adds participant to an Open session and returns the
// new participant count. The participant itself must be the caller.
func (s *DrawService) RegisterParticipant(ctx context.Context, sessionID uint32, participant models.Identity) (count uint32, err error) {
	defer func() { metrics.RecordOperation("register", err) }()

	if err = s.auth.Require(ctx, participant); err != nil {
		return 0, errors.Wrap(err, "register participant")
	}

	defer s.gate.lock(sessionID)()
	if err = s.store.Update(func(tx storage.Tx) (err error) {
		count, err = s.registry(tx).addParticipant(sessionID, participant)
		return err
	}); err != nil {
		return 0, err
	}

	s.sink.Publish(events.New(events.TopicRegistered, sessionID, events.Registered{Count: count}))
	return count, nil
}

// CloseRegistrations freezes the participant list of an Open session.
func (s *DrawService) CloseRegistrations(ctx context.Context, sessionID uint32) (count uint32, err error) {
	defer func() { metrics.RecordOperation("close", err) }()

	defer s.gate.lock(sessionID)()
	if err = s.store.Update(func(tx storage.Tx) error {
		reg := s.registry(tx)
		sess, err := reg.readSession(sessionID)
		if err != nil {
			return err
		}
		if s.auth.Require(ctx, sess.Organizer) != nil {
			return ErrNotOrganizer
		}
		if err := checkTransition(sess, models.PhaseClosed); err != nil {
			return err
		}
		if sess.ParticipantCount < 2 {
			return ErrInsufficientParticipants
		}

		advance(sess, models.PhaseClosed)
		count = sess.ParticipantCount
		return reg.writeSession(sessionID, sess)
	}); err != nil {
		return 0, err
	}

	logger.Infof("Session %d closed with %d participants", sessionID, count)
	metrics.RecordTransition(models.PhaseClosed.String())
	metrics.RecordClose(count)
	s.sink.Publish(events.New(events.TopicClosed, sessionID, events.Closed{Count: count}))
	return count, nil
}

// RevealWinner opens the commitment of a Closed session, derives the
// winner, reports it to the game hub and marks the session Revealed. A hub
// failure leaves the session exactly as it was.
func (s *DrawService) RevealWinner(ctx context.Context, sessionID uint32, secret uint64, salt models.Salt) (res models.RevealResult, err error) {
	defer func() { metrics.RecordOperation("reveal", err) }()

	defer s.gate.lock(sessionID)()
	if err = s.store.Update(func(tx storage.Tx) error {
		reg := s.registry(tx)
		sess, err := reg.readSession(sessionID)
		if err != nil {
			return err
		}
		if s.auth.Require(ctx, sess.Organizer) != nil {
			return ErrNotOrganizer
		}
		if err := checkTransition(sess, models.PhaseRevealed); err != nil {
			return err
		}
		if secret == 0 {
			return ErrInvalidSecret
		}
		if err := verifyCommitment(s.hasher, sess, secret, salt); err != nil {
			return err
		}

		participants, err := reg.readParticipants(sessionID)
		if err != nil {
			return err
		}
		idx, winner := resolveWinner(participants, secret, sess.ParticipantCount)

		addr, err := hubAddress(tx)
		if err != nil {
			return err
		}
		if err := s.reportOutcome(ctx, addr, sessionID, sess, idx, winner); err != nil {
			return err
		}

		advance(sess, models.PhaseRevealed)
		sess.WinnerIndex = idx
		res = models.RevealResult{
			SessionID:        sessionID,
			WinnerIndex:      idx,
			Winner:           winner,
			Secret:           secret,
			ParticipantCount: sess.ParticipantCount,
		}
		return reg.writeSession(sessionID, sess)
	}); err != nil {
		return models.RevealResult{}, err
	}

	logger.Infof("Session %d revealed: winner #%d %s", sessionID, res.WinnerIndex, res.Winner)
	metrics.RecordTransition(models.PhaseRevealed.String())
	s.sink.Publish(events.New(events.TopicWinner, sessionID, events.Winner{
		WinnerIndex: res.WinnerIndex,
		Winner:      res.Winner,
		Secret:      res.Secret,
		Count:       res.ParticipantCount,
	}))
	return res, nil
}

// GetSession returns the current state of a session.
func (s *DrawService) GetSession(ctx context.Context, sessionID uint32) (sess models.DrawSession, err error) {
	err = s.store.View(func(tx storage.Tx) error {
		got, err := s.registry(tx).readSession(sessionID)
		if err != nil {
			return err
		}
		sess = *got
		return nil
	})
	return
}

// GetParticipants returns the participant list in registration order.
func (s *DrawService) GetParticipants(ctx context.Context, sessionID uint32) (list []models.Identity, err error) {
	err = s.store.View(func(tx storage.Tx) (err error) {
		list, err = s.registry(tx).readParticipants(sessionID)
		return err
	})
	return
}

// ParticipantCount returns the number of registered participants.
func (s *DrawService) ParticipantCount(ctx context.Context, sessionID uint32) (uint32, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return sess.ParticipantCount, nil
}

// Audit recomputes a draw from a claimed secret and salt against the stored
// commitment and participant list. It never changes state.
func (s *DrawService) Audit(ctx context.Context, sessionID uint32, secret uint64, salt models.Salt) (rec models.AuditRecord, err error) {
	err = s.store.View(func(tx storage.Tx) error {
		reg := s.registry(tx)
		sess, err := reg.readSession(sessionID)
		if err != nil {
			return err
		}
		participants, err := reg.readParticipants(sessionID)
		if err != nil {
			return err
		}
		rec, err = commitment.Audit(s.hasher, sess.Commitment, secret, salt, participants)
		return err
	})
	return
}
