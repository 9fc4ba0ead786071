package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/internal/auth"
	"roulette/internal/commitment"
	"roulette/internal/events"
	"roulette/internal/gamehub"
	"roulette/internal/hashing"
	"roulette/internal/models"
	"roulette/internal/storage"
)

const (
	organizer = models.Identity("streamer")
	hubAddr   = "http://hub.test"
)

type fakeHub struct {
	mu       sync.Mutex
	starts   []gamehub.StartGame
	ends     []gamehub.EndGame
	startErr error
	endErr   error
}

func (h *fakeHub) StartGame(ctx context.Context, req gamehub.StartGame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startErr != nil {
		return h.startErr
	}
	h.starts = append(h.starts, req)
	return nil
}

func (h *fakeHub) EndGame(ctx context.Context, req gamehub.EndGame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.endErr != nil {
		return h.endErr
	}
	h.ends = append(h.ends, req)
	return nil
}

type fixture struct {
	svc    *DrawService
	hub    *fakeHub
	events *events.Recorder
	store  storage.Store
}

func newFixture(t *testing.T, store storage.Store, max uint32) *fixture {
	f := &fixture{hub: &fakeHub{}, events: &events.Recorder{}, store: store}
	f.svc = NewDrawService(Config{
		Store:           store,
		Events:          f.events,
		Dial:            func(string) (gamehub.Client, error) { return f.hub, nil },
		MaxParticipants: max,
	})
	require.NoError(t, f.svc.Initialize(context.Background(), hubAddr))
	return f
}

func as(id models.Identity) context.Context {
	return auth.WithCaller(context.Background(), id)
}

func saltOf(b byte) (s models.Salt) {
	for i := range s {
		s[i] = b
	}
	return
}

func (f *fixture) commit(t *testing.T, id uint32, secret uint64, salt models.Salt) {
	c := commitment.Compute(hashing.SHA256{}, secret, salt)
	require.NoError(t, f.svc.CommitDraw(as(organizer), organizer, id, c))
}

func (f *fixture) register(t *testing.T, id uint32, people ...models.Identity) {
	for _, p := range people {
		_, err := f.svc.RegisterParticipant(as(p), id, p)
		require.NoError(t, err)
	}
}

func TestScenarioFullDraw(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	ctx := as(organizer)
	salt := saltOf(0x1a)

	f.commit(t, 42, 13, salt)
	f.register(t, 42, "p1", "p2", "p3")

	n, err := f.svc.ParticipantCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), n)

	n, err = f.svc.CloseRegistrations(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), n)

	res, err := f.svc.RevealWinner(ctx, 42, 13, salt)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.WinnerIndex)
	assert.Equal(t, models.Identity("p2"), res.Winner)
	assert.Equal(t, uint64(13), res.Secret)
	assert.Equal(t, uint32(3), res.ParticipantCount)

	sess, err := f.svc.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRevealed, sess.Phase)
	assert.Equal(t, uint32(1), sess.WinnerIndex)

	t.Run("hub saw organizer against winner", func(t *testing.T) {
		require.Len(t, f.hub.starts, 1)
		assert.Equal(t, gamehub.StartGame{
			GameID:         DefaultGameID,
			SessionID:      42,
			PlayerOne:      organizer,
			PlayerTwo:      "p2",
			PlayerOneScore: 3,
			PlayerTwoScore: 1,
		}, f.hub.starts[0])
		assert.Equal(t, []gamehub.EndGame{{SessionID: 42, PlayerTwoWon: true}}, f.hub.ends)
	})

	t.Run("one event per transition", func(t *testing.T) {
		assert.Equal(t, []events.Topic{
			events.TopicCommitted,
			events.TopicRegistered, events.TopicRegistered, events.TopicRegistered,
			events.TopicClosed,
			events.TopicWinner,
		}, f.events.Topics())

		evs := f.events.Events()
		last := evs[len(evs)-1]
		assert.Equal(t, uint32(42), last.SessionID)
		assert.Equal(t, events.Winner{WinnerIndex: 1, Winner: "p2", Secret: 13, Count: 3}, last.Payload)
	})

	t.Run("revealed is terminal", func(t *testing.T) {
		_, err := f.svc.RevealWinner(ctx, 42, 13, salt)
		assert.Equal(t, ErrSessionNotClosed, err)
		_, err = f.svc.CloseRegistrations(ctx, 42)
		assert.Equal(t, ErrSessionNotOpen, err)
		_, err = f.svc.RegisterParticipant(as("p4"), 42, "p4")
		assert.Equal(t, ErrRegistrationClosed, err)
	})

	t.Run("audit reproduces the draw", func(t *testing.T) {
		rec, err := f.svc.Audit(ctx, 42, 13, salt)
		require.NoError(t, err)
		assert.True(t, rec.Verified)
		assert.Equal(t, res.WinnerIndex, rec.WinnerIndex)
		assert.Equal(t, res.Winner, rec.Winner)
	})
}

func TestScenarioWrongSecret(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	ctx := as(organizer)

	f.commit(t, 99, 5, saltOf(0xab))
	f.register(t, 99, "p1", "p2")
	_, err := f.svc.CloseRegistrations(ctx, 99)
	require.NoError(t, err)

	_, err = f.svc.RevealWinner(ctx, 99, 999, saltOf(0xab))
	assert.Equal(t, ErrCommitmentMismatch, err)

	sess, err := f.svc.GetSession(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseClosed, sess.Phase)
	assert.Equal(t, uint32(0), sess.WinnerIndex)
	assert.Empty(t, f.hub.starts)
	assert.NotContains(t, f.events.Topics(), events.TopicWinner)
}

func TestScenarioDoubleCommit(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	ctx := as(organizer)

	first := commitment.Compute(hashing.SHA256{}, 1, saltOf(0))
	require.NoError(t, f.svc.CommitDraw(ctx, organizer, 1, first))
	f.register(t, 1, "p1")

	other := commitment.Compute(hashing.SHA256{}, 2, saltOf(0))
	err := f.svc.CommitDraw(as("mallory"), "mallory", 1, other)
	assert.Equal(t, ErrSessionAlreadyExists, err)

	sess, err := f.svc.GetSession(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, organizer, sess.Organizer)
	assert.Equal(t, first, sess.Commitment)
	assert.Equal(t, uint32(1), sess.ParticipantCount)
}

func TestScenarioTooFewToClose(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	ctx := as(organizer)

	f.commit(t, 7, 1, saltOf(0))
	f.register(t, 7, "p1")

	_, err := f.svc.CloseRegistrations(ctx, 7)
	assert.Equal(t, ErrInsufficientParticipants, err)

	sess, err := f.svc.GetSession(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseOpen, sess.Phase)

	//still open, so registration goes on
	f.register(t, 7, "p2")
	_, err = f.svc.CloseRegistrations(ctx, 7)
	assert.NoError(t, err)
}

func TestRegistration(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 3)
	f.commit(t, 5, 77, saltOf(1))

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.svc.RegisterParticipant(as("p1"), 404, "p1")
		assert.Equal(t, ErrSessionNotFound, err)
	})

	t.Run("participant must sign", func(t *testing.T) {
		_, err := f.svc.RegisterParticipant(as("p2"), 5, "p1")
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})

	t.Run("duplicates are refused", func(t *testing.T) {
		f.register(t, 5, "p1")
		_, err := f.svc.RegisterParticipant(as("p1"), 5, "p1")
		assert.Equal(t, ErrDuplicateParticipant, err)

		list, err := f.svc.GetParticipants(as("p1"), 5)
		require.NoError(t, err)
		assert.Equal(t, []models.Identity{"p1"}, list)
	})

	t.Run("ceiling", func(t *testing.T) {
		f.register(t, 5, "p2", "p3")
		_, err := f.svc.RegisterParticipant(as("p4"), 5, "p4")
		assert.Equal(t, ErrMaxParticipantsReached, err)

		n, err := f.svc.ParticipantCount(as("p4"), 5)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), n)
	})

	t.Run("order is registration order", func(t *testing.T) {
		list, err := f.svc.GetParticipants(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, []models.Identity{"p1", "p2", "p3"}, list)
	})
}

func TestCommitRequiresOrganizer(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)

	err := f.svc.CommitDraw(as("someone"), organizer, 1, models.Digest{})
	assert.True(t, errors.Is(err, auth.ErrUnauthorized))

	_, err = f.svc.GetSession(context.Background(), 1)
	assert.Equal(t, ErrSessionNotFound, err)
}

func TestOrganizerGuards(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	salt := saltOf(3)
	f.commit(t, 8, 10, salt)
	f.register(t, 8, "p1", "p2")

	_, err := f.svc.CloseRegistrations(as("p1"), 8)
	assert.Equal(t, ErrNotOrganizer, err)

	_, err = f.svc.RevealWinner(as(organizer), 8, 10, salt)
	assert.Equal(t, ErrSessionNotClosed, err, "cannot skip Closed")

	_, err = f.svc.CloseRegistrations(as(organizer), 8)
	require.NoError(t, err)

	_, err = f.svc.RevealWinner(as("p1"), 8, 10, salt)
	assert.Equal(t, ErrNotOrganizer, err)

	_, err = f.svc.RevealWinner(as(organizer), 8, 0, salt)
	assert.Equal(t, ErrInvalidSecret, err)

	_, err = f.svc.RevealWinner(as(organizer), 8, 10, saltOf(4))
	assert.Equal(t, ErrCommitmentMismatch, err)

	_, err = f.svc.CloseRegistrations(as(organizer), 404)
	assert.Equal(t, ErrSessionNotFound, err)
	_, err = f.svc.RevealWinner(as(organizer), 404, 10, salt)
	assert.Equal(t, ErrSessionNotFound, err)

	res, err := f.svc.RevealWinner(as(organizer), 8, 10, salt)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.WinnerIndex)
}

func TestRevealRollsBackOnHubFailure(t *testing.T) {
	for _, c := range []struct {
		name  string
		setup func(h *fakeHub)
	}{
		{"start fails", func(h *fakeHub) { h.startErr = errors.New("hub down") }},
		{"end fails", func(h *fakeHub) { h.endErr = errors.New("hub down") }},
	} {
		t.Run(c.name, func(t *testing.T) {
			store, clean := storage.TempBadgerStore()
			defer clean()

			f := newFixture(t, store, 0)
			ctx := as(organizer)
			salt := saltOf(0x1a)
			f.commit(t, 3, 13, salt)
			f.register(t, 3, "p1", "p2", "p3")
			_, err := f.svc.CloseRegistrations(ctx, 3)
			require.NoError(t, err)

			before, err := f.svc.GetSession(ctx, 3)
			require.NoError(t, err)

			c.setup(f.hub)
			_, err = f.svc.RevealWinner(ctx, 3, 13, salt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "hub down")

			after, err := f.svc.GetSession(ctx, 3)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.NotContains(t, f.events.Topics(), events.TopicWinner)

			//the organizer can resubmit once the hub is back
			f.hub.startErr, f.hub.endErr = nil, nil
			res, err := f.svc.RevealWinner(ctx, 3, 13, salt)
			require.NoError(t, err)
			assert.Equal(t, models.Identity("p2"), res.Winner)
		})
	}
}

func TestInitialize(t *testing.T) {
	store := storage.NewMemStore()
	hub := &fakeHub{}
	svc := NewDrawService(Config{
		Store:  store,
		Events: &events.Recorder{},
		Dial:   func(string) (gamehub.Client, error) { return hub, nil },
	})
	ctx := as(organizer)
	salt := saltOf(9)

	c := commitment.Compute(svc.Hasher(), 11, salt)
	require.NoError(t, svc.CommitDraw(ctx, organizer, 1, c))
	for _, p := range []models.Identity{"p1", "p2"} {
		_, err := svc.RegisterParticipant(as(p), 1, p)
		require.NoError(t, err)
	}
	_, err := svc.CloseRegistrations(ctx, 1)
	require.NoError(t, err)

	_, err = svc.RevealWinner(ctx, 1, 11, salt)
	assert.Equal(t, ErrNotInitialized, err)

	require.NoError(t, svc.Initialize(ctx, hubAddr))
	assert.Equal(t, ErrAlreadyInitialized, svc.Initialize(ctx, "http://other.test"))

	_, err = svc.RevealWinner(ctx, 1, 11, salt)
	assert.NoError(t, err)
}

func TestInitializeRejectsBadAddress(t *testing.T) {
	svc := NewDrawService(Config{Store: storage.NewMemStore()})
	err := svc.Initialize(context.Background(), "not a url")
	assert.True(t, errors.Is(err, gamehub.ErrInvalidAddress), err)
	assert.NoError(t, svc.Initialize(context.Background(), hubAddr))
}

func TestConcurrentInitializeSucceedsOnce(t *testing.T) {
	for name, open := range map[string]func(t *testing.T) storage.Store{
		"memory": func(*testing.T) storage.Store { return storage.NewMemStore() },
		"badger": func(t *testing.T) storage.Store {
			s, clean := storage.TempBadgerStore()
			t.Cleanup(clean)
			return s
		},
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewDrawService(Config{
				Store: open(t),
				Dial:  func(string) (gamehub.Client, error) { return &fakeHub{}, nil },
			})

			const n = 8
			results := make(chan error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results <- svc.Initialize(context.Background(), fmt.Sprintf("http://hub%d.test", i))
				}(i)
			}
			wg.Wait()
			close(results)

			won := 0
			for err := range results {
				if err == nil {
					won++
					continue
				}
				assert.Equal(t, ErrAlreadyInitialized, err)
			}
			assert.Equal(t, 1, won)
		})
	}
}

func TestCommitRejectsZeroCommitment(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)

	err := f.svc.CommitDraw(as(organizer), organizer, 1, models.Digest{})
	assert.Equal(t, ErrInvalidCommitment, err)

	_, err = f.svc.GetSession(context.Background(), 1)
	assert.Equal(t, ErrSessionNotFound, err)
	assert.Empty(t, f.events.Topics())
}

func TestRevealRetryRepeatsIdenticalStart(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	ctx := as(organizer)
	salt := saltOf(0x1a)
	f.commit(t, 5, 13, salt)
	f.register(t, 5, "p1", "p2", "p3")
	_, err := f.svc.CloseRegistrations(ctx, 5)
	require.NoError(t, err)

	f.hub.endErr = errors.New("hub down")
	_, err = f.svc.RevealWinner(ctx, 5, 13, salt)
	require.Error(t, err)

	f.hub.endErr = nil
	_, err = f.svc.RevealWinner(ctx, 5, 13, salt)
	require.NoError(t, err)

	//the hub sees the same start twice and can drop the repeat by session
	require.Len(t, f.hub.starts, 2)
	assert.Equal(t, f.hub.starts[0], f.hub.starts[1])
	assert.Len(t, f.hub.ends, 1)
}

func TestSessionsAreIndependent(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)

	var wg sync.WaitGroup
	for i := uint32(1); i <= 16; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			ctx := as(organizer)
			salt := saltOf(byte(id))
			secret := uint64(id) * 7

			if !assert.NoError(t, f.svc.CommitDraw(ctx, organizer, id, commitment.Compute(hashing.SHA256{}, secret, salt))) {
				return
			}
			for j := 0; j < 4; j++ {
				p := models.Identity(fmt.Sprintf("s%d-p%d", id, j))
				_, err := f.svc.RegisterParticipant(as(p), id, p)
				assert.NoError(t, err)
			}
			_, err := f.svc.CloseRegistrations(ctx, id)
			assert.NoError(t, err)
			res, err := f.svc.RevealWinner(ctx, id, secret, salt)
			if assert.NoError(t, err) {
				assert.Equal(t, uint32(secret%4), res.WinnerIndex)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.hub.starts, 16)
	assert.Equal(t, 0, f.svc.gate.size())
}

func TestSameSessionRegistrationsSerialize(t *testing.T) {
	f := newFixture(t, storage.NewMemStore(), 0)
	f.commit(t, 1, 3, saltOf(1))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := models.Identity(fmt.Sprintf("p%d", i))
			_, err := f.svc.RegisterParticipant(as(p), 1, p)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := f.svc.GetParticipants(context.Background(), 1)
	require.NoError(t, err)
	n, err := f.svc.ParticipantCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 32)
	assert.Equal(t, uint32(32), n)
}

func TestResolveWinnerDefect(t *testing.T) {
	idx, w := resolveWinner([]models.Identity{"a", "b", "c"}, 13, 3)
	assert.Equal(t, uint32(1), idx)
	assert.Equal(t, models.Identity("b"), w)

	assert.Panics(t, func() { resolveWinner([]models.Identity{"a"}, 13, 3) })
	assert.Panics(t, func() { resolveWinner(nil, 13, 0) })
}

func TestCheckTransition(t *testing.T) {
	s := &models.DrawSession{Phase: models.PhaseOpen}
	assert.NoError(t, checkTransition(s, models.PhaseClosed))
	assert.Equal(t, ErrSessionNotClosed, checkTransition(s, models.PhaseRevealed))
	assert.Error(t, checkTransition(s, models.PhaseOpen))

	assert.Panics(t, func() { advance(s, models.PhaseRevealed) })
	advance(s, models.PhaseClosed)
	assert.Equal(t, models.PhaseClosed, s.Phase)
}
