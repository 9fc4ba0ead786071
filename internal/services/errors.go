package services

import (
	"errors"

	"roulette/internal/commitment"
)

// Every error below aborts the operation that returned it with no state
// change.
var (
	ErrAlreadyInitialized       = errors.New("already initialized")
	ErrNotInitialized           = errors.New("not initialized")
	ErrSessionAlreadyExists     = errors.New("session already exists")
	ErrSessionNotFound          = errors.New("session not found")
	ErrRegistrationClosed       = errors.New("registration is closed")
	ErrMaxParticipantsReached   = errors.New("max participants reached")
	ErrDuplicateParticipant     = errors.New("already registered")
	ErrNotOrganizer             = errors.New("caller is not the organizer")
	ErrSessionNotOpen           = errors.New("session is not open")
	ErrInsufficientParticipants = errors.New("need at least 2 participants")
	ErrSessionNotClosed         = errors.New("must close registrations before reveal")
	ErrInvalidSecret            = errors.New("secret must be > 0")
	ErrInvalidCommitment        = errors.New("commitment must not be all zeros")
	ErrCommitmentMismatch       = commitment.ErrMismatch

	// ErrWinnerIndexOutOfBounds is never returned. It is the value of the
	// panic raised when a resolved index does not fit the frozen list.
	ErrWinnerIndexOutOfBounds = errors.New("winner index out of bounds")
)
