package services

import (
	"fmt"

	"roulette/internal/models"
)

// entryGuard is the error returned when a session is asked to enter a phase
// from anywhere but that phase's only legal predecessor.
var entryGuard = map[models.Phase]error{
	models.PhaseClosed:   ErrSessionNotOpen,
	models.PhaseRevealed: ErrSessionNotClosed,
}

// checkTransition validates the edge s.Phase -> to against the phase table.
func checkTransition(s *models.DrawSession, to models.Phase) error {
	if s.Phase.CanTransition(to) {
		return nil
	}
	if err, ok := entryGuard[to]; ok {
		return err
	}
	return fmt.Errorf("no transition into %s", to)
}

// advance moves s to the next phase. Guards must have passed already.
func advance(s *models.DrawSession, to models.Phase) {
	if !s.Phase.CanTransition(to) {
		panic(fmt.Sprintf("illegal transition %s -> %s", s.Phase, to))
	}
	s.Phase = to
}
