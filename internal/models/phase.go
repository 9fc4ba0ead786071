package models

import "fmt"

// Phase is the lifecycle state of a draw session.
type Phase uint8

const (
	// PhaseOpen accepts registrations.
	PhaseOpen Phase = iota
	// PhaseClosed has a frozen participant list and waits for the reveal.
	PhaseClosed
	// PhaseRevealed is terminal.
	PhaseRevealed
)

var phaseNames = map[Phase]string{
	PhaseOpen:     "open",
	PhaseClosed:   "closed",
	PhaseRevealed: "revealed",
}

// next holds the only legal edge out of each phase.
var next = map[Phase]Phase{
	PhaseOpen:   PhaseClosed,
	PhaseClosed: PhaseRevealed,
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// CanTransition reports whether moving from p to to is a legal edge.
func (p Phase) CanTransition(to Phase) bool {
	n, ok := next[p]
	return ok && n == to
}

// Terminal reports whether no edge leaves p.
func (p Phase) Terminal() bool {
	_, ok := next[p]
	return !ok
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	name, ok := phaseNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown phase %d", uint8(p))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	for ph, name := range phaseNames {
		if name == string(text) {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}
