package choreo

import (
	"errors"
	"fmt"
)

// Phase is a step of the intro. Phases are strictly ordered and each is
// entered at most once per run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseNameVisible
	PhaseRetracting
	PhaseLogoFormed
	PhaseScrambling
	PhaseLabelSettled
	PhaseHeaderTransition
	PhaseInteractive
)

var (
	// ErrUnknownPhase is returned for a phase name that does not exist.
	ErrUnknownPhase = errors.New("unknown phase")
	// ErrIllegalTransition is returned when a phase is entered out of order.
	ErrIllegalTransition = errors.New("illegal phase transition")
)

var phaseNames = [...]string{
	PhaseIdle:             "idle",
	PhaseNameVisible:      "name_visible",
	PhaseRetracting:       "retracting",
	PhaseLogoFormed:       "logo_formed",
	PhaseScrambling:       "scrambling",
	PhaseLabelSettled:     "label_settled",
	PhaseHeaderTransition: "header_transition",
	PhaseInteractive:      "interactive",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return PhaseIdle, fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// transitions is the only way through the intro. The terminal phase has no
// successor.
var transitions = map[Phase]Phase{
	PhaseIdle:             PhaseNameVisible,
	PhaseNameVisible:      PhaseRetracting,
	PhaseRetracting:       PhaseLogoFormed,
	PhaseLogoFormed:       PhaseScrambling,
	PhaseScrambling:       PhaseLabelSettled,
	PhaseLabelSettled:     PhaseHeaderTransition,
	PhaseHeaderTransition: PhaseInteractive,
}

// Next returns the phase that follows p.
func (p Phase) Next() (Phase, bool) {
	n, ok := transitions[p]
	return n, ok
}

// Terminal reports whether p ends the run.
func (p Phase) Terminal() bool {
	_, ok := transitions[p]
	return !ok
}

// introPhases and outroPhases are the phases the timeline must schedule, in
// order. label_settled is entered by the scramble completing, not by a timer.
var (
	introPhases = []Phase{PhaseNameVisible, PhaseRetracting, PhaseLogoFormed, PhaseScrambling}
	outroPhases = []Phase{PhaseHeaderTransition, PhaseInteractive}
)
