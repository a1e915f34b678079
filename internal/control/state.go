package control

import (
	"fmt"

	"github.com/vmunix/podknob/internal/hardware"
)

// PlayerState is what the daemon should be doing right now, derived from the
// hardware. Paused carries no slot: a knob turn while paused changes nothing
// until the mode switch leaves Paused.
type PlayerState struct {
	Mode hardware.Mode
	Slot int
}

// Paused is the idle state and the state the controller starts in.
var Paused = PlayerState{Mode: hardware.ModePaused}

func (s PlayerState) String() string {
	if s.Mode == hardware.ModePaused {
		return "paused"
	}
	return fmt.Sprintf("%s slot %d", s.Mode, s.Slot)
}

// Desired maps a hardware reading to a player state. The knob is dropped in
// paused mode, which is what makes knob-while-paused latent: the reading
// changes but the desired state does not.
func Desired(r hardware.Reading) PlayerState {
	if r.Mode == hardware.ModePaused {
		return Paused
	}
	return PlayerState{Mode: r.Mode, Slot: r.Knob}
}

// Transition computes the next state and the required side effects for a
// hardware reading. It is pure; the controller executes the effects.
//
// stop means the currently open session must be closed first; start means a
// session for next must then be opened. Because next is derived from the full
// reading, a mode change and a knob change landing in the same tick produce
// exactly one transition, to the new mode at the new knob position.
func Transition(old PlayerState, r hardware.Reading) (next PlayerState, stop, start bool) {
	next = Desired(r)
	if next == old {
		return old, false, false
	}
	return next, old.Mode != hardware.ModePaused, next.Mode != hardware.ModePaused
}
