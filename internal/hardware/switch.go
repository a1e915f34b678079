// Package hardware defines the contract for the physical controls: a
// three-position mode switch and a twelve-position selector knob. Electrical
// reading and debouncing happen in the collaborator behind SwitchReader; the
// readings handed to the core are already stable.
package hardware

import "fmt"

// Mode is the position of the three-way mode switch.
type Mode int

const (
	ModePaused Mode = iota
	ModePodcast
	ModeMusic
)

func (m Mode) String() string {
	switch m {
	case ModePaused:
		return "paused"
	case ModePodcast:
		return "podcast"
	case ModeMusic:
		return "music"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// KnobPositions is the number of detents on the selector knob.
const KnobPositions = 12

// Reading is one debounced snapshot of both controls.
type Reading struct {
	Mode Mode
	Knob int // 1..KnobPositions
}

func (r Reading) String() string {
	return fmt.Sprintf("%s/%d", r.Mode, r.Knob)
}

// SwitchReader reports the current switch and knob positions. Implementations
// enforce their own stability threshold and minimum inter-change interval;
// callers may poll as often as they like.
type SwitchReader interface {
	Read() (Reading, error)
}
