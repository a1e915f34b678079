// Package audio wraps the playback collaborator. The core never touches
// decoding or transport directly; it drives a Backend and polls it for
// position and end-of-file.
package audio

import "errors"

//go:generate mockgen -source=audio.go -destination=mocks/backend.go -package=mocks

// Backend is the audio playback contract. A backend plays one file at a
// time; Play replaces whatever was loaded before. End of playback is polled
// via HasEnded, never pushed, so nothing re-enters the core from a foreign
// goroutine.
type Backend interface {
	// Play starts playback of path at offsetSeconds from the beginning.
	Play(path string, offsetSeconds float64) error
	Pause() error
	Resume() error
	// Stop tears down the current playback entirely.
	Stop() error
	// Position returns the current playback offset in seconds.
	Position() (float64, error)
	// Duration returns the total length of the loaded file in seconds.
	// It may be unknown (zero) early in playback.
	Duration() (float64, error)
	// HasEnded reports whether the loaded file has played to the end.
	HasEnded() (bool, error)
}

// ErrNoPlayback is returned by query methods when nothing is loaded.
var ErrNoPlayback = errors.New("no active playback")
