package library

import "errors"

var (
	// ErrSlotUnassigned indicates the knob position has no configured content.
	ErrSlotUnassigned = errors.New("no content assigned to slot")

	// ErrAlbumMissing indicates the configured album folder does not exist.
	ErrAlbumMissing = errors.New("album folder not found")

	// ErrNoEpisodes indicates a podcast slot has nothing downloaded yet.
	ErrNoEpisodes = errors.New("no episodes downloaded for slot")
)
