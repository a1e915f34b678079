// Package state owns the persisted player state: per-slot episode and album
// progress, stored as a single versioned JSON document.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CurrentVersion is the version written to new state documents.
const CurrentVersion = 1

// Document is the root of the persisted state. All mutation goes through a
// Store; the document itself is plain data.
type Document struct {
	Version   int                  `json:"version"`
	Podcasts  map[int]*PodcastSlot `json:"podcasts"`
	Music     map[int]*AlbumSlot   `json:"music"`
	LastCheck int64                `json:"last_check"` // unix seconds of the last feed refresh
}

// Episode is one downloaded podcast episode within a slot.
type Episode struct {
	Title      string    `json:"title"`
	GUID       string    `json:"guid"`
	File       string    `json:"file"`
	Position   float64   `json:"position"` // seconds
	Duration   float64   `json:"duration,omitempty"`
	LastPlayed time.Time `json:"last_played,omitzero"`
	Completed  bool      `json:"completed,omitempty"`
}

// PodcastSlot is the persisted state of one podcast knob position.
type PodcastSlot struct {
	Episodes     []*Episode `json:"episodes"`
	CurrentIndex int        `json:"current_index"`
	Completed    bool       `json:"completed,omitempty"`
	TotalTime    int64      `json:"total_time"` // cumulative listening units
}

// AlbumSlot is the persisted state of one music knob position.
type AlbumSlot struct {
	Folder       string   `json:"folder"`
	Tracks       []string `json:"tracks"`
	CurrentTrack int      `json:"current_track"`
	Position     float64  `json:"position"` // seconds into the current track
	Completed    bool     `json:"completed"`
	TotalTime    int64    `json:"total_time"`
}

// NewDocument returns an empty state document at the current version.
func NewDocument() *Document {
	return &Document{
		Version:  CurrentVersion,
		Podcasts: make(map[int]*PodcastSlot),
		Music:    make(map[int]*AlbumSlot),
	}
}

// Load reads a state document from disk. A missing file is not an error; the
// caller gets a fresh document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("state version %d is newer than supported version %d", doc.Version, CurrentVersion)
	}
	if doc.Podcasts == nil {
		doc.Podcasts = make(map[int]*PodcastSlot)
	}
	if doc.Music == nil {
		doc.Music = make(map[int]*AlbumSlot)
	}
	doc.Version = CurrentVersion
	return &doc, nil
}

// AllCompleted reports whether every episode in the slot is completed.
// A slot with no episodes is not considered completed.
func (p *PodcastSlot) AllCompleted() bool {
	if len(p.Episodes) == 0 {
		return false
	}
	for _, ep := range p.Episodes {
		if !ep.Completed {
			return false
		}
	}
	return true
}

// Reset rewinds the slot to the first episode with all progress cleared.
// The episode list itself is kept; podcast slots are never re-scanned.
func (p *PodcastSlot) Reset() {
	p.CurrentIndex = 0
	p.Completed = false
	for _, ep := range p.Episodes {
		ep.Position = 0
		ep.Completed = false
	}
}

// Reset rewinds the slot to track zero with progress cleared. The track list
// is cleared too: a reset album slot is re-scanned on next selection.
func (a *AlbumSlot) Reset() {
	a.Tracks = nil
	a.CurrentTrack = 0
	a.Position = 0
	a.Completed = false
}
