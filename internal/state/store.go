package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// writeWindow is the minimum interval between physical state writes. Save
// requests inside the window collapse into the next write unless forced.
const writeWindow = time.Second

// Store owns the single in-memory state document and its file on disk.
// Every reader and writer goes through the store mutex, so a slot reset on
// the poll loop and a position sample from the tracker can never interleave.
type Store struct {
	mu        sync.Mutex
	path      string
	doc       *Document
	logger    *slog.Logger
	lastWrite time.Time
	dirty     bool
	now       func() time.Time
}

// Open loads the state file at path, starting fresh if it is missing or
// unreadable. The player must come up even with a mangled state file; losing
// progress beats not booting.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := Load(path)
	if err != nil {
		logger.Error("state file unreadable, starting fresh", "path", path, "error", err)
		doc = NewDocument()
	}

	return &Store{
		path:   path,
		doc:    doc,
		logger: logger,
		now:    time.Now,
	}
}

// Podcast runs fn with the slot's podcast state, creating the entry on first
// use. fn executes under the store lock; it must not call back into the store.
func (s *Store) Podcast(slot int, fn func(*PodcastSlot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.doc.Podcasts[slot]
	if !ok {
		p = &PodcastSlot{}
		s.doc.Podcasts[slot] = p
	}
	fn(p)
	s.dirty = true
}

// Album runs fn with the slot's album state, creating the entry on first use.
func (s *Store) Album(slot int, fn func(*AlbumSlot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.doc.Music[slot]
	if !ok {
		a = &AlbumSlot{}
		s.doc.Music[slot] = a
	}
	fn(a)
	s.dirty = true
}

// SetLastCheck records the time of the last completed feed refresh.
func (s *Store) SetLastCheck(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastCheck = t.Unix()
	s.dirty = true
}

// LastCheck returns the time of the last completed feed refresh.
func (s *Store) LastCheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Unix(s.doc.LastCheck, 0)
}

// Save writes the document to disk. Unforced saves are throttled to one
// physical write per second; skipped saves leave the store dirty and are
// picked up by the next save request. Forced saves (shutdown, completion and
// reset transitions) always hit the disk.
func (s *Store) Save(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty && !force {
		return nil
	}
	if !force && s.now().Sub(s.lastWrite) < writeWindow {
		return nil
	}
	return s.writeLocked()
}

// Flush forces a final write. Called on every shutdown path.
func (s *Store) Flush() error {
	return s.Save(true)
}

func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.logger.Error("state save failed, keeping in-memory state", "path", s.path, "error", err)
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	// Write-then-rename keeps the previous file intact if we crash mid-write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.logger.Error("state save failed, keeping in-memory state", "path", s.path, "error", err)
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		s.logger.Error("state save failed, keeping in-memory state", "path", s.path, "error", err)
		return fmt.Errorf("rename state: %w", err)
	}

	s.lastWrite = s.now()
	s.dirty = false
	return nil
}

// Snapshot returns a deep copy of the current document, for status reporting.
func (s *Store) Snapshot() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Round-trip through JSON; the document is small and this cannot drift
	// from the field set.
	data, err := json.Marshal(s.doc)
	if err != nil {
		s.logger.Error("snapshot marshal failed", "error", err)
		return NewDocument()
	}
	var copy Document
	if err := json.Unmarshal(data, &copy); err != nil {
		s.logger.Error("snapshot unmarshal failed", "error", err)
		return NewDocument()
	}
	if copy.Podcasts == nil {
		copy.Podcasts = make(map[int]*PodcastSlot)
	}
	if copy.Music == nil {
		copy.Music = make(map[int]*AlbumSlot)
	}
	return &copy
}
