// Package control owns the mode state machine and the single playback
// session. The poll loop, the position tracker and shutdown all enter
// through the controller mutex, so there is exactly one writer of "what is
// playing" at any instant.
package control

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/podknob/internal/audio"
	"github.com/vmunix/podknob/internal/events"
	"github.com/vmunix/podknob/internal/hardware"
	"github.com/vmunix/podknob/internal/library"
	"github.com/vmunix/podknob/internal/state"
)

const (
	// resumeRewind is the context rewind applied when resuming a
	// previously-played item.
	resumeRewind = 2.0

	// nearEndWindow is how close to a podcast episode's end a resume point
	// can be before the episode restarts from zero instead. Prevents
	// replaying a one-second tail forever.
	nearEndWindow = 10.0
)

// session is the one open playback handle. index is the session's position
// in the slot's item list; a feed refresh re-points it through
// SwapPodcastEpisodes, or sets it to -1 when the playing episode fell off
// the list entirely. guid and file are set for podcast sessions only.
type session struct {
	id     string
	domain string
	slot   int
	index  int
	item   string
	guid   string
	file   string
}

// Controller applies hardware readings to the audio backend and the state
// store.
type Controller struct {
	backend  audio.Backend
	store    *state.Store
	music    *library.Music
	podcasts *library.Podcasts
	bus      *events.Bus // may be nil
	audioExt string
	logger   *slog.Logger

	mu      sync.Mutex
	current PlayerState
	session *session
}

// NewController creates a controller in the paused state.
func NewController(backend audio.Backend, store *state.Store, music *library.Music, podcasts *library.Podcasts, bus *events.Bus, audioExt string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend:  backend,
		store:    store,
		music:    music,
		podcasts: podcasts,
		bus:      bus,
		audioExt: audioExt,
		logger:   logger,
		current:  Paused,
	}
}

// Apply feeds one hardware reading through the transition function and
// executes its effects. Called from the poll loop on every tick; readings
// that change nothing return immediately.
func (c *Controller) Apply(r hardware.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, stop, start := Transition(c.current, r)
	if next == c.current {
		return
	}

	c.logger.Info("mode transition", "from", c.current.String(), "to", next.String())
	if stop {
		c.closeSessionLocked()
	}
	c.current = next
	if start {
		c.openSessionLocked()
	}
}

// CheckEnded polls the backend's end-of-item flag and advances playback when
// the current item has finished. Called from the poll loop.
func (c *Controller) CheckEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}
	ended, err := c.backend.HasEnded()
	if err != nil {
		c.logger.Warn("end-of-item poll failed", "error", err)
		return
	}
	if ended {
		c.advanceLocked(false)
	}
}

// SamplePosition writes the backend's current offset into the active slot's
// state and bumps its listening time by one unit. The tracker calls this on
// its own schedule; no open session means no write.
func (c *Controller) SamplePosition() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return
	}

	pos, err := c.backend.Position()
	if err != nil {
		return
	}
	dur, _ := c.backend.Duration()

	switch s.domain {
	case events.DomainPodcast:
		c.store.Podcast(s.slot, func(ps *state.PodcastSlot) {
			if s.index < 0 || s.index >= len(ps.Episodes) {
				return
			}
			ep := ps.Episodes[s.index]
			ep.Position = pos
			if dur > 0 {
				ep.Duration = dur
			}
			ep.LastPlayed = time.Now()
			ps.TotalTime++
		})
	case events.DomainMusic:
		c.store.Album(s.slot, func(as *state.AlbumSlot) {
			as.Position = pos
			as.TotalTime++
		})
	}

	_ = c.store.Save(false)
}

// SwapPodcastEpisodes applies a refreshed episode list to the slot under the
// playback lock, so a refresh on its own goroutine cannot interleave with a
// position sample. When a session is open on the slot, its index is
// re-pointed at the episode it is actually playing; position writes keep
// landing on the right entry. Returns the filename of an episode that is
// still playing but fell off the new list, so the caller can spare it from
// cleanup until it finishes.
func (c *Controller) SwapPodcastEpisodes(slot int, apply func(*state.PodcastSlot)) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	active := s != nil && s.domain == events.DomainPodcast && s.slot == slot

	var orphanFile string
	c.store.Podcast(slot, func(ps *state.PodcastSlot) {
		apply(ps)
		if !active {
			return
		}
		s.index = -1
		for i, ep := range ps.Episodes {
			if ep.GUID == s.guid {
				s.index = i
				ps.CurrentIndex = i
				return
			}
		}
		// The playing episode was dropped by the refresh. It finishes out of
		// band: no entry takes its position samples, and its end advances to
		// the new list without marking anything completed.
		orphanFile = s.file
	})
	if orphanFile != "" {
		c.logger.Info("playing episode dropped by refresh, finishing out of band",
			"slot", slot, "item", s.item)
	}
	return orphanFile
}

// Stop closes any open session and forces a state write. Called on every
// shutdown path.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeSessionLocked()
	c.current = Paused
}

// closeSessionLocked records the final position, stops the backend and
// force-saves. A transition never opens the next session before this
// completes.
func (c *Controller) closeSessionLocked() {
	s := c.session
	if s == nil {
		_ = c.backend.Stop()
		return
	}

	pos, err := c.backend.Position()
	if err == nil {
		c.writePositionLocked(s, pos)
	}
	if err := c.backend.Stop(); err != nil {
		c.logger.Error("backend stop failed", "error", err)
	}
	c.session = nil

	c.publish(&events.SessionStopped{
		BaseEvent: events.NewBaseEvent(events.EventSessionStopped, events.EntitySlot, int64(s.slot)),
		SessionID: s.id,
		Domain:    s.domain,
		Position:  pos,
	})
	if err := c.store.Save(true); err != nil {
		c.logger.Error("state save on session close failed", "error", err)
	}
}

func (c *Controller) writePositionLocked(s *session, pos float64) {
	switch s.domain {
	case events.DomainPodcast:
		c.store.Podcast(s.slot, func(ps *state.PodcastSlot) {
			if s.index >= 0 && s.index < len(ps.Episodes) {
				ps.Episodes[s.index].Position = pos
				ps.Episodes[s.index].LastPlayed = time.Now()
			}
		})
	case events.DomainMusic:
		c.store.Album(s.slot, func(as *state.AlbumSlot) {
			as.Position = pos
		})
	}
}

func (c *Controller) openSessionLocked() {
	switch c.current.Mode {
	case hardware.ModePodcast:
		c.openPodcastLocked(c.current.Slot)
	case hardware.ModeMusic:
		c.openMusicLocked(c.current.Slot)
	}
}

// openPodcastLocked starts the slot's current episode, skipping unplayable
// ones. A completed slot is reset for another pass through the same episode
// list; the list itself only changes on feed refresh.
func (c *Controller) openPodcastLocked(slot int) {
	wasReset := false
	c.store.Podcast(slot, func(ps *state.PodcastSlot) {
		if len(ps.Episodes) > 0 && (ps.Completed || ps.AllCompleted()) {
			ps.Reset()
			wasReset = true
		}
	})
	if wasReset {
		c.logger.Info("podcast slot completed earlier, starting over", "slot", slot)
		c.publish(&events.SlotReset{
			BaseEvent: events.NewBaseEvent(events.EventSlotReset, events.EntitySlot, int64(slot)),
			Domain:    events.DomainPodcast,
		})
		_ = c.store.Save(true)
	}

	for {
		var (
			ep    state.Episode
			index int
			ok    bool
		)
		c.store.Podcast(slot, func(ps *state.PodcastSlot) {
			if len(ps.Episodes) == 0 || ps.Completed {
				return
			}
			if ps.CurrentIndex < 0 || ps.CurrentIndex >= len(ps.Episodes) {
				ps.CurrentIndex = 0
			}
			index = ps.CurrentIndex
			ep = *ps.Episodes[index]
			ok = true
		})
		if !ok {
			c.logger.Warn("podcast slot not playable", "slot", slot, "error", library.ErrNoEpisodes)
			return
		}

		offset := ep.Position
		if !ep.Completed && ep.Duration > 0 && ep.Duration-ep.Position <= nearEndWindow {
			offset = 0
		}
		offset -= resumeRewind
		if offset < 0 {
			offset = 0
		}

		path := c.podcasts.EpisodePath(slot, ep.File)
		if c.startLocked(events.DomainPodcast, slot, index, ep.Title, path, offset) {
			c.session.guid = ep.GUID
			c.session.file = ep.File
			return
		}

		// Unplayable episode: same bookkeeping as a finished one.
		c.logger.Warn("unplayable episode, skipping", "slot", slot, "title", ep.Title)
		c.publish(&events.ItemCompleted{
			BaseEvent: events.NewBaseEvent(events.EventItemCompleted, events.EntitySlot, int64(slot)),
			Domain:    events.DomainPodcast,
			Item:      ep.Title,
			Failed:    true,
		})
		if c.skipPodcastLocked(slot) {
			return
		}
	}
}

// openMusicLocked starts the slot's current track. The album assignment is
// re-read from config on every selection; the track list is scanned only on
// first selection, after a completed-slot reset, or when the slot now points
// at a different folder. A plain resume reuses the stored list verbatim.
func (c *Controller) openMusicLocked(slot int) {
	album, err := c.music.AlbumForSlot(slot)
	if err != nil {
		c.logger.Warn("music slot not playable", "slot", slot, "error", err)
		return
	}

	needScan := false
	wasReset := false
	c.store.Album(slot, func(as *state.AlbumSlot) {
		if as.Completed {
			as.Reset()
			wasReset = true
		}
		if as.Folder != album.Folder {
			as.Reset()
			as.Folder = album.Folder
		}
		needScan = len(as.Tracks) == 0
	})
	if wasReset {
		c.logger.Info("album completed earlier, starting over", "slot", slot, "album", album.Name)
		c.publish(&events.SlotReset{
			BaseEvent: events.NewBaseEvent(events.EventSlotReset, events.EntitySlot, int64(slot)),
			Domain:    events.DomainMusic,
		})
		_ = c.store.Save(true)
	}

	if needScan {
		tracks, err := c.music.ScanTracks(album.Path, c.audioExt)
		if err != nil {
			c.logger.Error("album scan failed", "slot", slot, "path", album.Path, "error", err)
			return
		}
		if len(tracks) == 0 {
			return
		}
		c.store.Album(slot, func(as *state.AlbumSlot) {
			as.Folder = album.Folder
			as.Tracks = tracks
		})
	}

	for {
		var (
			track string
			index int
			pos   float64
			ok    bool
		)
		c.store.Album(slot, func(as *state.AlbumSlot) {
			if len(as.Tracks) == 0 || as.Completed {
				return
			}
			if as.CurrentTrack < 0 || as.CurrentTrack >= len(as.Tracks) {
				as.CurrentTrack = 0
				as.Position = 0
			}
			index = as.CurrentTrack
			track = as.Tracks[index]
			pos = as.Position
			ok = true
		})
		if !ok {
			c.logger.Warn("music slot has nothing to play", "slot", slot)
			return
		}

		offset := pos - resumeRewind
		if offset < 0 {
			offset = 0
		}

		path := c.music.TrackPath(album.Path, track)
		if c.startLocked(events.DomainMusic, slot, index, track, path, offset) {
			return
		}

		c.logger.Warn("unplayable track, skipping", "slot", slot, "track", track)
		c.publish(&events.ItemCompleted{
			BaseEvent: events.NewBaseEvent(events.EventItemCompleted, events.EntitySlot, int64(slot)),
			Domain:    events.DomainMusic,
			Item:      track,
			Failed:    true,
		})
		if c.skipMusicLocked(slot) {
			return
		}
	}
}

// startLocked opens the backend session. Returns false when the item could
// not be played, leaving no session open.
func (c *Controller) startLocked(domain string, slot, index int, item, path string, offset float64) bool {
	if err := c.backend.Play(path, offset); err != nil {
		c.logger.Warn("playback start failed", "file", path, "error", err)
		return false
	}

	c.session = &session{
		id:     uuid.NewString(),
		domain: domain,
		slot:   slot,
		index:  index,
		item:   item,
	}
	c.logger.Info("session started",
		"domain", domain, "slot", slot, "item", item, "offset", offset)
	c.publish(&events.SessionStarted{
		BaseEvent: events.NewBaseEvent(events.EventSessionStarted, events.EntitySlot, int64(slot)),
		SessionID: c.session.id,
		Domain:    domain,
		Item:      item,
		File:      path,
		Offset:    offset,
	})
	return true
}

// advanceLocked finishes the current item and starts the next one, or marks
// the slot completed when nothing remains. failed distinguishes a corrupt
// item skip from a normal end-of-item.
func (c *Controller) advanceLocked(failed bool) {
	s := c.session
	if s == nil {
		return
	}

	if failed {
		c.logger.Warn("item unplayable, marked completed", "domain", s.domain, "item", s.item)
	} else {
		c.logger.Info("item finished", "domain", s.domain, "item", s.item)
	}
	c.publish(&events.ItemCompleted{
		BaseEvent: events.NewBaseEvent(events.EventItemCompleted, events.EntitySlot, int64(s.slot)),
		Domain:    s.domain,
		Item:      s.item,
		Failed:    failed,
	})

	c.session = nil
	_ = c.backend.Stop()

	var exhausted bool
	switch s.domain {
	case events.DomainPodcast:
		// An episode the refresh dropped mid-play has no list entry left to
		// mark; playback moves straight to the refreshed list's position.
		if s.index >= 0 {
			exhausted = c.skipPodcastLocked(s.slot)
		}
	case events.DomainMusic:
		exhausted = c.skipMusicLocked(s.slot)
	}
	if exhausted {
		return
	}

	c.openSessionLocked()
}

// skipPodcastLocked marks the slot's current episode completed and moves to
// the next. Returns true when the slot is exhausted, in which case the slot
// is marked completed and force-saved.
func (c *Controller) skipPodcastLocked(slot int) (exhausted bool) {
	c.store.Podcast(slot, func(ps *state.PodcastSlot) {
		if ps.CurrentIndex >= 0 && ps.CurrentIndex < len(ps.Episodes) {
			ep := ps.Episodes[ps.CurrentIndex]
			ep.Completed = true
			ep.Position = 0
		}
		if ps.CurrentIndex+1 < len(ps.Episodes) {
			ps.CurrentIndex++
		} else {
			ps.Completed = true
			exhausted = true
		}
	})
	if exhausted {
		c.finishSlotLocked(events.DomainPodcast, slot)
	} else {
		_ = c.store.Save(true)
	}
	return exhausted
}

// skipMusicLocked advances past the slot's current track. Returns true when
// the album is exhausted.
func (c *Controller) skipMusicLocked(slot int) (exhausted bool) {
	c.store.Album(slot, func(as *state.AlbumSlot) {
		as.Position = 0
		if as.CurrentTrack+1 < len(as.Tracks) {
			as.CurrentTrack++
		} else {
			as.Completed = true
			exhausted = true
		}
	})
	if exhausted {
		c.finishSlotLocked(events.DomainMusic, slot)
	} else {
		_ = c.store.Save(true)
	}
	return exhausted
}

func (c *Controller) finishSlotLocked(domain string, slot int) {
	c.logger.Info("slot completed", "domain", domain, "slot", slot)
	c.publish(&events.SlotCompleted{
		BaseEvent: events.NewBaseEvent(events.EventSlotCompleted, events.EntitySlot, int64(slot)),
		Domain:    domain,
	})
	if err := c.store.Save(true); err != nil {
		c.logger.Error("state save on slot completion failed", "error", err)
	}
}

func (c *Controller) publish(e events.Event) {
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(context.Background(), e)
}
