package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vmunix/podknob/internal/config"
	"github.com/vmunix/podknob/internal/events"
	"github.com/vmunix/podknob/internal/feed"
	"github.com/vmunix/podknob/internal/state"
)

// FeedSource fetches podcast feeds and episode audio. Satisfied by
// feed.Fetcher; tests substitute a fake.
type FeedSource interface {
	Fetch(ctx context.Context, rssURL string, count int) ([]feed.Item, error)
	Download(ctx context.Context, it feed.Item, dir string) (string, error)
}

// SessionSync coordinates an episode-list swap with the playback side, so a
// session open on the refreshed slot keeps pointing at the episode it is
// playing. Implemented by control.Controller.
type SessionSync interface {
	// SwapPodcastEpisodes applies the list update under the playback lock.
	// It returns the filename of an episode that is still playing but no
	// longer in the list; the refresh must not delete that file.
	SwapPodcastEpisodes(slot int, apply func(*state.PodcastSlot)) string
}

// Podcasts keeps each podcast slot's episode list in sync with its feed.
// Refreshing never touches playback: downloads happen outside the state
// lock, and the episode list is swapped in one update through the session
// sync.
type Podcasts struct {
	source      FeedSource
	store       *state.Store
	bus         *events.Bus // may be nil
	sync        SessionSync // may be nil
	episodesDir string
	maxEpisodes int
	logger      *slog.Logger
}

// NewPodcasts creates a podcast library over the given feed source.
func NewPodcasts(source FeedSource, store *state.Store, bus *events.Bus, episodesDir string, maxEpisodes int, logger *slog.Logger) *Podcasts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Podcasts{
		source:      source,
		store:       store,
		bus:         bus,
		episodesDir: episodesDir,
		maxEpisodes: maxEpisodes,
		logger:      logger,
	}
}

// SetSessionSync wires in the playback side. Must be set before the first
// refresh cycle; left nil, list swaps apply directly to the store.
func (p *Podcasts) SetSessionSync(s SessionSync) {
	p.sync = s
}

// SlotDir returns the download directory for a podcast slot.
func (p *Podcasts) SlotDir(slot int) string {
	return filepath.Join(p.episodesDir, fmt.Sprintf("podcast_%d", slot))
}

// EpisodePath returns the full path of a downloaded episode file.
func (p *Podcasts) EpisodePath(slot int, filename string) string {
	return filepath.Join(p.SlotDir(slot), filename)
}

// RefreshSlot fetches the feed for one slot and rebuilds its episode list:
// the newest maxEpisodes items, with listening progress carried over for
// episodes that survive the refresh. Episodes that fell off the list have
// their files removed. A failed download drops that one episode and keeps
// the rest.
func (p *Podcasts) RefreshSlot(ctx context.Context, slot int, fc config.FeedConfig) error {
	items, err := p.source.Fetch(ctx, fc.RSSURL, p.maxEpisodes)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", fc.Name, err)
	}

	// Snapshot what we already have so downloads can run outside the lock.
	existing := make(map[string]state.Episode)
	currentGUID := ""
	p.store.Podcast(slot, func(s *state.PodcastSlot) {
		for _, ep := range s.Episodes {
			existing[ep.GUID] = *ep
		}
		if s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Episodes) {
			currentGUID = s.Episodes[s.CurrentIndex].GUID
		}
	})

	dir := p.SlotDir(slot)
	fresh := make([]*state.Episode, 0, len(items))
	newCount := 0
	for _, it := range items {
		if prev, ok := existing[it.GUID]; ok {
			ep := prev
			ep.Title = it.Title
			fresh = append(fresh, &ep)
			continue
		}

		filename, err := p.source.Download(ctx, it, dir)
		if err != nil {
			p.logger.Error("episode download failed, skipping",
				"feed", fc.Name, "title", it.Title, "error", err)
			continue
		}
		newCount++
		fresh = append(fresh, &state.Episode{Title: it.Title, GUID: it.GUID, File: filename})
		p.publish(&events.EpisodeDownloaded{
			BaseEvent: events.NewBaseEvent(events.EventEpisodeDownloaded, events.EntityFeed, int64(slot)),
			Feed:      fc.Name,
			Title:     it.Title,
			File:      filename,
		})
	}

	swap := func(s *state.PodcastSlot) {
		s.Episodes = fresh
		s.CurrentIndex = 0
		for i, ep := range fresh {
			if ep.GUID == currentGUID {
				s.CurrentIndex = i
				break
			}
		}
		s.Completed = s.AllCompleted()
	}
	playingFile := ""
	if p.sync != nil {
		playingFile = p.sync.SwapPodcastEpisodes(slot, swap)
	} else {
		p.store.Podcast(slot, swap)
	}

	keep := make(map[string]bool, len(fresh)+1)
	for _, ep := range fresh {
		keep[ep.File] = true
	}
	if playingFile != "" {
		keep[playingFile] = true
	}
	p.cleanup(slot, keep)

	p.publish(&events.FeedRefreshed{
		BaseEvent:   events.NewBaseEvent(events.EventFeedRefreshed, events.EntityFeed, int64(slot)),
		Feed:        fc.Name,
		Episodes:    len(fresh),
		NewEpisodes: newCount,
	})
	return nil
}

// RefreshAll refreshes every configured feed in slot order. Per-feed
// failures are logged and skipped so one dead feed cannot starve the rest.
func (p *Podcasts) RefreshAll(ctx context.Context, feeds []config.FeedConfig) {
	for i, fc := range feeds {
		if ctx.Err() != nil {
			return
		}
		if err := p.RefreshSlot(ctx, i+1, fc); err != nil {
			p.logger.Error("feed refresh failed", "feed", fc.Name, "error", err)
		}
	}
	p.store.SetLastCheck(time.Now())
	if err := p.store.Save(false); err != nil {
		p.logger.Error("state save after refresh failed", "error", err)
	}
}

// cleanup removes episode files in the slot directory that are no longer in
// the episode list.
func (p *Podcasts) cleanup(slot int, keep map[string]bool) {
	dir := p.SlotDir(slot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			p.logger.Warn("could not remove stale episode file",
				"file", e.Name(), "error", err)
			continue
		}
		p.logger.Info("removed stale episode file", "slot", slot, "file", e.Name())
	}
}

func (p *Podcasts) publish(e events.Event) {
	if p.bus == nil {
		return
	}
	_ = p.bus.Publish(context.Background(), e)
}
