package control

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/podknob/internal/audio/mocks"
	"github.com/vmunix/podknob/internal/hardware"
	"github.com/vmunix/podknob/internal/library"
	"github.com/vmunix/podknob/internal/state"
)

type fixture struct {
	backend     *mocks.MockBackend
	store       *state.Store
	controller  *Controller
	episodesDir string
	musicDir    string
}

// newFixture builds a controller over a mocked backend, a fresh store, and a
// music config with the given album folders (slot i+1 -> albums[i], each
// folder created with the given track files).
func newFixture(t *testing.T, albums map[string][]string, slotOrder []string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	dir := t.TempDir()
	musicDir := filepath.Join(dir, "music")
	require.NoError(t, os.MkdirAll(musicDir, 0755))

	content := "[music]\ndir = \"" + musicDir + "\"\n"
	for _, folder := range slotOrder {
		content += "\n[[music.album]]\nname = \"" + folder + "\"\nfolder = \"" + folder + "\"\n"
		tracks, ok := albums[folder]
		if !ok {
			continue
		}
		albumPath := filepath.Join(musicDir, folder)
		require.NoError(t, os.MkdirAll(albumPath, 0755))
		for _, tr := range tracks {
			require.NoError(t, os.WriteFile(filepath.Join(albumPath, tr), []byte("x"), 0644))
		}
	}
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	store := state.Open(filepath.Join(dir, "state.json"), nil)
	music := library.NewMusic(cfgPath, nil)
	episodesDir := filepath.Join(dir, "episodes")
	podcasts := library.NewPodcasts(nil, store, nil, episodesDir, 2, nil)

	return &fixture{
		backend:     backend,
		store:       store,
		controller:  NewController(backend, store, music, podcasts, nil, ".mp3", nil),
		episodesDir: episodesDir,
		musicDir:    musicDir,
	}
}

func newPodcastFixture(t *testing.T) *fixture {
	return newFixture(t, map[string][]string{"placeholder": nil}, []string{"placeholder"})
}

func (f *fixture) seedEpisodes(slot int, eps ...*state.Episode) {
	f.store.Podcast(slot, func(s *state.PodcastSlot) {
		s.Episodes = eps
	})
}

func (f *fixture) episodePath(slot int, file string) string {
	return filepath.Join(f.episodesDir, fmt.Sprintf("podcast_%d", slot), file)
}

func podcastReading(knob int) hardware.Reading {
	return hardware.Reading{Mode: hardware.ModePodcast, Knob: knob}
}

func musicReading(knob int) hardware.Reading {
	return hardware.Reading{Mode: hardware.ModeMusic, Knob: knob}
}

func pausedReading() hardware.Reading {
	return hardware.Reading{Mode: hardware.ModePaused, Knob: 1}
}

func TestApply_PodcastResumeRewind(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(3, &state.Episode{Title: "Ep", GUID: "g", File: "ep.mp3", Position: 100, Duration: 300})

	f.backend.EXPECT().Play(f.episodePath(3, "ep.mp3"), 98.0).Return(nil)

	f.controller.Apply(podcastReading(3))
}

func TestApply_PodcastNearEndRestartsFromZero(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(3, &state.Episode{Title: "Ep", GUID: "g", File: "ep.mp3", Position: 295, Duration: 300})

	f.backend.EXPECT().Play(f.episodePath(3, "ep.mp3"), 0.0).Return(nil)

	f.controller.Apply(podcastReading(3))
}

func TestApply_KnobWhilePausedIsLatent(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(5, &state.Episode{Title: "Ep", GUID: "g", File: "ep.mp3"})

	// No backend expectations: turning the knob while paused does nothing.
	f.controller.Apply(hardware.Reading{Mode: hardware.ModePaused, Knob: 5})
	f.controller.Apply(hardware.Reading{Mode: hardware.ModePaused, Knob: 9})
}

func TestApply_KnobChangeStopsBeforeStarting(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(3, &state.Episode{Title: "A", GUID: "a", File: "a.mp3"})
	f.seedEpisodes(5, &state.Episode{Title: "B", GUID: "b", File: "b.mp3"})

	gomock.InOrder(
		f.backend.EXPECT().Play(f.episodePath(3, "a.mp3"), 0.0).Return(nil),
		f.backend.EXPECT().Position().Return(42.0, nil),
		f.backend.EXPECT().Stop().Return(nil),
		f.backend.EXPECT().Play(f.episodePath(5, "b.mp3"), 0.0).Return(nil),
	)

	f.controller.Apply(podcastReading(3))
	f.controller.Apply(podcastReading(5))

	// The old slot's position was written before the new session opened.
	snap := f.store.Snapshot()
	assert.InDelta(t, 42.0, snap.Podcasts[3].Episodes[0].Position, 0.001)
}

func TestApply_ModeAndKnobChangeTogether(t *testing.T) {
	f := newFixture(t,
		map[string][]string{"seven": {"01.mp3"}},
		[]string{"one", "two", "three", "four", "five", "six", "seven"})
	f.seedEpisodes(3, &state.Episode{Title: "A", GUID: "a", File: "a.mp3"})

	gomock.InOrder(
		f.backend.EXPECT().Play(f.episodePath(3, "a.mp3"), 0.0).Return(nil),
		f.backend.EXPECT().Position().Return(10.0, nil),
		f.backend.EXPECT().Stop().Return(nil),
		f.backend.EXPECT().Play(filepath.Join(f.musicDir, "seven", "01.mp3"), 0.0).Return(nil),
	)

	f.controller.Apply(podcastReading(3))
	// Mode and knob move in the same tick: one transition, to music slot 7.
	f.controller.Apply(musicReading(7))
}

func TestApply_EmptyPodcastSlotStaysInert(t *testing.T) {
	f := newPodcastFixture(t)

	// Slot 4 has nothing downloaded; no backend calls at all.
	f.controller.Apply(podcastReading(4))
	f.controller.Apply(podcastReading(4))
}

func TestCheckEnded_AdvancesToNextEpisode(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1,
		&state.Episode{Title: "A", GUID: "a", File: "a.mp3"},
		&state.Episode{Title: "B", GUID: "b", File: "b.mp3"},
	)

	f.backend.EXPECT().Play(f.episodePath(1, "a.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	gomock.InOrder(
		f.backend.EXPECT().HasEnded().Return(true, nil),
		f.backend.EXPECT().Stop().Return(nil),
		f.backend.EXPECT().Play(f.episodePath(1, "b.mp3"), 0.0).Return(nil),
	)
	f.controller.CheckEnded()

	snap := f.store.Snapshot()
	slot := snap.Podcasts[1]
	assert.True(t, slot.Episodes[0].Completed)
	assert.Equal(t, 1, slot.CurrentIndex)
	assert.False(t, slot.Completed)
}

func TestCheckEnded_LastEpisodeCompletesSlot(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1, &state.Episode{Title: "A", GUID: "a", File: "a.mp3"})

	f.backend.EXPECT().Play(f.episodePath(1, "a.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	f.backend.EXPECT().HasEnded().Return(true, nil)
	f.backend.EXPECT().Stop().Return(nil)
	f.controller.CheckEnded()

	snap := f.store.Snapshot()
	assert.True(t, snap.Podcasts[1].Completed)

	// Nothing is playing; further end polls are no-ops.
	f.controller.CheckEnded()
}

func TestApply_CompletedPodcastSlotRestartsSameList(t *testing.T) {
	f := newPodcastFixture(t)
	f.store.Podcast(2, func(s *state.PodcastSlot) {
		s.Episodes = []*state.Episode{
			{Title: "A", GUID: "a", File: "a.mp3", Position: 0, Completed: true},
			{Title: "B", GUID: "b", File: "b.mp3", Position: 0, Completed: true},
		}
		s.CurrentIndex = 1
		s.Completed = true
	})

	f.backend.EXPECT().Play(f.episodePath(2, "a.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(2))

	snap := f.store.Snapshot()
	slot := snap.Podcasts[2]
	assert.False(t, slot.Completed)
	assert.Equal(t, 0, slot.CurrentIndex)
	assert.False(t, slot.Episodes[0].Completed)
	assert.Len(t, slot.Episodes, 2, "episode list is reused, not re-fetched")
}

func TestApply_MusicResumeUsesStoredTracks(t *testing.T) {
	f := newFixture(t, map[string][]string{"album": {"01.mp3", "02.mp3"}}, []string{"album"})
	f.store.Album(1, func(s *state.AlbumSlot) {
		s.Folder = "album"
		s.Tracks = []string{"01.mp3", "02.mp3"}
		s.CurrentTrack = 1
		s.Position = 50
	})

	f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "02.mp3"), 48.0).Return(nil)

	f.controller.Apply(musicReading(1))
}

func TestApply_MusicFirstSelectionScansNaturally(t *testing.T) {
	f := newFixture(t, map[string][]string{"album": {"10-last.mp3", "2-second.mp3", "1-first.mp3"}}, []string{"album"})

	f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "1-first.mp3"), 0.0).Return(nil)
	f.controller.Apply(musicReading(1))

	snap := f.store.Snapshot()
	assert.Equal(t, []string{"1-first.mp3", "2-second.mp3", "10-last.mp3"}, snap.Music[1].Tracks)
}

func TestApply_CorruptTrackSkipsToNext(t *testing.T) {
	tracks := []string{"01.mp3", "02.mp3", "03.mp3", "04.mp3", "05.mp3"}
	f := newFixture(t, map[string][]string{"album": tracks}, []string{"album"})
	f.store.Album(1, func(s *state.AlbumSlot) {
		s.Folder = "album"
		s.Tracks = tracks
		s.CurrentTrack = 2
	})

	gomock.InOrder(
		f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "03.mp3"), 0.0).Return(errors.New("bad codec")),
		f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "04.mp3"), 0.0).Return(nil),
	)

	f.controller.Apply(musicReading(1))

	snap := f.store.Snapshot()
	assert.Equal(t, 3, snap.Music[1].CurrentTrack)
	assert.False(t, snap.Music[1].Completed)
}

func TestApply_AllTracksFailingCompletesSlotThenResets(t *testing.T) {
	tracks := []string{"01.mp3", "02.mp3"}
	f := newFixture(t, map[string][]string{"album": tracks}, []string{"album"})
	f.store.Album(1, func(s *state.AlbumSlot) {
		s.Folder = "album"
		s.Tracks = tracks
	})

	f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "01.mp3"), 0.0).Return(errors.New("bad"))
	f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "02.mp3"), 0.0).Return(errors.New("bad"))
	f.controller.Apply(musicReading(1))

	snap := f.store.Snapshot()
	assert.True(t, snap.Music[1].Completed, "exhausted album ends completed with no playback")

	// Re-selecting the completed slot resets to track 0 and re-scans.
	f.backend.EXPECT().Stop().Return(nil)
	f.controller.Apply(pausedReading())

	f.backend.EXPECT().Play(filepath.Join(f.musicDir, "album", "01.mp3"), 0.0).Return(nil)
	f.controller.Apply(musicReading(1))

	snap = f.store.Snapshot()
	assert.False(t, snap.Music[1].Completed)
	assert.Equal(t, 0, snap.Music[1].CurrentTrack)
}

func TestApply_UnconfiguredMusicSlotStaysInert(t *testing.T) {
	f := newFixture(t, map[string][]string{"album": {"01.mp3"}}, []string{"album"})

	// Slot 9 has no album assigned; logged and silent.
	f.controller.Apply(musicReading(9))
}

func TestSamplePosition(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1, &state.Episode{Title: "A", GUID: "a", File: "a.mp3"})

	f.backend.EXPECT().Play(f.episodePath(1, "a.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	f.backend.EXPECT().Position().Return(123.0, nil)
	f.backend.EXPECT().Duration().Return(300.0, nil)
	f.controller.SamplePosition()

	snap := f.store.Snapshot()
	ep := snap.Podcasts[1].Episodes[0]
	assert.InDelta(t, 123.0, ep.Position, 0.001)
	assert.InDelta(t, 300.0, ep.Duration, 0.001)
	assert.Equal(t, int64(1), snap.Podcasts[1].TotalTime, "one fixed unit per tick")
	assert.False(t, ep.LastPlayed.IsZero())
}

func TestSwapPodcastEpisodes_RepointsOpenSession(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1, &state.Episode{Title: "Old", GUID: "old", File: "old.mp3", Position: 100})

	f.backend.EXPECT().Play(f.episodePath(1, "old.mp3"), 98.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	// A feed refresh prepends a new episode while the old one is playing.
	// The swap's own index bookkeeping points at the head; the open session
	// must win.
	f.controller.SwapPodcastEpisodes(1, func(s *state.PodcastSlot) {
		s.Episodes = append([]*state.Episode{{Title: "New", GUID: "new", File: "new.mp3"}}, s.Episodes...)
		s.CurrentIndex = 0
	})

	f.backend.EXPECT().Position().Return(130.0, nil)
	f.backend.EXPECT().Duration().Return(300.0, nil)
	f.controller.SamplePosition()

	snap := f.store.Snapshot()
	slot := snap.Podcasts[1]
	assert.InDelta(t, 0.0, slot.Episodes[0].Position, 0.001, "never-played episode takes no samples")
	assert.InDelta(t, 130.0, slot.Episodes[1].Position, 0.001, "samples follow the playing episode")
	assert.Equal(t, 1, slot.CurrentIndex, "current index follows the open session")
}

func TestSwapPodcastEpisodes_DroppedEpisodeFinishesOutOfBand(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1, &state.Episode{Title: "Old", GUID: "old", File: "old.mp3"})

	f.backend.EXPECT().Play(f.episodePath(1, "old.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	playing := f.controller.SwapPodcastEpisodes(1, func(s *state.PodcastSlot) {
		s.Episodes = []*state.Episode{{Title: "New", GUID: "new", File: "new.mp3"}}
		s.CurrentIndex = 0
	})
	assert.Equal(t, "old.mp3", playing, "caller must spare the playing file from cleanup")

	// Samples have no entry left to land on.
	f.backend.EXPECT().Position().Return(55.0, nil)
	f.backend.EXPECT().Duration().Return(300.0, nil)
	f.controller.SamplePosition()
	snap := f.store.Snapshot()
	assert.InDelta(t, 0.0, snap.Podcasts[1].Episodes[0].Position, 0.001)

	// When the dropped episode ends, playback moves to the refreshed list
	// without marking the fresh episode completed first.
	gomock.InOrder(
		f.backend.EXPECT().HasEnded().Return(true, nil),
		f.backend.EXPECT().Stop().Return(nil),
		f.backend.EXPECT().Play(f.episodePath(1, "new.mp3"), 0.0).Return(nil),
	)
	f.controller.CheckEnded()

	snap = f.store.Snapshot()
	assert.False(t, snap.Podcasts[1].Episodes[0].Completed)
}

func TestSwapPodcastEpisodes_OtherSlotLeavesSessionAlone(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1, &state.Episode{Title: "A", GUID: "a", File: "a.mp3"})

	f.backend.EXPECT().Play(f.episodePath(1, "a.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	playing := f.controller.SwapPodcastEpisodes(2, func(s *state.PodcastSlot) {
		s.Episodes = []*state.Episode{{Title: "B", GUID: "b", File: "b.mp3"}}
	})
	assert.Empty(t, playing)

	f.backend.EXPECT().Position().Return(30.0, nil)
	f.backend.EXPECT().Duration().Return(0.0, nil)
	f.controller.SamplePosition()

	snap := f.store.Snapshot()
	assert.InDelta(t, 30.0, snap.Podcasts[1].Episodes[0].Position, 0.001)
}

func TestSamplePosition_IdleWithoutSession(t *testing.T) {
	f := newPodcastFixture(t)

	// No backend expectations: the tracker writes nothing while paused.
	f.controller.SamplePosition()
}

func TestStop_ClosesSessionAndRecordsPosition(t *testing.T) {
	f := newPodcastFixture(t)
	f.seedEpisodes(1, &state.Episode{Title: "A", GUID: "a", File: "a.mp3"})

	f.backend.EXPECT().Play(f.episodePath(1, "a.mp3"), 0.0).Return(nil)
	f.controller.Apply(podcastReading(1))

	f.backend.EXPECT().Position().Return(77.0, nil)
	f.backend.EXPECT().Stop().Return(nil)
	f.controller.Stop()

	snap := f.store.Snapshot()
	assert.InDelta(t, 77.0, snap.Podcasts[1].Episodes[0].Position, 0.001)
}
