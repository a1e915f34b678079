package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	return Open(path, nil), path
}

func TestOpen_MissingFileStartsFresh(t *testing.T) {
	s, _ := newTestStore(t)
	doc := s.Snapshot()
	assert.Equal(t, CurrentVersion, doc.Version)
	assert.Empty(t, doc.Podcasts)
	assert.Empty(t, doc.Music)
}

func TestOpen_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := Open(path, nil)
	doc := s.Snapshot()
	assert.Equal(t, CurrentVersion, doc.Version)
}

func TestStore_RoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	s.Podcast(3, func(p *PodcastSlot) {
		p.Episodes = []*Episode{{
			Title:    "Pilot",
			GUID:     "guid-1",
			File:     "episode_abc.mp3",
			Position: 100,
			Duration: 300,
		}}
	})
	s.Album(7, func(a *AlbumSlot) {
		a.Folder = "blue-train"
		a.Tracks = []string{"01.mp3", "02.mp3"}
		a.CurrentTrack = 1
		a.Position = 42.5
	})
	s.SetLastCheck(time.Unix(1700000000, 0))
	require.NoError(t, s.Flush())

	doc, err := Load(path)
	require.NoError(t, err)

	require.Contains(t, doc.Podcasts, 3)
	assert.Equal(t, "guid-1", doc.Podcasts[3].Episodes[0].GUID)
	assert.Equal(t, 100.0, doc.Podcasts[3].Episodes[0].Position)

	require.Contains(t, doc.Music, 7)
	assert.Equal(t, "blue-train", doc.Music[7].Folder)
	assert.Equal(t, 1, doc.Music[7].CurrentTrack)
	assert.Equal(t, int64(1700000000), doc.LastCheck)
}

func TestStore_SaveThrottled(t *testing.T) {
	s, path := newTestStore(t)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	s.Podcast(1, func(p *PodcastSlot) { p.TotalTime = 1 })
	require.NoError(t, s.Save(false)) // first write lands
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// A second unforced save inside the one-second window must collapse.
	s.Podcast(1, func(p *PodcastSlot) { p.TotalTime = 2 })
	clock = clock.Add(200 * time.Millisecond)
	require.NoError(t, s.Save(false))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "throttled save must not touch the file")

	// A forced save inside the window must land.
	require.NoError(t, s.Save(true))
	third, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "forced save must write")

	// After the window elapses, an unforced save lands again.
	s.Podcast(1, func(p *PodcastSlot) { p.TotalTime = 3 })
	clock = clock.Add(2 * time.Second)
	require.NoError(t, s.Save(false))
	fourth, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, third, fourth)
}

func TestStore_SaveSkipsWhenClean(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Save(false))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clean store must not write a file")
}

func TestLoad_NewerVersionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	data, _ := json.Marshal(map[string]any{"version": CurrentVersion + 1})
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestPodcastSlot_Reset(t *testing.T) {
	p := &PodcastSlot{
		Episodes: []*Episode{
			{GUID: "a", Position: 120, Completed: true},
			{GUID: "b", Position: 30, Completed: true},
		},
		CurrentIndex: 1,
		Completed:    true,
	}
	p.Reset()

	assert.Equal(t, 0, p.CurrentIndex)
	assert.False(t, p.Completed)
	require.Len(t, p.Episodes, 2, "reset must keep the episode list")
	for _, ep := range p.Episodes {
		assert.Zero(t, ep.Position)
		assert.False(t, ep.Completed)
	}
}

func TestPodcastSlot_AllCompleted(t *testing.T) {
	p := &PodcastSlot{}
	assert.False(t, p.AllCompleted(), "empty slot is not completed")

	p.Episodes = []*Episode{{Completed: true}, {Completed: false}}
	assert.False(t, p.AllCompleted())

	p.Episodes[1].Completed = true
	assert.True(t, p.AllCompleted())
}

func TestAlbumSlot_Reset(t *testing.T) {
	a := &AlbumSlot{
		Folder:       "blue-train",
		Tracks:       []string{"01.mp3"},
		CurrentTrack: 3,
		Position:     99,
		Completed:    true,
	}
	a.Reset()

	assert.Empty(t, a.Tracks, "reset clears tracks so the folder is re-scanned")
	assert.Zero(t, a.CurrentTrack)
	assert.Zero(t, a.Position)
	assert.False(t, a.Completed)
	assert.Equal(t, "blue-train", a.Folder)
}

func TestStore_AtomicWriteLeavesNoTemp(t *testing.T) {
	s, path := newTestStore(t)
	s.Podcast(1, func(p *PodcastSlot) { p.TotalTime = 1 })
	require.NoError(t, s.Flush())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
