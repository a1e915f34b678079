package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMusicConfig writes a minimal config file with the given music section
// and returns its path.
func writeMusicConfig(t *testing.T, musicDir string, albums ...[2]string) string {
	t.Helper()

	content := "[music]\ndir = \"" + musicDir + "\"\n"
	for _, a := range albums {
		content += "\n[[music.album]]\nname = \"" + a[0] + "\"\nfolder = \"" + a[1] + "\"\n"
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAlbumForSlot(t *testing.T) {
	musicDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(musicDir, "Blue Train"), 0755))

	cfgPath := writeMusicConfig(t, musicDir, [2]string{"Blue Train", "Blue Train"})
	m := NewMusic(cfgPath, nil)

	album, err := m.AlbumForSlot(1)
	require.NoError(t, err)
	assert.Equal(t, "Blue Train", album.Name)
	assert.Equal(t, filepath.Join(musicDir, "Blue Train"), album.Path)
}

func TestAlbumForSlot_Unassigned(t *testing.T) {
	musicDir := t.TempDir()
	cfgPath := writeMusicConfig(t, musicDir, [2]string{"Only One", "only-one"})
	m := NewMusic(cfgPath, nil)

	_, err := m.AlbumForSlot(2)
	assert.ErrorIs(t, err, ErrSlotUnassigned)

	_, err = m.AlbumForSlot(0)
	assert.ErrorIs(t, err, ErrSlotUnassigned)
}

func TestAlbumForSlot_FuzzyRecovery(t *testing.T) {
	musicDir := t.TempDir()
	// On-disk folder was renamed after the config was written.
	require.NoError(t, os.Mkdir(filepath.Join(musicDir, "Blue Train"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(musicDir, "Kind Of Blue"), 0755))

	cfgPath := writeMusicConfig(t, musicDir, [2]string{"Blue Train", "blue-train"})
	m := NewMusic(cfgPath, nil)

	album, err := m.AlbumForSlot(1)
	require.NoError(t, err)
	assert.Equal(t, "Blue Train", album.Folder)
}

func TestAlbumForSlot_MissingBeyondRecovery(t *testing.T) {
	musicDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(musicDir, "Completely Different"), 0755))

	cfgPath := writeMusicConfig(t, musicDir, [2]string{"Gone", "abbey-road"})
	m := NewMusic(cfgPath, nil)

	_, err := m.AlbumForSlot(1)
	assert.ErrorIs(t, err, ErrAlbumMissing)
}

func TestAlbumForSlot_SeesConfigEdits(t *testing.T) {
	musicDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(musicDir, "First"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(musicDir, "Second"), 0755))

	cfgPath := writeMusicConfig(t, musicDir, [2]string{"First", "First"})
	m := NewMusic(cfgPath, nil)

	album, err := m.AlbumForSlot(1)
	require.NoError(t, err)
	assert.Equal(t, "First", album.Folder)

	// Edit the config in place; no restart, no new Music value.
	content := "[music]\ndir = \"" + musicDir + "\"\n\n[[music.album]]\nname = \"Second\"\nfolder = \"Second\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	album, err = m.AlbumForSlot(1)
	require.NoError(t, err)
	assert.Equal(t, "Second", album.Folder)
}

func TestScanTracks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10-outro.mp3", "2-middle.mp3", "1-intro.mp3", "cover.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bonus"), 0755))

	m := NewMusic("unused", nil)
	tracks, err := m.ScanTracks(dir, ".mp3")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-intro.mp3", "2-middle.mp3", "10-outro.mp3"}, tracks)
}

func TestScanTracks_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.MP3"), []byte("x"), 0644))

	m := NewMusic("unused", nil)
	tracks, err := m.ScanTracks(dir, ".mp3")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.MP3"}, tracks)
}

func TestScanTracks_Empty(t *testing.T) {
	m := NewMusic("unused", nil)
	tracks, err := m.ScanTracks(t.TempDir(), ".mp3")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}
