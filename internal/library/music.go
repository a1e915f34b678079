package library

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/vmunix/podknob/internal/config"
)

// folderMatchThreshold is the minimum Jaro-Winkler similarity for fuzzy
// album-folder recovery. Below it a missing folder stays missing.
const folderMatchThreshold = 0.85

// Album is one resolved music slot: a named folder under the music dir.
type Album struct {
	Slot   int
	Name   string
	Folder string
	Path   string
}

// Music resolves knob positions to album folders and scans their tracks.
// Album assignments are read fresh from the config file on every resolution
// so edits take effect without a daemon restart.
type Music struct {
	configPath string
	logger     *slog.Logger
}

// NewMusic creates a music library rooted at the given config file.
func NewMusic(configPath string, logger *slog.Logger) *Music {
	if logger == nil {
		logger = slog.Default()
	}
	return &Music{configPath: configPath, logger: logger}
}

// AlbumForSlot maps a knob position to its configured album, re-reading the
// music config. A configured folder that has gone missing is recovered by
// fuzzy-matching against the folders actually on disk; a rename like
// "blue-train" -> "Blue Train" keeps working, anything more distant fails
// with ErrAlbumMissing.
func (m *Music) AlbumForSlot(slot int) (*Album, error) {
	cfg, err := config.LoadMusic(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("music config: %w", err)
	}

	if slot < 1 || slot > len(cfg.Albums) {
		return nil, fmt.Errorf("music slot %d: %w", slot, ErrSlotUnassigned)
	}

	entry := cfg.Albums[slot-1]
	name := entry.Name
	if name == "" {
		name = entry.Folder
	}

	folder := entry.Folder
	path := filepath.Join(cfg.Dir, folder)
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		recovered, ok := m.recoverFolder(cfg.Dir, folder)
		if !ok {
			return nil, fmt.Errorf("album folder %q under %s: %w", folder, cfg.Dir, ErrAlbumMissing)
		}
		m.logger.Warn("album folder missing, using closest match",
			"configured", folder, "matched", recovered, "slot", slot)
		folder = recovered
		path = filepath.Join(cfg.Dir, folder)
	}

	return &Album{Slot: slot, Name: name, Folder: folder, Path: path}, nil
}

// recoverFolder fuzzy-matches a missing configured folder name against the
// directories that exist under dir.
func (m *Music) recoverFolder(dir, want string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	best := ""
	bestScore := float32(0)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		score := edlib.JaroWinklerSimilarity(strings.ToLower(want), strings.ToLower(e.Name()))
		if score > bestScore {
			best = e.Name()
			bestScore = score
		}
	}

	if bestScore < folderMatchThreshold {
		return "", false
	}
	return best, true
}

// ScanTracks lists top-level files in the album folder with the given audio
// extension, naturally sorted. Subdirectories are not descended into.
func (m *Music) ScanTracks(albumPath, ext string) ([]string, error) {
	entries, err := os.ReadDir(albumPath)
	if err != nil {
		return nil, fmt.Errorf("scan album %s: %w", albumPath, err)
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		tracks = append(tracks, e.Name())
	}

	SortNatural(tracks)

	if len(tracks) == 0 {
		m.logger.Warn("no playable tracks in album", "path", albumPath, "extension", ext)
	}
	return tracks, nil
}

// TrackPath returns the full path of a track within an album.
func (m *Music) TrackPath(albumPath, filename string) string {
	return filepath.Join(albumPath, filename)
}
