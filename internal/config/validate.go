// internal/config/validate.go
package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// MaxSlots is the number of knob positions; each content domain supports at
// most this many configured entries.
const MaxSlots = 12

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Daemon.LogLevel] {
		errs = append(errs, fmt.Sprintf("daemon.log_level: must be one of debug, info, warn, error; got %q", c.Daemon.LogLevel))
	}
	if c.Daemon.PollMS < 10 {
		errs = append(errs, fmt.Sprintf("daemon.poll_interval_ms: must be at least 10, got %d", c.Daemon.PollMS))
	}

	if c.Player.PositionSaveInterval < 1 {
		errs = append(errs, fmt.Sprintf("player.position_save_interval: must be at least 1 second, got %d", c.Player.PositionSaveInterval))
	}
	if !strings.HasPrefix(c.Player.AudioExtension, ".") {
		errs = append(errs, fmt.Sprintf("player.audio_extension: must start with a dot, got %q", c.Player.AudioExtension))
	}

	// At least one slot must be assigned somewhere
	if len(c.Podcasts.Feeds) == 0 && len(c.Music.Albums) == 0 {
		errs = append(errs, "at least one podcast feed or music album must be configured")
	}

	if len(c.Podcasts.Feeds) > MaxSlots {
		errs = append(errs, fmt.Sprintf("podcasts: at most %d feeds supported (12-position knob), got %d", MaxSlots, len(c.Podcasts.Feeds)))
	}
	for i, feed := range c.Podcasts.Feeds {
		if feed.Name == "" {
			errs = append(errs, fmt.Sprintf("podcasts.feed[%d].name: required", i))
		}
		if feed.RSSURL == "" {
			errs = append(errs, fmt.Sprintf("podcasts.feed[%d].rss_url: required", i))
		}
	}
	if c.Podcasts.MaxEpisodes < 1 {
		errs = append(errs, fmt.Sprintf("podcasts.max_episodes_per_podcast: must be at least 1, got %d", c.Podcasts.MaxEpisodes))
	}
	if c.Podcasts.CheckInterval < 0.1 {
		errs = append(errs, fmt.Sprintf("podcasts.check_interval_hours: must be at least 0.1, got %g", c.Podcasts.CheckInterval))
	}
	if c.Podcasts.RSSTimeout < 1 {
		errs = append(errs, fmt.Sprintf("podcasts.rss_timeout: must be at least 1 second, got %d", c.Podcasts.RSSTimeout))
	}
	if c.Podcasts.DownloadTimeout < 1 {
		errs = append(errs, fmt.Sprintf("podcasts.download_timeout: must be at least 1 second, got %d", c.Podcasts.DownloadTimeout))
	}

	errs = append(errs, c.Music.validate()...)

	return errs
}

func (m *MusicConfig) validate() []string {
	var errs []string

	if len(m.Albums) > MaxSlots {
		errs = append(errs, fmt.Sprintf("music: at most %d albums supported (12-position knob), got %d", MaxSlots, len(m.Albums)))
	}
	for i, album := range m.Albums {
		if album.Folder == "" {
			errs = append(errs, fmt.Sprintf("music.album[%d].folder: required", i))
		}
	}

	return errs
}
