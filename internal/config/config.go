// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Daemon   DaemonConfig   `toml:"daemon"`
	Database DatabaseConfig `toml:"database"`
	Player   PlayerConfig   `toml:"player"`
	Podcasts PodcastsConfig `toml:"podcasts"`
	Music    MusicConfig    `toml:"music"`
}

type DaemonConfig struct {
	LogLevel    string `toml:"log_level"`
	StatePath   string `toml:"state_path"`
	ControlFile string `toml:"control_file"` // switch simulation file, used when GPIO is absent
	PollMS      int    `toml:"poll_interval_ms"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type PlayerConfig struct {
	PositionSaveInterval int    `toml:"position_save_interval"` // seconds between position samples
	AudioExtension       string `toml:"audio_extension"`
	MPVBinary            string `toml:"mpv_binary"`
	MPVSocket            string `toml:"mpv_socket"`
}

type PodcastsConfig struct {
	EpisodesDir     string       `toml:"episodes_dir"`
	MaxEpisodes     int          `toml:"max_episodes_per_podcast"`
	CheckInterval   float64      `toml:"check_interval_hours"`
	RSSTimeout      int          `toml:"rss_timeout"`      // seconds
	DownloadTimeout int          `toml:"download_timeout"` // seconds
	Feeds           []FeedConfig `toml:"feed"`
}

// FeedConfig maps one knob position (by list order) to a podcast feed.
type FeedConfig struct {
	Name   string `toml:"name"`
	RSSURL string `toml:"rss_url"`
}

type MusicConfig struct {
	Dir    string        `toml:"dir"`
	Albums []AlbumConfig `toml:"album"`
}

// AlbumConfig maps one knob position (by list order) to an album folder.
type AlbumConfig struct {
	Name   string `toml:"name"`
	Folder string `toml:"folder"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Daemon.LogLevel == "" {
		c.Daemon.LogLevel = "info"
	}
	if c.Daemon.StatePath == "" {
		c.Daemon.StatePath = "./data/state.json"
	}
	if c.Daemon.ControlFile == "" {
		c.Daemon.ControlFile = "/tmp/podknob-switch"
	}
	if c.Daemon.PollMS == 0 {
		c.Daemon.PollMS = 100
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/history.db"
	}
	if c.Player.PositionSaveInterval == 0 {
		c.Player.PositionSaveInterval = 5
	}
	if c.Player.AudioExtension == "" {
		c.Player.AudioExtension = ".mp3"
	}
	if c.Player.MPVBinary == "" {
		c.Player.MPVBinary = "mpv"
	}
	if c.Player.MPVSocket == "" {
		c.Player.MPVSocket = "/tmp/podknob-mpv.sock"
	}
	if c.Podcasts.EpisodesDir == "" {
		c.Podcasts.EpisodesDir = "./episodes"
	}
	if c.Podcasts.MaxEpisodes == 0 {
		c.Podcasts.MaxEpisodes = 2
	}
	if c.Podcasts.CheckInterval == 0 {
		c.Podcasts.CheckInterval = 1
	}
	if c.Podcasts.RSSTimeout == 0 {
		c.Podcasts.RSSTimeout = 10
	}
	if c.Podcasts.DownloadTimeout == 0 {
		c.Podcasts.DownloadTimeout = 30
	}
	if c.Music.Dir == "" {
		c.Music.Dir = "./music"
	}
}

// LoadMusic re-reads only the music section from the config file. Album
// assignments are deliberately read fresh on every knob selection so the
// file can be edited live without restarting the daemon.
func LoadMusic(path string) (*MusicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var partial struct {
		Music MusicConfig `toml:"music"`
	}
	if _, err := toml.Decode(content, &partial); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if partial.Music.Dir == "" {
		partial.Music.Dir = "./music"
	}
	return &partial.Music, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values and
// reports the names it could not resolve, each once, in order of appearance.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) (string, []string) {
	var missing []string
	seen := make(map[string]bool)
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		if !seen[varName] {
			seen[varName] = true
			missing = append(missing, varName)
		}
		return match
	})
	return out, missing
}
