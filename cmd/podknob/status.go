package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/podknob/internal/config"
	"github.com/vmunix/podknob/internal/hardware"
	"github.com/vmunix/podknob/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Player status dashboard",
	Long: `Show the player dashboard: current switch position, per-slot progress
for podcasts and music, last feed check, and episode disk usage.

Reads the daemon's config, state file and control file directly; the daemon
does not need to be running.`,
	Args: cobra.NoArgs,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Reading   string            `json:"reading"`
	LastCheck time.Time         `json:"last_feed_check"`
	DiskBytes int64             `json:"episode_disk_bytes"`
	Podcasts  map[int]slotBrief `json:"podcasts"`
	Music     map[int]slotBrief `json:"music"`
}

type slotBrief struct {
	Name      string  `json:"name"`
	Items     int     `json:"items"`
	Current   string  `json:"current,omitempty"`
	Position  float64 `json:"position_seconds"`
	Completed bool    `json:"completed"`
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	doc, err := state.Load(cfg.Daemon.StatePath)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}

	reading, err := hardware.NewFileReader(cfg.Daemon.ControlFile).Read()
	if err != nil {
		reading = hardware.Reading{Mode: hardware.ModePaused, Knob: 1}
	}

	report := statusReport{
		Reading:   reading.String(),
		LastCheck: time.Unix(doc.LastCheck, 0),
		DiskBytes: dirSize(cfg.Podcasts.EpisodesDir),
		Podcasts:  make(map[int]slotBrief),
		Music:     make(map[int]slotBrief),
	}

	for i, feed := range cfg.Podcasts.Feeds {
		slot := i + 1
		brief := slotBrief{Name: feed.Name}
		if ps, ok := doc.Podcasts[slot]; ok {
			brief.Items = len(ps.Episodes)
			brief.Completed = ps.Completed
			if ps.CurrentIndex >= 0 && ps.CurrentIndex < len(ps.Episodes) {
				ep := ps.Episodes[ps.CurrentIndex]
				brief.Current = ep.Title
				brief.Position = ep.Position
			}
		}
		report.Podcasts[slot] = brief
	}

	for i, album := range cfg.Music.Albums {
		slot := i + 1
		name := album.Name
		if name == "" {
			name = album.Folder
		}
		brief := slotBrief{Name: name}
		if as, ok := doc.Music[slot]; ok {
			brief.Items = len(as.Tracks)
			brief.Completed = as.Completed
			brief.Position = as.Position
			if as.CurrentTrack >= 0 && as.CurrentTrack < len(as.Tracks) {
				brief.Current = as.Tracks[as.CurrentTrack]
			}
		}
		report.Music[slot] = brief
	}

	if jsonOutput {
		printJSON(report)
		return nil
	}

	printStatus(path, cfg, report)
	return nil
}

func printStatus(configPath string, cfg *config.Config, r statusReport) {
	fmt.Printf("podknob v%s | Config: %s\n\n", version, configPath)
	fmt.Printf("Switch: %s\n", r.Reading)
	if r.LastCheck.Unix() > 0 {
		fmt.Printf("Last feed check: %s\n", r.LastCheck.Format(time.RFC1123))
	} else {
		fmt.Println("Last feed check: never")
	}
	fmt.Printf("Episode storage: %s\n\n", fmtBytes(r.DiskBytes))

	fmt.Println("Podcasts")
	for i := range cfg.Podcasts.Feeds {
		printSlot(i+1, r.Podcasts[i+1], "episodes")
	}
	fmt.Println()

	fmt.Println("Music")
	for i := range cfg.Music.Albums {
		printSlot(i+1, r.Music[i+1], "tracks")
	}
}

func printSlot(slot int, b slotBrief, unit string) {
	line := fmt.Sprintf("  %2d  %-30s %d %s", slot, b.Name, b.Items, unit)
	if b.Completed {
		line += "  [completed]"
	} else if b.Current != "" {
		line += fmt.Sprintf("  now: %s @ %s", b.Current, fmtSeconds(b.Position))
	}
	fmt.Println(line)
}

func fmtSeconds(s float64) string {
	d := time.Duration(s) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func fmtBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
