package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/vmunix/podknob/internal/events"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Recent playback history",
	Long: `Show recent playback events from the daemon's history log: sessions,
completed items, slot resets and feed refreshes. Newest first.`,
	Args: cobra.NoArgs,
	RunE: runHistoryCmd,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Number of events to show")
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open history db: %w", err)
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	raw, err := events.NewEventLog(db).Recent(limit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if jsonOutput {
		printJSON(raw)
		return nil
	}

	if len(raw) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	registry := events.DefaultRegistry()
	for _, r := range raw {
		fmt.Printf("%s  %s\n", r.OccurredAt.Local().Format(time.DateTime), describeEvent(registry, r))
	}
	return nil
}

// describeEvent renders one history line. Unknown or undecodable payloads
// fall back to the raw type.
func describeEvent(registry *events.Registry, raw events.RawEvent) string {
	e, err := registry.Unmarshal(raw)
	if err != nil {
		return fmt.Sprintf("%s (slot %d)", raw.EventType, raw.EntityID)
	}

	switch v := e.(type) {
	case *events.SessionStarted:
		return fmt.Sprintf("started %s slot %d: %s @ %s", v.Domain, v.EntityID(), v.Item, fmtSeconds(v.Offset))
	case *events.SessionStopped:
		return fmt.Sprintf("stopped %s slot %d @ %s", v.Domain, v.EntityID(), fmtSeconds(v.Position))
	case *events.ItemCompleted:
		if v.Failed {
			return fmt.Sprintf("skipped unplayable %s item on slot %d: %s", v.Domain, v.EntityID(), v.Item)
		}
		return fmt.Sprintf("finished %s item on slot %d: %s", v.Domain, v.EntityID(), v.Item)
	case *events.SlotCompleted:
		return fmt.Sprintf("%s slot %d completed", v.Domain, v.EntityID())
	case *events.SlotReset:
		return fmt.Sprintf("%s slot %d reset for another pass", v.Domain, v.EntityID())
	case *events.FeedRefreshed:
		return fmt.Sprintf("refreshed feed %q (slot %d): %d episodes, %d new", v.Feed, v.EntityID(), v.Episodes, v.NewEpisodes)
	case *events.EpisodeDownloaded:
		return fmt.Sprintf("downloaded %q for feed %q (slot %d)", v.Title, v.Feed, v.EntityID())
	default:
		return raw.EventType
	}
}
