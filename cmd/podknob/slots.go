package main

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/spf13/cobra"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Show knob slot assignments",
	Long: `List which feed or album each knob position selects, per mode.

With --find, fuzzy-match a name against all assignments and report the best
matching slot:

  podknob slots --find "morning show"`,
	Args: cobra.NoArgs,
	RunE: runSlotsCmd,
}

func init() {
	rootCmd.AddCommand(slotsCmd)
	slotsCmd.Flags().String("find", "", "Fuzzy-find a slot by feed or album name")
}

type slotAssignment struct {
	Mode string `json:"mode"`
	Slot int    `json:"slot"`
	Name string `json:"name"`
}

func runSlotsCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	var assignments []slotAssignment
	for i, feed := range cfg.Podcasts.Feeds {
		assignments = append(assignments, slotAssignment{Mode: "podcast", Slot: i + 1, Name: feed.Name})
	}
	for i, album := range cfg.Music.Albums {
		name := album.Name
		if name == "" {
			name = album.Folder
		}
		assignments = append(assignments, slotAssignment{Mode: "music", Slot: i + 1, Name: name})
	}

	if query, _ := cmd.Flags().GetString("find"); query != "" {
		best, score := findSlot(query, assignments)
		if best == nil {
			return fmt.Errorf("nothing matches %q", query)
		}
		if jsonOutput {
			printJSON(best)
			return nil
		}
		fmt.Printf("%s slot %d: %s (%.0f%% match)\n", best.Mode, best.Slot, best.Name, score*100)
		return nil
	}

	if jsonOutput {
		printJSON(assignments)
		return nil
	}

	fmt.Println("Podcast mode")
	for _, a := range assignments {
		if a.Mode == "podcast" {
			fmt.Printf("  %2d  %s\n", a.Slot, a.Name)
		}
	}
	fmt.Println()
	fmt.Println("Music mode")
	for _, a := range assignments {
		if a.Mode == "music" {
			fmt.Printf("  %2d  %s\n", a.Slot, a.Name)
		}
	}
	return nil
}

// findSlot returns the assignment whose name is closest to the query.
func findSlot(query string, assignments []slotAssignment) (*slotAssignment, float32) {
	var best *slotAssignment
	var bestScore float32
	q := strings.ToLower(query)
	for i := range assignments {
		score := edlib.JaroWinklerSimilarity(q, strings.ToLower(assignments[i].Name))
		if score > bestScore {
			best = &assignments[i]
			bestScore = score
		}
	}
	return best, bestScore
}
