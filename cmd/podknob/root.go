package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/podknob/internal/config"
)

var version = "dev"

var (
	configFlag string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "podknob",
	Short: "CLI for the podknob screen-less media player",
	Long: `podknob - CLI for the podknob screen-less media player

Inspect player state, slot assignments and playback history.

Run 'podknobd' to start the player daemon.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default: discovered)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("podknob {{.Version}}\n")
}

// loadConfig resolves the config path and loads it.
func loadConfig() (*config.Config, string, error) {
	path := configFlag
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			return nil, "", err
		}
		path = discovered
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
