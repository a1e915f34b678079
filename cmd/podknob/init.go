package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/podknob/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write the example config to the default location (or --config) and
print what to edit next. Refuses to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: runInitCmd,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInitCmd(cmd *cobra.Command, args []string) error {
	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}

	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n\n", path)
	fmt.Println("Next steps:")
	fmt.Println("  1. Add your podcast feeds under [[podcasts.feed]] (knob position = list order)")
	fmt.Println("  2. Add your albums under [[music.album]]")
	fmt.Println("  3. Start the daemon: podknobd -config " + path)
	return nil
}
