package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/supplysignals/supplysig/internal/dedupe"
	"github.com/supplysignals/supplysig/internal/model"
)

// stateCmd represents the state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and maintain the dedupe state file",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show dedupe state statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		fmt.Printf("State file:        %s\n", cfg.Paths.StateFile)
		fmt.Printf("File size:         %d bytes\n", store.FileSize())
		fmt.Printf("Active records:    %d\n", store.ActiveCount())
		fmt.Printf("Malformed lines:   %d\n", store.SkippedLines())
		fmt.Printf("TTL:               %d days\n", cfg.Dedupe.TTLDays)
		fmt.Printf("Compact threshold: %d bytes\n", cfg.Dedupe.CompactThresholdBytes)
		return nil
	},
}

var stateCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the state file keeping only records within TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		before := store.FileSize()
		if err := store.Compact(); err != nil {
			return fmt.Errorf("compact %s: %w", cfg.Paths.StateFile, err)
		}
		after := store.FileSize()

		fmt.Fprintf(os.Stderr, "Compacted %s: %d -> %d bytes (%d active records)\n",
			cfg.Paths.StateFile, before, after, store.ActiveCount())
		return nil
	},
}

func openStore() (*dedupe.SeenStore, *model.Config, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, nil, err
	}
	ttl := time.Duration(cfg.Dedupe.TTLDays) * 24 * time.Hour
	store, err := dedupe.Open(cfg.Paths.StateFile, ttl)
	if err != nil {
		return nil, nil, fmt.Errorf("open dedupe store %s: %w", cfg.Paths.StateFile, err)
	}
	return store, cfg, nil
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateCompactCmd)
}
