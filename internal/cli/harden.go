package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supplysignals/supplysig/internal/harden"
)

var hardenDir string

// hardenCmd represents the harden command
var hardenCmd = &cobra.Command{
	Use:   "harden",
	Short: "Backfill strict UTC timestamps onto normalized events",
	Long: `Harden rewrites every *.norm.jsonl file in the queue, adding a strict
UTC event_datetime_utc field derived from per-source timestamp candidates.

The pass is idempotent: records already carrying a strict timestamp are
left byte-identical, so re-runs are free.

Example:
  supplysig harden
  supplysig harden --dir queue/normalized_events`,
	RunE: runHarden,
}

func init() {
	rootCmd.AddCommand(hardenCmd)

	hardenCmd.Flags().StringVar(&hardenDir, "dir", "", "directory of *.norm.jsonl files (default: paths.norm_dir)")
}

func runHarden(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	dir := hardenDir
	if dir == "" {
		dir = cfg.Paths.NormDir
	}

	h := harden.New(cfg.Harden)
	totals, err := h.ProcessDir(dir)
	if err != nil {
		return fmt.Errorf("harden %s: %w", dir, err)
	}

	log.Info().
		Int("files", totals.Files).
		Int("records", totals.Records).
		Int("parsed_ok", totals.ParsedOK).
		Int("backfilled", totals.Backfilled).
		Int("parse_fail", totals.ParseFail).
		Int("missing_or_error", totals.MissingOrError).
		Msg("harden complete")

	fmt.Fprintf(os.Stderr, "Hardened %d records across %d files (%d parsed, %d backfilled, %d failed)\n",
		totals.Records, totals.Files, totals.ParsedOK, totals.Backfilled, totals.ParseFail+totals.MissingOrError)
	return nil
}
