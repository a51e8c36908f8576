package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/supplysignals/supplysig/internal/dedupe"
	"github.com/supplysignals/supplysig/internal/detect"
	"github.com/supplysignals/supplysig/internal/rules"
)

var (
	detectInDir     string
	detectOutDir    string
	detectThreshold int
	detectNoDedupe  bool
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Score normalized events and emit dedupe-gated signals",
	Long: `Detect scores each normalized event against the keyword ruleset and
emits a signal record for every event at or above the threshold that has
not already been seen within the dedupe TTL window.

Example:
  supplysig detect
  supplysig detect --threshold 5 --no-dedupe`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVar(&detectInDir, "in", "", "directory of *.norm.jsonl files (default: paths.norm_dir)")
	detectCmd.Flags().StringVar(&detectOutDir, "out", "", "directory for *.signals.jsonl files (default: paths.signals_dir)")
	detectCmd.Flags().IntVar(&detectThreshold, "threshold", 0, "minimum rule score to emit (default: detect.threshold)")
	detectCmd.Flags().BoolVar(&detectNoDedupe, "no-dedupe", false, "disable duplicate suppression")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	inDir := detectInDir
	if inDir == "" {
		inDir = cfg.Paths.NormDir
	}
	outDir := detectOutDir
	if outDir == "" {
		outDir = cfg.Paths.SignalsDir
	}
	threshold := detectThreshold
	if threshold <= 0 {
		threshold = cfg.Detect.Threshold
	}

	var store *dedupe.SeenStore
	if cfg.Dedupe.Enabled && !detectNoDedupe {
		ttl := time.Duration(cfg.Dedupe.TTLDays) * 24 * time.Hour
		store, err = dedupe.Open(cfg.Paths.StateFile, ttl)
		if err != nil {
			return fmt.Errorf("open dedupe store %s: %w", cfg.Paths.StateFile, err)
		}
		if n := store.SkippedLines(); n > 0 {
			log.Warn().Int("lines", n).Msg("skipped malformed dedupe state lines")
		}
	}

	d := &detect.Detector{
		Rules:            rules.Default(),
		Store:            store,
		Threshold:        threshold,
		CompactThreshold: cfg.Dedupe.CompactThresholdBytes,
		Log:              log,
	}
	res, err := d.ProcessDir(inDir, outDir)
	if err != nil {
		return fmt.Errorf("detect %s: %w", inDir, err)
	}

	fmt.Fprintf(os.Stderr, "Scanned %d records in %d files: %d signals emitted, %d suppressed as duplicates\n",
		res.Records, res.Files, res.Emitted, res.Suppressed)
	return nil
}
