package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/supplysignals/supplysig/internal/fusion"
	"github.com/supplysignals/supplysig/internal/jsonl"
	"github.com/supplysignals/supplysig/internal/model"
)

var (
	fuseInDir  string
	fuseOutDir string
	fuseWindow int
)

// fuseCmd represents the fuse command
var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Fuse per-source signals into conviction scores",
	Long: `Fuse loads all signal files (rule-scored filings, insider clusters,
social sentiment) from the signals queue, groups them by ticker and time
window, and writes fused conviction records.

Example:
  supplysig fuse
  supplysig fuse --window-hours 72`,
	RunE: runFuse,
}

func init() {
	rootCmd.AddCommand(fuseCmd)

	fuseCmd.Flags().StringVar(&fuseInDir, "in", "", "directory of signal files (default: paths.signals_dir)")
	fuseCmd.Flags().StringVar(&fuseOutDir, "out", "", "directory for fused output (default: paths.fused_dir)")
	fuseCmd.Flags().IntVar(&fuseWindow, "window-hours", 0, "fusion window width in hours (default: fusion.window_hours)")
}

func runFuse(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	inDir := fuseInDir
	if inDir == "" {
		inDir = cfg.Paths.SignalsDir
	}
	outDir := fuseOutDir
	if outDir == "" {
		outDir = cfg.Paths.FusedDir
	}
	window := fuseWindow
	if window <= 0 {
		window = cfg.Fusion.WindowHours
	}

	signals, err := loadSignals(inDir)
	if err != nil {
		return fmt.Errorf("load signals from %s: %w", inDir, err)
	}
	if len(signals) == 0 {
		fmt.Fprintf(os.Stderr, "No signals found in %s\n", inDir)
		return nil
	}

	engine := fusion.NewEngine(window)
	fused := engine.Fuse(signals)

	outPath := filepath.Join(outDir, fmt.Sprintf("fused_%s.jsonl", time.Now().UTC().Format("20060102T150405Z")))
	records := make([]model.Event, 0, len(fused))
	for _, fc := range fused {
		rec, err := toEvent(fc)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := jsonl.WriteFileAtomic(outPath, records); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	log.Info().
		Int("signals", len(signals)).
		Int("fused", len(fused)).
		Str("out", outPath).
		Msg("fusion complete")

	printFusionSummary(fused)
	return nil
}

// loadSignals reads every signal file the fusion stage consumes: rule-scored
// filings plus insider-cluster signals.
func loadSignals(dir string) ([]model.Event, error) {
	var paths []string
	for _, pattern := range []string{"*.signals.jsonl", "insider_clusters_*.jsonl"} {
		matched, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matched...)
	}
	sort.Strings(paths)

	var signals []model.Event
	for _, p := range paths {
		events, _, err := jsonl.ReadFile(p)
		if err != nil {
			return signals, err
		}
		signals = append(signals, events...)
	}
	return signals, nil
}

// toEvent round-trips a typed record through JSON into the generic shape the
// JSONL writer takes.
func toEvent(fc model.FusedConviction) (model.Event, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, err
	}
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// printFusionSummary lists the top fused convictions by score.
func printFusionSummary(fused []model.FusedConviction) {
	ranked := make([]model.FusedConviction, len(fused))
	copy(ranked, fused)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ConvictionScore > ranked[j].ConvictionScore
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}

	fmt.Fprintf(os.Stderr, "\nTop fused convictions:\n")
	for _, fc := range ranked {
		fmt.Fprintf(os.Stderr, "  %-8s %6.1f %-8s %-10s %d signals\n",
			fc.Ticker, fc.ConvictionScore, fc.ConvictionLevel, fc.Alignment, fc.NumSignals)
	}
	fmt.Fprintf(os.Stderr, "\n")
}
