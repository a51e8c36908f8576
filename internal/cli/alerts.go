package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supplysignals/supplysig/internal/alert"
)

var (
	alertsDir    string
	alertsCSV    string
	alertsNoCSV  bool
	alertsQuiet  bool
	alertsMinSev float64
)

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Render gated signals to console and CSV",
	Long: `Alerts loads every signal and fused-conviction file from the signals
queue, drops within-run duplicates, and delivers the rest to the console
and an append-only CSV ledger.

Example:
  supplysig alerts
  supplysig alerts --min-score 5 --no-csv`,
	RunE: runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)

	alertsCmd.Flags().StringVar(&alertsDir, "dir", "", "directory of signal files (default: paths.signals_dir)")
	alertsCmd.Flags().StringVar(&alertsCSV, "csv", "", "CSV ledger path (default: paths.alerts_csv)")
	alertsCmd.Flags().BoolVar(&alertsNoCSV, "no-csv", false, "skip the CSV sink")
	alertsCmd.Flags().BoolVar(&alertsQuiet, "quiet", false, "skip the console sink")
	alertsCmd.Flags().Float64Var(&alertsMinSev, "min-score", 0, "drop alerts below this score")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	dir := alertsDir
	if dir == "" {
		dir = cfg.Paths.SignalsDir
	}
	csvPath := alertsCSV
	if csvPath == "" {
		csvPath = cfg.Paths.AlertsCSV
	}

	alerts, err := alert.Load(dir)
	if err != nil {
		return fmt.Errorf("load alerts from %s: %w", dir, err)
	}

	if alertsMinSev > 0 {
		kept := alerts[:0]
		for _, a := range alerts {
			if score, ok := a.Float("score", "conviction_score"); ok && score >= alertsMinSev {
				kept = append(kept, a)
			}
		}
		alerts = kept
	}

	alerts, dupes := alert.FilterPerRun(alerts)
	if dupes > 0 {
		log.Debug().Int("duplicates", dupes).Msg("dropped within-run duplicate alerts")
	}

	if !alertsQuiet {
		alert.PrintConsole(os.Stdout, alerts)
	}
	if !alertsNoCSV {
		rows, err := alert.WriteCSV(alerts, csvPath)
		if err != nil {
			return fmt.Errorf("write csv %s: %w", csvPath, err)
		}
		log.Info().Int("rows", rows).Str("csv", csvPath).Msg("alerts written")
	}

	fmt.Fprintf(os.Stderr, "Delivered %d alerts (%d within-run duplicates dropped)\n", len(alerts), dupes)
	return nil
}
