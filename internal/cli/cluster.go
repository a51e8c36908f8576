package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/supplysignals/supplysig/internal/cluster"
	"github.com/supplysignals/supplysig/internal/jsonl"
	"github.com/supplysignals/supplysig/internal/model"
)

var (
	clusterWindowDays  int
	clusterMinInsiders int
	clusterOutDir      string
)

// clusterCmd represents the cluster command
var clusterCmd = &cobra.Command{
	Use:   "cluster <transactions.jsonl>",
	Short: "Detect insider-transaction clusters",
	Long: `Cluster scans a JSONL file of parsed Form 4 transactions for issuers
where three or more distinct insiders transacted within a rolling window,
and writes one insider_cluster signal per qualifying issuer into the
signals queue for fusion.

Example:
  supplysig cluster queue/insider/transactions.jsonl
  supplysig cluster txns.jsonl --window-days 14 --min-insiders 4`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().IntVar(&clusterWindowDays, "window-days", 0, "cluster window in days (default: cluster.window_days)")
	clusterCmd.Flags().IntVar(&clusterMinInsiders, "min-insiders", 0, "minimum distinct insiders (default: cluster.min_insiders)")
	clusterCmd.Flags().StringVar(&clusterOutDir, "out", "", "directory for cluster signals (default: paths.signals_dir)")
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	windowDays := clusterWindowDays
	if windowDays <= 0 {
		windowDays = cfg.Cluster.WindowDays
	}
	minInsiders := clusterMinInsiders
	if minInsiders <= 0 {
		minInsiders = cfg.Cluster.MinInsiders
	}
	outDir := clusterOutDir
	if outDir == "" {
		outDir = cfg.Paths.SignalsDir
	}

	txns, skipped, err := cluster.LoadTransactions(args[0])
	if err != nil {
		return fmt.Errorf("load transactions %s: %w", args[0], err)
	}
	if skipped > 0 {
		log.Warn().Int("lines", skipped).Msg("skipped malformed transaction lines")
	}

	clusters := cluster.Detect(txns, windowDays, minInsiders)

	outPath := filepath.Join(outDir, fmt.Sprintf("insider_clusters_%s.jsonl", time.Now().UTC().Format("20060102T150405Z")))
	records := make([]model.Event, 0, len(clusters))
	for _, c := range clusters {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		records = append(records, ev)
	}
	if err := jsonl.WriteFileAtomic(outPath, records); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	log.Info().
		Int("transactions", len(txns)).
		Int("clusters", len(clusters)).
		Str("out", outPath).
		Msg("clustering complete")

	fmt.Fprintf(os.Stderr, "Found %d insider clusters across %d transactions\n", len(clusters), len(txns))
	for _, c := range clusters {
		fmt.Fprintf(os.Stderr, "  %-8s %-14s %d insiders, %d transactions (%s to %s)\n",
			c.IssuerTicker, c.Sentiment, c.NumInsiders, c.NumTransactions, c.ClusterStartDate, c.ClusterEndDate)
	}
	return nil
}
