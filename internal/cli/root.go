package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supplysignals/supplysig/internal/logging"
	"github.com/supplysignals/supplysig/internal/model"
)

var (
	cfgFile string
	verbose bool
	pretty  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "supplysig",
	Short: "Supplysig - disclosure signal hardening, dedupe and fusion",
	Long: `Supplysig processes normalized financial-disclosure events:

- harden: backfill a strict UTC event timestamp onto every record
- detect: score events against keyword rules, suppress duplicates
- cluster: find insider-transaction clusters per issuer
- fuse: combine signals per ticker into conviction scores
- alerts: render gated signals to console and CSV

Stages are idempotent and safe to re-run over the same queue.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Supplysig.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("supplysig v0.2.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.supplysig/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.supplysig")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match SUPPLYSIG_*
	viper.SetEnvPrefix("SUPPLYSIG")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// buildConfig merges defaults, config file and environment into one Config.
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// newLogger builds the stage logger from the resolved verbosity.
func newLogger(cfg *model.Config) zerolog.Logger {
	return logging.New(cfg.Output.Verbose, pretty)
}
