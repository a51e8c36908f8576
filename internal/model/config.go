package model

// Config holds all pipeline configuration.
// Resolution order (highest to lowest): CLI flags, SUPPLYSIG_* environment
// variables, config file, defaults.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Harden  HardenConfig  `yaml:"harden" mapstructure:"harden"`
	Detect  DetectConfig  `yaml:"detect" mapstructure:"detect"`
	Dedupe  DedupeConfig  `yaml:"dedupe" mapstructure:"dedupe"`
	Fusion  FusionConfig  `yaml:"fusion" mapstructure:"fusion"`
	Cluster ClusterConfig `yaml:"cluster" mapstructure:"cluster"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
}

// PathsConfig locates the queue directories and state files.
type PathsConfig struct {
	NormDir    string `yaml:"norm_dir" mapstructure:"norm_dir"`
	SignalsDir string `yaml:"signals_dir" mapstructure:"signals_dir"`
	FusedDir   string `yaml:"fused_dir" mapstructure:"fused_dir"`
	AlertsCSV  string `yaml:"alerts_csv" mapstructure:"alerts_csv"`
	StateFile  string `yaml:"state_file" mapstructure:"state_file"`
}

// HardenConfig carries the per-source naive-timezone defaults for the
// timestamp hardening pass.
type HardenConfig struct {
	SECDefaultTZ string `yaml:"sec_default_tz" mapstructure:"sec_default_tz"`
	PRDefaultTZ  string `yaml:"pr_default_tz" mapstructure:"pr_default_tz"`
	FallbackTZ   string `yaml:"fallback_tz" mapstructure:"fallback_tz"`
}

// DetectConfig configures the rule-scoring stage.
type DetectConfig struct {
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
}

// DedupeConfig configures the seen-event store. A TTL of 0 days effectively
// disables persistence-level suppression.
type DedupeConfig struct {
	Enabled               bool  `yaml:"enabled" mapstructure:"enabled"`
	TTLDays               int   `yaml:"ttl_days" mapstructure:"ttl_days"`
	CompactThresholdBytes int64 `yaml:"compact_threshold_bytes" mapstructure:"compact_threshold_bytes"`
}

// FusionConfig configures the multi-signal fusion engine.
type FusionConfig struct {
	WindowHours int `yaml:"window_hours" mapstructure:"window_hours"`
}

// ClusterConfig configures insider-transaction clustering.
type ClusterConfig struct {
	WindowDays  int `yaml:"window_days" mapstructure:"window_days"`
	MinInsiders int `yaml:"min_insiders" mapstructure:"min_insiders"`
}

// OutputConfig controls logging verbosity and rendering.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults for all stages.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			NormDir:    "queue/normalized_events",
			SignalsDir: "queue/signals",
			FusedDir:   "queue/fused_signals",
			AlertsCSV:  "queue/alerts/alerts.csv",
			StateFile:  ".state/seen_events.jsonl",
		},
		Harden: HardenConfig{
			SECDefaultTZ: "America/New_York",
			PRDefaultTZ:  "UTC",
			FallbackTZ:   "UTC",
		},
		Detect: DetectConfig{
			Threshold: 3,
		},
		Dedupe: DedupeConfig{
			Enabled:               true,
			TTLDays:               7,
			CompactThresholdBytes: 5 << 20, // ~5 MB
		},
		Fusion: FusionConfig{
			WindowHours: 48,
		},
		Cluster: ClusterConfig{
			WindowDays:  30,
			MinInsiders: 3,
		},
		Output: OutputConfig{
			Verbose: false,
		},
	}
}
