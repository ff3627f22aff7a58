package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"combosurv/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (COMBOSURV_ANALYSIS_SEED, ...).
const EnvPrefix = "COMBOSURV"

// Config represents the complete application configuration. It is loaded once
// at startup and passed by pointer; nothing mutates it afterwards.
type Config struct {
	TableDir string                   `mapstructure:"table_dir" yaml:"table_dir"`
	LogLevel string                   `mapstructure:"log_level" yaml:"log_level"`
	Analysis AnalysisConfig           `mapstructure:"analysis" yaml:"analysis"`
	Store    StoreConfig              `mapstructure:"store" yaml:"store"`
	Datasets map[string]DatasetConfig `mapstructure:"datasets" yaml:"datasets"`
}

// AnalysisConfig holds the numeric knobs exposed to callers
type AnalysisConfig struct {
	// NIPD is the reconstruction sample size for predictions and reference pools.
	NIPD int `mapstructure:"n_ipd" yaml:"n_ipd"`
	// TrialRuns is the Monte-Carlo run count for predictive power.
	TrialRuns int `mapstructure:"trial_runs" yaml:"trial_runs"`
	// SeedRuns is the number of seeded predictions per row.
	SeedRuns    int     `mapstructure:"seed_runs" yaml:"seed_runs"`
	Alpha       float64 `mapstructure:"alpha" yaml:"alpha"`
	HRThreshold float64 `mapstructure:"hr_threshold" yaml:"hr_threshold"`
	Seed        int64   `mapstructure:"seed" yaml:"seed"`
	Workers     int     `mapstructure:"workers" yaml:"workers"`
	// RowTimeout bounds one row of any batch; a timed-out row is reported as failed.
	RowTimeout time.Duration `mapstructure:"row_timeout" yaml:"row_timeout"`
	// Landmarks are the prediction row indices averaged for seed stability.
	Landmarks []int `mapstructure:"landmarks" yaml:"landmarks"`
	// TailTrim drops prediction knots within this distance of the last Time.
	TailTrim float64 `mapstructure:"tail_trim" yaml:"tail_trim"`
	// DiffPoints is the grid size for normalized curve differences.
	DiffPoints int  `mapstructure:"diff_points" yaml:"diff_points"`
	KeepRuns   bool `mapstructure:"keep_runs" yaml:"keep_runs"`
}

// StoreConfig selects the optional results ledger. An empty driver disables it.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// Enabled reports whether results should be recorded.
func (s StoreConfig) Enabled() bool {
	return s.Driver != ""
}

// DatasetConfig holds the per-dataset file layout
type DatasetConfig struct {
	MetadataSheet     string `mapstructure:"metadata_sheet" yaml:"metadata_sheet"`
	MetadataSheetSeed string `mapstructure:"metadata_sheet_seed" yaml:"metadata_sheet_seed"`
	DataDir           string `mapstructure:"data_dir" yaml:"data_dir"`
	PredDir           string `mapstructure:"pred_dir" yaml:"pred_dir"`
	TableDir          string `mapstructure:"table_dir" yaml:"table_dir"`
}

// Dataset is a resolved dataset block, carrying its own name.
type Dataset struct {
	Name string
	DatasetConfig
}

// DefaultAnalysis returns the documented defaults.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		NIPD:        5000,
		TrialRuns:   1000,
		SeedRuns:    100,
		Alpha:       0.05,
		HRThreshold: 1.0,
		Seed:        0,
		Workers:     4,
		RowTimeout:  30 * time.Minute,
		Landmarks:   []int{2499, 2500},
		TailTrim:    0.1,
		DiffPoints:  5000,
	}
}

// SetDefaults registers defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	d := DefaultAnalysis()
	v.SetDefault("table_dir", ".")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("analysis.n_ipd", d.NIPD)
	v.SetDefault("analysis.trial_runs", d.TrialRuns)
	v.SetDefault("analysis.seed_runs", d.SeedRuns)
	v.SetDefault("analysis.alpha", d.Alpha)
	v.SetDefault("analysis.hr_threshold", d.HRThreshold)
	v.SetDefault("analysis.seed", d.Seed)
	v.SetDefault("analysis.workers", d.Workers)
	v.SetDefault("analysis.row_timeout", d.RowTimeout)
	v.SetDefault("analysis.landmarks", d.Landmarks)
	v.SetDefault("analysis.tail_trim", d.TailTrim)
	v.SetDefault("analysis.diff_points", d.DiffPoints)
	v.SetDefault("analysis.keep_runs", false)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
}

// Load reads the YAML configuration at path (or combosurv.yaml in the working
// directory when path is empty), applies .env and COMBOSURV_* overrides and
// validates the result.
func Load(path string) (*Config, error) {
	// a missing .env is normal; system environment is used instead
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("combosurv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to read configuration")
	}
	return FromViper(v)
}

// FromViper decodes and validates an already-populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to decode configuration")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "INFO")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Dataset resolves a dataset block by name. Viper lower-cases keys, so the
// lookup is case-insensitive. A dataset without its own table_dir inherits the
// top-level one.
func (c *Config) Dataset(name string) (Dataset, error) {
	ds, ok := c.Datasets[strings.ToLower(name)]
	if !ok {
		return Dataset{}, errors.ConfigInvalid("dataset " + strconv.Quote(name) + " is not configured")
	}
	if ds.TableDir == "" {
		ds.TableDir = c.TableDir
	}
	if ds.DataDir == "" {
		return Dataset{}, errors.ConfigInvalid("dataset " + strconv.Quote(name) + " has no data_dir")
	}
	return Dataset{Name: name, DatasetConfig: ds}, nil
}

// RequireFile checks that a configured input file exists, so shared setup
// errors surface before any row is processed.
func RequireFile(kind, path string) error {
	if path == "" {
		return errors.ConfigInvalid(kind + " is not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(errors.NotFound(kind), "%s %s", kind, filepath.Clean(path))
	}
	return nil
}

func validateConfig(config *Config) error {
	a := config.Analysis
	if a.NIPD <= 0 {
		return errors.ConfigInvalid("analysis.n_ipd must be positive")
	}
	if a.TrialRuns <= 0 || a.SeedRuns <= 0 {
		return errors.ConfigInvalid("analysis.trial_runs and analysis.seed_runs must be positive")
	}
	if a.Alpha <= 0 || a.Alpha >= 1 {
		return errors.ConfigInvalid("analysis.alpha must be in (0, 1)")
	}
	if a.HRThreshold <= 0 {
		return errors.ConfigInvalid("analysis.hr_threshold must be positive")
	}
	if a.Workers <= 0 {
		return errors.ConfigInvalid("analysis.workers must be positive")
	}
	if len(a.Landmarks) == 0 {
		return errors.ConfigInvalid("analysis.landmarks must not be empty")
	}
	for _, idx := range a.Landmarks {
		if idx < 0 {
			return errors.ConfigInvalid("analysis.landmarks must be non-negative")
		}
	}
	switch config.Store.Driver {
	case "", "sqlite3", "postgres":
	default:
		return errors.ConfigInvalid("store.driver must be sqlite3 or postgres")
	}
	if config.Store.Driver != "" && config.Store.DSN == "" {
		return errors.ConfigInvalid("store.dsn is required when store.driver is set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
