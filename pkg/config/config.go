package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LeaguesimConfig contains every tunable that influences a forecast run
// This centralizes all magic numbers and constants for easy adjustment
type LeaguesimConfig struct {
	// === PATHS ===
	AssetsPath  string `yaml:"assets_path" json:"assets_path"`   // base directory (default: $HOME/.leaguesim/)
	CachePath   string `yaml:"cache_path" json:"cache_path"`     // downloaded json cache (default: <assets>/cache/)
	DbPath      string `yaml:"db_path" json:"db_path"`           // sqlite run history (default: <assets>/leaguesim.db)
	ResultsPath string `yaml:"results_path" json:"results_path"` // report output root (default: <assets>/results/)

	// === DATA SOURCE ===
	BaseURL         string `yaml:"base_url" json:"base_url"`                   // default: https://api.sofascore.com/api/v1
	UseBrowser      bool   `yaml:"use_browser" json:"use_browser"`             // always fetch through headless chromium (default: false)
	UseDiskCache    bool   `yaml:"use_disk_cache" json:"use_disk_cache"`       // keep fetched json on disk (default: true)
	FixturePageSize int    `yaml:"fixture_page_size" json:"fixture_page_size"` // events per page returned by the provider (default: 30)

	// === MONTE CARLO STOP CONDITIONS ===
	MaxIterations       int     `yaml:"max_iterations" json:"max_iterations"`               // default: 1,000,000
	MaxDurationSeconds  int     `yaml:"max_duration_seconds" json:"max_duration_seconds"`   // default: 600
	TargetErrorPP       float64 `yaml:"target_error_pp" json:"target_error_pp"`             // percentage points (default: 0.01)
	ErrorIntervalMillis int     `yaml:"error_interval_millis" json:"error_interval_millis"` // default: 1000
	Workers             int     `yaml:"workers" json:"workers"`                             // 0 means NumCPU-1 (default: 0)
	Seed                uint64  `yaml:"seed" json:"seed"`                                   // 0 means time based (default: 0)

	// === MATCH MODEL ===
	HomeAdvantage float64 `yaml:"home_advantage" json:"home_advantage"` // multiplier on home lambda (default: 1.25)
	Rho           float64 `yaml:"rho" json:"rho"`                       // Dixon-Coles correlation (default: -0.1)
	AutoRho       bool    `yaml:"auto_rho" json:"auto_rho"`             // fit rho by maximum likelihood (default: false)
	MaxGoals      int     `yaml:"max_goals" json:"max_goals"`           // score matrix covers 0..MaxGoals (default: 8)

	// === POISSON CACHE ===
	PoissonMaxLambda  float64 `yaml:"poisson_max_lambda" json:"poisson_max_lambda"`   // default: 5.0
	PoissonLambdaStep float64 `yaml:"poisson_lambda_step" json:"poisson_lambda_step"` // default: 0.02
	PoissonExtraGoals int     `yaml:"poisson_extra_goals" json:"poisson_extra_goals"` // goals cached beyond MaxGoals (default: 5)

	// === OUTPUT ===
	PersistRuns  bool   `yaml:"persist_runs" json:"persist_runs"`   // store each run in sqlite (default: true)
	WriteReports bool   `yaml:"write_reports" json:"write_reports"` // write report files per run (default: true)
	LogLevel     string `yaml:"log_level" json:"log_level"`         // default: INFO
}

// DefaultConfig returns the default configuration with all standard values
func DefaultConfig() *LeaguesimConfig {
	assetsPath := defaultAssetsPath()
	return &LeaguesimConfig{
		AssetsPath:  assetsPath,
		CachePath:   filepath.Join(assetsPath, "cache"),
		DbPath:      filepath.Join(assetsPath, "leaguesim.db"),
		ResultsPath: filepath.Join(assetsPath, "results"),

		BaseURL:         "https://api.sofascore.com/api/v1",
		UseBrowser:      false,
		UseDiskCache:    true,
		FixturePageSize: 30,

		MaxIterations:       1_000_000,
		MaxDurationSeconds:  600,
		TargetErrorPP:       0.01,
		ErrorIntervalMillis: 1000,
		Workers:             0,
		Seed:                0,

		HomeAdvantage: 1.25,
		Rho:           -0.1,
		AutoRho:       false,
		MaxGoals:      8,

		PoissonMaxLambda:  5.0,
		PoissonLambdaStep: 0.02,
		PoissonExtraGoals: 5,

		PersistRuns:  true,
		WriteReports: true,
		LogLevel:     "INFO",
	}
}

func defaultAssetsPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "leaguesim")
	}
	return filepath.Join(home, ".leaguesim")
}

// Global configuration instance
var Config *LeaguesimConfig

func init() {
	Config = DefaultConfig()
}

// UpdateConfig replaces the global configuration
func UpdateConfig(newConfig *LeaguesimConfig) {
	Config = newConfig
}

// Clone returns a copy that can be modified without touching the receiver
func (c *LeaguesimConfig) Clone() *LeaguesimConfig {
	cp := *c
	return &cp
}

// LoadConfig reads a YAML or JSON file over the defaults.
// Fields missing from the file keep their default values.
func LoadConfig(path string) (*LeaguesimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse json config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (use .yaml, .yml or .json)", filepath.Ext(path))
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// === CONFIGURATION VALIDATION ===

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *LeaguesimConfig) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.MaxIterations < 1 {
		return fmt.Errorf("MaxIterations must be at least 1, got: %d", config.MaxIterations)
	}
	if config.MaxDurationSeconds < 1 {
		return fmt.Errorf("MaxDurationSeconds must be at least 1, got: %d", config.MaxDurationSeconds)
	}
	if config.TargetErrorPP < 0 {
		return fmt.Errorf("TargetErrorPP cannot be negative, got: %f", config.TargetErrorPP)
	}
	if config.ErrorIntervalMillis < 1 {
		return fmt.Errorf("ErrorIntervalMillis must be at least 1, got: %d", config.ErrorIntervalMillis)
	}
	if config.Workers < 0 {
		return fmt.Errorf("Workers cannot be negative, got: %d", config.Workers)
	}
	if config.HomeAdvantage <= 0 || config.HomeAdvantage > 3 {
		return fmt.Errorf("HomeAdvantage should be in (0, 3], got: %f", config.HomeAdvantage)
	}
	if config.Rho < -0.2 || config.Rho > 0.2 {
		return fmt.Errorf("Rho should be between -0.2 and 0.2, got: %f", config.Rho)
	}
	if config.MaxGoals < 3 || config.MaxGoals > 20 {
		return fmt.Errorf("MaxGoals should be between 3 and 20, got: %d", config.MaxGoals)
	}
	if config.PoissonLambdaStep <= 0 {
		return fmt.Errorf("PoissonLambdaStep must be positive, got: %f", config.PoissonLambdaStep)
	}
	if config.PoissonMaxLambda <= config.PoissonLambdaStep {
		return fmt.Errorf("PoissonMaxLambda must exceed the step, got: %f", config.PoissonMaxLambda)
	}
	if config.PoissonExtraGoals < 0 {
		return fmt.Errorf("PoissonExtraGoals cannot be negative, got: %d", config.PoissonExtraGoals)
	}
	if config.FixturePageSize < 1 {
		return fmt.Errorf("FixturePageSize must be at least 1, got: %d", config.FixturePageSize)
	}
	return nil
}

// === HELPER FUNCTIONS FOR EASY ACCESS ===

// WorkerCount resolves the configured worker count, 0 meaning all but one CPU.
// The result may be zero or less on a single core machine.
func (c *LeaguesimConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU() - 1
}

func (c *LeaguesimConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds) * time.Second
}

func (c *LeaguesimConfig) ErrorInterval() time.Duration {
	return time.Duration(c.ErrorIntervalMillis) * time.Millisecond
}

// PoissonGoals is the goal range held by the poisson cache
func (c *LeaguesimConfig) PoissonGoals() int {
	return c.MaxGoals + c.PoissonExtraGoals
}

// GetDatabasePath returns the location of the sqlite database
func GetDatabasePath() string {
	return Config.DbPath
}

