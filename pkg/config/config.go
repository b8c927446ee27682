// Package config provides configuration loading and validation for regiontree.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkloadSize = errors.New("workload size must be positive")
	ErrInvalidRemoveRatio  = errors.New("workload remove ratio must be within [0, 1)")
	ErrInvalidVerifyEvery  = errors.New("workload verify_every must not be negative")
	ErrInvalidRegionSize   = errors.New("invalid workload region size")
	ErrInvalidThreshold    = errors.New("hibernation threshold must not be negative")
	ErrInvalidLogFormat    = errors.New("invalid logging format")
	ErrInvalidLogLevel     = errors.New("invalid logging level")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidDuration     = errors.New("soak durations must be positive")
)

// EnvPrefix prefixes every environment override, e.g. REGIONTREE_WORKLOAD_SEED.
const EnvPrefix = "REGIONTREE"

var (
	logFormats = []string{"text", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

// Config holds all configuration for regiontree.
type Config struct {
	Tree     TreeConfig     `mapstructure:"tree"     yaml:"tree"`
	Workload WorkloadConfig `mapstructure:"workload" yaml:"workload"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Soak     SoakConfig     `mapstructure:"soak"     yaml:"soak"`
}

// TreeConfig holds tree and arena settings.
type TreeConfig struct {
	CheckGeneration      bool `mapstructure:"check_generation"      yaml:"check_generation"`
	HibernationThreshold int  `mapstructure:"hibernation_threshold" yaml:"hibernation_threshold"`
}

// WorkloadConfig drives the generated operation streams.
type WorkloadConfig struct {
	RegionSize  string  `mapstructure:"region_size"  yaml:"region_size"`
	RemoveRatio float64 `mapstructure:"remove_ratio" yaml:"remove_ratio"`
	Seed        int64   `mapstructure:"seed"         yaml:"seed"`
	Size        int     `mapstructure:"size"         yaml:"size"`
	VerifyEvery int     `mapstructure:"verify_every" yaml:"verify_every"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig holds metrics and tracing export settings.
type MetricsConfig struct {
	Addr         string  `mapstructure:"addr"          yaml:"addr"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"  yaml:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"  yaml:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
}

// SoakConfig holds settings for the long-running soak loop.
type SoakConfig struct {
	Duration     time.Duration `mapstructure:"duration"      yaml:"duration"`
	ReportPeriod time.Duration `mapstructure:"report_period" yaml:"report_period"`
}

// RegionBytes returns the parsed workload region size.
func (w WorkloadConfig) RegionBytes() (uint64, error) {
	size, err := humanize.ParseBytes(w.RegionSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRegionSize, err)
	}

	if size == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRegionSize, w.RegionSize)
	}

	return size, nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("regiontree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/regiontree")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tree.check_generation", DefaultTreeCheckGeneration)
	viperCfg.SetDefault("tree.hibernation_threshold", DefaultTreeHibernationThreshold)

	viperCfg.SetDefault("workload.size", DefaultWorkloadSize)
	viperCfg.SetDefault("workload.seed", DefaultWorkloadSeed)
	viperCfg.SetDefault("workload.remove_ratio", DefaultWorkloadRemoveRatio)
	viperCfg.SetDefault("workload.verify_every", DefaultWorkloadVerifyEvery)
	viperCfg.SetDefault("workload.region_size", DefaultWorkloadRegionSize)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("metrics.addr", DefaultMetricsAddr)
	viperCfg.SetDefault("metrics.otlp_endpoint", DefaultMetricsOTLPEndpoint)
	viperCfg.SetDefault("metrics.otlp_headers", "")
	viperCfg.SetDefault("metrics.otlp_insecure", DefaultMetricsOTLPInsecure)
	viperCfg.SetDefault("metrics.sample_ratio", DefaultMetricsSampleRatio)

	viperCfg.SetDefault("soak.duration", DefaultSoakDuration)
	viperCfg.SetDefault("soak.report_period", DefaultSoakReportPeriod)
}

func validateConfig(config *Config) error {
	if config.Tree.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Tree.HibernationThreshold)
	}

	if config.Workload.Size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkloadSize, config.Workload.Size)
	}

	if config.Workload.RemoveRatio < 0 || config.Workload.RemoveRatio >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRemoveRatio, config.Workload.RemoveRatio)
	}

	if config.Workload.VerifyEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVerifyEvery, config.Workload.VerifyEvery)
	}

	_, err := config.Workload.RegionBytes()
	if err != nil {
		return err
	}

	if !slices.Contains(logFormats, config.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if !slices.Contains(logLevels, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if config.Metrics.SampleRatio < 0 || config.Metrics.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Metrics.SampleRatio)
	}

	if config.Soak.Duration <= 0 || config.Soak.ReportPeriod <= 0 {
		return fmt.Errorf("%w: duration %s, report period %s",
			ErrInvalidDuration, config.Soak.Duration, config.Soak.ReportPeriod)
	}

	return nil
}
