// Package cli provides CLI-specific logic including configuration loading.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/scorer"
)

// DefaultConfigFile is loaded when no --config flag is given.
const DefaultConfigFile = ".warden.yml"

// RedisURLEnv, when set, switches history to the redis backend unless the
// config file picks a backend explicitly.
const RedisURLEnv = "WARDEN_REDIS_URL"

// History backends.
const (
	HistoryFile  = "file"
	HistoryRedis = "redis"
	HistoryNone  = "none"
)

// Config represents the .warden.yml configuration file.
type Config struct {
	Version  string                   `yaml:"version"`
	Scanners map[string]ScannerConfig `yaml:"scanners"`
	Scoring  ScoringConfig            `yaml:"scoring"`
	Output   OutputConfig             `yaml:"output"`
	CI       CIConfig                 `yaml:"ci"`
	History  HistoryConfig            `yaml:"history"`
	Watch    WatchConfig              `yaml:"watch"`
}

// ScannerConfig configures a single scanner.
type ScannerConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether this scanner is enabled.
// Returns true by default if not explicitly set.
func (s ScannerConfig) IsEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// ScannerEnabled reports whether the named scanner is enabled.
func (c *Config) ScannerEnabled(name string) bool {
	return c.Scanners[name].IsEnabled()
}

// PenaltyConfig overrides the base and cap of one penalty curve.
type PenaltyConfig struct {
	Base *float64 `yaml:"base"`
	Cap  *float64 `yaml:"cap"`
}

// FloorConfig overrides the floor rule.
type FloorConfig struct {
	Threshold *int `yaml:"threshold"`
	Margin    *int `yaml:"margin"`
}

// ScoringConfig tunes the scoring engine. Every field is optional; unset
// fields keep the engine defaults.
type ScoringConfig struct {
	Penalties         map[string]PenaltyConfig `yaml:"penalties"`
	Interaction       *PenaltyConfig           `yaml:"interaction"`
	Confidence        map[string]float64       `yaml:"confidence"`
	Dimensions        map[string]float64       `yaml:"dimensions"`
	ScannerDimensions map[string]string        `yaml:"scanner_dimensions"`
	DefaultDimension  string                   `yaml:"default_dimension"`
	Floor             FloorConfig              `yaml:"floor"`
	InfoNoiseScanners []string                 `yaml:"info_noise_scanners"`
	ExclusionRules    []string                 `yaml:"exclusion_rules"`
}

// OutputConfig controls report output settings.
type OutputConfig struct {
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
	NoColor bool   `yaml:"no_color"`
}

// CIConfig controls CI integration behavior.
type CIConfig struct {
	FailOn        string `yaml:"fail_on"`
	Comment       bool   `yaml:"comment"`
	CommentFormat string `yaml:"comment_format"`
	Status        *bool  `yaml:"status"`
}

// StatusEnabled reports whether a commit status is set. Defaults to true.
func (c CIConfig) StatusEnabled() bool {
	return c.Status == nil || *c.Status
}

// HistoryConfig selects where past scores are kept.
type HistoryConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Limit    int    `yaml:"limit"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoadConfig reads and parses a .warden.yml configuration file.
// If path is empty, it looks for .warden.yml in the current directory.
// If the default config file is not found, sensible defaults are returned.
// If an explicitly specified config file is not found, an error is returned.
func LoadConfig(path string) (*Config, error) {
	useDefault := path == ""
	if useDefault {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && useDefault {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("cli: reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parsing config %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cli: config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults matching the documented
// .warden.yml schema.
func DefaultConfig() *Config {
	cfg := &Config{Version: "1"}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Output.Format == "" {
		cfg.Output.Format = "terminal"
	}
	if cfg.CI.FailOn == "" {
		cfg.CI.FailOn = "high"
	}
	if cfg.CI.CommentFormat == "" {
		cfg.CI.CommentFormat = "markdown"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = ".warden/history.json"
	}
	if cfg.History.Limit == 0 {
		cfg.History.Limit = 200
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	// Switch to redis history when a URL is present in the environment.
	if cfg.History.Backend == "" {
		if url := os.Getenv(RedisURLEnv); url != "" {
			cfg.History.Backend = HistoryRedis
			cfg.History.RedisURL = url
			slog.Info("redis history auto-enabled", "env", RedisURLEnv)
		} else {
			cfg.History.Backend = HistoryFile
		}
	}
	if cfg.History.Backend == HistoryRedis && cfg.History.RedisURL == "" {
		cfg.History.RedisURL = os.Getenv(RedisURLEnv)
	}
}

// Validate checks the settings that do not depend on the scoring engine.
func (c *Config) Validate() error {
	var errs []error

	switch c.Output.Format {
	case "terminal", "json", "markdown":
	default:
		errs = append(errs, fmt.Errorf("output.format %q must be terminal, json or markdown", c.Output.Format))
	}
	if _, err := ParseFailOn(c.CI.FailOn); err != nil {
		errs = append(errs, err)
	}
	switch c.History.Backend {
	case HistoryFile, HistoryNone:
	case HistoryRedis:
		if c.History.RedisURL == "" {
			errs = append(errs, fmt.Errorf("history.redis_url is required for the redis backend (or set %s)", RedisURLEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("history.backend %q must be file, redis or none", c.History.Backend))
	}
	if c.History.Limit < 0 {
		errs = append(errs, fmt.Errorf("history.limit must not be negative"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	return errors.Join(errs...)
}

// ScorerOptions converts the scoring section into calculator options.
// Scoring values are checked when the calculator is built.
func (c *Config) ScorerOptions() ([]scorer.Option, error) {
	s := c.Scoring
	var opts []scorer.Option

	if len(s.Penalties) > 0 {
		penalties := scorer.DefaultSeverityPenalties()
		for name, override := range s.Penalties {
			sev, err := parseSeverity(name)
			if err != nil {
				return nil, fmt.Errorf("cli: scoring.penalties: %w", err)
			}
			penalties[sev] = override.apply(penalties[sev])
		}
		opts = append(opts, scorer.WithSeverityPenalties(penalties))
	}

	if s.Interaction != nil {
		opts = append(opts, scorer.WithInteraction(s.Interaction.apply(scorer.DefaultConfig().Interaction)))
	}

	if len(s.Confidence) > 0 {
		weights := scorer.DefaultConfidenceWeights()
		for name, w := range s.Confidence {
			conf := interfaces.Confidence(strings.ToLower(name))
			switch conf {
			case interfaces.ConfidenceDefinite, interfaces.ConfidenceLikely, interfaces.ConfidencePossible:
			default:
				return nil, fmt.Errorf("cli: scoring.confidence: unknown confidence %q", name)
			}
			weights[conf] = w
		}
		opts = append(opts, scorer.WithConfidenceWeights(weights))
	}

	if len(s.Dimensions) > 0 {
		opts = append(opts, scorer.WithDimensionWeights(dimensionWeights(s.Dimensions)))
	}

	if len(s.ScannerDimensions) > 0 || s.DefaultDimension != "" {
		cfg := scorer.DefaultConfig()
		mapping := cfg.ScannerDimensions
		for scanner, dim := range s.ScannerDimensions {
			mapping[scanner] = interfaces.Dimension(dim)
		}
		opts = append(opts, scorer.WithScannerDimensions(mapping))
		if s.DefaultDimension != "" {
			opts = append(opts, scorer.WithDefaultDimension(interfaces.Dimension(s.DefaultDimension)))
		}
	}

	if s.Floor.Threshold != nil || s.Floor.Margin != nil {
		def := scorer.DefaultConfig()
		threshold, margin := def.FloorThreshold, def.FloorMargin
		if s.Floor.Threshold != nil {
			threshold = *s.Floor.Threshold
		}
		if s.Floor.Margin != nil {
			margin = *s.Floor.Margin
		}
		opts = append(opts, scorer.WithFloor(threshold, margin))
	}

	if s.InfoNoiseScanners != nil || len(s.ExclusionRules) > 0 {
		noise := s.InfoNoiseScanners
		if noise == nil {
			noise = scorer.DefaultInfoNoiseScanners
		}
		policy, err := scorer.NewExclusionPolicy(noise, s.ExclusionRules...)
		if err != nil {
			return nil, fmt.Errorf("cli: scoring.exclusion_rules: %w", err)
		}
		opts = append(opts, scorer.WithExclusionPolicy(policy))
	}

	return opts, nil
}

// BuildCalculator creates a scoring calculator from the config.
func (c *Config) BuildCalculator(logger *slog.Logger) (*scorer.Calculator, error) {
	opts, err := c.ScorerOptions()
	if err != nil {
		return nil, err
	}
	if logger != nil {
		opts = append(opts, scorer.WithLogger(logger))
	}
	calc, err := scorer.NewCalculator(opts...)
	if err != nil {
		return nil, fmt.Errorf("cli: scoring: %w", err)
	}
	return calc, nil
}

func (p PenaltyConfig) apply(def scorer.SeverityPenalty) scorer.SeverityPenalty {
	if p.Base != nil {
		def.Base = *p.Base
	}
	if p.Cap != nil {
		def.Cap = *p.Cap
	}
	return def
}

// dimensionWeights orders configured weights: built-in dimensions first in
// aggregation order, then custom ones by name. Built-in dimensions left out
// of the map get weight zero.
func dimensionWeights(m map[string]float64) []scorer.DimensionWeight {
	var out []scorer.DimensionWeight
	known := make(map[string]bool, len(interfaces.Dimensions))
	for _, d := range interfaces.Dimensions {
		known[string(d)] = true
		out = append(out, scorer.DimensionWeight{Name: d, Weight: m[string(d)]})
	}

	var custom []string
	for name := range m {
		if !known[name] {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	for _, name := range custom {
		out = append(out, scorer.DimensionWeight{Name: interfaces.Dimension(name), Weight: m[name]})
	}
	return out
}

func parseSeverity(name string) (interfaces.Severity, error) {
	sev := interfaces.Severity(strings.ToLower(name))
	for _, s := range interfaces.Severities {
		if s == sev {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", name)
}
