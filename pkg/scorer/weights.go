// Package scorer converts scanner findings into a bounded risk score,
// a letter grade and per-dimension sub-scores.
package scorer

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// ErrInvalidConfig is returned by Config.Validate for unusable tunings.
var ErrInvalidConfig = errors.New("scorer: invalid config")

// Default severity penalties: base points for the first finding and the hard cap.
const (
	DefaultCriticalBase = 20.0
	DefaultCriticalCap  = 50.0
	DefaultHighBase     = 5.0
	DefaultHighCap      = 30.0
	DefaultMediumBase   = 1.5
	DefaultMediumCap    = 15.0
)

// Default interaction surcharge when critical and high findings co-occur.
const (
	DefaultInteractionBase = 5.0
	DefaultInteractionCap  = 10.0
)

// Default confidence weights.
const (
	DefaultWeightDefinite = 1.0
	DefaultWeightLikely   = 0.8
	DefaultWeightPossible = 0.6
)

// Default floor rule: a dimension below FloorThreshold caps the composite at
// that dimension's score plus FloorMargin.
const (
	DefaultFloorThreshold = 60
	DefaultFloorMargin    = 10
)

// weightTolerance is how far dimension weights may drift from 1.0 in total.
const weightTolerance = 1e-9

// SeverityPenalty is the base/cap pair of the diminishing-returns curve.
type SeverityPenalty struct {
	Base float64 `yaml:"base" json:"base"`
	Cap  float64 `yaml:"cap" json:"cap"`
}

// SeverityPenalties maps severities to their penalty curve.
type SeverityPenalties map[interfaces.Severity]SeverityPenalty

// ConfidenceWeights maps confidence levels to their weight in (0, 1].
type ConfidenceWeights map[interfaces.Confidence]float64

// ScannerDimensions maps scanner names to the dimension they feed.
type ScannerDimensions map[string]interfaces.Dimension

// DimensionWeight is one entry of the ordered composite weighting.
type DimensionWeight struct {
	Name   interfaces.Dimension
	Weight float64
}

// Config holds every tunable table of the engine.
// A Calculator copies it on construction; later changes to the caller's
// maps do not affect scoring.
type Config struct {
	Penalties         SeverityPenalties
	Interaction       SeverityPenalty
	Confidence        ConfidenceWeights
	Dimensions        []DimensionWeight
	ScannerDimensions ScannerDimensions
	DefaultDimension  interfaces.Dimension
	FloorThreshold    int
	FloorMargin       int
}

// DefaultSeverityPenalties returns the reference penalty curves.
func DefaultSeverityPenalties() SeverityPenalties {
	return SeverityPenalties{
		interfaces.SeverityCritical: {Base: DefaultCriticalBase, Cap: DefaultCriticalCap},
		interfaces.SeverityHigh:     {Base: DefaultHighBase, Cap: DefaultHighCap},
		interfaces.SeverityMedium:   {Base: DefaultMediumBase, Cap: DefaultMediumCap},
		interfaces.SeverityInfo:     {Base: 0, Cap: 0},
	}
}

// DefaultConfidenceWeights returns the reference confidence table.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		interfaces.ConfidenceDefinite: DefaultWeightDefinite,
		interfaces.ConfidenceLikely:   DefaultWeightLikely,
		interfaces.ConfidencePossible: DefaultWeightPossible,
	}
}

// DefaultDimensionWeights returns the reference composite weights.
func DefaultDimensionWeights() []DimensionWeight {
	return []DimensionWeight{
		{Name: interfaces.DimensionCodeSafety, Weight: 0.35},
		{Name: interfaces.DimensionConfigSafety, Weight: 0.25},
		{Name: interfaces.DimensionDefenseScore, Weight: 0.25},
		{Name: interfaces.DimensionEnvironmentSafety, Weight: 0.15},
	}
}

// DefaultScannerDimensions returns the reference scanner classification.
// Scanners missing from the table fall into the default dimension.
func DefaultScannerDimensions() ScannerDimensions {
	return ScannerDimensions{
		"secrets":          interfaces.DimensionCodeSafety,
		"prompt-injection": interfaces.DimensionCodeSafety,
		"code-patterns":    interfaces.DimensionCodeSafety,
		"skills":           interfaces.DimensionCodeSafety,
		"mcp-config":       interfaces.DimensionConfigSafety,
		"permissions":      interfaces.DimensionConfigSafety,
		"hooks":            interfaces.DimensionConfigSafety,
		"defenses":         interfaces.DimensionDefenseScore,
		"guardrails":       interfaces.DimensionDefenseScore,
		"supply-chain":     interfaces.DimensionEnvironmentSafety,
		"dependencies":     interfaces.DimensionEnvironmentSafety,
		"environment":      interfaces.DimensionEnvironmentSafety,
		"image-ocr":        interfaces.DimensionEnvironmentSafety,
	}
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Penalties:         DefaultSeverityPenalties(),
		Interaction:       SeverityPenalty{Base: DefaultInteractionBase, Cap: DefaultInteractionCap},
		Confidence:        DefaultConfidenceWeights(),
		Dimensions:        DefaultDimensionWeights(),
		ScannerDimensions: DefaultScannerDimensions(),
		DefaultDimension:  interfaces.DimensionCodeSafety,
		FloorThreshold:    DefaultFloorThreshold,
		FloorMargin:       DefaultFloorMargin,
	}
}

// Validate reports whether the config can be used for scoring.
func (c Config) Validate() error {
	for sev, p := range c.Penalties {
		if p.Base < 0 || p.Cap < 0 || math.IsNaN(p.Base) || math.IsNaN(p.Cap) {
			return fmt.Errorf("%w: penalty for %s must be non-negative", ErrInvalidConfig, sev)
		}
	}
	if c.Interaction.Base < 0 || c.Interaction.Cap < 0 {
		return fmt.Errorf("%w: interaction penalty must be non-negative", ErrInvalidConfig)
	}
	for conf, w := range c.Confidence {
		if !(w > 0 && w <= 1) {
			return fmt.Errorf("%w: confidence weight for %s must be in (0, 1], got %v", ErrInvalidConfig, conf, w)
		}
	}

	if len(c.Dimensions) == 0 {
		return fmt.Errorf("%w: at least one dimension is required", ErrInvalidConfig)
	}
	known := make(map[interfaces.Dimension]bool, len(c.Dimensions))
	var total float64
	for _, d := range c.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("%w: dimension name must not be empty", ErrInvalidConfig)
		}
		if known[d.Name] {
			return fmt.Errorf("%w: dimension %s listed twice", ErrInvalidConfig, d.Name)
		}
		if d.Weight < 0 {
			return fmt.Errorf("%w: dimension %s has negative weight", ErrInvalidConfig, d.Name)
		}
		known[d.Name] = true
		total += d.Weight
	}
	if math.Abs(total-1.0) > weightTolerance {
		return fmt.Errorf("%w: dimension weights sum to %v, want 1.0", ErrInvalidConfig, total)
	}

	if !known[c.DefaultDimension] {
		return fmt.Errorf("%w: default dimension %q is not configured", ErrInvalidConfig, c.DefaultDimension)
	}
	for scanner, d := range c.ScannerDimensions {
		if !known[d] {
			return fmt.Errorf("%w: scanner %s maps to unknown dimension %q", ErrInvalidConfig, scanner, d)
		}
	}
	return nil
}

// clone returns a deep copy so the calculator never shares maps with callers.
func (c Config) clone() Config {
	out := c
	out.Penalties = maps.Clone(c.Penalties)
	out.Confidence = maps.Clone(c.Confidence)
	out.ScannerDimensions = maps.Clone(c.ScannerDimensions)
	out.Dimensions = slices.Clone(c.Dimensions)
	return out
}

// Penalty returns the curve for a severity, falling back to a zero curve for unknown levels.
func (p SeverityPenalties) Penalty(s interfaces.Severity) SeverityPenalty {
	return p[s]
}

// Weight returns the weight for a confidence level.
// Empty and unknown levels weigh like definite findings.
func (w ConfidenceWeights) Weight(c interfaces.Confidence) float64 {
	if v, ok := w[c.OrDefault()]; ok {
		return v
	}
	if v, ok := w[interfaces.ConfidenceDefinite]; ok {
		return v
	}
	return DefaultWeightDefinite
}

// Dimension returns the dimension for a scanner, or def when the scanner is unmapped.
func (m ScannerDimensions) Dimension(scanner string, def interfaces.Dimension) interfaces.Dimension {
	if d, ok := m[scanner]; ok {
		return d
	}
	return def
}
