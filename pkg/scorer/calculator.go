package scorer

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// Calculator computes report summaries from scan results.
// It holds only immutable configuration and is safe for concurrent use.
type Calculator struct {
	cfg        Config
	exclusions *ExclusionPolicy
	logger     *slog.Logger
}

// Option configures the Calculator.
type Option func(*Calculator)

// WithConfig replaces the whole tuning.
func WithConfig(cfg Config) Option {
	return func(c *Calculator) {
		c.cfg = cfg.clone()
	}
}

// WithSeverityPenalties overrides the default severity penalty curves.
func WithSeverityPenalties(p SeverityPenalties) Option {
	return func(c *Calculator) {
		c.cfg.Penalties = p
	}
}

// WithInteraction overrides the critical/high interaction surcharge.
func WithInteraction(p SeverityPenalty) Option {
	return func(c *Calculator) {
		c.cfg.Interaction = p
	}
}

// WithConfidenceWeights overrides the default confidence weights.
func WithConfidenceWeights(w ConfidenceWeights) Option {
	return func(c *Calculator) {
		c.cfg.Confidence = w
	}
}

// WithDimensionWeights overrides the ordered composite weights.
func WithDimensionWeights(w []DimensionWeight) Option {
	return func(c *Calculator) {
		c.cfg.Dimensions = w
	}
}

// WithScannerDimensions overrides the scanner classification table.
func WithScannerDimensions(m ScannerDimensions) Option {
	return func(c *Calculator) {
		c.cfg.ScannerDimensions = m
	}
}

// WithDefaultDimension sets the dimension for scanners missing from the
// classification table.
func WithDefaultDimension(d interfaces.Dimension) Option {
	return func(c *Calculator) {
		c.cfg.DefaultDimension = d
	}
}

// WithFloor overrides the weakest-link floor rule.
func WithFloor(threshold, margin int) Option {
	return func(c *Calculator) {
		c.cfg.FloorThreshold = threshold
		c.cfg.FloorMargin = margin
	}
}

// WithExclusionPolicy overrides the default exclusion policy.
func WithExclusionPolicy(p *ExclusionPolicy) Option {
	return func(c *Calculator) {
		if p != nil {
			c.exclusions = p
		}
	}
}

// WithLogger sets the logger used for debug output and for exclusion rule
// failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCalculator creates a scorer with optional configuration.
// It fails when the resulting config does not pass Validate.
func NewCalculator(opts ...Option) (*Calculator, error) {
	c := &Calculator{
		cfg:        DefaultConfig(),
		exclusions: DefaultExclusionPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.clone()
	c.exclusions = c.exclusions.WithPolicyLogger(c.logger)

	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewCalculator is NewCalculator for configurations known to be valid.
func MustNewCalculator(opts ...Option) *Calculator {
	c, err := NewCalculator(opts...)
	if err != nil {
		panic(fmt.Sprintf("scorer: %v", err))
	}
	return c
}

// Config returns a copy of the calculator's tuning.
func (c *Calculator) Config() Config {
	return c.cfg.clone()
}

// DimensionFor returns the dimension a scanner's findings are scored in.
func (c *Calculator) DimensionFor(scanner string) interfaces.Dimension {
	return c.cfg.ScannerDimensions.Dimension(scanner, c.cfg.DefaultDimension)
}

// Explanation is the full audit trail of one evaluation.
type Explanation struct {
	Flat       PenaltyBreakdown                          `json:"flat"`
	Dimensions map[interfaces.Dimension]PenaltyBreakdown `json:"dimensions"`
	Weighted   int                                       `json:"weighted"`
	MinDim     int                                       `json:"min_dimension"`
	FloorCap   *int                                      `json:"floor_cap,omitempty"`
	Composite  int                                       `json:"composite"`
}

// Summarize computes the report summary for a set of scan results.
// Nil results are skipped; result and finding order do not matter.
func (c *Calculator) Summarize(results []*interfaces.ScanResult) *interfaces.ReportSummary {
	summary, _ := c.Evaluate(results)
	return summary
}

// Explain returns the per-dimension penalty components behind Summarize.
func (c *Calculator) Explain(results []*interfaces.ScanResult) *Explanation {
	_, exp := c.Evaluate(results)
	return exp
}

// Evaluate scores results once and returns both the summary and the
// explanation behind it.
func (c *Calculator) Evaluate(results []*interfaces.ScanResult) (*interfaces.ReportSummary, *Explanation) {
	summary := &interfaces.ReportSummary{
		Dimensions:       make(map[interfaces.Dimension]interfaces.DimensionReport, len(c.cfg.Dimensions)),
		ScannerBreakdown: make(map[string]interfaces.SeverityCounts),
	}

	var (
		raw     interfaces.SeverityCounts
		scoring []interfaces.Finding
		byDim   = make(map[interfaces.Dimension][]interfaces.Finding, len(c.cfg.Dimensions))
	)

	for _, result := range results {
		if result == nil {
			continue
		}
		summary.ScannedFiles += result.FilesScanned
		summary.Duration += result.Duration

		for _, f := range result.Findings {
			origin := originOf(result, f)

			summary.TotalFindings++
			raw.Add(f.Severity)
			counts := summary.ScannerBreakdown[origin]
			counts.Add(f.Severity)
			summary.ScannerBreakdown[origin] = counts

			if c.exclusions.Excluded(origin, f) {
				continue
			}
			scoring = append(scoring, f)
			dim := c.DimensionFor(origin)
			byDim[dim] = append(byDim[dim], f)
		}
	}

	summary.Critical = raw.Critical
	summary.High = raw.High
	summary.Medium = raw.Medium
	summary.Info = raw.Info
	summary.ScoringFindings = len(scoring)

	exp := &Explanation{
		Flat:       c.explain(scoring),
		Dimensions: make(map[interfaces.Dimension]PenaltyBreakdown, len(c.cfg.Dimensions)),
	}

	var weighted float64
	minDim := 100
	for _, d := range c.cfg.Dimensions {
		b := c.explain(byDim[d.Name])
		exp.Dimensions[d.Name] = b
		summary.Dimensions[d.Name] = interfaces.DimensionReport{
			Score:    b.Score,
			Grade:    Grade(b.Score),
			Findings: b.Findings,
		}
		weighted += float64(b.Score) * d.Weight
		if b.Score < minDim {
			minDim = b.Score
		}
	}
	exp.Weighted = clampScore(int(math.Round(weighted)))
	exp.MinDim = minDim

	if len(scoring) == 0 {
		exp.Composite = exp.Flat.Score
	} else {
		exp.Composite = exp.Weighted
		if minDim < c.cfg.FloorThreshold {
			floorCap := minDim + c.cfg.FloorMargin
			exp.FloorCap = &floorCap
			if floorCap < exp.Composite {
				exp.Composite = floorCap
			}
		}
	}

	summary.Score = exp.Composite
	summary.Grade = Grade(summary.Score)

	c.logger.Debug("risk score computed",
		"score", summary.Score,
		"grade", summary.Grade,
		"weighted", exp.Weighted,
		"min_dimension", minDim,
		"findings", summary.TotalFindings,
		"scoring_findings", summary.ScoringFindings,
	)

	return summary, exp
}

// originOf returns the scanner a finding is attributed to: its own scanner
// field when set, otherwise the result that carried it.
func originOf(result *interfaces.ScanResult, f interfaces.Finding) string {
	if f.Scanner != "" {
		return f.Scanner
	}
	return result.Scanner
}
