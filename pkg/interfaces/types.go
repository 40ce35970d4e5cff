// Package interfaces defines the shared types and contracts for all Warden modules.
// This package has ZERO dependencies on any other pkg/ package.
// Scanners produce these types; the scorer and reporters only read them.
package interfaces

import "time"

// Severity levels for findings, ordered critical > high > medium > info.
type Severity string

const (
	SeverityCritical Severity = "critical" // Exploitable or already leaked
	SeverityHigh     Severity = "high"     // Serious weakness
	SeverityMedium   Severity = "medium"   // Should fix
	SeverityInfo     Severity = "info"     // FYI only, never penalized
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityInfo}

// Rank returns the sort priority of a severity (critical first).
// Unknown severities sort after info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityInfo:
		return 3
	default:
		return 4
	}
}

// Confidence describes how certain a scanner is about a finding.
type Confidence string

const (
	ConfidenceDefinite Confidence = "definite"
	ConfidenceLikely   Confidence = "likely"
	ConfidencePossible Confidence = "possible"
)

// OrDefault returns the confidence, treating an empty value as definite.
func (c Confidence) OrDefault() Confidence {
	if c == "" {
		return ConfidenceDefinite
	}
	return c
}

// Dimension is a named risk category that owns its own sub-score.
type Dimension string

const (
	DimensionCodeSafety        Dimension = "codeSafety"
	DimensionConfigSafety      Dimension = "configSafety"
	DimensionDefenseScore      Dimension = "defenseScore"
	DimensionEnvironmentSafety Dimension = "environmentSafety"
)

// Dimensions lists every dimension in aggregation order.
var Dimensions = []Dimension{
	DimensionCodeSafety,
	DimensionConfigSafety,
	DimensionDefenseScore,
	DimensionEnvironmentSafety,
}

// Finding represents a single issue detected by a scanner.
// File, Line, Title, Message and Recommendation are passthrough fields;
// the scorer never interprets them.
type Finding struct {
	ID             string         `json:"id,omitempty"`
	Scanner        string         `json:"scanner"`
	Severity       Severity       `json:"severity"`
	Confidence     Confidence     `json:"confidence,omitempty"`
	TestFile       bool           `json:"test_file,omitempty"`
	File           string         `json:"file,omitempty"`
	Line           int            `json:"line,omitempty"`
	Title          string         `json:"title"`
	Message        string         `json:"message,omitempty"`
	Recommendation string         `json:"recommendation,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ScanResult is what each scanner returns.
type ScanResult struct {
	Scanner      string        `json:"scanner"`
	Findings     []Finding     `json:"findings"`
	FilesScanned int           `json:"files_scanned"`
	Duration     time.Duration `json:"duration"`
	Error        error         `json:"-"`
}

// SeverityCounts holds a count per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Info     int `json:"info"`
}

// Add increments the counter for the given severity.
// Unknown severities are not counted.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityInfo:
		c.Info++
	}
}

// Get returns the counter for the given severity.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityInfo:
		return c.Info
	default:
		return 0
	}
}

// Total returns the sum of all counters.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Info
}

// DimensionReport is the sub-score of a single dimension.
type DimensionReport struct {
	Score    int    `json:"score"`
	Grade    string `json:"grade"`
	Findings int    `json:"findings"`
}

// ReportSummary is the scoring engine's output for one scan invocation.
// Raw counts include excluded findings; the score only reflects scoring findings.
type ReportSummary struct {
	Critical         int                           `json:"critical"`
	High             int                           `json:"high"`
	Medium           int                           `json:"medium"`
	Info             int                           `json:"info"`
	TotalFindings    int                           `json:"totalFindings"`
	ScoringFindings  int                           `json:"scoringFindings"`
	Score            int                           `json:"score"`
	Grade            string                        `json:"grade"`
	ScannedFiles     int                           `json:"scannedFiles"`
	Duration         time.Duration                 `json:"duration"`
	Dimensions       map[Dimension]DimensionReport `json:"dimensions"`
	ScannerBreakdown map[string]SeverityCounts     `json:"scannerBreakdown"`
}

// Report is the final output of a Warden scan run.
type Report struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Target    string        `json:"target"`
	Summary   ReportSummary `json:"summary"`
	Findings  []Finding     `json:"findings"`
	Failed    []string      `json:"failed_scanners,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// StatusState represents a VCS commit status.
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
	StatusError   StatusState = "error"
)
