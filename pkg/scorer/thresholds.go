package scorer

import "github.com/toyinlola/warden/pkg/interfaces"

// gradeThresholds is ordered from best to worst; the first minimum a score
// reaches decides its grade.
var gradeThresholds = []struct {
	min   int
	grade string
}{
	{97, "A+"},
	{93, "A"},
	{90, "A-"},
	{87, "B+"},
	{83, "B"},
	{80, "B-"},
	{77, "C+"},
	{73, "C"},
	{70, "C-"},
	{67, "D+"},
	{63, "D"},
	{60, "D-"},
}

// GradeF is the grade for any score below the lowest threshold.
const GradeF = "F"

// Grade maps a score to its letter grade.
// Out-of-range scores are clamped to [0, 100] first.
func Grade(score int) string {
	score = clampScore(score)
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return GradeF
}

// GradeRank returns the position of a grade in the table (0 = A+).
// It returns -1 for unknown grades.
func GradeRank(grade string) int {
	for i, t := range gradeThresholds {
		if t.grade == grade {
			return i
		}
	}
	if grade == GradeF {
		return len(gradeThresholds)
	}
	return -1
}

// Exit codes derived from raw severity counts.
const (
	ExitClean    = 0
	ExitHigh     = 1
	ExitCritical = 2
)

// ExitCode returns the process exit code for a summary.
// It reads the raw counts, so excluded findings still gate and the
// numeric score has no influence.
func ExitCode(s *interfaces.ReportSummary) int {
	switch {
	case s == nil:
		return ExitClean
	case s.Critical > 0:
		return ExitCritical
	case s.High > 0:
		return ExitHigh
	default:
		return ExitClean
	}
}
