package cli

import (
	"fmt"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/scorer"
)

// FailPolicy decides the process exit code for a scored run.
type FailPolicy struct {
	mode  string
	grade string
}

// ParseFailOn parses a ci.fail_on value: "critical", "high", "none" or
// "grade:<G>" where G is a letter grade such as B or C+.
func ParseFailOn(s string) (FailPolicy, error) {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "", "high":
		return FailPolicy{mode: "high"}, nil
	case "critical":
		return FailPolicy{mode: "critical"}, nil
	case "none", "never":
		return FailPolicy{mode: "none"}, nil
	}

	if grade, ok := strings.CutPrefix(v, "grade:"); ok {
		grade = strings.ToUpper(strings.TrimSpace(grade))
		if scorer.GradeRank(grade) < 0 {
			return FailPolicy{}, fmt.Errorf("ci.fail_on: unknown grade %q", grade)
		}
		return FailPolicy{mode: "grade", grade: grade}, nil
	}
	return FailPolicy{}, fmt.Errorf("ci.fail_on %q must be critical, high, none or grade:<G>", s)
}

// ExitCode returns the exit code for a summary under this policy.
//
//	high:      2 on any critical, 1 on any high, else 0
//	critical:  2 on any critical, else 0
//	grade:<G>: the high policy, raised to 1 when the composite grade is
//	           worse than G
//	none:      always 0
func (p FailPolicy) ExitCode(s *interfaces.ReportSummary) int {
	if s == nil {
		return scorer.ExitClean
	}
	switch p.mode {
	case "critical":
		if s.Critical > 0 {
			return scorer.ExitCritical
		}
		return scorer.ExitClean
	case "grade":
		code := scorer.ExitCode(s)
		if code == scorer.ExitClean && scorer.GradeRank(s.Grade) > scorer.GradeRank(p.grade) {
			code = scorer.ExitHigh
		}
		return code
	case "none":
		return scorer.ExitClean
	default:
		return scorer.ExitCode(s)
	}
}

// String returns the policy in ci.fail_on syntax.
func (p FailPolicy) String() string {
	if p.mode == "grade" {
		return "grade:" + p.grade
	}
	if p.mode == "" {
		return "high"
	}
	return p.mode
}
