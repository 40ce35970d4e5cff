package scorer

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// DefaultInfoNoiseScanners lists scanners whose info findings are low-signal
// heuristics that must not count toward scoring.
var DefaultInfoNoiseScanners = []string{"secrets"}

// ExclusionPolicy decides whether a finding counts toward scoring.
// Excluded findings still appear in raw counts.
//
// The built-in rules are: a finding flagged as coming from a test or fixture
// file is excluded, and so is an info finding from an info-noise scanner.
// Extra rules are CEL expressions over scanner, severity, confidence,
// test_file and file that must evaluate to a bool.
type ExclusionPolicy struct {
	infoNoise map[string]bool
	rules     []exclusionRule
	logger    *slog.Logger
}

type exclusionRule struct {
	expr string
	prg  cel.Program
}

// NewExclusionPolicy builds a policy from the info-noise scanner allowlist
// and optional CEL rules. Rules are compiled once; a rule that does not
// compile or does not return a bool is an error.
func NewExclusionPolicy(infoNoiseScanners []string, rules ...string) (*ExclusionPolicy, error) {
	p := &ExclusionPolicy{
		infoNoise: make(map[string]bool, len(infoNoiseScanners)),
		logger:    slog.Default(),
	}
	for _, name := range infoNoiseScanners {
		p.infoNoise[name] = true
	}

	if len(rules) == 0 {
		return p, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("scanner", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("confidence", cel.StringType),
		cel.Variable("test_file", cel.BoolType),
		cel.Variable("file", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("scorer: creating exclusion environment: %w", err)
	}

	for _, expr := range rules {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("scorer: compiling exclusion rule %q: %w", expr, iss.Err())
		}
		if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
			return nil, fmt.Errorf("scorer: exclusion rule %q must return bool, got %v", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("scorer: building exclusion rule %q: %w", expr, err)
		}
		p.rules = append(p.rules, exclusionRule{expr: expr, prg: prg})
	}

	return p, nil
}

// DefaultExclusionPolicy returns the reference policy with no extra rules.
func DefaultExclusionPolicy() *ExclusionPolicy {
	p, _ := NewExclusionPolicy(DefaultInfoNoiseScanners)
	return p
}

// WithPolicyLogger returns a copy of the policy that logs rule evaluation
// failures to l. The receiver is left unchanged.
func (p *ExclusionPolicy) WithPolicyLogger(l *slog.Logger) *ExclusionPolicy {
	cp := *p
	if l != nil {
		cp.logger = l
	}
	return &cp
}

// InfoNoiseScanners returns the sorted info-noise allowlist.
func (p *ExclusionPolicy) InfoNoiseScanners() []string {
	names := make([]string, 0, len(p.infoNoise))
	for name := range p.infoNoise {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Rules returns the source of the configured CEL rules.
func (p *ExclusionPolicy) Rules() []string {
	out := make([]string, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.expr
	}
	return out
}

// Excluded reports whether f, produced by scanner, is left out of scoring.
func (p *ExclusionPolicy) Excluded(scanner string, f interfaces.Finding) bool {
	if f.TestFile {
		return true
	}
	if f.Severity == interfaces.SeverityInfo && p.infoNoise[scanner] {
		return true
	}
	if len(p.rules) == 0 {
		return false
	}

	vars := map[string]any{
		"scanner":    scanner,
		"severity":   string(f.Severity),
		"confidence": string(f.Confidence.OrDefault()),
		"test_file":  f.TestFile,
		"file":       f.File,
	}
	for _, r := range p.rules {
		out, _, err := r.prg.Eval(vars)
		if err != nil {
			// A failing rule never hides a finding.
			p.logger.Warn("exclusion rule failed", "rule", r.expr, "scanner", scanner, "error", err)
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return true
		}
	}
	return false
}
