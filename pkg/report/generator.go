// Package report assembles scan results and their score summary into a
// Report and renders it for terminals, JSON consumers and PR comments.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// Formatter renders a report.
type Formatter interface {
	Format(w io.Writer, report *interfaces.Report) error
}

// Supported output formats.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// NewFormatter returns the formatter for a format name.
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", FormatTerminal, "text":
		return NewTerminalFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatMarkdown, "md":
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("report: unknown format %q (want terminal, json or markdown)", format)
	}
}

// Generator builds reports from scan results and a score summary.
type Generator struct {
	target string
	now    func() time.Time
	newID  func() string
}

// NewGenerator creates a report generator for the given scan target.
func NewGenerator(target string) *Generator {
	return &Generator{
		target: target,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Generate produces a Report. Findings from all successful scanners are
// merged and sorted critical first, then by file and line. Scanners that
// failed are listed in Failed.
func (g *Generator) Generate(results []*interfaces.ScanResult, summary *interfaces.ReportSummary) *interfaces.Report {
	findings := collectFindings(results)
	sortFindings(findings)

	var rs interfaces.ReportSummary
	if summary != nil {
		rs = *summary
	}

	return &interfaces.Report{
		ID:        g.newID(),
		Timestamp: g.now().UTC(),
		Target:    g.target,
		Summary:   rs,
		Findings:  findings,
		Failed:    failedScanners(results),
		Duration:  rs.Duration,
	}
}

// collectFindings merges findings from all scan results.
func collectFindings(results []*interfaces.ScanResult) []interfaces.Finding {
	all := []interfaces.Finding{}
	for _, r := range results {
		if r == nil || r.Error != nil {
			continue
		}
		all = append(all, r.Findings...)
	}
	return all
}

func failedScanners(results []*interfaces.ScanResult) []string {
	var failed []string
	for _, r := range results {
		if r != nil && r.Error != nil {
			failed = append(failed, r.Scanner)
		}
	}
	sort.Strings(failed)
	return failed
}

// sortFindings sorts findings with critical first, info last.
func sortFindings(findings []interfaces.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}

// Headline creates a one-line summary of the score and findings.
func Headline(s interfaces.ReportSummary) string {
	if s.TotalFindings == 0 {
		return fmt.Sprintf("Score: %d/100 [%s]: no findings", s.Score, s.Grade)
	}
	return fmt.Sprintf("Score: %d/100 [%s]: %d findings (%s)", s.Score, s.Grade, s.TotalFindings, formatFindingCounts(s))
}

// formatFindingCounts produces a summary like "1 high, 4 medium, 7 info".
func formatFindingCounts(s interfaces.ReportSummary) string {
	counts := interfaces.SeverityCounts{Critical: s.Critical, High: s.High, Medium: s.Medium, Info: s.Info}
	return formatCounts(counts)
}

func formatCounts(counts interfaces.SeverityCounts) string {
	var parts []string
	for _, sev := range interfaces.Severities {
		if c := counts.Get(sev); c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, sev))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// scannerNames returns breakdown keys in sorted order.
func scannerNames(breakdown map[string]interfaces.SeverityCounts) []string {
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// location formats file:line for a finding.
func location(f interfaces.Finding) string {
	if f.File == "" {
		return "(repository)"
	}
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return f.File
}
