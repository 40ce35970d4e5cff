package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// TerminalFormatter writes a color-coded report to a terminal.
type TerminalFormatter struct {
	color bool
}

// NewTerminalFormatter creates a terminal report formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{color: true}
}

// NoColor disables ANSI escapes.
func (f *TerminalFormatter) NoColor() *TerminalFormatter {
	f.color = false
	return f
}

// Format writes the report to the given writer using ANSI colors.
func (f *TerminalFormatter) Format(w io.Writer, report *interfaces.Report) error {
	f.writeHeader(w, report)
	f.writeSummary(w, report)
	f.writeDimensions(w, report)
	f.writeFindings(w, report)
	f.writeFooter(w, report)
	return nil
}

// c returns the escape code when color is enabled.
func (f *TerminalFormatter) c(code string) string {
	if !f.color {
		return ""
	}
	return code
}

func (f *TerminalFormatter) writeHeader(w io.Writer, report *interfaces.Report) {
	rule := strings.Repeat("═", 42)
	fmt.Fprintf(w, "\n%s%s%s%s\n", f.c(colorBold), f.c(colorCyan), rule, f.c(colorReset))
	fmt.Fprintf(w, "%s%s  Warden Security Report%s\n", f.c(colorBold), f.c(colorCyan), f.c(colorReset))
	if report.Target != "" {
		fmt.Fprintf(w, "%s  %s%s\n", f.c(colorDim), report.Target, f.c(colorReset))
	}
	fmt.Fprintf(w, "%s%s%s%s\n\n", f.c(colorBold), f.c(colorCyan), rule, f.c(colorReset))
}

func (f *TerminalFormatter) writeSummary(w io.Writer, report *interfaces.Report) {
	s := report.Summary
	color := gradeColor(s.Grade)

	fmt.Fprintf(w, "  %s%sScore: %d/100  Grade: %s%s\n\n",
		f.c(colorBold), f.c(color), s.Score, s.Grade, f.c(colorReset))

	if s.TotalFindings == 0 {
		fmt.Fprintf(w, "  %sNo findings.%s\n\n", f.c(colorGreen), f.c(colorReset))
	} else {
		fmt.Fprintf(w, "  %d findings (%s), %d scored\n\n", s.TotalFindings, formatFindingCounts(s), s.ScoringFindings)
	}

	for _, name := range report.Failed {
		fmt.Fprintf(w, "  %sScanner %s failed; its findings are missing.%s\n", f.c(colorYellow), name, f.c(colorReset))
	}
	if len(report.Failed) > 0 {
		fmt.Fprintln(w)
	}
}

func (f *TerminalFormatter) writeDimensions(w io.Writer, report *interfaces.Report) {
	s := report.Summary
	if len(s.Dimensions) == 0 {
		return
	}

	fmt.Fprintf(w, "  %sDimensions%s\n", f.c(colorBold), f.c(colorReset))
	for _, dim := range interfaces.Dimensions {
		d, ok := s.Dimensions[dim]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "    %-18s %s%3d %-2s%s  (%d findings)\n",
			dim, f.c(gradeColor(d.Grade)), d.Score, d.Grade, f.c(colorReset), d.Findings)
	}
	fmt.Fprintln(w)

	if len(s.ScannerBreakdown) == 0 {
		return
	}
	fmt.Fprintf(w, "  %sScanners%s\n", f.c(colorBold), f.c(colorReset))
	for _, name := range scannerNames(s.ScannerBreakdown) {
		fmt.Fprintf(w, "    %-18s %s\n", name, formatCounts(s.ScannerBreakdown[name]))
	}
	fmt.Fprintln(w)
}

func (f *TerminalFormatter) writeFindings(w io.Writer, report *interfaces.Report) {
	if len(report.Findings) == 0 {
		return
	}

	grouped := groupBySeverity(report.Findings)

	for _, sev := range interfaces.Severities {
		findings, ok := grouped[sev]
		if !ok {
			continue
		}

		color := severityColor(sev)
		label := strings.ToUpper(string(sev))
		fmt.Fprintf(w, "  %s%s── %s (%d) ──%s\n", f.c(colorBold), f.c(color), label, len(findings), f.c(colorReset))

		for _, finding := range findings {
			tag := ""
			if finding.TestFile {
				tag = " (test file, not scored)"
			}
			fmt.Fprintf(w, "    %s[%s]%s %s%s\n", f.c(color), finding.ID, f.c(colorReset), finding.Title, tag)
			fmt.Fprintf(w, "      %s%s · %s · %s%s\n", f.c(colorDim), location(finding), finding.Scanner, finding.Confidence.OrDefault(), f.c(colorReset))
			if finding.Message != "" {
				fmt.Fprintf(w, "      %s\n", finding.Message)
			}
			if finding.Recommendation != "" {
				fmt.Fprintf(w, "      %s→ %s%s\n", f.c(colorCyan), finding.Recommendation, f.c(colorReset))
			}
			fmt.Fprintln(w)
		}
	}
}

func (f *TerminalFormatter) writeFooter(w io.Writer, report *interfaces.Report) {
	s := report.Summary
	fmt.Fprintf(w, "  %s%s%s%s\n", f.c(colorDim), f.c(colorCyan), strings.Repeat("─", 42), f.c(colorReset))
	fmt.Fprintf(w, "  %sFiles: %d | Duration: %s | Report: %s%s\n",
		f.c(colorDim), s.ScannedFiles, report.Duration.Round(time.Millisecond), report.ID, f.c(colorReset))
	fmt.Fprintf(w, "  %sGenerated: %s%s\n\n",
		f.c(colorDim), report.Timestamp.Format("2006-01-02 15:04:05"), f.c(colorReset))
}

// gradeColor returns the ANSI color for a letter grade.
func gradeColor(grade string) string {
	switch {
	case strings.HasPrefix(grade, "A"):
		return colorGreen
	case strings.HasPrefix(grade, "B"), strings.HasPrefix(grade, "C"):
		return colorYellow
	case grade == "":
		return colorReset
	default:
		return colorRed
	}
}

// severityColor returns the ANSI color for a severity level.
func severityColor(s interfaces.Severity) string {
	switch s {
	case interfaces.SeverityCritical, interfaces.SeverityHigh:
		return colorRed
	case interfaces.SeverityMedium:
		return colorYellow
	case interfaces.SeverityInfo:
		return colorDim
	default:
		return colorReset
	}
}

// groupBySeverity groups findings by their severity.
func groupBySeverity(findings []interfaces.Finding) map[interfaces.Severity][]interfaces.Finding {
	grouped := make(map[interfaces.Severity][]interfaces.Finding)
	for _, f := range findings {
		grouped[f.Severity] = append(grouped[f.Severity], f)
	}
	return grouped
}
