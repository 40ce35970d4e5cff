package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// CommentMarker identifies Warden's PR comment so it can be found again.
const CommentMarker = "<!-- warden-report -->"

// MarkdownFormatter writes a report as Markdown suitable for PR comments.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a Markdown report formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the report as Markdown to the given writer.
func (f *MarkdownFormatter) Format(w io.Writer, report *interfaces.Report) error {
	f.writeHeader(w, report)
	f.writeSummaryTable(w, report)
	f.writeDimensions(w, report)
	f.writeFindings(w, report)
	f.writeFooter(w, report)
	return nil
}

func (f *MarkdownFormatter) writeHeader(w io.Writer, report *interfaces.Report) {
	fmt.Fprintln(w, CommentMarker)
	fmt.Fprintf(w, "# Warden Security Report %s\n\n", gradeBadge(report.Summary.Grade))
}

func (f *MarkdownFormatter) writeSummaryTable(w io.Writer, report *interfaces.Report) {
	s := report.Summary

	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Score** | %d/100 |\n", s.Score)
	fmt.Fprintf(w, "| **Grade** | %s |\n", s.Grade)
	fmt.Fprintf(w, "| **Total Findings** | %d |\n", s.TotalFindings)
	fmt.Fprintf(w, "| **Scored Findings** | %d |\n", s.ScoringFindings)
	fmt.Fprintf(w, "| **Files Scanned** | %d |\n", s.ScannedFiles)
	if s.TotalFindings > 0 {
		fmt.Fprintf(w, "| **Breakdown** | %s |\n", formatFindingCounts(s))
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(w, "| **Failed Scanners** | %s |\n", strings.Join(report.Failed, ", "))
	}
	fmt.Fprintln(w)
}

func (f *MarkdownFormatter) writeDimensions(w io.Writer, report *interfaces.Report) {
	s := report.Summary
	if len(s.Dimensions) == 0 {
		return
	}

	fmt.Fprintln(w, "| Dimension | Score | Grade | Findings |")
	fmt.Fprintln(w, "|-----------|------:|:-----:|---------:|")
	for _, dim := range interfaces.Dimensions {
		d, ok := s.Dimensions[dim]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "| %s | %d | %s | %d |\n", dim, d.Score, d.Grade, d.Findings)
	}
	fmt.Fprintln(w)
}

func (f *MarkdownFormatter) writeFindings(w io.Writer, report *interfaces.Report) {
	if len(report.Findings) == 0 {
		fmt.Fprintln(w, "> No findings.")
		fmt.Fprintln(w)
		return
	}

	grouped := groupByScanner(report.Findings)

	for _, name := range scannerNames(report.Summary.ScannerBreakdown) {
		findings, ok := grouped[name]
		if !ok {
			continue
		}
		delete(grouped, name)
		f.writeGroup(w, name, findings)
	}
	// Scanners missing from the breakdown, e.g. when no summary was given.
	for _, name := range sortedKeys(grouped) {
		f.writeGroup(w, name, grouped[name])
	}
}

func (f *MarkdownFormatter) writeGroup(w io.Writer, scanner string, findings []interfaces.Finding) {
	fmt.Fprintf(w, "## %s (%d)\n\n", scanner, len(findings))

	for _, finding := range findings {
		note := ""
		if finding.TestFile {
			note = " _(test file)_"
		}
		fmt.Fprintf(w, "<details>\n")
		fmt.Fprintf(w, "<summary><strong>%s</strong> [%s] <code>%s</code>%s</summary>\n\n",
			finding.Title, strings.ToUpper(string(finding.Severity)), location(finding), note)

		if finding.Message != "" {
			fmt.Fprintf(w, "%s\n\n", finding.Message)
		}
		if finding.Recommendation != "" {
			fmt.Fprintf(w, "**Recommendation:** %s\n\n", finding.Recommendation)
		}
		fmt.Fprintf(w, "*ID: %s | Confidence: %s*\n\n", finding.ID, finding.Confidence.OrDefault())
		fmt.Fprintln(w, "</details>")
		fmt.Fprintln(w)
	}
}

func (f *MarkdownFormatter) writeFooter(w io.Writer, report *interfaces.Report) {
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "*Report ID: %s | Generated: %s*\n",
		report.ID, report.Timestamp.Format("2006-01-02 15:04:05"))
}

// gradeBadge returns a colored marker for a letter grade.
func gradeBadge(grade string) string {
	switch gradeColor(grade) {
	case colorGreen:
		return "🟢"
	case colorYellow:
		return "🟡"
	case colorRed:
		return "🔴"
	default:
		return "⚪"
	}
}

// groupByScanner groups findings by the scanner that produced them.
func groupByScanner(findings []interfaces.Finding) map[string][]interfaces.Finding {
	grouped := make(map[string][]interfaces.Finding)
	for _, f := range findings {
		grouped[f.Scanner] = append(grouped[f.Scanner], f)
	}
	return grouped
}

func sortedKeys(m map[string][]interfaces.Finding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
