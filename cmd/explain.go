package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/scorer"
)

// writeExplanation prints how every dimension score and the composite were
// derived.
func writeExplanation(w io.Writer, exp *scorer.Explanation, cfg scorer.Config) {
	if exp == nil {
		return
	}

	fmt.Fprintln(w, "Score breakdown")
	fmt.Fprintf(w, "  %-18s %6s %8s  %s\n", "dimension", "weight", "score", "penalties")
	for _, d := range cfg.Dimensions {
		b := exp.Dimensions[d.Name]
		fmt.Fprintf(w, "  %-18s %6.2f %8d  %s\n", d.Name, d.Weight, b.Score, formatPenalties(b))
	}
	fmt.Fprintf(w, "  %-18s %6s %8d  %s\n", "(flat)", "", exp.Flat.Score, formatPenalties(exp.Flat))

	fmt.Fprintf(w, "  weighted=%d min_dimension=%d", exp.Weighted, exp.MinDim)
	if exp.FloorCap != nil {
		fmt.Fprintf(w, " floor_cap=%d", *exp.FloorCap)
	}
	fmt.Fprintf(w, " composite=%d (%s)\n", exp.Composite, scorer.Grade(exp.Composite))
}

// formatPenalties renders the non-zero penalty terms of a breakdown.
func formatPenalties(b scorer.PenaltyBreakdown) string {
	var parts []string
	for _, sev := range interfaces.Severities {
		p := b.Penalties[sev]
		if p == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.2f (eff %.1f)", sev, p, b.Effective[sev]))
	}
	if b.Interaction > 0 {
		parts = append(parts, fmt.Sprintf("interaction %.2f", b.Interaction))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ") + fmt.Sprintf(" = %.2f", b.Total)
}
