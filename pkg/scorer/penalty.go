package scorer

import (
	"math"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// penalizedSeverities are the severities whose curves feed the score.
// Info is tracked for effective counts but its default curve is zero.
var penalizedSeverities = []interfaces.Severity{
	interfaces.SeverityCritical,
	interfaces.SeverityHigh,
	interfaces.SeverityMedium,
	interfaces.SeverityInfo,
}

// Penalty applies the diminishing-returns curve min(base*log2(eff+1), cap).
// A non-positive effective count costs nothing.
func Penalty(effective float64, p SeverityPenalty) float64 {
	if effective <= 0 {
		return 0
	}
	return math.Min(p.Base*math.Log2(effective+1), p.Cap)
}

// Interaction is the surcharge for critical and high findings occurring together.
// It is zero unless both effective counts are positive.
func Interaction(critical, high float64, p SeverityPenalty) float64 {
	if critical <= 0 || high <= 0 {
		return 0
	}
	return math.Min(p.Base*math.Log2(math.Min(critical, high)+1), p.Cap)
}

// PenaltyBreakdown shows how a set of findings turned into a score.
type PenaltyBreakdown struct {
	Findings    int                             `json:"findings"`
	Effective   map[interfaces.Severity]float64 `json:"effective"`
	Penalties   map[interfaces.Severity]float64 `json:"penalties"`
	Interaction float64                         `json:"interaction"`
	Total       float64                         `json:"total"`
	Score       int                             `json:"score"`
}

// explain is the single scoring path for a set of findings, used for every
// dimension and for the flat score.
func (c *Calculator) explain(findings []interfaces.Finding) PenaltyBreakdown {
	b := PenaltyBreakdown{
		Findings:  len(findings),
		Effective: make(map[interfaces.Severity]float64, len(penalizedSeverities)),
		Penalties: make(map[interfaces.Severity]float64, len(penalizedSeverities)),
	}

	for _, f := range findings {
		b.Effective[f.Severity] += c.cfg.Confidence.Weight(f.Confidence)
	}

	for _, sev := range penalizedSeverities {
		p := Penalty(b.Effective[sev], c.cfg.Penalties.Penalty(sev))
		b.Penalties[sev] = p
		b.Total += p
	}

	b.Interaction = Interaction(
		b.Effective[interfaces.SeverityCritical],
		b.Effective[interfaces.SeverityHigh],
		c.cfg.Interaction,
	)
	b.Total += b.Interaction

	b.Score = clampScore(int(math.Round(100 - b.Total)))
	return b
}

// ScoreFindings returns the 0-100 score of a set of already-filtered findings.
// No findings scores 100.
func (c *Calculator) ScoreFindings(findings []interfaces.Finding) int {
	return c.explain(findings).Score
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
