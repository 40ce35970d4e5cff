package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPenalty_ZeroCountIsFree(t *testing.T) {
	p := SeverityPenalty{Base: 20, Cap: 50}
	assert.Equal(t, 0.0, Penalty(0, p))
	assert.Equal(t, 0.0, Penalty(-1, p))
}

func TestPenalty_FirstFindingCostsBase(t *testing.T) {
	assert.InDelta(t, 20.0, Penalty(1, SeverityPenalty{Base: 20, Cap: 50}), 1e-12)
	assert.InDelta(t, 5.0, Penalty(1, SeverityPenalty{Base: 5, Cap: 30}), 1e-12)
	assert.InDelta(t, 1.5, Penalty(1, SeverityPenalty{Base: 1.5, Cap: 15}), 1e-12)
}

func TestPenalty_DiminishingReturns(t *testing.T) {
	// A cap high enough to stay out of the way.
	p := SeverityPenalty{Base: 5, Cap: math.MaxFloat64}

	prevMarginal := math.Inf(1)
	for k := 1; k <= 50; k++ {
		marginal := Penalty(float64(k), p) - Penalty(float64(k-1), p)
		assert.Greater(t, marginal, 0.0, "k=%d", k)
		if k >= 2 {
			assert.Less(t, marginal, prevMarginal, "k=%d", k)
		}
		prevMarginal = marginal
	}
}

func TestPenalty_NeverExceedsCap(t *testing.T) {
	p := SeverityPenalty{Base: 20, Cap: 50}
	for _, eff := range []float64{0.6, 1, 4, 5, 6, 100, 1e6} {
		assert.LessOrEqual(t, Penalty(eff, p), 50.0, "eff=%v", eff)
	}
	assert.Equal(t, 50.0, Penalty(1e6, p))
}

func TestPenalty_InfoNeverPenalizes(t *testing.T) {
	info := DefaultSeverityPenalties().Penalty("info")
	assert.Equal(t, 0.0, Penalty(1000, info))
	assert.Equal(t, SeverityPenalty{}, DefaultSeverityPenalties().Penalty("unknown"))
}

func TestInteraction_Gating(t *testing.T) {
	p := SeverityPenalty{Base: DefaultInteractionBase, Cap: DefaultInteractionCap}

	assert.Equal(t, 0.0, Interaction(0, 0, p))
	assert.Equal(t, 0.0, Interaction(3, 0, p))
	assert.Equal(t, 0.0, Interaction(0, 3, p))
	assert.InDelta(t, 5.0, Interaction(1, 1, p), 1e-12)

	// Driven by the smaller operand.
	assert.Equal(t, Interaction(1, 7, p), Interaction(1, 1, p))
	assert.Equal(t, Interaction(7, 1, p), Interaction(1, 1, p))

	for _, n := range []float64{2, 3, 10, 1000} {
		assert.LessOrEqual(t, Interaction(n, n, p), 10.0)
	}
	assert.Equal(t, 10.0, Interaction(3, 3, p))
}

func TestConfidenceWeights_Weight(t *testing.T) {
	w := DefaultConfidenceWeights()
	assert.Equal(t, 1.0, w.Weight("definite"))
	assert.Equal(t, 0.8, w.Weight("likely"))
	assert.Equal(t, 0.6, w.Weight("possible"))
	assert.Equal(t, 1.0, w.Weight(""))
	assert.Equal(t, 1.0, w.Weight("unheard-of"))
	assert.Equal(t, 1.0, ConfidenceWeights{}.Weight("likely"))
}
