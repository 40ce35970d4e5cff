package report

import (
	"encoding/json"
	"io"

	"github.com/toyinlola/warden/pkg/history"
	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/scorer"
)

// JSONFormatter writes a report as JSON. The score breakdown and the trend
// since the previous run are added next to the report fields when set.
type JSONFormatter struct {
	explanation *scorer.Explanation
	trend       *history.Trend
}

// NewJSONFormatter creates a JSON report formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// WithExplanation embeds the score breakdown as "explanation".
func (f *JSONFormatter) WithExplanation(exp *scorer.Explanation) *JSONFormatter {
	f.explanation = exp
	return f
}

// WithTrend embeds the change since the previous run as "trend".
func (f *JSONFormatter) WithTrend(t *history.Trend) *JSONFormatter {
	f.trend = t
	return f
}

type jsonReport struct {
	*interfaces.Report
	Explanation *scorer.Explanation `json:"explanation,omitempty"`
	Trend       *history.Trend      `json:"trend,omitempty"`
}

// Format writes the report as indented JSON to the given writer.
func (f *JSONFormatter) Format(w io.Writer, report *interfaces.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		Report:      report,
		Explanation: f.explanation,
		Trend:       f.trend,
	})
}
