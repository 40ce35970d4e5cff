package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyinlola/warden/pkg/history"
	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/scorer"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func testGenerator() *Generator {
	g := NewGenerator("/src/app")
	g.now = func() time.Time { return fixedTime }
	g.newID = func() string { return "rpt-test" }
	return g
}

func sampleResults() []*interfaces.ScanResult {
	return []*interfaces.ScanResult{
		{
			Scanner: "secrets",
			Findings: []interfaces.Finding{
				{ID: "S2", Scanner: "secrets", Severity: interfaces.SeverityInfo, File: "b.go", Line: 3, Title: "entropy"},
				{ID: "S1", Scanner: "secrets", Severity: interfaces.SeverityCritical, File: "a.go", Line: 9, Title: "key", Recommendation: "rotate it"},
			},
		},
		{
			Scanner: "mcp-config",
			Findings: []interfaces.Finding{
				{ID: "M1", Scanner: "mcp-config", Severity: interfaces.SeverityHigh, File: ".mcp.json", Line: 4, Title: "plaintext", TestFile: true},
				{ID: "M0", Scanner: "mcp-config", Severity: interfaces.SeverityCritical, File: "a.go", Line: 2, Title: "env secret"},
			},
		},
		{Scanner: "defenses", Error: errors.New("boom"), Findings: []interfaces.Finding{{ID: "D1", Severity: interfaces.SeverityHigh}}},
		nil,
	}
}

func sampleSummary() *interfaces.ReportSummary {
	return &interfaces.ReportSummary{
		Critical: 2, High: 1, Info: 1,
		TotalFindings: 4, ScoringFindings: 2,
		Score: 61, Grade: "D-", ScannedFiles: 12, Duration: 1500 * time.Millisecond,
		Dimensions: map[interfaces.Dimension]interfaces.DimensionReport{
			interfaces.DimensionCodeSafety:        {Score: 80, Grade: "B-", Findings: 1},
			interfaces.DimensionConfigSafety:      {Score: 80, Grade: "B-", Findings: 1},
			interfaces.DimensionDefenseScore:      {Score: 100, Grade: "A+"},
			interfaces.DimensionEnvironmentSafety: {Score: 100, Grade: "A+"},
		},
		ScannerBreakdown: map[string]interfaces.SeverityCounts{
			"secrets":    {Critical: 1, Info: 1},
			"mcp-config": {Critical: 1, High: 1},
		},
	}
}

func TestGenerator_Generate(t *testing.T) {
	r := testGenerator().Generate(sampleResults(), sampleSummary())

	assert.Equal(t, "rpt-test", r.ID)
	assert.Equal(t, fixedTime, r.Timestamp)
	assert.Equal(t, "/src/app", r.Target)
	assert.Equal(t, 61, r.Summary.Score)
	assert.Equal(t, []string{"defenses"}, r.Failed)
	assert.Equal(t, 1500*time.Millisecond, r.Duration)

	var ids []string
	for _, f := range r.Findings {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"M0", "S1", "M1", "S2"}, ids)
}

func TestGenerator_NilSummaryAndEmptyResults(t *testing.T) {
	r := testGenerator().Generate(nil, nil)
	assert.NotNil(t, r.Findings)
	assert.Empty(t, r.Findings)
	assert.Empty(t, r.Failed)
	assert.Equal(t, 0, r.Summary.Score)
}

func TestNewGenerator_UniqueIDs(t *testing.T) {
	g := NewGenerator(".")
	a := g.Generate(nil, nil)
	b := g.Generate(nil, nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"", "terminal", "json", "markdown", "md", "JSON"} {
		f, err := NewFormatter(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := NewFormatter("xml")
	require.Error(t, err)
}

func TestTerminalFormatter(t *testing.T) {
	r := testGenerator().Generate(sampleResults(), sampleSummary())

	var buf bytes.Buffer
	require.NoError(t, NewTerminalFormatter().NoColor().Format(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "Warden Security Report")
	assert.Contains(t, out, "Score: 61/100  Grade: D-")
	assert.Contains(t, out, "4 findings (2 critical, 1 high, 1 info), 2 scored")
	assert.Contains(t, out, "Scanner defenses failed")
	assert.Contains(t, out, "codeSafety")
	assert.Contains(t, out, "a.go:9")
	assert.Contains(t, out, "(test file, not scored)")
	assert.Contains(t, out, "→ rotate it")
	assert.NotContains(t, out, "\033[")
}

func TestTerminalFormatter_NoFindings(t *testing.T) {
	r := testGenerator().Generate(nil, &interfaces.ReportSummary{Score: 100, Grade: "A+"})

	var buf bytes.Buffer
	require.NoError(t, NewTerminalFormatter().Format(&buf, r))
	assert.Contains(t, buf.String(), "No findings.")
	assert.Contains(t, buf.String(), colorGreen)
}

func TestMarkdownFormatter(t *testing.T) {
	r := testGenerator().Generate(sampleResults(), sampleSummary())

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter().Format(&buf, r))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, CommentMarker))
	assert.Contains(t, out, "# Warden Security Report 🔴")
	assert.Contains(t, out, "| **Score** | 61/100 |")
	assert.Contains(t, out, "| **Failed Scanners** | defenses |")
	assert.Contains(t, out, "| codeSafety | 80 | B- | 1 |")
	assert.Less(t, strings.Index(out, "## mcp-config (2)"), strings.Index(out, "## secrets (2)"))
	assert.Contains(t, out, "_(test file)_")
	assert.Contains(t, out, "*Report ID: rpt-test | Generated: 2026-03-14 09:26:53*")
}

func TestJSONFormatter_RoundTrip(t *testing.T) {
	r := testGenerator().Generate(sampleResults(), sampleSummary())

	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "rpt-test", decoded["id"])
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, float64(61), summary["score"])
	assert.Equal(t, "D-", summary["grade"])
	dims := summary["dimensions"].(map[string]any)
	assert.Contains(t, dims, "environmentSafety")
}

func TestJSONFormatter_ExplanationAndTrend(t *testing.T) {
	results := sampleResults()
	calc := scorer.MustNewCalculator()
	summary, exp := calc.Evaluate(results)
	r := testGenerator().Generate(results, summary)
	trend := history.Compute(&history.Entry{Score: 100, Grade: "A+"}, history.NewEntry(r))

	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().WithExplanation(exp).WithTrend(&trend).Format(&buf, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "rpt-test", decoded["id"])

	explanation := decoded["explanation"].(map[string]any)
	assert.Equal(t, float64(summary.Score), explanation["composite"])
	assert.Contains(t, explanation["dimensions"], "codeSafety")

	tr := decoded["trend"].(map[string]any)
	assert.Equal(t, history.TrendDeclining, tr["label"])
	assert.Equal(t, float64(100), tr["previous"])
}

func TestJSONFormatter_OmitsUnsetExtras(t *testing.T) {
	r := testGenerator().Generate(sampleResults(), sampleSummary())

	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, r))
	assert.NotContains(t, buf.String(), `"explanation"`)
	assert.NotContains(t, buf.String(), `"trend"`)
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "Score: 100/100 [A+]: no findings", Headline(interfaces.ReportSummary{Score: 100, Grade: "A+"}))
	assert.Equal(t, "Score: 80/100 [B-]: 2 findings (1 critical, 1 info)",
		Headline(interfaces.ReportSummary{Score: 80, Grade: "B-", Critical: 1, Info: 1, TotalFindings: 2}))
}
