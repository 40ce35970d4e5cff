package scanner

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// injectionPattern is a phrase that tries to override an agent's instructions.
type injectionPattern struct {
	id         string
	name       string
	regex      *regexp.Regexp
	severity   interfaces.Severity
	confidence interfaces.Confidence
}

var injectionPatterns = []injectionPattern{
	{
		id:         "PI-OVERRIDE",
		name:       "Instruction override",
		regex:      regexp.MustCompile(`(?i)\b(?:ignore|disregard|forget)\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|rules|directions)`),
		severity:   interfaces.SeverityCritical,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		id:         "PI-SYSTEM",
		name:       "Fake system prompt",
		regex:      regexp.MustCompile(`(?i)(?:^|\s)(?:<\|?system\|?>|\[system\]|###\s*system\s*:)`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		id:         "PI-EXFIL",
		name:       "Exfiltration instruction",
		regex:      regexp.MustCompile(`(?i)\b(?:send|post|upload|exfiltrate|forward)\b.{0,40}(?:\b(?:credentials|secrets|api keys?|tokens?|ssh keys?)\b|\.env\b)`),
		severity:   interfaces.SeverityCritical,
		confidence: interfaces.ConfidencePossible,
	},
	{
		id:         "PI-ROLE",
		name:       "Role reassignment",
		regex:      regexp.MustCompile(`(?i)\byou are now\b|\bact as (?:an? )?(?:unrestricted|jailbroken|dan)\b|\bdeveloper mode\b`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidencePossible,
	},
	{
		id:         "PI-CONCEAL",
		name:       "Concealment instruction",
		regex:      regexp.MustCompile(`(?i)\b(?:do not|don't|never)\s+(?:tell|inform|mention|reveal)\b.{0,20}\b(?:the\s+)?user\b`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		id:         "PI-SHELL",
		name:       "Embedded shell pipe",
		regex:      regexp.MustCompile(`(?i)\b(?:curl|wget)\b[^|\n]*\|\s*(?:ba|z)?sh\b`),
		severity:   interfaces.SeverityMedium,
		confidence: interfaces.ConfidenceLikely,
	},
}

// Zero-width and bidi control characters that hide text from reviewers.
var hiddenRunes = map[rune]string{
	'\u200b': "zero width space",
	'\u200c': "zero width non-joiner",
	'\u200d': "zero width joiner",
	'\u2060': "word joiner",
	'\ufeff': "zero width no-break space",
	'\u202a': "left-to-right embedding",
	'\u202b': "right-to-left embedding",
	'\u202d': "left-to-right override",
	'\u202e': "right-to-left override",
	'\u2066': "left-to-right isolate",
	'\u2067': "right-to-left isolate",
}

// Files agents read as instructions.
var instructionFileNames = map[string]bool{
	"agents.md":               true,
	"claude.md":               true,
	"gemini.md":               true,
	".cursorrules":            true,
	".windsurfrules":          true,
	"copilot-instructions.md": true,
	"skill.md":                true,
}

var instructionExtensions = []string{".md", ".mdx", ".txt", ".prompt", ".mdc"}

// InjectionScanner looks for prompt-injection payloads in files that coding
// agents read as context: markdown, prompt files and agent rule files.
type InjectionScanner struct{}

// NewInjectionScanner creates a prompt-injection scanner.
func NewInjectionScanner() *InjectionScanner {
	return &InjectionScanner{}
}

// Name returns the scanner identifier.
func (s *InjectionScanner) Name() string {
	return "prompt-injection"
}

// Scan checks agent-readable files under root.
func (s *InjectionScanner) Scan(ctx context.Context, root string) (*interfaces.ScanResult, error) {
	return scanLines(ctx, s.Name(), root, isInstructionFile, s.scanLine)
}

func isInstructionFile(rel string) bool {
	base := strings.ToLower(path.Base(rel))
	if instructionFileNames[base] {
		return true
	}
	return hasSuffixFold(base, instructionExtensions...)
}

func (s *InjectionScanner) scanLine(rel string, number int, line string) []interfaces.Finding {
	var findings []interfaces.Finding

	for _, p := range injectionPatterns {
		loc := p.regex.FindStringIndex(line)
		if loc == nil {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("%s-%d", p.id, number),
			Severity:       p.severity,
			Confidence:     p.confidence,
			File:           rel,
			Line:           number,
			Title:          p.name,
			Message:        fmt.Sprintf("Line %d contains text an agent may follow as an instruction: %q", number, excerpt(line[loc[0]:loc[1]])),
			Recommendation: "Remove or rewrite the text so it cannot be read as an instruction to an AI agent.",
		})
	}

	if names := hiddenCharacters(line); len(names) > 0 {
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("PI-HIDDEN-%d", number),
			Severity:       interfaces.SeverityHigh,
			Confidence:     interfaces.ConfidenceDefinite,
			File:           rel,
			Line:           number,
			Title:          "Hidden characters",
			Message:        fmt.Sprintf("Line %d contains invisible characters (%s) that can hide instructions from reviewers.", number, strings.Join(names, ", ")),
			Recommendation: "Strip zero-width and bidirectional control characters from agent-readable files.",
			Metadata: map[string]any{
				"characters": names,
			},
		})
	}

	return findings
}

// hiddenCharacters lists the distinct invisible characters on a line in the
// order they first appear. A BOM at the start of a line is ignored.
func hiddenCharacters(line string) []string {
	var names []string
	seen := make(map[rune]bool)
	for i, r := range line {
		if r == '\ufeff' && i == 0 {
			continue
		}
		name, ok := hiddenRunes[r]
		if !ok || seen[r] {
			continue
		}
		seen[r] = true
		names = append(names, name)
	}
	return names
}

func excerpt(s string) string {
	const max = 80
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
