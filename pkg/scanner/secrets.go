package scanner

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// secretPattern defines a single regex-based secret detection rule.
type secretPattern struct {
	name       string
	regex      *regexp.Regexp
	severity   interfaces.Severity
	confidence interfaces.Confidence
}

// Compiled secret detection patterns.
var secretPatterns = []secretPattern{
	{
		name:       "AWS Access Key ID",
		regex:      regexp.MustCompile(`(?:^|[^A-Za-z0-9/+=])AKIA[0-9A-Z]{16}(?:[^A-Za-z0-9/+=]|$)`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceDefinite,
	},
	{
		name:       "AWS Secret Access Key",
		regex:      regexp.MustCompile(`(?i)(?:aws_secret_access_key|aws_secret_key|secret_access_key)\s*[:=]\s*[A-Za-z0-9/+=]{40}`),
		severity:   interfaces.SeverityCritical,
		confidence: interfaces.ConfidenceDefinite,
	},
	{
		name:       "Private Key",
		regex:      regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
		severity:   interfaces.SeverityCritical,
		confidence: interfaces.ConfidenceDefinite,
	},
	{
		name:       "Anthropic API Key",
		regex:      regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{32,}`),
		severity:   interfaces.SeverityCritical,
		confidence: interfaces.ConfidenceDefinite,
	},
	{
		name:       "OpenAI API Key",
		regex:      regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9]{32,}`),
		severity:   interfaces.SeverityCritical,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		name:       "GitHub Personal Access Token",
		regex:      regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceDefinite,
	},
	{
		name:       "Generic API Key Assignment",
		regex:      regexp.MustCompile(`(?i)(?:api_key|apikey|api-key|api_secret|apisecret)\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		name:       "Bearer Token",
		regex:      regexp.MustCompile(`(?i)(?:bearer\s+)[A-Za-z0-9_\-.]{20,}`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		name:       "Database Connection String",
		regex:      regexp.MustCompile(`(?i)(?:postgres|postgresql|mysql|mongodb|redis|amqp)://[^\s:@"'` + "`" + `]+:[^\s@"'` + "`" + `]+@[^\s"'` + "`" + `]+`),
		severity:   interfaces.SeverityHigh,
		confidence: interfaces.ConfidenceLikely,
	},
	{
		name:       "Password Assignment",
		regex:      regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*["'][^"']{8,}["']`),
		severity:   interfaces.SeverityMedium,
		confidence: interfaces.ConfidencePossible,
	},
	{
		name:       "Generic Secret Assignment",
		regex:      regexp.MustCompile(`(?i)(?:secret|token|auth)_?(?:key)?\s*[:=]\s*["'][A-Za-z0-9_\-/+=]{20,}["']`),
		severity:   interfaces.SeverityMedium,
		confidence: interfaces.ConfidencePossible,
	},
}

// Substrings that indicate a line is a false positive (placeholders, templating).
var falsePositiveIndicators = []string{
	"example",
	"placeholder",
	"your-",
	"your_",
	"xxx",
	"changeme",
	"replace_me",
	"insert_here",
	"dummy",
	"<your",
	"${",
	"{{",
}

// Files never scanned for secrets: lockfiles and checksums.
var secretSkipSuffixes = []string{
	"go.sum",
	".lock",
	"package-lock.json",
	"pnpm-lock.yaml",
	".min.js",
	".svg",
}

// Prefixes indicating a line is a checksum, not a secret.
var checksumPrefixes = []string{
	"h1:",
	"sha256:",
	"sha512:",
	"sha1:",
	"sha384:",
}

// SecretsScanner detects hardcoded secrets, API keys, and credentials.
// High-entropy strings without a known shape are reported as info findings
// with possible confidence.
type SecretsScanner struct {
	entropyThreshold float64
	entropyMinLength int
}

// NewSecretsScanner creates a secrets scanner with default settings.
func NewSecretsScanner() *SecretsScanner {
	return &SecretsScanner{
		entropyThreshold: 4.5,
		entropyMinLength: 20,
	}
}

// Name returns the scanner identifier.
func (s *SecretsScanner) Name() string {
	return "secrets"
}

// Scan walks root and checks every text file for hardcoded secrets.
func (s *SecretsScanner) Scan(ctx context.Context, root string) (*interfaces.ScanResult, error) {
	match := func(rel string) bool {
		return !hasSuffixFold(rel, secretSkipSuffixes...)
	}
	return scanLines(ctx, s.Name(), root, match, s.scanLine)
}

// scanLine checks a single line against all secret patterns and entropy.
func (s *SecretsScanner) scanLine(path string, number int, content string) []interfaces.Finding {
	if isFalsePositive(content) {
		return nil
	}

	var findings []interfaces.Finding

	for _, p := range secretPatterns {
		if !p.regex.MatchString(content) {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:         fmt.Sprintf("SEC-%s-%d", sanitizeID(p.name), number),
			Severity:   p.severity,
			Confidence: p.confidence,
			File:       path,
			Line:       number,
			Title:      fmt.Sprintf("Possible %s detected", p.name),
			Message: fmt.Sprintf(
				"Line %d may contain a hardcoded %s.", number, p.name,
			),
			Recommendation: "Remove the hardcoded secret and load it from an environment variable or a secrets manager.",
		})
	}

	// Only fall back to entropy when no specific pattern matched.
	if len(findings) == 0 {
		if f, ok := s.checkEntropy(path, number, content); ok {
			findings = append(findings, f)
		}
	}

	return findings
}

// checkEntropy looks for high-entropy tokens on a line that may be secrets.
func (s *SecretsScanner) checkEntropy(path string, number int, content string) (interfaces.Finding, bool) {
	if isChecksumLine(content) {
		return interfaces.Finding{}, false
	}

	for _, token := range extractTokens(content) {
		if len(token) < s.entropyMinLength {
			continue
		}
		// Prose is not a secret.
		if strings.Count(token, " ") >= 3 {
			continue
		}
		entropy := shannonEntropy(token)
		if entropy > s.entropyThreshold {
			return interfaces.Finding{
				ID:         fmt.Sprintf("SEC-ENTROPY-%d", number),
				Severity:   interfaces.SeverityInfo,
				Confidence: interfaces.ConfidencePossible,
				File:       path,
				Line:       number,
				Title:      "High-entropy string detected",
				Message: fmt.Sprintf(
					"Line %d contains a high-entropy string (%.2f bits/char) that may be a secret.",
					number, entropy,
				),
				Recommendation: "Verify this is not a hardcoded secret. If it is, move it to environment variables.",
				Metadata: map[string]any{
					"entropy": entropy,
					"length":  len(token),
				},
			}, true
		}
	}
	return interfaces.Finding{}, false
}

// shannonEntropy calculates the Shannon entropy of a string in bits per character.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	length := float64(len([]rune(s)))
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / length
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

var (
	quotedTokenRe = regexp.MustCompile(`["']([^"']+)["']`)
	assignTokenRe = regexp.MustCompile(`(?:=|:)\s*([A-Za-z0-9_\-/+=.]{20,})`)
)

// extractTokens splits a line into candidate secret tokens: quoted strings
// and unquoted assignment values.
func extractTokens(line string) []string {
	var tokens []string
	for _, m := range quotedTokenRe.FindAllStringSubmatch(line, -1) {
		tokens = append(tokens, m[1])
	}
	for _, m := range assignTokenRe.FindAllStringSubmatch(line, -1) {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// isChecksumLine reports whether the line looks like a checksum entry.
func isChecksumLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range checksumPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// isFalsePositive checks if a line contains placeholder or templating markers.
func isFalsePositive(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range falsePositiveIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
