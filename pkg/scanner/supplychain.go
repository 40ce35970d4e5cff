package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// npm lifecycle hooks that run on install.
var installHooks = []string{"preinstall", "install", "postinstall", "prepare"}

var (
	pipeToShellRe = regexp.MustCompile(`(?i)\b(?:curl|wget)\b[^|\n]*\|\s*(?:sudo\s+)?(?:ba|z)?sh\b`)
	remoteFetchRe = regexp.MustCompile(`(?i)\b(?:curl|wget|node\s+-e|python3?\s+-c)\b`)
	localReplace  = regexp.MustCompile(`^\s*(?:replace\s+)?\S+(?:\s+v\S+)?\s*=>\s*(\.{1,2}/\S*|/\S+)`)
	urlDepRe      = regexp.MustCompile(`^(?:git\+|git://|https?://|github:)`)
)

// Files where a piped remote script is checked.
var scriptSuffixes = []string{".sh", ".bash", ".zsh", ".ps1", "dockerfile", "makefile", ".mk"}

// packageManifest is the subset of package.json the scanner reads.
type packageManifest struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// SupplyChainScanner flags dependency and build configuration that executes
// or fetches untrusted code.
type SupplyChainScanner struct{}

// NewSupplyChainScanner creates a supply-chain scanner.
func NewSupplyChainScanner() *SupplyChainScanner {
	return &SupplyChainScanner{}
}

// Name returns the scanner identifier.
func (s *SupplyChainScanner) Name() string {
	return "supply-chain"
}

// Scan checks package manifests, go.mod and scripts under root.
func (s *SupplyChainScanner) Scan(ctx context.Context, root string) (*interfaces.ScanResult, error) {
	result := &interfaces.ScanResult{Scanner: s.Name()}

	_, err := Walk(ctx, root, func(f File) error {
		base := strings.ToLower(path.Base(f.Rel))

		var check func(rel string, lines []string) []interfaces.Finding
		switch {
		case base == "package.json":
			check = checkPackageJSON
		case base == "go.mod":
			check = checkGoMod
		case base == "requirements.txt":
			check = checkRequirements
		case hasSuffixFold(base, scriptSuffixes...) || isWorkflow(f.Rel):
			check = checkScript
		default:
			return nil
		}

		lines, err := readLines(f.Abs)
		if err != nil {
			return nil
		}
		result.FilesScanned++

		isTest := IsTestPath(f.Rel)
		for _, finding := range check(f.Rel, lines) {
			finding.Scanner = s.Name()
			finding.TestFile = isTest
			result.Findings = append(result.Findings, finding)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func isWorkflow(rel string) bool {
	return strings.HasPrefix(rel, ".github/workflows/") && hasSuffixFold(rel, ".yml", ".yaml")
}

func checkPackageJSON(rel string, lines []string) []interfaces.Finding {
	var m packageManifest
	if err := json.Unmarshal([]byte(strings.Join(lines, "\n")), &m); err != nil {
		return nil
	}

	var findings []interfaces.Finding
	for _, hook := range installHooks {
		script, ok := m.Scripts[hook]
		if !ok {
			continue
		}
		line := lineOfKey(lines, hook)
		sev, conf := interfaces.SeverityMedium, interfaces.ConfidencePossible
		if pipeToShellRe.MatchString(script) {
			sev, conf = interfaces.SeverityCritical, interfaces.ConfidenceLikely
		} else if remoteFetchRe.MatchString(script) {
			sev, conf = interfaces.SeverityHigh, interfaces.ConfidenceLikely
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("SC-HOOK-%s", strings.ToUpper(hook)),
			Severity:       sev,
			Confidence:     conf,
			File:           rel,
			Line:           line,
			Title:          "Install lifecycle script",
			Message:        fmt.Sprintf("The %q script runs automatically on install: %s", hook, excerpt(script)),
			Recommendation: "Avoid install-time scripts, or make them local and auditable.",
			Metadata:       map[string]any{"hook": hook},
		})
	}

	deps := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for k, v := range m.DevDependencies {
		deps[k] = v
	}
	for k, v := range m.Dependencies {
		deps[k] = v
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := deps[name]
		if !urlDepRe.MatchString(spec) {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("SC-URLDEP-%s", sanitizeID(name)),
			Severity:       interfaces.SeverityMedium,
			Confidence:     interfaces.ConfidenceDefinite,
			File:           rel,
			Line:           lineOfKey(lines, name),
			Title:          "Dependency fetched from URL",
			Message:        fmt.Sprintf("Dependency %q resolves from %s instead of the registry.", name, spec),
			Recommendation: "Depend on a published, versioned package or pin the URL to a commit.",
		})
	}
	return findings
}

func checkGoMod(rel string, lines []string) []interfaces.Finding {
	var findings []interfaces.Finding
	inBlock := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "replace ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		}
		if !inBlock && !strings.HasPrefix(trimmed, "replace ") {
			continue
		}
		m := localReplace.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("SC-REPLACE-%d", i+1),
			Severity:       interfaces.SeverityMedium,
			Confidence:     interfaces.ConfidencePossible,
			File:           rel,
			Line:           i + 1,
			Title:          "Local replace directive",
			Message:        fmt.Sprintf("go.mod replaces a module with the local path %s.", m[1]),
			Recommendation: "Remove local replace directives before release so builds resolve verified module versions.",
		})
	}
	return findings
}

func checkRequirements(rel string, lines []string) []interfaces.Finding {
	var findings []interfaces.Finding
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "--index-url") || strings.HasPrefix(trimmed, "--extra-index-url") {
			findings = append(findings, interfaces.Finding{
				ID:             fmt.Sprintf("SC-INDEX-%d", i+1),
				Severity:       interfaces.SeverityMedium,
				Confidence:     interfaces.ConfidenceLikely,
				File:           rel,
				Line:           i + 1,
				Title:          "Custom package index",
				Message:        "requirements.txt installs from a non-default package index.",
				Recommendation: "Confirm the index is trusted and not open to dependency confusion.",
			})
			continue
		}
		if urlDepRe.MatchString(trimmed) || strings.Contains(trimmed, " @ http") {
			findings = append(findings, interfaces.Finding{
				ID:             fmt.Sprintf("SC-URLDEP-%d", i+1),
				Severity:       interfaces.SeverityMedium,
				Confidence:     interfaces.ConfidenceDefinite,
				File:           rel,
				Line:           i + 1,
				Title:          "Dependency fetched from URL",
				Message:        fmt.Sprintf("Requirement %q resolves from a URL instead of the index.", excerpt(trimmed)),
				Recommendation: "Depend on a published, versioned package or pin the URL to a commit.",
			})
		}
	}
	return findings
}

func checkScript(rel string, lines []string) []interfaces.Finding {
	var findings []interfaces.Finding
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") || !pipeToShellRe.MatchString(line) {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("SC-PIPE-%d", i+1),
			Severity:       interfaces.SeverityHigh,
			Confidence:     interfaces.ConfidenceLikely,
			File:           rel,
			Line:           i + 1,
			Title:          "Remote script piped to shell",
			Message:        fmt.Sprintf("Line %d executes a downloaded script without verification.", i+1),
			Recommendation: "Download the script, verify its checksum, then execute it.",
		})
	}
	return findings
}

// lineOfKey returns the 1-based line of the first quoted JSON key, or 0.
func lineOfKey(lines []string, key string) int {
	quoted := `"` + key + `"`
	for i, line := range lines {
		if strings.Contains(line, quoted) {
			return i + 1
		}
	}
	return 0
}
