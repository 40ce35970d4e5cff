package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// Locations GitHub and Forgejo accept for a security policy.
var securityPolicyPaths = []string{"SECURITY.md", ".github/SECURITY.md", "docs/SECURITY.md", ".forgejo/SECURITY.md"}

// Dotenv files meant to be committed.
var envTemplateSuffixes = []string{".example", ".sample", ".template", ".dist"}

// Agent settings files holding tool permission lists.
var agentSettingsPaths = []string{".claude/settings.json", ".claude/settings.local.json"}

// agentSettings is the subset of an agent settings file the scanner reads.
type agentSettings struct {
	Permissions struct {
		Allow       []string `json:"allow"`
		Deny        []string `json:"deny"`
		DefaultMode string   `json:"defaultMode"`
	} `json:"permissions"`
}

// DefensesScanner reports missing or weakened repository defenses: no
// security policy, secrets files that are not ignored and agent settings
// that allow unrestricted tool use.
type DefensesScanner struct{}

// NewDefensesScanner creates a defenses scanner.
func NewDefensesScanner() *DefensesScanner {
	return &DefensesScanner{}
}

// Name returns the scanner identifier.
func (s *DefensesScanner) Name() string {
	return "defenses"
}

// Scan inspects the repository root and its dotenv files.
func (s *DefensesScanner) Scan(ctx context.Context, root string) (*interfaces.ScanResult, error) {
	result := &interfaces.ScanResult{Scanner: s.Name()}

	var envFiles []string
	_, err := Walk(ctx, root, func(f File) error {
		if isEnvFile(f.Rel) {
			envFiles = append(envFiles, f.Rel)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	sort.Strings(envFiles)

	var findings []interfaces.Finding

	if !anyExists(root, securityPolicyPaths) {
		findings = append(findings, interfaces.Finding{
			ID:             "DEF-NO-SECURITY-POLICY",
			Severity:       interfaces.SeverityInfo,
			Confidence:     interfaces.ConfidenceDefinite,
			Title:          "No security policy",
			Message:        "The repository has no SECURITY.md describing how to report vulnerabilities.",
			Recommendation: "Add a SECURITY.md with a private disclosure channel.",
		})
	} else {
		result.FilesScanned++
	}

	patterns, hasGitignore, err := readGitignore(root)
	if err != nil {
		return result, err
	}
	if hasGitignore {
		result.FilesScanned++
	}

	if !hasGitignore {
		findings = append(findings, interfaces.Finding{
			ID:             "DEF-NO-GITIGNORE",
			Severity:       interfaces.SeverityMedium,
			Confidence:     interfaces.ConfidenceLikely,
			File:           ".gitignore",
			Title:          "No .gitignore",
			Message:        "Without a .gitignore, local secrets and build output are easily committed.",
			Recommendation: "Add a .gitignore that covers .env files and credentials.",
		})
	}

	for _, rel := range envFiles {
		result.FilesScanned++
		if ignored(patterns, rel) {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("DEF-ENV-%s", sanitizeID(rel)),
			Severity:       interfaces.SeverityHigh,
			Confidence:     interfaces.ConfidenceDefinite,
			TestFile:       IsTestPath(rel),
			File:           rel,
			Title:          "Environment file not ignored",
			Message:        fmt.Sprintf("%s is not covered by .gitignore and may be committed with secrets.", rel),
			Recommendation: "Add the file to .gitignore and commit a .env.example instead.",
		})
	}

	for _, rel := range agentSettingsPaths {
		found, ok := auditAgentSettings(root, rel)
		if ok {
			result.FilesScanned++
		}
		findings = append(findings, found...)
	}

	for i := range findings {
		findings[i].Scanner = s.Name()
	}
	result.Findings = findings
	return result, nil
}

func isEnvFile(rel string) bool {
	base := strings.ToLower(path.Base(rel))
	if base != ".env" && !strings.HasPrefix(base, ".env.") && !strings.HasSuffix(base, ".env") {
		return false
	}
	return !hasSuffixFold(base, envTemplateSuffixes...)
}

func anyExists(root string, rels []string) bool {
	for _, rel := range rels {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err == nil {
			return true
		}
	}
	return false
}

// readGitignore returns the non-comment patterns of the root .gitignore.
func readGitignore(root string) ([]string, bool, error) {
	lines, err := readLines(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read .gitignore: %w", err)
	}
	var patterns []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, true, nil
}

// ignored applies a subset of gitignore semantics: globs matched against any
// path segment, anchored paths and negation. Later patterns win.
func ignored(patterns []string, rel string) bool {
	segments := strings.Split(rel, "/")
	result := false
	for _, p := range patterns {
		negate := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(p, "!")
		p = strings.TrimSuffix(p, "/")

		var match bool
		if strings.Contains(strings.TrimPrefix(p, "/"), "/") || strings.HasPrefix(p, "/") {
			match, _ = path.Match(strings.TrimPrefix(p, "/"), rel)
		} else {
			for _, seg := range segments {
				if ok, _ := path.Match(p, seg); ok {
					match = true
					break
				}
			}
		}
		if match {
			result = !negate
		}
	}
	return result
}

// auditAgentSettings reports permissive agent settings. The bool is false when
// the file is absent or unreadable.
func auditAgentSettings(root, rel string) ([]interfaces.Finding, bool) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, false
	}
	var settings agentSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, false
	}

	var findings []interfaces.Finding
	if settings.Permissions.DefaultMode == "bypassPermissions" {
		findings = append(findings, interfaces.Finding{
			ID:             "DEF-AGENT-BYPASS",
			Severity:       interfaces.SeverityHigh,
			Confidence:     interfaces.ConfidenceDefinite,
			File:           rel,
			Title:          "Agent permission checks bypassed",
			Message:        fmt.Sprintf("%s sets defaultMode to bypassPermissions.", rel),
			Recommendation: "Remove bypassPermissions and allow only the tools the project needs.",
		})
	}
	for _, rule := range settings.Permissions.Allow {
		if rule != "*" && rule != "Bash" && rule != "Bash(*)" {
			continue
		}
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("DEF-AGENT-ALLOW-%s", sanitizeID(rule)),
			Severity:       interfaces.SeverityHigh,
			Confidence:     interfaces.ConfidenceLikely,
			File:           rel,
			Title:          "Unrestricted agent tool permission",
			Message:        fmt.Sprintf("%s allows %q without confirmation.", rel, rule),
			Recommendation: "Scope allow rules to specific commands.",
		})
	}
	if len(settings.Permissions.Allow) > 0 && len(settings.Permissions.Deny) == 0 {
		findings = append(findings, interfaces.Finding{
			ID:             "DEF-AGENT-NO-DENY",
			Severity:       interfaces.SeverityInfo,
			Confidence:     interfaces.ConfidencePossible,
			File:           rel,
			Title:          "No agent deny list",
			Message:        fmt.Sprintf("%s allows tools but denies none.", rel),
			Recommendation: "Deny reads of secrets such as Read(./.env) and Read(./secrets/**).",
		})
	}
	return findings, true
}
