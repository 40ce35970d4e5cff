package scanner

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// MCP client configuration files, matched on base name.
var mcpConfigNames = map[string]bool{
	".mcp.json":                  true,
	"mcp.json":                   true,
	"mcp.yaml":                   true,
	"mcp.yml":                    true,
	"claude_desktop_config.json": true,
	"mcp_config.json":            true,
}

// isMCPConfig matches known config names and any *.mcp.json / *.mcp.yaml file.
func isMCPConfig(rel string) bool {
	base := strings.ToLower(path.Base(rel))
	return mcpConfigNames[base] || hasSuffixFold(base, ".mcp.json", ".mcp.yaml", ".mcp.yml")
}

// Top-level keys holding the server map.
var mcpServerKeys = []string{"mcpServers", "servers", "mcp_servers"}

var (
	sensitiveKeyRe = regexp.MustCompile(`(?i)(?:key|token|secret|password|passwd|credential|auth)`)
	envRefRe       = regexp.MustCompile(`^\$\{?[A-Za-z_][A-Za-z0-9_]*\}?$|^\$\{env:[^}]+\}$|^\{\{.*\}\}$`)
)

var packageRunners = map[string]bool{"npx": true, "uvx": true, "bunx": true, "pnpx": true}

var shells = map[string]bool{"sh": true, "bash": true, "zsh": true, "cmd": true, "powershell": true, "pwsh": true}

// mcpServer is the subset of an MCP server entry the scanner inspects.
type mcpServer struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	AlwaysAllow []string          `yaml:"alwaysAllow"`
}

// MCPConfigScanner audits MCP server definitions for literal credentials,
// unpinned packages, shell wrappers and plaintext remote endpoints.
type MCPConfigScanner struct{}

// NewMCPConfigScanner creates an MCP configuration scanner.
func NewMCPConfigScanner() *MCPConfigScanner {
	return &MCPConfigScanner{}
}

// Name returns the scanner identifier.
func (s *MCPConfigScanner) Name() string {
	return "mcp-config"
}

// Scan finds MCP configuration files under root and audits each server.
func (s *MCPConfigScanner) Scan(ctx context.Context, root string) (*interfaces.ScanResult, error) {
	result := &interfaces.ScanResult{Scanner: s.Name()}

	_, err := Walk(ctx, root, func(f File) error {
		if !isMCPConfig(f.Rel) {
			return nil
		}
		data, err := os.ReadFile(f.Abs)
		if err != nil {
			return nil
		}
		result.FilesScanned++

		isTest := IsTestPath(f.Rel)
		for _, finding := range s.auditFile(f.Rel, data) {
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

func (s *MCPConfigScanner) auditFile(rel string, data []byte) []interfaces.Finding {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []interfaces.Finding{{
			ID:             "MCP-PARSE",
			Severity:       interfaces.SeverityInfo,
			Confidence:     interfaces.ConfidenceDefinite,
			File:           rel,
			Title:          "Unparseable MCP configuration",
			Message:        fmt.Sprintf("Could not parse %s: %v", rel, err),
			Recommendation: "Fix the syntax so the server definitions can be audited.",
		}}
	}
	if len(doc.Content) == 0 {
		return nil
	}

	servers := mappingValue(doc.Content[0], mcpServerKeys...)
	if servers == nil || servers.Kind != yaml.MappingNode {
		return nil
	}

	var findings []interfaces.Finding
	for i := 0; i+1 < len(servers.Content); i += 2 {
		nameNode, body := servers.Content[i], servers.Content[i+1]
		var srv mcpServer
		if err := body.Decode(&srv); err != nil {
			findings = append(findings, interfaces.Finding{
				ID:             fmt.Sprintf("MCP-PARSE-%d", nameNode.Line),
				Severity:       interfaces.SeverityInfo,
				Confidence:     interfaces.ConfidenceDefinite,
				File:           rel,
				Line:           nameNode.Line,
				Title:          "Unparseable MCP server entry",
				Message:        fmt.Sprintf("Server %q could not be decoded: %v", nameNode.Value, err),
				Recommendation: "Fix the server definition so it can be audited.",
			})
			continue
		}
		findings = append(findings, auditServer(rel, nameNode.Value, nameNode.Line, body, srv)...)
	}
	return findings
}

func auditServer(rel, name string, line int, body *yaml.Node, srv mcpServer) []interfaces.Finding {
	var findings []interfaces.Finding
	add := func(id string, sev interfaces.Severity, conf interfaces.Confidence, at int, title, msg, rec string) {
		findings = append(findings, interfaces.Finding{
			ID:             fmt.Sprintf("MCP-%s-%s", id, sanitizeID(name)),
			Severity:       sev,
			Confidence:     conf,
			File:           rel,
			Line:           at,
			Title:          title,
			Message:        msg,
			Recommendation: rec,
			Metadata:       map[string]any{"server": name},
		})
	}

	for _, kv := range literalCredentials(mappingValue(body, "env"), srv.Env) {
		add("ENV-"+sanitizeID(kv.key), interfaces.SeverityCritical, kv.confidence, kv.line,
			"Literal credential in MCP server env",
			fmt.Sprintf("Server %q sets %s to a literal value.", name, kv.key),
			"Reference the credential from the environment (e.g. ${VAR}) instead of committing it.")
	}
	for _, kv := range literalCredentials(mappingValue(body, "headers"), srv.Headers) {
		add("HEADER-"+sanitizeID(kv.key), interfaces.SeverityCritical, kv.confidence, kv.line,
			"Literal credential in MCP server headers",
			fmt.Sprintf("Server %q sends header %s with a literal value.", name, kv.key),
			"Load the header value from the environment instead of committing it.")
	}

	cmd := strings.ToLower(path.Base(strings.ReplaceAll(srv.Command, `\`, "/")))
	if packageRunners[cmd] {
		if pkg := firstPositional(srv.Args); pkg != "" && !isPinned(cmd, pkg) {
			add("UNPINNED", interfaces.SeverityMedium, interfaces.ConfidenceLikely, line,
				"Unpinned MCP server package",
				fmt.Sprintf("Server %q runs %s %s without a pinned version.", name, cmd, pkg),
				"Pin the package to an exact version so upstream changes cannot alter the server.")
		}
	}
	if shells[strings.TrimSuffix(cmd, ".exe")] && containsAny(srv.Args, "-c", "/c", "-command") {
		add("SHELL", interfaces.SeverityHigh, interfaces.ConfidenceLikely, line,
			"MCP server launched through a shell",
			fmt.Sprintf("Server %q runs an inline shell command.", name),
			"Invoke the server binary directly instead of through a shell string.")
	}

	if srv.URL != "" {
		if u, err := url.Parse(srv.URL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			add("PLAINTEXT", interfaces.SeverityHigh, interfaces.ConfidenceDefinite, line,
				"Remote MCP server over plaintext HTTP",
				fmt.Sprintf("Server %q connects to %s without TLS.", name, u.Host),
				"Use an https:// endpoint for remote MCP servers.")
		}
	}

	if containsAny(srv.AlwaysAllow, "*") {
		add("AUTO-APPROVE", interfaces.SeverityMedium, interfaces.ConfidenceDefinite, line,
			"All MCP tools auto-approved",
			fmt.Sprintf("Server %q auto-approves every tool call.", name),
			"List only the tools that are safe to run without confirmation.")
	}

	return findings
}

type credential struct {
	key        string
	line       int
	confidence interfaces.Confidence
}

// literalCredentials returns sensitive keys whose values are literals rather
// than environment references.
func literalCredentials(node *yaml.Node, values map[string]string) []credential {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	var out []credential
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := strings.TrimSpace(values[key])
		if value == "" || !sensitiveKeyRe.MatchString(key) {
			continue
		}
		if envRefRe.MatchString(value) || isFalsePositive(value) {
			continue
		}
		conf := interfaces.ConfidenceLikely
		for _, p := range secretPatterns {
			if p.regex.MatchString(value) {
				conf = interfaces.ConfidenceDefinite
				break
			}
		}
		out = append(out, credential{key: key, line: node.Content[i].Line, confidence: conf})
	}
	return out
}

// mappingValue returns the value node of the first matching key in a mapping.
func mappingValue(node *yaml.Node, keys ...string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for _, want := range keys {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == want {
				return node.Content[i+1]
			}
		}
	}
	return nil
}

func firstPositional(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}

// isPinned reports whether a package argument names an exact version.
func isPinned(runner, pkg string) bool {
	if runner == "uvx" && strings.Contains(pkg, "==") {
		return true
	}
	at := strings.LastIndex(pkg, "@")
	if at <= 0 {
		return false
	}
	version := pkg[at+1:]
	return version != "" && version != "latest" && !strings.ContainsAny(version, "^~*xX")
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func containsAny(list []string, wants ...string) bool {
	for _, v := range list {
		for _, w := range wants {
			if strings.EqualFold(v, w) {
				return true
			}
		}
	}
	return false
}
