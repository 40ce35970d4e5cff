package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/toyinlola/warden/pkg/cli"
	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/report"
	"github.com/toyinlola/warden/pkg/vcs"
)

var ciCmd = &cobra.Command{
	Use:   "ci [path]",
	Short: "Run a scan in CI mode with PR commenting and commit status",
	Long: `CI mode auto-detects the CI environment (GitHub Actions, Forgejo Actions,
GitLab CI) and scans the workspace.

It prints the terminal report to stdout, optionally posts the report as a PR
comment (ci.comment), sets a commit status (ci.status, default on) and exits
according to ci.fail_on:
  fail_on: "high"      → 2 on critical, 1 on high findings (default)
  fail_on: "critical"  → 2 on critical findings only
  fail_on: "grade:B"   → as "high", and 1 when the grade is worse than B
  fail_on: "none"      → always 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCI,
}

func init() {
	rootCmd.AddCommand(ciCmd)
}

func runCI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target := os.Getenv("GITHUB_WORKSPACE")
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		target = "."
	}

	// 1. Load configuration.
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("ci: %w", err)
	}
	policy, err := cli.ParseFailOn(cfg.CI.FailOn)
	if err != nil {
		return fmt.Errorf("ci: %w", err)
	}

	// 2. Detect CI environment and create a provider (nil outside GitHub/Forgejo).
	env := vcs.DetectEnvironment()
	slog.Info("CI environment detected",
		"platform", env.Platform,
		"pr", env.PRNumber,
		"owner", env.Owner,
		"repo", env.Repo,
		"sha", env.SHA,
	)
	provider := createVCSProvider(env, cfg)

	reportStatus := provider != nil && env.SHA != "" && cfg.CI.StatusEnabled()
	if reportStatus {
		setCIStatus(ctx, provider, env.SHA, interfaces.StatusPending, "Warden scan running")
	}

	// 3. Scan and score. Every failure after pending resolves the status.
	p, err := newPipeline(ctx, cfg, target, true, slog.Default())
	if err != nil {
		if reportStatus {
			setCIStatus(ctx, provider, env.SHA, interfaces.StatusError, "Warden scan failed")
		}
		return fmt.Errorf("ci: %w", err)
	}
	defer p.close()

	out, err := p.run(ctx)
	if err != nil {
		if reportStatus {
			setCIStatus(ctx, provider, env.SHA, interfaces.StatusError, "Warden scan failed")
		}
		return fmt.Errorf("ci: %w", err)
	}
	code := policy.ExitCode(&out.Report.Summary)

	// 4. Print terminal report to stdout.
	termFmt := report.NewTerminalFormatter()
	if cfg.Output.NoColor {
		termFmt.NoColor()
	}
	if err := termFmt.Format(cmd.OutOrStdout(), out.Report); err != nil {
		return fmt.Errorf("ci: writing terminal report: %w", err)
	}

	// 5. Post PR comment if configured and a VCS provider is available.
	if cfg.CI.Comment && provider != nil && env.PRNumber != "" {
		postCIComment(ctx, provider, env.PRNumber, cfg, out.Report)
	}

	// 6. Set commit status.
	if reportStatus {
		state := interfaces.StatusSuccess
		if code != 0 {
			state = interfaces.StatusFailure
		}
		setCIStatus(ctx, provider, env.SHA, state, "Warden "+report.Headline(out.Report.Summary))
	}

	// 7. Exit with the configured policy.
	if code != 0 {
		slog.Info("failing build", "fail_on", policy.String(), "exit_code", code)
		return &ExitError{Code: code}
	}
	return nil
}

// createVCSProvider returns nil when the platform has no provider or when
// neither commenting nor status reporting is enabled.
func createVCSProvider(env vcs.Environment, cfg *cli.Config) interfaces.VCSProvider {
	if !cfg.CI.Comment && !cfg.CI.StatusEnabled() {
		return nil
	}
	if env.Platform != vcs.PlatformGitHub && env.Platform != vcs.PlatformForgejo {
		return nil
	}
	provider, err := vcs.NewProvider(env)
	if err != nil {
		slog.Warn("ci: could not create VCS provider", "platform", env.Platform, "error", err)
		return nil
	}
	return provider
}

// postCIComment posts the report as a PR comment, replacing an earlier
// Warden comment when the platform supports it.
func postCIComment(ctx context.Context, provider interfaces.VCSProvider, pr string, cfg *cli.Config, rpt *interfaces.Report) {
	f, err := report.NewFormatter(cfg.CI.CommentFormat)
	if err != nil {
		slog.Warn("ci: unknown comment_format, using markdown", "format", cfg.CI.CommentFormat)
		f = report.NewMarkdownFormatter()
	}
	if tf, ok := f.(*report.TerminalFormatter); ok {
		tf.NoColor()
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, rpt); err != nil {
		slog.Error("ci: generating report for comment", "error", err)
		return
	}

	if err := provider.PostComment(ctx, pr, buf.String()); err != nil {
		slog.Error("ci: posting PR comment", "error", err)
		return
	}
	slog.Info("PR comment posted", "pr", pr)
}

// setCIStatus sets the commit status on the head SHA. Failures are logged.
func setCIStatus(ctx context.Context, provider interfaces.VCSProvider, sha string, state interfaces.StatusState, description string) {
	if err := provider.SetStatus(ctx, sha, state, description); err != nil {
		slog.Error("ci: setting commit status", "error", err)
		return
	}
	slog.Info("commit status set", "sha", sha, "status", state)
}
