package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/toyinlola/warden/pkg/cli"
	"github.com/toyinlola/warden/pkg/history"
	"github.com/toyinlola/warden/pkg/report"
)

var (
	format    string
	output    string
	explain   bool
	failOn    string
	noHistory bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a directory and print its risk score",
	Long: `Scan runs every enabled scanner against a directory (default: the current
directory), scores the findings and prints a report.

  warden scan
  warden scan ./path/to/repo --format json --output report.json
  warden scan --explain          # print the penalty breakdown to stderr
                                 # (and embed it in --format json output)

The exit code follows ci.fail_on (default "high"): 2 when any critical finding
is present, 1 when any high finding is present, 0 otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&format, "format", "f", "", "output format (terminal|json|markdown), overrides output.format")
	scanCmd.Flags().StringVarP(&output, "output", "o", "", "write output to file instead of stdout")
	scanCmd.Flags().BoolVar(&explain, "explain", false, "print the per-dimension penalty breakdown to stderr")
	scanCmd.Flags().StringVar(&failOn, "fail-on", "", "exit code policy (critical|high|none|grade:<G>), overrides ci.fail_on")
	scanCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this run in the score history")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	// 1. Load configuration.
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if failOn != "" {
		cfg.CI.FailOn = failOn
	}
	policy, err := cli.ParseFailOn(cfg.CI.FailOn)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	f, err := newFormatter(cfg.Output.Format, cfg)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	// 2. Build the pipeline and run it once.
	p, err := newPipeline(ctx, cfg, target, !noHistory, slog.Default())
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer p.close()

	out, err := p.run(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	// 3. Write the report.
	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		file, fileErr := os.Create(output)
		if fileErr != nil {
			return fmt.Errorf("scan: creating output file: %w", fileErr)
		}
		defer file.Close() // best-effort cleanup
		w = file
	}

	if jf, ok := f.(*report.JSONFormatter); ok {
		jf.WithTrend(out.Trend)
		if explain {
			jf.WithExplanation(out.Explanation)
		}
	}
	if err := f.Format(w, out.Report); err != nil {
		return fmt.Errorf("scan: writing report: %w", err)
	}
	if out.Trend != nil && cfg.Output.Format == report.FormatTerminal && output == "" {
		writeTrend(w, *out.Trend)
	}
	if explain {
		writeExplanation(cmd.ErrOrStderr(), out.Explanation, p.calc.Config())
	}

	// 4. Exit code from the fail policy.
	if code := policy.ExitCode(&out.Report.Summary); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// writeTrend prints the change since the previous run.
func writeTrend(w io.Writer, t history.Trend) {
	if t.Label == history.TrendFirstRun {
		fmt.Fprintf(w, "  Trend: %s (score %d)\n\n", t.Label, t.Current)
		return
	}
	fmt.Fprintf(w, "  Trend: %s (%+d since last run, was %d %s)\n\n", t.Label, t.Delta, t.Previous, t.PreviousGrade)
}
