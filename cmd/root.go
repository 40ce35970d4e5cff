// Package cmd implements the Warden CLI commands using Cobra.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	tracing bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Security risk scanner and grader for repositories",
	Long: `Warden scans a repository with independent security scanners (secrets,
prompt injection, MCP server config, supply chain, missing defenses) and turns
their findings into a 0-100 risk score, a letter grade and four dimension
sub-scores.

Exit codes: 0 clean, 1 high findings (or grade below ci.fail_on), 2 critical
findings, 3 usage or runtime error.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries a non-zero process exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCodeError is used for configuration and runtime failures.
const ExitCodeError = 3

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "warden: %v\n", err)
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: .warden.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors in terminal output")
	rootCmd.PersistentFlags().BoolVar(&tracing, "trace", false, "log scanner trace spans at debug level")
}

func setupLogging(w io.Writer) error {
	level := slog.LevelInfo
	if verbose || tracing {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	return nil
}
