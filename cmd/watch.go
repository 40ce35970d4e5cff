package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toyinlola/warden/pkg/report"
	"github.com/toyinlola/warden/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-scan a directory whenever its files change",
	Long: `Watch scans a directory once, then re-scans it each time files change and
prints a fresh report. Changes are debounced (watch.debounce, default 500ms).
Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	f, err := newFormatter(cfg.Output.Format, cfg)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	p, err := newPipeline(ctx, cfg, target, true, slog.Default())
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer p.close()

	w := cmd.OutOrStdout()
	scanOnce := func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			slog.Info("files changed, re-scanning", "count", len(changed), "first", changed[0])
		}
		out, err := p.run(ctx)
		if err != nil {
			return err
		}
		if err := f.Format(w, out.Report); err != nil {
			return err
		}
		if out.Trend != nil && cfg.Output.Format == report.FormatTerminal {
			writeTrend(w, *out.Trend)
		}
		return nil
	}

	if err := scanOnce(ctx, nil); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	watcher, err := watch.New(watch.Config{
		Root:       p.target,
		Debounce:   cfg.Watch.Debounce,
		IgnoreDirs: watchIgnoreDirs(p.target, cfg.History.Path),
		OnChange:   scanOnce,
		OnError:    func(err error) { slog.Error("watch: re-scan failed", "error", err) },
		Logger:     slog.Default(),
	})
	if err != nil {
		return err
	}

	slog.Info("watching for changes", "root", p.target, "debounce", cfg.Watch.Debounce)
	return watcher.Run(ctx)
}

// watchIgnoreDirs keeps writes to the history file from triggering re-scans.
func watchIgnoreDirs(root, historyPath string) []string {
	dirs := []string{".warden"}
	abs, err := filepath.Abs(historyPath)
	if err != nil {
		return dirs
	}
	rel, err := filepath.Rel(root, filepath.Dir(abs))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return dirs
	}
	return append(dirs, filepath.Base(rel))
}
