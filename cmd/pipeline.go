package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/toyinlola/warden/pkg/cli"
	"github.com/toyinlola/warden/pkg/history"
	"github.com/toyinlola/warden/pkg/interfaces"
	"github.com/toyinlola/warden/pkg/report"
	"github.com/toyinlola/warden/pkg/scanner"
	"github.com/toyinlola/warden/pkg/scorer"
)

// pipeline wires config, scanners, the scoring engine and history together.
// It is built once per command and reused across watch-mode re-scans.
type pipeline struct {
	cfg      *cli.Config
	target   string
	runner   *scanner.Runner
	calc     *scorer.Calculator
	gen      *report.Generator
	store    history.Store
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// outcome is the result of one pipeline run.
type outcome struct {
	Results     []*interfaces.ScanResult
	Report      *interfaces.Report
	Explanation *scorer.Explanation
	Trend       *history.Trend
}

// newPipeline prepares a pipeline scanning target. withHistory selects
// whether runs are recorded in the configured history backend.
func newPipeline(ctx context.Context, cfg *cli.Config, target string, withHistory bool, logger *slog.Logger) (*pipeline, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target %s is not a directory", target)
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	tp, shutdown := newTracerProvider(logger)
	runner, err := scanner.NewRunner(registry,
		scanner.WithTracerProvider(tp),
		scanner.WithRunnerLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	calc, err := cfg.BuildCalculator(logger)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:      cfg,
		target:   abs,
		runner:   runner,
		calc:     calc,
		gen:      report.NewGenerator(abs),
		logger:   logger,
		shutdown: shutdown,
	}

	if withHistory {
		store, err := openHistory(ctx, cfg.History)
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		p.store = store
	}
	return p, nil
}

// newRegistry registers the built-in scanners and applies the config toggles.
func newRegistry(cfg *cli.Config, logger *slog.Logger) (*scanner.Registry, error) {
	registry := scanner.NewRegistry()
	for _, s := range scanner.Defaults() {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}

	for name := range cfg.Scanners {
		if registry.Get(name) == nil {
			logger.Warn("config names an unknown scanner", "scanner", name)
		}
	}
	for _, name := range registry.List() {
		if err := registry.SetEnabled(name, cfg.ScannerEnabled(name)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// openHistory opens the configured history backend. It returns a nil store
// for the "none" backend.
func openHistory(ctx context.Context, hc cli.HistoryConfig) (history.Store, error) {
	switch hc.Backend {
	case cli.HistoryNone:
		return nil, nil
	case cli.HistoryRedis:
		store, err := history.NewRedisStore(ctx, history.RedisOptions{URL: hc.RedisURL, Limit: hc.Limit})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return history.NewFileStore(hc.Path, hc.Limit), nil
	}
}

// run scans the target once, scores it and records it in history.
func (p *pipeline) run(ctx context.Context) (*outcome, error) {
	results, err := p.runner.Run(ctx, p.target)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", p.target, err)
	}

	summary, exp := p.calc.Evaluate(results)
	out := &outcome{
		Results:     results,
		Report:      p.gen.Generate(results, summary),
		Explanation: exp,
	}

	p.logger.Debug("scan scored",
		"score", summary.Score,
		"grade", summary.Grade,
		"findings", summary.TotalFindings,
		"files", summary.ScannedFiles,
	)

	if p.store != nil {
		trend, err := history.Record(ctx, p.store, history.NewEntry(out.Report))
		if err != nil {
			// A history failure never fails the scan.
			p.logger.Warn("recording history failed", "error", err)
		} else {
			out.Trend = &trend
		}
	}
	return out, nil
}

func (p *pipeline) close() {
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Debug("closing history store", "error", err)
		}
	}
	if err := p.shutdown(context.Background()); err != nil {
		p.logger.Debug("shutting down tracer provider", "error", err)
	}
}

// loadConfig loads the config file named by --config, applying --no-color.
func loadConfig() (*cli.Config, error) {
	cfg, err := cli.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Output.NoColor = true
	}
	slog.Debug("config loaded",
		"fail_on", cfg.CI.FailOn,
		"format", cfg.Output.Format,
		"history", cfg.History.Backend,
	)
	return cfg, nil
}

// newFormatter returns the formatter for format, honoring no_color.
func newFormatter(format string, cfg *cli.Config) (report.Formatter, error) {
	f, err := report.NewFormatter(format)
	if err != nil {
		return nil, err
	}
	if tf, ok := f.(*report.TerminalFormatter); ok && cfg.Output.NoColor {
		tf.NoColor()
	}
	return f, nil
}
