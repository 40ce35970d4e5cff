package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/toyinlola/warden/pkg/interfaces"
)

const instrumentationName = "github.com/toyinlola/warden/pkg/scanner"

// Runner orchestrates running all enabled scanners against a target.
type Runner struct {
	registry *Registry
	tracer   trace.Tracer
	findings metric.Int64Counter
	duration metric.Float64Histogram
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *slog.Logger
}

// WithTracerProvider sets the provider for scanner spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(c *runnerConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets the provider for scanner metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) RunnerOption {
	return func(c *runnerConfig) {
		c.meterProvider = mp
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(c *runnerConfig) {
		c.logger = l
	}
}

// NewRunner creates a runner backed by the given registry.
func NewRunner(registry *Registry, opts ...RunnerOption) (*Runner, error) {
	cfg := runnerConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	findings, err := meter.Int64Counter(
		"warden.scanner.findings",
		metric.WithDescription("Findings reported per scanner"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("scanner: create findings counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"warden.scanner.duration",
		metric.WithDescription("Scanner run time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("scanner: create duration histogram: %w", err)
	}

	return &Runner{
		registry: registry,
		tracer:   cfg.tracerProvider.Tracer(instrumentationName),
		findings: findings,
		duration: duration,
		logger:   cfg.logger,
	}, nil
}

// Run executes all enabled scanners against root in parallel.
// A failing scanner does not stop other scanners from running; its result
// carries the error and no findings. Results are sorted by scanner name.
// On cancellation the results gathered so far are returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, root string) ([]*interfaces.ScanResult, error) {
	if root == "" {
		return nil, fmt.Errorf("scanner: root must not be empty")
	}

	scanners := r.registry.EnabledScanners()
	if len(scanners) == 0 {
		r.logger.Info("no enabled scanners to run")
		return nil, nil
	}

	ctx, span := r.tracer.Start(ctx, "scan",
		trace.WithAttributes(
			attribute.String("scan.root", root),
			attribute.Int("scan.scanner_count", len(scanners)),
		),
	)
	defer span.End()

	r.logger.Info("starting scan", "root", root, "scanner_count", len(scanners))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]*interfaces.ScanResult, 0, len(scanners))
	)

	for _, s := range scanners {
		wg.Add(1)
		go func(s Scanner) {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			result := r.runOne(ctx, s, root)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(s)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Scanner < results[j].Scanner })

	if err := ctx.Err(); err != nil {
		r.logger.Warn("scan cancelled", "error", err)
		span.SetStatus(codes.Error, "cancelled")
		return results, err
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, s Scanner, root string) *interfaces.ScanResult {
	name := s.Name()
	ctx, span := r.tracer.Start(ctx, "scanner.run", trace.WithAttributes(attribute.String("scanner.name", name)))
	defer span.End()

	start := time.Now()
	r.logger.Debug("running scanner", "name", name)

	result, err := s.Scan(ctx, root)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(attribute.String("scanner", name))
	r.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if err != nil {
		r.logger.Error("scanner failed", "name", name, "error", err, "duration", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &interfaces.ScanResult{
			Scanner:  name,
			Duration: elapsed,
			Error:    fmt.Errorf("scanner %s: %w", name, err),
		}
	}
	if result == nil {
		result = &interfaces.ScanResult{}
	}

	result.Scanner = name
	result.Duration = elapsed

	r.findings.Add(ctx, int64(len(result.Findings)), attrs)
	span.SetAttributes(
		attribute.Int("scanner.findings", len(result.Findings)),
		attribute.Int("scanner.files", result.FilesScanned),
	)
	r.logger.Info("scanner complete", "name", name, "findings", len(result.Findings), "duration", elapsed)

	return result
}
