package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/config"
	"github.com/aluiziolira/go-bookshop-client/importer"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/pipeline"
)

func runImport(ctx context.Context, env *cliEnv, args []string) error {
	cfg := env.cfg
	fs := newFlagSet("import", env)
	fs.StringVar(&cfg.ImportURL, "import-url", cfg.ImportURL, "Catalog URL to crawl")
	fs.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Maximum catalog pages to crawl")
	fs.IntVar(&cfg.Parallelism, "parallel", cfg.Parallelism, "Number of concurrent requests")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Delay between requests")
	fs.DurationVar(&cfg.RandomDelay, "random-delay", cfg.RandomDelay, "Random jitter added to delay")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per URL")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	fs.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	fs.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&cfg.DefaultCondition, "condition", cfg.DefaultCondition, "Condition for listings that do not state one")
	fs.StringVar(&cfg.DefaultAuthor, "author", cfg.DefaultAuthor, "Author for listings that do not state one")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, api, or tee (csv and api)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	setup(env)

	if err := cfg.ValidateImport(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting import",
		slog.String("import_url", cfg.ImportURL),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	registry := prometheus.NewRegistry()
	im, err := importer.New(cfg, importer.NewMetrics(registry))
	if err != nil {
		return fmt.Errorf("initialising importer: %w", err)
	}
	client, err := api.NewClient(cfg, api.NewMetrics(registry))
	if err != nil {
		return err
	}

	writer, err := createWriter(ctx, cfg, client)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := im.Run(ctx, p)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("import failed: %w", err)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printSummary(env.stdout, result, time.Since(startTime), cfg, p.Stats())
	return nil
}

func createWriter(ctx context.Context, cfg *config.Config, client pipeline.ListingCreator) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case "api":
		return pipeline.NewAPIWriter(ctx, client), nil
	case "tee":
		csvWriter, err := pipeline.NewCSVWriter(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		return pipeline.NewTeeWriter(csvWriter, pipeline.NewAPIWriter(ctx, client))
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func printSummary(w io.Writer, result *models.ImportResult, duration time.Duration, cfg *config.Config, stats pipeline.Stats) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Import complete")

	fmt.Fprintf(w, "  Listings:      %d\n", stats.Processed)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Fprintf(w, "  Pages:         %d\n", result.PageCount)
	fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	fmt.Fprintf(w, "  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if len(stats.Rejected) > 0 {
		fmt.Fprintf(w, "  Rejected:      %v\n", stats.Rejected)
	}
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(stats.Processed) / duration.Seconds()
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintf(w, "  Items/sec:     %.2f\n", itemsPerSec)
	switch cfg.OutputFormat {
	case "api":
		fmt.Fprintf(w, "  Published to:  %s\n", cfg.APIBaseURL)
	case "tee":
		fmt.Fprintf(w, "  Output file:   %s\n", cfg.OutputFile)
		fmt.Fprintf(w, "  Published to:  %s\n", cfg.APIBaseURL)
	default:
		fmt.Fprintf(w, "  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Fprintln(w, separator)
}
