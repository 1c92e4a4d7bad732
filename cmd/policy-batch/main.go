package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/policy-extractor/internal/bootstrap"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/export"
	"github.com/joseph-ayodele/policy-extractor/internal/ingest"
	"github.com/joseph-ayodele/policy-extractor/internal/observability/logging"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("POLICY_CONFIG"), "optional YAML config file")
		dir        = flag.String("dir", "", "directory of policy documents (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		tenant     = flag.String("tenant", "local", "tenant id recorded with usage")
		premium    = flag.Bool("premium", false, "skip straight to the cloud tier")
		workers    = flag.Int("workers", 0, "documents processed at once (0 = auto)")
		inmem      = flag.Bool("inmem", false, "record usage in an in-memory SQLite database")
		watch      = flag.Bool("watch", false, "keep running and extract documents as they appear")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "policies.xlsx")
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ""
	}
	if *workers > 0 {
		cfg.Pipeline.BatchConcurrency = *workers
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(logging.Options{Service: "policy-batch", Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = common.WithTenantID(ctx, *tenant)

	rt, err := bootstrap.New(ctx, cfg, "policy-batch", logger)
	if err != nil {
		logger.Error("failed to start extraction runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rt.Close(cctx)
	}()

	maxBytes := int64(cfg.Server.MaxDocumentBytes)
	if *watch {
		if err := watchDir(ctx, rt.Extractor, *dir, *tenant, *premium, maxBytes, logger); err != nil {
			logger.Error("watch failed", "error", err)
		}
		return
	}

	scanner := &ingest.Scanner{TenantID: *tenant, ForcePremium: *premium, SkipHidden: true, MaxBytes: maxBytes, Logger: logger}
	files, stats, err := scanner.ScanDirectory(ctx, *dir)
	if err != nil {
		logger.Error("directory scan failed", "dir", *dir, "error", err)
		return
	}
	logger.Info("directory scanned", "dir", *dir, "matched", stats.Matched, "loaded", stats.Succeeded, "duplicates", stats.Deduplicated, "failed", stats.Failed)

	var (
		reqs  []entity.ExtractionRequest
		paths []string
	)
	for _, f := range files {
		if f.Err != "" || f.Deduplicated {
			continue
		}
		reqs = append(reqs, f.Request)
		paths = append(paths, f.Path)
	}
	if len(reqs) == 0 {
		logger.Warn("no documents to process", "dir", *dir)
		return
	}

	batch := pipeline.NewBatch(rt.Extractor, logger, pipeline.WithConcurrency(cfg.Pipeline.BatchConcurrency))
	results := batch.ExtractBatch(ctx, reqs)

	rows := make([]export.Row, len(results))
	valid := 0
	for i, res := range results {
		rep := pipeline.Validate(res)
		if rep.IsValid {
			valid++
		}
		rows[i] = export.Row{Path: paths[i], Result: res, Validation: rep}
	}

	var usage []entity.UsageSummary
	if rt.Usage != nil {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = rt.Orchestrator.Drain(dctx)
		cancel()
		if usage, err = rt.Usage.Summarize(ctx, *tenant, time.Now().Add(-24*time.Hour)); err != nil {
			logger.Warn("usage summary unavailable", "error", err)
		}
	}

	data, err := export.NewService(logger).ExportResultsXLSX(ctx, rows, usage)
	if err != nil {
		logger.Error("export failed", "error", err)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write export", "path", *out, "error", err)
		return
	}
	logger.Info("batch complete", "documents", len(results), "valid", valid, "out", *out)
}

// watchDir extracts every document that appears under dir until ctx ends.
func watchDir(ctx context.Context, ex pipeline.Extractor, dir, tenant string, premium bool, maxBytes int64, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching for documents", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			req, _, err := ingest.LoadFile(p, tenant, premium, maxBytes)
			if err != nil {
				logger.Warn("skipping file", "path", p, "error", err)
				continue
			}
			res := ex.Extract(ctx, req)
			rep := pipeline.Validate(res)
			logger.Info("document processed",
				"path", p,
				"success", res.Success,
				"method", res.Method,
				"confidence", res.Confidence,
				"fields", res.Fields.Count(),
				"valid", rep.IsValid,
				"issues", rep.Issues,
			)
		}
	}
}
