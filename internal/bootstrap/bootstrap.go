// Package bootstrap wires the extraction runtime from configuration. The
// daemon and the command line tools share it so they escalate, cache and
// record usage the same way.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/policy-extractor/internal/cache"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/events"
	"github.com/joseph-ayodele/policy-extractor/internal/extract"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
	"github.com/joseph-ayodele/policy-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/policy-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/policy-extractor/internal/observability/metrics"
	"github.com/joseph-ayodele/policy-extractor/internal/ocr"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
	"github.com/joseph-ayodele/policy-extractor/internal/resilience"
)

// Runtime is a fully wired extractor plus the resources it owns.
type Runtime struct {
	Orchestrator *pipeline.Orchestrator
	// Extractor is the orchestrator behind the optional cache and the in-flight gauge.
	Extractor pipeline.Extractor
	Metrics   *metrics.ExtractionMetrics
	DB        *repository.DB
	Usage     repository.UsageRepository // nil without a database

	publisher *events.UsagePublisher
	cache     *cache.RedisCache
	logger    *slog.Logger
}

// New builds the runtime. Optional sinks (database, NATS, redis) are only
// connected when configured; a configured sink that cannot be reached is an error.
func New(ctx context.Context, cfg *common.Config, service string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Metrics: metrics.NewExtractionMetrics(service), logger: logger}
	fail := func(err error) (*Runtime, error) {
		rt.closeSinks()
		return nil, err
	}

	var sinks pipeline.MultiLogger
	if usageEnabled(cfg.Database) {
		db, err := repository.Open(ctx, repository.FromAppConfig(cfg.Database), logger)
		if err != nil {
			return fail(fmt.Errorf("open usage database: %w", err))
		}
		rt.DB = db
		if err := repository.HealthCheck(ctx, db.DB, 5*time.Second, logger); err != nil {
			return fail(fmt.Errorf("usage database health: %w", err))
		}
		if err := repository.Migrate(ctx, db.DB.DB, db.Dialect()); err != nil {
			return fail(fmt.Errorf("migrate usage database: %w", err))
		}
		rt.Usage = repository.NewUsageRepository(db.DB, logger)
		sinks = append(sinks, rt.Usage)
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.UsageSubject, events.Options{
			Executor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
		}, logger)
		if err != nil {
			return fail(err)
		}
		rt.publisher = pub
		sinks = append(sinks, pub)
	}

	providers, err := Providers(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	opts := []pipeline.Option{pipeline.WithRecorder(rt.Metrics)}
	if len(sinks) > 0 {
		opts = append(opts, pipeline.WithUsageLogger(sinks))
	}
	rt.Orchestrator = pipeline.NewOrchestrator(pipeline.FromAppConfig(cfg.Pipeline), providers, logger, opts...)

	var ex pipeline.Extractor = rt.Orchestrator
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.Cache.RedisURL, logger)
		if err != nil {
			return fail(err)
		}
		rt.cache = rc
		ex = pipeline.NewCachedExtractor(ex, rc, cfg.Cache.TTL, logger)
	}
	rt.Extractor = &gauged{next: ex, m: rt.Metrics}

	logger.Info("bootstrap.ready",
		"text_tier", providers.Text != nil,
		"ocr_tier", providers.OCR != nil,
		"cloud_tier", providers.Cloud != nil,
		"usage_db", rt.Usage != nil,
		"usage_events", rt.publisher != nil,
		"cache", rt.cache != nil,
	)
	return rt, nil
}

// Close waits for pending usage writes, then releases every sink.
func (r *Runtime) Close(ctx context.Context) {
	if r.Orchestrator != nil {
		_ = r.Orchestrator.Drain(ctx)
	}
	r.closeSinks()
}

func (r *Runtime) closeSinks() {
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			r.logger.Warn("bootstrap.cache.close_failed", "error", err)
		}
	}
	if r.DB != nil {
		repository.Close(r.DB, r.logger)
	}
}

// usageEnabled reports whether a usage database is configured. SQLite
// without a DSN runs in memory, which is useful for one-off batch runs.
func usageEnabled(c common.DatabaseConfig) bool {
	return c.DSN != "" || c.Driver == repository.DriverSQLite
}

// Providers builds the escalation tiers. The cloud tier is left nil when no
// cloud provider is configured.
func Providers(ctx context.Context, cfg *common.Config, logger *slog.Logger) (pipeline.Providers, error) {
	engine := ocr.NewEngine(ocr.Config{
		TesseractLang:    cfg.OCR.TesseractLang,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPages,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)

	p := pipeline.Providers{
		Text: extract.NewTextLayerProvider(engine, logger),
		OCR:  extract.NewOCRProvider(engine, logger),
	}

	analyzer, err := CloudAnalyzer(ctx, cfg.LLM, logger)
	if err != nil {
		return pipeline.Providers{}, err
	}
	if analyzer != nil {
		rc := resilience.DefaultConfig()
		rc.Retry.Attempts = cfg.LLM.RetryMaxAttempts
		rc.Breaker.Disabled = !cfg.LLM.BreakerEnabled
		p.Cloud = extract.NewCloudProvider(analyzer, logger,
			extract.WithRateLimit(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst),
			extract.WithExecutor(resilience.NewExecutor(rc, logger)),
		)
	}
	return p, nil
}

// CloudAnalyzer returns the configured document-AI backend, or nil.
func CloudAnalyzer(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.DocumentAnalyzer, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cloud provider %q", cfg.Provider)
	}
}

// gauged tracks in-flight extractions.
type gauged struct {
	next pipeline.Extractor
	m    *metrics.ExtractionMetrics
}

func (g *gauged) Extract(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
	g.m.Start()
	defer g.m.Finish()
	return g.next.Extract(ctx, req)
}
