package bootstrap

import (
	"context"
	"fmt"

	"github.com/antonkom/warranty-pilot/internal/config"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
	"github.com/antonkom/warranty-pilot/internal/core/usecase"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/export/excel"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/extractor/ocrhttp"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/extractor/pdftext"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/llm/ollama"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/queue/nats"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/repository/postgres"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/resilience"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/storage/localfs"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/terms/httpsource"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/terms/rules"
)

// App wires the storage, queue, and pipeline components once and hands
// the inbound ports to whichever binary is starting.
type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	SubmitUC   ports.ArtifactSubmitter
	ProcessUC  ports.JobProcessor
	Jobs       ports.JobReader
	Warranties ports.WarrantyReader
	OverrideUC ports.OverrideApplier
	EventUC    ports.EventRecorder
	AssessUC   ports.RiskAssessor
	Exporter   *excel.Exporter

	// HealthChecks probe the optional backends (OCR, inference).
	HealthChecks map[string]func(context.Context) error

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	artifacts := postgres.NewArtifactRepository(db)
	jobs := postgres.NewJobRepository(db)
	warranties := postgres.NewWarrantyRepository(db)
	events := postgres.NewEventRepository(db)
	termsCache := postgres.NewTermsCacheRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init artifact storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Executor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var ocr ports.OCREngine
	if cfg.OCRBaseURL != "" {
		ocr = ocrhttp.New(cfg.OCRBaseURL, storage, executor)
	}
	extraction := usecase.NewExtractionEngine(
		pdftext.NewExtractor(storage), ocr, cfg.MinDirectTextChars, cfg.OCRTimeout,
	)

	fallback, err := rules.Load(cfg.TermsRulesPath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load terms rules: %w", err)
	}
	var source ports.TermsSource
	if cfg.TermsBaseURL != "" {
		source = httpsource.New(cfg.TermsBaseURL, cfg.TermsLookupsPerMinute, executor)
	}
	termsResolver := usecase.NewTermsResolver(
		termsCache, source, fallback, cfg.TermsCacheTTL, cfg.TermsTimeout, nil,
	)

	var renderer ports.SummaryRenderer
	if cfg.SummaryEngine == "ollama" {
		renderer = ollama.New(cfg.OllamaURL, cfg.OllamaModel, executor)
	}
	summarizer := usecase.NewSummarizer(cfg.SummaryEngine, renderer, cfg.InferenceTimeout, nil)

	fields := usecase.NewFieldExtractor(cfg.AlternatesMax)
	canonical := usecase.NewCanonicalizer(cfg.ConfidenceThreshold)

	healthChecks := map[string]func(context.Context) error{}
	if ocr != nil {
		healthChecks["ocr"] = ocr.Health
	}
	if renderer != nil {
		healthChecks["inference"] = renderer.Health
	}

	riskEngine := usecase.NewRiskEngine(usecase.RiskConfig{
		LowMax:        cfg.RiskLowMax,
		MediumMax:     cfg.RiskMediumMax,
		LookaheadDays: cfg.ExpiryLookaheadDays,
	})
	advisoryEngine := usecase.NewAdvisoryEngine(cfg.ExpiryLookaheadDays)

	return &App{
		Config: cfg,
		Queue:  queue,

		SubmitUC: usecase.NewSubmitArtifactUseCase(artifacts, jobs, storage, queue, nil),
		ProcessUC: usecase.NewProcessJobUseCase(
			jobs, artifacts, warranties, extraction, fields, termsResolver, canonical, summarizer, nil,
		),
		Jobs:       jobs,
		Warranties: warranties,
		OverrideUC: usecase.NewApplyOverrideUseCase(warranties, canonical, nil),
		EventUC:    usecase.NewRecordEventUseCase(events, nil),
		AssessUC:   usecase.NewAssessUseCase(warranties, events, riskEngine, advisoryEngine, nil),
		Exporter:   excel.NewExporter(),

		HealthChecks: healthChecks,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
