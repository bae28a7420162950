package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"call-analytics-go/internal/config"
	"call-analytics-go/internal/extractor"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/metrics"
	"call-analytics-go/internal/moderation"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/storage"
	"call-analytics-go/internal/transcription"
)

// App is the wired service shared by the HTTP server and the CLI.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.PipelineMetrics
	Store        *storage.Store
	Orchestrator *processor.Orchestrator
}

// New opens the store and builds every capability from cfg. Mock flags
// swap the external services for offline stand-ins.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPipelineMetrics(reg)

	store, err := storage.Open(ctx, cfg.DatabasePath,
		storage.WithLogger(log.Component("storage")),
		storage.WithMaxRetryTime(cfg.PersistMaxRetryTime),
		storage.WithAlerter(storage.MultiAlerter{storage.LogAlerter{Log: log.Component("alert")}, m}),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	deps, err := buildDeps(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	deps.Recorder = store

	orch, err := processor.New(deps,
		processor.WithLogger(log.Component("orchestrator")),
		processor.WithStageTimeout(cfg.StageTimeout),
		processor.WithObserver(m),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	log.WithFields(map[string]any{
		"db":              store.Path(),
		"mock_llm":        cfg.UseMockLLM,
		"mock_transcribe": cfg.UseMockTranscribe,
		"mock_moderation": cfg.UseMockModeration,
	}).Info("call pipeline ready")

	return &App{
		Config:       cfg,
		Log:          log,
		Registry:     reg,
		Metrics:      m,
		Store:        store,
		Orchestrator: orch,
	}, nil
}

func buildDeps(cfg *config.Config, log *logger.Logger) (processor.Deps, error) {
	var deps processor.Deps

	var llm extractor.Completer = extractor.MockCompleter{}
	if !cfg.UseMockLLM {
		client, err := extractor.NewClient(extractor.ClientConfig{
			URL:          cfg.LLMGatewayURL,
			APIKey:       cfg.LLMAPIKey,
			Model:        cfg.LLMModel,
			Temperature:  cfg.LLMTemperature,
			HTTPTimeout:  cfg.HTTPTimeout,
			MaxRetryTime: cfg.MaxRetryTime,
			Logger:       log.Component("llm-client"),
		})
		if err != nil {
			return deps, fmt.Errorf("llm client: %w", err)
		}
		llm = client
	}
	deps.Intake = extractor.NewIntakeExtractor(llm, log.Component("intake"))
	deps.Summarizer = extractor.NewSummarizer(llm, log.Component("summarizer"))
	deps.Scorer = extractor.NewScorer(llm, log.Component("scorer"))

	if cfg.UseMockModeration {
		deps.Safety = moderation.Mock{}
	} else {
		client, err := moderation.New(moderation.Config{
			URL:          cfg.ModerationURL,
			APIKey:       cfg.LLMAPIKey,
			Strict:       cfg.ModerationStrict,
			HTTPTimeout:  cfg.HTTPTimeout,
			MaxRetryTime: cfg.MaxRetryTime,
			Logger:       log.Component("moderation"),
		})
		if err != nil {
			return deps, fmt.Errorf("moderation client: %w", err)
		}
		deps.Safety = client
	}

	if cfg.UseMockTranscribe {
		deps.Transcriber = transcription.Mock{}
	} else {
		client, err := transcription.New(transcription.Config{
			URL:          cfg.TranscribeURL,
			APIKey:       cfg.LLMAPIKey,
			Model:        cfg.TranscribeModel,
			HTTPTimeout:  cfg.HTTPTimeout,
			MaxRetryTime: cfg.MaxRetryTime,
			Logger:       log.Component("transcription"),
		})
		if err != nil {
			return deps, fmt.Errorf("transcription client: %w", err)
		}
		deps.Transcriber = client
	}
	return deps, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
