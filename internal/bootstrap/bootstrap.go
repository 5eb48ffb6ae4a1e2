package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/docuclean/internal/config"
	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
	"github.com/kirillkom/docuclean/internal/core/render"
	"github.com/kirillkom/docuclean/internal/core/usecase"
	"github.com/kirillkom/docuclean/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docuclean/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docuclean/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docuclean/internal/infrastructure/resilience"
	"github.com/kirillkom/docuclean/internal/infrastructure/storage/localfs"
)

// Options carries the per-binary hooks. Both fields are optional.
type Options struct {
	Observer        ports.ProcessingObserver
	BreakerListener resilience.StateListener
}

type App struct {
	Config config.Config

	Queue  ports.MessageQueue
	Repo   ports.DocumentRepository
	Images ports.PageImageStore

	IngestUC  *usecase.IngestDocumentUseCase
	ReadUC    *usecase.ReadDocumentUseCase
	ProcessUC ports.DocumentProcessor
	ExportUC  *usecase.ExportUseCase
	ConvertUC *usecase.ConvertUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	defaultLabels, err := domain.ParseLabelSet(cfg.DefaultLabels)
	if err != nil {
		return nil, fmt.Errorf("parse DEFAULT_LABELS: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init page storage: %w", err)
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var repo ports.DocumentRepository
	var runLock ports.RunLock
	switch cfg.MetadataBackend {
	case config.BackendLocalFS:
		repo = localfs.NewMetadataRepository(storage)
		runLock = localfs.NewRunLock(storage)
	default:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		pgRepo := postgres.NewDocumentRepository(db)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo = pgRepo
		runLock = postgres.NewRunLock(db)
	}

	var listeners []resilience.StateListener
	if opts.BreakerListener != nil {
		listeners = append(listeners, opts.BreakerListener)
	}
	executor := resilience.NewExecutor(resilienceConfig(cfg), listeners...)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		StopSubject:        cfg.NATSStopSubject,
		ResilienceExecutor: executor,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	closers = append(closers, queue.Close)

	recognizer := ollama.NewRecognizer(ollama.New(cfg.OllamaURL, cfg.OllamaOCRModel, ollama.Options{
		Timeout:            cfg.OllamaTimeout,
		ResilienceExecutor: executor,
	}))

	epub := render.EPUBOptions{Language: cfg.EPUBLanguage, Creator: cfg.EPUBCreator}
	processRepo := resilience.NewDocumentRepository(repo, metadataReadPolicy(cfg))
	processUC := usecase.NewProcessDocumentUseCase(processRepo, storage, recognizer, opts.Observer, usecase.ProcessOptions{
		RunLock: runLock,
	})

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Images: storage,

		IngestUC:  usecase.NewIngestDocumentUseCase(repo, storage, queue, cfg.OllamaOCRModel),
		ReadUC:    usecase.NewReadDocumentUseCase(repo),
		ProcessUC: processUC,
		ExportUC:  usecase.NewExportUseCase(repo, defaultLabels, epub),
		ConvertUC: usecase.NewConvertUseCase(epub),

		closeFn: closeAll,
	}, nil
}

// metadataReadPolicy waits a constant backoff between document reads.
func metadataReadPolicy(cfg config.Config) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    cfg.MetadataReadAttempts,
		InitialBackoff: cfg.MetadataReadBackoff,
		MaxBackoff:     cfg.MetadataReadBackoff,
		Multiplier:     1,
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.ResilienceRetryMaxAttempts,
			InitialBackoff: cfg.ResilienceRetryInitialBackoff,
			MaxBackoff:     cfg.ResilienceRetryMaxBackoff,
			Multiplier:     2,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.ResilienceBreakerEnabled,
			MinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
			FailureRatio:     cfg.ResilienceBreakerFailureRatio,
			OpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
