// Package app wires configuration into a ready pipeline for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/llm/provider"
	"github.com/joseph-ayodele/docintake/internal/ocr"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
	"github.com/joseph-ayodele/docintake/internal/repository"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config    *common.Config
	Extractor *ocr.Extractor
	Processor *pipeline.Processor
	Metrics   *pipeline.Metrics
	DB        *repository.DB           // nil when the archive is disabled
	Runs      repository.RunRepository // nil when the archive is disabled
	logger    *slog.Logger
}

type Options struct {
	Registerer prometheus.Registerer
	OnStatus   func(pipeline.Run)
}

// NewLogger builds the process logger; json selects the JSON handler.
func NewLogger(level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if json {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// NewExtractor maps the OCR section of cfg onto the text extraction engine.
func NewExtractor(cfg common.OCRConfig, logger *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Pdftoppm:       cfg.Pdftoppm,
		Tesseract:      cfg.Tesseract,
		TesseractLang:  cfg.TesseractLang,
		TessdataDir:    cfg.TessdataDir,
		DPI:            cfg.DPI,
		MaxOCRPages:    cfg.MaxOCRPages,
		MinNativeChars: cfg.MinNativeChars,
		NormalizeImage: cfg.NormalizeImage,
	}, logger)
}

// New validates cfg and builds every component. The archive is opened and
// migrated when cfg.Archive.Driver is set.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	classifier, err := classify.NewDefault(cfg.Classifier.RulesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("classifier rules: %w", err)
	}

	a := &App{
		Config:    cfg,
		Extractor: NewExtractor(cfg.OCR, logger),
		Metrics:   pipeline.NewMetrics(opts.Registerer),
		logger:    logger,
	}
	var archiver pipeline.Archiver
	if cfg.Archive.Driver != "" {
		db, err := repository.Open(ctx, repository.Config{Driver: cfg.Archive.Driver, DSN: cfg.Archive.DSN}, logger)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate archive: %w", err)
		}
		a.DB = db
		a.Runs = repository.NewRunRepository(db, logger)
		archiver = a.Runs
	}

	a.Processor = pipeline.NewProcessor(a.Extractor, classifier, provider.New(cfg.LLM, logger), pipeline.Options{
		MaxFileBytes:       cfg.Pipeline.MaxFileBytes,
		InterDocumentDelay: cfg.Pipeline.InterDocumentDelay,
		Archiver:           archiver,
		Metrics:            a.Metrics,
		OnStatus:           opts.OnStatus,
	}, logger)

	logger.Info("app.ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"archive", cfg.Archive.Driver,
		"max_file_bytes", cfg.Pipeline.MaxFileBytes,
		"inter_document_delay", cfg.Pipeline.InterDocumentDelay,
	)
	return a, nil
}

// Health pings the archive when there is one.
func (a *App) Health(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.HealthCheck(ctx, 0)
}

func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Error("app.close.archive", "err", err)
		}
	}
}
