// Package pipeline sequences ingest, text extraction, classification, model
// extraction, response parsing and mapping into one Result per document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/ocr"
)

// TextExtractor turns a source document into text. *ocr.Extractor implements it.
type TextExtractor interface {
	Extract(ctx context.Context, doc entity.SourceDocument) (ocr.ExtractedText, bool, error)
}

// Archiver receives every terminal Result.
type Archiver interface {
	Save(ctx context.Context, res Result) error
}

type Options struct {
	MaxFileBytes       int64         // default constants.DefaultMaxFileBytes
	InterDocumentDelay time.Duration // pause between the end of one document and the start of the next; 0 disables pacing
	Archiver           Archiver
	Metrics            *Metrics
	OnStatus           func(Run) // called with a snapshot on every status change
}

// Processor runs documents one at a time.
type Processor struct {
	logger     *slog.Logger
	extractor  TextExtractor
	classifier *classify.Classifier
	client     llm.Client
	opts       Options
	limit      rate.Limit
	limiter    *rate.Limiter

	runMu  sync.Mutex // serializes Run and RunMany
	mu     sync.Mutex
	cancel context.CancelCauseFunc
}

func NewProcessor(extractor TextExtractor, classifier *classify.Classifier, client llm.Client, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = constants.DefaultMaxFileBytes
	}
	limit := rate.Inf
	if opts.InterDocumentDelay > 0 {
		limit = rate.Every(opts.InterDocumentDelay)
	}
	return &Processor{
		logger:     logger,
		extractor:  extractor,
		classifier: classifier,
		client:     client,
		opts:       opts,
		limit:      limit,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Run processes a single document. An empty schema lets the classifier choose one.
func (p *Processor) Run(ctx context.Context, path string, schema llm.SchemaName) Result {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	ctx, done := p.begin(ctx)
	defer done()
	if err := p.wait(ctx); err != nil {
		return p.skip(ctx, path, err)
	}
	defer p.settle()
	return p.run(ctx, path, schema)
}

// RunMany processes paths strictly in order and returns one Result per path.
// A failing document never stops the batch; after cancellation the remaining
// documents are reported failed without being opened.
func (p *Processor) RunMany(ctx context.Context, paths []string, schema llm.SchemaName) []Result {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	ctx, done := p.begin(ctx)
	defer done()

	p.logger.Info("pipeline.batch.start", "documents", len(paths), "schema", schema)
	start := time.Now()
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if err := p.wait(ctx); err != nil {
			results = append(results, p.skip(ctx, path, err))
			continue
		}
		results = append(results, p.run(ctx, path, schema))
		p.settle()
	}
	p.logger.Info("pipeline.batch.done",
		"documents", len(results),
		"failed", len(Failed(results)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results
}

// Cancel asks the current run or batch to stop at the next stage boundary.
// It is a no-op when nothing is running.
func (p *Processor) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel(common.ErrCancelled)
	}
}

func (p *Processor) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	return ctx, func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel(nil)
	}
}

func (p *Processor) wait(ctx context.Context) error {
	if err := interrupted(ctx); err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if ierr := interrupted(ctx); ierr != nil {
			return ierr
		}
		return fmt.Errorf("%w: %v", common.ErrCancelled, err)
	}
	return nil
}

// settle restarts pacing from now with an empty bucket, so the next wait lasts
// the full delay however long the document took.
func (p *Processor) settle() {
	p.limiter = rate.NewLimiter(p.limit, 1)
	p.limiter.Allow()
}

// skip reports a document that was never started.
func (p *Processor) skip(ctx context.Context, path string, err error) Result {
	x := p.newExecution(ctx, path)
	return x.fail(err)
}

// interrupted returns a cancellation error once ctx is done.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, common.ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %v", common.ErrCancelled, cause)
}
