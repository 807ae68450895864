package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/ingest"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/mapper"
	"github.com/joseph-ayodele/docintake/internal/ocr"
)

// execution carries one run's mutable state. It never outlives Processor.run.
type execution struct {
	p      *Processor
	ctx    context.Context
	run    *Run
	res    Result
	logger *slog.Logger
}

func (p *Processor) newExecution(ctx context.Context, path string) *execution {
	r := newRun(path)
	r.StartedAt = time.Now()
	return &execution{
		p:      p,
		ctx:    common.WithRunID(ctx, r.ID.String()),
		run:    r,
		logger: p.logger.With("run_id", r.ID.String(), "path", path),
	}
}

func (p *Processor) run(ctx context.Context, path string, schemaName llm.SchemaName) Result {
	x := p.newExecution(ctx, path)
	// stages always finish once started; cancellation is honored in between
	work := context.WithoutCancel(x.ctx)
	x.logger.Info("pipeline.run.start", "schema", schemaName)

	if err := x.advance(constants.RunStatusInitializing); err != nil {
		return x.fail(err)
	}
	var pinned *llm.Schema
	if schemaName != "" {
		s, err := llm.Lookup(schemaName)
		if err != nil {
			return x.fail(common.NewAppError("UNKNOWN_SCHEMA", err.Error(), common.ErrInvalidInput))
		}
		pinned = &s
	}
	var doc entity.SourceDocument
	if err := x.stage(StageIngest, func() (err error) {
		doc, err = ingest.Open(path, p.opts.MaxFileBytes)
		return err
	}); err != nil {
		return x.fail(err)
	}

	if err := x.advance(constants.RunStatusExtractingText); err != nil {
		return x.fail(err)
	}
	var (
		text   ocr.ExtractedText
		usable bool
	)
	if err := x.stage(StageExtract, func() (err error) {
		text, usable, err = p.extractor.Extract(work, doc)
		return err
	}); err != nil {
		return x.fail(err)
	}
	x.res.RawText = text.Text
	x.res.Quality = text.Quality
	x.res.Warnings = append(x.res.Warnings, text.Warnings...)
	p.opts.Metrics.observeQuality(text.Quality)

	_ = x.stage(StageClassify, func() error {
		cls := p.classifier.ClassifyExtracted(text, doc.Name)
		x.res.Classification = &cls
		p.opts.Metrics.observeClassification(cls.Type)
		x.logger.Info("pipeline.classified", "type", cls.Type, "confidence", cls.Confidence, "quality", text.Quality)
		return nil
	})
	if !usable {
		return x.fail(common.NewAppError("NO_USABLE_TEXT", "document yielded no usable text", common.ErrNoUsableText))
	}

	if err := x.advance(constants.RunStatusProcessingWithAI); err != nil {
		return x.fail(err)
	}
	schema := llm.SchemaFor(x.res.Classification.Type)
	if pinned != nil {
		schema = *pinned
	}
	x.res.Schema = schema.Name
	if err := x.stage(StageModel, func() (err error) {
		x.res.RawResponse, err = p.client.Send(work, llm.Build(schema, text.Text))
		return err
	}); err != nil {
		p.opts.Metrics.observeModelError(common.ModelErrorKind(err))
		return x.fail(err)
	}
	var ex llm.StructuredExtraction
	if err := x.stage(StageParse, func() (err error) {
		ex, err = llm.ParseWithSchema(x.res.RawResponse, schema)
		return err
	}); err != nil {
		p.opts.Metrics.observeModelError(common.ModelErrorKind(err))
		return x.fail(err)
	}
	x.res.Extraction = &ex
	if len(ex.Dropped) > 0 {
		x.res.Warnings = append(x.res.Warnings, "fields dropped by schema check: "+strings.Join(ex.Dropped, ", "))
	}
	if len(ex.Uncertain) > 0 {
		x.res.Warnings = append(x.res.Warnings, "fields marked uncertain: "+strings.Join(ex.Uncertain, ", "))
	}

	if err := x.advance(constants.RunStatusMappingData); err != nil {
		return x.fail(err)
	}
	_ = x.stage(StageMap, func() error {
		x.res.Entity = mapper.Map(ex, schema)
		return nil
	})
	if x.res.Entity == nil {
		x.res.Warnings = append(x.res.Warnings, fmt.Sprintf("no %s mapped: identifying fields missing", schema.Target))
	}
	x.res.Confidence = ex.Confidence
	x.run.Confidence = ex.Confidence

	if err := x.advance(constants.RunStatusCompleted); err != nil {
		return x.fail(err)
	}
	x.res.Success = true
	return x.finish()
}

// advance checks for cancellation, then moves to next.
func (x *execution) advance(next constants.RunStatus) error {
	if err := interrupted(x.ctx); err != nil {
		return err
	}
	if err := x.run.Transition(next); err != nil {
		return err
	}
	x.logger.Debug("pipeline.run.status", "status", next)
	x.publish()
	return nil
}

// stage times fn and records it on the run. Returned errors carry the stage name.
func (x *execution) stage(name string, fn func() error) error {
	t := StageTiming{Stage: name, StartedAt: time.Now()}
	err := fn()
	t.FinishedAt = time.Now()
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
		t.Err = err.Error()
	}
	x.run.Stages = append(x.run.Stages, t)
	x.p.opts.Metrics.observeStage(name, t.Duration())
	return err
}

func (x *execution) fail(err error) Result {
	if ferr := x.run.Fail(err.Error()); ferr != nil {
		x.logger.Error("pipeline.run.fail_rejected", "err", ferr)
	}
	x.res.Err = err
	x.logger.Warn("pipeline.run.failed", "stage", lastStage(x.run), "err", err)
	x.publish()
	return x.finish()
}

func (x *execution) finish() Result {
	x.res.Errors = append([]string(nil), x.run.Errors...)
	x.res.Elapsed = x.run.Elapsed()
	x.res.Run = x.run.Snapshot()
	x.p.opts.Metrics.observeRun(x.run.Status)

	if x.run.Status == constants.RunStatusCompleted {
		x.logger.Info("pipeline.run.completed",
			"schema", x.res.Schema,
			"confidence", x.res.Confidence,
			"mapped", x.res.Entity != nil,
			"elapsed_ms", x.res.Elapsed.Milliseconds(),
		)
	}
	if a := x.p.opts.Archiver; a != nil {
		if err := a.Save(context.WithoutCancel(x.ctx), x.res); err != nil {
			x.logger.Warn("pipeline.archive.failed", "err", err)
		}
	}
	return x.res
}

func (x *execution) publish() {
	if x.p.opts.OnStatus != nil {
		x.p.opts.OnStatus(x.run.Snapshot())
	}
}

func lastStage(r *Run) string {
	if len(r.Stages) == 0 {
		return ""
	}
	return r.Stages[len(r.Stages)-1].Stage
}
