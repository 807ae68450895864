package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
)

const (
	runTable           = "pipeline_run"
	colID              = "id"
	colPath            = "path"
	colStatus          = "status"
	colReason          = "reason"
	colSchema          = "schema_name"
	colDocType         = "document_type"
	colClassConfidence = "classification_confidence"
	colConfidence      = "confidence"
	colQuality         = "quality"
	colEntityKind      = "entity_kind"
	colErrors          = "errors"
	colWarnings        = "warnings"
	colStages          = "stages"
	colStartedAt       = "started_at"
	colFinishedAt      = "finished_at"
	colElapsedMS       = "elapsed_ms"
)

var runColumns = []string{
	colID, colPath, colStatus, colReason, colSchema, colDocType, colClassConfidence,
	colConfidence, colQuality, colEntityKind, colErrors, colWarnings, colStages,
	colStartedAt, colFinishedAt, colElapsedMS,
}

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// RunRecord is the archived summary of a terminal run. Mapped records themselves are not stored.
type RunRecord struct {
	ID                       uuid.UUID
	Path                     string
	Status                   string
	Reason                   string
	Schema                   string
	DocumentType             string
	ClassificationConfidence float64
	Confidence               float64
	Quality                  float64
	EntityKind               string
	Errors                   []string
	Warnings                 []string
	Stages                   []pipeline.StageTiming
	StartedAt                time.Time
	FinishedAt               time.Time
	Elapsed                  time.Duration
}

type RunRepository interface {
	Save(ctx context.Context, res pipeline.Result) error
	Get(ctx context.Context, id uuid.UUID) (*RunRecord, error)
	ListFailed(ctx context.Context, since time.Time) ([]*RunRecord, error)
}

type runRepo struct {
	db     *DB
	logger *slog.Logger
}

// NewRunRepository returns the archive repository. It also satisfies pipeline.Archiver.
func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, logger: logger}
}

// Save upserts the run behind res.
func (r *runRepo) Save(ctx context.Context, res pipeline.Result) error {
	rec := recordFromResult(res)
	errs, _ := json.Marshal(rec.Errors)
	warns, _ := json.Marshal(rec.Warnings)
	stages, _ := json.Marshal(rec.Stages)

	q, args := r.db.builder().Insert(runTable).
		Columns(runColumns...).
		Values(
			rec.ID.String(), rec.Path, rec.Status, rec.Reason, rec.Schema, rec.DocumentType,
			rec.ClassificationConfidence, rec.Confidence, rec.Quality, rec.EntityKind,
			string(errs), string(warns), string(stages),
			unixNano(rec.StartedAt), unixNano(rec.FinishedAt), rec.Elapsed.Milliseconds(),
		).
		OnConflict(entsql.ConflictColumns(colID), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("repository.run.save.failed", "run_id", rec.ID, "err", err)
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	r.logger.Debug("repository.run.saved", "run_id", rec.ID, "status", rec.Status)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	q, args := r.db.builder().Select(runColumns...).
		From(entsql.Table(runTable)).
		Where(entsql.EQ(colID, id.String())).
		Query()
	recs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "run "+id.String(), ErrNotFound)
	}
	return recs[0], nil
}

// ListFailed returns failed runs finished at or after since, oldest first.
func (r *runRepo) ListFailed(ctx context.Context, since time.Time) ([]*RunRecord, error) {
	q, args := r.db.builder().Select(runColumns...).
		From(entsql.Table(runTable)).
		Where(entsql.And(
			entsql.EQ(colStatus, "failed"),
			entsql.GTE(colFinishedAt, unixNano(since)),
		)).
		OrderBy(colFinishedAt).
		Query()
	return r.query(ctx, q, args)
}

func (r *runRepo) query(ctx context.Context, q string, args []any) ([]*RunRecord, error) {
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func(rows *entsql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []*RunRecord
	for rows.Next() {
		var (
			rec                              RunRecord
			id                               string
			reason, schema, docType, kind    sql.NullString
			classConf, conf, quality         sql.NullFloat64
			errs, warns, stages              sql.NullString
			startedAt, finishedAt, elapsedMS sql.NullInt64
		)
		if err := rows.Scan(&id, &rec.Path, &rec.Status, &reason, &schema, &docType,
			&classConf, &conf, &quality, &kind, &errs, &warns, &stages,
			&startedAt, &finishedAt, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		rec.ID = parsed
		rec.Reason, rec.Schema, rec.DocumentType, rec.EntityKind = reason.String, schema.String, docType.String, kind.String
		rec.ClassificationConfidence, rec.Confidence, rec.Quality = classConf.Float64, conf.Float64, quality.Float64
		rec.StartedAt, rec.FinishedAt = fromUnixNano(startedAt.Int64), fromUnixNano(finishedAt.Int64)
		rec.Elapsed = time.Duration(elapsedMS.Int64) * time.Millisecond
		if err := decodeList(errs, &rec.Errors); err != nil {
			return nil, err
		}
		if err := decodeList(warns, &rec.Warnings); err != nil {
			return nil, err
		}
		if err := decodeList(stages, &rec.Stages); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func recordFromResult(res pipeline.Result) RunRecord {
	run := res.Run
	rec := RunRecord{
		ID:         run.ID,
		Path:       run.Path,
		Status:     string(run.Status),
		Reason:     run.Reason,
		Schema:     string(res.Schema),
		Confidence: res.Confidence,
		Quality:    res.Quality,
		Errors:     res.Errors,
		Warnings:   res.Warnings,
		Stages:     run.Stages,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Elapsed:    res.Elapsed,
	}
	if res.Classification != nil {
		rec.DocumentType = string(res.Classification.Type)
		rec.ClassificationConfidence = res.Classification.Confidence
	}
	if res.Entity != nil {
		rec.EntityKind = string(res.Entity.Kind())
	}
	return rec
}

func decodeList(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return fmt.Errorf("decode %s: %w", s.String, err)
	}
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
