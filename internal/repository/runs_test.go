package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

var base = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func completedResult(path string, finished time.Time) pipeline.Result {
	return pipeline.Result{
		Success:        true,
		Entity:         &entity.Deceased{FirstName: "MARIO", LastName: "ROSSI"},
		Confidence:     0.9,
		Quality:        1,
		Classification: &classify.Result{Type: constants.DeathCertificate, Confidence: 0.42},
		Schema:         llm.SchemaDeath,
		Warnings:       []string{"fields marked uncertain: luogoDecesso"},
		Elapsed:        1500 * time.Millisecond,
		Run: pipeline.Run{
			ID:     uuid.New(),
			Path:   path,
			Status: constants.RunStatusCompleted,
			Stages: []pipeline.StageTiming{
				{Stage: pipeline.StageIngest, StartedAt: finished.Add(-time.Second), FinishedAt: finished.Add(-900 * time.Millisecond)},
			},
			Confidence: 0.9,
			StartedAt:  finished.Add(-1500 * time.Millisecond),
			FinishedAt: finished,
		},
	}
}

func failedResult(path string, finished time.Time) pipeline.Result {
	reason := "model: RATE_LIMITED: backend returned 429"
	return pipeline.Result{
		Errors:  []string{reason},
		Err:     errors.New(reason),
		Elapsed: time.Second,
		Run: pipeline.Run{
			ID:         uuid.New(),
			Path:       path,
			Status:     constants.RunStatusFailed,
			Reason:     reason,
			Errors:     []string{reason},
			StartedAt:  finished.Add(-time.Second),
			FinishedAt: finished,
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	res := completedResult("/in/certificato.pdf", base)
	require.NoError(t, repo.Save(ctx, res))

	got, err := repo.Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, got.ID)
	assert.Equal(t, "/in/certificato.pdf", got.Path)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "decesso", got.Schema)
	assert.Equal(t, "death-certificate", got.DocumentType)
	assert.InDelta(t, 0.42, got.ClassificationConfidence, 1e-9)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, "deceased", got.EntityKind)
	assert.Equal(t, res.Warnings, got.Warnings)
	assert.Empty(t, got.Errors)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, pipeline.StageIngest, got.Stages[0].Stage)
	assert.Equal(t, 100*time.Millisecond, got.Stages[0].Duration())
	assert.True(t, base.Equal(got.FinishedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
}

func TestSaveIsUpsert(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	res := failedResult("/in/a.pdf", base)
	require.NoError(t, repo.Save(ctx, res))
	res.Run.Reason = "cancelled"
	res.Errors = []string{"cancelled"}
	require.NoError(t, repo.Save(ctx, res))

	got, err := repo.Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Reason)
	assert.Equal(t, []string{"cancelled"}, got.Errors)
}

func TestGetUnknown(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), nil)
	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListFailed(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), nil)
	ctx := context.Background()

	old := failedResult("/in/old.pdf", base.Add(-48*time.Hour))
	recent2 := failedResult("/in/second.pdf", base.Add(2*time.Hour))
	recent1 := failedResult("/in/first.pdf", base.Add(time.Hour))
	ok := completedResult("/in/ok.pdf", base.Add(time.Hour))
	for _, r := range []pipeline.Result{old, recent2, recent1, ok} {
		require.NoError(t, repo.Save(ctx, r))
	}

	got, err := repo.ListFailed(ctx, base)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/in/first.pdf", got[0].Path)
	assert.Equal(t, "/in/second.pdf", got[1].Path)
	assert.Equal(t, []string{recent1.Run.Reason}, got[0].Errors)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestRepositoryIsArchiver(t *testing.T) {
	var _ pipeline.Archiver = NewRunRepository(openTestDB(t), nil)
}
