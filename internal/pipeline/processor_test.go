package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/ocr"
)

const deathText = "CERTIFICATO DI MORTE\nSi certifica il decesso di ROSSI MARIO.\nLa morte è avvenuta in Roma."

const deathReply = "Sure, here you go:\n{\"nome\":\"MARIO\",\"cognome\":\"ROSSI\",\"dataNascita\":\"1950-01-01\",\"confidence\":0.9}\nHope that helps!"

type fakeExtractor struct {
	mu        sync.Mutex
	calls     []string
	text      string
	unusable  bool
	onExtract func(name string)
}

func (f *fakeExtractor) Extract(_ context.Context, doc entity.SourceDocument) (ocr.ExtractedText, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, doc.Name)
	f.mu.Unlock()
	if f.onExtract != nil {
		f.onExtract(doc.Name)
	}
	if f.unusable {
		return ocr.ExtractedText{Pages: 1, Segments: []ocr.Segment{{Index: 1, Method: ocr.MethodPlaceholder, Placeholder: true}}}, false, nil
	}
	return ocr.ExtractedText{
		Text:     f.text,
		Quality:  1,
		Pages:    1,
		Segments: []ocr.Segment{{Index: 1, Text: f.text, Method: ocr.MethodNative}},
	}, true, nil
}

type reply struct {
	raw string
	err error
}

type scriptedClient struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func (c *scriptedClient) Send(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if len(c.replies) == 0 {
		return deathReply, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.raw, r.err
}

type memArchive struct {
	saved []Result
	err   error
}

func (a *memArchive) Save(_ context.Context, res Result) error {
	a.saved = append(a.saved, res)
	return a.err
}

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	c, err := classify.NewDefault("", nil)
	require.NoError(t, err)
	return c
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRunEndToEndTextFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "documento.txt", deathText)

	client := &scriptedClient{}
	var statuses []constants.RunStatus
	p := NewProcessor(ocr.NewExtractor(ocr.Config{}, nil), newClassifier(t), client, Options{
		OnStatus: func(r Run) { statuses = append(statuses, r.Status) },
	}, nil)

	res := p.Run(context.Background(), path, "")
	require.True(t, res.Success, res.Errors)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Errors)

	require.NotNil(t, res.Classification)
	assert.Equal(t, constants.DeathCertificate, res.Classification.Type)
	assert.Greater(t, res.Classification.Confidence, classify.FallbackConfidence)
	assert.LessOrEqual(t, res.Classification.Confidence, classify.MaxConfidence)
	assert.Equal(t, llm.SchemaDeath, res.Schema)

	d, ok := res.Entity.(*entity.Deceased)
	require.True(t, ok)
	assert.Equal(t, "MARIO", d.FirstName)
	assert.Equal(t, "ROSSI", d.LastName)
	assert.Equal(t, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), d.BirthDate)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.InDelta(t, 1.0, res.Quality, 1e-9)
	assert.Contains(t, res.RawText, "decesso di ROSSI MARIO")

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "decesso di ROSSI MARIO")

	assert.Equal(t, []constants.RunStatus{
		constants.RunStatusInitializing,
		constants.RunStatusExtractingText,
		constants.RunStatusProcessingWithAI,
		constants.RunStatusMappingData,
		constants.RunStatusCompleted,
	}, statuses)

	var stages []string
	for _, s := range res.Run.Stages {
		stages = append(stages, s.Stage)
		assert.Empty(t, s.Err)
	}
	assert.Equal(t, []string{StageIngest, StageExtract, StageClassify, StageModel, StageParse, StageMap}, stages)
	assert.Equal(t, constants.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, path, res.Path())
}

func TestRunManyIsolatesModelError(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "a.txt", deathText),
		writeDoc(t, dir, "b.txt", deathText),
		writeDoc(t, dir, "c.txt", deathText),
	}
	client := &scriptedClient{replies: []reply{
		{raw: deathReply},
		{err: common.NewAppError("RATE_LIMITED", "backend returned 429", common.ErrRateLimit)},
		{raw: deathReply},
	}}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ext := &fakeExtractor{text: deathText}
	p := NewProcessor(ext, newClassifier(t), client, Options{Metrics: metrics}, nil)

	results := p.RunMany(context.Background(), paths, llm.SchemaDeath)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path())
	}

	assert.True(t, results[0].Success)
	assert.True(t, results[2].Success)
	assert.NotNil(t, results[0].Entity)
	assert.NotNil(t, results[2].Entity)

	failed := results[1]
	assert.False(t, failed.Success)
	assert.True(t, errors.Is(failed.Err, common.ErrRateLimit))
	assert.True(t, errors.Is(failed.Err, common.ErrModel))
	require.Len(t, failed.Errors, 1)
	assert.Contains(t, failed.Errors[0], "model:")
	assert.Equal(t, deathText, failed.RawText)
	assert.NotNil(t, failed.Classification)
	assert.Nil(t, failed.Entity)
	assert.Equal(t, constants.RunStatusFailed, failed.Run.Status)

	assert.Equal(t, []Result{failed}, Failed(results))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.modelErrors.WithLabelValues("rate_limit")))
}

func TestTooLargeNeverReachesExtractor(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "big.txt", strings.Repeat("x", 64))
	ext := &fakeExtractor{text: deathText}
	client := &scriptedClient{}
	p := NewProcessor(ext, newClassifier(t), client, Options{MaxFileBytes: 16}, nil)

	res := p.Run(context.Background(), path, "")
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, common.ErrDocumentTooLarge))
	assert.Empty(t, ext.calls)
	assert.Empty(t, client.prompts)
	require.Len(t, res.Run.Stages, 1)
	assert.Equal(t, StageIngest, res.Run.Stages[0].Stage)
	assert.NotEmpty(t, res.Run.Stages[0].Err)
}

func TestUnsupportedFileType(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "lettera.docx", "ciao")
	ext := &fakeExtractor{text: deathText}
	p := NewProcessor(ext, newClassifier(t), &scriptedClient{}, Options{}, nil)

	res := p.Run(context.Background(), path, "")
	assert.True(t, errors.Is(res.Err, common.ErrUnsupportedFileType))
	assert.Empty(t, ext.calls)
}

func TestUnusableTextFailsWithFallbackClassification(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "scan.txt", "x")
	client := &scriptedClient{}
	p := NewProcessor(&fakeExtractor{unusable: true}, newClassifier(t), client, Options{}, nil)

	res := p.Run(context.Background(), path, "")
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, common.ErrNoUsableText))
	require.NotNil(t, res.Classification)
	assert.Equal(t, constants.Other, res.Classification.Type)
	assert.Equal(t, classify.FallbackConfidence, res.Classification.Confidence)
	assert.Empty(t, res.RawText)
	assert.Empty(t, client.prompts)
}

func TestCancelFinishesCurrentStage(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "a.txt", deathText),
		writeDoc(t, dir, "b.txt", deathText),
		writeDoc(t, dir, "c.txt", deathText),
	}
	var p *Processor
	ext := &fakeExtractor{text: deathText, onExtract: func(string) { p.Cancel() }}
	client := &scriptedClient{}
	p = NewProcessor(ext, newClassifier(t), client, Options{}, nil)

	results := p.RunMany(context.Background(), paths, "")
	require.Len(t, results, 3)
	for i, r := range results {
		assert.False(t, r.Success, i)
		assert.True(t, errors.Is(r.Err, common.ErrCancelled), i)
		assert.Equal(t, paths[i], r.Path())
	}
	// the interrupted stage completed and its text was kept
	assert.Equal(t, deathText, results[0].RawText)
	assert.Equal(t, []string{"a.txt"}, ext.calls)
	assert.Empty(t, client.prompts)
	assert.Equal(t, constants.RunStatusFailed, results[1].Run.Status)
	assert.Empty(t, results[1].Run.Stages)
}

func TestCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.txt", deathText)
	ext := &fakeExtractor{text: deathText}
	p := NewProcessor(ext, newClassifier(t), &scriptedClient{}, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Run(ctx, path, "")
	assert.True(t, errors.Is(res.Err, common.ErrCancelled))
	assert.Empty(t, ext.calls)

	// a later run on the same processor is unaffected
	res = p.Run(context.Background(), path, "")
	assert.True(t, res.Success, res.Errors)
}

func TestCancelWithoutRunIsNoop(t *testing.T) {
	p := NewProcessor(&fakeExtractor{}, newClassifier(t), &scriptedClient{}, Options{}, nil)
	p.Cancel()
}

func TestPinnedSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.txt", deathText)
	client := &scriptedClient{replies: []reply{{raw: `{"nome":"LUCIA","cognome":"NERI","tipoDocumento":"passaporto","confidence":0.7}`}}}
	p := NewProcessor(&fakeExtractor{text: deathText}, newClassifier(t), client, Options{}, nil)

	res := p.Run(context.Background(), path, llm.SchemaIdentity)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, llm.SchemaIdentity, res.Schema)
	assert.Equal(t, constants.DeathCertificate, res.Classification.Type)
	r, ok := res.Entity.(*entity.Relative)
	require.True(t, ok)
	assert.Equal(t, "PP", r.DocumentType)
}

func TestUnknownSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.txt", deathText)
	ext := &fakeExtractor{text: deathText}
	p := NewProcessor(ext, newClassifier(t), &scriptedClient{}, Options{}, nil)

	res := p.Run(context.Background(), path, "ricetta")
	assert.True(t, errors.Is(res.Err, common.ErrInvalidInput))
	assert.Empty(t, ext.calls)
}

func TestMalformedResponseKeepsRawResponse(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.txt", deathText)
	client := &scriptedClient{replies: []reply{{raw: "I could not find any data."}}}
	p := NewProcessor(&fakeExtractor{text: deathText}, newClassifier(t), client, Options{}, nil)

	res := p.Run(context.Background(), path, "")
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, common.ErrNoJSONFound))
	assert.Equal(t, "I could not find any data.", res.RawResponse)
	assert.Nil(t, res.Extraction)
}

func TestMissingIdentityCompletesWithWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.txt", deathText)
	client := &scriptedClient{replies: []reply{{raw: `{"cognome":"ROSSI","confidence":0.4}`}}}
	p := NewProcessor(&fakeExtractor{text: deathText}, newClassifier(t), client, Options{}, nil)

	res := p.Run(context.Background(), path, llm.SchemaGeneric)
	assert.True(t, res.Success)
	assert.Nil(t, res.Entity)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	require.NotNil(t, res.Extraction)
	assert.Equal(t, "ROSSI", res.Extraction.Text("cognome"))
	assert.NotEmpty(t, res.Warnings)
}

func TestArchiverSeesEveryResult(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeDoc(t, dir, "a.txt", deathText), writeDoc(t, dir, "b.pages", "x")}
	archive := &memArchive{err: errors.New("disk full")}
	p := NewProcessor(&fakeExtractor{text: deathText}, newClassifier(t), &scriptedClient{}, Options{Archiver: archive}, nil)

	results := p.RunMany(context.Background(), paths, "")
	require.Len(t, archive.saved, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, results[0].Run.ID, archive.saved[0].Run.ID)
}

func TestInterDocumentDelay(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "a.txt", deathText),
		writeDoc(t, dir, "b.txt", deathText),
		writeDoc(t, dir, "c.txt", deathText),
	}
	p := NewProcessor(&fakeExtractor{text: deathText}, newClassifier(t), &scriptedClient{}, Options{InterDocumentDelay: 40 * time.Millisecond}, nil)

	start := time.Now()
	results := p.RunMany(context.Background(), paths, "")
	assert.Len(t, results, 3)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestInterDocumentDelayFollowsSlowDocuments(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "a.txt", deathText),
		writeDoc(t, dir, "b.txt", deathText),
	}
	var starts []time.Time
	ex := &fakeExtractor{text: deathText, onExtract: func(string) {
		starts = append(starts, time.Now())
		time.Sleep(60 * time.Millisecond)
	}}
	p := NewProcessor(ex, newClassifier(t), &scriptedClient{}, Options{InterDocumentDelay: 40 * time.Millisecond}, nil)

	results := p.RunMany(context.Background(), paths, "")
	require.Len(t, results, 2)
	require.Len(t, starts, 2)
	// 60ms of work plus the full 40ms pause
	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), 95*time.Millisecond)
}
