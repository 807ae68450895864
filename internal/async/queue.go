package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docintake/internal/llm"
)

// ErrClosed is returned by Enqueue once Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Job is one document waiting for the pipeline.
type Job struct {
	Path        string
	Schema      llm.SchemaName // empty lets the classifier choose
	Force       bool           // enqueue even if the path is already pending
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
