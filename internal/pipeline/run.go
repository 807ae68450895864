package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
)

// Stage names recorded in Run.Stages and used as the metrics label.
const (
	StageIngest   = "ingest"
	StageExtract  = "extract"
	StageClassify = "classify"
	StageModel    = "model"
	StageParse    = "parse"
	StageMap      = "map"
)

// StageTiming records when one stage started and finished.
type StageTiming struct {
	Stage      string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        string
}

func (s StageTiming) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Run is the state of one document's trip through the pipeline.
// It is owned by the Processor; callers only ever see copies.
type Run struct {
	ID         uuid.UUID
	Path       string
	Status     constants.RunStatus
	Reason     string
	Stages     []StageTiming
	Errors     []string
	Confidence float64
	StartedAt  time.Time
	FinishedAt time.Time
}

func newRun(path string) *Run {
	return &Run{
		ID:     uuid.New(),
		Path:   path,
		Status: constants.RunStatusIdle,
	}
}

// Transition moves the run one step along the success path.
func (r *Run) Transition(next constants.RunStatus) error {
	want, ok := r.Status.Next()
	if !ok || want != next {
		return illegalTransition(r.Status, next)
	}
	r.Status = next
	if next == constants.RunStatusCompleted {
		r.FinishedAt = time.Now()
	}
	return nil
}

// Fail moves a non-terminal run to failed with reason.
func (r *Run) Fail(reason string) error {
	if r.Status.IsTerminal() {
		return illegalTransition(r.Status, constants.RunStatusFailed)
	}
	r.Status = constants.RunStatusFailed
	r.Reason = reason
	r.Errors = append(r.Errors, reason)
	r.FinishedAt = time.Now()
	return nil
}

// Snapshot returns a copy that shares no slices with r.
func (r *Run) Snapshot() Run {
	cp := *r
	cp.Stages = append([]StageTiming(nil), r.Stages...)
	cp.Errors = append([]string(nil), r.Errors...)
	return cp
}

func (r *Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func illegalTransition(from, to constants.RunStatus) error {
	return common.NewAppError("ILLEGAL_TRANSITION",
		fmt.Sprintf("cannot move run from %s to %s", from, to), common.ErrInvalidInput)
}
