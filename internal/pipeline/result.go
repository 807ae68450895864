package pipeline

import (
	"time"

	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
)

// Result is everything a run produced. On failure the artifacts gathered
// before the failing stage are still set.
type Result struct {
	Success        bool
	Entity         entity.Entity
	Confidence     float64 // model-reported extraction confidence
	RawText        string
	Quality        float64
	Classification *classify.Result
	Schema         llm.SchemaName
	Extraction     *llm.StructuredExtraction
	RawResponse    string
	Errors         []string
	Warnings       []string
	Err            error
	Elapsed        time.Duration
	Run            Run
}

// Path is the input path of the run.
func (r Result) Path() string { return r.Run.Path }

// Failed returns the subset of results that did not succeed, in input order.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}
