// Package classify assigns a document type to extracted text with weighted keyword rules.
package classify

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/ocr"
)

const (
	// FallbackConfidence is reported for the "other" label.
	FallbackConfidence = 0.1
	// MaxConfidence caps keyword evidence below certainty.
	MaxConfidence = 0.95
)

// Result is a classification. Confidence is relative keyword strength, not a probability.
type Result struct {
	Type       constants.DocumentType
	Confidence float64
	Matched    []string
	Score      float64
}

// Classifier scores text against a rule table. Confidence is normalized by the
// highest score any single type can reach, not by the sum over all types, so a
// full match for one type reaches the cap.
type Classifier struct {
	rules  RuleTable
	total  float64
	logger *slog.Logger
}

// New builds a classifier over rules. The normalizing constant is fixed here.
func New(rules RuleTable, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: rules, total: rules.maxScore(), logger: logger}
}

// NewDefault builds a classifier over the embedded rule table, or the file at rulesPath when set.
func NewDefault(rulesPath string, logger *slog.Logger) (*Classifier, error) {
	var (
		rt  RuleTable
		err error
	)
	if rulesPath != "" {
		rt, err = LoadRules(rulesPath)
	} else {
		rt, err = DefaultRules()
	}
	if err != nil {
		return nil, err
	}
	return New(rt, logger), nil
}

// Classify is total and deterministic: every input yields a result, ties go to the
// type listed first in constants.DocumentTypes.
func (c *Classifier) Classify(text, filename string) Result {
	lt := strings.ToLower(text)
	lf := strings.ToLower(filepath.Base(filename))
	if filename == "" {
		lf = ""
	}

	best := Result{Type: constants.Other, Confidence: FallbackConfidence}
	for _, dt := range constants.DocumentTypes() {
		tr, ok := c.rules.Types[dt]
		if !ok {
			continue
		}
		var score float64
		var matched []string
		if lt != "" {
			for _, r := range tr.Rules {
				for _, k := range r.Keywords {
					if strings.Contains(lt, k) {
						score += r.Weight
						matched = append(matched, k)
					}
				}
			}
		}
		if lf != "" {
			for _, fb := range tr.Filename {
				if strings.Contains(lf, fb.Match) {
					score += fb.Bonus
					matched = append(matched, "filename:"+fb.Match)
				}
			}
		}
		if score > best.Score {
			best = Result{Type: dt, Score: score, Matched: matched}
		}
	}

	if best.Score > 0 && c.total > 0 {
		best.Confidence = min(MaxConfidence, best.Score/c.total)
	}
	c.logger.Debug("classify.result",
		"type", best.Type,
		"score", best.Score,
		"confidence", best.Confidence,
		"matched", len(best.Matched),
	)
	return best
}

// ClassifyExtracted classifies an extraction result. Zero quality means there is
// nothing to classify and yields the fallback label.
func (c *Classifier) ClassifyExtracted(ex ocr.ExtractedText, filename string) Result {
	if ex.Quality <= 0 {
		return Result{Type: constants.Other, Confidence: FallbackConfidence}
	}
	return c.Classify(ex.Text, filename)
}
