package classify

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule adds Weight for each of its Keywords found in the text.
type Rule struct {
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

// FilenameBonus adds Bonus when Match is a substring of the file name.
type FilenameBonus struct {
	Match string  `yaml:"match"`
	Bonus float64 `yaml:"bonus"`
}

type TypeRules struct {
	Rules    []Rule          `yaml:"rules"`
	Filename []FilenameBonus `yaml:"filename"`
}

// RuleTable is the full classifier configuration.
type RuleTable struct {
	Types map[constants.DocumentType]TypeRules `yaml:"types"`
}

// DefaultRules returns the embedded rule table.
func DefaultRules() (RuleTable, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rule table from path.
func LoadRules(path string) (RuleTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(b)
}

func ParseRules(b []byte) (RuleTable, error) {
	var rt RuleTable
	if err := yaml.Unmarshal(b, &rt); err != nil {
		return RuleTable{}, fmt.Errorf("parse rules: %w", err)
	}
	rt.canonicalize()
	if err := rt.validate(); err != nil {
		return RuleTable{}, err
	}
	rt.lower()
	return rt, nil
}

func (rt RuleTable) validate() error {
	known := slices.DeleteFunc(constants.AsStringSlice(), func(s string) bool {
		return s == string(constants.Other)
	})

	v := common.NewValidator()
	v.Field("types", len(rt.Types), common.Positive)
	for _, dt := range slices.Sorted(maps.Keys(rt.Types)) {
		tr := rt.Types[dt]
		v.Field("types", string(dt), common.OneOf(known...))
		for i, r := range tr.Rules {
			field := fmt.Sprintf("types.%s.rules[%d]", dt, i)
			v.Field(field+".weight", r.Weight, common.Positive)
			v.Field(field+".keywords", len(r.Keywords), common.Positive)
		}
		for i, fb := range tr.Filename {
			field := fmt.Sprintf("types.%s.filename[%d]", dt, i)
			v.Field(field+".bonus", fb.Bonus, common.Positive)
			v.Field(field+".match", fb.Match, common.Required)
		}
	}
	return common.ValidateAndReturnError("INVALID_RULES", v)
}

// canonicalize folds synonym keys ("decesso", "fattura") onto their DocumentType.
// Unknown keys are kept so validate can report them.
func (rt *RuleTable) canonicalize() {
	out := make(map[constants.DocumentType]TypeRules, len(rt.Types))
	for _, key := range slices.Sorted(maps.Keys(rt.Types)) {
		dt := key
		if c, ok := constants.Canonicalize(string(key)); ok {
			dt = c
		}
		merged := out[dt]
		merged.Rules = append(merged.Rules, rt.Types[key].Rules...)
		merged.Filename = append(merged.Filename, rt.Types[key].Filename...)
		out[dt] = merged
	}
	rt.Types = out
}

func (rt RuleTable) lower() {
	for _, tr := range rt.Types {
		for i := range tr.Rules {
			for j, k := range tr.Rules[i].Keywords {
				tr.Rules[i].Keywords[j] = strings.ToLower(k)
			}
		}
		for i := range tr.Filename {
			tr.Filename[i].Match = strings.ToLower(tr.Filename[i].Match)
		}
	}
}

// maxScore is the normalizing constant: the highest score any single type can reach.
func (rt RuleTable) maxScore() float64 {
	var best float64
	for _, tr := range rt.Types {
		var s float64
		for _, r := range tr.Rules {
			s += r.Weight * float64(len(r.Keywords))
		}
		for _, fb := range tr.Filename {
			s += fb.Bonus
		}
		best = max(best, s)
	}
	return best
}
