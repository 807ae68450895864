package llm

import (
	"encoding/json"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/internal/common"
)

// DateLayout is the only date format the parser decodes.
const DateLayout = "2006-01-02"

type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
	ValueDate   ValueKind = "date"
	ValueObject ValueKind = "object"
)

// Value is one decoded field. Only the member matching Kind is set.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Bool   bool
	Date   time.Time
	Fields map[string]Value
}

// String renders scalar values as text; dates use DateLayout.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueDate:
		return v.Date.Format(DateLayout)
	}
	return ""
}

// StructuredExtraction is the decoded model answer. Missing or unusable fields are absent.
type StructuredExtraction struct {
	Fields     map[string]Value
	Confidence float64
	Uncertain  []string // dotted paths the model flagged
	Dropped    []string // JSON pointers removed because they violated the schema
}

// Text returns the textual form of a top-level field, "" when absent.
func (s StructuredExtraction) Text(name string) string {
	v, ok := s.Fields[name]
	if !ok {
		return ""
	}
	return v.String()
}

// Object returns a nested object field as its own extraction sharing Confidence.
func (s StructuredExtraction) Object(name string) (StructuredExtraction, bool) {
	v, ok := s.Fields[name]
	if !ok || v.Kind != ValueObject || len(v.Fields) == 0 {
		return StructuredExtraction{}, false
	}
	return StructuredExtraction{Fields: v.Fields, Confidence: s.Confidence}, true
}

// Parse decodes the JSON object embedded in raw with best-effort typing.
func Parse(raw string) (StructuredExtraction, error) {
	return parse(raw, nil)
}

// ParseWithSchema decodes raw against schema: undeclared fields are dropped, enum
// values normalized, values violating the schema removed, and date fields in
// YYYY-MM-DD decoded as dates.
func ParseWithSchema(raw string, schema Schema) (StructuredExtraction, error) {
	return parse(raw, &schema)
}

// LocateJSON returns the substring from the first '{' to the last '}'.
func LocateJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", common.NewAppError("NO_JSON", "response contains no JSON object", common.ErrNoJSONFound)
	}
	return s[start : end+1], nil
}

func parse(raw string, schema *Schema) (StructuredExtraction, error) {
	payload, err := LocateJSON(raw)
	if err != nil {
		return StructuredExtraction{}, err
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return StructuredExtraction{}, common.NewAppError("MALFORMED_JSON", err.Error(), common.ErrMalformedJSON)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return StructuredExtraction{}, common.NewAppError("MALFORMED_JSON", "trailing data after JSON object", common.ErrMalformedJSON)
	}

	out := StructuredExtraction{Fields: map[string]Value{}}
	out.Confidence = readConfidence(doc[ConfidenceField])
	delete(doc, ConfidenceField)

	flagged := map[string]bool{}
	if list, ok := doc["uncertain"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				flagged[strings.TrimSpace(s)] = true
			}
		}
	}
	delete(doc, "uncertain")

	var fields []Field
	if schema != nil {
		fields = schema.Fields
	}
	doc = sanitize(doc, fields, schema != nil, "", flagged)
	if schema != nil {
		dropped, err := gate(*schema, doc)
		if err != nil {
			return StructuredExtraction{}, err
		}
		out.Dropped = dropped
	}
	out.Fields = toValues(doc, fields, schema != nil)

	for k := range flagged {
		out.Uncertain = append(out.Uncertain, k)
	}
	slices.Sort(out.Uncertain)
	return out, nil
}

func readConfidence(v any) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		f, _ = t.Float64()
	case float64:
		f = t
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case map[string]any:
		return readConfidence(t["value"])
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// unwrapMarker turns {"value": x, "uncertain": true} into x.
func unwrapMarker(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, false
	}
	u, hasFlag := m["uncertain"]
	val, hasValue := m["value"]
	if !hasFlag || !hasValue || len(m) != 2 {
		return v, false
	}
	flag, _ := u.(bool)
	return val, flag
}

// sanitize normalizes what can be normalized and removes what is plainly absent.
// Type violations are left for the schema gate.
func sanitize(m map[string]any, fields []Field, strict bool, prefix string, flagged map[string]bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, raw := range m {
		f, known := lookupField(fields, k)
		if strict && !known {
			continue
		}
		v, marked := unwrapMarker(raw)
		if marked {
			flagged[prefix+k] = true
		}
		v = normalizeValue(v, f, known, strict, prefix+k+".", flagged)
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func normalizeValue(v any, f Field, known, strict bool, prefix string, flagged map[string]bool) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return nil
		}
		if known && f.Kind == KindEnum {
			return normalizeEnum(s, f)
		}
		if known && f.Kind == KindNumber {
			if n, ok := parseNumber(s); ok {
				return n
			}
		}
		return s
	case json.Number:
		if known && f.Kind != KindNumber {
			// identifiers that happen to be numeric keep their exact text
			return t.String()
		}
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		return n
	case bool:
		return t
	case map[string]any:
		var sub []Field
		if known {
			sub = f.Fields
		}
		obj := sanitize(t, sub, strict && known && f.Kind == KindObject, prefix, flagged)
		if len(obj) == 0 {
			return nil
		}
		return obj
	default:
		// arrays and other shapes are not decodable into a single field
		return nil
	}
}

func normalizeEnum(s string, f Field) string {
	for _, e := range f.Enum {
		if strings.EqualFold(s, e) {
			return e
		}
	}
	if alias, ok := f.Aliases[strings.ToLower(s)]; ok {
		return alias
	}
	return s
}

// parseNumber accepts "1234.56", "1.234,56", "€ 1.234,56" and "1234,5".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(s, "€"), "€"))
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

func toValues(m map[string]any, fields []Field, strict bool) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		f, known := lookupField(fields, k)
		if strict && !known {
			continue
		}
		if val, ok := toValue(v, f, known, strict); ok {
			out[k] = val
		}
	}
	return out
}

func toValue(v any, f Field, known, strict bool) (Value, bool) {
	switch t := v.(type) {
	case string:
		if known && f.Kind == KindDate {
			if d, err := time.Parse(DateLayout, t); err == nil {
				return Value{Kind: ValueDate, Date: d}, true
			}
		}
		return Value{Kind: ValueString, Str: t}, true
	case float64:
		return Value{Kind: ValueNumber, Num: t}, true
	case bool:
		return Value{Kind: ValueBool, Bool: t}, true
	case map[string]any:
		var sub []Field
		if known {
			sub = f.Fields
		}
		obj := toValues(t, sub, strict && known)
		if len(obj) == 0 {
			return Value{}, false
		}
		return Value{Kind: ValueObject, Fields: obj}, true
	}
	return Value{}, false
}
