package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiled sync.Map // SchemaName -> *jsonschema.Schema

// CompileSchema compiles a JSON-Schema map.
func CompileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

func compiledFor(s Schema) (*jsonschema.Schema, error) {
	if v, ok := compiled.Load(s.Name); ok {
		return v.(*jsonschema.Schema), nil
	}
	sch, err := CompileSchema(string(s.Name), s.JSONSchema())
	if err != nil {
		return nil, err
	}
	compiled.Store(s.Name, sch)
	return sch, nil
}

// gate removes every value of doc that violates the schema and returns the removed paths.
func gate(s Schema, doc map[string]any) ([]string, error) {
	sch, err := compiledFor(s)
	if err != nil {
		return nil, err
	}

	var dropped []string
	// each pass removes the leaves reported by the previous validation
	for pass := 0; pass < 4; pass++ {
		err := sch.Validate(doc)
		if err == nil {
			return dropped, nil
		}
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return dropped, fmt.Errorf("validate: %w", err)
		}
		removed := false
		for _, loc := range leafLocations(ve) {
			if deletePointer(doc, loc) {
				dropped = append(dropped, loc)
				removed = true
			}
		}
		if !removed {
			break
		}
	}
	return dropped, nil
}

func leafLocations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{ve.InstanceLocation}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, leafLocations(c)...)
	}
	return out
}

// deletePointer removes the value at a JSON pointer such as "/intestatario/nome".
func deletePointer(doc map[string]any, ptr string) bool {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return false
	}
	parts := strings.Split(ptr, "/")
	cur := doc
	for i, p := range parts {
		p = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
		if i == len(parts)-1 {
			if _, ok := cur[p]; !ok {
				return false
			}
			delete(cur, p)
			return true
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
