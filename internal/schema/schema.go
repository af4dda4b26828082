// Package schema validates module arguments against the JSON schemas
// embedded in the binary.
package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var files embed.FS

// Name identifies an embedded schema.
type Name string

const (
	Password Name = "password"
	Project  Name = "project"
)

var (
	compileOnce sync.Once
	compiled    map[Name]*gojsonschema.Schema
	compileErr  error
)

// ValidationError lists every problem found in a document.
type ValidationError struct {
	Schema   Name
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s arguments:\n  - %s", e.Schema, strings.Join(e.Problems, "\n  - "))
}

// Validate checks params against the named schema.
func Validate(name Name, params map[string]interface{}) error {
	s, err := load(name)
	if err != nil {
		return err
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	sort.Strings(problems)
	return &ValidationError{Schema: name, Problems: problems}
}

// Source returns the raw schema document, e.g. for `--help` output.
func Source(name Name) ([]byte, error) {
	return files.ReadFile("schemas/" + string(name) + ".json")
}

func load(name Name) (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[Name]*gojsonschema.Schema)
		for _, n := range []Name{Password, Project} {
			data, err := Source(n)
			if err != nil {
				compileErr = fmt.Errorf("failed to read %s schema: %w", n, err)
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
			if err != nil {
				compileErr = fmt.Errorf("failed to compile %s schema: %w", n, err)
				return
			}
			compiled[n] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}

	s, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}
