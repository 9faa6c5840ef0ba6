// Package payload loads the jobs submitted with a batch.
//
// Jobs come either inline on the command line or from a file. Files may be
// JSON, JSON with comments and trailing commas (.jsonc, or .json), or YAML
// (.yaml, .yml). Every source is normalized to compact JSON and validated
// against the jobs schema before anything is sent.
package payload

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"
	"sigs.k8s.io/yaml"
)

//go:embed schema/jobs.schema.json
var jobsSchema string

const jobsSchemaURL = "jobs.schema.json"

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// ErrEmpty is returned when neither inline jobs nor a file were given.
var ErrEmpty = errors.New("no jobs given: pass a JSON array or --payload-file")

// Jobs is a validated, compact JSON array of job objects.
type Jobs json.RawMessage

// MarshalJSON emits the jobs unchanged.
func (j Jobs) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Len returns the number of jobs.
func (j Jobs) Len() int {
	var items []json.RawMessage
	if err := json.Unmarshal(j, &items); err != nil {
		return 0
	}
	return len(items)
}

// Resolve returns the jobs from inline or, when inline is empty, from the
// file at path. Giving both is an error.
func Resolve(inline, path string) (Jobs, error) {
	inline = strings.TrimSpace(inline)
	switch {
	case inline != "" && path != "":
		return nil, errors.New("give jobs inline or with --payload-file, not both")
	case inline != "":
		return Parse([]byte(inline))
	case path != "":
		return Load(path)
	default:
		return nil, ErrEmpty
	}
}

// Load reads and validates the jobs file at path.
func Load(path string) (Jobs, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}

	var jsonData []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		jsonData, err = yaml.YAMLToJSON(content)
		if err != nil {
			return nil, fmt.Errorf("convert %s to json: %w", filepath.Base(path), err)
		}
	default:
		jsonData = jsonc.ToJSON(content)
	}

	jobs, err := Parse(jsonData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return jobs, nil
}

// Parse validates data as a jobs array and returns it compacted.
func Parse(data []byte) (Jobs, error) {
	var document any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := Validate(document); err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Jobs(compact.Bytes()), nil
}

// Validate checks a decoded document against the jobs schema.
func Validate(document any) error {
	sch, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load jobs schema: %w", err)
	}
	if err := sch.Validate(document); err != nil {
		return fmt.Errorf("jobs do not match schema: %w", err)
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(jobsSchemaURL, strings.NewReader(jobsSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(jobsSchemaURL)
	})
	return compiledSchema, schemaErr
}
