// Package specschema validates raw query spec documents against a draft-07
// JSON Schema before they are compiled.
//
// The schema is converted to CUE once and every document is unified with
// it. Schema failures are reported as ValidationError values, separate from
// compile errors.
package specschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/jsonschema"
	"sigs.k8s.io/yaml"
)

//go:embed query_schema.json
var embeddedSchema []byte

// EmbeddedSchema returns a copy of the built-in schema document.
func EmbeddedSchema() []byte {
	out := make([]byte, len(embeddedSchema))
	copy(out, embeddedSchema)
	return out
}

// ValidationError is one schema violation.
type ValidationError struct {
	// Path is the dotted location in the document, "<root>" for the top level.
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}

// Validator checks documents against one compiled schema. It is safe for
// concurrent use; evaluation is serialized because a cue.Context is not.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// New compiles a JSON Schema document.
func New(schemaJSON []byte) (*Validator, error) {
	ctx := cuecontext.New()

	raw := ctx.CompileBytes(schemaJSON, cue.Filename("query_schema.json"))
	if err := raw.Err(); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	file, err := jsonschema.Extract(raw, &jsonschema.Config{})
	if err != nil {
		return nil, fmt.Errorf("convert schema: %w", err)
	}
	schema := ctx.BuildFile(file)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	return &Validator{ctx: ctx, schema: schema}, nil
}

// Load reads and compiles a schema file. Files ending in .yaml or .yml are
// read as YAML renderings of the JSON Schema.
func Load(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("convert schema %s: %w", path, err)
		}
	}
	return New(data)
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns the process-wide validator for the embedded schema. It is
// built on first use and read-only afterwards.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = New(embeddedSchema)
	})
	return defaultValidator, defaultErr
}

// Open returns Load(path) when path is set and Default otherwise.
func Open(path string) (*Validator, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Validate returns every violation in doc, or nil when doc conforms.
func (v *Validator) Validate(doc []byte) []ValidationError {
	if !json.Valid(doc) {
		return []ValidationError{{Path: "<root>", Message: "document is not valid JSON"}}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.CompileBytes(doc, cue.Filename("spec.json"))
	if err := data.Err(); err != nil {
		return convert(err)
	}
	err := v.schema.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	return convert(err)
}

// Valid reports whether doc conforms.
func (v *Validator) Valid(doc []byte) bool {
	return len(v.Validate(doc)) == 0
}

func convert(err error) []ValidationError {
	seen := make(map[ValidationError]bool)
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		if path == "" {
			path = "<root>"
		}
		format, args := e.Msg()
		ve := ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
		if seen[ve] {
			continue
		}
		seen[ve] = true
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Path: "<root>", Message: err.Error()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Explain renders errors as "path: message" lines.
func Explain(errs []ValidationError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
