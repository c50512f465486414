// Package pipeline runs the request-independent steps shared by the CLI and
// the HTTP server: schema validation, decoding, linting, compilation and
// fingerprinting.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/specsql/internal/fingerprint"
	"github.com/roach88/specsql/internal/queryspec"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/specschema"
)

// Stage names where a document was rejected.
const (
	StageValidate = "validate"
	StageParse    = "parse"
	StageCompile  = "compile"
)

// Validator checks a raw spec document against the query schema.
type Validator interface {
	Validate(doc []byte) []specschema.ValidationError
}

// ValidationFailure reports schema violations.
type ValidationFailure struct {
	Errors []specschema.ValidationError
}

func (e *ValidationFailure) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed: %s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Details renders every violation, one per line.
func (e *ValidationFailure) Details() string {
	return specschema.Explain(e.Errors)
}

// Prepared is a compiled, fingerprinted spec.
type Prepared struct {
	Spec          *queryspec.QuerySpec
	SQL           querysql.SQL
	SpecHash      string
	StatementHash string
	Warnings      []string
}

// Prepare validates doc (when v is non-nil), decodes, lints and compiles it.
//
// Errors are *ValidationFailure, an error wrapping queryspec.ErrMalformed,
// or a *querysql.CompileError; Stage reports which.
func Prepare(doc []byte, v Validator, c *querysql.Compiler) (*Prepared, error) {
	if v != nil {
		if errs := v.Validate(doc); len(errs) > 0 {
			return nil, &ValidationFailure{Errors: errs}
		}
	}

	spec, err := queryspec.Parse(doc)
	if err != nil {
		return nil, err
	}

	specHash, err := fingerprint.Spec(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", queryspec.ErrMalformed, err)
	}

	stmt, err := c.Compile(spec)
	if err != nil {
		return nil, err
	}

	stmtHash, err := fingerprint.Statement(stmt)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Spec:          spec,
		SQL:           stmt,
		SpecHash:      specHash,
		StatementHash: stmtHash,
		Warnings:      queryspec.Lint(spec).Warnings,
	}, nil
}

// Stage classifies an error returned by Prepare. Anything unrecognized is
// reported as "".
func Stage(err error) string {
	var vf *ValidationFailure
	var ce *querysql.CompileError
	switch {
	case errors.As(err, &vf):
		return StageValidate
	case errors.Is(err, queryspec.ErrMalformed):
		return StageParse
	case errors.As(err, &ce):
		return StageCompile
	}
	return ""
}
