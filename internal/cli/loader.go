package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/specsql/internal/queryspec"
	"github.com/roach88/specsql/internal/querysql"
)

// LoadError represents an error that occurred while reading a spec file.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ReadSpec reads a query spec and returns it as JSON.
//
// .json files are returned as is. .yaml and .yml files are converted to JSON
// keeping mapping key order, so join_on pairs compile in the order they were
// written. "-" reads stdin, treating
// input that starts with '{' as JSON and anything else as YAML. An empty
// document reads as {}.
func ReadSpec(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
		ext  = strings.ToLower(filepath.Ext(path))
	)

	if path == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading stdin: %v", err)}
		}
		ext = ".yaml"
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			ext = ".json"
		}
	} else {
		switch ext {
		case ".json", ".yaml", ".yml":
		default:
			return nil, &LoadError{
				Code:    ErrCodeUnsupportedFile,
				Message: fmt.Sprintf("unsupported spec file extension %q (want .json, .yaml or .yml)", ext),
				Path:    path,
			}
		}
		data, err = os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "spec file not found", Path: path}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error(), Path: path}
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("{}"), nil
	}
	if ext == ".json" {
		return data, nil
	}

	out, err := queryspec.YAMLToJSON(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeMalformedSpec, Message: fmt.Sprintf("converting YAML: %v", err), Path: path}
	}
	return out, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeReadFailed      = "E002" // File read error
	ErrCodeUnsupportedFile = "E003" // Unknown spec file extension
	ErrCodeConfig          = "E004" // Configuration error
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeSchemaLoad      = "E006" // Query schema could not be loaded
	ErrCodeWriteFailed     = "E007" // File write error

	// Spec validation errors
	ErrCodeValidation    = "E101" // Schema violation
	ErrCodeMalformedSpec = "E102" // Not a JSON object, or shape the decoder rejects

	// Compile errors
	ErrCodeIdentifier           = "E201"
	ErrCodeAmbiguousTarget      = "E202"
	ErrCodeMissingJoinCondition = "E203"
	ErrCodeDepthExceeded        = "E204"
	ErrCodeTooManyJoins         = "E205"
	ErrCodeNoColumnsSelected    = "E206"
	ErrCodeUnsupportedOperator  = "E207"
	ErrCodeInvalidIsValue       = "E208"
	ErrCodeInListTooLarge       = "E209"
	ErrCodeInvalidLogic         = "E210"
	ErrCodeInvalidLimit         = "E211"
	ErrCodeInvalidOffset        = "E212"
	ErrCodeInvalidSpec          = "E213"

	// Database errors
	ErrCodeConnect    = "E301" // Open or ping failed
	ErrCodeQuery      = "E302" // Statement failed
	ErrCodeTimeout    = "E303" // Query timeout reached
	ErrCodeAudit      = "E304" // Audit log unavailable
	ErrCodeIntrospect = "E305" // Catalog query failed
)

// MapKindToErrorCode maps a querysql.Kind name to an error code.
func MapKindToErrorCode(kind string) string {
	switch kind {
	case "identifier":
		return ErrCodeIdentifier
	case "ambiguous_target":
		return ErrCodeAmbiguousTarget
	case "missing_join_condition":
		return ErrCodeMissingJoinCondition
	case "depth_exceeded":
		return ErrCodeDepthExceeded
	case "too_many_joins":
		return ErrCodeTooManyJoins
	case "no_columns_selected":
		return ErrCodeNoColumnsSelected
	case "unsupported_operator":
		return ErrCodeUnsupportedOperator
	case "invalid_is_value":
		return ErrCodeInvalidIsValue
	case "in_list_too_large":
		return ErrCodeInListTooLarge
	case "invalid_logic":
		return ErrCodeInvalidLogic
	case "invalid_limit":
		return ErrCodeInvalidLimit
	case "invalid_offset":
		return ErrCodeInvalidOffset
	case "invalid_spec":
		return ErrCodeInvalidSpec
	default:
		return ErrCodeGeneric
	}
}

// compileErrorCode is MapKindToErrorCode applied to err.
func compileErrorCode(err error) string {
	return MapKindToErrorCode(querysql.Kind(err))
}
