package querysql

import (
	"errors"
	"fmt"

	"github.com/roach88/specsql/internal/ident"
)

// ErrIdentifier covers malformed names and references. It is the same value
// as ident.ErrInvalid so callers can test either.
var ErrIdentifier = ident.ErrInvalid

// ErrAmbiguousTarget is returned when a through_table relationship does not
// pin down a single target table. It wraps ErrIdentifier.
var ErrAmbiguousTarget = fmt.Errorf("%w: ambiguous many-to-many target", ErrIdentifier)

// Structural errors.
var (
	ErrMissingJoinCondition = errors.New("missing join condition")
	ErrDepthExceeded        = errors.New("maximum relationship depth exceeded")
	ErrTooManyJoins         = errors.New("maximum number of joins exceeded")
	ErrNoColumnsSelected    = errors.New("no columns selected")
	ErrInvalidSpec          = errors.New("invalid query spec")
)

// Filter errors.
var (
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidIsValue      = errors.New("IS expects null or 'not null'")
	ErrInListTooLarge      = errors.New("IN list too large")
	ErrInvalidLogic        = errors.New("invalid filter logic")
)

// Pagination errors.
var (
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrInvalidOffset = errors.New("invalid offset")
)

// CompileError is returned for every compile failure.
//
// Path locates the offending node in the spec, e.g. "fields[2].join_on" or
// "filter.conditions[0]". Err is one of the sentinel errors above.
type CompileError struct {
	Err     error
	Path    string
	Message string
}

func (e *CompileError) Error() string {
	msg := e.Err.Error()
	if e.Message != "" {
		msg = e.Message
	}
	if e.Path == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func newError(sentinel error, path, format string, args ...any) *CompileError {
	msg := sentinel.Error()
	if format != "" {
		msg = sentinel.Error() + ": " + fmt.Sprintf(format, args...)
	}
	return &CompileError{Err: sentinel, Path: path, Message: msg}
}

// wrapIdent turns an ident error into a CompileError at path.
func wrapIdent(err error, path string) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	return &CompileError{Err: err, Path: path, Message: err.Error()}
}

// kinds is ordered most specific first; ErrAmbiguousTarget wraps ErrIdentifier.
var kinds = []struct {
	err  error
	name string
}{
	{ErrAmbiguousTarget, "ambiguous_target"},
	{ErrIdentifier, "identifier"},
	{ErrMissingJoinCondition, "missing_join_condition"},
	{ErrDepthExceeded, "depth_exceeded"},
	{ErrTooManyJoins, "too_many_joins"},
	{ErrNoColumnsSelected, "no_columns_selected"},
	{ErrInvalidSpec, "invalid_spec"},
	{ErrUnsupportedOperator, "unsupported_operator"},
	{ErrInvalidIsValue, "invalid_is_value"},
	{ErrInListTooLarge, "in_list_too_large"},
	{ErrInvalidLogic, "invalid_logic"},
	{ErrInvalidLimit, "invalid_limit"},
	{ErrInvalidOffset, "invalid_offset"},
}

// Kind returns a stable snake_case name for a compile error, or "" when err
// is not a compile error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
