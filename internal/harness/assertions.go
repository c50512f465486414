package harness

import (
	"fmt"
	"strings"
)

// Assertion is an additional check on the compiled output.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Text is the substring for sql_contains, sql_not_contains and
	// warning_contains.
	Text string `yaml:"text,omitempty"`

	// Count is the expected number for param_count, join_count and row_count.
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLContains     = "sql_contains"
	AssertSQLNotContains  = "sql_not_contains"
	AssertParamCount      = "param_count"
	AssertJoinCount       = "join_count"
	AssertWarningContains = "warning_contains"
	AssertRowCount        = "row_count"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	SQL      string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "  SQL: %s\n", e.SQL)
	}
	return buf.String()
}

func validateAssertion(index int, a Assertion, hasFixture bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSQLContains, AssertSQLNotContains, AssertWarningContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertParamCount, AssertJoinCount, AssertRowCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
		if a.Type == AssertRowCount && !hasFixture {
			return fmt.Errorf("assertions[%d]: row_count requires a fixture", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func countFailure(typ string, want, got int, sql string) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		SQL:      sql,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions. Assertions
// other than warning_contains fail when the spec was rejected.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		if a.Type != AssertWarningContains && result.ErrorKind != "" {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s: spec was rejected (%s)", i, a.Type, result.ErrorKind))
			continue
		}

		switch a.Type {
		case AssertSQLContains:
			if !strings.Contains(result.SQL, a.Text) {
				err = &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL containing %q", a.Text), Actual: "not found", SQL: result.SQL}
			}
		case AssertSQLNotContains:
			if strings.Contains(result.SQL, a.Text) {
				err = &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL without %q", a.Text), Actual: "found", SQL: result.SQL}
			}
		case AssertParamCount:
			err = countFailure(a.Type, *a.Count, len(result.Params), result.SQL)
		case AssertJoinCount:
			err = countFailure(a.Type, *a.Count, strings.Count(result.SQL, " JOIN "), result.SQL)
		case AssertRowCount:
			err = countFailure(a.Type, *a.Count, len(result.Rows), result.SQL)
		case AssertWarningContains:
			if !containsAny(result.Warnings, a.Text) {
				err = &AssertionError{Type: a.Type, Expected: fmt.Sprintf("warning containing %q", a.Text), Actual: fmt.Sprintf("%q", result.Warnings)}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
