package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/specsql/internal/fingerprint"
)

// Snapshot is the golden representation of a scenario outcome.
type Snapshot struct {
	Scenario  string
	SQL       string
	Params    []any
	ErrorKind string
}

func (s Snapshot) canonicalMap() map[string]any {
	m := map[string]any{"scenario": s.Scenario}
	if s.ErrorKind != "" {
		m["error"] = s.ErrorKind
		return m
	}
	params := s.Params
	if params == nil {
		params = []any{}
	}
	m["sql"] = s.SQL
	m["params"] = params
	return m
}

// RunWithGolden executes a scenario and compares sql, params and error kind
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also assert on Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// MarshalSnapshot renders the golden bytes for a scenario result: canonical
// JSON of its sql and params, or of its error kind for rejected specs.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		Scenario:  name,
		SQL:       result.SQL,
		Params:    result.Params,
		ErrorKind: result.ErrorKind,
	}
	return fingerprint.MarshalCanonical(snapshot.canonicalMap())
}
