package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/specsql/internal/queryspec"
	"github.com/roach88/specsql/internal/querysql"
)

// Scenario is one conformance case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Options overrides compiler defaults.
	Options *CompilerOptions `yaml:"options,omitempty"`

	// SkipValidation compiles without JSON Schema validation, for specs the
	// schema would reject but the compiler must still guard against.
	SkipValidation bool `yaml:"skip_validation,omitempty"`

	// Spec is the inline query spec. Exactly one of Spec and SpecFile is set.
	Spec yaml.Node `yaml:"spec,omitempty"`

	// SpecFile is a JSON spec path, relative to the scenario file.
	SpecFile string `yaml:"spec_file,omitempty"`

	// Fixture is a SQL file, relative to the scenario file, that seeds an
	// in-memory SQLite database the compiled statement is run against.
	Fixture string `yaml:"fixture,omitempty"`

	Expect Expect `yaml:"expect"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// SpecJSON is the spec document. LoadScenario fills it from Spec or
	// SpecFile; tests may set it directly.
	SpecJSON []byte `yaml:"-"`
}

// CompilerOptions mirrors querysql.Options. Zero values keep the defaults.
type CompilerOptions struct {
	ParamStyle       string `yaml:"param_style,omitempty"`
	QuoteIdentifiers bool   `yaml:"quote_identifiers,omitempty"`
	MaxDepth         int    `yaml:"max_depth,omitempty"`
	MaxJoins         int    `yaml:"max_joins,omitempty"`
	MaxIn            int    `yaml:"max_in,omitempty"`
	MaxLimit         int64  `yaml:"max_limit,omitempty"`
	StrictTables     bool   `yaml:"strict_tables,omitempty"`
}

// Expect is the expected compiler outcome.
type Expect struct {
	// SQL is the exact statement text.
	SQL string `yaml:"sql,omitempty"`

	// Params are the bind values. Nil means unchecked; an empty list means
	// no values.
	Params *[]any `yaml:"params,omitempty"`

	// Error is the expected failure kind.
	Error string `yaml:"error,omitempty"`

	// Warnings must each be a substring of some lint warning.
	Warnings []string `yaml:"warnings,omitempty"`

	// Columns and Rows are checked against the fixture result.
	Columns []string `yaml:"columns,omitempty"`
	Rows    [][]any  `yaml:"rows,omitempty"`
}

func (e Expect) empty() bool {
	return e.SQL == "" && e.Params == nil && e.Error == "" &&
		len(e.Warnings) == 0 && len(e.Columns) == 0 && e.Rows == nil
}

// compilerOptions returns the querysql options for the scenario.
func (o *CompilerOptions) compilerOptions() (querysql.Options, error) {
	opts := querysql.DefaultOptions()
	if o == nil {
		return opts, nil
	}
	if o.ParamStyle != "" {
		style, err := querysql.ParseParamStyle(o.ParamStyle)
		if err != nil {
			return querysql.Options{}, err
		}
		opts.ParamStyle = style
	}
	opts.QuoteIdentifiers = o.QuoteIdentifiers
	if o.MaxDepth > 0 {
		opts.MaxDepth = o.MaxDepth
	}
	if o.MaxJoins > 0 {
		opts.MaxJoins = o.MaxJoins
	}
	if o.MaxIn > 0 {
		opts.MaxIn = o.MaxIn
	}
	if o.MaxLimit > 0 {
		opts.MaxLimit = o.MaxLimit
	}
	opts.StrictTables = o.StrictTables
	return opts, opts.Validate()
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields. Relative
// spec_file and fixture paths are resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if scenario.SpecFile != "" && !filepath.IsAbs(scenario.SpecFile) {
		scenario.SpecFile = filepath.Join(base, scenario.SpecFile)
	}
	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(base, scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if scenario.SpecFile != "" {
		scenario.SpecJSON, err = os.ReadFile(scenario.SpecFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec file: %w", err)
		}
	} else {
		scenario.SpecJSON, err = queryspec.NodeToJSON(&scenario.Spec)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: spec: %w", err)
		}
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		names[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and consistent.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasSpec := s.Spec.Kind != 0
	if hasSpec == (s.SpecFile != "") {
		return fmt.Errorf("exactly one of spec and spec_file is required")
	}
	if hasSpec && s.Spec.Kind != yaml.MappingNode {
		return fmt.Errorf("spec must be a mapping")
	}
	if s.SpecFile != "" {
		if _, err := os.Stat(s.SpecFile); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", s.SpecFile)
		}
	}

	if _, err := s.Options.compilerOptions(); err != nil {
		return fmt.Errorf("options: %w", err)
	}

	if s.Expect.empty() && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	if s.Expect.Error != "" && (s.Expect.SQL != "" || s.Expect.Params != nil || s.Expect.Rows != nil) {
		return fmt.Errorf("expect.error cannot be combined with sql, params or rows")
	}

	if s.Fixture != "" {
		if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
			return fmt.Errorf("fixture file not found: %s", s.Fixture)
		}
		opts, _ := s.Options.compilerOptions()
		if opts.ParamStyle != querysql.ParamQmark {
			return fmt.Errorf("fixture scenarios require param_style qmark")
		}
	} else if len(s.Expect.Columns) > 0 || s.Expect.Rows != nil {
		return fmt.Errorf("expect.columns and expect.rows require a fixture")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, s.Fixture != ""); err != nil {
			return err
		}
	}

	return nil
}
