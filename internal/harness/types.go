package harness

// Result is the outcome of running one scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	SQL           string   `json:"sql,omitempty"`
	Params        []any    `json:"params,omitempty"`
	StatementHash string   `json:"statement_hash,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`

	// ErrorKind and Error describe a rejected spec.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	// Columns and Rows are set when the scenario has a fixture.
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
