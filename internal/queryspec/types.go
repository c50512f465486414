package queryspec

// QuerySpec is a validated read-query description.
type QuerySpec struct {
	SourceTable string      `json:"source_table"`
	Fields      Fields      `json:"fields"`
	Filter      FilterNode  `json:"-"`
	OrderBy     []OrderSpec `json:"order_by,omitempty"`
	Limit       *Bound      `json:"limit,omitempty"`
	Offset      *Bound      `json:"offset,omitempty"`
}

// FieldEntry is one projected item: a Column or a *Relationship.
type FieldEntry interface {
	fieldEntry()
}

// Fields is an ordered list of field entries.
type Fields []FieldEntry

// Column is a plain column name resolved against the current table alias.
type Column struct {
	Name string
}

func (Column) fieldEntry() {}

// Relationship joins one related table (ChildTable or LookupTable) or, through
// a bridge table (ThroughTable), a many-to-many target.
type Relationship struct {
	// Type is informational: one_to_many, many_to_one, one_to_one, many_to_many.
	Type         string `json:"type,omitempty"`
	ChildTable   string `json:"child_table,omitempty"`
	LookupTable  string `json:"lookup_table,omitempty"`
	ThroughTable string `json:"through_table,omitempty"`
	As           string `json:"as,omitempty"`
	JoinOn       JoinOn `json:"join_on,omitempty"`
	Fields       Fields `json:"fields,omitempty"`
}

func (*Relationship) fieldEntry() {}

// Bridged reports whether the relationship goes through a bridge table.
func (r *Relationship) Bridged() bool {
	return r.ThroughTable != ""
}

// JoinPair is one "head.column" = "head.column" equality.
type JoinPair struct {
	Left  string
	Right string
}

// JoinOn keeps join pairs in declaration order.
type JoinOn []JoinPair

// FilterNode is a Condition or a *Combinator.
type FilterNode interface {
	filterNode()
}

// Condition is a leaf predicate. Value is nil for JSON null or when absent.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

func (Condition) filterNode() {}

// Combinator joins its children with AND or OR (case-insensitive).
type Combinator struct {
	Logic      string
	Conditions []FilterNode
}

func (*Combinator) filterNode() {}

// OrderSpec orders by Field ("head.column") or by Table and Column.
// Direction is asc or desc, case-insensitive; empty means asc.
type OrderSpec struct {
	Field     string `json:"field,omitempty"`
	Table     string `json:"table,omitempty"`
	Column    string `json:"column,omitempty"`
	Direction string `json:"direction,omitempty"`
}
