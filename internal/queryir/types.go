package queryir

// Column is a filterable journal column.
type Column string

const (
	ColumnID           Column = "id"
	ColumnBindingPoint Column = "binding_point"
	ColumnSeq          Column = "seq"
	ColumnKind         Column = "kind"
	ColumnSession      Column = "session_token"
	ColumnOutcome      Column = "outcome"
	ColumnValue        Column = "value"
)

// Columns lists the filterable columns.
var Columns = map[Column]bool{
	ColumnID:           true,
	ColumnBindingPoint: true,
	ColumnSeq:          true,
	ColumnKind:         true,
	ColumnSession:      true,
	ColumnOutcome:      true,
	ColumnValue:        true,
}

// Predicate is a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose column equals Value.
//
//	binding_point = ?
type Equals struct {
	Column Column
	Value  string
}

func (Equals) predicateNode() {}

// In matches rows whose column is one of Values. An empty Values list is
// invalid; use no filter instead.
//
//	outcome IN (?, ?)
type In struct {
	Column Column
	Values []string
}

func (In) predicateNode() {}

// And is a conjunction. An empty And matches every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Select reads journal rows.
type Select struct {
	Filter     Predicate // nil = every row
	Descending bool      // newest first
	Limit      int       // 0 = no limit
}

// Where builds a Select from a list of predicates, skipping nils.
func Where(preds ...Predicate) Select {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return Select{}
	case 1:
		return Select{Filter: kept[0]}
	default:
		return Select{Filter: And{Predicates: kept}}
	}
}

// EqualsIf returns an Equals predicate, or nil when value is empty.
// Convenient for optional CLI filters.
func EqualsIf(col Column, value string) Predicate {
	if value == "" {
		return nil
	}
	return Equals{Column: col, Value: value}
}

// InIf returns an In predicate, or nil when values is empty.
func InIf(col Column, values []string) Predicate {
	if len(values) == 0 {
		return nil
	}
	return In{Column: col, Values: values}
}
