// Package querysql compiles journal filters to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/refbind/internal/queryir"
)

// Compiler compiles queryir.Select values against one table.
//
// CRITICAL: every statement ends in ORDER BY seq, id COLLATE BINARY so
// reads are deterministic. Values are always parameters, never
// interpolated.
type Compiler struct {
	Table   string
	Columns []string // SELECT list, in scan order
}

// NewCompiler creates a Compiler for table with the given SELECT list.
func NewCompiler(table string, columns ...string) *Compiler {
	return &Compiler{Table: table, Columns: columns}
}

// Compile converts sel to SQL. Returns (sql, params, error).
func (c *Compiler) Compile(sel queryir.Select) (string, []any, error) {
	if err := queryir.Validate(sel).Err(); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var b strings.Builder
	var params []any

	cols := "*"
	if len(c.Columns) > 0 {
		cols = strings.Join(c.Columns, ", ")
	}
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, c.Table)

	if sel.Filter != nil {
		where, whereParams := c.compilePredicate(sel.Filter)
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = append(params, whereParams...)
	}

	dir := "ASC"
	if sel.Descending {
		dir = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY seq %s, id COLLATE BINARY %s", dir, dir)

	if sel.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, sel.Limit)
	}

	return b.String(), params, nil
}

// compilePredicate assumes p has been validated.
func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any) {
	switch pred := p.(type) {
	case queryir.Equals:
		return fmt.Sprintf("%s = ?", pred.Column), []any{pred.Value}
	case *queryir.Equals:
		return c.compilePredicate(*pred)
	case queryir.In:
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			params[i] = v
		}
		return fmt.Sprintf("%s IN (%s)", pred.Column, marks), params
	case *queryir.In:
		return c.compilePredicate(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "1 = 1", nil
	}
}

func (c *Compiler) compileAnd(and queryir.And) (string, []any) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil // vacuous truth
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams := c.compilePredicate(sub)
		if _, nested := sub.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, " AND "), params
}
