package queryir

import (
	"errors"
	"fmt"
)

// ValidationResult lists the problems found in a Select.
type ValidationResult struct {
	Problems []string
}

// OK reports whether the Select can be compiled.
func (r ValidationResult) OK() bool { return len(r.Problems) == 0 }

// Err joins the problems into one error, or returns nil.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Problems))
	for i, p := range r.Problems {
		errs[i] = errors.New(p)
	}
	return errors.Join(errs...)
}

// Validate checks every node of a Select. It is a pure function.
func Validate(sel Select) ValidationResult {
	v := &validator{}
	if sel.Limit < 0 {
		v.add("negative limit %d", sel.Limit)
	}
	v.predicate(sel.Filter)
	return ValidationResult{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) column(c Column) {
	if !Columns[c] {
		v.add("unknown column %q", c)
	}
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.column(pred.Column)
	case *Equals:
		v.predicate(*pred)
	case In:
		v.column(pred.Column)
		if len(pred.Values) == 0 {
			v.add("empty IN list on column %q", pred.Column)
		}
	case *In:
		v.predicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *And:
		v.predicate(*pred)
	default:
		v.add("unknown predicate type %T", p)
	}
}
