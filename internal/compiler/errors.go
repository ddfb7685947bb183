package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// label returns the last path selector of v, which is the struct key the
// value was declared under.
func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	sel := sels[len(sels)-1]
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

func optionalString(v cue.Value, field, def string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string, def int) (int, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	if f.IncompleteKind() == cue.FloatKind {
		return 0, &CompileError{
			Field:   field,
			Message: "must be an integer",
			Pos:     f.Pos(),
		}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}
