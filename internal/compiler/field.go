package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/refbind/internal/ir"
)

// CompileField parses a CUE value into a FieldWidgetConfig.
//
// The CUE value should be the field struct itself, e.g.:
//
//	cfg, err := CompileField(v.LookupPath(cue.ParsePath("field.field_related")))
//
// Omitted settings take the defaults of ir.FieldWidgetConfig.WithDefaults;
// the remove and edit buttons default to enabled, replace to disabled.
// An explicit cardinality of 0 is kept as written so that ValidateBinding
// can report it.
func CompileField(v cue.Value) (*ir.FieldWidgetConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &ir.FieldWidgetConfig{Name: label(v)}

	browserVal := v.LookupPath(cue.ParsePath("browser"))
	if !browserVal.Exists() {
		return nil, &CompileError{
			Field:   "browser",
			Message: "browser is required",
			Pos:     v.Pos(),
		}
	}
	browser, err := browserVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	cfg.Browser = browser

	if cfg.Label, err = optionalString(v, "label", cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Cardinality, err = optionalInt(v, "cardinality", ir.CardinalityUnlimited); err != nil {
		return nil, err
	}

	mode, err := optionalString(v, "cardinality_mode", string(ir.CardinalityAppend))
	if err != nil {
		return nil, err
	}
	cfg.CardinalityMode = ir.CardinalityMode(mode)

	selMode, err := optionalString(v, "selection_mode", string(ir.SelectionAppend))
	if err != nil {
		return nil, err
	}
	cfg.SelectionMode = ir.SelectionMode(selMode)

	flags := []struct {
		name string
		dst  *bool
		def  bool
	}{
		{"field_widget_remove", &cfg.Remove, true},
		{"field_widget_replace", &cfg.Replace, false},
		{"field_widget_edit", &cfg.Edit, true},
		{"auto_open", &cfg.AutoOpen, false},
		{"track_weights", &cfg.TrackWeights, false},
		{"collapsed", &cfg.Collapsed, false},
	}
	for _, f := range flags {
		if *f.dst, err = optionalBool(v, f.name, f.def); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
