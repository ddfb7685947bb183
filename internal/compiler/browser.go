package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/refbind/internal/ir"
)

// Defaults applied to browser settings left out of the CUE source.
const (
	DefaultDisplay          = ir.DisplayModal
	DefaultSelectionDisplay = ir.SelectionDisplayNone
	DefaultWidgetSelector   = ir.WidgetSelectorTabs
)

// CompileBrowser parses a CUE value into a BrowserConfig.
//
// The CUE value should be the browser struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`browser: files: { label: "Files", widgets: {...} }`)
//	cfg, err := CompileBrowser(v.LookupPath(cue.ParsePath("browser.files")))
//
// Widgets are declared as a struct keyed by widget id. Every widget compiles
// as visible; access checks are applied later by the host.
func CompileBrowser(v cue.Value) (*ir.BrowserConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &ir.BrowserConfig{ID: label(v)}

	var err error
	if cfg.Label, err = optionalString(v, "label", cfg.ID); err != nil {
		return nil, err
	}

	display, err := optionalString(v, "display", string(DefaultDisplay))
	if err != nil {
		return nil, err
	}
	cfg.Display = ir.Display(display)

	selDisplay, err := optionalString(v, "selection_display", string(DefaultSelectionDisplay))
	if err != nil {
		return nil, err
	}
	cfg.SelectionDisplay = ir.SelectionDisplay(selDisplay)

	selector, err := optionalString(v, "widget_selector", string(DefaultWidgetSelector))
	if err != nil {
		return nil, err
	}
	cfg.WidgetSelector = ir.WidgetSelectorKind(selector)

	cfg.Widgets, err = parseWidgets(v)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseWidgets(v cue.Value) ([]ir.WidgetDescriptor, error) {
	widgetsVal := v.LookupPath(cue.ParsePath("widgets"))
	if !widgetsVal.Exists() {
		return nil, nil
	}
	if widgetsVal.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "widgets",
			Message: "widgets must be a struct keyed by widget id",
			Pos:     widgetsVal.Pos(),
		}
	}

	iter, err := widgetsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var widgets []ir.WidgetDescriptor
	for iter.Next() {
		id := iter.Label()
		wv := iter.Value()

		w := ir.WidgetDescriptor{ID: id, Visible: true}
		if w.Label, err = optionalString(wv, "label", id); err != nil {
			return nil, err
		}
		if w.Weight, err = optionalInt(wv, "weight", 0); err != nil {
			return nil, fmt.Errorf("widget %s: %w", id, err)
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}
