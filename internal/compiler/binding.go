package compiler

import (
	"fmt"

	"github.com/roach88/refbind/internal/ir"
)

// ValidateBinding cross-checks a field against the browser it references.
// Every returned error has code CONFIGURATION_CONFLICT and is tagged with
// the field's binding point. A nil result means the pair can be saved.
func ValidateBinding(field ir.FieldWidgetConfig, browsers map[string]ir.BrowserConfig) []*ir.SelectionError {
	var errs []*ir.SelectionError
	conflict := func(setting, msg string) {
		errs = append(errs, ir.NewConfigurationConflict(setting, field.Name, msg).WithBindingPoint(field.Name))
	}

	fieldLabel := field.Label
	if fieldLabel == "" {
		fieldLabel = field.Name
	}

	if field.Cardinality == 0 || field.Cardinality < ir.CardinalityUnlimited {
		conflict("cardinality", fmt.Sprintf(
			"There is a configuration problem with field %q. Cardinality must be a positive number or -1 for unlimited, got %d.",
			fieldLabel, field.Cardinality))
	}

	if field.CardinalityMode == ir.CardinalityReplaceOnSingle && field.Cardinality != 1 {
		conflict("cardinality_mode", fmt.Sprintf(
			"There is a configuration problem with field %q. The cardinality mode replace-on-single requires a cardinality of 1, got %d.",
			fieldLabel, field.Cardinality))
	}

	browser, ok := browsers[field.Browser]
	if !ok {
		conflict("browser", fmt.Sprintf(
			"There is a configuration problem with field %q. The entity browser %q does not exist.",
			fieldLabel, field.Browser))
		return errs
	}

	browserLabel := browser.Label
	if browserLabel == "" {
		browserLabel = browser.ID
	}

	if field.SelectionMode == ir.SelectionEdit && !browser.SelectionDisplay.SupportsPreselection() {
		conflict("selection_mode", fmt.Sprintf(
			"There is a configuration problem with field %q. The selection mode %s requires an entity browser with a selection display plugin that supports preselection. Either change the selection mode or update the %s entity browser to use a selection display plugin that supports preselection.",
			fieldLabel, field.SelectionMode.Label(), browserLabel))
	}

	if field.Replace && len(browser.Widgets) == 0 {
		conflict("field_widget_replace", fmt.Sprintf(
			"There is a configuration problem with field %q. Replacing items requires the %s entity browser to have at least one widget.",
			fieldLabel, browserLabel))
	}

	return errs
}
