package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/refbind/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// BrowserConfig errors (E101-E109)
	ErrBrowserIDEmpty          = "E101" // browser id is required
	ErrInvalidDisplay          = "E102" // unknown display kind
	ErrInvalidSelectionDisplay = "E103" // unknown selection display
	ErrInvalidWidgetSelector   = "E104" // unknown widget selector
	ErrDuplicateName           = "E105" // duplicate widget id
	ErrWidgetIDEmpty           = "E106" // widget id is required

	// FieldWidgetConfig errors (E110-E120)
	ErrFieldNameEmpty         = "E110" // field name is required
	ErrFieldBrowserEmpty      = "E111" // field must reference a browser
	ErrInvalidCardinalityMode = "E112" // unknown cardinality mode
	ErrInvalidSelectionMode   = "E113" // unknown selection mode
	ErrConfigurationConflict  = "E120" // cross-check failure, see ValidateBinding
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled configuration against schema rules.
// Returns all errors found (does not fail-fast).
// Supports BrowserConfig and FieldWidgetConfig.
func Validate(v any) []ValidationError {
	switch cfg := v.(type) {
	case *ir.BrowserConfig:
		return validateBrowser(cfg)
	case ir.BrowserConfig:
		return validateBrowser(&cfg)
	case *ir.FieldWidgetConfig:
		return validateField(cfg)
	case ir.FieldWidgetConfig:
		return validateField(&cfg)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateBrowser(cfg *ir.BrowserConfig) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(cfg.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "browser id is required and must be non-empty",
			Code:    ErrBrowserIDEmpty,
		})
	}

	if !ir.ValidDisplays[cfg.Display] {
		errs = append(errs, ValidationError{
			Field:   "display",
			Message: fmt.Sprintf("invalid display %q, must be \"iframe\", \"modal\", or \"window\"", cfg.Display),
			Code:    ErrInvalidDisplay,
		})
	}

	if !cfg.SelectionDisplay.Known() {
		errs = append(errs, ValidationError{
			Field:   "selection_display",
			Message: fmt.Sprintf("invalid selection display %q", cfg.SelectionDisplay),
			Code:    ErrInvalidSelectionDisplay,
		})
	}

	if !ir.ValidWidgetSelectors[cfg.WidgetSelector] {
		errs = append(errs, ValidationError{
			Field:   "widget_selector",
			Message: fmt.Sprintf("invalid widget selector %q, must be \"single\", \"tabs\", or \"dropdown\"", cfg.WidgetSelector),
			Code:    ErrInvalidWidgetSelector,
		})
	}

	seen := make(map[string]bool)
	for i, w := range cfg.Widgets {
		if strings.TrimSpace(w.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("widgets[%d].id", i),
				Message: "widget id is required",
				Code:    ErrWidgetIDEmpty,
			})
			continue
		}
		if seen[w.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("widgets[%d].id", i),
				Message: fmt.Sprintf("duplicate widget id: %q", w.ID),
				Code:    ErrDuplicateName,
			})
		}
		seen[w.ID] = true
	}

	return errs
}

func validateField(cfg *ir.FieldWidgetConfig) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "field name is required and must be non-empty",
			Code:    ErrFieldNameEmpty,
		})
	}

	if strings.TrimSpace(cfg.Browser) == "" {
		errs = append(errs, ValidationError{
			Field:   "browser",
			Message: "field must reference an entity browser",
			Code:    ErrFieldBrowserEmpty,
		})
	}

	if !ir.ValidCardinalityModes[cfg.CardinalityMode] {
		errs = append(errs, ValidationError{
			Field:   "cardinality_mode",
			Message: fmt.Sprintf("invalid cardinality mode %q, must be \"append\" or \"replace-on-single\"", cfg.CardinalityMode),
			Code:    ErrInvalidCardinalityMode,
		})
	}

	if !ir.ValidSelectionModes[cfg.SelectionMode] {
		errs = append(errs, ValidationError{
			Field:   "selection_mode",
			Message: fmt.Sprintf("invalid selection mode %q", cfg.SelectionMode),
			Code:    ErrInvalidSelectionMode,
		})
	}

	return errs
}
