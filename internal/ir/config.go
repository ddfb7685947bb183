package ir

// CardinalityUnlimited marks a binding point without a maximum count.
const CardinalityUnlimited = -1

// CardinalityMode controls how a confirmed batch is counted against the limit.
type CardinalityMode string

const (
	// CardinalityAppend adds the batch to the current selection.
	CardinalityAppend CardinalityMode = "append"
	// CardinalityReplaceOnSingle treats a limit-1 binding point as radio-style.
	CardinalityReplaceOnSingle CardinalityMode = "replace-on-single"
)

// ValidCardinalityModes defines allowed cardinality modes.
var ValidCardinalityModes = map[CardinalityMode]bool{
	CardinalityAppend:          true,
	CardinalityReplaceOnSingle: true,
}

// CommitMode is carried on each confirm message from the surface.
type CommitMode string

const (
	CommitAppend  CommitMode = "append"
	CommitReplace CommitMode = "replace"
)

// ValidCommitModes defines allowed confirm modes. An empty mode means
// CommitAppend.
var ValidCommitModes = map[CommitMode]bool{
	CommitAppend:  true,
	CommitReplace: true,
}

// SelectionMode controls where newly selected refs land in the store.
type SelectionMode string

const (
	SelectionAppend  SelectionMode = "selection_append"
	SelectionPrepend SelectionMode = "selection_prepend"
	// SelectionEdit opens the surface pre-seeded with the current selection;
	// the confirmed batch replaces the store.
	SelectionEdit SelectionMode = "selection_edit"
)

// Label returns the human label used in configuration messages.
func (m SelectionMode) Label() string {
	switch m {
	case SelectionAppend:
		return "Append to selection"
	case SelectionPrepend:
		return "Prepend selection"
	case SelectionEdit:
		return "Edit selection"
	default:
		return string(m)
	}
}

// ValidSelectionModes defines allowed selection modes.
var ValidSelectionModes = map[SelectionMode]bool{
	SelectionAppend:  true,
	SelectionPrepend: true,
	SelectionEdit:    true,
}

// InputKind is the surface-side input hint for a selection.
type InputKind string

const (
	InputCheckbox InputKind = "checkbox"
	InputRadio    InputKind = "radio"
)

// Display is how the surface is presented. Transport hint only.
type Display string

const (
	DisplayIframe Display = "iframe"
	DisplayModal  Display = "modal"
	DisplayWindow Display = "window"
)

// ValidDisplays defines allowed display kinds.
var ValidDisplays = map[Display]bool{
	DisplayIframe: true,
	DisplayModal:  true,
	DisplayWindow: true,
}

// SelectionDisplay is the surface-side panel that lists the pending selection.
type SelectionDisplay string

const (
	SelectionDisplayNone      SelectionDisplay = "no_display"
	SelectionDisplayMultiStep SelectionDisplay = "multi_step_display"
	SelectionDisplayView      SelectionDisplay = "view"
)

// Known reports whether d is one of the defined variants.
func (d SelectionDisplay) Known() bool {
	switch d {
	case SelectionDisplayNone, SelectionDisplayMultiStep, SelectionDisplayView:
		return true
	}
	return false
}

// SupportsPreselection reports whether the display can show a selection
// handed to it when the surface opens.
func (d SelectionDisplay) SupportsPreselection() bool {
	switch d {
	case SelectionDisplayMultiStep, SelectionDisplayView:
		return true
	case SelectionDisplayNone:
		return false
	}
	return false
}

// WidgetSelectorKind chooses how several pickers are offered on the surface.
type WidgetSelectorKind string

const (
	WidgetSelectorSingle   WidgetSelectorKind = "single"
	WidgetSelectorTabs     WidgetSelectorKind = "tabs"
	WidgetSelectorDropdown WidgetSelectorKind = "dropdown"
)

// ShowsSelector reports whether the kind offers a choice between pickers.
// Unknown kinds do not.
func (k WidgetSelectorKind) ShowsSelector() bool {
	switch k {
	case WidgetSelectorTabs, WidgetSelectorDropdown:
		return true
	case WidgetSelectorSingle:
		return false
	}
	return false
}

// ValidWidgetSelectors defines the built-in widget selector kinds.
var ValidWidgetSelectors = map[WidgetSelectorKind]bool{
	WidgetSelectorSingle:   true,
	WidgetSelectorTabs:     true,
	WidgetSelectorDropdown: true,
}

// WidgetDescriptor is one picker source feeding a surface.
// Visible is the result of an external access check.
type WidgetDescriptor struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Weight  int    `json:"weight" yaml:"weight"`
	Visible bool   `json:"visible" yaml:"visible"`
}

// BrowserConfig describes one selection surface.
type BrowserConfig struct {
	ID               string             `json:"id" yaml:"id"`
	Label            string             `json:"label" yaml:"label"`
	Display          Display            `json:"display" yaml:"display"`
	SelectionDisplay SelectionDisplay   `json:"selection_display" yaml:"selection_display"`
	WidgetSelector   WidgetSelectorKind `json:"widget_selector" yaml:"widget_selector"`
	Widgets          []WidgetDescriptor `json:"widgets" yaml:"widgets"`
}

// FieldWidgetConfig configures one binding point.
type FieldWidgetConfig struct {
	Name            string          `json:"name" yaml:"name"`
	Label           string          `json:"label" yaml:"label"`
	Browser         string          `json:"browser" yaml:"browser"`
	Cardinality     int             `json:"cardinality" yaml:"cardinality"`
	CardinalityMode CardinalityMode `json:"cardinality_mode" yaml:"cardinality_mode"`
	SelectionMode   SelectionMode   `json:"selection_mode" yaml:"selection_mode"`
	Remove          bool            `json:"field_widget_remove" yaml:"field_widget_remove"`
	Replace         bool            `json:"field_widget_replace" yaml:"field_widget_replace"`
	Edit            bool            `json:"field_widget_edit" yaml:"field_widget_edit"`
	AutoOpen        bool            `json:"auto_open" yaml:"auto_open"`
	TrackWeights    bool            `json:"track_weights" yaml:"track_weights"`
	Collapsed       bool            `json:"collapsed" yaml:"collapsed"`
}

// WithDefaults fills zero values with the defaults used by the compiler.
func (c FieldWidgetConfig) WithDefaults() FieldWidgetConfig {
	if c.Cardinality == 0 {
		c.Cardinality = CardinalityUnlimited
	}
	if c.CardinalityMode == "" {
		c.CardinalityMode = CardinalityAppend
	}
	if c.SelectionMode == "" {
		c.SelectionMode = SelectionAppend
	}
	return c
}
