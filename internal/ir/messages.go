package ir

// OpenSignal asks whatever presents the surface to open it.
// The consumer must echo SessionToken on every message of the session.
type OpenSignal struct {
	BindingPoint  string             `json:"binding_point"`
	SessionToken  string             `json:"session_token"`
	Reopen        bool               `json:"reopen"`
	Browser       string             `json:"browser,omitempty"`
	InputKind     InputKind          `json:"input_kind"`
	MaxSelectable int                `json:"max_selectable"`
	Preselected   []EntityRef        `json:"preselected,omitempty"`
	Widgets       WidgetPresentation `json:"widgets"`
}

// WidgetPresentation tells the surface which pickers to offer.
type WidgetPresentation struct {
	Selector     WidgetSelectorKind `json:"selector"`
	ShowSelector bool               `json:"show_selector"`
	Active       string             `json:"active"`
	Order        []string           `json:"order"`
}

// ConfirmMessage is sent by the surface when the user confirms a selection.
type ConfirmMessage struct {
	SessionToken string      `json:"session_token"`
	Mode         CommitMode  `json:"mode"`
	Refs         []EntityRef `json:"refs"`
}

// CancelMessage is sent by the surface when the user closes it.
type CancelMessage struct {
	SessionToken string `json:"session_token"`
}

// RowAction is a remove/edit/replace request from the host UI.
type RowAction struct {
	BindingPoint string    `json:"binding_point"`
	Action       Action    `json:"action"`
	Ref          EntityRef `json:"ref"`
}

// ReorderCommit carries the new visual order after a drag.
type ReorderCommit struct {
	BindingPoint string      `json:"binding_point"`
	OrderedRefs  []EntityRef `json:"ordered_refs"`
}

// Rejection is sent back to the surface when a confirm is refused.
// The surface stays open.
type Rejection struct {
	BindingPoint string `json:"binding_point"`
	SessionToken string `json:"session_token"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// HostUpdate carries the new canonical value and capabilities to the host.
type HostUpdate struct {
	BindingPoint string          `json:"binding_point"`
	Value        string          `json:"value"`
	Items        []SelectionItem `json:"items"`
	Weights      []RowWeight     `json:"weights,omitempty"`
	Duplicates   []EntityRef     `json:"duplicates,omitempty"`
	Notice       string          `json:"notice,omitempty"`
}

// EditRequest asks the host to present an edit form for one entity.
type EditRequest struct {
	BindingPoint string    `json:"binding_point"`
	Ref          EntityRef `json:"ref"`
}

// ExpandRequest asks the host to expand a collapsed container around a
// binding point so an auto-opened surface is not hidden.
type ExpandRequest struct {
	BindingPoint string `json:"binding_point"`
}
