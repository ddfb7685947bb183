package ir

// Capabilities are the per-row actions the host may show for an item.
// Derived at render time; never stored across a mutation.
type Capabilities struct {
	CanRemove  bool `json:"can_remove" yaml:"remove"`
	CanEdit    bool `json:"can_edit" yaml:"edit"`
	CanReplace bool `json:"can_replace" yaml:"replace"`
}

// SelectionItem is one entry of a selection store.
type SelectionItem struct {
	Ref          EntityRef    `json:"ref"`
	Weight       int          `json:"weight"`
	Capabilities Capabilities `json:"capabilities"`
}

// RowWeight is a (ref, weight) pair written back into per-row weight fields.
type RowWeight struct {
	Ref    EntityRef `json:"ref"`
	Weight int       `json:"weight"`
}

// Action names a row-level operation.
type Action string

const (
	ActionRemove  Action = "remove"
	ActionEdit    Action = "edit"
	ActionReplace Action = "replace"
)

// AccessChecker answers "may the current actor perform action on ref".
// Supplied by the host; the core never decides access itself.
type AccessChecker func(ref EntityRef, action Action) bool

// AllowAll is an AccessChecker that grants every action.
func AllowAll(EntityRef, Action) bool { return true }
