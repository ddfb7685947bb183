package engine

import (
	"fmt"

	"github.com/roach88/refbind/internal/ir"
)

// Event is one inbound message. It is also the JSON-lines wire format read
// by the run command, and the payload recorded in the journal.
//
// Host events (init, open, remove, replace, edit, reorder) name their
// binding point. Surface events (confirm, cancel) carry only a session token.
type Event struct {
	Kind         ir.EventKind   `json:"kind"`
	BindingPoint string         `json:"binding_point,omitempty"`
	SessionToken string         `json:"session_token,omitempty"`
	Seed         string         `json:"seed,omitempty"`
	Mode         ir.CommitMode  `json:"mode,omitempty"`
	Ref          *ir.EntityRef  `json:"ref,omitempty"`
	Refs         []ir.EntityRef `json:"refs,omitempty"`
}

// InitEvent seeds a binding point from its persisted value.
func InitEvent(bindingPoint, seed string) Event {
	return Event{Kind: ir.EventInit, BindingPoint: bindingPoint, Seed: seed}
}

// OpenEvent opens the surface of a binding point.
func OpenEvent(bindingPoint string) Event {
	return Event{Kind: ir.EventOpen, BindingPoint: bindingPoint}
}

// ConfirmEvent wraps a surface confirm message.
func ConfirmEvent(msg ir.ConfirmMessage) Event {
	return Event{Kind: ir.EventConfirm, SessionToken: msg.SessionToken, Mode: msg.Mode, Refs: msg.Refs}
}

// CancelEvent wraps a surface cancel message.
func CancelEvent(msg ir.CancelMessage) Event {
	return Event{Kind: ir.EventCancel, SessionToken: msg.SessionToken}
}

// RowActionEvent wraps a remove, edit or replace request from the host.
func RowActionEvent(a ir.RowAction) Event {
	ref := a.Ref
	return Event{Kind: ir.EventKind(a.Action), BindingPoint: a.BindingPoint, Ref: &ref}
}

// ReorderEvent wraps a drag result from the host.
func ReorderEvent(r ir.ReorderCommit) Event {
	return Event{Kind: ir.EventReorder, BindingPoint: r.BindingPoint, Refs: r.OrderedRefs}
}

// Validate checks that the event carries what its kind needs and that every
// ref it carries is well formed. Refs are not normalized here; the
// controller does that before they touch a store.
func (ev Event) Validate() error {
	if !ir.ValidEventKinds[ev.Kind] {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err := validateRefs(ev); err != nil {
		return fmt.Errorf("%s: %w", ev.Kind, err)
	}

	switch ev.Kind {
	case ir.EventConfirm, ir.EventCancel:
		if ev.SessionToken == "" {
			return fmt.Errorf("%s: session_token is required", ev.Kind)
		}
		if ev.Mode != "" && !ir.ValidCommitModes[ev.Mode] {
			return fmt.Errorf("%s: %w", ev.Kind, ir.NewInvalidCommitMode(ev.Mode))
		}
		return nil
	}
	if ev.BindingPoint == "" {
		return fmt.Errorf("%s: binding_point is required", ev.Kind)
	}
	switch ev.Kind {
	case ir.EventRemove, ir.EventReplace, ir.EventEdit:
		if ev.Ref == nil {
			return fmt.Errorf("%s: ref is required", ev.Kind)
		}
	}
	return nil
}

func validateRefs(ev Event) error {
	if ev.Ref != nil {
		if err := ev.Ref.Validate(); err != nil {
			return err
		}
	}
	for i, r := range ev.Refs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("refs[%d]: %w", i, err)
		}
	}
	return nil
}

// surfaceEvent reports whether the event is routed by session token.
func (ev Event) surfaceEvent() bool {
	return ev.Kind == ir.EventConfirm || ev.Kind == ir.EventCancel
}
