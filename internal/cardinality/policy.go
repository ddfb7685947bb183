// Package cardinality validates selection sizes against a binding point's limit.
//
// Validation is pure: it never touches a store. Callers pass the current
// size and the number of refs a batch would actually add, and get back nil
// (accept) or a TooManySelected error (reject). A rejected batch must not be
// applied at all; partial commits are never produced here.
package cardinality

import (
	"github.com/roach88/refbind/internal/ir"
)

// Policy is the cardinality configuration of one binding point.
type Policy struct {
	// Limit is the maximum number of refs, or ir.CardinalityUnlimited.
	Limit int
	// Mode selects append or radio-style replace-on-single counting.
	Mode ir.CardinalityMode
}

// New builds a policy. A zero limit is treated as unlimited.
func New(limit int, mode ir.CardinalityMode) Policy {
	if limit == 0 {
		limit = ir.CardinalityUnlimited
	}
	if mode == "" {
		mode = ir.CardinalityAppend
	}
	return Policy{Limit: limit, Mode: mode}
}

// FromConfig builds the policy of a field widget configuration.
func FromConfig(cfg ir.FieldWidgetConfig) Policy {
	return New(cfg.Cardinality, cfg.CardinalityMode)
}

// Unlimited reports whether the policy has no maximum.
func (p Policy) Unlimited() bool {
	return p.Limit < 0
}

// Single reports whether the binding point behaves as a single radio choice.
func (p Policy) Single() bool {
	return p.Mode == ir.CardinalityReplaceOnSingle && p.Limit == 1
}

// Validate accepts or rejects a batch.
//
// Rules:
//   - Unlimited: always accept.
//   - Replace-on-single with limit 1: accept iff incoming <= 1 (radio semantics,
//     the current selection is replaced).
//   - Commit mode replace: the batch replaces the store, accept iff incoming <= limit.
//   - Otherwise: accept iff current + incoming <= limit.
func (p Policy) Validate(current, incoming int, mode ir.CommitMode) error {
	if p.Unlimited() {
		return nil
	}
	if p.Single() {
		if incoming <= 1 {
			return nil
		}
		return ir.NewTooManySelected(p.Limit)
	}
	if mode == ir.CommitReplace {
		current = 0
	}
	if current+incoming <= p.Limit {
		return nil
	}
	return ir.NewTooManySelected(p.Limit)
}

// Replaces reports whether an accepted batch should replace the store rather
// than extend it.
func (p Policy) Replaces(mode ir.CommitMode) bool {
	return mode == ir.CommitReplace || p.Single()
}

// InputKind returns the input the surface should render for this policy.
func (p Policy) InputKind() ir.InputKind {
	if p.Single() {
		return ir.InputRadio
	}
	return ir.InputCheckbox
}

// Remaining returns how many more refs may be selected given the current
// size, or ir.CardinalityUnlimited. Surfaces may use it to disable further
// inputs; commits are validated regardless.
func (p Policy) Remaining(current int, mode ir.CommitMode) int {
	if p.Unlimited() {
		return ir.CardinalityUnlimited
	}
	if p.Replaces(mode) {
		return p.Limit
	}
	if rem := p.Limit - current; rem > 0 {
		return rem
	}
	return 0
}
