// Package reorder turns a completed drag into a new canonical order.
//
// The host UI reports the visual order of item keys after a drag. The
// engine applies it to the store as a permutation and returns the new
// serialized value plus, for drag-handle UIs, per-row weights to write back.
// Applying the same order twice yields identical output.
package reorder

import (
	"fmt"

	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/selection"
)

// DragEvent is the new visual order of one binding point's rows.
type DragEvent struct {
	// Keys are EntityRef keys ("entity_type:entity_id") in visual order.
	Keys []string
}

// FromRefs builds a DragEvent from refs.
func FromRefs(refs []ir.EntityRef) DragEvent {
	return DragEvent{Keys: ir.Keys(refs)}
}

// Result is the outcome of a successful reorder.
type Result struct {
	Value   string
	Weights []ir.RowWeight // nil unless the engine tracks weights
}

// Engine applies drag events to a store.
type Engine struct {
	trackWeights bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights makes Apply also emit (ref, weight) pairs.
func WithWeights(track bool) Option {
	return func(e *Engine) {
		e.trackWeights = track
	}
}

// New creates a reorder engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply reorders the store to match ev. On any parse or permutation error
// the store is left unchanged.
func (e *Engine) Apply(s *selection.Store, ev DragEvent) (Result, error) {
	ordered, err := ir.ParseRefs(ev.Keys)
	if err != nil {
		return Result{}, fmt.Errorf("reorder: %w", err)
	}
	if err := s.Reorder(ordered); err != nil {
		return Result{}, err
	}

	res := Result{Value: s.Serialize()}
	if e.trackWeights {
		res.Weights = s.Weights()
	}
	return res, nil
}
