// Package widget ranks and filters the picker sources of a selection surface.
//
// Several interchangeable pickers (upload, view listing, ...) feed the same
// selection target. The registry keeps only the ones the actor may use,
// orders them deterministically, and asks the configured selector variant
// how to present them.
package widget

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/refbind/internal/ir"
)

// Selector is one presentation variant for a set of pickers.
type Selector interface {
	// Kind is the stable string id the variant is registered under.
	Kind() ir.WidgetSelectorKind
	// Present describes how to offer the ordered, non-empty visible set.
	Present(visible []ir.WidgetDescriptor) ir.WidgetPresentation
}

// Registry resolves selector variants by id and filters descriptors.
// Thread-safe, read-mostly structure.
type Registry struct {
	mu        sync.RWMutex
	selectors map[ir.WidgetSelectorKind]Selector
}

// NewRegistry creates a registry holding the built-in selector variants.
func NewRegistry() *Registry {
	r := &Registry{selectors: make(map[ir.WidgetSelectorKind]Selector)}
	for _, sel := range []Selector{SingleSelector{}, TabsSelector{}, DropdownSelector{}} {
		if err := r.Register(sel); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a selector variant.
// Returns an error if the kind is empty or already registered.
func (r *Registry) Register(sel Selector) error {
	kind := sel.Kind()
	if kind == "" {
		return fmt.Errorf("widget selector kind is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.selectors[kind]; exists {
		return fmt.Errorf("widget selector %q already registered", kind)
	}
	r.selectors[kind] = sel
	return nil
}

// Lookup returns the selector registered under kind.
func (r *Registry) Lookup(kind ir.WidgetSelectorKind) (Selector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sel, ok := r.selectors[kind]
	return sel, ok
}

// Kinds returns the registered kinds in stable order.
func (r *Registry) Kinds() []ir.WidgetSelectorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]ir.WidgetSelectorKind, 0, len(r.selectors))
	for k := range r.selectors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Available returns the visible descriptors sorted by weight, ties broken by id.
func Available(descs []ir.WidgetDescriptor) []ir.WidgetDescriptor {
	out := make([]ir.WidgetDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Visible {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight < out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Resolve filters and orders the browser's pickers and returns how the
// surface should present them.
//
// An empty visible set yields a NoAvailableWidget error so callers never open
// an empty surface. A single visible picker skips selector UI entirely.
func (r *Registry) Resolve(browser ir.BrowserConfig) (ir.WidgetPresentation, error) {
	visible := Available(browser.Widgets)
	if len(visible) == 0 {
		return ir.WidgetPresentation{}, ir.NewNoAvailableWidget(browser.ID)
	}

	kind := browser.WidgetSelector
	if kind == "" {
		kind = ir.WidgetSelectorSingle
	}
	sel, ok := r.Lookup(kind)
	if !ok {
		return ir.WidgetPresentation{}, fmt.Errorf("unknown widget selector %q for browser %q (registered: %v)", kind, browser.ID, r.Kinds())
	}

	if len(visible) == 1 {
		return ir.WidgetPresentation{
			Selector:     kind,
			ShowSelector: false,
			Active:       visible[0].ID,
			Order:        []string{visible[0].ID},
		}, nil
	}
	return sel.Present(visible), nil
}

func ids(descs []ir.WidgetDescriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.ID
	}
	return out
}
