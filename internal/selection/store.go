// Package selection holds the canonical ordered selection of one binding point.
//
// A Store is an ordered, duplicate-free list of entity references. Order is
// carried by explicit weights; the slice is always kept sorted by weight so
// rendering is a pure projection of the store.
//
// INVARIANTS:
//   - No two items share an EntityRef key
//   - Weights strictly increase along the slice
//
// The store is not safe for concurrent mutation. Its only writer is the
// controller of the owning binding point, which serializes calls.
package selection

import (
	"sort"

	"github.com/roach88/refbind/internal/ir"
)

// Store is the ordered, duplicate-free selection of one binding point.
type Store struct {
	items []ir.SelectionItem
	index map[string]int // key -> position in items
}

// New creates an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// FromValue creates a store pre-seeded from a serialized reference value.
func FromValue(value string) (*Store, error) {
	refs, err := ir.ParseValue(value)
	if err != nil {
		return nil, err
	}
	s := New()
	s.ReplaceAll(refs)
	return s, nil
}

// Len returns the number of selected refs.
func (s *Store) Len() int {
	return len(s.items)
}

// Contains reports whether ref is selected.
func (s *Store) Contains(ref ir.EntityRef) bool {
	_, ok := s.index[ref.Key()]
	return ok
}

// Append adds each ref not already present at the end, in the given order.
// Refs already present stay where they are. Duplicates inside refs are
// collapsed. Returns the refs that were actually added.
func (s *Store) Append(refs []ir.EntityRef) []ir.EntityRef {
	fresh := s.Fresh(refs)
	next := s.nextWeight()
	for _, ref := range fresh {
		s.items = append(s.items, ir.SelectionItem{Ref: ref, Weight: next})
		next++
	}
	s.reindex()
	return fresh
}

// Prepend adds each ref not already present at the front, keeping the
// batch order. Existing items keep their relative order.
// Returns the refs that were actually added.
func (s *Store) Prepend(refs []ir.EntityRef) []ir.EntityRef {
	fresh := s.Fresh(refs)
	if len(fresh) == 0 {
		return fresh
	}
	ordered := make([]ir.EntityRef, 0, len(fresh)+len(s.items))
	ordered = append(ordered, fresh...)
	ordered = append(ordered, s.Refs()...)
	s.ReplaceAll(ordered)
	return fresh
}

// ReplaceAll clears the store and repopulates it in the given order with
// weights 0..n-1. Duplicate refs keep their first position.
func (s *Store) ReplaceAll(refs []ir.EntityRef) {
	s.items = s.items[:0]
	s.index = make(map[string]int, len(refs))
	for _, ref := range refs {
		if _, dup := s.index[ref.Key()]; dup {
			continue
		}
		s.index[ref.Key()] = len(s.items)
		s.items = append(s.items, ir.SelectionItem{Ref: ref, Weight: len(s.items)})
	}
}

// RemoveOne removes ref if present. Removing an absent ref is a no-op.
// Remaining weights are left untouched. Returns whether anything was removed.
func (s *Store) RemoveOne(ref ir.EntityRef) bool {
	pos, ok := s.index[ref.Key()]
	if !ok {
		return false
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	s.reindex()
	return true
}

// Reorder applies a new order. ordered must be a permutation of the current
// contents; otherwise the store is left unchanged and an InvalidReorder
// error is returned. Weights are reassigned 0..n-1.
func (s *Store) Reorder(ordered []ir.EntityRef) error {
	var missing, unknown []string
	seen := make(map[string]bool, len(ordered))
	for _, ref := range ordered {
		key := ref.Key()
		if _, ok := s.index[key]; !ok || seen[key] {
			unknown = append(unknown, key)
			continue
		}
		seen[key] = true
	}
	for _, item := range s.items {
		if !seen[item.Ref.Key()] {
			missing = append(missing, item.Ref.Key())
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		return ir.NewInvalidReorder(missing, unknown)
	}

	s.ReplaceAll(ordered)
	return nil
}

// Serialize returns the canonical value: keys space-joined in weight order.
func (s *Store) Serialize() string {
	return ir.SerializeRefs(s.Refs())
}

// Refs returns the selected refs in weight order.
func (s *Store) Refs() []ir.EntityRef {
	refs := make([]ir.EntityRef, len(s.items))
	for i, item := range s.items {
		refs[i] = item.Ref
	}
	return refs
}

// Items returns a copy of the items in weight order.
// Capabilities on the returned items are zero; the controller fills them.
func (s *Store) Items() []ir.SelectionItem {
	out := make([]ir.SelectionItem, len(s.items))
	copy(out, s.items)
	return out
}

// Weights returns the (ref, weight) pairs in order.
func (s *Store) Weights() []ir.RowWeight {
	out := make([]ir.RowWeight, len(s.items))
	for i, item := range s.items {
		out[i] = ir.RowWeight{Ref: item.Ref, Weight: item.Weight}
	}
	return out
}

// Fresh returns the refs in the batch that are not yet selected, in batch
// order, with duplicates inside the batch collapsed.
func (s *Store) Fresh(refs []ir.EntityRef) []ir.EntityRef {
	fresh := make([]ir.EntityRef, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		key := ref.Key()
		if _, ok := s.index[key]; ok || seen[key] {
			continue
		}
		seen[key] = true
		fresh = append(fresh, ref)
	}
	return fresh
}

// Snapshot captures the current contents for a later Restore.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{items: s.Items()}
}

// Restore resets the store to a snapshot, weights included.
func (s *Store) Restore(snap Snapshot) {
	s.items = make([]ir.SelectionItem, len(snap.items))
	copy(s.items, snap.items)
	sort.SliceStable(s.items, func(i, j int) bool { return s.items[i].Weight < s.items[j].Weight })
	s.reindex()
}

// Snapshot is an immutable copy of a store's contents.
type Snapshot struct {
	items []ir.SelectionItem
}

// Len returns the number of refs in the snapshot.
func (s Snapshot) Len() int {
	return len(s.items)
}

// Refs returns the refs in the snapshot in weight order.
func (s Snapshot) Refs() []ir.EntityRef {
	refs := make([]ir.EntityRef, len(s.items))
	for i, item := range s.items {
		refs[i] = item.Ref
	}
	return refs
}

func (s *Store) nextWeight() int {
	if len(s.items) == 0 {
		return 0
	}
	return s.items[len(s.items)-1].Weight + 1
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, item := range s.items {
		s.index[item.Ref.Key()] = i
	}
}
