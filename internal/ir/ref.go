package ir

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins entity type and entity id in a reference key.
const KeySeparator = ":"

// EntityRef identifies one selectable entity.
// The stable identity is Key(): entityType + ":" + entityId.
type EntityRef struct {
	EntityType string `json:"entity_type" yaml:"entity_type"`
	EntityID   string `json:"entity_id" yaml:"entity_id"`
}

// NewRef builds an EntityRef with NFC-normalized parts.
func NewRef(entityType, entityID string) EntityRef {
	return EntityRef{
		EntityType: norm.NFC.String(entityType),
		EntityID:   norm.NFC.String(entityID),
	}
}

// Key returns the canonical identity token for the reference.
func (r EntityRef) Key() string {
	return r.EntityType + KeySeparator + r.EntityID
}

// String implements fmt.Stringer.
func (r EntityRef) String() string {
	return r.Key()
}

// IsZero reports whether the reference is empty.
func (r EntityRef) IsZero() bool {
	return r.EntityType == "" && r.EntityID == ""
}

// Validate checks that r survives a round trip through its key and the
// serialized value: both parts non-empty, no whitespace, and no separator in
// the entity type.
func (r EntityRef) Validate() error {
	switch {
	case r.EntityType == "", r.EntityID == "",
		strings.Contains(r.EntityType, KeySeparator),
		strings.IndexFunc(r.Key(), unicode.IsSpace) >= 0:
		return NewInvalidRef(r.Key())
	}
	return nil
}

// Normalize returns r with NFC-normalized parts, or an InvalidRef error.
// Refs that arrive in messages go through here before they reach a store.
func (r EntityRef) Normalize() (EntityRef, error) {
	n := NewRef(r.EntityType, r.EntityID)
	if err := n.Validate(); err != nil {
		return EntityRef{}, err
	}
	return n, nil
}

// NormalizeRefs normalizes every ref, failing on the first invalid one.
func NormalizeRefs(refs []EntityRef) ([]EntityRef, error) {
	out := make([]EntityRef, len(refs))
	for i, r := range refs {
		n, err := r.Normalize()
		if err != nil {
			return nil, fmt.Errorf("ref[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// ParseRef parses a single "entityType:entityId" token.
// The token is split on the first separator, so ids may contain ':'.
func ParseRef(token string) (EntityRef, error) {
	token = strings.TrimSpace(token)
	entityType, entityID, ok := strings.Cut(token, KeySeparator)
	if !ok {
		return EntityRef{}, NewInvalidRef(token)
	}
	ref, err := EntityRef{EntityType: entityType, EntityID: entityID}.Normalize()
	if err != nil {
		return EntityRef{}, NewInvalidRef(token)
	}
	return ref, nil
}

// MustParseRef is like ParseRef but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseRef(token string) EntityRef {
	ref, err := ParseRef(token)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseRefs parses a list of tokens, failing on the first invalid one.
func ParseRefs(tokens []string) ([]EntityRef, error) {
	refs := make([]EntityRef, 0, len(tokens))
	for i, tok := range tokens {
		ref, err := ParseRef(tok)
		if err != nil {
			return nil, fmt.Errorf("ref[%d]: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ParseValue parses a serialized reference value (whitespace-separated tokens).
// Duplicate tokens are dropped, keeping the first occurrence.
// An empty or blank value yields an empty, non-nil slice.
func ParseValue(value string) ([]EntityRef, error) {
	fields := strings.Fields(value)
	refs := make([]EntityRef, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, tok := range fields {
		ref, err := ParseRef(tok)
		if err != nil {
			return nil, fmt.Errorf("value token %d: %w", i, err)
		}
		if seen[ref.Key()] {
			continue
		}
		seen[ref.Key()] = true
		refs = append(refs, ref)
	}
	return refs, nil
}

// SerializeRefs renders refs in the canonical serialized value form.
func SerializeRefs(refs []EntityRef) string {
	return strings.Join(Keys(refs), " ")
}

// Keys maps refs to their identity tokens, preserving order.
func Keys(refs []EntityRef) []string {
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.Key()
	}
	return keys
}
