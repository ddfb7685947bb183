package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainJournalEntry = "refbind/journal/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EntryID computes the content-addressed ID for a journal entry.
// The ID is stable across replays given the same inputs.
func EntryID(bindingPoint, kind, sessionToken string, payload any, seq int64) (string, error) {
	obj := map[string]any{
		"binding_point": bindingPoint,
		"kind":          kind,
		"session_token": sessionToken,
		"payload":       payload,
		"seq":           seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainJournalEntry, canonical), nil
}

// MustEntryID is like EntryID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEntryID(bindingPoint, kind, sessionToken string, payload any, seq int64) string {
	id, err := EntryID(bindingPoint, kind, sessionToken, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}
