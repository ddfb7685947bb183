package ir

// EventKind names an inbound message processed for a binding point.
type EventKind string

const (
	EventInit    EventKind = "init"
	EventOpen    EventKind = "open"
	EventConfirm EventKind = "confirm"
	EventCancel  EventKind = "cancel"
	EventRemove  EventKind = "remove"
	EventReplace EventKind = "replace"
	EventEdit    EventKind = "edit"
	EventReorder EventKind = "reorder"
)

// ValidEventKinds defines the accepted event kinds.
var ValidEventKinds = map[EventKind]bool{
	EventInit:    true,
	EventOpen:    true,
	EventConfirm: true,
	EventCancel:  true,
	EventRemove:  true,
	EventReplace: true,
	EventEdit:    true,
	EventReorder: true,
}

// Outcome is what processing an event did.
type Outcome string

const (
	OutcomeInitialized Outcome = "initialized"
	OutcomeOpened      Outcome = "opened"
	OutcomeCommitted   Outcome = "committed"
	OutcomeRejected    Outcome = "rejected"
	OutcomeDiscarded   Outcome = "discarded"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeRemoved     Outcome = "removed"
	OutcomeReplacing   Outcome = "replacing"
	OutcomeEditing     Outcome = "editing"
	OutcomeReordered   Outcome = "reordered"
	OutcomeError       Outcome = "error"
)

// JournalEntry is one processed event with its outcome.
//
// ID is content-addressed (EntryID) so writing the same entry twice is a
// no-op. Payload is canonical JSON of the inbound message. Value is the
// serialized selection after processing.
type JournalEntry struct {
	ID           string    `json:"id"`
	BindingPoint string    `json:"binding_point"`
	Seq          int64     `json:"seq"`
	Kind         EventKind `json:"kind"`
	SessionToken string    `json:"session_token,omitempty"`
	Payload      string    `json:"payload"`
	Outcome      Outcome   `json:"outcome"`
	Value        string    `json:"value"`
	Detail       string    `json:"detail,omitempty"`
}

// NewJournalEntry builds an entry and computes its ID.
func NewJournalEntry(bindingPoint string, seq int64, kind EventKind, sessionToken string, payload any) (JournalEntry, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return JournalEntry{}, err
	}
	id, err := EntryID(bindingPoint, string(kind), sessionToken, string(canonical), seq)
	if err != nil {
		return JournalEntry{}, err
	}
	return JournalEntry{
		ID:           id,
		BindingPoint: bindingPoint,
		Seq:          seq,
		Kind:         kind,
		SessionToken: sessionToken,
		Payload:      string(canonical),
	}, nil
}
