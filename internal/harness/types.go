package harness

import "github.com/roach88/refbind/internal/ir"

// Trace event types. "event" is an inbound message; the others are the
// outbound messages it caused.
const (
	TraceEventIn  = "event"
	TraceOpen     = "open"
	TraceReject   = "reject"
	TraceUpdate   = "update"
	TraceExpand   = "expand"
	TraceEditForm = "edit"
)

// TraceEvent is one line of a scenario trace. Outbound messages carry the
// seq of the inbound message that caused them.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Session string `json:"session,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Value   string `json:"value,omitempty"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message,omitempty"`

	// Open signals only.
	Reopen        bool   `json:"reopen,omitempty"`
	InputKind     string `json:"input_kind,omitempty"`
	MaxSelectable int    `json:"max_selectable,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every step met its expect and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace contains inbound messages and the outbound messages they caused.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final state of the binding point.
	Value      string             `json:"value"`
	State      string             `json:"state"`
	Items      []ir.SelectionItem `json:"items"`
	Signals    int                `json:"signals"`
	Rejections []ir.Rejection     `json:"rejections,omitempty"`
	Journal    []ir.JournalEntry  `json:"journal,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
