package ir

import (
	"errors"
	"fmt"
)

// SelectionError represents an error detected while handling a binding point.
//
// Selection errors fall into three groups:
//   - User errors (too many selected): reported inline, nothing mutated
//   - Integration errors (invalid reorder, unknown session): logged, no-op
//   - Configuration errors (configuration conflict): block saving config
//
// SelectionError includes structured fields for diagnostics.
type SelectionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// BindingPoint identifies the affected binding point, if known.
	BindingPoint string

	// SessionToken identifies the surface session, if any.
	SessionToken string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes selection errors.
type ErrorCode string

const (
	// ErrCodeTooManySelected indicates a confirm batch would exceed the limit.
	ErrCodeTooManySelected ErrorCode = "TOO_MANY_SELECTED"

	// ErrCodeInvalidReorder indicates a reorder is not a permutation of the store.
	ErrCodeInvalidReorder ErrorCode = "INVALID_REORDER"

	// ErrCodeUnknownSession indicates a message for a session that is not open.
	ErrCodeUnknownSession ErrorCode = "UNKNOWN_SESSION"

	// ErrCodeNoAvailableWidget indicates no picker is visible to the actor.
	ErrCodeNoAvailableWidget ErrorCode = "NO_AVAILABLE_WIDGET"

	// ErrCodeConfigurationConflict indicates an invalid static configuration.
	ErrCodeConfigurationConflict ErrorCode = "CONFIGURATION_CONFLICT"

	// ErrCodeInvalidRef indicates a malformed entity reference token.
	ErrCodeInvalidRef ErrorCode = "INVALID_REF"

	// ErrCodeInvalidAction indicates a row action the current capabilities forbid.
	ErrCodeInvalidAction ErrorCode = "INVALID_ACTION"

	// ErrCodeInvalidCommitMode indicates a confirm mode outside ValidCommitModes.
	ErrCodeInvalidCommitMode ErrorCode = "INVALID_COMMIT_MODE"
)

// Error implements the error interface.
func (e *SelectionError) Error() string {
	if e.BindingPoint != "" && e.SessionToken != "" {
		return fmt.Sprintf("%s: %s (binding=%s, session=%s)", e.Code, e.Message, e.BindingPoint, e.SessionToken)
	}
	if e.BindingPoint != "" {
		return fmt.Sprintf("%s: %s (binding=%s)", e.Code, e.Message, e.BindingPoint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithBindingPoint returns a copy of the error tagged with a binding point.
func (e *SelectionError) WithBindingPoint(id string) *SelectionError {
	cp := *e
	cp.BindingPoint = id
	return &cp
}

// CodeOf returns the error code of err, or "" if err is not a SelectionError.
func CodeOf(err error) ErrorCode {
	var se *SelectionError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsTooManySelected returns true if err is a cardinality rejection.
func IsTooManySelected(err error) bool { return hasCode(err, ErrCodeTooManySelected) }

// IsInvalidReorder returns true if err is an invalid reorder.
func IsInvalidReorder(err error) bool { return hasCode(err, ErrCodeInvalidReorder) }

// IsUnknownSession returns true if err is a stale or unknown session.
func IsUnknownSession(err error) bool { return hasCode(err, ErrCodeUnknownSession) }

// IsNoAvailableWidget returns true if no picker is available.
func IsNoAvailableWidget(err error) bool { return hasCode(err, ErrCodeNoAvailableWidget) }

// IsConfigurationConflict returns true if err is a configuration conflict.
func IsConfigurationConflict(err error) bool { return hasCode(err, ErrCodeConfigurationConflict) }

// IsInvalidRef returns true if err is a malformed entity reference.
func IsInvalidRef(err error) bool { return hasCode(err, ErrCodeInvalidRef) }

// IsInvalidAction returns true if err is a forbidden row action.
func IsInvalidAction(err error) bool { return hasCode(err, ErrCodeInvalidAction) }

// NewTooManySelected creates a SelectionError for an over-limit batch.
// The message matches what the surface shows the user.
func NewTooManySelected(limit int) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeTooManySelected,
		Message: fmt.Sprintf("You can only select up to %d items", limit),
		Details: map[string]string{
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

// NewInvalidReorder creates a SelectionError for a reorder that is not a
// permutation of the store contents.
func NewInvalidReorder(missing, unknown []string) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeInvalidReorder,
		Message: fmt.Sprintf("reorder is not a permutation of the selection (missing=%v, unknown=%v)", missing, unknown),
		Details: map[string]string{
			"missing": fmt.Sprintf("%v", missing),
			"unknown": fmt.Sprintf("%v", unknown),
		},
	}
}

// NewUnknownSession creates a SelectionError for a stale session token.
func NewUnknownSession(token, current string) *SelectionError {
	return &SelectionError{
		Code:         ErrCodeUnknownSession,
		Message:      "message does not belong to the open session",
		SessionToken: token,
		Details: map[string]string{
			"current": current,
		},
	}
}

// NewNoAvailableWidget creates a SelectionError for an empty picker set.
func NewNoAvailableWidget(browser string) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeNoAvailableWidget,
		Message: "nothing to select from",
		Details: map[string]string{
			"browser": browser,
		},
	}
}

// NewConfigurationConflict creates a SelectionError naming the offending
// setting and the field or browser it applies to.
func NewConfigurationConflict(setting, target, message string) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeConfigurationConflict,
		Message: message,
		Details: map[string]string{
			"setting": setting,
			"target":  target,
		},
	}
}

// NewInvalidRef creates a SelectionError for a malformed reference token.
func NewInvalidRef(token string) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeInvalidRef,
		Message: fmt.Sprintf("invalid entity reference %q: want entity_type:entity_id", token),
	}
}

// NewInvalidCommitMode creates a SelectionError for an unknown confirm mode.
func NewInvalidCommitMode(mode CommitMode) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeInvalidCommitMode,
		Message: fmt.Sprintf("invalid commit mode %q: want append or replace", mode),
	}
}

// NewInvalidAction creates a SelectionError for a forbidden row action.
func NewInvalidAction(action Action, ref EntityRef, reason string) *SelectionError {
	return &SelectionError{
		Code:    ErrCodeInvalidAction,
		Message: fmt.Sprintf("%s not allowed for %s: %s", action, ref.Key(), reason),
	}
}
