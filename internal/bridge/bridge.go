// Package bridge implements the session protocol between a host binding point
// and its selection surface.
//
// The two sides cannot share memory; every transition is driven by an explicit
// message. Each open mints a new session token and every later message must
// echo it. Messages carrying any other token are stale and are discarded.
//
// States:
//
//	Idle --open--> Open --confirm(valid)--> Committing --> Idle
//	                 |  --confirm(rejected)--> Open
//	                 +--cancel--> Cancelled --> Idle
//
// Opening while already Open supersedes the running session: its token goes
// stale immediately.
//
// A Bridge is owned by exactly one controller and is not safe for concurrent
// use; the controller serializes all calls.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/refbind/internal/cardinality"
	"github.com/roach88/refbind/internal/ir"
)

// State is the protocol state of one binding point.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateCommitting
	StateCancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateCommitting:
		return "committing"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome classifies what a message did.
type Outcome string

const (
	OutcomeOpened    Outcome = "opened"
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeIgnored   Outcome = "ignored"
)

// Target is the store side a confirmed batch is committed into.
type Target interface {
	// Len is the current selection size.
	Len() int
	// Fresh returns the refs of the batch that are not yet selected.
	Fresh(refs []ir.EntityRef) []ir.EntityRef
	// Commit applies an accepted batch. replace selects replace-all semantics.
	Commit(refs []ir.EntityRef, replace bool) error
}

// Session describes one open of the surface.
type Session struct {
	Token  string
	Seq    int64
	Reopen bool
	// Superseded is the token of a session this open replaced, if any.
	Superseded string
}

// Result reports the effect of a confirm or cancel.
type Result struct {
	Outcome    Outcome
	Session    string
	Rejection  *ir.Rejection
	Added      []ir.EntityRef
	Duplicates []ir.EntityRef
}

// Bridge is the per-binding-point protocol state machine.
type Bridge struct {
	bindingPoint string
	policy       cardinality.Policy
	tokens       TokenGenerator
	replaceAll   bool // edit selection mode: every commit replaces
	logger       *slog.Logger

	state   State
	session Session
	seq     int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithTokens sets the session token generator. Default: UUIDv7Generator.
func WithTokens(g TokenGenerator) Option {
	return func(b *Bridge) {
		b.tokens = g
	}
}

// WithSelectionMode applies a field's selection mode. Edit selection makes
// every confirmed batch replace the store.
func WithSelectionMode(mode ir.SelectionMode) Option {
	return func(b *Bridge) {
		b.replaceAll = mode == ir.SelectionEdit
	}
}

// New creates an idle bridge for one binding point.
func New(bindingPoint string, policy cardinality.Policy, opts ...Option) *Bridge {
	b := &Bridge{
		bindingPoint: bindingPoint,
		policy:       policy,
		tokens:       UUIDv7Generator{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("binding", bindingPoint)
	return b
}

// State returns the current protocol state.
func (b *Bridge) State() State {
	return b.state
}

// Current returns the open session, if any.
func (b *Bridge) Current() (Session, bool) {
	if b.state != StateOpen {
		return Session{}, false
	}
	return b.session, true
}

// Policy returns the cardinality policy the bridge validates against.
func (b *Bridge) Policy() cardinality.Policy {
	return b.policy
}

// Open starts a new session. If a session is already open it is superseded.
func (b *Bridge) Open(reopen bool) Session {
	var superseded string
	if b.state == StateOpen {
		superseded = b.session.Token
		b.logger.Info("session superseded", "session", superseded)
	}

	b.seq++
	b.session = Session{
		Token:      b.tokens.Generate(),
		Seq:        b.seq,
		Reopen:     reopen,
		Superseded: superseded,
	}
	b.state = StateOpen

	b.logger.Info("session opened", "session", b.session.Token, "seq", b.seq, "reopen", reopen)
	return b.session
}

// Confirm validates a confirmed batch and commits it into target.
//
// A message for any session but the open one returns an UnknownSession error
// with OutcomeDiscarded; nothing changes. A batch over the cardinality limit
// returns OutcomeRejected with a Rejection for the surface; the session
// stays open and nothing is committed. An unknown mode or a malformed ref is
// an integration error: OutcomeRejected without a Rejection, the session
// stays open, and the error is returned.
func (b *Bridge) Confirm(msg ir.ConfirmMessage, target Target) (Result, error) {
	if err := b.check(msg.SessionToken); err != nil {
		return Result{Outcome: OutcomeDiscarded, Session: msg.SessionToken}, err
	}

	mode := msg.Mode
	if mode == "" {
		mode = ir.CommitAppend
	}
	if !ir.ValidCommitModes[mode] {
		b.logger.Warn("confirm with invalid mode", "session", msg.SessionToken, "mode", mode)
		return Result{Outcome: OutcomeRejected, Session: msg.SessionToken}, ir.NewInvalidCommitMode(mode)
	}
	refs, err := ir.NormalizeRefs(msg.Refs)
	if err != nil {
		b.logger.Warn("confirm with invalid ref", "session", msg.SessionToken, "error", err)
		return Result{Outcome: OutcomeRejected, Session: msg.SessionToken}, err
	}
	replace := b.replaceAll || b.policy.Replaces(mode)

	batch := dedupe(refs)
	var fresh, duplicates []ir.EntityRef
	incoming := len(batch)
	if !replace {
		fresh = target.Fresh(batch)
		duplicates = subtract(batch, fresh)
		incoming = len(fresh)
	}

	validateMode := mode
	if replace {
		validateMode = ir.CommitReplace
	}
	if err := b.policy.Validate(target.Len(), incoming, validateMode); err != nil {
		se := asSelectionError(err)
		b.logger.Info("confirm rejected", "session", msg.SessionToken, "code", se.Code, "incoming", incoming)
		return Result{
			Outcome: OutcomeRejected,
			Session: msg.SessionToken,
			Rejection: &ir.Rejection{
				BindingPoint: b.bindingPoint,
				SessionToken: msg.SessionToken,
				Code:         string(se.Code),
				Message:      se.Message,
			},
		}, nil
	}

	b.state = StateCommitting
	if err := target.Commit(batch, replace); err != nil {
		b.state = StateOpen
		return Result{Outcome: OutcomeRejected, Session: msg.SessionToken}, fmt.Errorf("commit session %s: %w", msg.SessionToken, err)
	}

	added := fresh
	if replace {
		added = batch
	}
	b.state = StateIdle
	b.logger.Info("session committed", "session", msg.SessionToken, "added", len(added), "replace", replace)
	return Result{
		Outcome:    OutcomeCommitted,
		Session:    msg.SessionToken,
		Added:      added,
		Duplicates: duplicates,
	}, nil
}

// Cancel closes the open session without touching the store.
// Cancelling while idle is a no-op (OutcomeIgnored). A cancel for another
// session returns an UnknownSession error with OutcomeDiscarded.
func (b *Bridge) Cancel(msg ir.CancelMessage) (Result, error) {
	if b.state == StateIdle {
		return Result{Outcome: OutcomeIgnored, Session: msg.SessionToken}, nil
	}
	if err := b.check(msg.SessionToken); err != nil {
		return Result{Outcome: OutcomeDiscarded, Session: msg.SessionToken}, err
	}

	b.state = StateCancelled
	b.logger.Info("session cancelled", "session", msg.SessionToken)
	b.state = StateIdle
	return Result{Outcome: OutcomeCancelled, Session: msg.SessionToken}, nil
}

// Abandon drops any open session, e.g. when the binding point is torn down.
func (b *Bridge) Abandon() {
	if b.state == StateOpen {
		b.logger.Info("session abandoned", "session", b.session.Token)
	}
	b.state = StateIdle
}

func (b *Bridge) check(token string) error {
	if b.state != StateOpen || token != b.session.Token {
		current := ""
		if b.state == StateOpen {
			current = b.session.Token
		}
		b.logger.Warn("discarding message for unknown session", "session", token, "current", current)
		return ir.NewUnknownSession(token, current).WithBindingPoint(b.bindingPoint)
	}
	return nil
}

func asSelectionError(err error) *ir.SelectionError {
	var se *ir.SelectionError
	if errors.As(err, &se) {
		return se
	}
	return &ir.SelectionError{Code: ir.ErrCodeTooManySelected, Message: err.Error()}
}

func dedupe(refs []ir.EntityRef) []ir.EntityRef {
	out := make([]ir.EntityRef, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	return out
}

func subtract(all, fresh []ir.EntityRef) []ir.EntityRef {
	keep := make(map[string]bool, len(fresh))
	for _, r := range fresh {
		keep[r.Key()] = true
	}
	var out []ir.EntityRef
	for _, r := range all {
		if !keep[r.Key()] {
			out = append(out, r)
		}
	}
	return out
}
