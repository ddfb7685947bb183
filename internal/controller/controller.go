// Package controller orchestrates one binding point.
//
// A Controller owns the binding point's selection store, its bridge session
// and the derived per-row capabilities. It is the only writer of the store.
// Every mutating call goes through a per-store mailbox so that a call issued
// from inside a port callback runs after the current one instead of
// interleaving with it.
//
// Outbound traffic goes through two ports: SurfacePort (open signals and
// rejections for the selection surface) and HostPort (value updates, expand
// and edit requests for the host form).
package controller

import (
	"fmt"
	"log/slog"

	"github.com/roach88/refbind/internal/bridge"
	"github.com/roach88/refbind/internal/cardinality"
	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/reorder"
	"github.com/roach88/refbind/internal/selection"
	"github.com/roach88/refbind/internal/widget"
)

// NoticeNothingToSelect is shown on the host when no picker is visible.
const NoticeNothingToSelect = "nothing to select from"

// SurfacePort receives messages addressed to the selection surface.
type SurfacePort interface {
	Open(sig ir.OpenSignal)
	Reject(rej ir.Rejection)
}

// HostPort receives messages addressed to the host form.
type HostPort interface {
	Publish(update ir.HostUpdate)
	Expand(req ir.ExpandRequest)
	Edit(req ir.EditRequest)
}

// Controller is the top-level orchestrator of one binding point.
//
// Mutating methods may be called from several goroutines; they are
// serialized by the mailbox. Read methods (Value, Items, State) are meant
// for the goroutine that drives the controller.
type Controller struct {
	cfg     ir.FieldWidgetConfig
	browser ir.BrowserConfig
	policy  cardinality.Policy

	store   *selection.Store
	bridge  *bridge.Bridge
	widgets *widget.Registry
	reorder *reorder.Engine
	access  ir.AccessChecker

	surface SurfacePort
	host    HostPort
	logger  *slog.Logger
	tokens  bridge.TokenGenerator

	// pending holds the pre-replace contents while a replace is in flight.
	pending *selection.Snapshot

	mbox mailbox
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithTokens sets the session token generator. Default: bridge.UUIDv7Generator.
func WithTokens(g bridge.TokenGenerator) Option {
	return func(c *Controller) {
		c.tokens = g
	}
}

// WithAccess sets the per-entity access check used for edit capability.
// Default: ir.AllowAll.
func WithAccess(fn ir.AccessChecker) Option {
	return func(c *Controller) {
		c.access = fn
	}
}

// WithRegistry sets the widget selector registry. Default: widget.NewRegistry().
func WithRegistry(r *widget.Registry) Option {
	return func(c *Controller) {
		c.widgets = r
	}
}

// New creates a controller for the binding point cfg.Name, presenting the
// surface described by browser. The store starts empty; call Init to seed it.
func New(cfg ir.FieldWidgetConfig, browser ir.BrowserConfig, surface SurfacePort, host HostPort, opts ...Option) *Controller {
	cfg = cfg.WithDefaults()
	c := &Controller{
		cfg:     cfg,
		browser: browser,
		policy:  cardinality.FromConfig(cfg),
		store:   selection.New(),
		access:  ir.AllowAll,
		surface: surface,
		host:    host,
		logger:  slog.Default(),
		tokens:  bridge.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.widgets == nil {
		c.widgets = widget.NewRegistry()
	}
	c.reorder = reorder.New(reorder.WithWeights(cfg.TrackWeights))
	c.bridge = bridge.New(cfg.Name, c.policy,
		bridge.WithLogger(c.logger),
		bridge.WithTokens(c.tokens),
		bridge.WithSelectionMode(cfg.SelectionMode),
	)
	c.logger = c.logger.With("binding", cfg.Name)
	return c
}

// BindingPoint returns the binding point id.
func (c *Controller) BindingPoint() string {
	return c.cfg.Name
}

// Config returns the effective field configuration.
func (c *Controller) Config() ir.FieldWidgetConfig {
	return c.cfg
}

// Init seeds the store from the host's persisted value and publishes the
// initial state. With auto-open configured and an empty store, it opens the
// surface immediately, first asking the host to expand a collapsed container.
func (c *Controller) Init(seed string) error {
	return c.do("init", func() error {
		refs, err := ir.ParseValue(seed)
		if err != nil {
			return fmt.Errorf("init %s: %w", c.cfg.Name, err)
		}
		if !c.policy.Unlimited() && len(refs) > c.policy.Limit {
			return ir.NewTooManySelected(c.policy.Limit).WithBindingPoint(c.cfg.Name)
		}
		c.store.ReplaceAll(refs)
		c.publish(nil, "")

		if !c.cfg.AutoOpen || c.store.Len() > 0 {
			return nil
		}
		if _, open := c.bridge.Current(); open {
			return nil
		}
		if c.cfg.Collapsed {
			c.host.Expand(ir.ExpandRequest{BindingPoint: c.cfg.Name})
		}
		return c.open(false)
	})
}

// Open opens the selection surface. Opening while a session is open
// supersedes it.
func (c *Controller) Open() error {
	return c.do("open", func() error {
		return c.open(false)
	})
}

// Remove removes ref from the selection. Removing an absent ref is a no-op.
func (c *Controller) Remove(ref ir.EntityRef) error {
	return c.do("remove", func() error {
		ref, err := c.hostRef(ir.ActionRemove, ref)
		if err != nil {
			return err
		}
		if !c.cfg.Remove {
			return c.invalidAction(ir.ActionRemove, ref, "remove is disabled")
		}
		if !c.store.RemoveOne(ref) {
			c.logger.Debug("remove of absent ref", "ref", ref.Key())
			return nil
		}
		c.logger.Info("ref removed", "ref", ref.Key(), "size", c.store.Len())
		c.publish(nil, "")
		return nil
	})
}

// Replace starts a replace flow for the only selected item. The store is
// cleared and the surface reopened; confirming commits the new selection,
// cancelling restores the previous one.
func (c *Controller) Replace(ref ir.EntityRef) error {
	return c.do("replace", func() error {
		ref, err := c.hostRef(ir.ActionReplace, ref)
		if err != nil {
			return err
		}
		if !c.canReplace() {
			return c.invalidAction(ir.ActionReplace, ref, "replace needs exactly one selected item")
		}
		if !c.store.Contains(ref) {
			return c.invalidAction(ir.ActionReplace, ref, "not selected")
		}

		if c.pending == nil {
			snap := c.store.Snapshot()
			c.pending = &snap
		}
		c.store.ReplaceAll(nil)
		c.logger.Info("replace started", "ref", ref.Key())

		if err := c.open(true); err != nil {
			c.rollback()
			return err
		}
		return nil
	})
}

// Edit asks the host to present an edit form for ref.
func (c *Controller) Edit(ref ir.EntityRef) error {
	return c.do("edit", func() error {
		ref, err := c.hostRef(ir.ActionEdit, ref)
		if err != nil {
			return err
		}
		if !c.cfg.Edit {
			return c.invalidAction(ir.ActionEdit, ref, "edit is disabled")
		}
		if !c.store.Contains(ref) {
			return c.invalidAction(ir.ActionEdit, ref, "not selected")
		}
		if !c.access(ref, ir.ActionEdit) {
			return c.invalidAction(ir.ActionEdit, ref, "access denied")
		}
		c.host.Edit(ir.EditRequest{BindingPoint: c.cfg.Name, Ref: ref})
		return nil
	})
}

// Reorder applies a drag result. An order that is not a permutation of the
// selection is logged and leaves the store unchanged.
func (c *Controller) Reorder(ordered []ir.EntityRef) error {
	return c.do("reorder", func() error {
		refs, err := ir.NormalizeRefs(ordered)
		if err != nil {
			c.logger.Warn("reorder with invalid ref ignored", "error", err)
			return err
		}
		res, err := c.reorder.Apply(c.store, reorder.FromRefs(refs))
		if err != nil {
			c.logger.Warn("invalid reorder ignored", "error", err)
			return err
		}
		c.logger.Debug("reordered", "value", res.Value)
		c.publish(nil, "")
		return nil
	})
}

// Confirm handles a selection confirmed on the surface.
//
// A confirm for a stale session returns an UnknownSession error and changes
// nothing. A batch over the limit is rejected back to the surface, which
// stays open, and a TooManySelected error is returned.
func (c *Controller) Confirm(msg ir.ConfirmMessage) error {
	return c.do("confirm", func() error {
		res, err := c.bridge.Confirm(msg, storeTarget{c})
		if err != nil {
			return err
		}

		switch res.Outcome {
		case bridge.OutcomeRejected:
			c.surface.Reject(*res.Rejection)
			return &ir.SelectionError{
				Code:         ir.ErrorCode(res.Rejection.Code),
				Message:      res.Rejection.Message,
				BindingPoint: c.cfg.Name,
				SessionToken: msg.SessionToken,
				Details:      map[string]string{"limit": fmt.Sprint(c.policy.Limit)},
			}
		case bridge.OutcomeCommitted:
			c.pending = nil
			c.publish(res.Duplicates, duplicateNotice(res.Duplicates))
		}
		return nil
	})
}

// Cancel handles the surface being closed without a selection. A pending
// replace is rolled back. Cancelling while idle is a no-op.
func (c *Controller) Cancel(msg ir.CancelMessage) error {
	return c.do("cancel", func() error {
		res, err := c.bridge.Cancel(msg)
		if err != nil {
			return err
		}
		if res.Outcome == bridge.OutcomeCancelled {
			c.rollback()
		}
		return nil
	})
}

// Close tears the binding point down. Any open session is abandoned.
func (c *Controller) Close() {
	_ = c.do("close", func() error {
		c.bridge.Abandon()
		c.pending = nil
		return nil
	})
}

// Value returns the canonical serialized value.
func (c *Controller) Value() string {
	return c.store.Serialize()
}

// State returns the bridge state.
func (c *Controller) State() bridge.State {
	return c.bridge.State()
}

// Session returns the open session token, if any.
func (c *Controller) Session() (string, bool) {
	s, ok := c.bridge.Current()
	return s.Token, ok
}

// ReplacePending reports whether a replace flow awaits confirm or cancel.
func (c *Controller) ReplacePending() bool {
	return c.pending != nil
}

// Items returns the selection with capabilities recomputed against the
// current store and configuration.
func (c *Controller) Items() []ir.SelectionItem {
	items := c.store.Items()
	replace := c.canReplace()
	for i := range items {
		items[i].Capabilities = ir.Capabilities{
			CanRemove:  c.cfg.Remove,
			CanEdit:    c.cfg.Edit && c.access(items[i].Ref, ir.ActionEdit),
			CanReplace: replace,
		}
	}
	return items
}

func (c *Controller) canReplace() bool {
	return c.cfg.Replace && c.store.Len() == 1
}

func (c *Controller) open(reopen bool) error {
	presentation, err := c.widgets.Resolve(c.browser)
	if err != nil {
		if ir.IsNoAvailableWidget(err) {
			c.publish(nil, NoticeNothingToSelect)
		}
		c.logger.Warn("surface not opened", "error", err)
		return err
	}

	mode := ir.CommitAppend
	var preselected []ir.EntityRef
	if c.cfg.SelectionMode == ir.SelectionEdit {
		mode = ir.CommitReplace
		preselected = c.store.Refs()
	}

	sess := c.bridge.Open(reopen)
	c.surface.Open(ir.OpenSignal{
		BindingPoint:  c.cfg.Name,
		SessionToken:  sess.Token,
		Reopen:        reopen,
		Browser:       c.browser.ID,
		InputKind:     c.policy.InputKind(),
		MaxSelectable: c.policy.Remaining(c.store.Len(), mode),
		Preselected:   preselected,
		Widgets:       presentation,
	})
	return nil
}

func (c *Controller) rollback() {
	if c.pending == nil {
		return
	}
	c.store.Restore(*c.pending)
	c.pending = nil
	c.logger.Info("replace rolled back", "value", c.store.Serialize())
	c.publish(nil, "")
}

func (c *Controller) publish(duplicates []ir.EntityRef, notice string) {
	update := ir.HostUpdate{
		BindingPoint: c.cfg.Name,
		Value:        c.store.Serialize(),
		Items:        c.Items(),
		Duplicates:   duplicates,
		Notice:       notice,
	}
	if c.cfg.TrackWeights {
		update.Weights = c.store.Weights()
	}
	c.host.Publish(update)
}

// hostRef normalizes a ref named by a host row action.
func (c *Controller) hostRef(action ir.Action, ref ir.EntityRef) (ir.EntityRef, error) {
	n, err := ref.Normalize()
	if err != nil {
		c.logger.Warn("row action with invalid ref", "action", action, "ref", ref.Key())
		return ir.EntityRef{}, err
	}
	return n, nil
}

func (c *Controller) invalidAction(action ir.Action, ref ir.EntityRef, reason string) error {
	c.logger.Warn("row action refused", "action", action, "ref", ref.Key(), "reason", reason)
	return ir.NewInvalidAction(action, ref, reason).WithBindingPoint(c.cfg.Name)
}

func (c *Controller) do(name string, fn func() error) error {
	deferred, err := c.mbox.run(job{name: name, fn: fn}, func(name string, err error) {
		c.logger.Warn("queued call failed", "call", name, "error", err)
	})
	if deferred {
		c.logger.Debug("call queued behind running call", "call", name)
	}
	return err
}

func duplicateNotice(dups []ir.EntityRef) string {
	switch len(dups) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("The selected %s has already been added.", dups[0].EntityType)
	default:
		return fmt.Sprintf("%d of the selected items have already been added.", len(dups))
	}
}

// storeTarget commits confirmed batches into the controller's store using the
// field's selection mode.
type storeTarget struct {
	c *Controller
}

func (t storeTarget) Len() int {
	return t.c.store.Len()
}

func (t storeTarget) Fresh(refs []ir.EntityRef) []ir.EntityRef {
	return t.c.store.Fresh(refs)
}

func (t storeTarget) Commit(refs []ir.EntityRef, replace bool) error {
	switch {
	case replace:
		t.c.store.ReplaceAll(refs)
	case t.c.cfg.SelectionMode == ir.SelectionPrepend:
		t.c.store.Prepend(refs)
	default:
		t.c.store.Append(refs)
	}
	return nil
}
