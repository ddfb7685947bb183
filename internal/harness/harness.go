package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/refbind/internal/bridge"
	"github.com/roach88/refbind/internal/compiler"
	"github.com/roach88/refbind/internal/controller"
	"github.com/roach88/refbind/internal/engine"
	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/store"
	"github.com/roach88/refbind/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario with a deterministic clock and session tokens
// session-1, session-2, ... so traces are identical across runs.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	ctrl    *controller.Controller
	surface *testutil.RecordingSurface
	host    *testutil.RecordingHost
	logger  *slog.Logger
	binding string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Resolve the field and browser configuration
// 2. Attach the binding point to an engine and seed it
// 3. Play every step through engine.Process, checking expect clauses
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	field, browser, err := resolveConfig(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		surface: &testutil.RecordingSurface{},
		host:    &testutil.RecordingHost{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		binding: field.Name,
	}
	h.engine = engine.New(h.surface, h.host,
		engine.WithJournal(st),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithTokens(bridge.NewSequenceGenerator("session")),
		engine.WithAccess(scenario.Access.checker()),
		engine.WithLogger(h.logger),
	)
	if err := h.engine.Attach(field, browser); err != nil {
		return nil, err
	}
	h.ctrl, _ = h.engine.Controller(field.Name)

	ctx := context.Background()
	result := NewResult()

	if err := h.play(ctx, -1, Step{Action: string(ir.EventInit), Seed: scenario.Seed}, result); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	for i, step := range scenario.Steps {
		if err := h.play(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	result.Value = h.ctrl.Value()
	result.State = h.ctrl.State().String()
	result.Items = h.ctrl.Items()
	result.Signals = len(h.surface.Opens())
	result.Rejections = h.surface.Rejections()
	result.Journal, err = st.ReadBinding(ctx, field.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// play sends one step through the engine and traces what it caused.
// index is -1 for the implicit seeding step.
func (h *Harness) play(ctx context.Context, index int, step Step, result *Result) error {
	ev, err := h.event(step)
	if err != nil {
		return err
	}

	before := h.counts()
	res := h.engine.Process(ctx, ev)

	in := TraceEvent{
		Seq:     res.Seq,
		Type:    TraceEventIn,
		Kind:    string(ev.Kind),
		Session: res.SessionToken,
		Outcome: string(res.Outcome),
		Value:   res.Value,
	}
	if ev.Ref != nil {
		in.Ref = ev.Ref.Key()
	}
	if res.Err != nil {
		if code := ir.CodeOf(res.Err); code != "" {
			in.Message = string(code)
		} else {
			in.Message = res.Err.Error()
		}
	}
	result.add(in)
	h.traceOutbound(res.Seq, before, result)

	if step.Expect != "" && step.Expect != string(res.Outcome) {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s (%v)",
			index, step.Action, step.Expect, res.Outcome, res.Err))
	}

	h.logger.Info("step completed",
		"step", index,
		"action", step.Action,
		"seq", res.Seq,
		"outcome", res.Outcome,
	)
	return nil
}

func (h *Harness) event(step Step) (engine.Event, error) {
	switch kind := ir.EventKind(step.Action); kind {
	case ir.EventInit:
		return engine.InitEvent(h.binding, step.Seed), nil

	case ir.EventOpen:
		return engine.OpenEvent(h.binding), nil

	case ir.EventConfirm:
		refs, err := ir.ParseRefs(step.Refs)
		if err != nil {
			return engine.Event{}, err
		}
		mode := ir.CommitMode(step.Mode)
		if mode == "" {
			mode = ir.CommitAppend
		}
		return engine.ConfirmEvent(ir.ConfirmMessage{
			SessionToken: h.token(step.Token),
			Mode:         mode,
			Refs:         refs,
		}), nil

	case ir.EventCancel:
		return engine.CancelEvent(ir.CancelMessage{SessionToken: h.token(step.Token)}), nil

	case ir.EventRemove, ir.EventReplace, ir.EventEdit:
		ref, err := ir.ParseRef(step.Ref)
		if err != nil {
			return engine.Event{}, err
		}
		return engine.RowActionEvent(ir.RowAction{
			BindingPoint: h.binding,
			Action:       ir.Action(kind),
			Ref:          ref,
		}), nil

	case ir.EventReorder:
		refs, err := ir.ParseRefs(step.Refs)
		if err != nil {
			return engine.Event{}, err
		}
		return engine.ReorderEvent(ir.ReorderCommit{BindingPoint: h.binding, OrderedRefs: refs}), nil

	default:
		return engine.Event{}, fmt.Errorf("unknown action %q", step.Action)
	}
}

// token resolves a step token. "current" (or empty) is the open session,
// falling back to the last issued token so that a late message is stale.
func (h *Harness) token(t string) string {
	if t != "" && t != TokenCurrent {
		return t
	}
	if token, open := h.ctrl.Session(); open {
		return token
	}
	if sig, ok := h.surface.LastOpen(); ok {
		return sig.SessionToken
	}
	return TokenCurrent
}

type outboundCounts struct {
	updates, expands, rejections, opens, edits int
}

func (h *Harness) counts() outboundCounts {
	return outboundCounts{
		updates:    len(h.host.Updates()),
		expands:    len(h.host.Expands()),
		rejections: len(h.surface.Rejections()),
		opens:      len(h.surface.Opens()),
		edits:      len(h.host.Edits()),
	}
}

// traceOutbound appends the outbound messages sent since before, grouped by
// type in a fixed order.
func (h *Harness) traceOutbound(seq int64, before outboundCounts, result *Result) {
	for _, u := range h.host.Updates()[before.updates:] {
		result.add(TraceEvent{Seq: seq, Type: TraceUpdate, Value: u.Value, Message: u.Notice})
	}
	for range h.host.Expands()[before.expands:] {
		result.add(TraceEvent{Seq: seq, Type: TraceExpand})
	}
	for _, r := range h.surface.Rejections()[before.rejections:] {
		result.add(TraceEvent{Seq: seq, Type: TraceReject, Session: r.SessionToken, Message: r.Message})
	}
	for _, sig := range h.surface.Opens()[before.opens:] {
		result.add(TraceEvent{
			Seq:           seq,
			Type:          TraceOpen,
			Session:       sig.SessionToken,
			Reopen:        sig.Reopen,
			InputKind:     string(sig.InputKind),
			MaxSelectable: sig.MaxSelectable,
		})
	}
	for _, e := range h.host.Edits()[before.edits:] {
		result.add(TraceEvent{Seq: seq, Type: TraceEditForm, Ref: e.Ref.Key()})
	}
}

// resolveConfig returns the field and browser a scenario runs against,
// with widget visibility applied and configuration conflicts rejected.
func resolveConfig(s *Scenario) (ir.FieldWidgetConfig, ir.BrowserConfig, error) {
	var field ir.FieldWidgetConfig
	var browser ir.BrowserConfig

	if s.Specs != "" {
		bundle, err := compiler.LoadDir(s.Specs)
		if err != nil {
			return field, browser, fmt.Errorf("failed to load specs: %w", err)
		}
		var ok bool
		if field, ok = bundle.Field(s.FieldName); !ok {
			return field, browser, fmt.Errorf("field %q not found in %s", s.FieldName, s.Specs)
		}
		if browser, ok = bundle.Browsers[field.Browser]; !ok {
			return field, browser, fmt.Errorf("browser %q not found in %s", field.Browser, s.Specs)
		}
	} else {
		if s.Field == nil || s.Browser == nil {
			return field, browser, fmt.Errorf("scenario %s: field and browser are required without specs", s.Name)
		}
		field = s.Field.WithDefaults()
		browser = *s.Browser
	}

	if errs := compiler.ValidateBinding(field, map[string]ir.BrowserConfig{browser.ID: browser}); len(errs) > 0 {
		return field, browser, errs[0]
	}

	hidden := make(map[string]bool, len(s.Access.HiddenWidgets))
	for _, id := range s.Access.HiddenWidgets {
		hidden[id] = true
	}
	widgets := make([]ir.WidgetDescriptor, len(browser.Widgets))
	for i, w := range browser.Widgets {
		w.Visible = !hidden[w.ID]
		widgets[i] = w
	}
	browser.Widgets = widgets

	return field, browser, nil
}

// checker builds the simulated access check.
func (a Access) checker() ir.AccessChecker {
	deny := make(map[string]bool, len(a.DenyEdit))
	for _, key := range a.DenyEdit {
		deny[key] = true
	}
	return func(ref ir.EntityRef, action ir.Action) bool {
		return action != ir.ActionEdit || !deny[ref.Key()]
	}
}
