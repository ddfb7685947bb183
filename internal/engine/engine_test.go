package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/refbind/internal/bridge"
	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/store"
	"github.com/roach88/refbind/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// The journal's database/sql pool keeps an opener goroutine until Cleanup
// closes the store, which runs after deferred checks.
var ignoreSQLOpener = goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener")

func testBrowser() ir.BrowserConfig {
	return ir.BrowserConfig{
		ID:               "media",
		Label:            "Media",
		SelectionDisplay: ir.SelectionDisplayMultiStep,
		WidgetSelector:   ir.WidgetSelectorSingle,
		Widgets:          []ir.WidgetDescriptor{{ID: "view", Weight: 0, Visible: true}},
	}
}

type harness struct {
	engine  *Engine
	surface *testutil.RecordingSurface
	host    *testutil.RecordingHost
	journal *store.Store
}

func newHarness(t *testing.T, fields ...ir.FieldWidgetConfig) *harness {
	t.Helper()
	h := &harness{
		surface: &testutil.RecordingSurface{},
		host:    &testutil.RecordingHost{},
		journal: setupTestStore(t),
	}
	h.engine = New(h.surface, h.host,
		WithJournal(h.journal),
		WithClock(testutil.NewDeterministicClock()),
		WithTokens(bridge.NewSequenceGenerator("session")),
	)
	for _, f := range fields {
		require.NoError(t, h.engine.Attach(f, testBrowser()))
	}
	return h
}

func (h *harness) process(t *testing.T, ev Event) Result {
	t.Helper()
	return h.engine.Process(context.Background(), ev)
}

func confirmEv(token string, refs ...string) Event {
	msg := ir.ConfirmMessage{SessionToken: token, Mode: ir.CommitAppend}
	for _, r := range refs {
		msg.Refs = append(msg.Refs, ir.MustParseRef(r))
	}
	return ConfirmEvent(msg)
}

func TestEngine_AttachDuplicate(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a"})

	assert.Error(t, h.engine.Attach(ir.FieldWidgetConfig{Name: "field_a"}, testBrowser()))
	assert.Error(t, h.engine.Attach(ir.FieldWidgetConfig{}, testBrowser()))
	assert.Equal(t, []string{"field_a"}, h.engine.BindingPoints())
}

func TestEngine_RoutesConfirmByToken(t *testing.T) {
	h := newHarness(t,
		ir.FieldWidgetConfig{Name: "field_a"},
		ir.FieldWidgetConfig{Name: "field_b"},
	)

	require.Equal(t, ir.OutcomeInitialized, h.process(t, InitEvent("field_a", "")).Outcome)
	require.Equal(t, ir.OutcomeInitialized, h.process(t, InitEvent("field_b", "node:9")).Outcome)

	resA := h.process(t, OpenEvent("field_a"))
	resB := h.process(t, OpenEvent("field_b"))
	assert.Equal(t, "session-1", resA.SessionToken)
	assert.Equal(t, "session-2", resB.SessionToken)

	res := h.process(t, confirmEv("session-2", "node:1"))
	assert.Equal(t, ir.OutcomeCommitted, res.Outcome)
	assert.Equal(t, "field_b", res.BindingPoint)
	assert.Equal(t, "node:9 node:1", res.Value)

	a, _ := h.engine.Controller("field_a")
	assert.Equal(t, "", a.Value(), "binding points are isolated")
	assert.Equal(t, bridge.StateOpen, a.State())
}

func TestEngine_StaleTokenRoutesNowhere(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a"})
	h.process(t, InitEvent("field_a", ""))

	h.process(t, OpenEvent("field_a")) // session-1
	h.process(t, OpenEvent("field_a")) // session-2 supersedes

	res := h.process(t, confirmEv("session-1", "node:1"))
	assert.Equal(t, ir.OutcomeDiscarded, res.Outcome)
	assert.True(t, ir.IsUnknownSession(res.Err))
	assert.Equal(t, "field_a", res.BindingPoint)

	res = h.process(t, confirmEv("session-2", "node:2"))
	assert.Equal(t, ir.OutcomeCommitted, res.Outcome)
	assert.Equal(t, "node:2", res.Value)

	// The committed session is closed now.
	res = h.process(t, confirmEv("session-2", "node:3"))
	assert.Equal(t, ir.OutcomeDiscarded, res.Outcome)
	res = h.process(t, CancelEvent(ir.CancelMessage{SessionToken: "session-2"}))
	assert.Equal(t, ir.OutcomeIgnored, res.Outcome)
	assert.NoError(t, res.Err)

	c, _ := h.engine.Controller("field_a")
	assert.Equal(t, "node:2", c.Value())
}

func TestEngine_UnknownTokenAndBinding(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a"})

	res := h.process(t, confirmEv("nope", "node:1"))
	assert.Equal(t, ir.OutcomeDiscarded, res.Outcome)
	assert.Equal(t, "", res.BindingPoint)

	res = h.process(t, OpenEvent("field_missing"))
	assert.Equal(t, ir.OutcomeError, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrUnknownBinding))

	res = h.process(t, Event{Kind: "bogus", BindingPoint: "field_a"})
	assert.Equal(t, ir.OutcomeError, res.Outcome)
}

func TestEngine_RejectionKeepsRoute(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a", Cardinality: 1})
	h.process(t, InitEvent("field_a", ""))
	h.process(t, OpenEvent("field_a"))

	res := h.process(t, confirmEv("session-1", "node:1", "node:2"))
	assert.Equal(t, ir.OutcomeRejected, res.Outcome)
	require.Len(t, h.surface.Rejections(), 1)

	res = h.process(t, confirmEv("session-1", "node:1"))
	assert.Equal(t, ir.OutcomeCommitted, res.Outcome)
	assert.Equal(t, "node:1", res.Value)
}

func TestEngine_ReplaceFlow(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{
		Name:            "field_a",
		Cardinality:     1,
		CardinalityMode: ir.CardinalityReplaceOnSingle,
		Replace:         true,
	})
	h.process(t, InitEvent("field_a", "node:A"))

	ref := ir.MustParseRef("node:A")
	res := h.process(t, RowActionEvent(ir.RowAction{BindingPoint: "field_a", Action: ir.ActionReplace, Ref: ref}))
	assert.Equal(t, ir.OutcomeReplacing, res.Outcome)
	assert.Equal(t, "session-1", res.SessionToken)
	assert.Equal(t, "", res.Value)

	sig, ok := h.surface.LastOpen()
	require.True(t, ok)
	assert.True(t, sig.Reopen)

	res = h.process(t, CancelEvent(ir.CancelMessage{SessionToken: "session-1"}))
	assert.Equal(t, ir.OutcomeCancelled, res.Outcome)
	assert.Equal(t, "node:A", res.Value)
}

func TestEngine_RowActionsAndReorder(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a", Remove: true, Edit: true})
	h.process(t, InitEvent("field_a", "node:1 node:2 node:3"))

	res := h.process(t, ReorderEvent(ir.ReorderCommit{
		BindingPoint: "field_a",
		OrderedRefs:  []ir.EntityRef{ir.MustParseRef("node:3"), ir.MustParseRef("node:2"), ir.MustParseRef("node:1")},
	}))
	assert.Equal(t, ir.OutcomeReordered, res.Outcome)
	assert.Equal(t, "node:3 node:2 node:1", res.Value)

	res = h.process(t, RowActionEvent(ir.RowAction{BindingPoint: "field_a", Action: ir.ActionRemove, Ref: ir.MustParseRef("node:2")}))
	assert.Equal(t, ir.OutcomeRemoved, res.Outcome)
	assert.Equal(t, "node:3 node:1", res.Value)

	res = h.process(t, RowActionEvent(ir.RowAction{BindingPoint: "field_a", Action: ir.ActionEdit, Ref: ir.MustParseRef("node:1")}))
	assert.Equal(t, ir.OutcomeEditing, res.Outcome)
	assert.Len(t, h.host.Edits(), 1)

	res = h.process(t, ReorderEvent(ir.ReorderCommit{BindingPoint: "field_a", OrderedRefs: []ir.EntityRef{ir.MustParseRef("node:1")}}))
	assert.Equal(t, ir.OutcomeError, res.Outcome)
	assert.True(t, ir.IsInvalidReorder(res.Err))
	assert.Equal(t, "node:3 node:1", res.Value)
}

func TestEngine_Journal(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a", Cardinality: 2})
	ctx := context.Background()

	h.process(t, InitEvent("field_a", "node:1"))
	h.process(t, OpenEvent("field_a"))
	h.process(t, confirmEv("session-1", "node:2", "node:3"))
	h.process(t, confirmEv("session-1", "node:2"))
	h.process(t, confirmEv("session-1", "node:4"))

	entries, err := h.journal.ReadBinding(ctx, "field_a")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var outcomes []ir.Outcome
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		outcomes = append(outcomes, e.Outcome)
	}
	assert.Equal(t, []ir.Outcome{
		ir.OutcomeInitialized,
		ir.OutcomeOpened,
		ir.OutcomeRejected,
		ir.OutcomeCommitted,
		ir.OutcomeDiscarded,
	}, outcomes)
	assert.Contains(t, entries[2].Detail, "TOO_MANY_SELECTED")

	value, ok, err := h.journal.LatestValue(ctx, "field_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "node:1 node:2", value)

	session, err := h.journal.ReadSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, session, 4)
}

func TestEngine_Detach(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a"})
	h.process(t, InitEvent("field_a", ""))
	h.process(t, OpenEvent("field_a"))

	h.engine.Detach("field_a")
	assert.Empty(t, h.engine.BindingPoints())

	res := h.process(t, confirmEv("session-1", "node:1"))
	assert.Equal(t, ir.OutcomeDiscarded, res.Outcome)
	assert.Equal(t, "field_a", res.BindingPoint)
}

func TestEngine_RetiredTokensAreBounded(t *testing.T) {
	e := New(&testutil.RecordingSurface{}, &testutil.RecordingHost{},
		WithTokens(bridge.NewSequenceGenerator("session")),
		WithRetiredLimit(2),
	)
	require.NoError(t, e.Attach(ir.FieldWidgetConfig{Name: "field_a"}, testBrowser()))
	ctx := context.Background()
	e.Process(ctx, InitEvent("field_a", ""))
	for i := 0; i < 4; i++ {
		e.Process(ctx, OpenEvent("field_a")) // session-1 .. session-4
	}

	res := e.Process(ctx, confirmEv("session-1", "node:1"))
	assert.Equal(t, ir.OutcomeDiscarded, res.Outcome)
	assert.Equal(t, "", res.BindingPoint, "oldest token forgotten")

	res = e.Process(ctx, confirmEv("session-2", "node:1"))
	assert.Equal(t, ir.OutcomeDiscarded, res.Outcome)
	assert.Equal(t, "field_a", res.BindingPoint)

	e.mu.Lock()
	assert.Len(t, e.retired, 2)
	assert.Equal(t, []string{"session-2", "session-3"}, e.retiredOrder["field_a"])
	e.mu.Unlock()

	res = e.Process(ctx, confirmEv("session-4", "node:1"))
	assert.Equal(t, ir.OutcomeCommitted, res.Outcome)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Len(t, e.retired, 2)
	assert.Equal(t, []string{"session-3", "session-4"}, e.retiredOrder["field_a"])
}

func TestEvent_Validate(t *testing.T) {
	zero := ir.EntityRef{}
	spaced := ir.EntityRef{EntityType: "node", EntityID: "a b"}
	good := ir.MustParseRef("node:1")

	tests := []struct {
		name    string
		ev      Event
		wantErr bool
		invalid bool // error is an InvalidRef
	}{
		{"confirm", confirmEv("s", "node:1"), false, false},
		{"confirm empty mode", ConfirmEvent(ir.ConfirmMessage{SessionToken: "s", Refs: []ir.EntityRef{good}}), false, false},
		{"confirm unknown mode", ConfirmEvent(ir.ConfirmMessage{SessionToken: "s", Mode: "replce", Refs: []ir.EntityRef{good}}), true, false},
		{"confirm zero ref", ConfirmEvent(ir.ConfirmMessage{SessionToken: "s", Refs: []ir.EntityRef{good, zero}}), true, true},
		{"confirm whitespace id", ConfirmEvent(ir.ConfirmMessage{SessionToken: "s", Refs: []ir.EntityRef{spaced}}), true, true},
		{"confirm no token", confirmEv("", "node:1"), true, false},
		{"remove", RowActionEvent(ir.RowAction{Action: ir.ActionRemove, BindingPoint: "f", Ref: good}), false, false},
		{"remove zero ref", RowActionEvent(ir.RowAction{Action: ir.ActionRemove, BindingPoint: "f"}), true, true},
		{"remove no ref", Event{Kind: ir.EventRemove, BindingPoint: "f"}, true, false},
		{"reorder bad ref", ReorderEvent(ir.ReorderCommit{BindingPoint: "f", OrderedRefs: []ir.EntityRef{good, spaced}}), true, true},
		{"open no binding", OpenEvent(""), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.invalid, ir.IsInvalidRef(err))
		})
	}
}

func TestEngine_MalformedConfirmChangesNothing(t *testing.T) {
	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a"})
	h.process(t, InitEvent("field_a", "node:1"))
	h.process(t, OpenEvent("field_a"))
	published := len(h.host.Updates())

	for _, ev := range []Event{
		ConfirmEvent(ir.ConfirmMessage{SessionToken: "session-1", Mode: "replce", Refs: []ir.EntityRef{ir.MustParseRef("node:2")}}),
		ConfirmEvent(ir.ConfirmMessage{SessionToken: "session-1", Refs: []ir.EntityRef{{}}}),
		ConfirmEvent(ir.ConfirmMessage{SessionToken: "session-1", Refs: []ir.EntityRef{{EntityType: "node", EntityID: "2 3"}}}),
	} {
		res := h.process(t, ev)
		assert.Equal(t, ir.OutcomeError, res.Outcome)
		assert.Error(t, res.Err)
	}

	c, _ := h.engine.Controller("field_a")
	assert.Equal(t, "node:1", c.Value())
	token, open := c.Session()
	assert.True(t, open)
	assert.Equal(t, "session-1", token)
	assert.Len(t, h.host.Updates(), published)

	res := h.process(t, confirmEv("session-1", "node:2"))
	assert.Equal(t, ir.OutcomeCommitted, res.Outcome)
	assert.Equal(t, "node:1 node:2", res.Value)
}

func TestEngine_RunProcessesUntilStop(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	h := newHarness(t, ir.FieldWidgetConfig{Name: "field_a"})

	done := make(chan error, 1)
	go func() {
		done <- h.engine.Run(context.Background())
	}()

	require.True(t, h.engine.Enqueue(InitEvent("field_a", "")))
	require.True(t, h.engine.Enqueue(OpenEvent("field_a")))
	require.True(t, h.engine.Enqueue(confirmEv("session-1", "media:7")))
	h.engine.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.False(t, h.engine.Enqueue(OpenEvent("field_a")), "stopped engine refuses events")

	c, _ := h.engine.Controller("field_a")
	assert.Equal(t, "media:7", c.Value(), "queued events drain before Run returns")
}

func TestEngine_RunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- h.engine.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
