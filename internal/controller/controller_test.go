package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refbind/internal/bridge"
	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/testutil"
)

func filesBrowser() ir.BrowserConfig {
	return ir.BrowserConfig{
		ID:               "files",
		Label:            "Files",
		Display:          ir.DisplayModal,
		SelectionDisplay: ir.SelectionDisplayMultiStep,
		WidgetSelector:   ir.WidgetSelectorTabs,
		Widgets: []ir.WidgetDescriptor{
			{ID: "upload", Weight: 1, Visible: true},
			{ID: "view", Weight: 2, Visible: true},
		},
	}
}

type fixture struct {
	c       *Controller
	surface *testutil.RecordingSurface
	host    *testutil.RecordingHost
}

func newFixture(t *testing.T, cfg ir.FieldWidgetConfig, opts ...Option) *fixture {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "field_related"
	}
	f := &fixture{surface: &testutil.RecordingSurface{}, host: &testutil.RecordingHost{}}
	opts = append([]Option{WithTokens(bridge.NewSequenceGenerator("session"))}, opts...)
	f.c = New(cfg, filesBrowser(), f.surface, f.host, opts...)
	return f
}

func ref(token string) ir.EntityRef {
	return ir.MustParseRef(token)
}

func confirm(token string, refs ...string) ir.ConfirmMessage {
	msg := ir.ConfirmMessage{SessionToken: token, Mode: ir.CommitAppend}
	for _, r := range refs {
		msg.Refs = append(msg.Refs, ref(r))
	}
	return msg
}

func (f *fixture) openAndConfirm(t *testing.T, refs ...string) error {
	t.Helper()
	require.NoError(t, f.c.Open())
	token, ok := f.c.Session()
	require.True(t, ok)
	return f.c.Confirm(confirm(token, refs...))
}

func TestController_CardinalityLimit(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Cardinality: 2})
	require.NoError(t, f.c.Init(""))

	require.NoError(t, f.openAndConfirm(t, "node:A"))
	require.NoError(t, f.openAndConfirm(t, "node:B"))
	assert.Equal(t, "node:A node:B", f.c.Value())

	err := f.openAndConfirm(t, "node:C")
	require.Error(t, err)
	assert.True(t, ir.IsTooManySelected(err))
	assert.Equal(t, "node:A node:B", f.c.Value())
	assert.Equal(t, bridge.StateOpen, f.c.State(), "surface stays open after rejection")

	rejections := f.surface.Rejections()
	require.Len(t, rejections, 1)
	assert.Equal(t, "session-3", rejections[0].SessionToken)
	assert.Equal(t, "You can only select up to 2 items", rejections[0].Message)
}

func TestController_OpenSignal(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Cardinality: 3})
	require.NoError(t, f.c.Init("node:1"))
	require.NoError(t, f.c.Open())

	sig, ok := f.surface.LastOpen()
	require.True(t, ok)
	assert.Equal(t, "field_related", sig.BindingPoint)
	assert.Equal(t, "session-1", sig.SessionToken)
	assert.False(t, sig.Reopen)
	assert.Equal(t, "files", sig.Browser)
	assert.Equal(t, ir.InputCheckbox, sig.InputKind)
	assert.Equal(t, 2, sig.MaxSelectable)
	assert.Empty(t, sig.Preselected)
	assert.Equal(t, "upload", sig.Widgets.Active)
	assert.True(t, sig.Widgets.ShowSelector)
}

func TestController_ReplaceThenCancel(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Replace: true})
	require.NoError(t, f.c.Init("node:A"))

	require.NoError(t, f.c.Replace(ref("node:A")))
	assert.Equal(t, "", f.c.Value(), "store is pending clear")
	assert.True(t, f.c.ReplacePending())

	sig, ok := f.surface.LastOpen()
	require.True(t, ok)
	assert.True(t, sig.Reopen)

	require.NoError(t, f.c.Cancel(ir.CancelMessage{SessionToken: sig.SessionToken}))
	assert.Equal(t, "node:A", f.c.Value())
	assert.False(t, f.c.ReplacePending())
	assert.Equal(t, bridge.StateIdle, f.c.State())
}

func TestController_ReplaceThenConfirm(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Replace: true})
	require.NoError(t, f.c.Init("node:A"))

	require.NoError(t, f.c.Replace(ref("node:A")))
	sig, _ := f.surface.LastOpen()

	require.NoError(t, f.c.Confirm(confirm(sig.SessionToken, "node:B")))
	assert.Equal(t, "node:B", f.c.Value())
	assert.False(t, f.c.ReplacePending())

	// A late cancel for the committed session is ignored.
	require.NoError(t, f.c.Cancel(ir.CancelMessage{SessionToken: sig.SessionToken}))
	assert.Equal(t, "node:B", f.c.Value())
}

func TestController_ReplaceRequiresSingleItem(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Replace: true})
	require.NoError(t, f.c.Init("node:A node:B"))

	err := f.c.Replace(ref("node:A"))
	require.Error(t, err)
	assert.True(t, ir.IsInvalidAction(err))
	assert.Equal(t, "node:A node:B", f.c.Value())
	assert.Empty(t, f.surface.Opens())

	disabled := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, disabled.c.Init("node:A"))
	assert.True(t, ir.IsInvalidAction(disabled.c.Replace(ref("node:A"))))
}

func TestController_StaleSessionDiscarded(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, f.c.Init(""))

	require.NoError(t, f.c.Open()) // session-1
	require.NoError(t, f.c.Open()) // session-2

	err := f.c.Confirm(confirm("session-1", "node:A"))
	require.Error(t, err)
	assert.True(t, ir.IsUnknownSession(err))
	assert.Equal(t, "", f.c.Value())

	require.NoError(t, f.c.Confirm(confirm("session-2", "node:B")))
	assert.Equal(t, "node:B", f.c.Value())
}

func TestController_StaleConfirmAfterCancel(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, f.c.Init(""))
	require.NoError(t, f.c.Open())

	require.NoError(t, f.c.Cancel(ir.CancelMessage{SessionToken: "session-1"}))
	err := f.c.Confirm(confirm("session-1", "node:A"))
	assert.True(t, ir.IsUnknownSession(err))
	assert.Equal(t, "", f.c.Value())
}

func TestController_ButtonVisibility(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Remove: true, Replace: true, Edit: true})
	require.NoError(t, f.c.Init("node:1"))

	items := f.c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, ir.Capabilities{CanRemove: true, CanEdit: true, CanReplace: true}, items[0].Capabilities)

	require.NoError(t, f.openAndConfirm(t, "node:2"))

	items = f.c.Items()
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, ir.Capabilities{CanRemove: true, CanEdit: true, CanReplace: false}, item.Capabilities, item.Ref.Key())
	}

	// Host updates carry the recomputed capabilities too.
	update, ok := f.host.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, items, update.Items)
}

func TestController_EditCapabilityUsesAccessCheck(t *testing.T) {
	deny := func(r ir.EntityRef, action ir.Action) bool {
		return !(action == ir.ActionEdit && r.EntityID == "2")
	}
	f := newFixture(t, ir.FieldWidgetConfig{Edit: true}, WithAccess(deny))
	require.NoError(t, f.c.Init("node:1 node:2"))

	items := f.c.Items()
	assert.True(t, items[0].Capabilities.CanEdit)
	assert.False(t, items[1].Capabilities.CanEdit)

	require.NoError(t, f.c.Edit(ref("node:1")))
	err := f.c.Edit(ref("node:2"))
	assert.True(t, ir.IsInvalidAction(err))

	edits := f.host.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, ref("node:1"), edits[0].Ref)
}

func TestController_EndToEndReplaceOnSingle(t *testing.T) {
	cfg := ir.FieldWidgetConfig{
		Cardinality:     1,
		CardinalityMode: ir.CardinalityReplaceOnSingle,
		Replace:         true,
	}

	setup := func(t *testing.T) *fixture {
		f := newFixture(t, cfg)
		require.NoError(t, f.c.Init(""))
		require.NoError(t, f.c.Open())
		sig, _ := f.surface.LastOpen()
		assert.Equal(t, ir.InputRadio, sig.InputKind)
		assert.Equal(t, 1, sig.MaxSelectable)

		require.NoError(t, f.c.Confirm(confirm(sig.SessionToken, "node:A")))
		require.Equal(t, "node:A", f.c.Value())

		require.NoError(t, f.c.Replace(ref("node:A")))
		require.Equal(t, "", f.c.Value())
		sig, _ = f.surface.LastOpen()
		require.True(t, sig.Reopen)
		return f
	}

	t.Run("confirm", func(t *testing.T) {
		f := setup(t)
		sig, _ := f.surface.LastOpen()
		require.NoError(t, f.c.Confirm(confirm(sig.SessionToken, "node:B")))
		assert.Equal(t, "node:B", f.c.Value())
	})

	t.Run("cancel", func(t *testing.T) {
		f := setup(t)
		sig, _ := f.surface.LastOpen()
		require.NoError(t, f.c.Cancel(ir.CancelMessage{SessionToken: sig.SessionToken}))
		assert.Equal(t, "node:A", f.c.Value())
	})

	t.Run("radio confirm replaces without replace flow", func(t *testing.T) {
		f := newFixture(t, cfg)
		require.NoError(t, f.c.Init("node:A"))
		require.NoError(t, f.openAndConfirm(t, "node:C"))
		assert.Equal(t, "node:C", f.c.Value())

		err := f.openAndConfirm(t, "node:D", "node:E")
		assert.True(t, ir.IsTooManySelected(err))
		assert.Equal(t, "node:C", f.c.Value())
	})
}

func TestController_AutoOpen(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{AutoOpen: true, Collapsed: true})
	require.NoError(t, f.c.Init(""))

	require.Len(t, f.host.Expands(), 1)
	assert.Equal(t, "field_related", f.host.Expands()[0].BindingPoint)
	require.Len(t, f.surface.Opens(), 1)
	assert.Equal(t, bridge.StateOpen, f.c.State())

	seeded := newFixture(t, ir.FieldWidgetConfig{AutoOpen: true})
	require.NoError(t, seeded.c.Init("node:1"))
	assert.Empty(t, seeded.surface.Opens(), "auto-open only fires on an empty store")
	assert.Empty(t, seeded.host.Expands())
}

func TestController_InitRejectsOversizedSeed(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Cardinality: 1})
	err := f.c.Init("node:1 node:2")
	require.Error(t, err)
	assert.True(t, ir.IsTooManySelected(err))
	assert.Equal(t, "", f.c.Value())

	assert.Error(t, f.c.Init("node:1 bogus"))
}

func TestController_NoAvailableWidget(t *testing.T) {
	surface := &testutil.RecordingSurface{}
	host := &testutil.RecordingHost{}
	b := filesBrowser()
	for i := range b.Widgets {
		b.Widgets[i].Visible = false
	}
	c := New(ir.FieldWidgetConfig{Name: "field_related", Replace: true}, b, surface, host)
	require.NoError(t, c.Init("node:1"))

	err := c.Open()
	require.Error(t, err)
	assert.True(t, ir.IsNoAvailableWidget(err))
	assert.Empty(t, surface.Opens())
	assert.Equal(t, bridge.StateIdle, c.State())

	update, ok := host.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, NoticeNothingToSelect, update.Notice)

	// A replace that cannot reopen the surface rolls back.
	err = c.Replace(ref("node:1"))
	assert.True(t, ir.IsNoAvailableWidget(err))
	assert.Equal(t, "node:1", c.Value())
	assert.False(t, c.ReplacePending())
}

func TestController_Remove(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Remove: true, TrackWeights: true})
	require.NoError(t, f.c.Init("node:1 node:2 node:3"))

	require.NoError(t, f.c.Remove(ref("node:2")))
	assert.Equal(t, "node:1 node:3", f.c.Value())

	update, ok := f.host.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, "node:1 node:3", update.Value)
	assert.Equal(t, []ir.RowWeight{{Ref: ref("node:1"), Weight: 0}, {Ref: ref("node:3"), Weight: 2}}, update.Weights)

	before := len(f.host.Updates())
	require.NoError(t, f.c.Remove(ref("node:2")), "removing an absent ref is a no-op")
	assert.Len(t, f.host.Updates(), before)

	disabled := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, disabled.c.Init("node:1"))
	assert.True(t, ir.IsInvalidAction(disabled.c.Remove(ref("node:1"))))
	assert.Equal(t, "node:1", disabled.c.Value())
}

func TestController_Reorder(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{TrackWeights: true})
	require.NoError(t, f.c.Init("node:1 node:2 node:3"))

	require.NoError(t, f.c.Reorder([]ir.EntityRef{ref("node:3"), ref("node:1"), ref("node:2")}))
	assert.Equal(t, "node:3 node:1 node:2", f.c.Value())

	update, _ := f.host.LastUpdate()
	assert.Equal(t, []ir.RowWeight{
		{Ref: ref("node:3"), Weight: 0},
		{Ref: ref("node:1"), Weight: 1},
		{Ref: ref("node:2"), Weight: 2},
	}, update.Weights)

	err := f.c.Reorder([]ir.EntityRef{ref("node:3"), ref("node:1")})
	require.Error(t, err)
	assert.True(t, ir.IsInvalidReorder(err))
	assert.Equal(t, "node:3 node:1 node:2", f.c.Value())
}

func TestController_PrependMode(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{SelectionMode: ir.SelectionPrepend})
	require.NoError(t, f.c.Init("node:1"))

	require.NoError(t, f.openAndConfirm(t, "node:2", "node:3"))
	assert.Equal(t, "node:2 node:3 node:1", f.c.Value())
}

func TestController_EditSelectionMode(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Cardinality: 3, SelectionMode: ir.SelectionEdit})
	require.NoError(t, f.c.Init("node:1 node:2"))
	require.NoError(t, f.c.Open())

	sig, _ := f.surface.LastOpen()
	assert.Equal(t, []ir.EntityRef{ref("node:1"), ref("node:2")}, sig.Preselected)
	assert.Equal(t, 3, sig.MaxSelectable)

	require.NoError(t, f.c.Confirm(confirm(sig.SessionToken, "node:2", "node:4", "node:5")))
	assert.Equal(t, "node:2 node:4 node:5", f.c.Value())
}

func TestController_DuplicatesReported(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, f.c.Init("node:1"))

	require.NoError(t, f.openAndConfirm(t, "node:1", "node:2"))
	assert.Equal(t, "node:1 node:2", f.c.Value())

	update, _ := f.host.LastUpdate()
	assert.Equal(t, []ir.EntityRef{ref("node:1")}, update.Duplicates)
	assert.Equal(t, "The selected node has already been added.", update.Notice)
}

// reentrantHost issues a reorder from inside the first two-item publish.
type reentrantHost struct {
	testutil.RecordingHost
	c          *Controller
	fired      bool
	reorderErr error
	valueSeen  string
}

func (h *reentrantHost) Publish(u ir.HostUpdate) {
	h.RecordingHost.Publish(u)
	if h.fired || len(u.Items) != 2 {
		return
	}
	h.fired = true
	h.reorderErr = h.c.Reorder([]ir.EntityRef{ref("node:2"), ref("node:1")})
	h.valueSeen = h.c.Value()
}

func TestController_ReentrantCallsAreQueued(t *testing.T) {
	host := &reentrantHost{}
	surface := &testutil.RecordingSurface{}
	c := New(ir.FieldWidgetConfig{Name: "field_related"}, filesBrowser(), surface, host,
		WithTokens(bridge.NewSequenceGenerator("session")))
	host.c = c

	require.NoError(t, c.Init("node:1"))
	require.NoError(t, c.Open())
	require.NoError(t, c.Confirm(confirm("session-1", "node:2")))

	assert.True(t, host.fired)
	assert.NoError(t, host.reorderErr)
	assert.Equal(t, "node:1 node:2", host.valueSeen, "reorder must not run inside the confirm")
	assert.Equal(t, "node:2 node:1", c.Value(), "queued reorder runs after the confirm")
}

func TestController_CloseAbandonsSession(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, f.c.Init(""))
	require.NoError(t, f.c.Open())

	f.c.Close()
	assert.Equal(t, bridge.StateIdle, f.c.State())
	assert.True(t, ir.IsUnknownSession(f.c.Confirm(confirm("session-1", "node:1"))))
}

func TestController_DecomposedRefsKeepOneIdentity(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Remove: true})
	require.NoError(t, f.c.Init(""))

	decomposed := ir.EntityRef{EntityType: "term", EntityID: "cafe\u0301"}
	other := ir.EntityRef{EntityType: "term", EntityID: "tea"}

	require.NoError(t, f.c.Open())
	token, _ := f.c.Session()
	require.NoError(t, f.c.Confirm(ir.ConfirmMessage{SessionToken: token, Refs: []ir.EntityRef{decomposed, other}}))
	assert.Equal(t, "term:caf\u00e9 term:tea", f.c.Value())

	require.NoError(t, f.c.Reorder([]ir.EntityRef{other, decomposed}))
	assert.Equal(t, "term:tea term:caf\u00e9", f.c.Value())

	require.NoError(t, f.c.Remove(decomposed))
	assert.Equal(t, "term:tea", f.c.Value())
}

func TestController_MalformedConfirmKeepsValueParseable(t *testing.T) {
	for name, bad := range map[string]ir.EntityRef{
		"zero ref":        {},
		"space in id":     {EntityType: "node", EntityID: "1 node:2"},
		"tab in type":     {EntityType: "no\tde", EntityID: "1"},
		"empty entity id": {EntityType: "node"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, ir.FieldWidgetConfig{Cardinality: 2})
			require.NoError(t, f.c.Init("node:1"))
			require.NoError(t, f.c.Open())
			token, _ := f.c.Session()

			err := f.c.Confirm(ir.ConfirmMessage{SessionToken: token, Refs: []ir.EntityRef{bad}})
			require.Error(t, err)
			assert.True(t, ir.IsInvalidRef(err))
			assert.Equal(t, "node:1", f.c.Value())
			assert.Equal(t, bridge.StateOpen, f.c.State())
			assert.Empty(t, f.surface.Rejections(), "integration errors are not shown to the user")

			refs, err := ir.ParseValue(f.c.Value())
			require.NoError(t, err)
			assert.Len(t, refs, 1)
		})
	}
}

func TestController_UnknownCommitModeChangesNothing(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{})
	require.NoError(t, f.c.Init("node:1"))
	require.NoError(t, f.c.Open())
	token, _ := f.c.Session()

	msg := confirm(token, "node:2")
	msg.Mode = "replce"
	err := f.c.Confirm(msg)
	require.Error(t, err)
	assert.Equal(t, ir.ErrCodeInvalidCommitMode, ir.CodeOf(err))
	assert.Equal(t, "node:1", f.c.Value())
	assert.Equal(t, bridge.StateOpen, f.c.State())
}

func TestController_RowActionRejectsMalformedRef(t *testing.T) {
	f := newFixture(t, ir.FieldWidgetConfig{Remove: true, Edit: true, Replace: true})
	require.NoError(t, f.c.Init("node:1"))

	bad := ir.EntityRef{EntityType: "node", EntityID: "1 2"}
	for name, call := range map[string]func(ir.EntityRef) error{
		"remove":  f.c.Remove,
		"edit":    f.c.Edit,
		"replace": f.c.Replace,
	} {
		err := call(bad)
		require.Error(t, err, name)
		assert.True(t, ir.IsInvalidRef(err), name)
	}
	assert.Equal(t, "node:1", f.c.Value())
	assert.False(t, f.c.ReplacePending())

	err := f.c.Reorder([]ir.EntityRef{bad})
	assert.True(t, ir.IsInvalidRef(err))
	assert.Equal(t, "node:1", f.c.Value())
}
