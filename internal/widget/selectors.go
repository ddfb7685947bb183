package widget

import "github.com/roach88/refbind/internal/ir"

// SingleSelector shows only the first picker and never a selector UI.
type SingleSelector struct{}

func (SingleSelector) Kind() ir.WidgetSelectorKind { return ir.WidgetSelectorSingle }

func (SingleSelector) Present(visible []ir.WidgetDescriptor) ir.WidgetPresentation {
	return present(ir.WidgetSelectorSingle, visible)
}

// TabsSelector offers every picker as a tab; the first one is active.
type TabsSelector struct{}

func (TabsSelector) Kind() ir.WidgetSelectorKind { return ir.WidgetSelectorTabs }

func (TabsSelector) Present(visible []ir.WidgetDescriptor) ir.WidgetPresentation {
	return present(ir.WidgetSelectorTabs, visible)
}

// DropdownSelector offers every picker in a dropdown; the first one is active.
type DropdownSelector struct{}

func (DropdownSelector) Kind() ir.WidgetSelectorKind { return ir.WidgetSelectorDropdown }

func (DropdownSelector) Present(visible []ir.WidgetDescriptor) ir.WidgetPresentation {
	return present(ir.WidgetSelectorDropdown, visible)
}

// present activates the first picker. Kinds that show a selector list every
// picker; the others offer only the active one.
func present(kind ir.WidgetSelectorKind, visible []ir.WidgetDescriptor) ir.WidgetPresentation {
	p := ir.WidgetPresentation{
		Selector:     kind,
		ShowSelector: kind.ShowsSelector(),
		Active:       visible[0].ID,
		Order:        []string{visible[0].ID},
	}
	if p.ShowSelector {
		p.Order = ids(visible)
	}
	return p
}
