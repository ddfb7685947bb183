package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refbind/internal/ir"
)

func browsers(bs ...ir.BrowserConfig) map[string]ir.BrowserConfig {
	m := make(map[string]ir.BrowserConfig, len(bs))
	for _, b := range bs {
		m[b.ID] = b
	}
	return m
}

func TestValidateBindingValid(t *testing.T) {
	assert.Empty(t, ValidateBinding(validField(), browsers(validBrowser())))
}

func TestValidateBindingEditSelectionNeedsPreselection(t *testing.T) {
	b := validBrowser()
	b.Label = "Test entity browser iframe with view widget"
	b.SelectionDisplay = ir.SelectionDisplayNone

	f := validField()
	f.Label = "Seek! Locate! Exterminate!"
	f.SelectionMode = ir.SelectionEdit

	errs := ValidateBinding(f, browsers(b))
	require.Len(t, errs, 1)

	assert.True(t, ir.IsConfigurationConflict(errs[0]))
	assert.Equal(t, "field_related", errs[0].BindingPoint)
	assert.Equal(t, "selection_mode", errs[0].Details["setting"])
	assert.Equal(t,
		`There is a configuration problem with field "Seek! Locate! Exterminate!". The selection mode Edit selection requires an entity browser with a selection display plugin that supports preselection. Either change the selection mode or update the Test entity browser iframe with view widget entity browser to use a selection display plugin that supports preselection.`,
		errs[0].Message)

	// Switching to a display that supports preselection clears the conflict.
	b.SelectionDisplay = ir.SelectionDisplayView
	assert.Empty(t, ValidateBinding(f, browsers(b)))
}

func TestValidateBindingCardinality(t *testing.T) {
	for _, n := range []int{0, -2, -10} {
		f := validField()
		f.Cardinality = n

		errs := ValidateBinding(f, browsers(validBrowser()))
		require.Len(t, errs, 1, "cardinality %d", n)
		assert.Equal(t, "cardinality", errs[0].Details["setting"])
	}

	for _, n := range []int{-1, 1, 5} {
		f := validField()
		f.Cardinality = n
		assert.Empty(t, ValidateBinding(f, browsers(validBrowser())), "cardinality %d", n)
	}
}

func TestValidateBindingReplaceOnSingle(t *testing.T) {
	f := validField()
	f.CardinalityMode = ir.CardinalityReplaceOnSingle
	f.Cardinality = 2

	errs := ValidateBinding(f, browsers(validBrowser()))
	require.Len(t, errs, 1)
	assert.Equal(t, "cardinality_mode", errs[0].Details["setting"])
	assert.Contains(t, errs[0].Message, "got 2")

	f.Cardinality = 1
	assert.Empty(t, ValidateBinding(f, browsers(validBrowser())))
}

func TestValidateBindingReplaceButton(t *testing.T) {
	f := validField()
	f.Cardinality = 1
	f.Replace = true
	assert.Empty(t, ValidateBinding(f, browsers(validBrowser())), "replace with cardinality 1 in append mode is fine")

	b := validBrowser()
	b.Widgets = nil
	errs := ValidateBinding(f, browsers(b))
	require.Len(t, errs, 1)
	assert.Equal(t, "field_widget_replace", errs[0].Details["setting"])
	assert.Contains(t, errs[0].Message, "Files entity browser")
}

func TestValidateBindingUnknownBrowser(t *testing.T) {
	f := validField()
	f.Browser = "missing"
	f.Cardinality = 0

	errs := ValidateBinding(f, browsers(validBrowser()))
	require.Len(t, errs, 2, "cardinality is still checked when the browser is unknown")
	assert.Equal(t, "cardinality", errs[0].Details["setting"])
	assert.Equal(t, "browser", errs[1].Details["setting"])
	assert.Contains(t, errs[1].Message, `"missing"`)
}

func TestValidateBindingFallsBackToNames(t *testing.T) {
	b := validBrowser()
	b.Label = ""
	b.SelectionDisplay = ir.SelectionDisplayNone

	f := validField()
	f.Label = ""
	f.SelectionMode = ir.SelectionEdit

	errs := ValidateBinding(f, browsers(b))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `field "field_related"`)
	assert.Contains(t, errs[0].Message, "update the files entity browser")
}
