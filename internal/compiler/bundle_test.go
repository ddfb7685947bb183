package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refbind/internal/ir"
)

const bundleSrc = `
package config

browser: files: {
	label: "Files"
	selection_display: "view"
	widgets: upload: { weight: 1 }
}

field: field_related: {
	browser: "files"
	cardinality: 2
}

field: field_hero: {
	browser: "files"
	cardinality: 1
	cardinality_mode: "replace-on-single"
}
`

func TestCompileBundle(t *testing.T) {
	v := cuecontext.New().CompileString(bundleSrc)
	require.NoError(t, v.Err())

	b, errs := CompileBundle(v)
	require.Empty(t, errs)

	assert.Equal(t, []string{"files"}, b.BrowserIDs())
	require.Len(t, b.Fields, 2)
	assert.Equal(t, "field_related", b.Fields[0].Name)
	assert.Equal(t, "field_hero", b.Fields[1].Name)

	hero, ok := b.Field("field_hero")
	require.True(t, ok)
	assert.Equal(t, ir.CardinalityReplaceOnSingle, hero.CardinalityMode)

	_, ok = b.Field("missing")
	assert.False(t, ok)
}

func TestCompileBundleCollectsErrors(t *testing.T) {
	v := cuecontext.New().CompileString(`
		browser: ok: {}
		browser: bad: { widgets: ["x"] }
		field: nobrowser: { cardinality: 1 }
		field: good: { browser: "ok" }
	`)
	require.NoError(t, v.Err())

	b, errs := CompileBundle(v)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "browser.bad")
	assert.Contains(t, errs[1].Error(), "field.nobrowser")

	assert.Equal(t, []string{"ok"}, b.BrowserIDs(), "valid entries are still compiled")
	require.Len(t, b.Fields, 1)
	assert.Equal(t, "good", b.Fields[0].Name)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.cue"), []byte(bundleSrc), 0o644))

	b, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, b.Fields, 2)
	assert.Contains(t, b.Browsers, "files")
}

func TestLoadDirCompileError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.cue"), []byte(`
package config

field: orphan: { cardinality: 1 }
`), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser is required")
}
