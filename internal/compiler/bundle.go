package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/refbind/internal/ir"
)

// Bundle is the compiled binding configuration of one CUE package.
type Bundle struct {
	Browsers map[string]ir.BrowserConfig
	Fields   []ir.FieldWidgetConfig // declaration order
}

// Field returns the field named name.
func (b *Bundle) Field(name string) (ir.FieldWidgetConfig, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ir.FieldWidgetConfig{}, false
}

// BrowserIDs returns the browser ids, sorted.
func (b *Bundle) BrowserIDs() []string {
	ids := make([]string, 0, len(b.Browsers))
	for id := range b.Browsers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CompileBundle compiles every `browser: <id>` and `field: <name>` declared
// in v. It keeps going after a failed entry and returns every compile error,
// each prefixed with the entry's path.
func CompileBundle(v cue.Value) (*Bundle, []error) {
	b := &Bundle{Browsers: make(map[string]ir.BrowserConfig)}
	var errs []error

	each(v, "browser", &errs, func(path string, ev cue.Value) {
		cfg, err := CompileBrowser(ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return
		}
		b.Browsers[cfg.ID] = *cfg
	})

	each(v, "field", &errs, func(path string, ev cue.Value) {
		cfg, err := CompileField(ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return
		}
		b.Fields = append(b.Fields, *cfg)
	})

	return b, errs
}

func each(v cue.Value, section string, errs *[]error, fn func(path string, v cue.Value)) {
	sv := v.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return
	}
	iter, err := sv.Fields()
	if err != nil {
		*errs = append(*errs, fmt.Errorf("iterating %s: %w", section, formatCUEError(err)))
		return
	}
	for iter.Next() {
		fn(section+"."+iter.Label(), iter.Value())
	}
}

// LoadDir loads the CUE package in dir and compiles it. It fails on the
// first load or compile error; use it where partial results are useless.
func LoadDir(dir string) (*Bundle, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load %s: no CUE instances", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build %s: %w", dir, formatCUEError(err))
	}

	b, errs := CompileBundle(value)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return b, nil
}
