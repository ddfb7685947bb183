package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/refbind/internal/compiler"
)

// Error codes shared by all commands. Config errors found by the compiler
// keep its E1xx codes.
const (
	ErrCodeGeneric     = "E001" // unclassified
	ErrCodeScanError   = "E002" // config directory could not be walked
	ErrCodeNoFiles     = "E003" // no .cue files
	ErrCodeLoadFailed  = "E004" // cue load
	ErrCodeNotFound    = "E005" // path missing or not a directory
	ErrCodeBuildFailed = "E006" // cue build
	ErrCodeWriteFailed = "E007" // file write
	ErrCodeInput       = "E008" // malformed run input line
)

// LoadMode controls whether LoadConfig stops at the first compile error.
type LoadMode int

const (
	LoadModeFailFast LoadMode = iota
	LoadModeCollectAll
)

// LoadResult is a compiled config directory.
type LoadResult struct {
	Bundle    *compiler.Bundle
	CUEValue  cue.Value
	FileCount int
}

// LoadError is a config loading failure, positioned when CUE knows where.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if !e.Pos.IsValid() {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
}

func loadErrorf(code, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// LoadConfig builds the CUE package in dir and compiles its browsers and
// fields.
//
// A nil result means the directory could not be built at all and the single
// error says why. Otherwise the result is usable and the errors are compile
// errors: only the first with LoadModeFailFast, all of them with
// LoadModeCollectAll.
func LoadConfig(dir string, mode LoadMode) (*LoadResult, []error) {
	value, files, lerr := buildConfigValue(dir)
	if lerr != nil {
		return nil, []error{lerr}
	}

	bundle, compileErrs := compiler.CompileBundle(value)
	result := &LoadResult{Bundle: bundle, CUEValue: value, FileCount: files}

	if len(compileErrs) > 0 {
		if mode == LoadModeFailFast {
			compileErrs = compileErrs[:1]
		}
		errs := make([]error, len(compileErrs))
		for i, err := range compileErrs {
			errs[i] = convertCompileError(err)
		}
		return result, errs
	}

	if len(bundle.Browsers) == 0 && len(bundle.Fields) == 0 {
		return result, []error{loadErrorf(ErrCodeGeneric, "no browsers or fields found in config")}
	}
	return result, nil
}

// buildConfigValue loads the CUE instance rooted at dir and reports how many
// .cue files it holds.
func buildConfigValue(dir string) (cue.Value, int, *LoadError) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cue.Value{}, 0, loadErrorf(ErrCodeNotFound, "config directory not found: %s", dir)
	case err != nil:
		return cue.Value{}, 0, loadErrorf(ErrCodeNotFound, "error accessing config directory: %v", err)
	case !info.IsDir():
		return cue.Value{}, 0, loadErrorf(ErrCodeNotFound, "not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, loadErrorf(ErrCodeScanError, "error scanning directory: %v", err)
	}
	if len(files) == 0 {
		return cue.Value{}, 0, loadErrorf(ErrCodeNoFiles, "no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, 0, loadErrorf(ErrCodeLoadFailed, "no CUE instances loaded")
	}
	if err := instances[0].Err; err != nil {
		return cue.Value{}, 0, loadErrorf(ErrCodeLoadFailed, "loading CUE files: %v", err)
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return cue.Value{}, 0, loadErrorf(ErrCodeBuildFailed, "building CUE value: %v", err)
	}
	return value, len(files), nil
}

// FindCUEFiles returns every .cue file below dir.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if !errors.As(err, &compileErr) {
		return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	return &LoadError{
		Code:    MapFieldToErrorCode(compileErr.Field),
		Message: err.Error(),
		Pos:     compileErr.Pos,
	}
}

var fieldErrorCodes = map[string]string{
	"display":           compiler.ErrInvalidDisplay,
	"selection_display": compiler.ErrInvalidSelectionDisplay,
	"widget_selector":   compiler.ErrInvalidWidgetSelector,
	"widgets":           compiler.ErrWidgetIDEmpty,
	"widgets.id":        compiler.ErrWidgetIDEmpty,
	"browser":           compiler.ErrFieldBrowserEmpty,
	"cardinality_mode":  compiler.ErrInvalidCardinalityMode,
	"selection_mode":    compiler.ErrInvalidSelectionMode,
}

// MapFieldToErrorCode returns the compiler error code for a config setting,
// or ErrCodeGeneric when the setting has none.
func MapFieldToErrorCode(field string) string {
	if code, ok := fieldErrorCodes[field]; ok {
		return code
	}
	return ErrCodeGeneric
}
