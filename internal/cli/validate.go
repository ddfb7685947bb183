package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/refbind/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Browsers int                        `json:"browsers"`
	Fields   int                        `json:"fields"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate binding configuration",
		Long: `Validate the CUE entity browser and field widget configuration in a directory.

Compiles every browser and field, checks them against the schema, then
cross-checks each field against the browser it references. A field whose
settings cannot work with its browser (for example edit selection against
a selection display without preselection) is a configuration conflict.

Exit codes:
  0 - Configuration valid
  1 - Validation errors or configuration conflicts
  2 - Command error (directory missing, CUE does not load, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, configDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadConfig(configDir, LoadModeCollectAll)
	if loadResult == nil {
		code, message := ErrCodeGeneric, loadErrors[0].Error()
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			code, message = loadErr.Code, loadErr.Message
		}
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, code+": "+message)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, configDir)

	problems := append(loadDiagnostics(loadErrors), validateBundle(loadResult.Bundle, formatter)...)
	if len(problems) > 0 {
		return reportValidationErrors(formatter, problems)
	}

	result := ValidationResult{
		Valid:    true,
		Browsers: len(loadResult.Bundle.Browsers),
		Fields:   len(loadResult.Bundle.Fields),
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%d browsers, %d fields)\n", result.Browsers, result.Fields)
	return nil
}

// loadDiagnostics turns LoadConfig compile errors into validation errors
// reported against the "load" field.
func loadDiagnostics(errs []error) []compiler.ValidationError {
	out := make([]compiler.ValidationError, 0, len(errs))
	for _, err := range errs {
		ve := compiler.ValidationError{Field: "load", Code: ErrCodeGeneric, Message: err.Error()}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			ve.Code, ve.Message = loadErr.Code, loadErr.Message
			if loadErr.Pos.IsValid() {
				ve.Line = loadErr.Pos.Line()
			}
		}
		out = append(out, ve)
	}
	return out
}

// validateBundle runs schema validation on every browser and field, then
// the cross-checks of each field against the browsers.
func validateBundle(b *compiler.Bundle, formatter *OutputFormatter) []compiler.ValidationError {
	var allErrors []compiler.ValidationError

	for _, id := range b.BrowserIDs() {
		formatter.VerboseLog("Validating browser: %s", id)
		for _, e := range compiler.Validate(b.Browsers[id]) {
			e.Field = "browser." + id + "." + e.Field
			allErrors = append(allErrors, e)
		}
	}

	for _, field := range b.Fields {
		formatter.VerboseLog("Validating field: %s (browser %s)", field.Name, field.Browser)
		schemaErrs := compiler.Validate(field)
		for _, e := range schemaErrs {
			e.Field = "field." + field.Name + "." + e.Field
			allErrors = append(allErrors, e)
		}
		if len(schemaErrs) > 0 {
			continue
		}
		for _, conflict := range compiler.ValidateBinding(field, b.Browsers) {
			allErrors = append(allErrors, compiler.ValidationError{
				Field:   "field." + field.Name + "." + conflict.Details["setting"],
				Message: conflict.Message,
				Code:    compiler.ErrConfigurationConflict,
			})
		}
	}

	return allErrors
}

// reportValidationErrors prints schema errors and configuration conflicts.
func reportValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(ValidationResult{Errors: errs}, errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failed
}

// ValidateConfigDir validates all configuration in a directory. The error
// is set only when the directory could not be loaded.
func ValidateConfigDir(configDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadConfig(configDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, loadErrors[0]
	}
	quiet := &OutputFormatter{Format: "text", Writer: io.Discard}
	return append(loadDiagnostics(loadErrors), validateBundle(loadResult.Bundle, quiet)...), nil
}
