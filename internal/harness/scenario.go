package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/refbind/internal/ir"
)

// Scenario defines a conformance test scenario for one binding point.
// A scenario seeds the binding point, plays a sequence of host and surface
// messages through the engine, and asserts on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is a directory of CUE binding configuration, relative to the
	// scenario file. Used together with FieldName.
	Specs string `yaml:"specs,omitempty"`

	// FieldName selects the field from Specs.
	FieldName string `yaml:"field_name,omitempty"`

	// Field is an inline field configuration, used when Specs is empty.
	Field *ir.FieldWidgetConfig `yaml:"field,omitempty"`

	// Browser is an inline browser configuration, used when Specs is empty.
	// Its widgets are all visible unless listed in Access.HiddenWidgets.
	Browser *ir.BrowserConfig `yaml:"browser,omitempty"`

	// Seed is the persisted value the binding point starts from.
	Seed string `yaml:"seed,omitempty"`

	// Access simulates the host's access checks.
	Access Access `yaml:"access,omitempty"`

	// Steps are the messages to play, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Access lists what the simulated actor may not do.
type Access struct {
	// HiddenWidgets are widget ids the actor cannot use.
	HiddenWidgets []string `yaml:"hidden_widgets,omitempty"`

	// DenyEdit are refs the actor may not edit.
	DenyEdit []string `yaml:"deny_edit,omitempty"`
}

// Step is one inbound message.
type Step struct {
	// Action is the event kind: init, open, confirm, cancel, remove,
	// replace, edit or reorder.
	Action string `yaml:"action"`

	// Token is the session token of a confirm or cancel. Empty or "current"
	// means the open session, or the last issued one if none is open.
	Token string `yaml:"token,omitempty"`

	// Mode is the commit mode of a confirm. Defaults to append.
	Mode string `yaml:"mode,omitempty"`

	// Ref is the target of a row action.
	Ref string `yaml:"ref,omitempty"`

	// Refs is the batch of a confirm or the new order of a reorder.
	Refs []string `yaml:"refs,omitempty"`

	// Seed is the value of an init step.
	Seed string `yaml:"seed,omitempty"`

	// Expect is the expected outcome (committed, rejected, discarded, ...).
	// If empty, the outcome is not checked.
	Expect string `yaml:"expect,omitempty"`
}

// TokenCurrent resolves to the open session token.
const TokenCurrent = "current"

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "value": serialized value equals Expect
	// - "state": bridge state equals Expect
	// - "rejected": Count rejections; if Expect is set, the last message
	// - "signal_count": Count open signals were sent
	// - "visible": item Ref shows exactly Buttons
	// - "journal": journal outcomes equal Outcomes, in order
	Type string `yaml:"type"`

	Expect   string   `yaml:"expect,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Ref      string   `yaml:"ref,omitempty"`
	Buttons  []string `yaml:"buttons,omitempty"`
	Outcomes []string `yaml:"outcomes,omitempty"`
}

// Assertion type constants.
const (
	AssertValue       = "value"
	AssertState       = "state"
	AssertRejected    = "rejected"
	AssertSignalCount = "signal_count"
	AssertVisible     = "visible"
	AssertJournal     = "journal"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative Specs directory is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Specs != "" && (s.Field != nil || s.Browser != nil):
		return fmt.Errorf("use either specs or inline field and browser, not both")
	case s.Specs != "":
		if s.FieldName == "" {
			return fmt.Errorf("field_name is required with specs")
		}
		if info, err := os.Stat(s.Specs); err != nil || !info.IsDir() {
			return fmt.Errorf("specs directory not found: %s", s.Specs)
		}
	case s.Field == nil || s.Browser == nil:
		return fmt.Errorf("field and browser are required without specs")
	case s.Field.Name == "":
		return fmt.Errorf("field.name is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	kind := ir.EventKind(step.Action)
	if !ir.ValidEventKinds[kind] {
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	switch kind {
	case ir.EventRemove, ir.EventReplace, ir.EventEdit:
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", index, step.Action)
		}
	case ir.EventConfirm:
		if step.Mode != "" && !ir.ValidCommitModes[ir.CommitMode(step.Mode)] {
			return fmt.Errorf("steps[%d]: mode must be append or replace, got %q", index, step.Mode)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertValue, AssertRejected, AssertSignalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertState:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for state", index)
		}
	case AssertVisible:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for visible", index)
		}
	case AssertJournal:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: outcomes list is required for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
