package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/refbind/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		if event.Type == TraceEventIn {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s %q\n", i+1, event.Kind, event.Session, event.Outcome, event.Value)
		}
	}

	return buf.String()
}

// Button names used by visible assertions.
const (
	ButtonRemove  = "remove"
	ButtonEdit    = "edit"
	ButtonReplace = "replace"
)

func assertValue(r *Result, a Assertion) error {
	if r.Value == a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertValue,
		Expected: fmt.Sprintf("value %q", a.Expect),
		Actual:   fmt.Sprintf("value %q", r.Value),
		Trace:    r.Trace,
	}
}

func assertState(r *Result, a Assertion) error {
	if r.State == a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: fmt.Sprintf("state %s", a.Expect),
		Actual:   fmt.Sprintf("state %s", r.State),
		Trace:    r.Trace,
	}
}

func assertRejected(r *Result, a Assertion) error {
	if len(r.Rejections) != a.Count {
		return &AssertionError{
			Type:     AssertRejected,
			Expected: fmt.Sprintf("%d rejections", a.Count),
			Actual:   fmt.Sprintf("%d rejections", len(r.Rejections)),
			Trace:    r.Trace,
		}
	}
	if a.Expect == "" || a.Count == 0 {
		return nil
	}
	last := r.Rejections[len(r.Rejections)-1]
	if last.Message != a.Expect {
		return &AssertionError{
			Type:     AssertRejected,
			Expected: fmt.Sprintf("last rejection %q", a.Expect),
			Actual:   fmt.Sprintf("last rejection %q", last.Message),
			Trace:    r.Trace,
		}
	}
	return nil
}

func assertSignalCount(r *Result, a Assertion) error {
	if r.Signals == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertSignalCount,
		Expected: fmt.Sprintf("%d open signals", a.Count),
		Actual:   fmt.Sprintf("%d open signals", r.Signals),
		Trace:    r.Trace,
	}
}

// assertVisible checks that the item shows exactly the listed buttons.
func assertVisible(r *Result, a Assertion) error {
	ref, err := ir.ParseRef(a.Ref)
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(r.Items, func(it ir.SelectionItem) bool { return it.Ref == ref })
	if idx < 0 {
		return &AssertionError{
			Type:     AssertVisible,
			Expected: fmt.Sprintf("item %s in selection", a.Ref),
			Actual:   fmt.Sprintf("selection %q", r.Value),
			Trace:    r.Trace,
		}
	}

	got := buttons(r.Items[idx].Capabilities)
	want := slices.Clone(a.Buttons)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertVisible,
			Expected: fmt.Sprintf("%s shows %v", a.Ref, want),
			Actual:   fmt.Sprintf("%s shows %v", a.Ref, got),
			Trace:    r.Trace,
		}
	}
	return nil
}

// buttons lists the visible buttons of an item, sorted.
func buttons(c ir.Capabilities) []string {
	out := []string{}
	if c.CanEdit {
		out = append(out, ButtonEdit)
	}
	if c.CanRemove {
		out = append(out, ButtonRemove)
	}
	if c.CanReplace {
		out = append(out, ButtonReplace)
	}
	return out
}

func assertJournal(r *Result, a Assertion) error {
	got := make([]string, len(r.Journal))
	for i, e := range r.Journal {
		got[i] = string(e.Outcome)
	}
	if slices.Equal(got, a.Outcomes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertJournal,
		Expected: fmt.Sprintf("journal outcomes %v", a.Outcomes),
		Actual:   fmt.Sprintf("journal outcomes %v", got),
		Trace:    r.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertValue:
			err = assertValue(result, assertion)
		case AssertState:
			err = assertState(result, assertion)
		case AssertRejected:
			err = assertRejected(result, assertion)
		case AssertSignalCount:
			err = assertSignalCount(result, assertion)
		case AssertVisible:
			err = assertVisible(result, assertion)
		case AssertJournal:
			err = assertJournal(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
