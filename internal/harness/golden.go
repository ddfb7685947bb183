package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/refbind/internal/ir"
)

// Snapshot renders a scenario's final value and trace as canonical JSON,
// the format of golden files.
//
// Empty string fields are omitted. Inbound events and host updates always
// carry value; open signals always carry max_selectable.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = snapshotEvent(ev)
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"value":         result.Value,
		"trace":         trace,
	})
}

func snapshotEvent(ev TraceEvent) map[string]any {
	m := map[string]any{"seq": ev.Seq, "type": ev.Type}
	for key, val := range map[string]string{
		"kind":       ev.Kind,
		"session":    ev.Session,
		"outcome":    ev.Outcome,
		"ref":        ev.Ref,
		"message":    ev.Message,
		"input_kind": ev.InputKind,
	} {
		if val != "" {
			m[key] = val
		}
	}

	switch ev.Type {
	case TraceEventIn, TraceUpdate:
		m["value"] = ev.Value
	case TraceOpen:
		m["max_selectable"] = int64(ev.MaxSelectable)
		if ev.Reopen {
			m["reopen"] = true
		}
	}
	return m
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// A mismatch fails t; the returned error covers execution only.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)
	return result, nil
}
