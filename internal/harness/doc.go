// Package harness provides conformance testing for binding points.
//
// A scenario attaches one binding point to an engine, seeds it, plays host
// and surface messages through engine.Process and checks the final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: replace_on_single
//	description: "Confirming a new ref replaces the single selected one"
//	field:
//	  name: field_hero
//	  browser: files
//	  cardinality: 1
//	  cardinality_mode: replace-on-single
//	browser:
//	  id: files
//	  widget_selector: tabs
//	  selection_display: no_display
//	  display: modal
//	  widgets:
//	    - { id: upload, weight: 1 }
//	seed: "node:1"
//	steps:
//	  - action: open
//	  - action: confirm
//	    refs: ["node:2"]
//	    expect: committed
//	assertions:
//	  - type: value
//	    expect: "node:2"
//	  - type: state
//	    expect: idle
//
// Instead of inline field and browser, a scenario may name a CUE config
// directory with specs and pick a field with field_name.
//
// # Steps
//
// Actions are init, open, confirm, cancel, remove, replace, edit and
// reorder. Confirm and cancel default to the open session; token: session-1
// sends a message for a specific session, which makes stale messages easy to
// express. Every step may set expect to the outcome it must produce.
//
// # Assertion Types
//
//   - value: the serialized selection
//   - state: the bridge state (idle, open, ...)
//   - rejected: number of rejections, optionally the last message
//   - signal_count: number of open signals sent
//   - visible: the exact buttons an item shows
//   - journal: the journal outcomes, in order
//
// # Deterministic Testing
//
// The harness uses:
//   - Session tokens session-1, session-2, ... (bridge.SequenceGenerator)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite journal (isolated per run)
//
// This ensures identical traces across runs for golden file comparison.
package harness
