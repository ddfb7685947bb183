// Package ir provides the shared types for refbind binding points.
//
// This package contains type definitions, the error taxonomy, and canonical
// serialization only. All other internal packages import ir; ir imports
// nothing internal. This keeps ir the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - EntityRef is immutable and its Key() is the only identity used anywhere
//   - The serialized reference value is space-separated Key() tokens in weight order
//   - Messages crossing the surface boundary are plain values (no shared state)
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
