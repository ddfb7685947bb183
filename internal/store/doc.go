// Package store provides the SQLite-backed message journal.
//
// Every event the engine processes is appended together with its outcome and
// the resulting serialized value. The journal is an audit trail: selection
// stores are never rebuilt from it.
//
// # Patterns
//
// Content-addressed identity:
//   - Entry IDs come from ir.EntryID (canonical JSON, SHA-256, domain separated)
//   - Writes use ON CONFLICT(id) DO NOTHING, so rewriting an entry is a no-op
//
// Logical time:
//   - Ordering uses the seq column (engine clock), never timestamps
//   - Reads order by seq, then id COLLATE BINARY (LatestValue reads newest first)
//
// Filtering:
//   - Find takes a queryir.Select; querysql compiles it to parameterized SQL
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection (single writer)
package store
