// Package engine hosts many binding points behind one event loop.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Inbound messages from hosts and surfaces are enqueued on a FIFO queue and
// processed one at a time by Run. Each binding point keeps its own
// controller; no state is shared between binding points.
//
// Routing:
// Host messages name their binding point. Surface messages (confirm,
// cancel) carry only a session token; the engine learns token ownership from
// the open signals it relays and routes by that index. Tokens of closed
// sessions route nowhere, so their stale messages are discarded.
//
// Journal:
// Every processed event is stamped by the logical Clock and, when a journal
// is configured, written to it with its outcome and the resulting value.
//
// ERROR HANDLING: processing errors are logged and the loop continues.
// User-level rejections and stale sessions are outcomes, not failures.
package engine
