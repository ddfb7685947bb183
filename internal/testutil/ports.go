package testutil

import (
	"sync"

	"github.com/roach88/refbind/internal/ir"
)

// RecordingSurface captures every message sent to a selection surface.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingSurface struct {
	mu         sync.Mutex
	opens      []ir.OpenSignal
	rejections []ir.Rejection
}

// Open implements controller.SurfacePort.
func (s *RecordingSurface) Open(sig ir.OpenSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens = append(s.opens, sig)
}

// Reject implements controller.SurfacePort.
func (s *RecordingSurface) Reject(rej ir.Rejection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections = append(s.rejections, rej)
}

// Opens returns a copy of the recorded open signals.
func (s *RecordingSurface) Opens() []ir.OpenSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.OpenSignal(nil), s.opens...)
}

// LastOpen returns the most recent open signal.
func (s *RecordingSurface) LastOpen() (ir.OpenSignal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.opens) == 0 {
		return ir.OpenSignal{}, false
	}
	return s.opens[len(s.opens)-1], true
}

// Rejections returns a copy of the recorded rejections.
func (s *RecordingSurface) Rejections() []ir.Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.Rejection(nil), s.rejections...)
}

// RecordingHost captures every message sent to a host form.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingHost struct {
	mu      sync.Mutex
	updates []ir.HostUpdate
	expands []ir.ExpandRequest
	edits   []ir.EditRequest
}

// Publish implements controller.HostPort.
func (h *RecordingHost) Publish(u ir.HostUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

// Expand implements controller.HostPort.
func (h *RecordingHost) Expand(req ir.ExpandRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expands = append(h.expands, req)
}

// Edit implements controller.HostPort.
func (h *RecordingHost) Edit(req ir.EditRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.edits = append(h.edits, req)
}

// Updates returns a copy of the recorded host updates.
func (h *RecordingHost) Updates() []ir.HostUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ir.HostUpdate(nil), h.updates...)
}

// LastUpdate returns the most recent host update.
func (h *RecordingHost) LastUpdate() (ir.HostUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return ir.HostUpdate{}, false
	}
	return h.updates[len(h.updates)-1], true
}

// Expands returns a copy of the recorded expand requests.
func (h *RecordingHost) Expands() []ir.ExpandRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ir.ExpandRequest(nil), h.expands...)
}

// Edits returns a copy of the recorded edit requests.
func (h *RecordingHost) Edits() []ir.EditRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ir.EditRequest(nil), h.edits...)
}
