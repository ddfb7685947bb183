package store

import (
	"context"
	"fmt"

	"github.com/roach88/refbind/internal/ir"
)

// WriteEntry appends a journal entry.
// Uses ON CONFLICT(id) DO NOTHING: writing an entry with an existing ID is
// silently ignored. Other constraint violations still return errors.
func (s *Store) WriteEntry(ctx context.Context, e ir.JournalEntry) error {
	if e.ID == "" {
		return fmt.Errorf("write entry: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal
		(id, binding_point, seq, kind, session_token, payload, outcome, value, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.BindingPoint,
		e.Seq,
		string(e.Kind),
		e.SessionToken,
		e.Payload,
		string(e.Outcome),
		e.Value,
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("write entry %s: %w", e.ID, err)
	}

	return nil
}
