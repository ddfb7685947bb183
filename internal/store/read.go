package store

import (
	"context"
	"fmt"

	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/queryir"
	"github.com/roach88/refbind/internal/querysql"
)

var journalQueries = querysql.NewCompiler("journal",
	"id", "binding_point", "seq", "kind", "session_token", "payload", "outcome", "value", "detail")

// Find returns the entries matching sel, ordered by seq then id
// (COLLATE BINARY). Returns an empty slice, not nil, when nothing matches.
func (s *Store) Find(ctx context.Context, sel queryir.Select) ([]ir.JournalEntry, error) {
	query, args, err := journalQueries.Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.queryEntries(ctx, query, args...)
}

// ReadBinding returns the journal of one binding point.
func (s *Store) ReadBinding(ctx context.Context, bindingPoint string) ([]ir.JournalEntry, error) {
	return s.Find(ctx, queryir.Where(queryir.Equals{Column: queryir.ColumnBindingPoint, Value: bindingPoint}))
}

// ReadSession returns every entry that carried the given session token.
func (s *Store) ReadSession(ctx context.Context, sessionToken string) ([]ir.JournalEntry, error) {
	return s.Find(ctx, queryir.Where(queryir.Equals{Column: queryir.ColumnSession, Value: sessionToken}))
}

// ReadAll returns the whole journal.
func (s *Store) ReadAll(ctx context.Context) ([]ir.JournalEntry, error) {
	return s.Find(ctx, queryir.Select{})
}

// LatestValue returns the serialized value recorded by the most recent entry
// of a binding point. ok is false when the binding point has no entries.
func (s *Store) LatestValue(ctx context.Context, bindingPoint string) (value string, ok bool, err error) {
	entries, err := s.Find(ctx, queryir.Select{
		Filter:     queryir.Equals{Column: queryir.ColumnBindingPoint, Value: bindingPoint},
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return "", false, fmt.Errorf("latest value %s: %w", bindingPoint, err)
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].Value, true, nil
}

// BindingPoints returns the distinct binding points in the journal, sorted.
func (s *Store) BindingPoints(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT binding_point
		FROM journal
		ORDER BY binding_point COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query binding points: %w", err)
	}
	defer rows.Close()

	points := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan binding point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate binding points: %w", err)
	}
	return points, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ir.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []ir.JournalEntry{}
	for rows.Next() {
		var (
			e       ir.JournalEntry
			kind    string
			outcome string
		)
		if err := rows.Scan(&e.ID, &e.BindingPoint, &e.Seq, &kind, &e.SessionToken, &e.Payload, &outcome, &e.Value, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = ir.EventKind(kind)
		e.Outcome = ir.Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
