package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/queryir"
	"github.com/roach88/refbind/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Binding  string   // optional - filter to one binding point
	Session  string   // optional - filter to one session token
	Outcomes []string // optional - keep only these outcomes
	Kinds    []string // optional - keep only these event kinds
}

// TraceEvent represents a single journal entry in the trace timeline.
type TraceEvent struct {
	Seq          int64  `json:"seq"`
	ID           string `json:"id"`
	BindingPoint string `json:"binding_point"`
	Kind         string `json:"kind"`
	SessionToken string `json:"session_token,omitempty"`
	Outcome      string `json:"outcome"`
	Value        string `json:"value"`
	Detail       string `json:"detail,omitempty"`
	Payload      string `json:"payload,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Binding  string       `json:"binding,omitempty"`
	Session  string       `json:"session,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Sessions    int            `json:"sessions"`
	Outcomes    map[string]int `json:"outcomes"`
	FinalValue  string         `json:"final_value"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the message journal",
		Long: `Show the journal of processed messages written by run --db.

Every inbound message is listed with its logical sequence number, session
token, outcome (opened, committed, rejected, discarded, ...) and the
serialized value of its binding point after processing.

Examples:
  refbind trace --db ./journal.db
  refbind trace --db ./journal.db --binding field_gallery
  refbind trace --db ./journal.db --session 0190f1c2-... --format json
  refbind trace --db ./journal.db --outcome rejected,discarded`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default: journal.path from config)")
	cmd.Flags().StringVar(&opts.Binding, "binding", "", "filter to one binding point")
	cmd.Flags().StringVar(&opts.Session, "session", "", "filter to one session token")
	cmd.Flags().StringSliceVar(&opts.Outcomes, "outcome", nil, "filter by outcome (repeatable or comma separated)")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "filter by event kind (repeatable or comma separated)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Database == "" {
		opts.Database = opts.Config.Journal.Path
	}
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set journal.path")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.Find(ctx, journalFilter(opts))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Binding:  opts.Binding,
		Session:  opts.Session,
		Timeline: buildTimeline(entries),
		Stats:    buildStats(entries),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// journalFilter builds the journal query for the trace flags.
func journalFilter(opts *TraceOptions) queryir.Select {
	return queryir.Where(
		queryir.EqualsIf(queryir.ColumnBindingPoint, opts.Binding),
		queryir.EqualsIf(queryir.ColumnSession, opts.Session),
		queryir.InIf(queryir.ColumnOutcome, opts.Outcomes),
		queryir.InIf(queryir.ColumnKind, opts.Kinds),
	)
}

// buildTimeline converts journal entries to trace timeline events.
func buildTimeline(entries []ir.JournalEntry) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		timeline = append(timeline, TraceEvent{
			Seq:          e.Seq,
			ID:           e.ID,
			BindingPoint: e.BindingPoint,
			Kind:         string(e.Kind),
			SessionToken: e.SessionToken,
			Outcome:      string(e.Outcome),
			Value:        e.Value,
			Detail:       e.Detail,
			Payload:      e.Payload,
		})
	}
	return timeline
}

func buildStats(entries []ir.JournalEntry) TraceStats {
	stats := TraceStats{
		TotalEvents: len(entries),
		Outcomes:    make(map[string]int),
	}
	sessions := make(map[string]bool)
	for _, e := range entries {
		stats.Outcomes[string(e.Outcome)]++
		if e.SessionToken != "" {
			sessions[e.SessionToken] = true
		}
	}
	stats.Sessions = len(sessions)
	if len(entries) > 0 {
		stats.FinalValue = entries[len(entries)-1].Value
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: StatusOK, Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	switch {
	case result.Session != "":
		fmt.Fprintf(w, "Trace for session: %s\n", result.Session)
	case result.Binding != "":
		fmt.Fprintf(w, "Trace for binding point: %s\n", result.Binding)
	default:
		fmt.Fprintln(w, "Trace for all binding points")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Sessions:     %d\n", result.Stats.Sessions)
	for _, outcome := range sortedKeys(result.Stats.Outcomes) {
		fmt.Fprintf(w, "  %-13s %d\n", outcome+":", result.Stats.Outcomes[outcome])
	}
	fmt.Fprintf(w, "  Final Value:  %q\n", result.Stats.FinalValue)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	session := ""
	if event.SessionToken != "" {
		session = " " + truncateID(event.SessionToken)
	}
	fmt.Fprintf(w, "  [%d] %s %s%s -> %s %q\n", event.Seq, event.BindingPoint, event.Kind, session, event.Outcome, event.Value)
	if event.Detail != "" {
		fmt.Fprintf(w, "       %s\n", event.Detail)
	}
	if verbose {
		fmt.Fprintf(w, "       Payload: %s\n", event.Payload)
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
