package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/refbind/internal/bridge"
	"github.com/roach88/refbind/internal/compiler"
	"github.com/roach88/refbind/internal/engine"
	"github.com/roach88/refbind/internal/ir"
	"github.com/roach88/refbind/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Field    string
	Seed     string
	Database string

	// Tokens allows overriding the session token generator (for testing).
	// If nil, defaults to bridge.UUIDv7Generator.
	Tokens bridge.TokenGenerator
}

// Outbound line types written by the run command.
const (
	OutboundOpen   = "open"
	OutboundReject = "reject"
	OutboundUpdate = "update"
	OutboundExpand = "expand"
	OutboundEdit   = "edit"
	OutboundError  = "error"
)

// OutboundLine is one JSON line written to stdout.
type OutboundLine struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config-dir>",
		Short: "Attach a binding point and relay messages",
		Long: `Attach one field widget binding point and relay its messages.

Inbound messages are read from stdin as JSON lines, one engine event per
line. Outbound messages (open signals, rejections, host updates, expand
and edit requests) are written to stdout as JSON lines. The binding point
is seeded before the first inbound message is read.

Examples:
  refbind run ./config --field field_gallery --seed "media:1 media:2"
  refbind run ./config --field field_hero --db ./journal.db < messages.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Field, "field", "", "field binding point to attach (required)")
	_ = cmd.MarkFlagRequired("field")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "persisted value to seed the binding point with")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default: journal.path from config)")

	return cmd
}

func runEngine(opts *RunOptions, configDir string, cmd *cobra.Command) error {
	field, browser, err := resolveBinding(configDir, opts.Field)
	if err != nil {
		return err
	}

	if opts.Database == "" {
		opts.Database = opts.Config.Journal.Path
	}

	engineOpts := []engine.Option{engine.WithLogger(slog.Default())}
	if opts.Tokens != nil {
		engineOpts = append(engineOpts, engine.WithTokens(opts.Tokens))
	}
	if opts.Database != "" {
		slog.Info("opening journal", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(st))
	}

	out := &lineWriter{enc: json.NewEncoder(cmd.OutOrStdout())}
	eng := engine.New(out, out, engineOpts...)
	if err := eng.Attach(field, browser); err != nil {
		return WrapExitError(ExitCommandError, "failed to attach binding point", err)
	}
	eng.Enqueue(engine.InitEvent(field.Name, opts.Seed))

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		// Closing the queue lets Run drain what was read and return.
		defer eng.Stop()
		return readEvents(gctx, cmd.InOrStdin(), eng, out)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped", "binding", field.Name)
	return nil
}

// resolveBinding loads the config directory and returns the named field and
// its browser. Configuration conflicts are command errors.
func resolveBinding(configDir, fieldName string) (ir.FieldWidgetConfig, ir.BrowserConfig, error) {
	var field ir.FieldWidgetConfig
	var browser ir.BrowserConfig

	loadResult, loadErrors := LoadConfig(configDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return field, browser, WrapExitError(ExitCommandError, "failed to load config", loadErrors[0])
	}

	field, ok := loadResult.Bundle.Field(fieldName)
	if !ok {
		return field, browser, NewExitError(ExitCommandError, fmt.Sprintf("field %q not found in %s", fieldName, configDir))
	}
	if conflicts := compiler.ValidateBinding(field, loadResult.Bundle.Browsers); len(conflicts) > 0 {
		return field, browser, WrapExitError(ExitCommandError, "configuration conflict", conflicts[0])
	}
	return field, loadResult.Bundle.Browsers[field.Browser], nil
}

// readEvents decodes one engine event per line and enqueues it. Malformed
// lines are reported on stdout and skipped.
func readEvents(ctx context.Context, r io.Reader, eng *engine.Engine, out *lineWriter) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var ev engine.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			slog.Warn("malformed input line", "line", line, "error", err)
			out.write(OutboundError, CLIError{Code: ErrCodeInput, Message: fmt.Sprintf("line %d: %v", line, err)})
			continue
		}
		if err := ev.Validate(); err != nil {
			slog.Warn("invalid input event", "line", line, "error", err)
			out.write(OutboundError, CLIError{Code: ErrCodeInput, Message: fmt.Sprintf("line %d: %v", line, err)})
			continue
		}
		if !eng.Enqueue(ev) {
			return fmt.Errorf("line %d: engine queue closed", line)
		}
	}
	return scanner.Err()
}

// lineWriter implements controller.SurfacePort and controller.HostPort by
// writing each outbound message as a JSON line.
//
// Thread-safety: safe for concurrent use via internal mutex.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *lineWriter) write(kind string, payload any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(OutboundLine{Type: kind, Payload: payload}); err != nil {
		slog.Error("failed to write outbound message", "type", kind, "error", err)
	}
}

func (w *lineWriter) Open(sig ir.OpenSignal) { w.write(OutboundOpen, sig) }
func (w *lineWriter) Reject(rej ir.Rejection) { w.write(OutboundReject, rej) }
func (w *lineWriter) Publish(u ir.HostUpdate) { w.write(OutboundUpdate, u) }
func (w *lineWriter) Expand(req ir.ExpandRequest) { w.write(OutboundExpand, req) }
func (w *lineWriter) Edit(req ir.EditRequest) { w.write(OutboundEdit, req) }
