package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/refbind/internal/bridge"
	"github.com/roach88/refbind/internal/controller"
	"github.com/roach88/refbind/internal/ir"
)

// ErrUnknownBinding is returned for events naming a binding point that is
// not attached.
var ErrUnknownBinding = errors.New("unknown binding point")

// Journal records processed events. Implemented by *store.Store.
type Journal interface {
	WriteEntry(ctx context.Context, e ir.JournalEntry) error
}

// Result is the outcome of processing one event.
type Result struct {
	Seq          int64
	BindingPoint string
	SessionToken string
	Outcome      ir.Outcome
	Value        string
	Err          error
}

// DefaultRetiredLimit is how many closed session tokens each binding point
// remembers. A message for an older token is treated as unknown.
const DefaultRetiredLimit = 64

// Engine routes inbound messages to per-binding-point controllers.
//
// Thread-safety model:
//   - Enqueue, Attach, Detach: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Process: synchronous alternative to Run; never call both
type Engine struct {
	clock   SeqSource
	queue   *eventQueue
	journal Journal
	surface controller.SurfacePort
	host    controller.HostPort
	tokens  bridge.TokenGenerator
	access  ir.AccessChecker
	logger  *slog.Logger

	mu           sync.Mutex
	bindings     map[string]*controller.Controller
	sessions     map[string]string   // open session token -> binding point
	retired      map[string]string   // closed session token -> binding point
	retiredOrder map[string][]string // binding point -> retired tokens, oldest first
	retiredLimit int
	current      map[string]string // binding point -> open session token
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every processed event. Default: no journal.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithClock sets the sequence source. Default: NewClock().
func WithClock(c SeqSource) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTokens sets the session token generator shared by all binding points.
// Tokens must be unique across binding points. Default: bridge.UUIDv7Generator.
func WithTokens(g bridge.TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithAccess sets the access check handed to every controller.
func WithAccess(fn ir.AccessChecker) Option {
	return func(e *Engine) {
		e.access = fn
	}
}

// WithRetiredLimit sets how many closed session tokens are remembered per
// binding point. Default: DefaultRetiredLimit.
func WithRetiredLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.retiredLimit = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine that relays outbound messages to surface and host.
func New(surface controller.SurfacePort, host controller.HostPort, opts ...Option) *Engine {
	e := &Engine{
		clock:        NewClock(),
		queue:        newEventQueue(),
		surface:      surface,
		host:         host,
		tokens:       bridge.UUIDv7Generator{},
		access:       ir.AllowAll,
		logger:       slog.Default(),
		bindings:     make(map[string]*controller.Controller),
		sessions:     make(map[string]string),
		retired:      make(map[string]string),
		retiredOrder: make(map[string][]string),
		retiredLimit: DefaultRetiredLimit,
		current:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach creates the controller of a binding point. The store starts empty;
// send an InitEvent to seed it.
func (e *Engine) Attach(cfg ir.FieldWidgetConfig, browser ir.BrowserConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("attach: binding point name is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.bindings[cfg.Name]; exists {
		return fmt.Errorf("attach %s: already attached", cfg.Name)
	}
	e.bindings[cfg.Name] = controller.New(cfg, browser,
		&routingSurface{engine: e, bindingPoint: cfg.Name},
		e.host,
		controller.WithLogger(e.logger),
		controller.WithTokens(e.tokens),
		controller.WithAccess(e.access),
	)
	e.logger.Info("binding point attached", "binding", cfg.Name, "browser", browser.ID)
	return nil
}

// Detach tears a binding point down. Its open session, if any, is retired.
func (e *Engine) Detach(bindingPoint string) {
	e.mu.Lock()
	c, ok := e.bindings[bindingPoint]
	delete(e.bindings, bindingPoint)
	e.retireLocked(bindingPoint)
	e.mu.Unlock()

	if ok {
		c.Close()
		e.logger.Info("binding point detached", "binding", bindingPoint)
	}
}

// BindingPoints returns the attached binding points, sorted.
func (e *Engine) BindingPoints() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.bindings))
	for bp := range e.bindings {
		out = append(out, bp)
	}
	sort.Strings(out)
	return out
}

// Controller returns the controller of a binding point, for reads.
func (e *Engine) Controller(bindingPoint string) (*controller.Controller, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.bindings[bindingPoint]
	return c, ok
}

// Enqueue submits an event for the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.push(ev)
}

// Run processes events until ctx is cancelled or Stop is called.
//
// Processing errors are logged with the event context and the loop
// continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "bindings", len(e.BindingPoints()))

	for {
		if ev, ok := e.queue.pop(); ok {
			res := e.Process(ctx, ev)
			if res.Err != nil && res.Outcome == ir.OutcomeError {
				e.logger.Error("event processing failed",
					"kind", ev.Kind,
					"binding", res.BindingPoint,
					"session", res.SessionToken,
					"seq", res.Seq,
					"error", res.Err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.close()
			return ctx.Err()

		case <-e.queue.wait():
			// A closed queue also fires here.
			if e.queue.drained() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it has drained.
func (e *Engine) Stop() {
	e.queue.close()
}

// Process handles one event synchronously.
func (e *Engine) Process(ctx context.Context, ev Event) Result {
	res := Result{Seq: e.clock.Next(), BindingPoint: ev.BindingPoint, SessionToken: ev.SessionToken}

	if err := ev.Validate(); err != nil {
		res.Outcome, res.Err = ir.OutcomeError, err
		e.logger.Warn("invalid event", "kind", ev.Kind, "error", err)
		return res
	}

	c, bp := e.route(ev)
	res.BindingPoint = bp
	switch {
	case c != nil:
		res.Outcome, res.Err = e.dispatch(c, ev)
		e.reconcile(bp, c)
		res.Value = c.Value()
		if ev.SessionToken == "" {
			if token, open := c.Session(); open {
				res.SessionToken = token
			}
		}
	case ev.Kind == ir.EventCancel:
		// Cancelling a closed session is a no-op.
		res.Outcome = ir.OutcomeIgnored
	case ev.surfaceEvent():
		res.Outcome = ir.OutcomeDiscarded
		res.Err = ir.NewUnknownSession(ev.SessionToken, "").WithBindingPoint(bp)
		e.logger.Warn("discarding message for closed session", "session", ev.SessionToken, "binding", bp)
	default:
		res.Outcome = ir.OutcomeError
		res.Err = fmt.Errorf("%s %s: %w", ev.Kind, ev.BindingPoint, ErrUnknownBinding)
	}

	if c == nil && bp != "" {
		if owner, ok := e.Controller(bp); ok {
			res.Value = owner.Value()
		}
	}

	e.logger.Debug("event processed",
		"kind", ev.Kind,
		"binding", res.BindingPoint,
		"session", res.SessionToken,
		"seq", res.Seq,
		"outcome", res.Outcome,
	)

	if res.BindingPoint != "" {
		if err := e.record(ctx, ev, res); err != nil {
			e.logger.Error("journal write failed", "seq", res.Seq, "error", err)
			if res.Err == nil {
				res.Outcome, res.Err = ir.OutcomeError, err
			}
		}
	}
	return res
}

// route finds the controller for an event. For a token of a closed session
// it returns a nil controller with the binding point the token belonged to.
func (e *Engine) route(ev Event) (*controller.Controller, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !ev.surfaceEvent() {
		return e.bindings[ev.BindingPoint], ev.BindingPoint
	}
	if bp, ok := e.sessions[ev.SessionToken]; ok {
		return e.bindings[bp], bp
	}
	return nil, e.retired[ev.SessionToken]
}

func (e *Engine) dispatch(c *controller.Controller, ev Event) (ir.Outcome, error) {
	var err error
	var success ir.Outcome
	switch ev.Kind {
	case ir.EventInit:
		success, err = ir.OutcomeInitialized, c.Init(ev.Seed)
	case ir.EventOpen:
		success, err = ir.OutcomeOpened, c.Open()
	case ir.EventConfirm:
		success, err = ir.OutcomeCommitted, c.Confirm(ir.ConfirmMessage{SessionToken: ev.SessionToken, Mode: ev.Mode, Refs: ev.Refs})
	case ir.EventCancel:
		success, err = ir.OutcomeCancelled, c.Cancel(ir.CancelMessage{SessionToken: ev.SessionToken})
	case ir.EventRemove:
		success, err = ir.OutcomeRemoved, c.Remove(*ev.Ref)
	case ir.EventReplace:
		success, err = ir.OutcomeReplacing, c.Replace(*ev.Ref)
	case ir.EventEdit:
		success, err = ir.OutcomeEditing, c.Edit(*ev.Ref)
	case ir.EventReorder:
		success, err = ir.OutcomeReordered, c.Reorder(ev.Refs)
	default:
		return ir.OutcomeError, fmt.Errorf("unhandled event kind %q", ev.Kind)
	}

	switch {
	case err == nil:
		return success, nil
	case ir.IsUnknownSession(err):
		return ir.OutcomeDiscarded, err
	case ir.IsTooManySelected(err):
		return ir.OutcomeRejected, err
	default:
		return ir.OutcomeError, err
	}
}

// reconcile retires the binding point's session token once it is closed.
func (e *Engine) reconcile(bindingPoint string, c *controller.Controller) {
	if _, open := c.Session(); open {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retireLocked(bindingPoint)
}

func (e *Engine) retireLocked(bindingPoint string) {
	token, ok := e.current[bindingPoint]
	if !ok {
		return
	}
	delete(e.current, bindingPoint)
	delete(e.sessions, token)
	e.retired[token] = bindingPoint

	order := append(e.retiredOrder[bindingPoint], token)
	if over := len(order) - e.retiredLimit; over > 0 {
		for _, old := range order[:over] {
			delete(e.retired, old)
		}
		order = append(order[:0:0], order[over:]...)
	}
	e.retiredOrder[bindingPoint] = order
}

func (e *Engine) record(ctx context.Context, ev Event, res Result) error {
	if e.journal == nil {
		return nil
	}
	entry, err := ir.NewJournalEntry(res.BindingPoint, res.Seq, ev.Kind, res.SessionToken, ev)
	if err != nil {
		return fmt.Errorf("journal entry: %w", err)
	}
	entry.Outcome = res.Outcome
	entry.Value = res.Value
	if res.Err != nil {
		entry.Detail = res.Err.Error()
	}
	return e.journal.WriteEntry(ctx, entry)
}

// routingSurface relays open signals and learns which binding point owns
// each session token.
type routingSurface struct {
	engine       *Engine
	bindingPoint string
}

func (s *routingSurface) Open(sig ir.OpenSignal) {
	e := s.engine
	e.mu.Lock()
	e.retireLocked(s.bindingPoint)
	e.sessions[sig.SessionToken] = s.bindingPoint
	e.current[s.bindingPoint] = sig.SessionToken
	e.mu.Unlock()

	e.surface.Open(sig)
}

func (s *routingSurface) Reject(rej ir.Rejection) {
	s.engine.surface.Reject(rej)
}
