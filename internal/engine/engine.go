// Package engine runs the synchronization loop between bound GPIO lines and
// their variables.
//
// An engine runs in exactly one of two modes, fixed at construction. In
// signal mode it blocks on the variable server's signal stream and services
// writes, queries and print requests. In watch mode it blocks on the shared
// edge-event stream and pushes observed transitions back into variables.
// Both waits are context-cancellable, so shutdown takes effect immediately
// rather than on the next incoming event.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/varbridge/gpioctrl/internal/binding"
	"github.com/varbridge/gpioctrl/internal/hardware"
	"github.com/varbridge/gpioctrl/internal/pwm"
	"github.com/varbridge/gpioctrl/internal/varserver"
)

// InfoVariable is the variable whose print requests render the status report.
const InfoVariable = "/SYS/GPIOCTRL/INFO"

// State is the engine lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "starting"
	}
}

// Transition is one observed line value change, delivered to recorders.
type Transition struct {
	Time   time.Time
	Chip   string
	Offset int
	Var    string
	Value  uint32

	// Source is "signal" for variable-driven changes, "edge" for
	// hardware-driven ones.
	Source string
}

// TransitionRecorder receives line transitions. Implementations must not
// block the event loop; slow sinks buffer internally.
type TransitionRecorder interface {
	Record(t Transition)
}

// Logger is the minimal logging interface the engine uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine synchronizes one registry with the variable server.
type Engine struct {
	mode     binding.Mode
	vars     varserver.Client
	registry *binding.Registry
	events   <-chan hardware.EdgeEvent

	recorders []TransitionRecorder
	logger    Logger
	state     atomic.Int32
}

// New creates an engine.
//
// Parameters:
//   - mode: signal or watch, matching the mode the registry was bound under
//   - vars: variable-directory client
//   - registry: the bound line set
//   - events: shared edge-event stream (watch mode; may be nil in signal mode)
func New(mode binding.Mode, vars varserver.Client, registry *binding.Registry, events <-chan hardware.EdgeEvent) *Engine {
	return &Engine{
		mode:     mode,
		vars:     vars,
		registry: registry,
		events:   events,
		logger:   noopLogger{},
	}
}

// SetLogger sets the engine's logger.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// AddRecorder registers a transition recorder.
func (e *Engine) AddRecorder(r TransitionRecorder) {
	if r != nil {
		e.recorders = append(e.recorders, r)
	}
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Run executes the synchronization loop until ctx is cancelled. Nothing
// inside the loop is fatal; runtime errors are logged and the offending
// event dropped. Run returns nil on graceful cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.state.Store(int32(StateStarting))
	defer e.state.Store(int32(StateTerminated))

	if e.mode == binding.SignalMode {
		e.registerInfoVariable(ctx)
	}

	e.state.Store(int32(StateRunning))
	e.logger.Info("engine running", "mode", e.mode.String())

	var err error
	if e.mode == binding.WatchMode {
		err = e.runWatch(ctx)
	} else {
		err = e.runSignal(ctx)
	}

	e.state.Store(int32(StateStopping))
	e.logger.Info("engine stopping")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// registerInfoVariable subscribes to print requests for the status variable.
// The variable is optional; a directory without it just has no status output.
func (e *Engine) registerInfoVariable(ctx context.Context) {
	handle, err := e.vars.FindByName(ctx, InfoVariable)
	if err != nil {
		e.logger.Warn("status variable unavailable", "var", InfoVariable, "error", err)
		return
	}
	if err := e.vars.Notify(ctx, handle, varserver.NotifyPrint); err != nil {
		e.logger.Warn("status print registration failed", "var", InfoVariable, "error", err)
	}
}

// runSignal is the signal-mode loop: one blocking wait, one signal handled,
// strictly in arrival order.
func (e *Engine) runSignal(ctx context.Context) error {
	for {
		sig, err := e.vars.NextSignal(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return context.Canceled
			}
			return fmt.Errorf("waiting for signal: %w", err)
		}

		switch sig.Kind {
		case varserver.SignalModified:
			e.handleModified(ctx, sig.Handle)
		case varserver.SignalQuery:
			e.handleQuery(ctx, sig.Handle)
		case varserver.SignalPrint:
			e.handlePrint(sig.Session)
		default:
			e.logger.Warn("unsupported signal kind ignored", "kind", int(sig.Kind))
		}
	}
}

// handleModified pushes a variable write out to its line.
func (e *Engine) handleModified(ctx context.Context, h varserver.Handle) {
	line := e.registry.FindLineByVar(h)
	if line == nil {
		e.logger.Warn("modified signal for unbound variable", "handle", uint32(h))
		return
	}
	if line.Direction == binding.DirInput {
		e.logger.Warn("modified signal for input line ignored",
			"var", line.VarName)
		return
	}

	value, err := e.vars.Get(ctx, h)
	if err != nil {
		e.logger.Warn("variable read failed", "var", line.VarName, "error", err)
		return
	}

	if line.Direction == binding.DirPWM {
		duty := uint32(value)
		if duty > pwm.MaxDuty {
			duty = pwm.MaxDuty
		}
		line.SetValue(duty)
		e.record(line, duty, "signal")
		return
	}

	level := uint32(0)
	if value != 0 {
		level = 1
	}
	if hw := line.Line(); hw != nil {
		if err := hw.SetValue(int(level)); err != nil {
			e.logger.Warn("hardware write failed",
				"chip", line.Chip, "line", line.Offset, "error", err)
			return
		}
	}
	line.SetValue(level)
	e.record(line, level, "signal")
}

// handleQuery refreshes a variable from its line's instantaneous level.
func (e *Engine) handleQuery(ctx context.Context, h varserver.Handle) {
	line := e.registry.FindLineByVar(h)
	if line == nil {
		e.logger.Warn("query signal for unbound variable", "handle", uint32(h))
		return
	}
	if line.Direction != binding.DirInput {
		e.logger.Warn("query signal for non-input line ignored",
			"var", line.VarName)
		return
	}
	hw := line.Line()
	if hw == nil {
		e.logger.Warn("query for unacquired line ignored", "var", line.VarName)
		return
	}

	value, err := hw.Value()
	if err != nil {
		e.logger.Warn("hardware read failed",
			"chip", line.Chip, "line", line.Offset, "error", err)
		return
	}

	level := uint32(0)
	if value != 0 {
		level = 1
	}
	if err := e.vars.Set(ctx, h, uint16(level)); err != nil {
		e.logger.Warn("variable write failed", "var", line.VarName, "error", err)
		return
	}
	line.SetValue(level)
}

// handlePrint renders the status report into the print session.
func (e *Engine) handlePrint(session string) {
	w := e.vars.OpenPrintSession(session)
	defer w.Close()

	if err := binding.WriteStatus(w, e.registry); err != nil {
		e.logger.Warn("status report failed", "session", session, "error", err)
	}
}

// runWatch is the watch-mode loop: drain the shared edge stream, mapping each
// transition back to its variable.
func (e *Engine) runWatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case evt := <-e.events:
			e.handleEdge(ctx, evt)
		}
	}
}

// handleEdge pushes one hardware transition into its variable.
func (e *Engine) handleEdge(ctx context.Context, evt hardware.EdgeEvent) {
	line := e.registry.FindLineByOffset(evt.Chip, evt.Offset)
	if line == nil {
		e.logger.Warn("edge event for unbound line",
			"chip", evt.Chip, "line", evt.Offset)
		return
	}

	level := uint32(0)
	if evt.Rising {
		level = 1
	}
	if err := e.vars.Set(ctx, line.Handle, uint16(level)); err != nil {
		e.logger.Warn("variable write failed", "var", line.VarName, "error", err)
		return
	}
	line.SetValue(level)
	e.record(line, level, "edge")
}

func (e *Engine) record(line *binding.LineDescriptor, value uint32, source string) {
	if len(e.recorders) == 0 {
		return
	}
	t := Transition{
		Time:   time.Now(),
		Chip:   line.Chip,
		Offset: line.Offset,
		Var:    line.VarName,
		Value:  value,
		Source: source,
	}
	for _, r := range e.recorders {
		r.Record(t)
	}
}
