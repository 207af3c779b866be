package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/varbridge/gpioctrl/internal/gpiodef"
	"github.com/varbridge/gpioctrl/internal/hardware"
	"github.com/varbridge/gpioctrl/internal/pwm"
	"github.com/varbridge/gpioctrl/internal/varserver"
)

// MaxMonitoredLines caps the edge-monitored set for one process instance.
const MaxMonitoredLines = 64

// Logger is the minimal logging interface the binder uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Binder turns a mapping document into a Registry.
type Binder struct {
	vars     varserver.Client
	opener   hardware.Opener
	mode     Mode
	consumer string
	quantum  time.Duration
	logger   Logger

	// events is the fan-in stream all monitored lines deliver into.
	events    chan hardware.EdgeEvent
	monitored int
}

// NewBinder creates a binder.
//
// Parameters:
//   - vars: variable-directory client for name resolution and notifications
//   - opener: hardware chip opener
//   - mode: which lines this process instance acquires
//   - consumer: label attached to hardware line requests
//   - quantum: PWM per-unit time quantum
func NewBinder(vars varserver.Client, opener hardware.Opener, mode Mode, consumer string, quantum time.Duration) *Binder {
	return &Binder{
		vars:     vars,
		opener:   opener,
		mode:     mode,
		consumer: consumer,
		quantum:  quantum,
		logger:   noopLogger{},
		events:   make(chan hardware.EdgeEvent, MaxMonitoredLines),
	}
}

// SetLogger sets a logger for per-line binding outcomes.
func (b *Binder) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Events returns the shared edge-event stream. The watch-mode engine drains
// it; it carries nothing in signal mode.
func (b *Binder) Events() <-chan hardware.EdgeEvent {
	return b.events
}

// Bind walks the document and builds the Registry.
//
// Binding is best-effort: a chip that fails to open loses all its lines, a
// line that fails any resolution step is skipped, and everything else binds
// normally. The Report records every line's outcome. Bind returns an error
// only when the document yields an empty registry-wide bound set.
//
// PWM drivers started during binding run under ctx; cancelling it stops them.
func (b *Binder) Bind(ctx context.Context, doc *gpiodef.Document) (*Registry, *Report, error) {
	registry := &Registry{}
	report := &Report{}
	seen := make(map[varserver.Handle]string)

	for _, chipDef := range doc.Chips {
		chip, err := b.opener.OpenChip(chipDef.Chip)
		if err != nil {
			b.logger.Warn("chip open failed, skipping its lines",
				"chip", chipDef.Chip, "error", err)
			for _, lineDef := range chipDef.Lines {
				report.add(Outcome{
					Chip:   chipDef.Chip,
					Line:   lineDef.Line,
					Var:    lineDef.Var,
					Reason: fmt.Sprintf("chip open failed: %v", err),
				})
			}
			continue
		}

		chipDesc := &ChipDescriptor{Name: chipDef.Chip, chip: chip}
		registry.Chips = append(registry.Chips, chipDesc)

		for _, lineDef := range chipDef.Lines {
			desc, outcome := b.bindLine(ctx, chip, chipDef.Chip, lineDef, seen)
			report.add(outcome)
			if desc != nil {
				chipDesc.Lines = append(chipDesc.Lines, desc)
			}
		}
	}

	if report.BoundCount() == 0 {
		return registry, report, fmt.Errorf("binding: no lines bound (%d skipped)", report.SkippedCount())
	}

	return registry, report, nil
}

// bindLine resolves one line definition. A nil descriptor means the line was
// skipped; the outcome says why.
func (b *Binder) bindLine(ctx context.Context, chip hardware.Chip, chipName string, def gpiodef.LineDef, seen map[varserver.Handle]string) (*LineDescriptor, Outcome) {
	outcome := Outcome{Chip: chipName, Line: def.Line, Var: def.Var}

	skip := func(reason string, args ...any) (*LineDescriptor, Outcome) {
		outcome.Reason = fmt.Sprintf(reason, args...)
		b.logger.Warn("line skipped",
			"chip", chipName, "line", def.Line, "var", def.Var,
			"reason", outcome.Reason)
		return nil, outcome
	}

	handle, err := b.vars.FindByName(ctx, def.Var)
	if err != nil {
		return skip("variable lookup failed: %v", err)
	}

	if prior, dup := seen[handle]; dup {
		return skip("%v: already bound to line %s", ErrDuplicateVariable, prior)
	}

	offset, err := def.Offset()
	if err != nil {
		return skip("bad line offset: %v", err)
	}

	direction, err := parseDirection(def.Direction)
	if err != nil {
		return skip("%v", err)
	}

	desc := &LineDescriptor{
		Chip:      chipName,
		Offset:    offset,
		Name:      chip.LineName(offset),
		VarName:   def.Var,
		Handle:    handle,
		Direction: direction,
	}

	// Seed output values from the variable's current state. A wrong-typed
	// variable is a configuration error but not fatal to the line; the
	// seed stays zero.
	if direction == DirOutput || direction == DirPWM {
		value, err := b.vars.Get(ctx, handle)
		switch {
		case errors.Is(err, varserver.ErrWrongType):
			b.logger.Warn("variable is not uint16, seeding zero",
				"var", def.Var)
		case err != nil:
			b.logger.Warn("variable read failed, seeding zero",
				"var", def.Var, "error", err)
		default:
			desc.SetValue(uint32(value))
		}
	}

	if desc.ActiveLow, err = parseActiveState(def.ActiveState); err != nil {
		return skip("%v", err)
	}
	if desc.Bias, err = parseBias(def.Bias); err != nil {
		return skip("%v", err)
	}
	if desc.Drive, err = parseDrive(def.Drive); err != nil {
		return skip("%v", err)
	}
	if desc.Edge, err = parseEvent(def.Event); err != nil {
		desc.Edge = hardware.EdgeNone
		return skip("%v", err)
	}

	// Acquisition is mode-split: edge lines belong to the watch instance,
	// everything else to the signal instance. Lines owned by the other
	// mode still join the registry unacquired.
	wantAcquire := desc.HasEdge() == (b.mode == WatchMode)
	if !wantAcquire {
		seen[handle] = def.Line
		outcome.Bound = true
		outcome.Reason = fmt.Sprintf("owned by %s mode instance", otherMode(b.mode))
		return desc, outcome
	}

	if desc.HasEdge() && b.monitored >= MaxMonitoredLines {
		return skip("%v: limit %d", ErrMonitorCapacity, MaxMonitoredLines)
	}

	line, err := chip.RequestLine(offset, b.lineConfig(desc))
	if err != nil {
		return skip("line request failed: %v", err)
	}
	desc.line = line
	if desc.HasEdge() {
		b.monitored++
	}

	if kind, want := notifyKind(desc); want {
		if err := b.vars.Notify(ctx, handle, kind); err != nil {
			line.Close()
			desc.line = nil
			return skip("notification registration failed: %v", err)
		}
	}

	if b.mode == SignalMode && direction == DirPWM {
		desc.driver = pwm.New(line, &desc.value, b.quantum)
		if l, ok := b.logger.(pwm.Logger); ok {
			desc.driver.SetLogger(l)
		}
		desc.driver.Start(ctx)
	}

	seen[handle] = def.Line
	outcome.Bound = true
	outcome.Acquired = true
	b.logger.Info("line bound",
		"chip", chipName, "line", desc.Offset, "var", def.Var,
		"direction", direction.String())
	return desc, outcome
}

// lineConfig translates a descriptor into a hardware request.
func (b *Binder) lineConfig(desc *LineDescriptor) hardware.LineConfig {
	cfg := hardware.LineConfig{
		ActiveLow: desc.ActiveLow,
		Drive:     desc.Drive,
		Bias:      desc.Bias,
		Edge:      desc.Edge,
		Consumer:  b.consumer,
	}

	switch desc.Direction {
	case DirOutput:
		cfg.Direction = hardware.Output
		if desc.Value() != 0 {
			cfg.InitialValue = 1
		}
	case DirPWM:
		// PWM starts fully off and ramps under its own driver,
		// whatever duty was seeded.
		cfg.Direction = hardware.Output
		cfg.InitialValue = 0
	default:
		cfg.Direction = hardware.Input
	}

	if desc.HasEdge() {
		events := b.events
		logger := b.logger
		cfg.Handler = func(evt hardware.EdgeEvent) {
			select {
			case events <- evt:
			default:
				logger.Warn("edge event dropped, stream full",
					"chip", evt.Chip, "line", evt.Offset)
			}
		}
	}

	return cfg
}

// notifyKind picks the variable-server registration for an acquired line.
func notifyKind(desc *LineDescriptor) (varserver.NotifyKind, bool) {
	switch {
	case desc.Direction == DirOutput || desc.Direction == DirPWM:
		return varserver.NotifyModified, true
	case !desc.HasEdge():
		return varserver.NotifyQuery, true
	default:
		// Edge inputs are driven by hardware events, not the server.
		return 0, false
	}
}

func otherMode(m Mode) Mode {
	if m == SignalMode {
		return WatchMode
	}
	return SignalMode
}

func parseDirection(s string) (LineDirection, error) {
	switch s {
	case "", "input":
		return DirInput, nil
	case "output":
		return DirOutput, nil
	case "pwm":
		return DirPWM, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", ErrUnknownAttribute, s)
	}
}

func parseActiveState(s string) (bool, error) {
	switch s {
	case "", "high":
		return false, nil
	case "low":
		return true, nil
	default:
		return false, fmt.Errorf("%w: active_state %q", ErrUnknownAttribute, s)
	}
}

func parseBias(s string) (hardware.Bias, error) {
	switch s {
	case "":
		return hardware.BiasUnset, nil
	case "disabled":
		return hardware.BiasDisabled, nil
	case "pull-up":
		return hardware.PullUp, nil
	case "pull-down":
		return hardware.PullDown, nil
	default:
		return 0, fmt.Errorf("%w: bias %q", ErrUnknownAttribute, s)
	}
}

func parseDrive(s string) (hardware.Drive, error) {
	switch s {
	case "", "push-pull":
		return hardware.PushPull, nil
	case "open-drain":
		return hardware.OpenDrain, nil
	case "open-source":
		return hardware.OpenSource, nil
	default:
		return 0, fmt.Errorf("%w: drive %q", ErrUnknownAttribute, s)
	}
}

func parseEvent(s string) (hardware.Edge, error) {
	switch s {
	case "":
		return hardware.EdgeNone, nil
	case "RISING_EDGE":
		return hardware.EdgeRising, nil
	case "FALLING_EDGE":
		return hardware.EdgeFalling, nil
	case "BOTH_EDGES":
		return hardware.EdgeBoth, nil
	default:
		return hardware.EdgeNone, fmt.Errorf("%w: event %q", ErrUnknownAttribute, s)
	}
}
