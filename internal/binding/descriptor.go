package binding

import (
	"sync/atomic"

	"github.com/varbridge/gpioctrl/internal/hardware"
	"github.com/varbridge/gpioctrl/internal/pwm"
	"github.com/varbridge/gpioctrl/internal/varserver"
)

// Mode selects which lines a process instance acquires and which waiting
// mechanism its engine runs.
type Mode int

const (
	// SignalMode services variable-server signals: writes, queries and
	// print requests. Acquires every line without an edge subscription.
	SignalMode Mode = iota
	// WatchMode services hardware edge events. Acquires only
	// edge-subscribed lines.
	WatchMode
)

func (m Mode) String() string {
	if m == WatchMode {
		return "watch"
	}
	return "signal"
}

// LineDirection is a line's configured role.
type LineDirection int

const (
	// DirInput reads the line on variable queries.
	DirInput LineDirection = iota
	// DirOutput drives the line from variable writes.
	DirOutput
	// DirPWM drives the line with a software PWM waveform whose duty
	// follows the variable.
	DirPWM
)

func (d LineDirection) String() string {
	switch d {
	case DirOutput:
		return "output"
	case DirPWM:
		return "pwm"
	default:
		return "input"
	}
}

// LineDescriptor is one bound line. Fields other than the value counter are
// fixed once binding completes.
type LineDescriptor struct {
	// Chip is the owning chip's name.
	Chip string
	// Offset is the line's offset on its chip.
	Offset int
	// Name is the hardware-reported line name, empty when unnamed.
	Name string

	// VarName and Handle identify the bound variable.
	VarName string
	Handle  varserver.Handle

	Direction LineDirection
	ActiveLow bool
	Drive     hardware.Drive
	Bias      hardware.Bias
	Edge      hardware.Edge

	// value holds 0/1 for plain lines and the duty in [0,255] for pwm
	// lines. Written by the engine, read by the line's PWM driver.
	value atomic.Uint32

	// line is the exclusively owned hardware handle, nil when this
	// process instance did not acquire the line (mode mismatch).
	line hardware.Line

	// driver is the running PWM driver, pwm lines in signal mode only.
	driver *pwm.Driver
}

// Value returns the line's last known logical value or duty.
func (l *LineDescriptor) Value() uint32 { return l.value.Load() }

// SetValue stores the line's logical value or duty.
func (l *LineDescriptor) SetValue(v uint32) { l.value.Store(v) }

// Line returns the hardware handle, nil when unacquired.
func (l *LineDescriptor) Line() hardware.Line { return l.line }

// Acquired reports whether this process instance owns the hardware line.
func (l *LineDescriptor) Acquired() bool { return l.line != nil }

// HasEdge reports whether the line carries an edge subscription.
func (l *LineDescriptor) HasEdge() bool { return l.Edge != hardware.EdgeNone }

// ChipDescriptor is one opened chip and its lines in document order.
type ChipDescriptor struct {
	Name  string
	Lines []*LineDescriptor

	chip hardware.Chip
}

// Registry is the ordered set of bound chips. Built during binding,
// structurally read-only afterwards.
type Registry struct {
	Chips []*ChipDescriptor
}

// FindLineByVar returns the first line bound to the variable, scanning chips
// then lines in insertion order, or nil when none matches.
func (r *Registry) FindLineByVar(h varserver.Handle) *LineDescriptor {
	for _, chip := range r.Chips {
		for _, line := range chip.Lines {
			if line.Handle == h {
				return line
			}
		}
	}
	return nil
}

// FindLineByOffset returns the line at offset on the named chip, or nil.
// Used to map a raw edge event back to its variable.
func (r *Registry) FindLineByOffset(chip string, offset int) *LineDescriptor {
	for _, c := range r.Chips {
		if c.Name != chip {
			continue
		}
		for _, line := range c.Lines {
			if line.Offset == offset {
				return line
			}
		}
	}
	return nil
}

// Lines returns every line in chip-then-line insertion order.
func (r *Registry) Lines() []*LineDescriptor {
	var out []*LineDescriptor
	for _, chip := range r.Chips {
		out = append(out, chip.Lines...)
	}
	return out
}

// StopDrivers stops every running PWM driver and waits for each to exit.
func (r *Registry) StopDrivers() {
	for _, chip := range r.Chips {
		for _, line := range chip.Lines {
			if line.driver != nil {
				line.driver.Stop()
			}
		}
	}
}

// Close releases every acquired hardware line and then every chip. PWM
// drivers must be stopped first.
func (r *Registry) Close() error {
	var firstErr error
	for _, chip := range r.Chips {
		for _, line := range chip.Lines {
			if line.line == nil {
				continue
			}
			if err := line.line.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if chip.chip == nil {
			continue
		}
		if err := chip.chip.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
