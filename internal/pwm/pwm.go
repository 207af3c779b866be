// Package pwm implements software pulse-width modulation for a single GPIO
// line.
//
// One Driver runs one timing goroutine. The duty cycle is read atomically at
// the top of every period from a shared counter owned by the line descriptor,
// so a duty change takes effect within one period without any locking. The
// driver is the only writer of its line's hardware level while running.
package pwm

import (
	"context"
	"sync/atomic"
	"time"
)

// MaxDuty is the full-scale duty value. Duty D drives the line high for
// D/MaxDuty of each period.
const MaxDuty = 255

// Output is the hardware line the driver toggles.
type Output interface {
	SetValue(value int) error
}

// Logger is the minimal logging interface the driver uses.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Driver drives one line with a software PWM waveform.
//
// With the default 40µs quantum a full period is MaxDuty×40µs ≈ 10.2ms,
// roughly 98Hz. Duty 0 holds the line low, MaxDuty holds it high; zero-length
// phases are skipped entirely so those endpoints produce a steady level with
// no glitch pulses.
type Driver struct {
	out     Output
	duty    *atomic.Uint32
	quantum time.Duration
	logger  Logger

	// sleep waits for d or until ctx is cancelled, returning false on
	// cancellation. Replaced in tests to run periods without real time.
	sleep func(ctx context.Context, d time.Duration) bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a driver for out, reading its duty from duty.
//
// Parameters:
//   - out: hardware line to toggle
//   - duty: shared duty counter, clamped to [0, MaxDuty] each period
//   - quantum: per-duty-unit high/low time
func New(out Output, duty *atomic.Uint32, quantum time.Duration) *Driver {
	return &Driver{
		out:     out,
		duty:    duty,
		quantum: quantum,
		logger:  noopLogger{},
		sleep:   sleepReal,
	}
}

// SetLogger sets a logger for hardware write warnings.
func (d *Driver) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Start launches the timing goroutine. It returns immediately; the waveform
// runs until ctx is cancelled or Stop is called.
func (d *Driver) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(runCtx)
}

// Stop cancels the timing goroutine and waits for it to exit. The line is
// left low. Stop is a no-op if the driver was never started.
func (d *Driver) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

func (d *Driver) run(ctx context.Context) {
	defer close(d.done)
	defer d.setValue(0)

	for {
		duty := d.duty.Load()
		if duty > MaxDuty {
			duty = MaxDuty
		}

		high := time.Duration(duty) * d.quantum
		low := time.Duration(MaxDuty-duty) * d.quantum

		if high > 0 {
			d.setValue(1)
			if !d.sleep(ctx, high) {
				return
			}
		}
		if low > 0 {
			d.setValue(0)
			if !d.sleep(ctx, low) {
				return
			}
		}
	}
}

func (d *Driver) setValue(v int) {
	if err := d.out.SetValue(v); err != nil {
		d.logger.Warn("PWM hardware write failed", "value", v, "error", err)
	}
}

func sleepReal(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
