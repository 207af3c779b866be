// Package hardware abstracts GPIO chip and line access.
//
// The binder and engine depend only on the Chip and Line interfaces declared
// here; the production backend in gpiocdev.go drives the Linux GPIO character
// device through go-gpiocdev. Tests substitute in-memory fakes.
//
// A Line is exclusively owned by its requester until closed. Edge events are
// delivered asynchronously to the handler supplied at request time; handlers
// must not block.
package hardware

import (
	"errors"
	"time"
)

// Direction selects how a line is requested.
type Direction int

const (
	// Input requests the line for reading.
	Input Direction = iota
	// Output requests the line for writing with an initial value.
	Output
)

// Drive selects the output drive topology.
type Drive int

const (
	PushPull Drive = iota
	OpenDrain
	OpenSource
)

// Bias selects the internal pull resistor configuration.
type Bias int

const (
	// BiasUnset leaves the kernel default in place.
	BiasUnset Bias = iota
	BiasDisabled
	PullUp
	PullDown
)

// Edge selects which transitions generate events.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// LineConfig carries everything needed to request a line.
type LineConfig struct {
	Direction    Direction
	InitialValue int
	ActiveLow    bool
	Drive        Drive
	Bias         Bias
	Edge         Edge

	// Consumer is the label attached to the request, visible in gpioinfo.
	Consumer string

	// Handler receives edge events when Edge is not EdgeNone.
	Handler EventHandler
}

// EdgeEvent is a single observed line transition.
type EdgeEvent struct {
	// Chip is the name of the chip the line belongs to.
	Chip string
	// Offset is the line offset on its chip.
	Offset int
	// Rising is true for an inactive-to-active transition.
	Rising bool
	// Timestamp is the kernel-reported event time.
	Timestamp time.Duration
}

// EventHandler receives edge events for a requested line.
type EventHandler func(EdgeEvent)

// Chip is an opened GPIO chip.
type Chip interface {
	// Name returns the chip's system name (for example "gpiochip0").
	Name() string

	// LineName returns the hardware-reported name of the line at offset,
	// or the empty string when the line is unnamed.
	LineName(offset int) string

	// RequestLine acquires exclusive ownership of the line at offset.
	RequestLine(offset int, cfg LineConfig) (Line, error)

	// Close releases the chip. Lines requested from it remain valid until
	// individually closed.
	Close() error
}

// Line is an exclusively owned GPIO line.
type Line interface {
	// SetValue drives the line to the given logical value (0 or non-zero).
	SetValue(value int) error

	// Value reads the line's current logical value.
	Value() (int, error)

	// Close releases the line.
	Close() error
}

// Opener opens chips by name. The binder takes an Opener so tests can hand it
// fake chips.
type Opener interface {
	OpenChip(name string) (Chip, error)
}

// Sentinel errors for hardware operations.
var (
	// ErrChipOpen indicates a GPIO chip could not be opened.
	ErrChipOpen = errors.New("hardware: chip open failed")

	// ErrLineRequest indicates a line could not be acquired.
	ErrLineRequest = errors.New("hardware: line request failed")
)
