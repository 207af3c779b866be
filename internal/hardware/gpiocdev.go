//go:build linux

package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevOpener opens chips through the Linux GPIO character device.
type CdevOpener struct{}

// OpenChip opens the named chip (for example "gpiochip0").
func (CdevOpener) OpenChip(name string) (Chip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrChipOpen, name, err)
	}
	return &cdevChip{chip: c}, nil
}

type cdevChip struct {
	chip *gpiocdev.Chip
}

func (c *cdevChip) Name() string {
	return c.chip.Name
}

func (c *cdevChip) LineName(offset int) string {
	info, err := c.chip.LineInfo(offset)
	if err != nil {
		return ""
	}
	return info.Name
}

func (c *cdevChip) RequestLine(offset int, cfg LineConfig) (Line, error) {
	opts, err := requestOptions(c.chip.Name, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s line %d: %w", ErrLineRequest, c.chip.Name, offset, err)
	}

	l, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s line %d: %w", ErrLineRequest, c.chip.Name, offset, err)
	}
	return &cdevLine{line: l}, nil
}

func (c *cdevChip) Close() error {
	return c.chip.Close()
}

// requestOptions translates a LineConfig into gpiocdev request options.
func requestOptions(chipName string, cfg LineConfig) ([]gpiocdev.LineReqOption, error) {
	var opts []gpiocdev.LineReqOption

	if cfg.Consumer != "" {
		opts = append(opts, gpiocdev.WithConsumer(cfg.Consumer))
	}

	switch cfg.Direction {
	case Input:
		opts = append(opts, gpiocdev.AsInput)
	case Output:
		opts = append(opts, gpiocdev.AsOutput(cfg.InitialValue))
	default:
		return nil, fmt.Errorf("unknown direction %d", cfg.Direction)
	}

	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	switch cfg.Drive {
	case PushPull:
		// kernel default
	case OpenDrain:
		opts = append(opts, gpiocdev.AsOpenDrain)
	case OpenSource:
		opts = append(opts, gpiocdev.AsOpenSource)
	default:
		return nil, fmt.Errorf("unknown drive %d", cfg.Drive)
	}

	switch cfg.Bias {
	case BiasUnset:
	case BiasDisabled:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		return nil, fmt.Errorf("unknown bias %d", cfg.Bias)
	}

	if cfg.Edge != EdgeNone {
		switch cfg.Edge {
		case EdgeRising:
			opts = append(opts, gpiocdev.WithRisingEdge)
		case EdgeFalling:
			opts = append(opts, gpiocdev.WithFallingEdge)
		case EdgeBoth:
			opts = append(opts, gpiocdev.WithBothEdges)
		default:
			return nil, fmt.Errorf("unknown edge %d", cfg.Edge)
		}
		if cfg.Handler != nil {
			handler := cfg.Handler
			opts = append(opts, gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				handler(EdgeEvent{
					Chip:      chipName,
					Offset:    evt.Offset,
					Rising:    evt.Type == gpiocdev.LineEventRisingEdge,
					Timestamp: evt.Timestamp,
				})
			}))
		}
	}

	return opts, nil
}

type cdevLine struct {
	line *gpiocdev.Line
}

func (l *cdevLine) SetValue(value int) error {
	if value != 0 {
		value = 1
	}
	return l.line.SetValue(value)
}

func (l *cdevLine) Value() (int, error) {
	return l.line.Value()
}

func (l *cdevLine) Close() error {
	return l.line.Close()
}
