package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/varbridge/gpioctrl/internal/gpiodef"
	"github.com/varbridge/gpioctrl/internal/hardware"
	"github.com/varbridge/gpioctrl/internal/varserver"
)

// fakeVars is an in-memory variable directory.
type fakeVars struct {
	handles   map[string]varserver.Handle
	values    map[varserver.Handle]uint16
	wrongType map[varserver.Handle]bool

	notifications map[varserver.Handle]varserver.NotifyKind
	notifyErr     error
	sets          []setCall
}

type setCall struct {
	handle varserver.Handle
	value  uint16
}

func newFakeVars() *fakeVars {
	return &fakeVars{
		handles:       make(map[string]varserver.Handle),
		values:        make(map[varserver.Handle]uint16),
		wrongType:     make(map[varserver.Handle]bool),
		notifications: make(map[varserver.Handle]varserver.NotifyKind),
	}
}

func (f *fakeVars) addVar(name string, h varserver.Handle, value uint16) {
	f.handles[name] = h
	f.values[h] = value
}

func (f *fakeVars) FindByName(_ context.Context, name string) (varserver.Handle, error) {
	h, ok := f.handles[name]
	if !ok {
		return 0, varserver.ErrNotFound
	}
	return h, nil
}

func (f *fakeVars) Get(_ context.Context, h varserver.Handle) (uint16, error) {
	if f.wrongType[h] {
		return 0, varserver.ErrWrongType
	}
	return f.values[h], nil
}

func (f *fakeVars) Set(_ context.Context, h varserver.Handle, v uint16) error {
	f.values[h] = v
	f.sets = append(f.sets, setCall{h, v})
	return nil
}

func (f *fakeVars) Notify(_ context.Context, h varserver.Handle, kind varserver.NotifyKind) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications[h] = kind
	return nil
}

func (f *fakeVars) NextSignal(ctx context.Context) (varserver.Signal, error) {
	<-ctx.Done()
	return varserver.Signal{}, ctx.Err()
}

func (f *fakeVars) OpenPrintSession(string) io.WriteCloser {
	return nopWriteCloser{io.Discard}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// fakeOpener hands out fakeChips by name.
type fakeOpener struct {
	chips   map[string]*fakeChip
	openErr map[string]error
}

func newFakeOpener(names ...string) *fakeOpener {
	o := &fakeOpener{
		chips:   make(map[string]*fakeChip),
		openErr: make(map[string]error),
	}
	for _, name := range names {
		o.chips[name] = &fakeChip{
			name:      name,
			lineNames: make(map[int]string),
			requests:  make(map[int]*fakeLine),
		}
	}
	return o
}

func (o *fakeOpener) OpenChip(name string) (hardware.Chip, error) {
	if err := o.openErr[name]; err != nil {
		return nil, err
	}
	chip, ok := o.chips[name]
	if !ok {
		return nil, hardware.ErrChipOpen
	}
	return chip, nil
}

type fakeChip struct {
	name      string
	lineNames map[int]string
	requests  map[int]*fakeLine
	reqErr    error
}

func (c *fakeChip) Name() string               { return c.name }
func (c *fakeChip) LineName(offset int) string { return c.lineNames[offset] }
func (c *fakeChip) Close() error               { return nil }

func (c *fakeChip) RequestLine(offset int, cfg hardware.LineConfig) (hardware.Line, error) {
	if c.reqErr != nil {
		return nil, c.reqErr
	}
	if _, claimed := c.requests[offset]; claimed {
		return nil, hardware.ErrLineRequest
	}
	line := &fakeLine{offset: offset, cfg: cfg, value: cfg.InitialValue}
	c.requests[offset] = line
	return line, nil
}

type fakeLine struct {
	offset int
	cfg    hardware.LineConfig
	value  int
	closed bool
}

func (l *fakeLine) SetValue(v int) error {
	if v != 0 {
		v = 1
	}
	l.value = v
	return nil
}

func (l *fakeLine) Value() (int, error) { return l.value, nil }
func (l *fakeLine) Close() error        { l.closed = true; return nil }

func lineDef(offset int, varName, direction string) gpiodef.LineDef {
	return gpiodef.LineDef{
		Line:      strconv.Itoa(offset),
		Var:       varName,
		Direction: direction,
	}
}

func newTestBinder(vars varserver.Client, opener hardware.Opener, mode Mode) *Binder {
	return NewBinder(vars, opener, mode, "gpioctrl", 40*time.Microsecond)
}

func TestBind_OutputLine(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 0)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(4, "/HW/GPIO/P4", "output")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, report, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if report.BoundCount() != 1 {
		t.Fatalf("bound = %d, want 1", report.BoundCount())
	}

	line := opener.chips["gpiochip0"].requests[4]
	if line == nil {
		t.Fatal("line 4 was not requested")
	}
	if line.cfg.Direction != hardware.Output {
		t.Error("line should be requested as output")
	}
	if line.cfg.InitialValue != 0 {
		t.Errorf("initial value = %d, want 0", line.cfg.InitialValue)
	}
	if line.cfg.Consumer != "gpioctrl" {
		t.Errorf("consumer = %q, want %q", line.cfg.Consumer, "gpioctrl")
	}

	desc := registry.FindLineByVar(10)
	if desc == nil {
		t.Fatal("bound variable not found in registry")
	}
	if desc.Direction != DirOutput || desc.Offset != 4 {
		t.Errorf("descriptor = %+v", desc)
	}
	if vars.notifications[10] != varserver.NotifyModified {
		t.Error("output line should register a modified notification")
	}
}

func TestBind_OutputSeededFromVariable(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 7)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(4, "/HW/GPIO/P4", "output")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, _, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	if got := opener.chips["gpiochip0"].requests[4].cfg.InitialValue; got != 1 {
		t.Errorf("nonzero seed should request initial value 1, got %d", got)
	}
	if got := registry.FindLineByVar(10).Value(); got != 7 {
		t.Errorf("seeded value = %d, want 7", got)
	}
}

func TestBind_WrongTypeSeedsZero(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 999)
	vars.wrongType[10] = true
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(4, "/HW/GPIO/P4", "output")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, report, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if report.BoundCount() != 1 {
		t.Fatal("a wrong-typed seed is not fatal to the line")
	}
	if got := registry.FindLineByVar(10).Value(); got != 0 {
		t.Errorf("seed = %d, want 0", got)
	}
	if got := opener.chips["gpiochip0"].requests[4].cfg.InitialValue; got != 0 {
		t.Errorf("initial value = %d, want 0", got)
	}
}

func TestBind_PWMInitialValueForcedLow(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P18", 11, 200)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(18, "/HW/GPIO/P18", "pwm")}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newTestBinder(vars, opener, SignalMode)
	registry, _, err := b.Bind(ctx, doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	defer registry.StopDrivers()

	if got := opener.chips["gpiochip0"].requests[18].cfg.InitialValue; got != 0 {
		t.Errorf("pwm initial hardware value = %d, want 0", got)
	}

	desc := registry.FindLineByVar(11)
	if got := desc.Value(); got != 200 {
		t.Errorf("seeded duty = %d, want 200", got)
	}
	if desc.driver == nil {
		t.Error("pwm line in signal mode should have a running driver")
	}
	if vars.notifications[11] != varserver.NotifyModified {
		t.Error("pwm line should register a modified notification")
	}
}

func TestBind_InputRegistersQueryNotification(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P9", 12, 0)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(9, "/HW/GPIO/P9", "input")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	if _, _, err := b.Bind(context.Background(), doc); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	if vars.notifications[12] != varserver.NotifyQuery {
		t.Error("polled input should register a query notification")
	}
	if got := opener.chips["gpiochip0"].requests[9].cfg.Direction; got != hardware.Input {
		t.Error("line should be requested as input")
	}
}

func TestBind_DirectionDefaultsToInput(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P9", 12, 0)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(9, "/HW/GPIO/P9", "")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, _, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if got := registry.FindLineByVar(12).Direction; got != DirInput {
		t.Errorf("direction = %v, want input", got)
	}
}

func TestBind_MalformedLineDoesNotAbortSiblings(t *testing.T) {
	tests := []struct {
		name string
		def  gpiodef.LineDef
	}{
		{"unknown direction", gpiodef.LineDef{Line: "5", Var: "/HW/GPIO/BAD", Direction: "sideways"}},
		{"unknown active_state", gpiodef.LineDef{Line: "5", Var: "/HW/GPIO/BAD", ActiveState: "medium"}},
		{"unknown bias", gpiodef.LineDef{Line: "5", Var: "/HW/GPIO/BAD", Bias: "strong"}},
		{"unknown drive", gpiodef.LineDef{Line: "5", Var: "/HW/GPIO/BAD", Drive: "hard"}},
		{"unknown event", gpiodef.LineDef{Line: "5", Var: "/HW/GPIO/BAD", Event: "ANY_EDGE"}},
		{"bad offset", gpiodef.LineDef{Line: "five", Var: "/HW/GPIO/BAD"}},
		{"unresolvable variable", gpiodef.LineDef{Line: "5", Var: "/HW/GPIO/ABSENT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := newFakeVars()
			vars.addVar("/HW/GPIO/P4", 10, 0)
			vars.addVar("/HW/GPIO/P6", 11, 0)
			vars.addVar("/HW/GPIO/BAD", 12, 0)
			opener := newFakeOpener("gpiochip0")

			doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
				{Chip: "gpiochip0", Lines: []gpiodef.LineDef{
					lineDef(4, "/HW/GPIO/P4", "output"),
					tt.def,
					lineDef(6, "/HW/GPIO/P6", "output"),
				}},
			}}

			b := newTestBinder(vars, opener, SignalMode)
			registry, report, err := b.Bind(context.Background(), doc)
			if err != nil {
				t.Fatalf("Bind() error: %v", err)
			}
			if report.BoundCount() != 2 {
				t.Errorf("bound = %d, want 2", report.BoundCount())
			}
			if report.SkippedCount() != 1 {
				t.Errorf("skipped = %d, want 1", report.SkippedCount())
			}
			if got := len(registry.Lines()); got != 2 {
				t.Errorf("registry lines = %d, want 2", got)
			}
			for _, e := range report.Entries {
				if !e.Bound && e.Reason == "" {
					t.Error("skipped entry should carry a reason")
				}
			}
		})
	}
}

func TestBind_DuplicateVariableRejected(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 0)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{
			lineDef(4, "/HW/GPIO/P4", "output"),
			lineDef(5, "/HW/GPIO/P4", "output"),
		}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, report, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if report.BoundCount() != 1 {
		t.Errorf("bound = %d, want 1", report.BoundCount())
	}
	if !strings.Contains(report.Entries[1].Reason, "already bound") {
		t.Errorf("second line reason = %q", report.Entries[1].Reason)
	}
	if registry.FindLineByVar(10).Offset != 4 {
		t.Error("first line should win the variable")
	}
}

func TestBind_ChipOpenFailureSkipsChip(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 0)
	vars.addVar("/HW/GPIO/AUX0", 11, 0)
	opener := newFakeOpener("gpiochip0", "gpiochip1")
	opener.openErr["gpiochip0"] = fmt.Errorf("no such device")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(4, "/HW/GPIO/P4", "output")}},
		{Chip: "gpiochip1", Lines: []gpiodef.LineDef{lineDef(0, "/HW/GPIO/AUX0", "output")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, report, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if len(registry.Chips) != 1 || registry.Chips[0].Name != "gpiochip1" {
		t.Errorf("registry should hold only the healthy chip")
	}
	if report.BoundCount() != 1 || report.SkippedCount() != 1 {
		t.Errorf("bound/skipped = %d/%d, want 1/1", report.BoundCount(), report.SkippedCount())
	}
}

func TestBind_ModeSplit(t *testing.T) {
	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{
			lineDef(4, "/HW/GPIO/P4", "output"),
			{Line: "26", Var: "/HW/GPIO/P26", Direction: "input", Event: "BOTH_EDGES"},
		}},
	}}

	tests := []struct {
		name         string
		mode         Mode
		wantAcquired int // line offset acquired in this mode
		wantDeferred int
	}{
		{"signal mode acquires plain lines", SignalMode, 4, 26},
		{"watch mode acquires edge lines", WatchMode, 26, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := newFakeVars()
			vars.addVar("/HW/GPIO/P4", 10, 0)
			vars.addVar("/HW/GPIO/P26", 11, 0)
			opener := newFakeOpener("gpiochip0")

			b := newTestBinder(vars, opener, tt.mode)
			registry, report, err := b.Bind(context.Background(), doc)
			if err != nil {
				t.Fatalf("Bind() error: %v", err)
			}
			if report.BoundCount() != 2 {
				t.Fatalf("bound = %d, want 2 (both lines stay in the registry)", report.BoundCount())
			}

			requests := opener.chips["gpiochip0"].requests
			if _, ok := requests[tt.wantAcquired]; !ok {
				t.Errorf("line %d should be requested in %s mode", tt.wantAcquired, tt.mode)
			}
			if _, ok := requests[tt.wantDeferred]; ok {
				t.Errorf("line %d should not be requested in %s mode", tt.wantDeferred, tt.mode)
			}

			deferred := registry.FindLineByOffset("gpiochip0", tt.wantDeferred)
			if deferred == nil {
				t.Fatal("deferred line missing from registry")
			}
			if deferred.Acquired() {
				t.Error("deferred line should not be acquired")
			}
		})
	}
}

func TestBind_EdgeLineDeliversToEventStream(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P26", 11, 0)
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{
			{Line: "26", Var: "/HW/GPIO/P26", Direction: "input", Event: "BOTH_EDGES"},
		}},
	}}

	b := newTestBinder(vars, opener, WatchMode)
	if _, _, err := b.Bind(context.Background(), doc); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	handler := opener.chips["gpiochip0"].requests[26].cfg.Handler
	if handler == nil {
		t.Fatal("edge line request carries no event handler")
	}

	handler(hardware.EdgeEvent{Chip: "gpiochip0", Offset: 26, Rising: true})

	select {
	case evt := <-b.Events():
		if evt.Offset != 26 || !evt.Rising {
			t.Errorf("event = %+v", evt)
		}
	default:
		t.Fatal("event not delivered to the shared stream")
	}

	// Edge inputs get no varserver notification.
	if _, registered := vars.notifications[11]; registered {
		t.Error("edge line should not register a varserver notification")
	}
}

func TestBind_MonitorCapacity(t *testing.T) {
	vars := newFakeVars()
	opener := newFakeOpener("gpiochip0")

	var defs []gpiodef.LineDef
	for i := 0; i < MaxMonitoredLines+1; i++ {
		name := fmt.Sprintf("/HW/GPIO/E%d", i)
		vars.addVar(name, varserver.Handle(100+i), 0)
		defs = append(defs, gpiodef.LineDef{
			Line:      strconv.Itoa(i),
			Var:       name,
			Direction: "input",
			Event:     "RISING_EDGE",
		})
	}
	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{{Chip: "gpiochip0", Lines: defs}}}

	b := newTestBinder(vars, opener, WatchMode)
	_, report, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if report.BoundCount() != MaxMonitoredLines {
		t.Errorf("bound = %d, want %d", report.BoundCount(), MaxMonitoredLines)
	}
	last := report.Entries[MaxMonitoredLines]
	if last.Bound {
		t.Error("line beyond capacity should be skipped")
	}
	if !strings.Contains(last.Reason, "capacity") {
		t.Errorf("reason = %q, want capacity error", last.Reason)
	}
}

func TestBind_NotifyFailureReleasesLine(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 0)
	vars.notifyErr = fmt.Errorf("server unreachable")
	opener := newFakeOpener("gpiochip0")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{lineDef(4, "/HW/GPIO/P4", "output")}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	_, report, err := b.Bind(context.Background(), doc)
	if err == nil {
		t.Fatal("expected error when nothing binds")
	}
	if report.BoundCount() != 0 {
		t.Errorf("bound = %d, want 0", report.BoundCount())
	}
	if !opener.chips["gpiochip0"].requests[4].closed {
		t.Error("line should be released when notification registration fails")
	}
}

func TestBind_ElectricalAttributes(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/AUX0", 11, 0)
	opener := newFakeOpener("gpiochip1")

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip1", Lines: []gpiodef.LineDef{{
			Line:        "0",
			Var:         "/HW/GPIO/AUX0",
			Direction:   "output",
			ActiveState: "low",
			Drive:       "open-drain",
			Bias:        "pull-up",
		}}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	if _, _, err := b.Bind(context.Background(), doc); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	cfg := opener.chips["gpiochip1"].requests[0].cfg
	if !cfg.ActiveLow {
		t.Error("active_state low should request active-low")
	}
	if cfg.Drive != hardware.OpenDrain {
		t.Error("drive should be open-drain")
	}
	if cfg.Bias != hardware.PullUp {
		t.Error("bias should be pull-up")
	}
}

func TestWriteStatus_RoundTrip(t *testing.T) {
	vars := newFakeVars()
	vars.addVar("/HW/GPIO/P4", 10, 0)
	vars.addVar("/HW/GPIO/P9", 12, 0)
	vars.addVar("/HW/GPIO/AUX0", 13, 0)
	opener := newFakeOpener("gpiochip0", "gpiochip1")
	opener.chips["gpiochip0"].lineNames[4] = "GPIO4"

	doc := &gpiodef.Document{Chips: []gpiodef.ChipDef{
		{Chip: "gpiochip0", Lines: []gpiodef.LineDef{
			lineDef(4, "/HW/GPIO/P4", "output"),
			lineDef(9, "/HW/GPIO/P9", "input"),
			lineDef(5, "/HW/GPIO/MISSING", "output"), // skipped: unresolvable
		}},
		{Chip: "gpiochip1", Lines: []gpiodef.LineDef{
			lineDef(0, "/HW/GPIO/AUX0", "output"),
		}},
	}}

	b := newTestBinder(vars, opener, SignalMode)
	registry, _, err := b.Bind(context.Background(), doc)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteStatus(&buf, registry); err != nil {
		t.Fatalf("WriteStatus() error: %v", err)
	}

	var parsed []struct {
		Chip  string `json:"chip"`
		Lines []struct {
			Line int    `json:"line"`
			Name string `json:"name"`
			Var  string `json:"var"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("status output is not valid JSON: %v", err)
	}

	if len(parsed) != 2 {
		t.Fatalf("chips = %d, want 2", len(parsed))
	}
	if parsed[0].Chip != "gpiochip0" || parsed[1].Chip != "gpiochip1" {
		t.Error("chips out of definition order")
	}
	if len(parsed[0].Lines) != 2 {
		t.Fatalf("gpiochip0 lines = %d, want 2 (skipped line excluded)", len(parsed[0].Lines))
	}
	if parsed[0].Lines[0].Line != 4 || parsed[0].Lines[1].Line != 9 {
		t.Error("lines out of definition order")
	}
	if parsed[0].Lines[0].Name != "GPIO4" {
		t.Errorf("named line reported %q", parsed[0].Lines[0].Name)
	}
	if parsed[0].Lines[1].Name != "unknown" {
		t.Errorf("unnamed line should report %q, got %q", "unknown", parsed[0].Lines[1].Name)
	}
	if parsed[1].Lines[0].Var != "/HW/GPIO/AUX0" {
		t.Errorf("var = %q", parsed[1].Lines[0].Var)
	}
}

func TestRegistry_Lookups(t *testing.T) {
	registry := &Registry{Chips: []*ChipDescriptor{
		{Name: "gpiochip0", Lines: []*LineDescriptor{
			{Chip: "gpiochip0", Offset: 4, Handle: 10},
			{Chip: "gpiochip0", Offset: 26, Handle: 11},
		}},
		{Name: "gpiochip1", Lines: []*LineDescriptor{
			{Chip: "gpiochip1", Offset: 4, Handle: 12},
		}},
	}}

	if got := registry.FindLineByVar(11); got == nil || got.Offset != 26 {
		t.Error("FindLineByVar(11) should find gpiochip0 line 26")
	}
	if got := registry.FindLineByVar(99); got != nil {
		t.Error("FindLineByVar(99) should be nil")
	}
	if got := registry.FindLineByOffset("gpiochip1", 4); got == nil || got.Handle != 12 {
		t.Error("FindLineByOffset should match chip and offset together")
	}
	if got := registry.FindLineByOffset("gpiochip2", 4); got != nil {
		t.Error("unknown chip should yield nil")
	}
}
