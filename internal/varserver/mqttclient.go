package varserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varbridge/gpioctrl/internal/infrastructure/mqtt"
)

// Transport is the slice of the MQTT wrapper the varserver client needs.
type Transport interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTClient is the production Client backed by the variable server's MQTT
// protocol. Requests are published to per-operation topics and replies arrive
// on a per-request reply topic keyed by a generated request id. Signals are
// pushed by the server to this client's signal topic and buffered until
// NextSignal drains them.
type MQTTClient struct {
	transport Transport
	clientID  string

	signals chan Signal

	// requestTimeout bounds each RPC round trip; zero means the caller's
	// context is the only bound.
	requestTimeout time.Duration

	// pending maps request ids to their reply channels.
	pending map[string]chan replyMessage
	mu      sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the minimal logging interface this client uses.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// request is the wire format of an RPC request.
type request struct {
	ID     string `json:"id"`
	Client string `json:"client"`
	Name   string `json:"name,omitempty"`
	Handle Handle `json:"handle,omitempty"`
	Value  uint16 `json:"value,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// replyMessage is the wire format of an RPC reply.
type replyMessage struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Handle Handle `json:"handle,omitempty"`
	Value  uint16 `json:"value,omitempty"`
}

// signalMessage is the wire format of a pushed signal.
type signalMessage struct {
	Kind    string `json:"kind"`
	Handle  Handle `json:"handle,omitempty"`
	Session string `json:"session,omitempty"`
}

// Reply status values.
const (
	statusOK        = "ok"
	statusNotFound  = "not_found"
	statusWrongType = "wrong_type"
)

// NewMQTTClient creates a varserver client over the given transport.
//
// It subscribes to the client's signal topic immediately; signals arriving
// before the first NextSignal call are buffered up to signalBuffer deep, after
// which the oldest unread signals are dropped with a warning.
func NewMQTTClient(transport Transport, clientID string, signalBuffer int) (*MQTTClient, error) {
	if signalBuffer <= 0 {
		signalBuffer = 64
	}

	c := &MQTTClient{
		transport: transport,
		clientID:  clientID,
		signals:   make(chan Signal, signalBuffer),
		pending:   make(map[string]chan replyMessage),
		logger:    noopLogger{},
	}

	if err := transport.Subscribe(mqtt.SignalTopic(clientID), c.handleSignal); err != nil {
		return nil, fmt.Errorf("subscribing to signal topic: %w", err)
	}

	return c, nil
}

// SetLogger sets a logger for dropped-signal and protocol warnings.
// Safe to call while signals are being delivered.
func (c *MQTTClient) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger.
func (c *MQTTClient) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// SetRequestTimeout bounds every RPC round trip. Zero leaves only the
// caller's context as the bound.
func (c *MQTTClient) SetRequestTimeout(d time.Duration) {
	c.requestTimeout = d
}

// handleSignal decodes a pushed signal and queues it for NextSignal.
func (c *MQTTClient) handleSignal(_ string, payload []byte) error {
	var msg signalMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding signal: %w", err)
	}

	sig := Signal{Handle: msg.Handle, Session: msg.Session}
	switch msg.Kind {
	case "modified":
		sig.Kind = SignalModified
	case "query":
		sig.Kind = SignalQuery
	case "print":
		sig.Kind = SignalPrint
	default:
		sig.Kind = SignalUnknown
	}

	select {
	case c.signals <- sig:
	default:
		// Queue full. Drop the oldest so fresh state wins.
		select {
		case dropped := <-c.signals:
			c.getLogger().Warn("signal queue full, dropped oldest",
				"dropped_handle", dropped.Handle)
		default:
		}
		select {
		case c.signals <- sig:
		default:
		}
	}

	return nil
}

// roundTrip publishes a request and waits for its reply.
func (c *MQTTClient) roundTrip(ctx context.Context, op string, req request) (replyMessage, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req.ID = uuid.NewString()
	req.Client = c.clientID

	replyCh := make(chan replyMessage, 1)
	c.mu.Lock()
	c.pending[req.ID] = replyCh
	c.mu.Unlock()

	replyTopic := mqtt.ReplyTopic(req.ID)
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		c.transport.Unsubscribe(replyTopic)
	}()

	if err := c.transport.Subscribe(replyTopic, c.handleReply); err != nil {
		return replyMessage{}, fmt.Errorf("subscribing to reply topic: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return replyMessage{}, fmt.Errorf("encoding %s request: %w", op, err)
	}
	if err := c.transport.Publish(mqtt.RequestTopic(op), payload, false); err != nil {
		return replyMessage{}, fmt.Errorf("publishing %s request: %w", op, err)
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return replyMessage{}, fmt.Errorf("%w: %s", ErrRequestTimeout, op)
		}
		return replyMessage{}, ctx.Err()
	}
}

// handleReply routes a reply to the waiting request.
func (c *MQTTClient) handleReply(_ string, payload []byte) error {
	var msg replyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}

	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	c.mu.Unlock()
	if !ok {
		// Late reply after timeout. Nothing is waiting.
		return nil
	}

	select {
	case ch <- msg:
	default:
	}
	return nil
}

// statusError maps a reply status to a sentinel error.
func statusError(op, status string) error {
	switch status {
	case statusOK:
		return nil
	case statusNotFound:
		return ErrNotFound
	case statusWrongType:
		return ErrWrongType
	default:
		return fmt.Errorf("%w: %s: %s", ErrServerFailure, op, status)
	}
}

// FindByName resolves a variable name to its handle.
func (c *MQTTClient) FindByName(ctx context.Context, name string) (Handle, error) {
	reply, err := c.roundTrip(ctx, "find", request{Name: name})
	if err != nil {
		return 0, err
	}
	if err := statusError("find", reply.Status); err != nil {
		return 0, fmt.Errorf("%w: %s", err, name)
	}
	if !reply.Handle.Valid() {
		return 0, fmt.Errorf("%w: server returned handle 0 for %s", ErrServerFailure, name)
	}
	return reply.Handle, nil
}

// Get reads a variable's 16-bit unsigned value.
func (c *MQTTClient) Get(ctx context.Context, h Handle) (uint16, error) {
	if !h.Valid() {
		return 0, ErrInvalidHandle
	}
	reply, err := c.roundTrip(ctx, "get", request{Handle: h})
	if err != nil {
		return 0, err
	}
	if err := statusError("get", reply.Status); err != nil {
		return 0, err
	}
	return reply.Value, nil
}

// Set writes a variable's 16-bit unsigned value.
func (c *MQTTClient) Set(ctx context.Context, h Handle, value uint16) error {
	if !h.Valid() {
		return ErrInvalidHandle
	}
	reply, err := c.roundTrip(ctx, "set", request{Handle: h, Value: value})
	if err != nil {
		return err
	}
	return statusError("set", reply.Status)
}

// Notify registers interest in an event kind for a variable.
func (c *MQTTClient) Notify(ctx context.Context, h Handle, kind NotifyKind) error {
	if !h.Valid() {
		return ErrInvalidHandle
	}
	reply, err := c.roundTrip(ctx, "notify", request{Handle: h, Kind: kind.String()})
	if err != nil {
		return err
	}
	return statusError("notify", reply.Status)
}

// NextSignal blocks until a queued signal is available or ctx is cancelled.
func (c *MQTTClient) NextSignal(ctx context.Context) (Signal, error) {
	select {
	case sig := <-c.signals:
		return sig, nil
	case <-ctx.Done():
		return Signal{}, ctx.Err()
	}
}

// OpenPrintSession opens the publish sink for a print session.
func (c *MQTTClient) OpenPrintSession(token string) io.WriteCloser {
	return &printSession{
		transport: c.transport,
		topic:     mqtt.PrintTopic(token),
	}
}

// printSession streams print output to the session topic in sequenced chunks,
// ending with an end marker on Close.
type printSession struct {
	transport Transport
	topic     string
	seq       int
	closed    bool
}

type printChunk struct {
	Seq  int    `json:"seq"`
	Data string `json:"data,omitempty"`
	End  bool   `json:"end,omitempty"`
}

func (p *printSession) Write(data []byte) (int, error) {
	if p.closed {
		return 0, fmt.Errorf("varserver: write to closed print session")
	}
	payload, err := json.Marshal(printChunk{Seq: p.seq, Data: string(data)})
	if err != nil {
		return 0, err
	}
	if err := p.transport.Publish(p.topic, payload, false); err != nil {
		return 0, err
	}
	p.seq++
	return len(data), nil
}

func (p *printSession) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	payload, err := json.Marshal(printChunk{Seq: p.seq, End: true})
	if err != nil {
		return err
	}
	return p.transport.Publish(p.topic, payload, false)
}
