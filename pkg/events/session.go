// Package events keeps a socket.io session with an hsd node: it
// authenticates, subscribes to chain, mempool or wallet events and dispatches
// them to registered handlers on a single ordered loop.
package events

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/internal/logger"
	"github.com/fd1az/handshake-client/internal/sio"
	"github.com/fd1az/handshake-client/internal/wsconn"
	"github.com/fd1az/handshake-client/pkg/chain"
	"github.com/fd1az/handshake-client/pkg/transport"
)

// Well known hsd socket events and calls.
const (
	EventChainConnect    = "chain connect"
	EventChainDisconnect = "chain disconnect"
	EventBlockConnect    = "block connect"
	EventBlockDisconnect = "block disconnect"
	EventChainReset      = "chain reset"
	EventTx              = "tx"

	CallAuth         = "auth"
	CallWatchChain   = "watch chain"
	CallWatchMempool = "watch mempool"
	CallJoin         = "join"
	CallGetTip       = "get tip"

	// AllWallets joins the events of every wallet; it needs the admin key.
	AllWallets = "*"
)

// Arg is one event or ack argument, JSON or binary.
type Arg = sio.Arg

// Event is a named push from the node.
type Event struct {
	Name     string
	Args     []Arg
	Received time.Time
}

// Handler handles one event. A returned error or a panic is reported and
// delivery continues with the next handler.
type Handler func(ctx context.Context, ev Event) error

// Watch selects the node subscriptions made after authenticating.
type Watch struct {
	Chain   bool
	Mempool bool
}

type sessionMetrics struct {
	received      metric.Int64Counter
	handlerErrors metric.Int64Counter
	calls         metric.Int64Counter
	connected     metric.Int64Gauge
	queueDepth    metric.Int64Gauge
}

// Session owns at most one socket connection to a node. Connect and
// ConnectWallet are idempotent and safe for concurrent use.
type Session struct {
	endpoint transport.Endpoint
	id       string
	opts     *options
	log      logger.LoggerInterface
	tracer   trace.Tracer
	metrics  sessionMetrics

	connectMu sync.Mutex
	// dispatched closes when the latest dispatch loop has drained its
	// connection. Guarded by connectMu.
	dispatched chan struct{}

	mu   sync.RWMutex
	conn *connection

	handlersMu sync.RWMutex
	handlers   map[string][]Handler
}

// New builds a disconnected session for ep.
func New(ep transport.Endpoint, opts ...Option) (*Session, error) {
	ep = ep.WithDefaults()
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	o := newOptions(opts...)
	s := &Session{
		endpoint:   ep,
		id:         uuid.NewString(),
		opts:       o,
		handlers:   make(map[string][]Handler),
		dispatched: closedCh,
	}
	s.log = o.log.With("component", "events", "session_id", s.id)

	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer("hsd_events")

	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) initMetrics() error {
	mp := s.opts.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("hsd_events")

	var err error
	s.metrics.received, err = meter.Int64Counter(
		"hsd_events_received_total",
		metric.WithDescription("Events received from the node"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	s.metrics.handlerErrors, err = meter.Int64Counter(
		"hsd_events_handler_errors_total",
		metric.WithDescription("Event handler failures, panics included"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.calls, err = meter.Int64Counter(
		"hsd_events_calls_total",
		metric.WithDescription("Acknowledged calls made on the socket"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connected, err = meter.Int64Gauge(
		"hsd_events_connected",
		metric.WithDescription("1 while the event session is connected"),
	)
	if err != nil {
		return err
	}

	s.metrics.queueDepth, err = meter.Int64Gauge(
		"hsd_events_queue_depth",
		metric.WithDescription("Events waiting for dispatch"),
		metric.WithUnit("{event}"),
	)
	return err
}

// ID identifies the session in logs and spans.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the node the session talks to.
func (s *Session) Endpoint() transport.Endpoint {
	return s.endpoint
}

// Connect opens the socket, authenticates and subscribes per w. It is a
// no-op when the session is already connected. Any setup failure closes the
// socket and is returned.
func (s *Session) Connect(ctx context.Context, w Watch) error {
	return s.ensure(ctx, "node", func(ctx context.Context, c *connection) error {
		if w.Chain {
			if _, err := s.call(ctx, c, apperror.CodeSocketSubscribeFailed, CallWatchChain); err != nil {
				return err
			}
		}
		if w.Mempool {
			if _, err := s.call(ctx, c, apperror.CodeSocketSubscribeFailed, CallWatchMempool); err != nil {
				return err
			}
		}
		return nil
	})
}

// ConnectWallet opens the socket, authenticates and joins the events of
// walletID. An empty id joins AllWallets.
func (s *Session) ConnectWallet(ctx context.Context, walletID string) error {
	if walletID == "" {
		walletID = AllWallets
	}
	return s.ensure(ctx, "wallet", func(ctx context.Context, c *connection) error {
		_, err := s.call(ctx, c, apperror.CodeSocketSubscribeFailed, CallJoin, walletID)
		return err
	})
}

func (s *Session) ensure(ctx context.Context, kind string, subscribe func(context.Context, *connection) error) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if s.Connected() {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "hsd.events.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("session.kind", kind),
			attribute.String("server.address", s.endpoint.Host),
			attribute.Int("server.port", s.endpoint.Port),
		),
	)
	defer span.End()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.callTimeout)
		defer cancel()
	}

	c, err := s.open(ctx, subscribe)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "setup failed")
		s.log.Warn(ctx, "event session setup failed", "endpoint", s.endpoint.Redacted(), "error", err)
		return err
	}

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	s.metrics.connected.Record(ctx, 1)
	s.log.Info(ctx, "event session connected", "endpoint", s.endpoint.Redacted(), "kind", kind)

	// The previous connection's loop finishes its backlog first, so handlers
	// never run on two goroutines.
	prev := s.dispatched
	done := make(chan struct{})
	s.dispatched = done
	go func() {
		defer close(done)
		<-prev
		s.dispatch(c)
	}()
	go s.watch(c)
	return nil
}

func (s *Session) open(ctx context.Context, subscribe func(context.Context, *connection) error) (*connection, error) {
	cfg := wsconn.DefaultConfig(s.endpoint.SocketURL(), "events")
	cfg.HTTPHeader = s.opts.header

	wsOpts := []wsconn.Option{wsconn.WithLogger(s.log)}
	if s.opts.meterProvider != nil {
		wsOpts = append(wsOpts, wsconn.WithMeterProvider(s.opts.meterProvider))
	}
	ws, err := wsconn.New(cfg, wsOpts...)
	if err != nil {
		return nil, err
	}

	c := newConnection(ws, s.log, s.opts.queueCapacity)
	if err := ws.Connect(ctx); err != nil {
		c.close()
		return nil, err
	}

	if err := c.waitReady(ctx); err != nil {
		c.close()
		return nil, err
	}
	if _, err := s.call(ctx, c, apperror.CodeSocketAuthFailed, CallAuth, s.endpoint.APIKey); err != nil {
		c.close()
		return nil, err
	}
	if err := subscribe(ctx, c); err != nil {
		c.close()
		return nil, err
	}
	return c, nil
}

// watch clears the session once its connection ends.
func (s *Session) watch(c *connection) {
	<-c.done

	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()

	ctx := context.Background()
	s.metrics.connected.Record(ctx, 0)
	s.log.Info(ctx, "event session disconnected")
}

// Close disconnects the session. A later Connect opens a new socket.
func (s *Session) Close() error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c != nil {
		c.close()
	}
	return nil
}

func (s *Session) current() *connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Connected reports whether the socket is up and set up.
func (s *Session) Connected() bool {
	c := s.current()
	return c != nil && !c.isDone()
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed when the current connection ends. It is already closed
// when the session is not connected.
func (s *Session) Done() <-chan struct{} {
	if c := s.current(); c != nil {
		return c.done
	}
	return closedCh
}

// Call emits name with args and waits for the node's acknowledgement. The
// first ack argument is the node's error slot; the remaining arguments are
// returned.
func (s *Session) Call(ctx context.Context, name string, args ...any) ([]Arg, error) {
	c := s.current()
	if c == nil {
		return nil, apperror.New(apperror.CodeSocketNotConnected, apperror.WithContext(name))
	}
	return s.call(ctx, c, apperror.CodeSocketCallFailed, name, args...)
}

func (s *Session) call(ctx context.Context, c *connection, code apperror.Code, name string, args ...any) ([]Arg, error) {
	ctx, span := s.tracer.Start(ctx, "hsd.events.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", name)),
	)
	defer span.End()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.callTimeout)
		defer cancel()
	}

	ack, err := c.call(ctx, name, args...)
	if err == nil {
		ack, err = ackResults(ack, code)
	}
	if err != nil {
		err = apperror.Wrap(err, code, name)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		s.metrics.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("call", name), attribute.String("status", "error")))
		return nil, err
	}

	s.metrics.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("call", name), attribute.String("status", "ok")))
	return ack, nil
}

// ackResults strips the error slot from an ack. A set slot means the node
// refused the call.
func ackResults(args []Arg, code apperror.Code) ([]Arg, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if !args[0].IsNull() {
		return nil, apperror.New(code, apperror.WithCause(errors.New(errorText(args[0]))))
	}
	return args[1:], nil
}

func errorText(a Arg) string {
	if a.IsBinary() {
		return hex.EncodeToString(a.Binary)
	}
	var shaped struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(a.JSON, &shaped); err == nil && shaped.Message != "" {
		return shaped.Message
	}
	var text string
	if err := json.Unmarshal(a.JSON, &text); err == nil {
		return text
	}
	return string(a.JSON)
}

// GetTip asks the node for its current chain tip.
func (s *Session) GetTip(ctx context.Context) (*chain.Entry, error) {
	results, err := s.Call(ctx, CallGetTip)
	if err != nil {
		return nil, err
	}
	return entryFromArgs(results)
}

// entryFromArgs decodes the first argument as a chain entry. hsd sends it
// as a binary attachment; a hex string is accepted too.
func entryFromArgs(args []Arg) (*chain.Entry, error) {
	if len(args) == 0 {
		return nil, apperror.New(apperror.CodeInvalidChainEntry, apperror.WithContext("missing entry argument"))
	}

	raw := args[0].Binary
	if !args[0].IsBinary() {
		var text string
		if err := json.Unmarshal(args[0].JSON, &text); err != nil {
			return nil, apperror.New(apperror.CodeInvalidChainEntry, apperror.WithCause(err), apperror.WithContext("entry is neither binary nor hex"))
		}
		decoded, err := hex.DecodeString(text)
		if err != nil {
			return nil, apperror.New(apperror.CodeInvalidChainEntry, apperror.WithCause(err))
		}
		raw = decoded
	}

	entry, err := chain.Decode(raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidChainEntry, apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%d bytes", len(raw))))
	}
	return entry, nil
}
