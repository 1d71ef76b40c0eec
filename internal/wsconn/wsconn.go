// Package wsconn provides the WebSocket frame transport under the node event
// socket. A Client is single use: once the connection ends it stays ended and
// a new Client must be built. Reconnection policy belongs to the caller.
package wsconn

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/internal/logger"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

func (s State) gaugeValue() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateClosed:
		return 3
	default:
		return 0
	}
}

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string
	// HTTPHeader is sent with the upgrade request.
	HTTPHeader http.Header
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// MaxMessageSize caps inbound frames; 0 keeps the library default.
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults. Keepalive is left to the protocol
// carried on top.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4 << 20,
	}
}

// Message is one inbound frame.
type Message struct {
	Binary bool
	Data   []byte
}

// MessageHandler is invoked on the read goroutine for every inbound frame.
type MessageHandler func(ctx context.Context, msg Message)

// StateHandler is invoked on every state transition. err is set when the
// transition was caused by a failure.
type StateHandler func(state State, err error)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(log logger.LoggerInterface) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMeterProvider sets the meter provider for frame counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.meterProvider = mp
	}
}

type wsMetrics struct {
	framesReceived  metric.Int64Counter
	framesSent      metric.Int64Counter
	connectionState metric.Int64Gauge
}

// Client is a WebSocket client built on coder/websocket.
type Client struct {
	config        Config
	log           logger.LoggerInterface
	meterProvider metric.MeterProvider
	metrics       wsMetrics

	stateMu sync.RWMutex
	state   State
	conn    *websocket.Conn
	cancel  context.CancelFunc

	handlersMu sync.RWMutex
	onMessage  MessageHandler
	onState    []StateHandler

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

// New creates a new WebSocket client.
func New(config Config, opts ...Option) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "websocket url is required")
	}

	c := &Client{
		config: config,
		log:    logger.Nop(),
		state:  StateDisconnected,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initMetrics(); err != nil {
		return nil, err
	}

	c.log = c.log.With("component", "wsconn", "name", config.Name)
	return c, nil
}

func (c *Client) initMetrics() error {
	mp := c.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("hsd_socket",
		metric.WithInstrumentationAttributes(attribute.String("socket", c.config.Name)))

	var err error
	c.metrics.framesReceived, err = meter.Int64Counter(
		"hsd_socket_frames_received_total",
		metric.WithDescription("Frames received from the node socket"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	c.metrics.framesSent, err = meter.Int64Counter(
		"hsd_socket_frames_sent_total",
		metric.WithDescription("Frames written to the node socket"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	c.metrics.connectionState, err = meter.Int64Gauge(
		"hsd_socket_connection_state",
		metric.WithDescription("Node socket state (0=disconnected, 1=connecting, 2=connected, 3=closed)"),
		metric.WithUnit("{state}"),
	)
	return err
}

// OnMessage sets the inbound frame handler. Set it before Connect.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange adds a state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onState = append(c.onState, h)
	c.handlersMu.Unlock()
}

// Connect dials the server and starts the read loop. Calling it on a
// connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	switch c.state {
	case StateConnected:
		c.stateMu.Unlock()
		return nil
	case StateClosed:
		c.stateMu.Unlock()
		return apperror.New(apperror.CodeSocketClosed, apperror.WithContext(c.config.Name))
	case StateConnecting:
		c.stateMu.Unlock()
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("connect already in progress"))
	}
	select {
	case <-c.done:
		c.stateMu.Unlock()
		return apperror.New(apperror.CodeSocketClosed, apperror.WithContext(c.config.Name))
	default:
	}
	c.state = StateConnecting
	c.stateMu.Unlock()
	c.notify(ctx, StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, &websocket.DialOptions{
		HTTPHeader: c.config.HTTPHeader,
	})
	if err != nil {
		appErr := apperror.External(apperror.CodeSocketConnectionFailed, c.config.URL, err)
		c.setState(ctx, StateDisconnected, appErr)
		return appErr
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	c.stateMu.Lock()
	if c.state == StateClosed {
		c.stateMu.Unlock()
		cancel()
		_ = conn.CloseNow()
		return apperror.New(apperror.CodeSocketClosed, apperror.WithContext(c.config.Name))
	}
	c.conn = conn
	c.cancel = cancel
	c.state = StateConnected
	c.stateMu.Unlock()
	c.notify(ctx, StateConnected, nil)

	c.log.Debug(ctx, "websocket connected", "url", c.config.URL)

	go c.readLoop(runCtx, conn)

	return nil
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.stateMu.RLock()
	conn, state := c.conn, c.state
	c.stateMu.RUnlock()

	if state != StateConnected || conn == nil {
		return apperror.New(apperror.CodeSocketNotConnected, apperror.WithContext(c.config.Name))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return apperror.New(apperror.CodeSocketSendError, apperror.WithCause(err), apperror.WithContext(c.config.Name))
	}

	c.metrics.framesSent.Add(ctx, 1)
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Close closes the connection with a normal closure. It is idempotent and
// leaves the client in StateClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.stateMu.Lock()
		conn, cancel := c.conn, c.cancel
		c.state = StateClosed
		c.stateMu.Unlock()
		c.notify(context.Background(), StateClosed, nil)

		if conn != nil {
			if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
				c.log.Debug(context.Background(), "websocket close handshake incomplete", "error", err)
			}
		}
		if cancel != nil {
			cancel()
		}
		c.finish()
	})
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			c.handleDisconnect(ctx, err)
			return
		}

		c.metrics.framesReceived.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool("binary", typ == websocket.MessageBinary)))

		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()

		if h != nil {
			h(ctx, Message{Binary: typ == websocket.MessageBinary, Data: data})
		}
	}
}

func (c *Client) handleDisconnect(ctx context.Context, err error) {
	c.stateMu.Lock()
	if c.state == StateClosed {
		c.stateMu.Unlock()
		return
	}
	c.state = StateDisconnected
	if c.cancel != nil {
		c.cancel()
	}
	c.stateMu.Unlock()

	var reason error
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
		reason = apperror.New(apperror.CodeSocketClosed, apperror.WithCause(err), apperror.WithContext(c.config.Name))
	}

	c.log.Info(context.WithoutCancel(ctx), "websocket disconnected", "error", err)
	c.notify(context.WithoutCancel(ctx), StateDisconnected, reason)
	c.finish()
}

func (c *Client) setState(ctx context.Context, state State, err error) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
	c.notify(ctx, state, err)
}

func (c *Client) notify(ctx context.Context, state State, err error) {
	c.metrics.connectionState.Record(context.WithoutCancel(ctx), state.gaugeValue())

	c.handlersMu.RLock()
	handlers := append([]StateHandler(nil), c.onState...)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(state, err)
	}
}

func (c *Client) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}
