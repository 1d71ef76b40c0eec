package events

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/handshake-client/internal/logger"
)

const (
	defaultCallTimeout   = 30 * time.Second
	defaultQueueCapacity = 256
)

// ErrorHandler receives every handler failure, including recovered panics.
type ErrorHandler func(ctx context.Context, ev Event, err error)

type options struct {
	log            logger.LoggerInterface
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	onError        ErrorHandler
	callTimeout    time.Duration
	queueCapacity  int
	header         http.Header
}

// Option configures a Session.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		log:           logger.Nop(),
		callTimeout:   defaultCallTimeout,
		queueCapacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(log logger.LoggerInterface) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMeterProvider sets the meter provider for session metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithTracerProvider sets the tracer provider for connect and call spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithErrorHandler installs a hook for handler failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}

// WithCallTimeout bounds acknowledged calls whose context has no deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithQueueCapacity presizes the inbound event queue.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithHTTPHeader adds headers to the websocket upgrade request.
func WithHTTPHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h.Clone()
	}
}
