package transport

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/handshake-client/internal/circuitbreaker"
	"github.com/fd1az/handshake-client/internal/httpclient"
	"github.com/fd1az/handshake-client/internal/logger"
	"github.com/fd1az/handshake-client/internal/ratelimit"
)

// Options configures the REST and RPC cores.
type Options struct {
	Logger            logger.LoggerInterface
	RequestsPerMinute int
	Breaker           *circuitbreaker.Config
	MeterProvider     metric.MeterProvider
	TracerProvider    trace.TracerProvider
	RoundTripper      http.RoundTripper
	Headers           map[string]string
	TraceBodies       bool
}

// Option is a functional option for the cores.
type Option func(*Options)

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	o := &Options{Logger: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used for failed calls.
func WithLogger(log logger.LoggerInterface) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}

// WithRateLimit limits outgoing calls; zero disables the limiter.
func WithRateLimit(requestsPerMinute int) Option {
	return func(o *Options) {
		o.RequestsPerMinute = requestsPerMinute
	}
}

// WithCircuitBreaker guards calls with a breaker. A tripped breaker surfaces
// as a connection Failure.
func WithCircuitBreaker(cfg circuitbreaker.Config) Option {
	return func(o *Options) {
		o.Breaker = &cfg
	}
}

// WithMeterProvider sets the meter provider for request counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		o.MeterProvider = mp
	}
}

// WithTracerProvider sets the tracer provider for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) {
		o.Headers = headers
	}
}

// WithTraceBodies records request and response bodies as span events.
func WithTraceBodies(enabled bool) Option {
	return func(o *Options) {
		o.TraceBodies = enabled
	}
}

// WithRoundTripper replaces the HTTP transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.RoundTripper = rt
	}
}

// NewHTTPClient builds the instrumented client a core sends through.
func (o *Options) NewHTTPClient(ep Endpoint, provider string) (*httpclient.InstrumentedClient, error) {
	opts := []httpclient.ClientOption{
		httpclient.WithBaseURL(ep.BaseURL()),
		httpclient.WithRequestTimeout(ep.Timeout),
		httpclient.WithProviderName(provider),
	}
	if o.MeterProvider != nil {
		opts = append(opts, httpclient.WithMeterProvider(o.MeterProvider))
	}
	if o.RoundTripper != nil {
		opts = append(opts, httpclient.WithRoundTripper(o.RoundTripper))
	}
	if len(o.Headers) > 0 {
		opts = append(opts, httpclient.WithHeaders(o.Headers))
	}
	if o.TracerProvider != nil || o.TraceBodies {
		tp := o.TracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		var traced []httpclient.TraceOption
		if o.TraceBodies {
			traced = []httpclient.TraceOption{httpclient.TraceRequest, httpclient.TraceResponse}
		}
		opts = append(opts, httpclient.WithTraceOptions(tp.Tracer("hsd_http_client"), traced...))
	}
	if o.RequestsPerMinute > 0 {
		opts = append(opts, httpclient.WithRateLimiter(ratelimit.New(o.RequestsPerMinute)))
	}
	if o.Breaker != nil {
		opts = append(opts, httpclient.WithCircuitBreaker(*o.Breaker))
	}
	return httpclient.NewInstrumentedClient(opts...)
}
