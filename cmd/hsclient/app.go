package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/handshake-client/internal/apm"
	"github.com/fd1az/handshake-client/internal/config"
	"github.com/fd1az/handshake-client/internal/logger"
	"github.com/fd1az/handshake-client/internal/metrics"
	"github.com/fd1az/handshake-client/pkg/transport"
)

var errCallFailed = errors.New("call failed")

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	headerArgs []string
	out        io.Writer

	cfg     *config.Config
	log     logger.LoggerInterface
	headers map[string]string
}

func (a *app) init(errOut io.Writer) error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.App.LogLevel = a.logLevel
	}
	headers, err := parseHeaders(a.headerArgs)
	if err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.App.LogLevel)
	if cfg.App.LogFormat == "json" {
		a.log = logger.New(errOut, level, cfg.App.Name)
	} else {
		a.log = logger.NewConsole(errOut, level, cfg.App.Name)
	}
	a.cfg = cfg
	a.headers = headers
	return nil
}

func (a *app) transportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithLogger(a.log),
		transport.WithRateLimit(a.cfg.Limits.RequestsPerMinute),
		transport.WithHeaders(a.headers),
		transport.WithTraceBodies(a.cfg.Telemetry.TraceBodies),
	}
	if breaker := a.cfg.Limits.Breaker.CircuitBreaker("hsd"); breaker != nil {
		opts = append(opts, transport.WithCircuitBreaker(*breaker))
	}
	return opts
}

// print writes r as indented JSON. A failed result is printed too and
// turned into a non-zero exit.
func (a *app) print(r transport.Result) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(raw))
	if !r.OK() {
		return errCallFailed
	}
	return nil
}

// telemetry holds the providers started for a long running command.
type telemetry struct {
	tracer trace.TracerProvider
	meter  metric.MeterProvider
	stop   func()
}

// setupTelemetry starts tracing, Prometheus metrics and the scrape server
// when telemetry is enabled. Disabled telemetry keeps the otel globals.
func (a *app) setupTelemetry(ctx context.Context) (*telemetry, error) {
	tc := a.cfg.Telemetry
	if !tc.Enabled {
		return &telemetry{
			tracer: otel.GetTracerProvider(),
			meter:  otel.GetMeterProvider(),
			stop:   func() {},
		}, nil
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		Provider:    apm.Provider(tc.TraceProvider),
		ServiceName: tc.ServiceName,
		Endpoint:    tc.OTLPEndpoint,
		Headers:     tc.OTLPHeaders,
		Writer:      os.Stderr,
	}, a.log)
	if err != nil {
		return nil, err
	}

	mp, err := metrics.NewMetricProvider(ctx,
		metrics.WithServiceName(tc.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	)
	if err != nil {
		_ = tp.Stop()
		return nil, err
	}

	srv := metrics.NewPrometheusServer(metrics.WithPort(strconv.Itoa(tc.PrometheusPort)))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(context.Background(), "prometheus server stopped", "error", err)
		}
	}()
	a.log.Info(ctx, "prometheus metrics server started", "port", tc.PrometheusPort)

	stop := func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn(shutdownCtx, "prometheus server shutdown", "error", err)
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			a.log.Warn(shutdownCtx, "meter provider shutdown", "error", err)
		}
		if err := tp.Stop(); err != nil {
			a.log.Warn(shutdownCtx, "trace provider shutdown", "error", err)
		}
	}
	return &telemetry{tracer: tp.TracerProvider(), meter: mp, stop: stop}, nil
}

// parseHeaders reads repeated "Key: Value" arguments.
func parseHeaders(args []string) (map[string]string, error) {
	headers := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("header %q must be in the form \"Key: Value\"", arg)
		}
		headers[http.CanonicalHeaderKey(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// httpHeader converts the parsed headers for the websocket upgrade.
func (a *app) httpHeader() http.Header {
	h := make(http.Header, len(a.headers))
	for k, v := range a.headers {
		h.Set(k, v)
	}
	return h
}

// parseParam reads a CLI argument as JSON, falling back to a plain string.
func parseParam(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// parseBody reads a JSON object argument. An empty argument is an empty body.
func parseBody(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(s), &body); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	return body, nil
}
