package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/handshake-client/internal/circuitbreaker"
	"github.com/fd1az/handshake-client/internal/ratelimit"
)

// errServerStatus marks 5xx responses as breaker failures. It never leaves execute.
var errServerStatus = errors.New("server error status")

// Request is the interface for building and executing HTTP requests.
type Request interface {
	// Do executes the request with an arbitrary method.
	Do(ctx context.Context, method, path string) (*Response, error)

	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)
	Put(ctx context.Context, path string) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)

	// SetBody sets a value to be JSON encoded as the request body.
	SetBody(body any) Request
	SetHeader(key, value string) Request
}

// Response wraps http.Response with the fully read body.
type Response struct {
	*http.Response
	body []byte
	url  string
}

// Body returns the response body as bytes.
func (r *Response) Body() []byte {
	return r.body
}

// URL returns the request URL with the password redacted.
func (r *Response) URL() string {
	return r.url
}

// IsError returns true if the status code is not 2xx.
func (r *Response) IsError() bool {
	return r.StatusCode < 200 || r.StatusCode > 299
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return !r.IsError()
}

// requestBuilder implements Request.
type requestBuilder struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	baseURL        string
	headers        map[string]string
	body           any
	labels         []*Label
	logRequest     bool
	logResponse    bool
	limiter        *ratelimit.Limiter
	breaker        *circuitbreaker.CircuitBreaker[*Response]
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.Do(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.Do(ctx, http.MethodPost, path)
}

func (r *requestBuilder) Put(ctx context.Context, path string) (*Response, error) {
	return r.Do(ctx, http.MethodPut, path)
}

func (r *requestBuilder) Delete(ctx context.Context, path string) (*Response, error) {
	return r.Do(ctx, http.MethodDelete, path)
}

func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Do performs the HTTP request with instrumentation.
func (r *requestBuilder) Do(ctx context.Context, method, path string) (*Response, error) {
	fullURL := JoinURL(r.baseURL, path)
	safeURL := RedactURL(fullURL)

	ctx, span := r.tracer.Start(ctx, "hsd.http.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", safeURL),
			attribute.String("provider", r.providerName),
		),
	)
	defer span.End()

	if err := r.limiter.Wait(ctx); err != nil {
		r.recordError(ctx, span, method, err)
		return nil, err
	}
	if r.limiter != nil {
		span.SetAttributes(attribute.Float64("ratelimit.tokens", r.limiter.Tokens()))
	}

	var bodyReader io.Reader
	if r.body != nil {
		jsonBody, err := json.Marshal(r.body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to marshal body")
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		r.SetHeader("Content-Type", "application/json")

		if r.logRequest {
			span.AddEvent("request.body", trace.WithAttributes(
				attribute.String("http.request_body", string(jsonBody)),
			))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	send := func() (*Response, error) {
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		response := &Response{Response: resp, body: body, url: safeURL}
		if resp.StatusCode >= http.StatusInternalServerError {
			return response, errServerStatus
		}
		return response, nil
	}

	var response *Response
	if r.breaker != nil {
		response, err = r.breaker.Execute(send)
	} else {
		response, err = send()
	}
	if errors.Is(err, errServerStatus) {
		err = nil
	}
	if err != nil {
		r.recordError(ctx, span, method, err)
		return nil, err
	}

	if r.logResponse {
		span.AddEvent("response.body", trace.WithAttributes(
			attribute.String("http.response_body", string(response.body)),
		))
	}

	span.SetAttributes(attribute.Int("http.status_code", response.StatusCode))
	if response.IsError() {
		span.SetAttributes(attribute.String("http.error.status", response.Status))
		span.SetStatus(codes.Error, response.Status)
	}

	r.recordMetrics(ctx, method, response.IsSuccess())

	return response, nil
}

// recordError logs network errors to the span.
func (r *requestBuilder) recordError(ctx context.Context, span trace.Span, method string, err error) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}

	span.SetStatus(codes.Error, err.Error())
	r.recordMetrics(ctx, method, false)
}

// recordMetrics increments the request counter.
func (r *requestBuilder) recordMetrics(ctx context.Context, method string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", r.providerName),
		attribute.String("method", method),
		attribute.Bool("success", success),
	}

	for _, label := range r.labels {
		attrs = append(attrs, attribute.String(label.Key, label.Value))
	}

	r.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// JoinURL joins path to base with exactly one "/". The path is not escaped.
func JoinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// RedactURL masks the password part of raw, if any.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
