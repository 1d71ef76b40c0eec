package transport_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/handshake-client/pkg/transport"
)

func localEndpoint(t *testing.T, rawURL string) transport.Endpoint {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return transport.Endpoint{Host: host, Port: port}.WithDefaults()
}

// bodyEvents returns the body span events recorded on request spans.
func bodyEvents(sr *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range sr.Ended() {
		if s.Name() != "hsd.http.request" {
			continue
		}
		for _, ev := range s.Events() {
			if ev.Name == "request.body" || ev.Name == "response.body" {
				names = append(names, ev.Name)
			}
		}
	}
	return names
}

func TestOptions_HeadersAndTraceBodies(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Request-Source")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	opts := transport.NewOptions(
		transport.WithHeaders(map[string]string{"X-Request-Source": "ops"}),
		transport.WithTracerProvider(tp),
		transport.WithTraceBodies(true),
	)
	client, err := opts.NewHTTPClient(localEndpoint(t, srv.URL), "rest")
	require.NoError(t, err)

	_, err = client.NewRequest().SetBody(map[string]any{"a": 1}).Post(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, "ops", gotHeader)
	assert.ElementsMatch(t, []string{"request.body", "response.body"}, bodyEvents(sr))
}

func TestOptions_TraceBodiesOffByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	client, err := transport.NewOptions(transport.WithTracerProvider(tp)).NewHTTPClient(localEndpoint(t, srv.URL), "rpc")
	require.NoError(t, err)

	_, err = client.NewRequest().SetBody(map[string]any{"a": 1}).Post(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, bodyEvents(sr))
	assert.NotEmpty(t, sr.Ended())
}
