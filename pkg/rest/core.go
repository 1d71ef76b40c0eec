// Package rest is the HTTP request core for the node's REST API and the
// endpoint wrappers built on it.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fd1az/handshake-client/internal/httpclient"
	"github.com/fd1az/handshake-client/internal/logger"
	"github.com/fd1az/handshake-client/pkg/transport"
)

var errInvalidJSON = errors.New("response body is not valid JSON")

// Core issues REST requests against one endpoint. It is safe for concurrent use.
type Core struct {
	endpoint transport.Endpoint
	baseURL  string
	client   httpclient.Client
	log      logger.LoggerInterface
}

// NewCore builds a core for ep.
func NewCore(ep transport.Endpoint, opts ...transport.Option) (*Core, error) {
	return newCore(ep, "rest", opts...)
}

func newCore(ep transport.Endpoint, provider string, opts ...transport.Option) (*Core, error) {
	ep = ep.WithDefaults()
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	o := transport.NewOptions(opts...)
	client, err := o.NewHTTPClient(ep, provider)
	if err != nil {
		return nil, err
	}

	return &Core{
		endpoint: ep,
		baseURL:  ep.BaseURL(),
		client:   client,
		log:      o.Logger.With("component", provider),
	}, nil
}

// Endpoint returns the endpoint the core was built from.
func (c *Core) Endpoint() transport.Endpoint {
	return c.endpoint
}

// Get issues a GET. No body is sent.
func (c *Core) Get(ctx context.Context, path string) transport.Result {
	return c.Request(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with params as the JSON body.
func (c *Core) Post(ctx context.Context, path string, params map[string]any) transport.Result {
	return c.Request(ctx, http.MethodPost, path, params)
}

// Put issues a PUT with params as the JSON body.
func (c *Core) Put(ctx context.Context, path string, params map[string]any) transport.Result {
	return c.Request(ctx, http.MethodPut, path, params)
}

// Delete issues a DELETE with params as the JSON body.
func (c *Core) Delete(ctx context.Context, path string, params map[string]any) transport.Result {
	return c.Request(ctx, http.MethodDelete, path, params)
}

// Request joins path to the base URL with a single "/" and sends it. params,
// when non-nil and the method is not GET, is sent as an application/json body.
// Every failure comes back as a Failure inside the Result.
func (c *Core) Request(ctx context.Context, method, path string, params map[string]any) transport.Result {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return c.fail(ctx, method, path, transport.InvalidRequest("unsupported method: "+method))
	}

	req := c.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("operation", "rest")))
	if params != nil && method != http.MethodGet {
		req.SetBody(params)
	}

	fullURL := httpclient.JoinURL(c.baseURL, path)

	resp, err := req.Do(ctx, method, path)
	if err != nil {
		return c.fail(ctx, method, path, transport.ConnectionFailure(err, fullURL))
	}

	if resp.IsError() {
		return c.fail(ctx, method, path, transport.StatusFailure(resp.StatusCode, resp.Body(), fullURL))
	}

	body := resp.Body()
	if len(body) > 0 && !json.Valid(body) {
		return c.fail(ctx, method, path, transport.DecodeFailure(errInvalidJSON))
	}

	return transport.Success(body)
}

func (c *Core) fail(ctx context.Context, method, path string, f *transport.Failure) transport.Result {
	c.log.Debug(ctx, "node request failed",
		"method", method,
		"path", path,
		"kind", string(f.Kind),
		"status", f.Status,
		"error", f.Message)
	return transport.Fail(f)
}
