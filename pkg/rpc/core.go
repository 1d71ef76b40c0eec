// Package rpc is the JSON-RPC call core for the node and the method wrappers
// built on it.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/fd1az/handshake-client/internal/httpclient"
	"github.com/fd1az/handshake-client/internal/logger"
	"github.com/fd1az/handshake-client/pkg/transport"
)

type request struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     uint64 `json:"id"`
}

// response accepts both JSON-RPC 2.0 replies and hsd's replies without a
// jsonrpc member.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID json.RawMessage `json:"id"`
}

// Core issues JSON-RPC calls against one endpoint. It is safe for concurrent use.
type Core struct {
	endpoint transport.Endpoint
	baseURL  string
	client   httpclient.Client
	log      logger.LoggerInterface
	nextID   atomic.Uint64
}

// NewCore builds a core for ep.
func NewCore(ep transport.Endpoint, opts ...transport.Option) (*Core, error) {
	ep = ep.WithDefaults()
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	o := transport.NewOptions(opts...)
	client, err := o.NewHTTPClient(ep, "rpc")
	if err != nil {
		return nil, err
	}

	return &Core{
		endpoint: ep,
		baseURL:  ep.BaseURL(),
		client:   client,
		log:      o.Logger.With("component", "rpc"),
	}, nil
}

// Endpoint returns the endpoint the core was built from.
func (c *Core) Endpoint() transport.Endpoint {
	return c.endpoint
}

// Call invokes method with positional args. Each call builds its own request
// from the endpoint. Connection errors, non-2xx replies and RPC error members
// all come back as a Failure.
func (c *Core) Call(ctx context.Context, method string, args ...any) transport.Result {
	if strings.TrimSpace(method) == "" {
		return c.fail(ctx, method, transport.InvalidRequest("rpc method is required"))
	}
	if args == nil {
		args = []any{}
	}

	env := request{Method: method, Params: args, ID: c.nextID.Add(1)}
	fullURL := httpclient.JoinURL(c.baseURL, "")

	resp, err := c.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("rpc.method", method))).
		SetBody(env).
		Post(ctx, "")
	if err != nil {
		return c.fail(ctx, method, transport.ConnectionFailure(err, fullURL))
	}

	var out response
	decodeErr := json.Unmarshal(bytes.TrimSpace(resp.Body()), &out)

	if decodeErr == nil && out.Error != nil {
		return c.fail(ctx, method, transport.RPCFailure(out.Error.Code, out.Error.Message))
	}
	if resp.IsError() {
		return c.fail(ctx, method, transport.StatusFailure(resp.StatusCode, resp.Body(), fullURL))
	}
	if decodeErr != nil {
		return c.fail(ctx, method, transport.DecodeFailure(decodeErr))
	}

	return transport.Success(out.Result)
}

func (c *Core) fail(ctx context.Context, method string, f *transport.Failure) transport.Result {
	c.log.Debug(ctx, "rpc call failed",
		"method", method,
		"kind", string(f.Kind),
		"error", f.Message)
	return transport.Fail(f)
}
