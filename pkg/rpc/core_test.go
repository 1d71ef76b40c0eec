package rpc_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/handshake-client/pkg/rpc"
	"github.com/fd1az/handshake-client/pkg/transport"
)

type envelope struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     uint64            `json:"id"`
}

// rpcNode answers each method from a fixed table.
type rpcNode struct {
	mu       sync.Mutex
	calls    []envelope
	headers  []http.Header
	status   int
	replies  map[string]string
	fallback string
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env envelope
	_ = json.NewDecoder(r.Body).Decode(&env)

	n.mu.Lock()
	n.calls = append(n.calls, env)
	n.headers = append(n.headers, r.Header.Clone())
	reply, ok := n.replies[env.Method]
	status := n.status
	n.mu.Unlock()

	if !ok {
		reply = n.fallback
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply))
}

func (n *rpcNode) recorded() ([]envelope, []http.Header) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]envelope(nil), n.calls...), append([]http.Header(nil), n.headers...)
}

func startNode(t *testing.T, n *rpcNode) transport.Endpoint {
	t.Helper()
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	return endpointFor(t, srv.URL)
}

func endpointFor(t *testing.T, rawURL string) transport.Endpoint {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return transport.Endpoint{Host: host, Port: port, APIKey: "secret"}
}

func errorMessage(t *testing.T, r transport.Result) string {
	t.Helper()
	require.False(t, r.OK())
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var shape struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &shape))
	require.NotNil(t, shape.Error)
	require.NotEmpty(t, shape.Error.Message)
	return shape.Error.Message
}

func TestCall_Success(t *testing.T) {
	node := &rpcNode{replies: map[string]string{
		"getblockcount": `{"result":1234,"error":null,"id":1}`,
	}}
	core, err := rpc.NewCore(startNode(t, node))
	require.NoError(t, err)

	r := core.Call(context.Background(), "getblockcount")
	require.True(t, r.OK())

	count, err := transport.Decode[int](r)
	require.NoError(t, err)
	assert.Equal(t, 1234, count)

	calls, headers := node.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "getblockcount", calls[0].Method)
	assert.NotNil(t, calls[0].Params)
	assert.Empty(t, calls[0].Params)
	assert.Equal(t, "application/json", headers[0].Get("Content-Type"))
}

func TestCall_PositionalParams(t *testing.T) {
	node := &rpcNode{fallback: `{"result":{"hash":"ff"},"id":1}`}
	client, err := rpc.NewClient(startNode(t, node))
	require.NoError(t, err)

	r := client.GetBlock(context.Background(), "ff", true, false)
	require.True(t, r.OK())

	calls, _ := node.recorded()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "getblock", call.Method)
	require.Len(t, call.Params, 3)
	assert.JSONEq(t, `"ff"`, string(call.Params[0]))
	assert.JSONEq(t, `true`, string(call.Params[1]))
	assert.JSONEq(t, `false`, string(call.Params[2]))
}

func TestCall_FreshIDPerCall(t *testing.T) {
	node := &rpcNode{fallback: `{"result":null,"id":0}`}
	client, err := rpc.NewClient(startNode(t, node))
	require.NoError(t, err)

	require.True(t, client.GetInfo(context.Background()).OK())
	require.True(t, client.GetInfo(context.Background()).OK())

	calls, _ := node.recorded()
	require.Len(t, calls, 2)
	assert.NotEqual(t, calls[0].ID, calls[1].ID)
}

func TestCall_RPCFault(t *testing.T) {
	node := &rpcNode{
		status:   http.StatusInternalServerError,
		fallback: `{"result":null,"error":{"message":"Method not found.","code":-32601},"id":1}`,
	}
	core, err := rpc.NewCore(startNode(t, node))
	require.NoError(t, err)

	r := core.Call(context.Background(), "nosuchmethod")
	assert.Equal(t, "Method not found.", errorMessage(t, r))
	assert.Equal(t, transport.KindRPC, r.Failure().Kind)
	require.NotNil(t, r.Failure().Code)
	assert.Equal(t, -32601, *r.Failure().Code)
}

func TestCall_RPCFaultWithOKStatus(t *testing.T) {
	node := &rpcNode{fallback: `{"result":null,"error":{"message":"Invalid parameter.","code":-8},"id":1}`}
	core, err := rpc.NewCore(startNode(t, node))
	require.NoError(t, err)

	r := core.Call(context.Background(), "getblockhash", -1)
	assert.Equal(t, "Invalid parameter.", errorMessage(t, r))
}

func TestCall_StatusWithoutRPCBody(t *testing.T) {
	node := &rpcNode{status: http.StatusForbidden, fallback: ""}
	core, err := rpc.NewCore(startNode(t, node))
	require.NoError(t, err)

	r := core.Call(context.Background(), "getinfo")
	msg := errorMessage(t, r)
	assert.Contains(t, msg, "403 Client Error: Forbidden for url:")
	assert.NotContains(t, msg, "secret")
}

func TestCall_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	ep := endpointFor(t, srv.URL)
	srv.Close()

	core, err := rpc.NewCore(ep)
	require.NoError(t, err)

	r := core.Call(context.Background(), "getinfo")
	errorMessage(t, r)
	assert.Equal(t, transport.KindConnection, r.Failure().Kind)
}

func TestCall_EmptyMethod(t *testing.T) {
	node := &rpcNode{}
	core, err := rpc.NewCore(startNode(t, node))
	require.NoError(t, err)

	r := core.Call(context.Background(), "  ")
	errorMessage(t, r)
	assert.Equal(t, transport.KindInvalidRequest, r.Failure().Kind)
	calls, _ := node.recorded()
	assert.Empty(t, calls)
}

func TestCall_NonJSONSuccess(t *testing.T) {
	node := &rpcNode{fallback: "ok"}
	core, err := rpc.NewCore(startNode(t, node))
	require.NoError(t, err)

	r := core.Call(context.Background(), "getinfo")
	errorMessage(t, r)
	assert.Equal(t, transport.KindDecode, r.Failure().Kind)
}

func TestCall_SameShapeAsConnectionFailure(t *testing.T) {
	fault := &rpcNode{fallback: `{"error":{"message":"boom","code":-1}}`}
	faultCore, err := rpc.NewCore(startNode(t, fault))
	require.NoError(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	refusedEP := endpointFor(t, srv.URL)
	srv.Close()
	refusedCore, err := rpc.NewCore(refusedEP)
	require.NoError(t, err)

	errorMessage(t, faultCore.Call(context.Background(), "getinfo"))
	errorMessage(t, refusedCore.Call(context.Background(), "getinfo"))
}
