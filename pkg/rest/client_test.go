package rest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/handshake-client/pkg/rest"
	"github.com/fd1az/handshake-client/pkg/transport"
)

func TestClient_Paths(t *testing.T) {
	node, ep := newNode(t, http.StatusOK, `{}`)

	client, err := rest.NewClient(ep)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() transport.Result
		method string
		path   string
		query  string
		body   string
	}{
		{"info", func() transport.Result { return client.GetInfo(ctx) }, http.MethodGet, "/", "", ""},
		{"mempool", func() transport.Result { return client.GetMempool(ctx) }, http.MethodGet, "/mempool", "", ""},
		{"invalid by hash", func() transport.Result { return client.GetMempoolInvalidByHash(ctx, "ab") }, http.MethodGet, "/mempool/invalid/ab", "", ""},
		{"block by height", func() transport.Result { return client.GetBlockByHeight(ctx, 7) }, http.MethodGet, "/block/7", "", ""},
		{"header", func() transport.Result { return client.GetHeaderByHashOrHeight(ctx, "7") }, http.MethodGet, "/header/7", "", ""},
		{"fee", func() transport.Result { return client.EstimateFee(ctx, 3) }, http.MethodGet, "/fee", "blocks=3", ""},
		{"broadcast", func() transport.Result { return client.BroadcastTx(ctx, "00") }, http.MethodPost, "/broadcast", "", `{"tx":"00"}`},
		{"claim", func() transport.Result { return client.BroadcastClaim(ctx, "c1") }, http.MethodPost, "/claim", "", `{"claim":"c1"}`},
		{"reset", func() transport.Result { return client.Reset(ctx, 10) }, http.MethodPost, "/reset", "", `{"height":10}`},
		{"coin", func() transport.Result { return client.GetCoinByHashAndIndex(ctx, "ff", 1) }, http.MethodGet, "/coin/ff/1", "", ""},
		{"coins by addresses", func() transport.Result { return client.GetCoinsByAddresses(ctx, []string{"a", "b"}) }, http.MethodPost, "/coin/address", "", `{"address":["a","b"]}`},
		{"txs by address", func() transport.Result { return client.GetTxsByAddress(ctx, "hs1q") }, http.MethodGet, "/tx/address/hs1q", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, tt.call().OK())

			req := node.last(t)
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.path, req.Path)
			assert.Equal(t, tt.query, req.RawQuery)
			if tt.body == "" {
				assert.Empty(t, req.Body)
			} else {
				assert.JSONEq(t, tt.body, req.Body)
			}
		})
	}
}

func TestWalletClient_ScopesPaths(t *testing.T) {
	node, ep := newNode(t, http.StatusOK, `{"success":true}`)

	wallet, err := rest.NewWalletClient(ep, "primary")
	require.NoError(t, err)
	assert.Equal(t, "primary", wallet.ID())
	ctx := context.Background()

	require.True(t, wallet.GetBalance(ctx, "default").OK())
	req := node.last(t)
	assert.Equal(t, "/wallet/primary/balance", req.Path)
	assert.Equal(t, "account=default", req.RawQuery)

	require.True(t, wallet.UnlockOutpoint(ctx, "ff", 0, "").OK())
	req = node.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/wallet/primary/locked/ff/0", req.Path)
	assert.Equal(t, "application/json", req.ContentType)
	assert.JSONEq(t, `{}`, req.Body)

	require.True(t, wallet.CreateWallet(ctx, rest.CreateWalletParams{Passphrase: "pw"}).OK())
	req = node.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/wallet/primary/", req.Path)
	assert.JSONEq(t, `{"witness":false,"type":"pubkeyhash","m":1,"n":1,"watchOnly":false,"accountDepth":0,"passphrase":"pw"}`, req.Body)
}

func TestNewWalletClient_RequiresID(t *testing.T) {
	_, err := rest.NewWalletClient(transport.Endpoint{Host: "localhost", Port: 12039}, " ")
	require.Error(t, err)
}
