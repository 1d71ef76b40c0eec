package rpc

import (
	"context"

	"github.com/fd1az/handshake-client/pkg/transport"
)

// Client wraps the node RPC methods. Every method is a pass-through to Call.
type Client struct {
	*Core
}

// NewClient builds a node RPC client.
func NewClient(ep transport.Endpoint, opts ...transport.Option) (*Client, error) {
	core, err := NewCore(ep, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Core: core}, nil
}

// Stop asks the node to shut down.
func (c *Client) Stop(ctx context.Context) transport.Result {
	return c.Call(ctx, "stop")
}

func (c *Client) GetInfo(ctx context.Context) transport.Result {
	return c.Call(ctx, "getinfo")
}

func (c *Client) GetMemoryInfo(ctx context.Context) transport.Result {
	return c.Call(ctx, "getmemoryinfo")
}

func (c *Client) SetLogLevel(ctx context.Context, level string) transport.Result {
	return c.Call(ctx, "setloglevel", level)
}

func (c *Client) ValidateAddress(ctx context.Context, address string) transport.Result {
	return c.Call(ctx, "validateaddress", address)
}

func (c *Client) GetBlockchainInfo(ctx context.Context) transport.Result {
	return c.Call(ctx, "getblockchaininfo")
}

func (c *Client) GetBestBlockHash(ctx context.Context) transport.Result {
	return c.Call(ctx, "getbestblockhash")
}

func (c *Client) GetBlockCount(ctx context.Context) transport.Result {
	return c.Call(ctx, "getblockcount")
}

func (c *Client) GetBlock(ctx context.Context, hash string, verbose, details bool) transport.Result {
	return c.Call(ctx, "getblock", hash, verbose, details)
}

func (c *Client) GetBlockByHeight(ctx context.Context, height uint32, verbose, details bool) transport.Result {
	return c.Call(ctx, "getblockbyheight", height, verbose, details)
}

func (c *Client) GetBlockHash(ctx context.Context, height uint32) transport.Result {
	return c.Call(ctx, "getblockhash", height)
}

func (c *Client) GetBlockHeader(ctx context.Context, hash string, verbose bool) transport.Result {
	return c.Call(ctx, "getblockheader", hash, verbose)
}

func (c *Client) GetChainTips(ctx context.Context) transport.Result {
	return c.Call(ctx, "getchaintips")
}

func (c *Client) GetDifficulty(ctx context.Context) transport.Result {
	return c.Call(ctx, "getdifficulty")
}

func (c *Client) GetMempoolInfo(ctx context.Context) transport.Result {
	return c.Call(ctx, "getmempoolinfo")
}

func (c *Client) GetRawMempool(ctx context.Context, verbose bool) transport.Result {
	return c.Call(ctx, "getrawmempool", verbose)
}

func (c *Client) SendRawTransaction(ctx context.Context, rawTx string) transport.Result {
	return c.Call(ctx, "sendrawtransaction", rawTx)
}

func (c *Client) EstimateSmartFee(ctx context.Context, blocks int) transport.Result {
	return c.Call(ctx, "estimatesmartfee", blocks)
}

func (c *Client) GetNameInfo(ctx context.Context, name string) transport.Result {
	return c.Call(ctx, "getnameinfo", name)
}
