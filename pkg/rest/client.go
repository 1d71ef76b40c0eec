package rest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fd1az/handshake-client/pkg/transport"
)

// Client wraps the node REST endpoints. Every method is a pass-through to
// the core and returns its Result untouched.
type Client struct {
	*Core
}

// NewClient builds a node REST client.
func NewClient(ep transport.Endpoint, opts ...transport.Option) (*Client, error) {
	core, err := NewCore(ep, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Core: core}, nil
}

func (c *Client) GetInfo(ctx context.Context) transport.Result {
	return c.Get(ctx, "")
}

func (c *Client) GetMempool(ctx context.Context) transport.Result {
	return c.Get(ctx, "mempool")
}

func (c *Client) GetMempoolInvalid(ctx context.Context) transport.Result {
	return c.Get(ctx, "mempool/invalid")
}

func (c *Client) GetMempoolInvalidByHash(ctx context.Context, hash string) transport.Result {
	return c.Get(ctx, "mempool/invalid/"+hash)
}

func (c *Client) GetBlockByHash(ctx context.Context, hash string) transport.Result {
	return c.Get(ctx, "block/"+hash)
}

func (c *Client) GetBlockByHeight(ctx context.Context, height uint32) transport.Result {
	return c.Get(ctx, "block/"+strconv.FormatUint(uint64(height), 10))
}

// GetHeaderByHashOrHeight accepts either a block hash or a decimal height.
func (c *Client) GetHeaderByHashOrHeight(ctx context.Context, hashOrHeight string) transport.Result {
	return c.Get(ctx, "header/"+hashOrHeight)
}

func (c *Client) BroadcastTx(ctx context.Context, txHex string) transport.Result {
	return c.Post(ctx, "broadcast", map[string]any{"tx": txHex})
}

func (c *Client) BroadcastClaim(ctx context.Context, claim string) transport.Result {
	return c.Post(ctx, "claim", map[string]any{"claim": claim})
}

func (c *Client) EstimateFee(ctx context.Context, blocks int) transport.Result {
	return c.Get(ctx, fmt.Sprintf("fee?blocks=%d", blocks))
}

// Reset rewinds the chain to height.
func (c *Client) Reset(ctx context.Context, height uint32) transport.Result {
	return c.Post(ctx, "reset", map[string]any{"height": height})
}

func (c *Client) GetCoinByHashAndIndex(ctx context.Context, hash string, index uint32) transport.Result {
	return c.Get(ctx, fmt.Sprintf("coin/%s/%d", hash, index))
}

func (c *Client) GetCoinsByAddress(ctx context.Context, address string) transport.Result {
	return c.Get(ctx, "coin/address/"+address)
}

func (c *Client) GetCoinsByAddresses(ctx context.Context, addresses []string) transport.Result {
	return c.Post(ctx, "coin/address", map[string]any{"address": addresses})
}

func (c *Client) GetTxByHash(ctx context.Context, hash string) transport.Result {
	return c.Get(ctx, "tx/"+hash)
}

func (c *Client) GetTxsByAddress(ctx context.Context, address string) transport.Result {
	return c.Get(ctx, "tx/address/"+address)
}

func (c *Client) GetTxsByAddresses(ctx context.Context, addresses []string) transport.Result {
	return c.Post(ctx, "tx/address", map[string]any{"address": addresses})
}
