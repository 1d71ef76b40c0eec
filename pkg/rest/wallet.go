package rest

import (
	"context"
	"fmt"
	"strings"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/pkg/transport"
)

// WalletClient wraps the endpoints under /wallet/<id> on the wallet node.
type WalletClient struct {
	*Core
	id string
}

// NewWalletClient builds a client scoped to walletID.
func NewWalletClient(ep transport.Endpoint, walletID string, opts ...transport.Option) (*WalletClient, error) {
	walletID = strings.TrimSpace(walletID)
	if walletID == "" {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "wallet id is required")
	}

	ep.Path = "wallet/" + walletID
	core, err := newCore(ep, "wallet", opts...)
	if err != nil {
		return nil, err
	}
	return &WalletClient{Core: core, id: walletID}, nil
}

// ID returns the wallet id.
func (w *WalletClient) ID() string {
	return w.id
}

// CreateWalletParams are the optional fields of a wallet creation.
type CreateWalletParams struct {
	Type         string
	Master       string
	Mnemonic     string
	Passphrase   string
	Witness      bool
	M            int
	N            int
	WatchOnly    bool
	AccountKey   string
	AccountDepth int
}

// CreateWallet creates the wallet with this client's id.
func (w *WalletClient) CreateWallet(ctx context.Context, p CreateWalletParams) transport.Result {
	if p.Type == "" {
		p.Type = "pubkeyhash"
	}
	if p.M == 0 {
		p.M = 1
	}
	if p.N == 0 {
		p.N = 1
	}

	params := map[string]any{
		"witness":      p.Witness,
		"type":         p.Type,
		"m":            p.M,
		"n":            p.N,
		"watchOnly":    p.WatchOnly,
		"accountDepth": p.AccountDepth,
	}
	if p.Master != "" {
		params["master"] = p.Master
	}
	if p.Mnemonic != "" {
		params["mnemonic"] = p.Mnemonic
	}
	if p.Passphrase != "" {
		params["passphrase"] = p.Passphrase
	}
	if p.AccountKey != "" {
		params["accountKey"] = p.AccountKey
	}

	return w.Put(ctx, "", params)
}

func (w *WalletClient) GetWalletInfo(ctx context.Context) transport.Result {
	return w.Get(ctx, "")
}

func (w *WalletClient) GetMasterHDKey(ctx context.Context) transport.Result {
	return w.Get(ctx, "master")
}

func (w *WalletClient) GetBalance(ctx context.Context, account string) transport.Result {
	return w.Get(ctx, "balance?account="+account)
}

func (w *WalletClient) GetCoins(ctx context.Context) transport.Result {
	return w.Get(ctx, "coin")
}

func (w *WalletClient) GenerateReceiveAddress(ctx context.Context, account string) transport.Result {
	return w.Post(ctx, "address", map[string]any{"account": account})
}

// LockOutpoint marks hash:index as locked.
func (w *WalletClient) LockOutpoint(ctx context.Context, hash string, index uint32, passphrase string) transport.Result {
	return w.Put(ctx, fmt.Sprintf("locked/%s/%d", hash, index), passphraseParams(passphrase))
}

// UnlockOutpoint releases a locked outpoint.
func (w *WalletClient) UnlockOutpoint(ctx context.Context, hash string, index uint32, passphrase string) transport.Result {
	return w.Delete(ctx, fmt.Sprintf("locked/%s/%d", hash, index), passphraseParams(passphrase))
}

func (w *WalletClient) GetLockedOutpoints(ctx context.Context) transport.Result {
	return w.Get(ctx, "locked")
}

func (w *WalletClient) AddSharedKey(ctx context.Context, account, accountKey string) transport.Result {
	return w.Put(ctx, "shared-key", map[string]any{"account": account, "accountKey": accountKey})
}

func (w *WalletClient) RemoveSharedKey(ctx context.Context, account, accountKey string) transport.Result {
	return w.Delete(ctx, "shared-key", map[string]any{"account": account, "accountKey": accountKey})
}

func (w *WalletClient) GetTxHistory(ctx context.Context) transport.Result {
	return w.Get(ctx, "tx/history")
}

func (w *WalletClient) GetPendingTxs(ctx context.Context) transport.Result {
	return w.Get(ctx, "tx/unconfirmed")
}

func passphraseParams(passphrase string) map[string]any {
	params := map[string]any{}
	if passphrase != "" {
		params["passphrase"] = passphrase
	}
	return params
}
