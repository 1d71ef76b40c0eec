package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fd1az/handshake-client/pkg/rest"
	"github.com/fd1az/handshake-client/pkg/rpc"
)

func infoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show node info (GET /)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.init(cmd.ErrOrStderr()); err != nil {
				return err
			}
			client, err := rest.NewClient(a.cfg.Node.Endpoint(), a.transportOptions()...)
			if err != nil {
				return err
			}
			return a.print(client.GetInfo(cmd.Context()))
		},
	}
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an arbitrary node path, e.g. /block/100",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd.ErrOrStderr()); err != nil {
				return err
			}
			core, err := rest.NewCore(a.cfg.Node.Endpoint(), a.transportOptions()...)
			if err != nil {
				return err
			}
			return a.print(core.Get(cmd.Context(), args[0]))
		},
	}
}

func postCmd(a *app) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "post <path> [json-body]",
		Short: "Send a JSON body to a node path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method = strings.ToUpper(method)
			switch method {
			case http.MethodPost, http.MethodPut, http.MethodDelete:
			default:
				return fmt.Errorf("unsupported method %q", method)
			}

			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			body, err := parseBody(raw)
			if err != nil {
				return err
			}

			if err := a.init(cmd.ErrOrStderr()); err != nil {
				return err
			}
			core, err := rest.NewCore(a.cfg.Node.Endpoint(), a.transportOptions()...)
			if err != nil {
				return err
			}
			return a.print(core.Request(cmd.Context(), method, args[0], body))
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodPost, "HTTP method (POST, PUT, DELETE)")
	return cmd
}

func rpcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rpc <method> [params...]",
		Short: "Call a JSON-RPC method",
		Long: `Call a JSON-RPC method on the node.

Each parameter is parsed as JSON when possible, so 100 is a number, true a
boolean and "abc" or abc a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd.ErrOrStderr()); err != nil {
				return err
			}
			core, err := rpc.NewCore(a.cfg.Node.Endpoint(), a.transportOptions()...)
			if err != nil {
				return err
			}

			params := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				params = append(params, parseParam(arg))
			}
			return a.print(core.Call(cmd.Context(), args[0], params...))
		},
	}
}

func walletCmd(a *app) *cobra.Command {
	var walletID, account string

	newClient := func(cmd *cobra.Command) (*rest.WalletClient, error) {
		if err := a.init(cmd.ErrOrStderr()); err != nil {
			return nil, err
		}
		id := walletID
		if id == "" {
			id = a.cfg.Wallet.ID
		}
		return rest.NewWalletClient(a.cfg.WalletEndpoint(), id, a.transportOptions()...)
	}

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Query the wallet server",
	}
	cmd.PersistentFlags().StringVar(&walletID, "id", "", "Wallet id (default wallet.id)")
	cmd.PersistentFlags().StringVar(&account, "account", "", "Account name")

	sub := func(use, short string, call func(*cobra.Command, *rest.WalletClient) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				w, err := newClient(cmd)
				if err != nil {
					return err
				}
				return call(cmd, w)
			},
		}
	}

	cmd.AddCommand(
		sub("info", "Show wallet info", func(cmd *cobra.Command, w *rest.WalletClient) error {
			return a.print(w.GetWalletInfo(cmd.Context()))
		}),
		sub("balance", "Show wallet balance", func(cmd *cobra.Command, w *rest.WalletClient) error {
			return a.print(w.GetBalance(cmd.Context(), account))
		}),
		sub("history", "Show wallet transaction history", func(cmd *cobra.Command, w *rest.WalletClient) error {
			return a.print(w.GetTxHistory(cmd.Context()))
		}),
		sub("pending", "Show unconfirmed wallet transactions", func(cmd *cobra.Command, w *rest.WalletClient) error {
			return a.print(w.GetPendingTxs(cmd.Context()))
		}),
		sub("coins", "List wallet coins", func(cmd *cobra.Command, w *rest.WalletClient) error {
			return a.print(w.GetCoins(cmd.Context()))
		}),
		sub("address", "Derive a new receive address", func(cmd *cobra.Command, w *rest.WalletClient) error {
			return a.print(w.GenerateReceiveAddress(cmd.Context(), accountOrDefault(account)))
		}),
	)
	return cmd
}

func accountOrDefault(account string) string {
	if account == "" {
		return "default"
	}
	return account
}

func blockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "block <height|hash>",
		Short: "Show a block by height or hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd.ErrOrStderr()); err != nil {
				return err
			}
			client, err := rest.NewClient(a.cfg.Node.Endpoint(), a.transportOptions()...)
			if err != nil {
				return err
			}
			if height, err := strconv.ParseUint(args[0], 10, 32); err == nil {
				return a.print(client.GetBlockByHeight(cmd.Context(), uint32(height)))
			}
			return a.print(client.GetBlockByHash(cmd.Context(), args[0]))
		},
	}
}
