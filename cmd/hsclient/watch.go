package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fd1az/handshake-client/internal/health"
	"github.com/fd1az/handshake-client/pkg/chain"
	"github.com/fd1az/handshake-client/pkg/events"
)

var errDisconnected = errors.New("socket disconnected")

// Wallet socket events pushed after join.
var walletEvents = []string{"tx", "confirmed", "unconfirmed", "conflict", "balance", "address"}

// eventLine is one line of watch output.
type eventLine struct {
	Event    string       `json:"event"`
	Received time.Time    `json:"received"`
	Entry    *chain.Entry `json:"entry,omitempty"`
	Args     []events.Arg `json:"args,omitempty"`
}

func watchCmd(a *app) *cobra.Command {
	var (
		wallet   bool
		walletID string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream node or wallet socket events as JSON lines",
		Long: `Connect to the node socket, authenticate and print every pushed event.

By default the chain and mempool channels follow events.watch_chain and
events.watch_mempool. With --wallet the wallet server socket is used and
the session joins --wallet-id (default every wallet, which needs the admin
key). The command exits non-zero when the node drops the connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.init(cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tel, err := a.setupTelemetry(ctx)
			if err != nil {
				return err
			}
			defer tel.stop()

			ep := a.cfg.Node.Endpoint()
			if wallet {
				ep = a.cfg.WalletEndpoint()
			}

			session, err := events.New(ep,
				events.WithLogger(a.log),
				events.WithMeterProvider(tel.meter),
				events.WithTracerProvider(tel.tracer),
				events.WithCallTimeout(a.cfg.Events.CallTimeout),
				events.WithQueueCapacity(a.cfg.Events.QueueCapacity),
				events.WithHTTPHeader(a.httpHeader()),
				events.WithErrorHandler(func(ctx context.Context, ev events.Event, err error) {
					a.log.Warn(ctx, "event handler failed", "event", ev.Name, "error", err)
				}),
			)
			if err != nil {
				return err
			}
			defer session.Close()

			a.registerPrinters(session, wallet)

			if a.cfg.Health.Port > 0 {
				hs := health.NewServer(a.cfg.Health.Port, version, a.log)
				hs.RegisterCheck("events", func(context.Context) (bool, string) {
					if session.Connected() {
						return true, "connected"
					}
					return false, "disconnected"
				})
				if err := hs.Start(); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					_ = hs.Stop(shutdownCtx)
				}()
				a.log.Info(ctx, "health server started", "addr", hs.Addr())
			}

			if wallet {
				err = session.ConnectWallet(ctx, walletID)
			} else {
				err = session.Connect(ctx, events.Watch{
					Chain:   a.cfg.Events.WatchChain,
					Mempool: a.cfg.Events.WatchMempool,
				})
			}
			if err != nil {
				return err
			}
			a.log.Info(ctx, "watching events", "session", session.ID(), "endpoint", ep.Redacted(), "wallet", wallet)

			if !wallet {
				tip, err := session.GetTip(ctx)
				if err != nil {
					return err
				}
				a.log.Info(ctx, "chain tip", "height", tip.Height, "hash", tip.Hash)
			}

			select {
			case <-ctx.Done():
				a.log.Info(context.WithoutCancel(ctx), "shutting down")
				return nil
			case <-session.Done():
				return errDisconnected
			}
		},
	}

	cmd.Flags().BoolVar(&wallet, "wallet", false, "Watch the wallet server instead of the node")
	cmd.Flags().StringVar(&walletID, "wallet-id", events.AllWallets, "Wallet to join with --wallet")
	return cmd
}

// registerPrinters writes every watched event to a.out. Handlers share the
// session's single dispatch goroutine.
func (a *app) registerPrinters(s *events.Session, wallet bool) {
	enc := json.NewEncoder(a.out)
	write := func(line eventLine) error {
		return enc.Encode(line)
	}

	if wallet {
		for _, name := range walletEvents {
			s.On(name, func(_ context.Context, ev events.Event) error {
				return write(eventLine{Event: ev.Name, Received: ev.Received, Args: ev.Args})
			})
		}
		return
	}

	for _, name := range []string{
		events.EventChainConnect,
		events.EventChainDisconnect,
		events.EventBlockConnect,
		events.EventBlockDisconnect,
		events.EventChainReset,
	} {
		s.OnEntry(name, func(_ context.Context, entry *chain.Entry) error {
			return write(eventLine{Event: name, Received: time.Now().UTC(), Entry: entry})
		})
	}
	s.On(events.EventTx, func(_ context.Context, ev events.Event) error {
		return write(eventLine{Event: ev.Name, Received: ev.Received, Args: ev.Args})
	})
}
