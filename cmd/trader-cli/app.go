package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chainsafe/trader-flows/pkg/auth"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/rpc"
	"github.com/chainsafe/trader-flows/pkg/trader"
	"github.com/chainsafe/trader-flows/pkg/trader/client"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "trader-cli",
		Usage: "drive a trader node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "node",
				Usage:   "base URL of the node",
				Value:   "http://localhost:8080",
				EnvVars: []string{"TRADER_NODE_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token for JSON-RPC calls",
				EnvVars: []string{"TRADER_RPC_TOKEN"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 2 * time.Minute,
			},
		},
		Commands: []*cli.Command{
			createCashCmd(),
			sellCashCmd(),
			sellPaperCmd(),
			issueAssetCmd(),
			balancesCmd(),
			partiesCmd(),
			flowCmd(),
			tokenCmd(),
		},
	}
}

func amountFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "amount", Usage: "quantity, e.g. 1000", Required: true},
		&cli.StringFlag{Name: "currency", Usage: "ISO currency code (node default when empty)"},
	}
}

func createCashCmd() *cli.Command {
	return &cli.Command{
		Name:  "create-cash",
		Usage: "issue test cash to the node from the central bank",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "notary", Usage: "notary name (node default when empty)"},
		}, amountFlags()...),
		Action: func(cctx *cli.Context) error {
			ctx, cancel := requestContext(cctx)
			defer cancel()
			resp, err := nodeClient(cctx).CreateTestCash(ctx, &trader.CreateCashRequest{
				Amount:   trader.Quantity(cctx.String("amount")),
				Currency: cctx.String("currency"),
				Notary:   cctx.String("notary"),
			})
			if err != nil {
				return err
			}
			return printJSON(cctx, resp)
		},
	}
}

func sellCashCmd() *cli.Command {
	return &cli.Command{
		Name:      "sell-cash",
		Usage:     "buy commercial paper from a counterparty",
		ArgsUsage: "<seller>",
		Flags:     append(paperFlags(), amountFlags()...),
		Action: func(cctx *cli.Context) error {
			return trade(cctx, (*client.Client).SellCash)
		},
	}
}

func sellPaperCmd() *cli.Command {
	return &cli.Command{
		Name:      "sell-paper",
		Usage:     "sell commercial paper to a counterparty",
		ArgsUsage: "<buyer>",
		Flags:     append(paperFlags(), amountFlags()...),
		Action: func(cctx *cli.Context) error {
			return trade(cctx, (*client.Client).SellPaper)
		},
	}
}

func paperFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "paper-tx", Usage: "transaction ID of existing paper to trade"},
		&cli.IntFlag{Name: "paper-index", Usage: "output index of the paper"},
	}
}

type tradeFunc func(c *client.Client, ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error)

func trade(cctx *cli.Context, call tradeFunc) error {
	if cctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one counterparty argument")
	}
	req := &trader.TradeRequest{
		Amount:   trader.Quantity(cctx.String("amount")),
		Currency: cctx.String("currency"),
	}
	if tx := cctx.String("paper-tx"); tx != "" {
		id, err := ledger.ParseSecureHash(tx)
		if err != nil {
			return fmt.Errorf("paper-tx: %w", err)
		}
		req.Paper = &ledger.StateRef{TxID: id, Index: cctx.Int("paper-index")}
	}

	ctx, cancel := requestContext(cctx)
	defer cancel()
	resp, err := call(nodeClient(cctx), ctx, cctx.Args().First(), req)
	if err != nil {
		return err
	}
	return printJSON(cctx, resp)
}

func issueAssetCmd() *cli.Command {
	return &cli.Command{
		Name:  "issue-asset",
		Usage: "request cash from an issuing bank",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "amount", Required: true},
			&cli.StringFlag{Name: "currency", Value: "USD"},
			&cli.StringFlag{Name: "to", Usage: "receiving party, must be the node itself", Required: true},
			&cli.StringFlag{Name: "ref", Usage: "hex issuance reference", Value: "01"},
			&cli.StringFlag{Name: "issuer", Value: "BankOfCorda"},
			&cli.StringFlag{Name: "notary", Value: "Notary"},
		},
		Action: func(cctx *cli.Context) error {
			ctx, cancel := requestContext(cctx)
			defer cancel()
			resp, err := nodeClient(cctx).IssueAsset(ctx, &trader.IssueAssetRequest{
				Amount:                  trader.Quantity(cctx.String("amount")),
				Currency:                cctx.String("currency"),
				IssueToPartyRefAsString: cctx.String("ref"),
				IssueToPartyName:        cctx.String("to"),
				IssuerBankName:          cctx.String("issuer"),
				NotaryName:              cctx.String("notary"),
			})
			if err != nil {
				return err
			}
			return printJSON(cctx, resp)
		},
	}
}

func balancesCmd() *cli.Command {
	return &cli.Command{
		Name:  "balances",
		Usage: "show the node's cash and paper",
		Action: func(cctx *cli.Context) error {
			ctx, cancel := requestContext(cctx)
			defer cancel()
			b, err := nodeClient(cctx).Balances(ctx)
			if err != nil {
				return err
			}
			return printJSON(cctx, b)
		},
	}
}

func partiesCmd() *cli.Command {
	return &cli.Command{
		Name:  "parties",
		Usage: "list the network map",
		Action: func(cctx *cli.Context) error {
			ctx, cancel := requestContext(cctx)
			defer cancel()
			parties, err := nodeClient(cctx).Parties(ctx)
			if err != nil {
				return err
			}
			return printJSON(cctx, parties)
		},
	}
}

func flowCmd() *cli.Command {
	return &cli.Command{
		Name:  "flow",
		Usage: "start and await flows over JSON-RPC",
		Subcommands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "start a flow",
				ArgsUsage: "<flow>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "args", Usage: "flow arguments as JSON", Value: "{}"},
					&cli.BoolFlag{Name: "wait", Usage: "await the outcome"},
				},
				Action: func(cctx *cli.Context) error {
					if cctx.NArg() != 1 {
						return fmt.Errorf("expected exactly one flow name")
					}
					args := json.RawMessage(cctx.String("args"))
					if !json.Valid(args) {
						return fmt.Errorf("--args is not valid JSON")
					}

					ctx, cancel := requestContext(cctx)
					defer cancel()
					c := rpcClient(cctx)
					started, err := c.StartFlow(ctx, cctx.Args().First(), args)
					if err != nil {
						return err
					}
					if !cctx.Bool("wait") {
						return printJSON(cctx, started)
					}
					res, err := c.AwaitFlow(ctx, started.ID, cctx.Duration("timeout").Milliseconds())
					if err != nil {
						return err
					}
					return printJSON(cctx, res)
				},
			},
			{
				Name:      "await",
				Usage:     "await a started flow",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "timeout-ms", Usage: "how long to wait, server default when zero"},
				},
				Action: func(cctx *cli.Context) error {
					if cctx.NArg() != 1 {
						return fmt.Errorf("expected exactly one flow id")
					}
					ctx, cancel := requestContext(cctx)
					defer cancel()
					res, err := rpcClient(cctx).AwaitFlow(ctx, cctx.Args().First(), cctx.Int64("timeout-ms"))
					if err != nil {
						return err
					}
					return printJSON(cctx, res)
				},
			},
		},
	}
}

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a JSON-RPC bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret-env", Usage: "env var holding the signing secret", Value: "TRADER_JWT_SECRET"},
			&cli.StringFlag{Name: "issuer", Value: "trader-network"},
			&cli.StringFlag{Name: "subject", Value: "trader-cli"},
			&cli.StringSliceFlag{Name: "permission", Usage: "e.g. StartFlow.trade.buy or StartFlow.*", Required: true},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(cctx *cli.Context) error {
			secret := os.Getenv(cctx.String("secret-env"))
			if secret == "" {
				return fmt.Errorf("signing secret not set: env=%s", cctx.String("secret-env"))
			}
			token, err := auth.NewJWTValidator([]byte(secret), cctx.String("issuer")).
				IssueToken(cctx.String("subject"), cctx.StringSlice("permission"), cctx.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cctx.App.Writer, token)
			return err
		},
	}
}

func nodeClient(cctx *cli.Context) *client.Client {
	return client.New(cctx.String("node"), nil)
}

func rpcClient(cctx *cli.Context) *rpc.Client {
	return rpc.NewClient(cctx.String("node"), cctx.String("token"), nil)
}

func requestContext(cctx *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cctx.Context, cctx.Duration("timeout"))
}

func printJSON(cctx *cli.Context, v any) error {
	enc := json.NewEncoder(cctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
