package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli"
)

var statusCommand = cli.Command{
	Name:  "status",
	Usage: "show the node's last round and the configured sale",
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		c, cleanUp, err := getClient(cfg)
		if err != nil {
			return err
		}
		defer cleanUp()

		status, err := c.NodeStatus(context.Background())
		if err != nil {
			return err
		}

		printJSON(struct {
			AlgodURL    string `json:"algod_url"`
			LastRound   uint64 `json:"last_round"`
			LastVersion string `json:"last_version"`
			AppID       uint64 `json:"app_id"`
			Collector   string `json:"collector,omitempty"`
		}{
			AlgodURL:    cfg.AlgodURL,
			LastRound:   status.LastRound,
			LastVersion: status.LastVersion,
			AppID:       cfg.AppID,
			Collector:   cfg.Collector,
		})

		return nil
	},
}

var holdingCommand = cli.Command{
	Name:      "holding",
	Usage:     "show whether an account holds an asset",
	ArgsUsage: "account asset_id",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.ShowCommandHelp(ctx, "holding")
		}

		account := ctx.Args().Get(0)
		assetID, err := parseUint(ctx.Args().Get(1), "asset_id")
		if err != nil {
			return err
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		c, cleanUp, err := getClient(cfg)
		if err != nil {
			return err
		}
		defer cleanUp()

		snap, err := c.Holding(context.Background(), account, assetID)
		if err != nil {
			return err
		}

		printJSON(struct {
			Account    string `json:"account"`
			AssetID    uint64 `json:"asset_id"`
			Registered bool   `json:"registered"`
			Units      uint64 `json:"units"`
			Balance    uint64 `json:"balance"`
			Round      uint64 `json:"round"`
		}{
			Account:    snap.Account,
			AssetID:    snap.AssetID,
			Registered: snap.Registered,
			Units:      snap.Units,
			Balance:    snap.Balance,
			Round:      snap.Round,
		})

		return nil
	},
}

var reconcileCommand = cli.Command{
	Name:      "reconcile",
	Usage:     "find out what an interrupted purchase left on chain",
	ArgsUsage: "account asset_id [txid...]",
	Description: `
	Read the account's holding and balance and the status of the given
	transactions, then tell whether a new purchase can be started safely.
	`,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 2 {
			return cli.ShowCommandHelp(ctx, "reconcile")
		}

		args := ctx.Args()
		account := args.Get(0)
		assetID, err := parseUint(args.Get(1), "asset_id")
		if err != nil {
			return err
		}
		txids := args[2:]

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		c, cleanUp, err := getClient(cfg)
		if err != nil {
			return err
		}
		defer cleanUp()

		rec, err := c.Reconcile(
			context.Background(), account, assetID, txids...,
		)
		if err != nil {
			return err
		}

		statuses := make(map[string]string, len(rec.Statuses))
		for txid, status := range rec.Statuses {
			statuses[txid] = status.String()
		}

		printJSON(struct {
			Account     string            `json:"account"`
			AssetID     uint64            `json:"asset_id"`
			Outcome     string            `json:"outcome"`
			Units       uint64            `json:"units"`
			Balance     uint64            `json:"balance"`
			Statuses    map[string]string `json:"statuses,omitempty"`
			SafeToRetry bool              `json:"safe_to_retry"`
		}{
			Account:     account,
			AssetID:     assetID,
			Outcome:     rec.Outcome().String(),
			Units:       rec.Snapshot.Units,
			Balance:     rec.Snapshot.Balance,
			Statuses:    statuses,
			SafeToRetry: rec.SafeToRetry(),
		})

		return nil
	},
}

func parseUint(arg, name string) (uint64, error) {
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, arg, err)
	}

	return v, nil
}
