package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/algodash/nftbuy/client"
	"github.com/algodash/nftbuy/purchase"
	"github.com/algodash/nftbuy/wallet/local"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

var buyCommand = cli.Command{
	Name:      "buy",
	Usage:     "buy one asset, opting in first when needed",
	ArgsUsage: "asset_id price",
	Description: `
	Buy the asset from the configured sale contract, paying price
	microAlgos. The account is registered for the asset first when it is
	not yet. Every signature is confirmed on the terminal unless --yes is
	given.

	Interrupting the command before anything was submitted aborts the
	purchase. Interrupting it later only stops waiting: the submitted
	transactions are listed and reconcile tells what became of them.
	`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "account",
			Usage: "buying account, needed when several are loaded",
		},
		cli.BoolFlag{
			Name:  "yes",
			Usage: "sign without asking",
		},
		cli.StringFlag{
			Name:  "metricslisten",
			Usage: "serve Prometheus metrics on this address",
		},
	},
	Action: buy,
}

func buy(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "buy")
	}

	assetID, err := parseUint(ctx.Args().Get(0), "asset_id")
	if err != nil {
		return err
	}
	price, err := parseUint(ctx.Args().Get(1), "price")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.IsSet("metricslisten") {
		cfg.MetricsListen = ctx.String("metricslisten")
	}
	if len(cfg.Mnemonics) == 0 {
		m, err := readMnemonic()
		if err != nil {
			return err
		}
		cfg.Mnemonics = []string{m}
	}
	if !ctx.Bool("yes") {
		cfg.Approver = local.NewTerminalApprover()
	}

	c, cleanUp, err := getClient(cfg)
	if err != nil {
		return err
	}
	defer cleanUp()

	account := ctx.String("account")
	if account == "" {
		account, err = c.DefaultAccount()
		if err != nil {
			return err
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(
		context.Background(), os.Interrupt,
	)
	defer stopSignals()

	runCtx, stop := context.WithCancel(sigCtx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	if cfg.MetricsListen != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsListen, c.Registry())
		})
	}
	g.Go(func() error {
		defer stop()

		return runPurchase(gctx, c, purchase.Request{
			Account: account,
			AssetID: assetID,
			Price:   price,
		})
	})

	return g.Wait()
}

// runPurchase prints the updates of one purchase until it ends.
func runPurchase(ctx context.Context, c *client.Client,
	req purchase.Request) error {

	updates, err := c.Buy(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Buying asset %d for %s at %d microAlgos\n", req.AssetID,
		req.Account, req.Price)

	for u := range updates {
		line := fmt.Sprintf("%s  %v", u.At.Format(time.TimeOnly), u.State)
		if len(u.TxIDs) > 0 {
			line += "  " + strings.Join(u.TxIDs, ", ")
		}
		fmt.Println(line)

		if u.Err == nil {
			continue
		}

		if !u.Err.SafeToRetry() {
			fmt.Printf("Submitted transactions are unresolved: %s\n"+
				"Run 'nftbuy reconcile %s %d' before retrying.\n",
				strings.Join(u.Err.Submitted, ", "), req.Account,
				req.AssetID)
		}

		return u.Err
	}

	return nil
}

// serveMetrics exposes the registry until ctx ends.
func serveMetrics(ctx context.Context, addr string,
	reg *prometheus.Registry) error {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("metrics server: %w", err)

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
