// Package client wires the node bridge, signer and purchase controller into
// one embeddable client.
package client

import (
	"context"
	"fmt"

	"github.com/algodash/nftbuy/chain/algod"
	"github.com/algodash/nftbuy/inspector"
	"github.com/algodash/nftbuy/monitoring"
	"github.com/algodash/nftbuy/purchase"
	"github.com/algodash/nftbuy/txbuilder"
	"github.com/algodash/nftbuy/wallet"
	"github.com/algodash/nftbuy/wallet/local"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Client is the purchase client for embedding in Go applications.
type Client struct {
	cfg *Config

	// Core components
	algod       *algod.Client
	chainBridge *algod.ChainBridge
	inspector   *inspector.Inspector
	builder     *txbuilder.Builder
	signer      *local.Signer

	// Operations
	controller *purchase.Controller
	registry   *prometheus.Registry
}

// New creates a new client. Nothing talks to the node before Start.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Node access
	algodCfg := algod.DefaultConfig()
	algodCfg.BaseURL = cfg.AlgodURL
	algodCfg.Token = cfg.AlgodToken
	if cfg.RateLimit > 0 {
		algodCfg.RateLimit = cfg.RateLimit
	}
	if err := algodCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid algod config: %w", err)
	}
	algodClient := algod.NewClient(algodCfg)

	bridgeCfg := algod.DefaultChainBridgeConfig(algodClient)
	if err := bridgeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain bridge config: %w", err)
	}
	chainBridge := algod.NewChainBridge(bridgeCfg)

	insp, err := inspector.New(&inspector.Config{
		Bridge: chainBridge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inspector: %w", err)
	}

	// Transaction building and signing
	builderCfg := txbuilder.DefaultConfig()
	builderCfg.Note = []byte(cfg.Note)
	builder, err := txbuilder.New(builderCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create builder: %w", err)
	}

	// Without mnemonics the client can only inspect the ledger.
	var (
		signer      *local.Signer
		purchaseKey wallet.Signer = noKeys{}
	)
	if len(cfg.Mnemonics) > 0 {
		signerCfg := local.DefaultConfig(cfg.Mnemonics...)
		if cfg.Approver != nil {
			signerCfg.Approver = cfg.Approver
		}
		signer, err = local.New(signerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create signer: %w", err)
		}
		purchaseKey = signer
	}

	// Metrics
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := monitoring.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Purchase flow
	purchaseCfg := purchase.DefaultConfig()
	purchaseCfg.Bridge = chainBridge
	purchaseCfg.Inspector = insp
	purchaseCfg.Builder = builder
	purchaseCfg.Signer = purchaseKey
	purchaseCfg.AppID = cfg.AppID
	purchaseCfg.Collector = cfg.Collector
	purchaseCfg.PollInterval = cfg.PollInterval
	purchaseCfg.MaxPollRounds = cfg.MaxPollRounds
	purchaseCfg.RequestTimeout = cfg.RequestTimeout
	purchaseCfg.Metrics = metrics
	controller, err := purchase.New(purchaseCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	err = monitoring.RegisterSessions(registry, controller.ActiveStates)
	if err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w",
			err)
	}

	return &Client{
		cfg:         cfg,
		algod:       algodClient,
		chainBridge: chainBridge,
		inspector:   insp,
		builder:     builder,
		signer:      signer,
		controller:  controller,
		registry:    registry,
	}, nil
}

// Start starts the client.
func (c *Client) Start() error {
	if err := c.chainBridge.Start(); err != nil {
		return fmt.Errorf("failed to start chain bridge: %w", err)
	}
	if err := c.controller.Start(); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}

	log.Infof("Client started against %s with %d account(s)",
		c.cfg.AlgodURL, len(c.Accounts()))

	return nil
}

// Stop stops the client. Running purchases end with ErrCancelled.
func (c *Client) Stop() error {
	_ = c.controller.Stop()
	_ = c.chainBridge.Stop()

	log.Infof("Client stopped")

	return nil
}

// Accounts returns the accounts the client can sign for.
func (c *Client) Accounts() []string {
	if c.signer == nil {
		return nil
	}

	return c.signer.Addresses()
}

// DefaultAccount returns the only loaded account. It fails when several
// accounts are loaded.
func (c *Client) DefaultAccount() (string, error) {
	accounts := c.Accounts()
	switch len(accounts) {
	case 0:
		return "", ErrNoAccounts
	case 1:
	default:
		return "", fmt.Errorf("%d accounts loaded, pick one",
			len(accounts))
	}

	return accounts[0], nil
}

// Buy starts a purchase and returns its update stream.
func (c *Client) Buy(ctx context.Context,
	req purchase.Request) (<-chan purchase.Update, error) {

	if c.signer == nil {
		return nil, ErrNoAccounts
	}
	if !c.signer.IsLocal(req.Account) {
		return nil, fmt.Errorf("%w: no key for account %s",
			purchase.ErrInvalidParameters, req.Account)
	}

	return c.controller.PurchaseAsset(ctx, req)
}

// Holding returns the account's registration, units and balance.
func (c *Client) Holding(ctx context.Context, account string,
	assetID uint64) (*inspector.Snapshot, error) {

	return c.inspector.Snapshot(ctx, account, assetID)
}

// Reconcile reports the on-chain outcome of an earlier purchase.
func (c *Client) Reconcile(ctx context.Context, account string,
	assetID uint64, txids ...string) (*purchase.Reconciliation, error) {

	return c.controller.Reconcile(ctx, account, assetID, txids...)
}

// NodeStatus returns the node's view of the chain.
func (c *Client) NodeStatus(ctx context.Context) (*algod.NodeStatus, error) {
	return c.algod.Status(ctx)
}

// Controller returns the purchase controller.
func (c *Client) Controller() *purchase.Controller {
	return c.controller
}

// Registry returns the registry holding the client's metrics.
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// noKeys is the signer of a client loaded without accounts.
type noKeys struct{}

// SignTransactions implements wallet.Signer.
func (noKeys) SignTransactions(context.Context, []types.Transaction,
	[]int) ([][]byte, error) {

	return nil, fmt.Errorf("%w: %w", wallet.ErrUnavailable, ErrNoAccounts)
}
