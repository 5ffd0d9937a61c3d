package algod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/algodash/nftbuy/chain"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// ChainBridgeConfig holds configuration for the ChainBridge.
type ChainBridgeConfig struct {
	// Client is the algod API client.
	Client *Client

	// ValidityWindow is the number of rounds a new transaction stays valid
	// for, counted from the node's last round.
	// Default: 1000
	ValidityWindow uint64

	// CacheSize is the number of confirmed transactions to cache.
	// Default: 100
	CacheSize int

	// CacheTTL is how long cached confirmations are kept.
	// Default: 10 minutes
	CacheTTL time.Duration

	// Clock is the time source, replaced in tests.
	Clock clock.Clock
}

// DefaultChainBridgeConfig returns default configuration.
func DefaultChainBridgeConfig(client *Client) *ChainBridgeConfig {
	return &ChainBridgeConfig{
		Client:         client,
		ValidityWindow: 1000,
		CacheSize:      100,
		CacheTTL:       10 * time.Minute,
		Clock:          clock.NewDefaultClock(),
	}
}

// Validate validates the configuration.
func (c *ChainBridgeConfig) Validate() error {
	if c.Client == nil {
		return ErrClientRequired
	}
	if c.ValidityWindow == 0 {
		return fmt.Errorf("validity window must be > 0")
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be >= 1, got %d", c.CacheSize)
	}
	return nil
}

// ChainBridge implements chain.Bridge on top of an algod node.
type ChainBridge struct {
	cfg *ChainBridgeConfig

	cache *cache

	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewChainBridge creates a new ChainBridge.
func NewChainBridge(cfg *ChainBridgeConfig) *ChainBridge {
	if cfg == nil {
		cfg = DefaultChainBridgeConfig(nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &ChainBridge{
		cfg:   cfg,
		cache: newCache(cfg.CacheSize, cfg.CacheTTL, cfg.Clock),
		quit:  make(chan struct{}),
	}
}

// Start starts the cache janitor.
func (c *ChainBridge) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid chain bridge config: %w", err)
	}

	c.started = true

	c.wg.Add(1)
	go c.janitor()

	return nil
}

// Stop stops the chain bridge.
func (c *ChainBridge) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	close(c.quit)
	c.wg.Wait()

	c.started = false

	return nil
}

// janitor evicts expired cache entries.
func (c *ChainBridge) janitor() {
	defer c.wg.Done()

	t := ticker.New(c.cfg.CacheTTL)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			c.cache.cleanup()
		case <-c.quit:
			return
		}
	}
}

// AccountInfo returns the account's balance and registered assets.
func (c *ChainBridge) AccountInfo(ctx context.Context, address string) (*chain.Account, error) {
	resp, err := c.cfg.Client.AccountInformation(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get account %s: %w",
			chain.ErrUnavailable, address, err)
	}

	account := &chain.Account{
		Address:    resp.Address,
		Balance:    resp.Amount,
		MinBalance: resp.MinBalance,
		Holdings:   make(map[uint64]uint64, len(resp.Assets)),
		Round:      resp.Round,
	}
	for _, holding := range resp.Assets {
		account.Holdings[holding.AssetID] = holding.Amount
	}

	return account, nil
}

// NetworkParams fetches fresh transaction parameters from the node.
func (c *ChainBridge) NetworkParams(ctx context.Context) (*chain.NetworkParams, error) {
	resp, err := c.cfg.Client.TransactionParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get transaction "+
			"params: %w", chain.ErrUnavailable, err)
	}

	return &chain.NetworkParams{
		MinFee:           resp.MinFee,
		FirstValid:       resp.LastRound,
		LastValid:        resp.LastRound + c.cfg.ValidityWindow,
		GenesisID:        resp.GenesisID,
		GenesisHash:      resp.GenesisHash,
		ConsensusVersion: resp.ConsensusVersion,
		FetchedAt:        c.cfg.Clock.Now(),
	}, nil
}

// SubmitTransactionBytes broadcasts signed bytes to the network.
func (c *ChainBridge) SubmitTransactionBytes(ctx context.Context, raw []byte) (string, error) {
	txid, err := c.cfg.Client.SendRawTransaction(ctx, raw)
	switch {
	case errors.Is(err, ErrBadRequest):
		return "", fmt.Errorf("%w: %v", chain.ErrRejected,
			cleanSubmitError(err))

	case err != nil:
		return "", fmt.Errorf("%w: %w", chain.ErrUnavailable, err)
	}

	log.Debugf("Broadcast %d bytes, txid=%s", len(raw), txid)

	return txid, nil
}

// ConfirmationStatus reports whether a transaction is pending, confirmed,
// failed or unknown to the node.
func (c *ChainBridge) ConfirmationStatus(ctx context.Context, txid string) (*chain.Confirmation, error) {
	if conf, ok := c.cache.getConfirmation(txid); ok {
		return conf, nil
	}

	pending, err := c.cfg.Client.PendingTransactionInformation(ctx, txid)
	switch {
	case errors.Is(err, ErrNotFound):
		return &chain.Confirmation{
			TxID:   txid,
			Status: chain.StatusNotFound,
		}, nil

	case err != nil:
		return nil, fmt.Errorf("%w: failed to get status of %s: %w",
			chain.ErrUnavailable, txid, err)
	}

	conf := &chain.Confirmation{
		TxID:   txid,
		Status: chain.StatusPending,
	}
	switch {
	case pending.ConfirmedRound > 0:
		conf.Status = chain.StatusConfirmed
		conf.ConfirmedRound = pending.ConfirmedRound
		c.cache.setConfirmation(conf)

	case pending.PoolError != "":
		conf.Status = chain.StatusFailed
		conf.PoolError = pending.PoolError
	}

	return conf, nil
}

// CurrentRound returns the node's last round.
func (c *ChainBridge) CurrentRound(ctx context.Context) (uint64, error) {
	status, err := c.cfg.Client.Status(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get node status: %w",
			chain.ErrUnavailable, err)
	}

	return status.LastRound, nil
}

// cleanSubmitError extracts a clean rejection reason from algod errors.
// Node responses embed the full serialized transaction in the message; this
// keeps only the reason.
func cleanSubmitError(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, "invalid : "); idx != -1 {
		clean := msg[idx+len("invalid : "):]
		clean = strings.TrimSuffix(clean, "\"}")
		clean = strings.TrimSuffix(clean, "\"")
		return clean
	}
	return msg
}

// Verify interface compliance at compile time.
var _ chain.Bridge = (*ChainBridge)(nil)
