package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/algodash/nftbuy/chain"
	"github.com/algodash/nftbuy/inspector"
	"github.com/algodash/nftbuy/monitoring"
	"github.com/algodash/nftbuy/txbuilder"
	"github.com/algodash/nftbuy/wallet"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/lightningnetwork/lnd/clock"
)

// HoldingInspector answers holding queries for the controller.
type HoldingInspector interface {
	HasHolding(ctx context.Context, account string,
		assetID uint64) (bool, error)

	Snapshot(ctx context.Context, account string,
		assetID uint64) (*inspector.Snapshot, error)
}

// Config holds configuration for the purchase controller.
type Config struct {
	// Bridge is the ledger node facade.
	Bridge chain.Bridge

	// Inspector checks asset registrations.
	Inspector HoldingInspector

	// Builder constructs transactions.
	Builder *txbuilder.Builder

	// Signer signs on behalf of the buyer.
	Signer wallet.Signer

	// AppID is the sale application.
	AppID uint64

	// Collector receives the price. Empty means the application's escrow
	// address.
	Collector string

	// PollInterval is the time between two confirmation status polls.
	// Default: 2 seconds
	PollInterval time.Duration

	// MaxPollRounds bounds how many status polls a submission gets before
	// ErrConfirmationTimeout.
	// Default: 15
	MaxPollRounds int

	// RequestTimeout bounds every single ledger call.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// Clock is the time source, replaced in tests. Nil means the system
	// clock.
	Clock clock.Clock

	// Metrics records the flow. Optional.
	Metrics *monitoring.Metrics
}

// DefaultConfig returns a default configuration. Dependencies and the
// application id still have to be set.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   2 * time.Second,
		MaxPollRounds:  15,
		RequestTimeout: 30 * time.Second,
		Clock:          clock.NewDefaultClock(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Bridge == nil:
		return ErrBridgeRequired
	case c.Inspector == nil:
		return ErrInspectorRequired
	case c.Builder == nil:
		return ErrBuilderRequired
	case c.Signer == nil:
		return ErrSignerRequired
	case c.AppID == 0:
		return ErrAppIDRequired
	}

	if c.Collector != "" {
		if _, err := types.DecodeAddress(c.Collector); err != nil {
			return fmt.Errorf("invalid collector %q: %w", c.Collector,
				err)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %v",
			c.PollInterval)
	}
	if c.MaxPollRounds < 1 {
		return fmt.Errorf("max poll rounds must be >= 1, got %d",
			c.MaxPollRounds)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be > 0, got %v",
			c.RequestTimeout)
	}

	return nil
}

// collector returns the address the price is paid to.
func (c *Config) collector() string {
	if c.Collector != "" {
		return c.Collector
	}
	return txbuilder.EscrowAddress(c.AppID)
}
