// Package inspector answers whether an account is registered to receive an
// asset.
package inspector

import (
	"context"
	"fmt"

	"github.com/algodash/nftbuy/chain"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Config holds configuration for the holding inspector.
type Config struct {
	// Bridge answers account queries.
	Bridge chain.Bridge
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bridge == nil {
		return ErrBridgeRequired
	}

	return nil
}

// Snapshot is an on-chain view of an account with respect to one asset.
type Snapshot struct {
	Account string
	AssetID uint64

	// Registered is true when the account has opted in to the asset.
	Registered bool

	// Units is the number of asset units held.
	Units uint64

	// Balance is the currency balance in base units.
	Balance uint64

	// Round is the ledger round the snapshot was taken at.
	Round uint64
}

// Owned reports whether the account holds at least one unit of the asset.
func (s *Snapshot) Owned() bool {
	return s != nil && s.Registered && s.Units > 0
}

// Inspector reads asset holdings from the ledger. It never writes.
type Inspector struct {
	cfg *Config
}

// New creates a new Inspector.
func New(cfg *Config) (*Inspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Inspector{cfg: cfg}, nil
}

// HasHolding reports whether the account already holds a registration for
// the asset.
func (i *Inspector) HasHolding(ctx context.Context, account string,
	assetID uint64) (bool, error) {

	info, err := i.lookup(ctx, account, assetID)
	if err != nil {
		return false, err
	}

	held := info.Holds(assetID)
	log.Debugf("Account %s holding of asset %d: %v (round %d)", account,
		assetID, held, info.Round)

	return held, nil
}

// Snapshot returns registration, units and balance of the account for the
// asset.
func (i *Inspector) Snapshot(ctx context.Context, account string,
	assetID uint64) (*Snapshot, error) {

	info, err := i.lookup(ctx, account, assetID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Account:    account,
		AssetID:    assetID,
		Registered: info.Holds(assetID),
		Units:      info.Holdings[assetID],
		Balance:    info.Balance,
		Round:      info.Round,
	}, nil
}

func (i *Inspector) lookup(ctx context.Context, account string,
	assetID uint64) (*chain.Account, error) {

	if err := validateQuery(account, assetID); err != nil {
		return nil, err
	}

	info, err := i.cfg.Bridge.AccountInfo(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupUnavailable, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: empty answer for %s",
			ErrLookupUnavailable, account)
	}

	if len(info.Holdings) > 0 {
		assets := maps.Keys(info.Holdings)
		slices.Sort(assets)
		log.Tracef("Account %s registered assets: %v", account, assets)
	}

	return info, nil
}

func validateQuery(account string, assetID uint64) error {
	if account == "" {
		return fmt.Errorf("%w: account is empty", ErrInvalidParameters)
	}
	if _, err := types.DecodeAddress(account); err != nil {
		return fmt.Errorf("%w: account %q: %v", ErrInvalidParameters,
			account, err)
	}
	if assetID == 0 {
		return fmt.Errorf("%w: asset id is zero", ErrInvalidParameters)
	}

	return nil
}
