// Package txbuilder constructs the transactions of an asset purchase and
// assembles them into an atomic group.
package txbuilder

import (
	"fmt"

	"github.com/algodash/nftbuy/chain"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// BuyMethod is the application argument selecting the sale contract's
// purchase entry point.
const BuyMethod = "buy"

// callFeeFactor multiplies the network minimum fee to get the flat fee of
// the contract call. The contract emits one inner transfer paid from this
// allowance.
const callFeeFactor = 2

// Config holds configuration for the transaction builder.
type Config struct {
	// Note is attached to every built transaction. Empty means no note.
	Note []byte
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Note) > 1024 {
		return fmt.Errorf("note must be at most 1024 bytes, got %d",
			len(c.Note))
	}

	return nil
}

// Builder builds unsigned purchase transactions. Every fee is flat.
type Builder struct {
	cfg *Config
}

// New creates a new Builder.
func New(cfg *Config) (*Builder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Builder{cfg: cfg}, nil
}

// OptIn builds the zero-amount asset transfer to self that registers the
// account for the asset. It is never grouped.
func (b *Builder) OptIn(params *chain.NetworkParams, account string,
	assetID uint64) (types.Transaction, error) {

	if assetID == 0 {
		return types.Transaction{}, fmt.Errorf("%w: asset id is zero",
			ErrInvalidParameters)
	}
	if err := checkAddress("account", account); err != nil {
		return types.Transaction{}, err
	}
	sp, err := suggestedParams(params, 1)
	if err != nil {
		return types.Transaction{}, err
	}

	txn, err := transaction.MakeAssetAcceptanceTxn(
		account, b.cfg.Note, sp, assetID,
	)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: opt-in: %v",
			ErrInvalidParameters, err)
	}

	log.Debugf("Built opt-in of asset %d for %s, fee=%d, valid=[%d,%d]",
		assetID, account, txn.Fee, txn.FirstValid, txn.LastValid)

	return txn, nil
}

// Payment builds the price transfer from the account to the sale
// contract's collection address.
func (b *Builder) Payment(params *chain.NetworkParams, account,
	collector string, price uint64) (types.Transaction, error) {

	if price == 0 {
		return types.Transaction{}, fmt.Errorf("%w: price is zero",
			ErrInvalidParameters)
	}
	if err := checkAddress("account", account); err != nil {
		return types.Transaction{}, err
	}
	if err := checkAddress("collector", collector); err != nil {
		return types.Transaction{}, err
	}
	if account == collector {
		return types.Transaction{}, fmt.Errorf("%w: collector equals "+
			"buyer", ErrInvalidParameters)
	}
	sp, err := suggestedParams(params, 1)
	if err != nil {
		return types.Transaction{}, err
	}

	txn, err := transaction.MakePaymentTxn(
		account, collector, price, b.cfg.Note, "", sp,
	)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: payment: %v",
			ErrInvalidParameters, err)
	}

	log.Debugf("Built payment of %d to %s for %s, fee=%d", price,
		collector, account, txn.Fee)

	return txn, nil
}

// ContractCall builds the application call invoking the buy entry point with
// the asset as a foreign asset. Its flat fee covers the contract's inner
// transfer.
func (b *Builder) ContractCall(params *chain.NetworkParams, account string,
	appID, assetID uint64) (types.Transaction, error) {

	if appID == 0 {
		return types.Transaction{}, fmt.Errorf("%w: application id is "+
			"zero", ErrInvalidParameters)
	}
	if assetID == 0 {
		return types.Transaction{}, fmt.Errorf("%w: asset id is zero",
			ErrInvalidParameters)
	}
	sender, err := types.DecodeAddress(account)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: account %q: %v",
			ErrInvalidParameters, account, err)
	}
	sp, err := suggestedParams(params, callFeeFactor)
	if err != nil {
		return types.Transaction{}, err
	}

	txn, err := transaction.MakeApplicationNoOpTx(
		appID,
		[][]byte{[]byte(BuyMethod)},
		nil,
		nil,
		[]uint64{assetID},
		sp,
		sender,
		b.cfg.Note,
		types.Digest{},
		[32]byte{},
		types.Address{},
	)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: contract call: %v",
			ErrInvalidParameters, err)
	}

	log.Debugf("Built call of app %d for asset %d by %s, fee=%d", appID,
		assetID, account, txn.Fee)

	return txn, nil
}

// CallFee returns the flat fee ContractCall sets for the given parameters.
func (b *Builder) CallFee(params *chain.NetworkParams) uint64 {
	if params == nil {
		return 0
	}
	return params.MinFee * callFeeFactor
}

// EscrowAddress returns the address controlled by the application, which
// collects the price unless the sale overrides it.
func EscrowAddress(appID uint64) string {
	return crypto.GetApplicationAddress(appID).String()
}

// suggestedParams converts network parameters into flat-fee SDK parameters
// with a fee of factor times the minimum.
func suggestedParams(params *chain.NetworkParams,
	factor uint64) (types.SuggestedParams, error) {

	switch {
	case params == nil:
		return types.SuggestedParams{}, fmt.Errorf("%w: no network "+
			"parameters", ErrInvalidParameters)

	case params.MinFee == 0:
		return types.SuggestedParams{}, fmt.Errorf("%w: minimum fee "+
			"is zero", ErrInvalidParameters)

	case len(params.GenesisHash) != 32:
		return types.SuggestedParams{}, fmt.Errorf("%w: genesis hash "+
			"must be 32 bytes, got %d", ErrInvalidParameters,
			len(params.GenesisHash))

	case params.LastValid <= params.FirstValid:
		return types.SuggestedParams{}, fmt.Errorf("%w: empty validity "+
			"window [%d,%d]", ErrInvalidParameters, params.FirstValid,
			params.LastValid)
	}

	return types.SuggestedParams{
		Fee:              types.MicroAlgos(params.MinFee * factor),
		GenesisID:        params.GenesisID,
		GenesisHash:      params.GenesisHash,
		FirstRoundValid:  types.Round(params.FirstValid),
		LastRoundValid:   types.Round(params.LastValid),
		ConsensusVersion: params.ConsensusVersion,
		FlatFee:          true,
		MinFee:           params.MinFee,
	}, nil
}

func checkAddress(name, addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidParameters, name)
	}
	if _, err := types.DecodeAddress(addr); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidParameters, name,
			addr, err)
	}

	return nil
}
