// Package local implements a wallet.Signer backed by mnemonics held in
// memory, with a pluggable approval step.
package local

import (
	"context"
	"fmt"

	"github.com/algodash/nftbuy/wallet"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Config holds configuration for the local signer.
type Config struct {
	// Mnemonics are 25-word account mnemonics. One key is recovered per
	// entry.
	Mnemonics []string

	// Approver decides whether a request is signed.
	Approver Approver
}

// DefaultConfig returns a configuration that approves every request.
func DefaultConfig(mnemonics ...string) *Config {
	return &Config{
		Mnemonics: mnemonics,
		Approver:  AutoApprove,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Mnemonics) == 0 {
		return ErrNoKeys
	}
	if c.Approver == nil {
		return ErrApproverRequired
	}

	return nil
}

// Signer signs transactions with local keys after approval.
type Signer struct {
	cfg  *Config
	keys *keyRing
}

// New creates a new Signer.
func New(cfg *Config) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	keys, err := newKeyRing(cfg.Mnemonics)
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}

	log.Infof("Local signer loaded %d account(s)", len(keys.keys))

	return &Signer{
		cfg:  cfg,
		keys: keys,
	}, nil
}

// Addresses returns the accounts the signer holds keys for.
func (s *Signer) Addresses() []string {
	return s.keys.addresses()
}

// IsLocal reports whether the signer holds the key for the address.
func (s *Signer) IsLocal(address string) bool {
	_, ok := s.keys.key(address)
	return ok
}

// SignTransactions implements wallet.Signer. A single approval covers the
// whole request; nothing is signed if it is declined.
func (s *Signer) SignTransactions(ctx context.Context,
	txns []types.Transaction, signerIndices []int) ([][]byte, error) {

	if len(txns) == 0 {
		return nil, fmt.Errorf("no transactions to sign")
	}

	indices, err := wallet.Indices(len(txns), signerIndices)
	if err != nil {
		return nil, err
	}

	// Every requested sender must be local before anyone is asked.
	for _, idx := range indices {
		sender := txns[idx].Sender.String()
		if !s.IsLocal(sender) {
			return nil, fmt.Errorf("%w: %w %s", wallet.ErrUnavailable,
				ErrUnknownSender, sender)
		}
	}

	requested := make([]types.Transaction, len(indices))
	for i, idx := range indices {
		requested[i] = txns[idx]
	}

	approved, err := s.cfg.Approver.Approve(ctx, requested)
	switch {
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", wallet.ErrUnavailable,
			ctx.Err())

	case err != nil:
		return nil, fmt.Errorf("%w: approval failed: %w",
			wallet.ErrUnavailable, err)

	case !approved:
		log.Infof("Signing of %d transaction(s) declined", len(indices))
		return nil, wallet.ErrRejected
	}

	signed := make([][]byte, len(txns))
	for _, idx := range indices {
		txn := txns[idx]
		sk, _ := s.keys.key(txn.Sender.String())

		txid, stx, err := crypto.SignTransaction(sk, txn)
		if err != nil {
			return nil, fmt.Errorf("%w: sign transaction %d: %w",
				wallet.ErrUnavailable, idx, err)
		}

		log.Debugf("Signed transaction %d (%s)", idx, txid)
		signed[idx] = stx
	}

	return signed, nil
}

// Verify interface compliance at compile time.
var _ wallet.Signer = (*Signer)(nil)
