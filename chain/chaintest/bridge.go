// Package chaintest provides an in-memory chain.Bridge for tests.
package chaintest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/algodash/nftbuy/chain"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// GenesisHash is the genesis hash handed out by the default parameters.
var GenesisHash = bytes.Repeat([]byte{0x48}, 32)

// Bridge is a scriptable chain.Bridge. Submitted transactions confirm after
// ConfirmAfter status polls unless StatusFn overrides the answer.
type Bridge struct {
	mu sync.Mutex

	// Accounts is the ledger state by address.
	Accounts map[string]*chain.Account

	// MinFee is reported in every parameter answer.
	MinFee uint64

	// ConfirmAfter is the number of pending answers returned before a
	// submitted transaction confirms.
	ConfirmAfter int

	// Error hooks. A nil hook means success.
	AccountErr func(call int) error
	ParamsErr  func(call int) error
	SubmitErr  func(call int, txns []types.SignedTxn) error

	// StatusFn overrides the status answer. Returning a nil confirmation
	// and nil error falls through to the default behavior.
	StatusFn func(txid string, poll int) (*chain.Confirmation, error)

	round uint64

	accountCalls int
	paramsCalls  int
	submitCalls  int
	statusCalls  int

	submitted [][]types.SignedTxn
	polls     map[string]int
	known     map[string]types.Transaction
}

// NewBridge returns a bridge with a minimum fee of 1000 and immediate
// confirmations.
func NewBridge() *Bridge {
	return &Bridge{
		Accounts: make(map[string]*chain.Account),
		MinFee:   1000,
		round:    1000,
		polls:    make(map[string]int),
		known:    make(map[string]types.Transaction),
	}
}

// AddAccount registers an account with a balance and optional registered
// assets.
func (b *Bridge) AddAccount(address string, balance uint64, assets ...uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct := &chain.Account{
		Address:    address,
		Balance:    balance,
		MinBalance: 100_000,
		Holdings:   make(map[uint64]uint64),
	}
	for _, asset := range assets {
		acct.Holdings[asset] = 0
	}
	b.Accounts[address] = acct
}

// AccountInfo implements chain.Bridge.
func (b *Bridge) AccountInfo(_ context.Context, address string) (*chain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.accountCalls++
	if b.AccountErr != nil {
		if err := b.AccountErr(b.accountCalls); err != nil {
			return nil, err
		}
	}

	acct, ok := b.Accounts[address]
	if !ok {
		return &chain.Account{
			Address:  address,
			Holdings: map[uint64]uint64{},
			Round:    b.round,
		}, nil
	}

	holdings := make(map[uint64]uint64, len(acct.Holdings))
	for k, v := range acct.Holdings {
		holdings[k] = v
	}
	cp := *acct
	cp.Holdings = holdings
	cp.Round = b.round

	return &cp, nil
}

// NetworkParams implements chain.Bridge. Every call advances the round so
// callers can tell fresh parameters apart.
func (b *Bridge) NetworkParams(context.Context) (*chain.NetworkParams, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.paramsCalls++
	if b.ParamsErr != nil {
		if err := b.ParamsErr(b.paramsCalls); err != nil {
			return nil, err
		}
	}

	b.round++

	return &chain.NetworkParams{
		MinFee:           b.MinFee,
		FirstValid:       b.round,
		LastValid:        b.round + 1000,
		GenesisID:        "testnet-v1.0",
		GenesisHash:      GenesisHash,
		ConsensusVersion: "future",
		FetchedAt:        time.Now(),
	}, nil
}

// SubmitTransactionBytes implements chain.Bridge. The bytes are decoded as
// a sequence of signed transactions.
func (b *Bridge) SubmitTransactionBytes(_ context.Context, raw []byte) (string, error) {
	txns, err := DecodeSigned(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chain.ErrRejected, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.submitCalls++
	if b.SubmitErr != nil {
		if err := b.SubmitErr(b.submitCalls, txns); err != nil {
			return "", err
		}
	}

	b.submitted = append(b.submitted, txns)
	for _, stx := range txns {
		b.known[crypto.GetTxID(stx.Txn)] = stx.Txn
	}

	return crypto.GetTxID(txns[0].Txn), nil
}

// ConfirmationStatus implements chain.Bridge. Confirming a transaction
// applies its effect to Accounts.
func (b *Bridge) ConfirmationStatus(_ context.Context, txid string) (*chain.Confirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.statusCalls++
	b.polls[txid]++
	poll := b.polls[txid]

	if b.StatusFn != nil {
		conf, err := b.StatusFn(txid, poll)
		if err != nil || conf != nil {
			return conf, err
		}
	}

	txn, ok := b.known[txid]
	if !ok {
		return &chain.Confirmation{
			TxID:   txid,
			Status: chain.StatusNotFound,
		}, nil
	}
	if poll <= b.ConfirmAfter {
		return &chain.Confirmation{
			TxID:   txid,
			Status: chain.StatusPending,
		}, nil
	}

	b.apply(txn)

	return &chain.Confirmation{
		TxID:           txid,
		Status:         chain.StatusConfirmed,
		ConfirmedRound: b.round,
	}, nil
}

// apply mirrors the ledger effect of a confirmed transaction.
func (b *Bridge) apply(txn types.Transaction) {
	sender := txn.Sender.String()
	acct, ok := b.Accounts[sender]
	if !ok {
		acct = &chain.Account{
			Address:  sender,
			Holdings: make(map[uint64]uint64),
		}
		b.Accounts[sender] = acct
	}

	switch txn.Type {
	case types.AssetTransferTx:
		if txn.AssetReceiver == txn.Sender && txn.AssetAmount == 0 {
			if _, ok := acct.Holdings[uint64(txn.XferAsset)]; !ok {
				acct.Holdings[uint64(txn.XferAsset)] = 0
			}
		}

	case types.PaymentTx:
		if acct.Balance >= uint64(txn.Amount) {
			acct.Balance -= uint64(txn.Amount)
		}

	case types.ApplicationCallTx:
		for _, asset := range txn.ForeignAssets {
			acct.Holdings[uint64(asset)]++
		}
	}

	if acct.Balance >= uint64(txn.Fee) {
		acct.Balance -= uint64(txn.Fee)
	}
}

// Submitted returns every accepted submission, one slice per call.
func (b *Bridge) Submitted() [][]types.SignedTxn {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]types.SignedTxn, len(b.submitted))
	copy(out, b.submitted)
	return out
}

// Calls returns the number of account, params, submit and status calls.
func (b *Bridge) Calls() (account, params, submit, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.accountCalls, b.paramsCalls, b.submitCalls, b.statusCalls
}

// DecodeSigned splits concatenated signed transaction bytes. Members are
// expected in canonical encoding, as produced by the SDK.
func DecodeSigned(raw []byte) ([]types.SignedTxn, error) {
	var txns []types.SignedTxn
	for len(raw) > 0 {
		var stx types.SignedTxn
		if err := msgpack.Decode(raw, &stx); err != nil {
			return nil, fmt.Errorf("decode signed transaction %d: %w",
				len(txns), err)
		}

		n := len(msgpack.Encode(stx))
		if n == 0 || n > len(raw) {
			return nil, fmt.Errorf("signed transaction %d is not "+
				"canonically encoded", len(txns))
		}

		txns = append(txns, stx)
		raw = raw[n:]
	}

	if len(txns) == 0 {
		return nil, fmt.Errorf("no signed transactions")
	}

	return txns, nil
}
