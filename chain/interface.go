// Package chain defines the ledger boundary consumed by the purchase flow.
package chain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the ledger node cannot be reached or
	// answers with a server side failure.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrRejected is returned when the ledger node refuses a submitted
	// transaction.
	ErrRejected = errors.New("ledger rejected transaction")
)

// Bridge is the thin facade over a ledger node used by the orchestrator.
type Bridge interface {
	// AccountInfo returns the account's currency balance and the set of
	// assets it has registered for.
	AccountInfo(ctx context.Context, address string) (*Account, error)

	// NetworkParams fetches the current validity window and fee minimum.
	// Results are never cached: validity windows expire.
	NetworkParams(ctx context.Context) (*NetworkParams, error)

	// SubmitTransactionBytes broadcasts one signed transaction or a
	// concatenated signed group and returns the id of the first member.
	SubmitTransactionBytes(ctx context.Context, raw []byte) (string, error)

	// ConfirmationStatus reports the inclusion status of a transaction.
	ConfirmationStatus(ctx context.Context, txid string) (*Confirmation, error)
}

// Account is a read-only view of a ledger account.
type Account struct {
	Address string

	// Balance is the currency balance in base units.
	Balance uint64

	// MinBalance is the balance the account must keep.
	MinBalance uint64

	// Holdings maps every registered asset to the units held. An asset
	// present with zero units is registered but empty.
	Holdings map[uint64]uint64

	// Round is the ledger round the view was taken at.
	Round uint64
}

// Holds reports whether the account has registered for the asset.
func (a *Account) Holds(assetID uint64) bool {
	if a == nil {
		return false
	}
	_, ok := a.Holdings[assetID]
	return ok
}

// NetworkParams are the parameters every new transaction must reference.
type NetworkParams struct {
	// MinFee is the minimum fee of a single transaction.
	MinFee uint64

	// FirstValid and LastValid bound the validity window, in rounds.
	FirstValid uint64
	LastValid  uint64

	GenesisID        string
	GenesisHash      []byte
	ConsensusVersion string

	// FetchedAt is when the parameters were read from the node.
	FetchedAt time.Time
}

// ConfStatus is the inclusion status of a submitted transaction.
type ConfStatus uint8

const (
	// StatusNotFound means the node knows nothing about the transaction.
	StatusNotFound ConfStatus = iota

	// StatusPending means the transaction sits in the pending pool.
	StatusPending

	// StatusConfirmed means the transaction is in a finalized block.
	StatusConfirmed

	// StatusFailed means the node evicted the transaction with a pool
	// error. It will never confirm.
	StatusFailed
)

// String returns the status name.
func (s ConfStatus) String() string {
	switch s {
	case StatusNotFound:
		return "notFound"
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Confirmation is the answer to a confirmation status query.
type Confirmation struct {
	TxID           string
	Status         ConfStatus
	ConfirmedRound uint64

	// PoolError is the node's reason when Status is StatusFailed.
	PoolError string
}
