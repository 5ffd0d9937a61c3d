package algod

import (
	"time"
)

// API response types for the algod v2 REST API

// NodeStatus represents the node status from /v2/status.
type NodeStatus struct {
	LastRound          uint64 `json:"last-round"`
	LastVersion        string `json:"last-version"`
	TimeSinceLastRound uint64 `json:"time-since-last-round"`
	CatchupTime        uint64 `json:"catchup-time"`
}

// TransactionParams represents the suggested parameters from
// /v2/transactions/params.
type TransactionParams struct {
	ConsensusVersion string `json:"consensus-version"`
	Fee              uint64 `json:"fee"`
	GenesisHash      []byte `json:"genesis-hash"`
	GenesisID        string `json:"genesis-id"`
	LastRound        uint64 `json:"last-round"`
	MinFee           uint64 `json:"min-fee"`
}

// AccountResponse represents an account from /v2/accounts/{address}.
type AccountResponse struct {
	Address    string         `json:"address"`
	Amount     uint64         `json:"amount"`
	MinBalance uint64         `json:"min-balance"`
	Round      uint64         `json:"round"`
	Status     string         `json:"status"`
	Assets     []AssetHolding `json:"assets,omitempty"`
}

// AssetHolding represents one asset registration of an account.
type AssetHolding struct {
	Amount   uint64 `json:"amount"`
	AssetID  uint64 `json:"asset-id"`
	IsFrozen bool   `json:"is-frozen"`
}

// PendingTransactionResponse represents the pool view of a transaction from
// /v2/transactions/pending/{txid}.
type PendingTransactionResponse struct {
	ConfirmedRound   uint64 `json:"confirmed-round,omitempty"`
	PoolError        string `json:"pool-error"`
	AssetIndex       uint64 `json:"asset-index,omitempty"`
	ApplicationIndex uint64 `json:"application-index,omitempty"`
}

// PostTransactionsResponse is returned by a successful broadcast.
type PostTransactionsResponse struct {
	TxID string `json:"txId"`
}

// errorResponse is the JSON body algod sends with non-2xx answers.
type errorResponse struct {
	Message string `json:"message"`
}

// cacheEntry is a generic cache entry with TTL.
type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}
