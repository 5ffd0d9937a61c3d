// Package wallet defines the signing boundary of the purchase flow.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

var (
	// ErrRejected is returned when the signer's owner declines to sign.
	ErrRejected = errors.New("signing rejected")

	// ErrUnavailable is returned when the signer cannot be reached or has
	// no key for a requested sender.
	ErrUnavailable = errors.New("signer unavailable")
)

// Signer produces signed transaction bytes. Implementations may block for as
// long as a human takes to approve, and must honor ctx.
type Signer interface {
	// SignTransactions signs the transactions at signerIndices, or all of
	// them when signerIndices is nil. The result has one entry per input
	// transaction, in input order; entries that were not requested are
	// nil. Either every requested transaction is signed or none is.
	SignTransactions(ctx context.Context, txns []types.Transaction,
		signerIndices []int) ([][]byte, error)
}

// Indices returns the positions a signer should sign.
func Indices(n int, signerIndices []int) ([]int, error) {
	if signerIndices == nil {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]struct{}, len(signerIndices))
	for _, idx := range signerIndices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("signer index %d out of range [0,%d)",
				idx, n)
		}
		if _, ok := seen[idx]; ok {
			return nil, fmt.Errorf("duplicate signer index %d", idx)
		}
		seen[idx] = struct{}{}
	}

	return signerIndices, nil
}

// Describe renders a transaction for a human approving it.
func Describe(txn types.Transaction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s from %s", txn.Type, crypto.GetTxID(txn),
		txn.Sender)

	switch txn.Type {
	case types.PaymentTx:
		fmt.Fprintf(&b, ", pay %d microAlgos to %s", txn.Amount,
			txn.Receiver)

	case types.AssetTransferTx:
		if txn.AssetReceiver == txn.Sender && txn.AssetAmount == 0 {
			fmt.Fprintf(&b, ", opt in to asset %d", txn.XferAsset)
		} else {
			fmt.Fprintf(&b, ", send %d of asset %d to %s",
				txn.AssetAmount, txn.XferAsset, txn.AssetReceiver)
		}

	case types.ApplicationCallTx:
		args := make([]string, len(txn.ApplicationArgs))
		for i, arg := range txn.ApplicationArgs {
			args[i] = string(arg)
		}
		fmt.Fprintf(&b, ", call app %d %v assets %v", txn.ApplicationID,
			args, txn.ForeignAssets)
	}

	fmt.Fprintf(&b, ", fee %d", txn.Fee)
	if txn.Group != (types.Digest{}) {
		fmt.Fprintf(&b, ", group %x", txn.Group[:8])
	}

	return b.String()
}
