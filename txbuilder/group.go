package txbuilder

import (
	"bytes"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// PurchaseGroupSize is the fixed cardinality of a purchase group.
const PurchaseGroupSize = 2

// Group is an ordered set of transactions sharing one group id. The ledger
// applies all of its members or none.
type Group struct {
	// Txns are the members, each stamped with ID.
	Txns []types.Transaction

	// ID is the content hash over the ordered members.
	ID types.Digest

	// TxIDs are the member ids after stamping, in order.
	TxIDs []string
}

// Payment returns the payment member.
func (g *Group) Payment() types.Transaction {
	return g.Txns[0]
}

// Call returns the contract call member. Its confirmation marks the
// purchase as done.
func (g *Group) Call() types.Transaction {
	return g.Txns[1]
}

// CallTxID returns the id of the contract call member.
func (g *Group) CallTxID() string {
	return g.TxIDs[1]
}

// AssemblePurchase groups a payment and a contract call, in that order.
func AssemblePurchase(payment, call types.Transaction) (*Group, error) {
	return Assemble([]types.Transaction{payment, call})
}

// Assemble stamps a group id on a purchase pair. Any other shape is refused.
func Assemble(txns []types.Transaction) (*Group, error) {
	if len(txns) != PurchaseGroupSize {
		return nil, fmt.Errorf("%w: got %d", ErrGroupSize, len(txns))
	}

	payment, call := txns[0], txns[1]
	switch {
	case payment.Type != types.PaymentTx:
		return nil, fmt.Errorf("%w: first member is %q", ErrGroupOrder,
			payment.Type)

	case call.Type != types.ApplicationCallTx:
		return nil, fmt.Errorf("%w: second member is %q", ErrGroupOrder,
			call.Type)

	case payment.Sender != call.Sender:
		return nil, fmt.Errorf("%w: members have different senders",
			ErrGroupOrder)
	}

	for i, txn := range txns {
		if txn.Group != (types.Digest{}) {
			return nil, fmt.Errorf("%w: member %d", ErrAlreadyGrouped, i)
		}
	}

	gid, err := crypto.ComputeGroupID(txns)
	if err != nil {
		return nil, fmt.Errorf("compute group id: %w", err)
	}

	group := &Group{
		Txns:  make([]types.Transaction, len(txns)),
		ID:    gid,
		TxIDs: make([]string, len(txns)),
	}
	for i, txn := range txns {
		txn.Group = gid
		group.Txns[i] = txn
		group.TxIDs[i] = crypto.GetTxID(txn)
	}

	log.Debugf("Assembled group %x: %v", gid[:], group.TxIDs)

	return group, nil
}

// Seal checks signed bytes against the transactions that were handed to the
// signer and returns them concatenated for submission. The signer must not
// have changed, reordered, dropped or added any member.
func Seal(expected []types.Transaction, signed [][]byte) ([]byte, error) {
	if len(signed) != len(expected) {
		return nil, fmt.Errorf("%w: got %d signed for %d transactions",
			ErrSignedMismatch, len(signed), len(expected))
	}

	var buf bytes.Buffer
	for i, blob := range signed {
		var stx types.SignedTxn
		if err := msgpack.Decode(blob, &stx); err != nil {
			return nil, fmt.Errorf("%w: member %d does not decode: %v",
				ErrSignedMismatch, i, err)
		}

		want := crypto.GetTxID(expected[i])
		if got := crypto.GetTxID(stx.Txn); got != want {
			return nil, fmt.Errorf("%w: member %d is %s, want %s",
				ErrSignedMismatch, i, got, want)
		}

		if isUnsigned(stx) {
			return nil, fmt.Errorf("%w: member %d carries no signature",
				ErrSignedMismatch, i)
		}

		buf.Write(blob)
	}

	return buf.Bytes(), nil
}

func isUnsigned(stx types.SignedTxn) bool {
	return stx.Sig == (types.Signature{}) &&
		len(stx.Msig.Subsigs) == 0 && len(stx.Lsig.Logic) == 0
}
