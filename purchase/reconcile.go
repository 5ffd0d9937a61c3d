package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/algodash/nftbuy/chain"
	"github.com/algodash/nftbuy/inspector"
)

// Outcome is what the ledger shows of a purchase attempt.
type Outcome uint8

const (
	// OutcomeUntouched means the account is not registered for the asset.
	OutcomeUntouched Outcome = iota

	// OutcomeRegistered means the opt-in applied but no unit is held.
	OutcomeRegistered

	// OutcomeOwned means the account holds the asset.
	OutcomeOwned
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeUntouched:
		return "untouched"
	case OutcomeRegistered:
		return "registered"
	case OutcomeOwned:
		return "owned"
	default:
		return "unknown"
	}
}

// Reconciliation is the on-chain view used to decide what to do after an
// uncertain outcome.
type Reconciliation struct {
	// Snapshot is the account's holding and balance.
	Snapshot *inspector.Snapshot

	// Active is the account's in-flight session, if any.
	Active *Session

	// Statuses maps every checked transaction id to its status.
	Statuses map[string]chain.ConfStatus
}

// Outcome classifies the snapshot.
func (r *Reconciliation) Outcome() Outcome {
	switch {
	case r.Snapshot.Owned():
		return OutcomeOwned
	case r.Snapshot.Registered:
		return OutcomeRegistered
	default:
		return OutcomeUntouched
	}
}

// SafeToRetry reports whether a new purchase may start: no session is in
// flight, nothing checked is still pending and the asset is not owned yet.
func (r *Reconciliation) SafeToRetry() bool {
	if r.Active != nil || r.Outcome() == OutcomeOwned {
		return false
	}
	for _, status := range r.Statuses {
		if status == chain.StatusPending {
			return false
		}
	}

	return true
}

// Reconcile re-reads the account's holding and balance and the status of
// the given transactions. Without txids, the unresolved transactions of the
// account's active session are checked.
func (c *Controller) Reconcile(ctx context.Context, account string,
	assetID uint64, txids ...string) (*Reconciliation, error) {

	snap, err := c.cfg.Inspector.Snapshot(ctx, account, assetID)
	switch {
	case errors.Is(err, inspector.ErrInvalidParameters):
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)

	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrLookupUnavailable, err)
	}

	rec := &Reconciliation{
		Snapshot: snap,
		Statuses: make(map[string]chain.ConfStatus),
	}

	if active, ok := c.Session(account); ok {
		rec.Active = active
		if len(txids) == 0 {
			txids = active.Unresolved
		}
	}

	for _, txid := range txids {
		conf, err := c.cfg.Bridge.ConfirmationStatus(ctx, txid)
		if err != nil {
			return nil, fmt.Errorf("%w: status of %s: %w",
				ErrLookupUnavailable, txid, err)
		}
		rec.Statuses[txid] = conf.Status
	}

	log.Infof("Reconciled %s for asset %d: %v, balance %d, statuses %v",
		account, assetID, rec.Outcome(), snap.Balance, rec.Statuses)

	return rec, nil
}
