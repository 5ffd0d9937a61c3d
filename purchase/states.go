package purchase

import "golang.org/x/exp/slices"

// State is a step of the purchase flow.
type State uint8

const (
	// StateIdle is the state before a request is accepted.
	StateIdle State = iota

	// StateCheckingHolding queries whether the account is registered for
	// the asset.
	StateCheckingHolding

	// StateOptingIn builds, signs and submits the registration.
	StateOptingIn

	// StateAwaitingOptInConfirmation polls for the registration.
	StateAwaitingOptInConfirmation

	// StateBuildingPurchase fetches fresh parameters and assembles the
	// payment and contract call group.
	StateBuildingPurchase

	// StateSigning waits for the signer to sign both group members.
	StateSigning

	// StateSubmitting broadcasts the signed group.
	StateSubmitting

	// StateAwaitingPurchaseConfirmation polls for the contract call.
	StateAwaitingPurchaseConfirmation

	// StateSuccess means the contract call confirmed.
	StateSuccess

	// StateError means the flow stopped. The update carries an *Error.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCheckingHolding:
		return "CheckingHolding"
	case StateOptingIn:
		return "OptingIn"
	case StateAwaitingOptInConfirmation:
		return "AwaitingOptInConfirmation"
	case StateBuildingPurchase:
		return "BuildingPurchase"
	case StateSigning:
		return "Signing"
	case StateSubmitting:
		return "Submitting"
	case StateAwaitingPurchaseConfirmation:
		return "AwaitingPurchaseConfirmation"
	case StateSuccess:
		return "Success"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// transitions lists the legal successors of every non-terminal state.
// StateError is reachable from all of them.
var transitions = map[State][]State{
	StateIdle:                         {StateCheckingHolding},
	StateCheckingHolding:              {StateOptingIn, StateBuildingPurchase},
	StateOptingIn:                     {StateAwaitingOptInConfirmation},
	StateAwaitingOptInConfirmation:    {StateBuildingPurchase},
	StateBuildingPurchase:             {StateSigning},
	StateSigning:                      {StateSubmitting},
	StateSubmitting:                   {StateAwaitingPurchaseConfirmation},
	StateAwaitingPurchaseConfirmation: {StateSuccess},
}

// canTransition reports whether the flow may move from one state to another.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateError {
		return true
	}

	return slices.Contains(transitions[from], to)
}
