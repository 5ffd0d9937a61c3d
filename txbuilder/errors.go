package txbuilder

import "errors"

var (
	// ErrInvalidParameters is returned when network parameters, addresses
	// or amounts cannot produce a valid transaction.
	ErrInvalidParameters = errors.New("invalid transaction parameters")

	// ErrGroupSize is returned when a purchase group does not have exactly
	// two members.
	ErrGroupSize = errors.New("purchase group must have exactly 2 " +
		"transactions")

	// ErrGroupOrder is returned when the group members are not a payment
	// followed by an application call from the same sender.
	ErrGroupOrder = errors.New("purchase group must be payment then " +
		"application call")

	// ErrAlreadyGrouped is returned when a member already carries a group
	// id.
	ErrAlreadyGrouped = errors.New("transaction already grouped")

	// ErrSignedMismatch is returned when signed bytes do not match the
	// transactions that were handed to the signer.
	ErrSignedMismatch = errors.New("signed transactions do not match " +
		"the assembled ones")
)
