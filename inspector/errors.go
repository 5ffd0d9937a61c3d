package inspector

import "errors"

var (
	// ErrLookupUnavailable is returned when the ledger could not answer a
	// holding query. It never means the holding is absent.
	ErrLookupUnavailable = errors.New("holding lookup unavailable")

	// ErrInvalidParameters is returned for an empty account or a zero
	// asset id.
	ErrInvalidParameters = errors.New("invalid lookup parameters")

	// ErrBridgeRequired is returned when no chain bridge is configured.
	ErrBridgeRequired = errors.New("chain bridge is required")
)
