package local

import "errors"

var (
	// ErrNoKeys is returned when the signer is configured without any
	// mnemonic.
	ErrNoKeys = errors.New("at least one mnemonic is required")

	// ErrApproverRequired is returned when no approval hook is set.
	ErrApproverRequired = errors.New("approver is required")

	// ErrUnknownSender is returned when a transaction sender has no key in
	// the signer.
	ErrUnknownSender = errors.New("no key for sender")

	// ErrNoTerminal is returned by the terminal approver when its input is
	// not a terminal.
	ErrNoTerminal = errors.New("approval input is not a terminal")
)
