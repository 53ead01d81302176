package services

import "errors"

// Sentinel errors returned by the wallet/settlement core. Boundary layers
// map these onto HTTP statuses; everything else is treated as an internal
// error.
var (
	// ErrNotFound is returned for an unknown wallet, transaction or reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned when an amount is not a positive integer.
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrInsufficientFunds is returned when a debit would take the balance
	// below zero. The balance is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransition is returned when a transaction state transition
	// guard fails. Raised both for genuine misuse and for benign
	// double-settlement races; the webhook/verify layer treats it as
	// already-settled, admin actions surface it.
	ErrInvalidTransition = errors.New("invalid transaction state transition")
)
