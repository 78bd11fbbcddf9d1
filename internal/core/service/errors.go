package service

import "errors"

var (
	// ErrInvalidArgument rejects malformed ids, non-positive quantities and
	// negative thresholds before any mutation is attempted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientStock means a stock-out asked for more than the key
	// holds. No state change occurred.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransfer rejects transfers between identical stores.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrTransientFailure is surfaced after the bounded internal retry on
	// storage conflicts is exhausted, or while the write breaker is open.
	ErrTransientFailure = errors.New("transient failure")

	// ErrTransferFailed means the destination credit could not be applied
	// and the source debit was compensated.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrCompensationFailed is the fatal case: the compensating credit
	// after a failed transfer itself failed. Manual reconciliation is
	// required; retrying automatically risks double-compensation.
	ErrCompensationFailed = errors.New("transfer compensation failed")
)
