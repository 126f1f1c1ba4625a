package vm

import (
	"errors"

	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
)

// List of errors surfaced by call orchestration and the host interface.
var (
	ErrMaxCallDepthReached       = errors.New("max call depth reached")
	ErrOutOfGas                  = errors.New("out of gas")
	ErrNotCallable               = errors.New("contract not callable")
	ErrCodeNotFound              = errors.New("code not found")
	ErrBelowSubsistenceThreshold = errors.New("balance below subsistence threshold")

	ErrValueTooLarge       = errors.New("storage value exceeds max value size")
	ErrContractExists      = errors.New("contract already exists")
	ErrInsufficientBalance = statebridge.ErrInsufficientBalance
	ErrBelowMinimumBalance = statebridge.ErrBelowMinimumBalance
	ErrNotTombstone        = errors.New("restore destination is not a tombstone")
	ErrTombstoneMismatch   = errors.New("restored storage does not match tombstone")
	ErrUnknownEngine       = errors.New("unknown execution engine")
	ErrUnknownEntryPoint   = errors.New("executable has no such entry point")
)
