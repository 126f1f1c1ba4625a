package tracing

import gethtracing "github.com/ethereum/go-ethereum/core/tracing"

// BalanceChangeReason is a description of the reason why a balance was changed.
type BalanceChangeReason int

const (
	BalanceChangeUnspecified BalanceChangeReason = iota
	BalanceChangeGenesis
	BalanceChangeTransfer
	BalanceChangeEscrowDeposit // requester funds moved into the escrow account
	BalanceChangeEndowment
	BalanceChangeRent
	BalanceChangeTerminate
	BalanceChangeRestore
	BalanceChangeReplay // durable movement re-applied after a rollback
)

// String returns a human-readable string for the reason.
func (r BalanceChangeReason) String() string {
	switch r {
	case BalanceChangeUnspecified:
		return "unspecified"
	case BalanceChangeGenesis:
		return "genesis"
	case BalanceChangeTransfer:
		return "transfer"
	case BalanceChangeEscrowDeposit:
		return "escrow_deposit"
	case BalanceChangeEndowment:
		return "endowment"
	case BalanceChangeRent:
		return "rent"
	case BalanceChangeTerminate:
		return "terminate"
	case BalanceChangeRestore:
		return "restore"
	case BalanceChangeReplay:
		return "replay"
	}
	return "unknown"
}

// Geth maps the reason onto the closest balance change reason understood by
// go-ethereum state tracers.
func (r BalanceChangeReason) Geth() gethtracing.BalanceChangeReason {
	switch r {
	case BalanceChangeGenesis:
		return gethtracing.BalanceIncreaseGenesisBalance
	case BalanceChangeTransfer, BalanceChangeEscrowDeposit, BalanceChangeEndowment,
		BalanceChangeRestore, BalanceChangeReplay:
		return gethtracing.BalanceChangeTransfer
	case BalanceChangeTerminate:
		return gethtracing.BalanceDecreaseSelfdestruct
	}
	return gethtracing.BalanceChangeUnspecified
}
