package core

import (
	"fmt"

	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/clydemeng/bsc-escrow/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// EscrowTransfer moves value from requester to the escrow account and records
// a transfer of value to target in rec. The requester must keep at least the
// subsistence threshold after the movement, otherwise nothing happens and
// ErrBelowSubsistenceThreshold is returned. The threshold is checked against
// the settled balance, which ignores credits a later discard would undo.
//
// The requester to escrow movement is the only balance change of a
// speculative chain that persists: it survives the discard of every scope it
// was made in. The escrow to target leg is only recorded.
func (c *ExecutionContext) EscrowTransfer(escrow, requester, target common.Address, value *uint256.Int, payload []byte, gas *vm.GasMeter, rec *Recorder) error {
	if err := gas.Charge(c.config.Schedule.TransferCost); err != nil {
		return err
	}
	value = zeroIfNil(value)
	if saturatingSub(c.ledger.SettledBalance(requester), value).Lt(c.config.SubsistenceThreshold()) {
		solvencyRejectMeter.Mark(1)
		return fmt.Errorf("%w: requester %s, value %s", vm.ErrBelowSubsistenceThreshold, requester, value)
	}
	if err := c.ledger.TransferDurable(requester, escrow, value, tracing.BalanceChangeEscrowDeposit); err != nil {
		return err
	}
	rec.appendTransfer(target, value, payload)
	escrowTransferMeter.Mark(1)
	log.Debug("Escrow transfer", "requester", requester, "escrow", escrow, "target", target, "value", value)
	return nil
}
