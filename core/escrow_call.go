package core

import (
	"time"

	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// EscrowResult is the outcome of a speculative call chain. Flags always
// include vm.FlagRevert: nothing the chain did to contract state survives.
type EscrowResult struct {
	Output  []byte
	Flags   vm.ReturnFlags
	ExecErr error // Error the top-level code trapped with, nil on a clean exit
}

// Reverted reports whether the result carries the revert flag.
func (r *EscrowResult) Reverted() bool { return r.Flags.Reverted() }

// escrowParty identifies who a speculative chain runs as and who pays for it.
type escrowParty struct {
	escrow    common.Address
	requester common.Address
}

// frameResult is what the code of one frame returned.
type frameResult struct {
	ret vm.ExecReturnValue
	err error
}

// EscrowCall executes exe as contract callee on behalf of requester, with the
// escrow account as the apparent caller. If value is non-zero it is first
// moved from requester to escrow and recorded as a transfer to dest.
//
// Calls, storage writes and transfers made anywhere in the chain are
// recorded in rec, after which every state change of the chain is
// discarded. The returned error is reserved for failures that prevented the
// top-level code from running: call depth, gas for the call, a callee that is
// not callable or a failed escrow transfer. Anything that goes wrong once the
// code runs is reported through EscrowResult.ExecErr.
func (c *ExecutionContext) EscrowCall(escrow, requester, callee, dest common.Address, value *uint256.Int, gas *vm.GasMeter, input []byte, rec *Recorder, exe vm.Executable) (*EscrowResult, error) {
	defer escrowCallTimer.UpdateSince(time.Now())

	defer c.ledger.Track(escrow, requester)()

	party := escrowParty{escrow: escrow, requester: requester}
	res, err := c.escrowCall(0, party, callee, dest, zeroIfNil(value), gas, input, rec, exe)
	if err != nil {
		return nil, err
	}
	return &EscrowResult{
		Output:  res.ret.Data,
		Flags:   res.ret.Flags | vm.FlagRevert,
		ExecErr: res.err,
	}, nil
}

// escrowCall runs one frame of a speculative chain. The frame's scope is
// always discarded at depth 0. Deeper frames keep their changes in the parent
// scope on success, so later frames of the chain observe them, and discard
// them when their code fails or reverts.
func (c *ExecutionContext) escrowCall(depth int, party escrowParty, callee, dest common.Address, value *uint256.Int, gas *vm.GasMeter, input []byte, rec *Recorder, exe vm.Executable) (frameResult, error) {
	if depth == c.config.MaxDepth {
		return frameResult{}, vm.ErrMaxCallDepthReached
	}
	if err := gas.Charge(c.config.Schedule.CallBaseCost); err != nil {
		return frameResult{}, err
	}
	info, err := c.alive(callee, true)
	if err != nil {
		return frameResult{}, err
	}
	root, err := c.overlay.StorageRoot(info.TrieID)
	if err != nil {
		return frameResult{}, err
	}
	rec.pushStamp(root, callee)
	escrowCallMeter.Mark(1)
	log.Debug("Escrow call", "depth", depth, "callee", callee, "value", value, "gas", gas.GasLeft())

	var (
		res      frameResult
		executed bool
	)
	_, err = c.overlay.RunScoped(depth == 0, func() error {
		if !value.IsZero() {
			if err := c.EscrowTransfer(party.escrow, party.requester, dest, value, nil, gas, rec); err != nil {
				return err
			}
		}
		host := &escrowContext{
			callContext: newCallContext(c, depth, party.escrow, callee, info.TrieID, value),
			party:       party,
			rec:         rec,
		}
		executed = true
		res.ret, res.err = c.execute(exe, vm.EntryCall, host, input, gas)
		if res.err != nil {
			return res.err
		}
		if res.ret.Flags.Reverted() {
			return errContractReverted
		}
		return nil
	})
	if !executed {
		return frameResult{}, err
	}
	return res, nil
}
