package core

import (
	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// escrowContext is the host of a speculative frame. Storage writes and
// transfers are recorded, transfers are routed through the escrow account and
// calls recurse into further speculative frames. Every other operation goes
// to the real host underneath, which applies it to the provisional state.
type escrowContext struct {
	*callContext
	party escrowParty
	rec   *Recorder
}

var _ vm.Ext = (*escrowContext)(nil)

// SetStorage records the write before applying it, so later reads in the
// chain observe the value.
func (e *escrowContext) SetStorage(key vm.StorageKey, value []byte) error {
	e.rec.appendWrite(e.self, e.trieID, key, value)
	return e.callContext.SetStorage(key, value)
}

// Transfer never moves value to the recipient. The requester funds the
// escrow account instead and the transfer is recorded.
func (e *escrowContext) Transfer(to common.Address, value *uint256.Int, gas *vm.GasMeter) error {
	return e.ctx.EscrowTransfer(e.party.escrow, e.party.requester, to, zeroIfNil(value), nil, gas, e.rec)
}

// Call recurses into a speculative frame for to, keeping the escrow account,
// requester and recorder of the chain.
func (e *escrowContext) Call(to common.Address, value *uint256.Int, gas *vm.GasMeter, input []byte) (vm.ExecReturnValue, error) {
	// Depth takes precedence over callability.
	if e.depth+1 >= e.ctx.config.MaxDepth {
		return vm.ExecReturnValue{}, vm.ErrMaxCallDepthReached
	}
	info, err := e.ctx.alive(to, false)
	if err != nil {
		return vm.ExecReturnValue{}, err
	}
	exe, err := e.ctx.loader.Load(info.CodeHash)
	if err != nil {
		return vm.ExecReturnValue{}, err
	}
	res, err := e.ctx.escrowCall(e.depth+1, e.party, to, to, zeroIfNil(value), gas, input, e.rec, exe)
	if err != nil {
		return vm.ExecReturnValue{}, err
	}
	return res.ret, res.err
}

// Caller reports the escrow account.
func (e *escrowContext) Caller() common.Address { return e.party.escrow }

// Balance reports the free balance of the escrow account.
func (e *escrowContext) Balance() *uint256.Int { return e.ctx.ledger.Balance(e.party.escrow) }
