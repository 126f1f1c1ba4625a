package core

import (
	"fmt"

	"github.com/clydemeng/bsc-escrow/core/vm"
	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
	"github.com/clydemeng/bsc-escrow/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// ContractAddress derives the address a contract instantiated by deployer
// from codeHash with the given constructor input is placed at.
func ContractAddress(codeHash common.Hash, input []byte, deployer common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(codeHash.Bytes(), input, deployer.Bytes())[12:])
}

// Call performs a real call from caller to dest. The effects of a successful
// call are committed to the backend together with the rent collected on the
// way; a reverted or failed call commits only the rent.
func (c *ExecutionContext) Call(caller, dest common.Address, value *uint256.Int, gas *vm.GasMeter, input []byte) (vm.ExecReturnValue, error) {
	ret, err := c.call(0, caller, dest, zeroIfNil(value), gas, input)
	if cerr := c.overlay.Commit(); cerr != nil && err == nil {
		err = cerr
	}
	return ret, err
}

func (c *ExecutionContext) call(depth int, caller, dest common.Address, value *uint256.Int, gas *vm.GasMeter, input []byte) (vm.ExecReturnValue, error) {
	if depth == c.config.MaxDepth {
		return vm.ExecReturnValue{}, vm.ErrMaxCallDepthReached
	}
	if err := gas.Charge(c.config.Schedule.CallBaseCost); err != nil {
		return vm.ExecReturnValue{}, err
	}
	info, err := c.alive(dest, true)
	if err != nil {
		return vm.ExecReturnValue{}, err
	}
	exe, err := c.loader.Load(info.CodeHash)
	if err != nil {
		return vm.ExecReturnValue{}, err
	}
	realCallMeter.Mark(1)

	var (
		ret      vm.ExecReturnValue
		reverted bool
	)
	_, err = c.overlay.RunScoped(false, func() error {
		if !value.IsZero() {
			if err := c.transfer(caller, dest, value, gas, true, tracing.BalanceChangeTransfer); err != nil {
				return err
			}
		}
		host := newCallContext(c, depth, caller, dest, info.TrieID, value)
		var err error
		if ret, err = c.execute(exe, vm.EntryCall, host, input, gas); err != nil {
			return err
		}
		if ret.Flags.Reverted() {
			reverted = true
			return errContractReverted
		}
		return nil
	})
	if reverted {
		return ret, nil
	}
	return ret, err
}

// Instantiate deploys the code stored under codeHash on behalf of deployer,
// funding the new contract with endowment and running its constructor. The
// new contract is committed to the backend unless the constructor fails or
// reverts, in which case the zero address is returned.
func (c *ExecutionContext) Instantiate(deployer common.Address, codeHash common.Hash, endowment *uint256.Int, gas *vm.GasMeter, input []byte) (common.Address, vm.ExecReturnValue, error) {
	if err := gas.Charge(c.config.Schedule.InstantiateBaseCost); err != nil {
		return common.Address{}, vm.ExecReturnValue{}, err
	}
	addr, ret, err := c.instantiate(0, deployer, codeHash, zeroIfNil(endowment), gas, input)
	if cerr := c.overlay.Commit(); cerr != nil && err == nil {
		err = cerr
	}
	return addr, ret, err
}

func (c *ExecutionContext) instantiate(depth int, deployer common.Address, codeHash common.Hash, endowment *uint256.Int, gas *vm.GasMeter, input []byte) (common.Address, vm.ExecReturnValue, error) {
	if depth == c.config.MaxDepth {
		return common.Address{}, vm.ExecReturnValue{}, vm.ErrMaxCallDepthReached
	}
	exe, err := c.loader.Load(codeHash)
	if err != nil {
		return common.Address{}, vm.ExecReturnValue{}, err
	}
	addr := ContractAddress(codeHash, input, deployer)
	existing, err := c.directory.Lookup(addr)
	if err != nil {
		return common.Address{}, vm.ExecReturnValue{}, err
	}
	if existing != nil {
		return common.Address{}, vm.ExecReturnValue{}, fmt.Errorf("%w: %s", vm.ErrContractExists, addr)
	}
	if endowment.Lt(c.config.SubsistenceThreshold()) {
		return common.Address{}, vm.ExecReturnValue{}, vm.ErrBelowSubsistenceThreshold
	}

	var (
		ret      vm.ExecReturnValue
		reverted bool
	)
	_, err = c.overlay.RunScoped(false, func() error {
		trieID, err := statebridge.NewTrieID(c.overlay, addr)
		if err != nil {
			return err
		}
		info := &ContractInfo{Alive: &AliveContractInfo{
			TrieID:        trieID,
			CodeHash:      codeHash,
			RentAllowance: new(uint256.Int).Not(new(uint256.Int)),
			DeductBlock:   c.block.Number,
		}}
		if err := c.directory.Put(addr, info); err != nil {
			return err
		}
		if err := c.transfer(deployer, addr, endowment, gas, true, tracing.BalanceChangeEndowment); err != nil {
			return err
		}
		host := newCallContext(c, depth, deployer, addr, trieID, endowment)
		if ret, err = c.execute(exe, vm.EntryDeploy, host, input, gas); err != nil {
			return err
		}
		if ret.Flags.Reverted() {
			reverted = true
			return errContractReverted
		}
		return nil
	})
	if reverted {
		return common.Address{}, ret, nil
	}
	if err != nil {
		return common.Address{}, ret, err
	}
	log.Debug("Instantiated contract", "address", addr, "code", codeHash, "deployer", deployer, "endowment", endowment)
	return addr, ret, nil
}

// clearStorage deletes every slot of namespace trieID.
func (c *ExecutionContext) clearStorage(trieID []byte) error {
	entries, err := c.overlay.Collect(statebridge.StoragePrefix(trieID))
	if err != nil {
		return err
	}
	for k := range entries {
		c.overlay.Delete([]byte(k))
	}
	return nil
}
