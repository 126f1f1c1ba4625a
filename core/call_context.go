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

// callContext is the real host of one executing frame. Every operation is
// applied to the overlay and ledger of the execution context, inside the
// scope of the frame.
type callContext struct {
	ctx    *ExecutionContext
	depth  int
	caller common.Address
	self   common.Address
	trieID []byte
	value  *uint256.Int
}

var _ vm.Ext = (*callContext)(nil)

func newCallContext(ctx *ExecutionContext, depth int, caller, self common.Address, trieID []byte, value *uint256.Int) *callContext {
	return &callContext{
		ctx:    ctx,
		depth:  depth,
		caller: caller,
		self:   self,
		trieID: trieID,
		value:  new(uint256.Int).Set(zeroIfNil(value)),
	}
}

func (h *callContext) GetStorage(key vm.StorageKey) []byte {
	v, err := h.ctx.overlay.Get(statebridge.StorageKey(h.trieID, key))
	if err != nil {
		log.Error("Failed to read contract storage", "address", h.self, "key", common.Hash(key), "err", err)
		return nil
	}
	return v
}

func (h *callContext) SetStorage(key vm.StorageKey, value []byte) error {
	if len(value) > int(h.ctx.config.MaxValueSize) {
		return fmt.Errorf("%w: %d bytes", vm.ErrValueTooLarge, len(value))
	}
	skey := statebridge.StorageKey(h.trieID, key)
	old, err := h.ctx.overlay.Get(skey)
	if err != nil {
		return err
	}
	if value == nil {
		h.ctx.overlay.Delete(skey)
	} else {
		h.ctx.overlay.Put(skey, value)
	}
	return h.adjustStorageSize(len(old), len(value))
}

// adjustStorageSize keeps the rent-relevant storage size of the contract in
// step with a write that replaced old bytes by cur ones.
func (h *callContext) adjustStorageSize(old, cur int) error {
	if old == cur {
		return nil
	}
	info, err := h.ctx.directory.Lookup(h.self)
	if err != nil || info == nil || info.Alive == nil {
		return err
	}
	size := info.Alive.StorageSize
	if uint64(old) > size {
		size = 0
	} else {
		size -= uint64(old)
	}
	info.Alive.StorageSize = size + uint64(cur)
	return h.ctx.directory.Put(h.self, info)
}

func (h *callContext) Instantiate(codeHash common.Hash, endowment *uint256.Int, gas *vm.GasMeter, input []byte) (common.Address, vm.ExecReturnValue, error) {
	return h.ctx.instantiate(h.depth+1, h.self, codeHash, zeroIfNil(endowment), gas, input)
}

func (h *callContext) Transfer(to common.Address, value *uint256.Int, gas *vm.GasMeter) error {
	return h.ctx.transfer(h.self, to, zeroIfNil(value), gas, true, tracing.BalanceChangeTransfer)
}

// Terminate moves the whole balance to beneficiary and removes the contract
// along with its storage.
func (h *callContext) Terminate(beneficiary common.Address, gas *vm.GasMeter) error {
	if h.ctx.reentrant(h.self) {
		return ErrTerminateReentrant
	}
	if err := h.ctx.ledger.Transfer(h.self, beneficiary, h.ctx.ledger.Balance(h.self), false, tracing.BalanceChangeTerminate); err != nil {
		return err
	}
	if err := h.ctx.clearStorage(h.trieID); err != nil {
		return err
	}
	h.ctx.directory.Remove(h.self)
	log.Debug("Terminated contract", "address", h.self, "beneficiary", beneficiary)
	return nil
}

func (h *callContext) Call(to common.Address, value *uint256.Int, gas *vm.GasMeter, input []byte) (vm.ExecReturnValue, error) {
	return h.ctx.call(h.depth+1, h.self, to, zeroIfNil(value), gas, input)
}

// RestoreTo revives the tombstone at dest with the storage of the calling
// contract, after deleting the keys in delta from it. The storage root left
// after the deletion must match the one the tombstone committed to. On
// success the caller is removed and its balance moves to dest.
func (h *callContext) RestoreTo(dest common.Address, codeHash common.Hash, rentAllowance *uint256.Int, delta []vm.StorageKey) error {
	info, err := h.ctx.directory.Lookup(dest)
	if err != nil {
		return err
	}
	if info == nil || info.Tombstone == nil {
		return vm.ErrNotTombstone
	}
	if h.ctx.reentrant(h.self) {
		return ErrTerminateReentrant
	}
	_, err = h.ctx.overlay.RunScoped(false, func() error {
		for _, key := range delta {
			h.ctx.overlay.Delete(statebridge.StorageKey(h.trieID, key))
		}
		root, err := h.ctx.overlay.StorageRoot(h.trieID)
		if err != nil {
			return err
		}
		if tombstoneHash(root, codeHash) != info.Tombstone.Hash {
			return vm.ErrTombstoneMismatch
		}
		size, err := h.ctx.directory.StorageSize(h.trieID)
		if err != nil {
			return err
		}
		restored := &ContractInfo{Alive: &AliveContractInfo{
			TrieID:        h.trieID,
			CodeHash:      codeHash,
			StorageSize:   size,
			RentAllowance: new(uint256.Int).Set(zeroIfNil(rentAllowance)),
			DeductBlock:   h.ctx.block.Number,
		}}
		if err := h.ctx.directory.Put(dest, restored); err != nil {
			return err
		}
		if err := h.ctx.ledger.Transfer(h.self, dest, h.ctx.ledger.Balance(h.self), false, tracing.BalanceChangeRestore); err != nil {
			return err
		}
		h.ctx.directory.Remove(h.self)
		return nil
	})
	if err == nil {
		log.Debug("Restored contract", "address", dest, "from", h.self, "code", codeHash)
	}
	return err
}

func (h *callContext) Caller() common.Address { return h.caller }
func (h *callContext) Address() common.Address { return h.self }

func (h *callContext) Balance() *uint256.Int { return h.ctx.ledger.Balance(h.self) }

func (h *callContext) ValueTransferred() *uint256.Int { return new(uint256.Int).Set(h.value) }

func (h *callContext) Now() uint64 { return h.ctx.block.Time }

func (h *callContext) MinimumBalance() *uint256.Int { return h.ctx.config.existentialDeposit() }

func (h *callContext) TombstoneDeposit() *uint256.Int { return h.ctx.config.tombstoneDeposit() }

func (h *callContext) Random(subject []byte) common.Hash {
	return crypto.Keccak256Hash(h.ctx.block.Seed.Bytes(), subject)
}

func (h *callContext) DepositEvent(topics []common.Hash, data []byte) {
	h.ctx.overlay.DepositEvent(statebridge.Event{
		Address: h.self,
		Topics:  append([]common.Hash(nil), topics...),
		Data:    common.CopyBytes(data),
	})
}

func (h *callContext) SetRentAllowance(allowance *uint256.Int) {
	info, err := h.ctx.directory.Lookup(h.self)
	if err != nil || info == nil || info.Alive == nil {
		return
	}
	info.Alive.RentAllowance = new(uint256.Int).Set(zeroIfNil(allowance))
	if err := h.ctx.directory.Put(h.self, info); err != nil {
		log.Error("Failed to update rent allowance", "address", h.self, "err", err)
	}
}

func (h *callContext) RentAllowance() *uint256.Int {
	info, err := h.ctx.directory.Lookup(h.self)
	if err != nil || info == nil || info.Alive == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(info.Alive.RentAllowance)
}

func (h *callContext) BlockNumber() uint64 { return h.ctx.block.Number }

func (h *callContext) MaxValueSize() uint32 { return h.ctx.config.MaxValueSize }

func (h *callContext) WeightPrice(weight uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(weight), uint256.NewInt(h.ctx.config.WeightPrice))
}
