// Package vm defines the host capability set contracts execute against, the
// executors that run contract code, and the gas accounting shared by a call chain.
package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StorageKey addresses a single value inside a contract's storage namespace.
type StorageKey [32]byte

// Bytes returns a copy of the key as a byte slice.
func (k StorageKey) Bytes() []byte { return append([]byte(nil), k[:]...) }

// BytesToStorageKey left-pads b into a StorageKey. Longer inputs keep the
// trailing 32 bytes, mirroring common.BytesToHash.
func BytesToStorageKey(b []byte) StorageKey {
	return StorageKey(common.BytesToHash(b))
}

// ReturnFlags qualify the output of an execution.
type ReturnFlags uint32

const (
	// FlagRevert marks an output whose state changes must not persist.
	FlagRevert ReturnFlags = 1 << iota
)

// Reverted reports whether the revert flag is set.
func (f ReturnFlags) Reverted() bool { return f&FlagRevert != 0 }

// ExecReturnValue is what an executable hands back on a clean exit.
type ExecReturnValue struct {
	Flags ReturnFlags
	Data  []byte
}

// IsSuccess reports whether the execution finished without the revert flag.
func (r ExecReturnValue) IsSuccess() bool { return !r.Flags.Reverted() }

// Ext is the host interface exposed to executing contract code. Two variants
// exist: the real call context, which applies every operation to the
// provisional state, and the escrow adapter, which records storage writes and
// transfers into a trace while routing value through the escrow account.
type Ext interface {
	// GetStorage returns the value under key, or nil if the slot is empty.
	GetStorage(key StorageKey) []byte
	// SetStorage writes value under key. A nil value deletes the slot.
	SetStorage(key StorageKey, value []byte) error

	Instantiate(codeHash common.Hash, endowment *uint256.Int, gas *GasMeter, input []byte) (common.Address, ExecReturnValue, error)
	Transfer(to common.Address, value *uint256.Int, gas *GasMeter) error
	Terminate(beneficiary common.Address, gas *GasMeter) error
	Call(to common.Address, value *uint256.Int, gas *GasMeter, input []byte) (ExecReturnValue, error)
	RestoreTo(dest common.Address, codeHash common.Hash, rentAllowance *uint256.Int, delta []StorageKey) error

	Caller() common.Address
	Address() common.Address
	Balance() *uint256.Int
	ValueTransferred() *uint256.Int
	Now() uint64
	MinimumBalance() *uint256.Int
	TombstoneDeposit() *uint256.Int
	Random(subject []byte) common.Hash
	DepositEvent(topics []common.Hash, data []byte)
	SetRentAllowance(allowance *uint256.Int)
	RentAllowance() *uint256.Int
	BlockNumber() uint64
	MaxValueSize() uint32
	WeightPrice(weight uint64) *uint256.Int
}
