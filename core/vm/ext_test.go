package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// memoryExt is a self-contained host for executor tests. Calls are answered
// by the optional onCall hook.
type memoryExt struct {
	storage   map[StorageKey][]byte
	balance   *uint256.Int
	transfers []common.Address
	events    [][]byte
	allowance *uint256.Int
	onCall    func(to common.Address, input []byte) (ExecReturnValue, error)
}

func newMemoryExt() *memoryExt {
	return &memoryExt{
		storage:   make(map[StorageKey][]byte),
		balance:   uint256.NewInt(1000),
		allowance: uint256.NewInt(0),
	}
}

func (m *memoryExt) GetStorage(key StorageKey) []byte { return m.storage[key] }

func (m *memoryExt) SetStorage(key StorageKey, value []byte) error {
	if value == nil {
		delete(m.storage, key)
		return nil
	}
	m.storage[key] = value
	return nil
}

func (m *memoryExt) Instantiate(codeHash common.Hash, endowment *uint256.Int, gas *GasMeter, input []byte) (common.Address, ExecReturnValue, error) {
	return common.BytesToAddress(codeHash[:20]), ExecReturnValue{Data: input}, nil
}

func (m *memoryExt) Transfer(to common.Address, value *uint256.Int, gas *GasMeter) error {
	if m.balance.Lt(value) {
		return ErrInsufficientBalance
	}
	m.balance.Sub(m.balance, value)
	m.transfers = append(m.transfers, to)
	return nil
}

func (m *memoryExt) Terminate(beneficiary common.Address, gas *GasMeter) error { return nil }

func (m *memoryExt) Call(to common.Address, value *uint256.Int, gas *GasMeter, input []byte) (ExecReturnValue, error) {
	if m.onCall == nil {
		return ExecReturnValue{}, ErrNotCallable
	}
	return m.onCall(to, input)
}

func (m *memoryExt) RestoreTo(dest common.Address, codeHash common.Hash, rentAllowance *uint256.Int, delta []StorageKey) error {
	return ErrNotTombstone
}

func (m *memoryExt) Caller() common.Address { return common.HexToAddress("0xca11e7") }
func (m *memoryExt) Address() common.Address { return common.HexToAddress("0xc0de") }
func (m *memoryExt) Balance() *uint256.Int { return new(uint256.Int).Set(m.balance) }
func (m *memoryExt) ValueTransferred() *uint256.Int { return uint256.NewInt(7) }
func (m *memoryExt) Now() uint64 { return 1700000000 }
func (m *memoryExt) MinimumBalance() *uint256.Int { return uint256.NewInt(100) }
func (m *memoryExt) TombstoneDeposit() *uint256.Int { return uint256.NewInt(16) }
func (m *memoryExt) Random(subject []byte) common.Hash { return crypto.Keccak256Hash(subject) }
func (m *memoryExt) DepositEvent(topics []common.Hash, data []byte) {
	m.events = append(m.events, data)
}
func (m *memoryExt) SetRentAllowance(allowance *uint256.Int) { m.allowance = allowance }
func (m *memoryExt) RentAllowance() *uint256.Int { return m.allowance }
func (m *memoryExt) BlockNumber() uint64 { return 42 }
func (m *memoryExt) MaxValueSize() uint32 { return 16 * 1024 }
func (m *memoryExt) WeightPrice(weight uint64) *uint256.Int { return uint256.NewInt(weight * 2) }
