package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// meteredExt charges the gas schedule for every host operation before
// forwarding it. Both executors hand contracts a meteredExt, so pricing does
// not depend on the engine.
type meteredExt struct {
	Ext
	gas      *GasMeter
	schedule *Schedule
	err      error
}

func newMeteredExt(ext Ext, gas *GasMeter, schedule *Schedule) *meteredExt {
	return &meteredExt{Ext: ext, gas: gas, schedule: schedule}
}

// GetStorage has no error return, so a failed charge is kept in m.err and
// surfaced by the executor once the contract returns.
func (m *meteredExt) GetStorage(key StorageKey) []byte {
	if err := m.gas.Charge(m.schedule.StorageReadCost); err != nil {
		m.fail(err)
		return nil
	}
	return m.Ext.GetStorage(key)
}

func (m *meteredExt) SetStorage(key StorageKey, value []byte) error {
	if err := m.gas.Charge(m.schedule.storageWriteCost(len(value))); err != nil {
		return err
	}
	return m.Ext.SetStorage(key, value)
}

func (m *meteredExt) Transfer(to common.Address, value *uint256.Int, gas *GasMeter) error {
	if err := m.gas.Charge(m.schedule.HostFnCost); err != nil {
		return err
	}
	return m.Ext.Transfer(to, value, m.meter(gas))
}

func (m *meteredExt) Call(to common.Address, value *uint256.Int, gas *GasMeter, input []byte) (ExecReturnValue, error) {
	if err := m.gas.Charge(m.schedule.HostFnCost); err != nil {
		return ExecReturnValue{}, err
	}
	return m.Ext.Call(to, value, m.meter(gas), input)
}

func (m *meteredExt) Instantiate(codeHash common.Hash, endowment *uint256.Int, gas *GasMeter, input []byte) (common.Address, ExecReturnValue, error) {
	if err := m.gas.Charge(m.schedule.InstantiateBaseCost); err != nil {
		return common.Address{}, ExecReturnValue{}, err
	}
	return m.Ext.Instantiate(codeHash, endowment, m.meter(gas), input)
}

func (m *meteredExt) Terminate(beneficiary common.Address, gas *GasMeter) error {
	if err := m.gas.Charge(m.schedule.TerminateCost); err != nil {
		return err
	}
	return m.Ext.Terminate(beneficiary, m.meter(gas))
}

func (m *meteredExt) RestoreTo(dest common.Address, codeHash common.Hash, rentAllowance *uint256.Int, delta []StorageKey) error {
	if err := m.gas.Charge(m.schedule.RestoreCost); err != nil {
		return err
	}
	return m.Ext.RestoreTo(dest, codeHash, rentAllowance, delta)
}

func (m *meteredExt) DepositEvent(topics []common.Hash, data []byte) {
	if err := m.gas.Charge(m.schedule.eventCost(len(topics), len(data))); err != nil {
		m.fail(err)
		return
	}
	m.Ext.DepositEvent(topics, data)
}

// meter returns gas, or the meter of the running chain when the contract
// passed none. Native contracts never hold a meter of their own.
func (m *meteredExt) meter(gas *GasMeter) *GasMeter {
	if gas == nil {
		return m.gas
	}
	return gas
}

func (m *meteredExt) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}
