package vm

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NativeFunc is a contract entry point written in Go.
type NativeFunc func(ext Ext, input []byte) (ExecReturnValue, error)

// NativeContract bundles the entry points of a Go contract. Deploy may be nil,
// in which case instantiation runs no constructor.
type NativeContract struct {
	Deploy NativeFunc
	Call   NativeFunc
}

type nativeExecutable struct {
	hash     common.Hash
	name     string
	contract NativeContract
}

func (e *nativeExecutable) CodeHash() common.Hash { return e.hash }

// NativeExecutor runs Go contracts registered under a name. The stored code
// of a native contract is simply its registered name.
type NativeExecutor struct {
	schedule Schedule

	mu        sync.RWMutex
	contracts map[string]NativeContract
}

// NewNativeExecutor returns an executor with an empty contract registry.
func NewNativeExecutor(schedule Schedule) *NativeExecutor {
	return &NativeExecutor{
		schedule:  schedule,
		contracts: make(map[string]NativeContract),
	}
}

func (n *NativeExecutor) Engine() string { return "native" }

// Register makes contract loadable from code equal to name.
func (n *NativeExecutor) Register(name string, contract NativeContract) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contracts[name] = contract
}

func (n *NativeExecutor) Prepare(codeHash common.Hash, code []byte) (Executable, error) {
	n.mu.RLock()
	contract, ok := n.contracts[string(code)]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: native contract %q not registered", ErrCodeNotFound, string(code))
	}
	return &nativeExecutable{hash: codeHash, name: string(code), contract: contract}, nil
}

func (n *NativeExecutor) Execute(exe Executable, entry EntryPoint, ext Ext, input []byte, gas *GasMeter) (ExecReturnValue, error) {
	native, ok := exe.(*nativeExecutable)
	if !ok {
		return ExecReturnValue{}, fmt.Errorf("native engine cannot run %T", exe)
	}
	var fn NativeFunc
	switch entry {
	case EntryCall:
		fn = native.contract.Call
	case EntryDeploy:
		fn = native.contract.Deploy
		if fn == nil {
			return ExecReturnValue{}, nil
		}
	}
	if fn == nil {
		return ExecReturnValue{}, fmt.Errorf("%w: %s on %s", ErrUnknownEntryPoint, entry, native.name)
	}
	metered := newMeteredExt(ext, gas, &n.schedule)
	ret, err := fn(metered, input)
	if err == nil && metered.err != nil {
		err = metered.err
	}
	return ret, err
}
