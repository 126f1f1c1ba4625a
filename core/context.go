package core

import (
	"errors"
	"fmt"

	"github.com/clydemeng/bsc-escrow/core/vm"
	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
	"github.com/clydemeng/bsc-escrow/tracing"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// errContractReverted discards the scope of a frame whose code returned with
// the revert flag. It never leaves the package.
var errContractReverted = errors.New("contract reverted")

// ErrTerminateReentrant is returned when a contract tries to terminate while
// an outer frame of the same contract is still executing.
var ErrTerminateReentrant = errors.New("cannot terminate a contract with frames on the call stack")

// BlockContext describes the block a call chain executes in.
type BlockContext struct {
	Number uint64
	Time   uint64
	Seed   common.Hash // Source of Ext.Random
}

// ExecutionContext runs calls against one overlay. Real calls apply their
// effects to the overlay and ledger. Escrow calls execute the same way but
// discard every effect of the chain and report them in a trace instead.
//
// An ExecutionContext serves one call chain at a time.
type ExecutionContext struct {
	config    *Config
	overlay   *statebridge.Overlay
	ledger    *statebridge.Ledger
	directory *Directory
	loader    vm.Loader
	executor  vm.Executor
	block     BlockContext

	frames []common.Address // contracts currently executing, outermost first
}

// NewExecutionContext returns a context executing on overlay and its ledger.
func NewExecutionContext(config *Config, overlay *statebridge.Overlay, executor vm.Executor, loader vm.Loader, block BlockContext) *ExecutionContext {
	return &ExecutionContext{
		config:    config,
		overlay:   overlay,
		ledger:    overlay.Ledger(),
		directory: NewDirectory(overlay, config),
		loader:    loader,
		executor:  executor,
		block:     block,
	}
}

// Directory returns the contract directory of the context.
func (c *ExecutionContext) Directory() *Directory { return c.directory }

// Overlay returns the provisional state the context executes on.
func (c *ExecutionContext) Overlay() *statebridge.Overlay { return c.overlay }

// enter pushes addr on the frame stack and returns the matching pop.
func (c *ExecutionContext) enter(addr common.Address) func() {
	c.frames = append(c.frames, addr)
	return func() { c.frames = c.frames[:len(c.frames)-1] }
}

// reentrant reports whether addr executes in a frame below the current one.
func (c *ExecutionContext) reentrant(addr common.Address) bool {
	if len(c.frames) < 2 {
		return false
	}
	return mapset.NewThreadUnsafeSet(c.frames[:len(c.frames)-1]...).Contains(addr)
}

// execute runs exe with host, keeping the frame stack current.
func (c *ExecutionContext) execute(exe vm.Executable, entry vm.EntryPoint, host vm.Ext, input []byte, gas *vm.GasMeter) (vm.ExecReturnValue, error) {
	defer c.enter(host.Address())()
	return c.executor.Execute(exe, entry, host, input, gas)
}

// transfer moves value between accounts on behalf of executing code.
func (c *ExecutionContext) transfer(from, to common.Address, value *uint256.Int, gas *vm.GasMeter, keepAlive bool, reason tracing.BalanceChangeReason) error {
	if err := gas.Charge(c.config.Schedule.TransferCost); err != nil {
		return err
	}
	return c.ledger.Transfer(from, to, value, keepAlive, reason)
}

// alive returns the info of a callable contract, or ErrNotCallable.
func (c *ExecutionContext) alive(addr common.Address, collectRent bool) (*AliveContractInfo, error) {
	var (
		info *ContractInfo
		err  error
	)
	if collectRent {
		info, err = c.directory.LookupAndCollectRent(addr, c.block.Number)
	} else {
		info, err = c.directory.Lookup(addr)
	}
	if err != nil {
		return nil, err
	}
	if info == nil || info.Alive == nil {
		return nil, fmt.Errorf("%w: %s", vm.ErrNotCallable, addr)
	}
	return info.Alive, nil
}

func zeroIfNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
