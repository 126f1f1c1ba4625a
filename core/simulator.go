package core

import (
	"errors"
	"sync"

	"github.com/clydemeng/bsc-escrow/core/vm"
	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// Simulator bundles the state, code store and executor needed to run call
// chains, and hides them behind a small API used by the command line tool
// and the tests. Chains are serialised: each one gets a fresh overlay over
// the shared backend and ledger.
type Simulator struct {
	config   *Config
	backend  *statebridge.Backend
	ledger   *statebridge.Ledger
	executor vm.Executor
	codes    *CodeStore

	mu    sync.Mutex
	block BlockContext
}

// Simulation is the outcome of one speculative chain.
type Simulation struct {
	Result  *EscrowResult
	Trace   *Recorder
	GasUsed uint64
}

// NewSimulator wires a simulator over existing state. The executor is chosen
// by config.Engine.
func NewSimulator(config *Config, backend *statebridge.Backend, ledger *statebridge.Ledger) (*Simulator, error) {
	executor, err := vm.NewExecutor(config.Engine, config.Schedule)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		config:   config,
		backend:  backend,
		ledger:   ledger,
		executor: executor,
		codes:    NewCodeStore(backend, executor),
	}, nil
}

// NewMemorySimulator returns a simulator over empty in-memory state.
func NewMemorySimulator(config *Config) (*Simulator, error) {
	backend, err := statebridge.NewMemoryBackend(config.CacheSize)
	if err != nil {
		return nil, err
	}
	ledger, err := statebridge.NewMemoryLedger(config.existentialDeposit())
	if err != nil {
		backend.Close()
		return nil, err
	}
	return NewSimulator(config, backend, ledger)
}

// Engine returns the name of the executor backend.
func (s *Simulator) Engine() string { return s.executor.Engine() }

// Executor returns the executor, e.g. to register native contracts.
func (s *Simulator) Executor() vm.Executor { return s.executor }

// Ledger returns the balances the simulator runs against.
func (s *Simulator) Ledger() *statebridge.Ledger { return s.ledger }

// SetBlock sets the block subsequent chains execute in.
func (s *Simulator) SetBlock(block BlockContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
}

// Contract returns the committed info of addr, or nil.
func (s *Simulator) Contract(addr common.Address) (*ContractInfo, error) {
	return NewDirectory(statebridge.NewOverlay(s.backend, nil), s.config).Lookup(addr)
}

// Storage returns the committed value of slot key of the contract at addr.
func (s *Simulator) Storage(addr common.Address, key vm.StorageKey) ([]byte, error) {
	info, err := s.Contract(addr)
	if err != nil {
		return nil, err
	}
	if info == nil || info.Alive == nil {
		return nil, vm.ErrNotCallable
	}
	v, _, err := s.backend.Get(statebridge.StorageKey(info.Alive.TrieID, key))
	return v, err
}

// UploadCode stores code and returns its hash.
func (s *Simulator) UploadCode(code []byte) (common.Hash, error) {
	return s.codes.Put(code)
}

// Deploy uploads code and instantiates it on behalf of deployer.
func (s *Simulator) Deploy(deployer common.Address, code []byte, endowment *uint256.Int, gasLimit uint64, input []byte) (common.Address, error) {
	hash, err := s.UploadCode(code)
	if err != nil {
		return common.Address{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.newContext()
	addr, ret, err := ctx.Instantiate(deployer, hash, endowment, vm.NewGasMeter(gasLimit), input)
	if err != nil {
		return common.Address{}, err
	}
	if ret.Flags.Reverted() {
		return common.Address{}, errors.New("constructor reverted")
	}
	log.Info("Deployed contract", "address", addr, "code", hash, "engine", s.Engine())
	return addr, nil
}

// Call performs a real call and commits its effects.
func (s *Simulator) Call(caller, dest common.Address, value *uint256.Int, gasLimit uint64, input []byte) (vm.ExecReturnValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.newContext().Call(caller, dest, value, vm.NewGasMeter(gasLimit), input)
}

// Simulate runs the speculative chain described by msg. The only effects left
// behind are the requester's deposit into the escrow account and any rent
// collected from the called contract.
func (s *Simulator) Simulate(msg *vm.CallMetadata) (*Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backend.Prefetch([]statebridge.BatchKey{{Address: msg.To}})
	ctx := s.newContext()

	// A callee that is not alive is rejected by EscrowCall before the
	// executable is needed.
	var exe vm.Executable
	info, err := ctx.Directory().Lookup(msg.To)
	if err != nil {
		return nil, err
	}
	if info != nil && info.Alive != nil {
		if exe, err = s.codes.Load(info.Alive.CodeHash); err != nil {
			return nil, err
		}
	}
	var (
		gas = vm.NewGasMeter(msg.GasLimit)
		rec = NewRecorder()
	)
	res, err := ctx.EscrowCall(msg.Escrow, msg.Requester, msg.To, msg.Destination(), msg.Value, gas, msg.Data, rec, exe)
	if cerr := ctx.Overlay().Commit(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	transfers, writes, stamps := rec.Len()
	log.Debug("Simulated escrow call", "to", msg.To, "gas", gas.Spent(), "transfers", transfers, "writes", writes, "stamps", stamps)
	return &Simulation{Result: res, Trace: rec, GasUsed: gas.Spent()}, nil
}

// Close releases the backend.
func (s *Simulator) Close() error {
	return s.backend.Close()
}

func (s *Simulator) newContext() *ExecutionContext {
	overlay := statebridge.NewOverlay(s.backend, s.ledger)
	return NewExecutionContext(s.config, overlay, s.executor, s.codes, s.block)
}
