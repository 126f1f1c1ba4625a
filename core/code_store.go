package core

import (
	"fmt"

	"github.com/clydemeng/bsc-escrow/core/vm"
	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
)

const preparedCacheSize = 256

// CodeStore keeps contract code in the backend, addressed by its keccak hash,
// and hands out executables prepared by the configured executor. Prepared
// executables are cached since preparing is the expensive part of a load.
type CodeStore struct {
	backend  *statebridge.Backend
	executor vm.Executor
	prepared *lru.Cache // code hash -> vm.Executable
}

// NewCodeStore returns a code store preparing code with executor.
func NewCodeStore(backend *statebridge.Backend, executor vm.Executor) *CodeStore {
	cache, _ := lru.New(preparedCacheSize)
	return &CodeStore{backend: backend, executor: executor, prepared: cache}
}

// Put stores code and returns its hash. The code is prepared first, so code
// the executor rejects is never stored.
func (s *CodeStore) Put(code []byte) (common.Hash, error) {
	hash := crypto.Keccak256Hash(code)
	exe, err := s.executor.Prepare(hash, code)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.backend.Put(statebridge.CodeKey(hash), code); err != nil {
		return common.Hash{}, err
	}
	s.prepared.Add(hash, exe)
	return hash, nil
}

// Load implements vm.Loader.
func (s *CodeStore) Load(hash common.Hash) (vm.Executable, error) {
	if exe, ok := s.prepared.Get(hash); ok {
		return exe.(vm.Executable), nil
	}
	code, ok, err := s.backend.Get(statebridge.CodeKey(hash))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", vm.ErrCodeNotFound, hash)
	}
	exe, err := s.executor.Prepare(hash, code)
	if err != nil {
		return nil, err
	}
	s.prepared.Add(hash, exe)
	return exe, nil
}
