package vm

import "github.com/ethereum/go-ethereum/common"

// EntryPoint selects which exported function of an executable runs.
type EntryPoint uint8

const (
	EntryCall EntryPoint = iota
	EntryDeploy
)

func (e EntryPoint) String() string {
	switch e {
	case EntryCall:
		return "call"
	case EntryDeploy:
		return "deploy"
	}
	return "unknown"
}

// Executable is contract code prepared by an Executor. Each engine only
// accepts the executables it prepared itself.
type Executable interface {
	CodeHash() common.Hash
}

// Executor runs executables against a host interface. Execute returns the
// output of a clean exit (possibly flagged as reverted) or the error that
// trapped the execution.
type Executor interface {
	// Engine returns a short name identifying the backend.
	Engine() string
	// Prepare turns stored code into an executable for this engine.
	Prepare(codeHash common.Hash, code []byte) (Executable, error)
	Execute(exe Executable, entry EntryPoint, ext Ext, input []byte, gas *GasMeter) (ExecReturnValue, error)
}

// Loader resolves a code hash to an executable.
type Loader interface {
	Load(codeHash common.Hash) (Executable, error)
}
